package api

import (
	"net/http"
	"sort"

	"github.com/warp/media-budget/budget"
)

// =============================================================================
// DASHBOARD AND AUDIT
// =============================================================================
//
//   GET  /api/dashboard?client_id=   Fleet totals per channel and per week
//   GET  /api/audit                  Last balance audit report
//   POST /api/audit/run              Run the audit now

// GetDashboard fans the rollup primitives out over every matching campaign.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := budget.ClientID(r.URL.Query().Get("client_id"))

	campaigns, err := h.Store.ListCampaigns(ctx, budget.CampaignFilter{ClientID: clientID})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	warnings := 0
	for _, c := range campaigns {
		adSets, err := h.Store.ListAdSets(ctx, c.ID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		warnings += len(budget.CampaignWarnings(c, adSets))
	}

	budgeted, totals := budget.FleetTotals(campaigns)
	resp := DashboardResponse{
		ClientID:      string(clientID),
		CampaignCount: len(campaigns),
		TotalBudget:   budgeted,
		TotalPlanned:  totals.Planned,
		TotalActual:   totals.Actual,
		ByChannel:     []TotalsDTO{},
		ByWeek:        []TotalsDTO{},
		WarningCount:  warnings,
	}

	byChannel := budget.SumByChannel(campaigns)
	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, string(ch))
	}
	sort.Strings(channels)
	for _, ch := range channels {
		t := byChannel[budget.MediaChannel(ch)]
		resp.ByChannel = append(resp.ByChannel, TotalsDTO{Key: ch, Planned: t.Planned, Actual: t.Actual})
	}

	byWeek := budget.SumByWeek(campaigns)
	weeks := make([]string, 0, len(byWeek))
	for wk := range byWeek {
		weeks = append(weeks, wk)
	}
	budget.SortWeekLabels(weeks)
	for _, wk := range weeks {
		t := byWeek[wk]
		resp.ByWeek = append(resp.ByWeek, TotalsDTO{Key: wk, Planned: t.Planned, Actual: t.Actual})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetAudit returns the last audit report, empty before the first pass.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAuditReportDTO(h.Auditor.LastReport()))
}

// RunAudit runs one audit pass synchronously and returns its report.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	report := h.Auditor.RunNow(r.Context())
	if report.Err != nil {
		h.writeDomainError(w, report.Err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditReportDTO(&report))
}

func toAuditReportDTO(r *AuditReport) AuditReportDTO {
	if r == nil {
		return AuditReportDTO{Warnings: []WarningDTO{}}
	}
	ranAt := r.RanAt
	out := AuditReportDTO{
		RanAt:     &ranAt,
		Campaigns: r.Campaigns,
		Warnings:  toWarningDTOs(r.Warnings),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}
