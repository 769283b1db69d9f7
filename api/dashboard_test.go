package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/warp/media-budget/budget/store"
)

func TestDashboard_FleetTotals(t *testing.T) {
	// GIVEN: Three campaigns over two clients and two channels
	_, srv := newTestServer(t)
	b := springCampaign("c1")
	b["strategy"] = "even"
	createCampaign(t, srv, b)

	b = springCampaign("c2")
	b["media_channel"] = "search"
	b["total_budget"] = 2000
	b["strategy"] = "even"
	createCampaign(t, srv, b)

	b = springCampaign("c3")
	b["client_id"] = "globex"
	b["total_budget"] = 400
	b["strategy"] = "even"
	createCampaign(t, srv, b)
	doRequest(t, srv, http.MethodPut, "/api/campaigns/c1/weeks/S9", map[string]any{"actual": 2000})
	doRequest(t, srv, http.MethodPut, "/api/campaigns/c3/weeks/S9", map[string]any{"actual": 50})

	// WHEN: Fetching the dashboard for the whole fleet
	rec := doRequest(t, srv, http.MethodGet, "/api/dashboard", nil)

	// THEN: Totals fan out by channel and by week
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := decodeBody[DashboardResponse](t, rec)
	assert.Equal(t, 3, d.CampaignCount)
	assertAmount(t, "12400", d.TotalBudget)
	assertAmount(t, "12400", d.TotalPlanned)
	assertAmount(t, "2050", d.TotalActual)
	assert.Equal(t, 0, d.WarningCount)

	require.Len(t, d.ByChannel, 2)
	assert.Equal(t, "search", d.ByChannel[0].Key)
	assertAmount(t, "2000", d.ByChannel[0].Planned)
	assert.Equal(t, "social", d.ByChannel[1].Key)
	assertAmount(t, "10400", d.ByChannel[1].Planned)
	assertAmount(t, "2050", d.ByChannel[1].Actual)

	require.Len(t, d.ByWeek, 4)
	assert.Equal(t, "S9", d.ByWeek[0].Key)
	assertAmount(t, "3100", d.ByWeek[0].Planned)
	assertAmount(t, "2050", d.ByWeek[0].Actual)
	assert.Equal(t, "S12", d.ByWeek[3].Key)

	// WHEN: Filtering by client
	d = decodeBody[DashboardResponse](t, doRequest(t, srv, http.MethodGet, "/api/dashboard?client_id=globex", nil))

	// THEN: Only that client's campaigns count
	assert.Equal(t, "globex", d.ClientID)
	assert.Equal(t, 1, d.CampaignCount)
	assertAmount(t, "400", d.TotalBudget)
}

func TestDashboard_CountsWarnings(t *testing.T) {
	// GIVEN: An undistributed campaign (weekly sum 0 against 10000)
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))

	d := decodeBody[DashboardResponse](t, doRequest(t, srv, http.MethodGet, "/api/dashboard", nil))

	assert.Equal(t, 1, d.WarningCount)
}

func TestAudit_RunAndReport(t *testing.T) {
	// GIVEN: No audit has run yet
	_, srv := newTestServer(t)
	before := decodeBody[AuditReportDTO](t, doRequest(t, srv, http.MethodGet, "/api/audit", nil))
	assert.Nil(t, before.RanAt)
	assert.Empty(t, before.Warnings)

	// AND: A campaign whose ad sets only cover 30%
	body := springCampaign("c1")
	body["strategy"] = "even"
	createCampaign(t, srv, body)
	require.NotNil(t, createAdSet(t, srv, "c1", map[string]any{"id": "a1", "name": "One", "budget_percentage": 30}))

	// WHEN: Running the audit
	rec := doRequest(t, srv, http.MethodPost, "/api/audit/run", nil)

	// THEN: The warning is reported and kept as the last report
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[AuditReportDTO](t, rec)
	assert.Equal(t, 1, report.Campaigns)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "adsets_under_allocated", report.Warnings[0].Code)

	last := decodeBody[AuditReportDTO](t, doRequest(t, srv, http.MethodGet, "/api/audit", nil))
	require.NotNil(t, last.RanAt)
	assert.Len(t, last.Warnings, 1)
}

func TestBalanceAuditor_StartStop(t *testing.T) {
	// GIVEN: An auditor over an in-memory store with one unbalanced campaign
	st := memstore.NewTxMemory()
	ctx := context.Background()
	c := demoCampaign("c1", "acme", "social", "Unbalanced", "awareness", "2025-03-03", 14, "1000")
	require.NoError(t, st.SaveCampaign(ctx, c))

	a := NewBalanceAuditor(st, NewMetrics())
	a.Interval = time.Hour

	// WHEN: Starting it
	a.Start()
	defer a.Stop()

	// THEN: The first pass runs immediately
	require.Eventually(t, func() bool { return a.LastReport() != nil }, time.Second, 10*time.Millisecond)
	report := a.LastReport()
	assert.Equal(t, 1, report.Campaigns)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "weekly_sum_mismatch", string(report.Warnings[0].Code))

	// AND: Stop is idempotent
	a.Stop()
}

func TestBalanceAuditor_Disabled(t *testing.T) {
	a := NewBalanceAuditor(memstore.NewTxMemory(), nil)
	a.Enabled = false

	a.Start()
	a.Stop()

	assert.Nil(t, a.LastReport())
}
