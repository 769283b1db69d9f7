/*
handlers.go - HTTP API handlers for media budget planning

PURPOSE:
  Exposes the budget engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the budget package for every
  calculation. The engine is pure; handlers load a snapshot from the store,
  call it, and write the result back.

ENDPOINTS:
  Weeks:
    GET    /api/weeks?year=2025                 52-week planning grid

  Campaigns:
    GET    /api/campaigns?client_id=&channel=   List campaigns
    POST   /api/campaigns                       Create (optional pre-distribution)
    GET    /api/campaigns/{id}                  Get campaign
    PUT    /api/campaigns/{id}                  Update metadata and total
    DELETE /api/campaigns/{id}                  Delete campaign and its ad sets
    POST   /api/campaigns/{id}/distribute       Re-run a distribution strategy
    PUT    /api/campaigns/{id}/weeks/{week}     Edit one planned/actual/note cell
    GET    /api/campaigns/{id}/rollup           Campaign tree with warnings
    GET    /api/campaigns/{id}/variance         Per-week variance grid

  Ad sets, configurations, dashboard: see adsets.go, configurations.go,
  dashboard.go.

DISTRIBUTE FLOW:
  1. Load campaign inside a transaction
  2. Resolve percentages (request body or stored configuration)
  3. budget.Distribute over the campaign's span weeks
  4. budget.MergeAllocation into the full weekly map
  5. ReplaceWeeklyBudgets, commit

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, missing percentages
  - 404: Campaign, ad set or configuration not found
  - 409: Ad-set percentage exceeds remaining headroom, duplicate ID
  - 422: Percentages do not total 100
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - validation.go: Request validation
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/warp/media-budget/budget"
	"github.com/warp/media-budget/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

var errAlreadyExists = errors.New("already exists")

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   budget.TxStore
	Configs *factory.ConfigurationFactory
	Metrics *Metrics
	Auditor *BalanceAuditor

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store budget.TxStore) *Handler {
	metrics := NewMetrics()
	return &Handler{
		Store:   store,
		Configs: factory.NewConfigurationFactory(),
		Metrics: metrics,
		Auditor: NewBalanceAuditor(store, metrics),
	}
}

// SeedConfigurations stores presets whose IDs are not taken yet. Existing
// configurations are left alone so user edits survive restarts.
func (h *Handler) SeedConfigurations(ctx context.Context, presets []budget.BudgetConfiguration) (int, error) {
	added := 0
	for _, p := range presets {
		_, err := h.Store.GetConfiguration(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, budget.ErrConfigurationNotFound) {
			return added, err
		}
		if err := h.Store.SaveConfiguration(ctx, p); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Healthz reports whether the store answers.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// WEEK GRID
// =============================================================================

// ListWeeks returns the 52-week grid for ?year= (default: current year).
func (h *Handler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil || parsed < 1970 || parsed > 2200 {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed
	}
	writeJSON(w, http.StatusOK, toWeekDTOs(budget.GenerateWeeks(year)))
}

// =============================================================================
// CAMPAIGN ENDPOINTS
// =============================================================================

// ListCampaigns returns campaigns, optionally filtered by client and channel.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	filter := budget.CampaignFilter{
		ClientID:     budget.ClientID(r.URL.Query().Get("client_id")),
		MediaChannel: budget.MediaChannel(r.URL.Query().Get("channel")),
	}
	if filter.MediaChannel != "" && !filter.MediaChannel.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid channel", fmt.Errorf("must be one of %s", joinChannels()))
		return
	}

	campaigns, err := h.Store.ListCampaigns(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, toCampaignDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateCampaign creates a campaign. With a strategy the total is
// distributed over the span right away; otherwise weekly budgets start empty.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CampaignRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	c, err := campaignFromRequest(req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if c.ID == "" {
		c.ID = budget.CampaignID(uuid.NewString())
	}
	err = h.Store.WithTx(ctx, func(st budget.Store) error {
		if _, err := st.GetCampaign(ctx, c.ID); err == nil {
			return fmt.Errorf("campaign %s: %w", c.ID, errAlreadyExists)
		}
		if req.Strategy != "" {
			alloc, _, err := h.allocate(ctx, st, c, req.Strategy, req.Percentages, req.ConfigurationID)
			if err != nil {
				return err
			}
			c.WeeklyBudgets = alloc
		}
		if err := st.SaveCampaign(ctx, c); err != nil {
			return err
		}
		saved, err := st.GetCampaign(ctx, c.ID)
		if err != nil {
			return err
		}
		c = saved
		return nil
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	log.Info().Str("campaign", string(c.ID)).Str("strategy", req.Strategy).Msg("campaign created")
	writeJSON(w, http.StatusCreated, toCampaignDTO(c))
}

// GetCampaign returns one campaign.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCampaign(r.Context(), campaignIDParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignDTO(c))
}

// UpdateCampaign replaces campaign metadata and total. Weekly maps and notes
// are kept; changing the total does not redistribute.
func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := campaignIDParam(r)

	var req CampaignRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.ID != "" && budget.CampaignID(req.ID) != id {
		writeError(w, http.StatusBadRequest, "Campaign ID cannot be changed", nil)
		return
	}
	next, err := campaignFromRequest(req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var updated budget.Campaign
	err = h.Store.WithTx(ctx, func(st budget.Store) error {
		existing, err := st.GetCampaign(ctx, id)
		if err != nil {
			return err
		}
		next.ID = id
		next.WeeklyBudgets = existing.WeeklyBudgets
		next.ActualBudgets = existing.ActualBudgets
		next.WeeklyNotes = existing.WeeklyNotes
		if err := st.SaveCampaign(ctx, next); err != nil {
			return err
		}
		updated, err = st.GetCampaign(ctx, id)
		return err
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignDTO(updated))
}

// DeleteCampaign removes a campaign and, by cascade, its ad sets.
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := campaignIDParam(r)
	if err := h.Store.DeleteCampaign(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	log.Info().Str("campaign", string(id)).Msg("campaign deleted")
	w.WriteHeader(http.StatusNoContent)
}

// DistributeCampaign re-runs a strategy over the campaign span and merges the
// result into the stored weekly budgets in one transaction.
func (h *Handler) DistributeCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := campaignIDParam(r)

	var req DistributeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var (
		alloc    budget.WeekAmounts
		strategy budget.DistributionStrategy
		updated  budget.Campaign
	)
	err := h.Store.WithTx(ctx, func(st budget.Store) error {
		c, err := st.GetCampaign(ctx, id)
		if err != nil {
			return err
		}
		alloc, strategy, err = h.allocate(ctx, st, c, req.Strategy, req.Percentages, req.ConfigurationID)
		if err != nil {
			return err
		}
		if err := st.ReplaceWeeklyBudgets(ctx, id, budget.MergeAllocation(c.WeeklyBudgets, alloc)); err != nil {
			return err
		}
		updated, err = st.GetCampaign(ctx, id)
		return err
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	log.Info().
		Str("campaign", string(id)).
		Str("strategy", string(strategy)).
		Int("weeks", len(alloc)).
		Msg("budget distributed")
	writeJSON(w, http.StatusOK, DistributeResponse{
		Strategy:   string(strategy),
		Allocation: alloc,
		Campaign:   toCampaignDTO(updated),
	})
}

// UpdateCampaignWeek edits one week: planned, actual and/or note.
func (h *Handler) UpdateCampaignWeek(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := campaignIDParam(r)
	week, err := weekParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week", err)
		return
	}

	var req WeekCellRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.Planned == nil && req.Actual == nil && req.Note == nil {
		writeError(w, http.StatusBadRequest, "Nothing to update", errors.New("set planned, actual or note"))
		return
	}
	if err := nonNegative(req.Planned, req.Actual); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var updated budget.Campaign
	err = h.Store.WithTx(ctx, func(st budget.Store) error {
		if req.Planned != nil {
			if err := st.SetCampaignWeek(ctx, id, budget.MapPlanned, week, *req.Planned); err != nil {
				return err
			}
		}
		if req.Actual != nil {
			if err := st.SetCampaignWeek(ctx, id, budget.MapActual, week, *req.Actual); err != nil {
				return err
			}
		}
		if req.Note != nil {
			if err := st.SetCampaignNote(ctx, id, week, strings.TrimSpace(*req.Note)); err != nil {
				return err
			}
		}
		var err error
		updated, err = st.GetCampaign(ctx, id)
		return err
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCampaignDTO(updated))
}

// GetCampaignRollup returns the campaign tree, allocation and warnings.
func (h *Handler) GetCampaignRollup(w http.ResponseWriter, r *http.Request) {
	c, adSets, err := h.loadTree(r.Context(), campaignIDParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	tree := budget.CampaignTree(c, adSets)
	writeJSON(w, http.StatusOK, toRollupResponse(tree, budget.CampaignWarnings(c, adSets)))
}

// GetCampaignVariance classifies every week of the campaign and its ad sets.
func (h *Handler) GetCampaignVariance(w http.ResponseWriter, r *http.Request) {
	c, adSets, err := h.loadTree(r.Context(), campaignIDParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := VarianceResponse{CampaignID: string(c.ID)}
	resp.Rows = append(resp.Rows, varianceRow(string(c.ID), c.Name, "campaign", c.WeeklyBudgets, c.ActualBudgets))
	for _, a := range adSets {
		resp.Rows = append(resp.Rows, varianceRow(string(a.ID), a.Name, "ad_set", budget.AdSetPlannedWeekly(c, a), a.ActualBudgets))
	}
	writeJSON(w, http.StatusOK, resp)
}

func varianceRow(id, name, kind string, planned, actual budget.WeekAmounts) VarianceRowDTO {
	grid := budget.ClassifyWeeks(planned, actual)
	weeks := make([]string, 0, len(grid))
	for wk := range grid {
		weeks = append(weeks, wk)
	}
	budget.SortWeekLabels(weeks)

	row := VarianceRowDTO{ID: id, Name: name, Kind: kind, Weeks: make([]VarianceDTO, 0, len(weeks))}
	for _, wk := range weeks {
		row.Weeks = append(row.Weeks, toVarianceDTO(wk, planned.Get(wk), actual.Get(wk), grid[wk]))
	}
	tp, ta := planned.Sum(), actual.Sum()
	row.Total = toVarianceDTO("", tp, ta, budget.Classify(tp, ta))
	return row
}

// =============================================================================
// HELPERS
// =============================================================================

// allocate resolves the strategy and its percentages, then distributes the
// campaign total over the campaign span.
func (h *Handler) allocate(
	ctx context.Context,
	st budget.Store,
	c budget.Campaign,
	strategyName string,
	percentages map[string]decimal.Decimal,
	configurationID string,
) (budget.WeekAmounts, budget.DistributionStrategy, error) {
	strategy, err := budget.ParseStrategy(strategyName)
	if err != nil {
		return nil, "", err
	}
	labels := budget.Labels(budget.CampaignWeeks(c))

	var alloc budget.WeekAmounts
	if strategy == budget.StrategyGlobal && configurationID != "" {
		cfg, err := st.GetConfiguration(ctx, budget.ConfigurationID(configurationID))
		if err != nil {
			return nil, strategy, err
		}
		alloc, err = budget.DistributeWithConfiguration(c.TotalBudget, labels, &cfg)
		h.Metrics.ObserveDistribution(string(strategy), err)
		return alloc, strategy, err
	}

	alloc, err = budget.Distribute(c.TotalBudget, labels, strategy, percentages)
	h.Metrics.ObserveDistribution(string(strategy), err)
	return alloc, strategy, err
}

// loadTree fetches a campaign and its ad sets.
func (h *Handler) loadTree(ctx context.Context, id budget.CampaignID) (budget.Campaign, []budget.AdSet, error) {
	c, err := h.Store.GetCampaign(ctx, id)
	if err != nil {
		return budget.Campaign{}, nil, err
	}
	adSets, err := h.Store.ListAdSets(ctx, id)
	if err != nil {
		return budget.Campaign{}, nil, err
	}
	return c, adSets, nil
}

func campaignFromRequest(req CampaignRequest) (budget.Campaign, error) {
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return budget.Campaign{}, &requestError{msg: fmt.Sprintf("invalid start_date: %v", err)}
	}
	if req.TotalBudget.IsNegative() {
		return budget.Campaign{}, budget.ErrNegativeBudget
	}
	return budget.Campaign{
		ID:             budget.CampaignID(strings.TrimSpace(req.ID)),
		ClientID:       budget.ClientID(strings.TrimSpace(req.ClientID)),
		MediaChannel:   budget.MediaChannel(req.MediaChannel),
		Name:           strings.TrimSpace(req.Name),
		Objective:      budget.Objective(req.Objective),
		TargetAudience: req.TargetAudience,
		StartDate:      start,
		DurationDays:   req.DurationDays,
		TotalBudget:    *req.TotalBudget,
		WeeklyBudgets:  budget.WeekAmounts{},
		ActualBudgets:  budget.WeekAmounts{},
		WeeklyNotes:    budget.WeekNotes{},
	}, nil
}

func nonNegative(amounts ...*decimal.Decimal) error {
	for _, a := range amounts {
		if a != nil && a.IsNegative() {
			return budget.ErrNegativeBudget
		}
	}
	return nil
}

func campaignIDParam(r *http.Request) budget.CampaignID {
	return budget.CampaignID(chi.URLParam(r, "id"))
}

// weekParam returns the canonical label of the {week} path segment.
func weekParam(r *http.Request) (string, error) {
	raw := strings.ToUpper(chi.URLParam(r, "week"))
	n, err := budget.ParseWeekLabel(raw)
	if err != nil {
		return "", err
	}
	return budget.WeekLabel(n), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps budget and request errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		resp := ErrorResponse{Error: "Invalid request", Code: "invalid_request", Details: reqErr.msg}
		if len(reqErr.fields) > 0 {
			resp.Details = reqErr.fields
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case budget.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, budget.ErrUnbalancedPercentages):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "Percentages must total 100", Code: "unbalanced_percentages", Details: err.Error()})
	case errors.Is(err, errAlreadyExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "already_exists"})
	case errors.Is(err, budget.ErrExceedsHeadroom):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "Percentage exceeds remaining headroom", Code: "exceeds_headroom", Details: err.Error()})
	case budget.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
