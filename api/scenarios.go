/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	campaign trees for demos. Each scenario creates campaigns, distributes
	their budgets, adds ad sets and records some actual spend.

AVAILABLE SCENARIOS:

	social-launch:   One social campaign, front-loaded, two ad sets
	multi-channel:   Two clients, four channels, mixed strategies
	variance-demo:   Over/under spend, ad sets under 100%, a manual override
	holiday-preset:  Q4 campaign distributed from the holiday ramp preset

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Re-seed the builtin configurations
 3. Create campaigns and distribute their totals
 4. Create ad sets
 5. Record actual spend and notes

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "social-launch"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	All scenarios are pinned to 2025 so their week labels are stable.

SEE ALSO:
  - factory/configuration.go: BuiltinPresets
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/warp/media-budget/budget"
	"github.com/warp/media-budget/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "social-launch",
		Name:        "Social Launch",
		Description: "Front-loaded 8-week social campaign with prospecting and retargeting ad sets",
		Category:    "campaign",
	},
	{
		ID:          "multi-channel",
		Name:        "Multi-Channel Fleet",
		Description: "Two clients across social, search, display and video with mixed strategies",
		Category:    "dashboard",
	},
	{
		ID:          "variance-demo",
		Name:        "Variance Demo",
		Description: "Overspend, underspend, ad sets below 100% and a manual weekly override",
		Category:    "variance",
	},
	{
		ID:          "holiday-preset",
		Name:        "Holiday Preset",
		Description: "Q4 campaign distributed from the holiday ramp configuration",
		Category:    "configuration",
	},
}

var scenarioLoaders = map[string]func(ctx context.Context, st budget.Store) error{
	"social-launch":  loadSocialLaunchScenario,
	"multi-channel":  loadMultiChannelScenario,
	"variance-demo":  loadVarianceDemoScenario,
	"holiday-preset": loadHolidayPresetScenario,
}

type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := h.Store.WithTx(ctx, func(st budget.Store) error { return load(ctx, st) }); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data and re-seeds the builtin configurations.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	_, err := h.SeedConfigurations(ctx, factory.BuiltinPresets())
	return err
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadSocialLaunchScenario(ctx context.Context, st budget.Store) error {
	c := demoCampaign("spring-launch", "acme", budget.ChannelSocial, "Spring Launch",
		budget.ObjectiveAwareness, "2025-03-03", 56, "8000")
	c.TargetAudience = "18-34, urban"
	if err := distributeInto(&c, budget.StrategyFrontLoaded, nil); err != nil {
		return err
	}
	c.ActualBudgets = amounts("S9", "1650", "S10", "1580", "S11", "1300")
	c.WeeklyNotes = budget.WeekNotes{"S9": "Launch week, creative refresh on day 3"}
	if err := st.SaveCampaign(ctx, c); err != nil {
		return err
	}

	return saveAdSets(ctx, st,
		demoAdSet("spring-prospecting", c.ID, "Prospecting", "60", amounts("S9", "1000", "S10", "950", "S11", "780")),
		demoAdSet("spring-retargeting", c.ID, "Retargeting", "40", amounts("S9", "650", "S10", "630", "S11", "520")),
	)
}

func loadMultiChannelScenario(ctx context.Context, st budget.Store) error {
	type spec struct {
		campaign budget.Campaign
		strategy budget.DistributionStrategy
		actual   budget.WeekAmounts
	}
	specs := []spec{
		{
			campaign: demoCampaign("acme-social-q2", "acme", budget.ChannelSocial, "Acme Social Q2",
				budget.ObjectiveEngagement, "2025-03-31", 28, "4000"),
			strategy: budget.StrategyEven,
			actual:   amounts("S13", "1000", "S14", "900"),
		},
		{
			campaign: demoCampaign("acme-search-q2", "acme", budget.ChannelSearch, "Acme Search Always-On",
				budget.ObjectiveConversion, "2025-03-31", 42, "6000"),
			strategy: budget.StrategyBellCurve,
			actual:   amounts("S13", "400", "S14", "1100"),
		},
		{
			campaign: demoCampaign("globex-display", "globex", budget.ChannelDisplay, "Globex Display Push",
				budget.ObjectiveTraffic, "2025-04-07", 21, "3000"),
			strategy: budget.StrategyBackLoaded,
			actual:   amounts("S14", "500"),
		},
		{
			campaign: demoCampaign("globex-video", "globex", budget.ChannelVideo, "Globex Brand Video",
				budget.ObjectiveAwareness, "2025-03-31", 14, "5000"),
			strategy: budget.StrategyFrontLoaded,
			actual:   amounts("S13", "3400", "S14", "1600"),
		},
	}

	for _, s := range specs {
		c := s.campaign
		if err := distributeInto(&c, s.strategy, nil); err != nil {
			return fmt.Errorf("%s: %w", c.ID, err)
		}
		c.ActualBudgets = s.actual
		if err := st.SaveCampaign(ctx, c); err != nil {
			return err
		}
	}

	return saveAdSets(ctx, st,
		demoAdSet("acme-search-brand", "acme-search-q2", "Brand terms", "30", amounts("S13", "120", "S14", "330")),
		demoAdSet("acme-search-generic", "acme-search-q2", "Generic terms", "70", amounts("S13", "280", "S14", "770")),
	)
}

func loadVarianceDemoScenario(ctx context.Context, st budget.Store) error {
	c := demoCampaign("summer-sale", "initech", budget.ChannelDisplay, "Summer Sale",
		budget.ObjectiveConversion, "2025-06-02", 28, "4000")
	pcts := map[string]decimal.Decimal{
		"S22": decimal.NewFromInt(10),
		"S23": decimal.NewFromInt(20),
		"S24": decimal.NewFromInt(30),
		"S25": decimal.NewFromInt(40),
	}
	if err := distributeInto(&c, budget.StrategyManual, pcts); err != nil {
		return err
	}
	// Manual override after distribution: weekly sum no longer matches the total.
	c.WeeklyBudgets["S25"] = decimal.NewFromInt(1800)
	c.ActualBudgets = amounts(
		"S22", "520", // over
		"S23", "790", // under, inside the 2% band
		"S24", "600", // within
		"S25", "0", // none
	)
	c.WeeklyNotes = budget.WeekNotes{
		"S22": "Unplanned boost for flash sale",
		"S25": "Budget raised by client request",
	}
	if err := st.SaveCampaign(ctx, c); err != nil {
		return err
	}

	return saveAdSets(ctx, st,
		demoAdSet("summer-retarget", c.ID, "Retargeting", "50", amounts("S22", "300", "S23", "400")),
		demoAdSet("summer-lookalike", c.ID, "Lookalikes", "40", amounts("S22", "220", "S23", "390")),
	)
}

func loadHolidayPresetScenario(ctx context.Context, st budget.Store) error {
	cfg, err := st.GetConfiguration(ctx, "builtin-holiday-ramp")
	if err != nil {
		return err
	}
	c := demoCampaign("holiday-push", "acme", budget.ChannelTV, "Holiday Push",
		budget.ObjectiveAwareness, "2025-10-06", 91, "26000")
	alloc, err := budget.DistributeWithConfiguration(c.TotalBudget, budget.Labels(budget.CampaignWeeks(c)), &cfg)
	if err != nil {
		return err
	}
	c.WeeklyBudgets = budget.MergeAllocation(c.WeeklyBudgets, alloc)
	c.ActualBudgets = amounts("S40", "400", "S41", "700")
	return st.SaveCampaign(ctx, c)
}

// =============================================================================
// HELPERS
// =============================================================================

func demoCampaign(id string, client budget.ClientID, channel budget.MediaChannel, name string, objective budget.Objective, start string, days int, total string) budget.Campaign {
	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		panic(fmt.Sprintf("demo campaign %s: %v", id, err))
	}
	return budget.Campaign{
		ID:            budget.CampaignID(id),
		ClientID:      client,
		MediaChannel:  channel,
		Name:          name,
		Objective:     objective,
		StartDate:     startDate,
		DurationDays:  days,
		TotalBudget:   decimal.RequireFromString(total),
		WeeklyBudgets: budget.WeekAmounts{},
		ActualBudgets: budget.WeekAmounts{},
		WeeklyNotes:   budget.WeekNotes{},
	}
}

func demoAdSet(id string, campaignID budget.CampaignID, name, pct string, actual budget.WeekAmounts) budget.AdSet {
	return budget.AdSet{
		ID:               budget.AdSetID(id),
		CampaignID:       campaignID,
		Name:             name,
		BudgetPercentage: decimal.RequireFromString(pct),
		ActualBudgets:    actual,
		WeeklyNotes:      budget.WeekNotes{},
	}
}

func distributeInto(c *budget.Campaign, strategy budget.DistributionStrategy, pcts map[string]decimal.Decimal) error {
	alloc, err := budget.Distribute(c.TotalBudget, budget.Labels(budget.CampaignWeeks(*c)), strategy, pcts)
	if err != nil {
		return err
	}
	c.WeeklyBudgets = budget.MergeAllocation(c.WeeklyBudgets, alloc)
	return nil
}

func saveAdSets(ctx context.Context, st budget.Store, adSets ...budget.AdSet) error {
	for _, a := range adSets {
		if err := st.SaveAdSet(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// amounts builds a WeekAmounts from week/amount pairs.
func amounts(pairs ...string) budget.WeekAmounts {
	out := make(budget.WeekAmounts, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = decimal.RequireFromString(pairs[i+1])
	}
	return out
}
