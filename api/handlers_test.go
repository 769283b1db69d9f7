/*
handlers_test.go - HTTP tests for campaign endpoints

Tests for:
- Campaign create with pre-distribution, validation, duplicate IDs
- Distribute: 422 on unbalanced, 400 on missing percentages, merge semantics
- Per-cell edits and note clearing
- Rollup warnings and variance grid
- Health and metrics endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/media-budget/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	return h, NewRouter(h, nil)
}

func doRequest(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// springCampaign spans S9..S12 of 2025.
func springCampaign(id string) map[string]any {
	return map[string]any{
		"id":            id,
		"client_id":     "acme",
		"media_channel": "social",
		"name":          "Spring launch",
		"objective":     "awareness",
		"start_date":    "2025-03-03",
		"duration_days": 28,
		"total_budget":  10000,
	}
}

func createCampaign(t *testing.T, srv http.Handler, body map[string]any) CampaignDTO {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[CampaignDTO](t, rec)
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

func TestCreateCampaign_WithStrategy(t *testing.T) {
	// GIVEN: A 4-week campaign of 10000 created with front-loaded
	_, srv := newTestServer(t)
	body := springCampaign("c1")
	body["strategy"] = "front-loaded"

	// WHEN: Creating it
	c := createCampaign(t, srv, body)

	// THEN: Weights 4,3,2,1 give exact amounts that sum to the total
	assert.Equal(t, []string{"S9", "S10", "S11", "S12"}, c.Weeks)
	assertAmount(t, "4000", c.WeeklyBudgets["S9"])
	assertAmount(t, "3000", c.WeeklyBudgets["S10"])
	assertAmount(t, "2000", c.WeeklyBudgets["S11"])
	assertAmount(t, "1000", c.WeeklyBudgets["S12"])
	assertAmount(t, "10000", c.TotalPlanned)
	assert.Equal(t, "2025-03-30", c.EndDate)
}

func TestCreateCampaign_WithoutStrategyStartsEmpty(t *testing.T) {
	_, srv := newTestServer(t)

	c := createCampaign(t, srv, springCampaign("c1"))

	assert.Empty(t, c.WeeklyBudgets)
	assertAmount(t, "0", c.TotalPlanned)
}

func TestCreateCampaign_Validation(t *testing.T) {
	// GIVEN: A server
	_, srv := newTestServer(t)

	cases := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"missing name", func(b map[string]any) { delete(b, "name") }, "name"},
		{"unknown channel", func(b map[string]any) { b["media_channel"] = "fax" }, "media_channel"},
		{"bad date", func(b map[string]any) { b["start_date"] = "03/03/2025" }, "start_date"},
		{"zero duration", func(b map[string]any) { b["duration_days"] = 0 }, "duration_days"},
		{"unknown strategy", func(b map[string]any) { b["strategy"] = "random" }, "strategy"},
		{"missing total", func(b map[string]any) { delete(b, "total_budget") }, "total_budget"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := springCampaign("c1")
			tc.mutate(body)

			// WHEN: Creating the campaign
			rec := doRequest(t, srv, http.MethodPost, "/api/campaigns", body)

			// THEN: 400 with the offending field named
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeBody[ErrorResponse](t, rec)
			details, ok := resp.Details.(map[string]any)
			require.True(t, ok, "details should be a field map: %v", resp.Details)
			assert.Contains(t, details, tc.field)
		})
	}
}

func TestCreateCampaign_NegativeTotal(t *testing.T) {
	_, srv := newTestServer(t)
	body := springCampaign("c1")
	body["total_budget"] = -5

	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCampaign_UnknownFieldRejected(t *testing.T) {
	_, srv := newTestServer(t)
	body := springCampaign("c1")
	body["budget"] = 10

	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCampaign_DuplicateID(t *testing.T) {
	// GIVEN: An existing campaign
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))

	// WHEN: Creating another with the same ID
	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns", springCampaign("c1"))

	// THEN: 409
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateCampaign_GeneratesID(t *testing.T) {
	_, srv := newTestServer(t)
	body := springCampaign("")
	delete(body, "id")

	c := createCampaign(t, srv, body)

	assert.Len(t, c.ID, 36)
}

func TestListCampaigns_Filters(t *testing.T) {
	// GIVEN: Campaigns for two clients and two channels
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))
	b := springCampaign("c2")
	b["media_channel"] = "search"
	createCampaign(t, srv, b)
	b = springCampaign("c3")
	b["client_id"] = "globex"
	createCampaign(t, srv, b)

	// WHEN/THEN: Filters narrow the list
	all := decodeBody[[]CampaignDTO](t, doRequest(t, srv, http.MethodGet, "/api/campaigns", nil))
	assert.Len(t, all, 3)

	acme := decodeBody[[]CampaignDTO](t, doRequest(t, srv, http.MethodGet, "/api/campaigns?client_id=acme", nil))
	assert.Len(t, acme, 2)

	search := decodeBody[[]CampaignDTO](t, doRequest(t, srv, http.MethodGet, "/api/campaigns?channel=search", nil))
	require.Len(t, search, 1)
	assert.Equal(t, "c2", search[0].ID)

	rec := doRequest(t, srv, http.MethodGet, "/api/campaigns?channel=fax", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateCampaign_KeepsWeeklyMaps(t *testing.T) {
	// GIVEN: A distributed campaign
	_, srv := newTestServer(t)
	body := springCampaign("c1")
	body["strategy"] = "even"
	createCampaign(t, srv, body)

	// WHEN: Raising the total
	update := springCampaign("c1")
	update["total_budget"] = 12000
	update["name"] = "Spring launch v2"
	rec := doRequest(t, srv, http.MethodPut, "/api/campaigns/c1", update)

	// THEN: Metadata changes, weekly budgets stay until redistributed
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decodeBody[CampaignDTO](t, rec)
	assert.Equal(t, "Spring launch v2", c.Name)
	assertAmount(t, "12000", c.TotalBudget)
	assertAmount(t, "10000", c.TotalPlanned)
}

func TestUpdateCampaign_Errors(t *testing.T) {
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))

	rec := doRequest(t, srv, http.MethodPut, "/api/campaigns/missing", springCampaign(""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPut, "/api/campaigns/c1", springCampaign("other"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCampaign_NotFound(t *testing.T) {
	_, srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/campaigns/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, rec).Code)
}

// =============================================================================
// DISTRIBUTE
// =============================================================================

func TestDistribute_UnbalancedPercentagesRejected(t *testing.T) {
	// GIVEN: A campaign with an even plan
	_, srv := newTestServer(t)
	body := springCampaign("c1")
	body["strategy"] = "even"
	createCampaign(t, srv, body)

	// WHEN: Distributing manual percentages that total 90
	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/distribute", map[string]any{
		"strategy":    "manual",
		"percentages": map[string]any{"S9": 50, "S10": 40},
	})

	// THEN: 422 and nothing is persisted
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	c := decodeBody[CampaignDTO](t, doRequest(t, srv, http.MethodGet, "/api/campaigns/c1", nil))
	assertAmount(t, "2500", c.WeeklyBudgets["S9"])
	assertAmount(t, "2500", c.WeeklyBudgets["S12"])
}

func TestDistribute_MissingPercentages(t *testing.T) {
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))

	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/distribute", map[string]any{"strategy": "manual"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDistribute_UnknownCampaign(t *testing.T) {
	_, srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns/nope/distribute", map[string]any{"strategy": "even"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDistribute_MergesIntoExistingWeeks(t *testing.T) {
	// GIVEN: A campaign with a planned amount outside its span
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))
	rec := doRequest(t, srv, http.MethodPut, "/api/campaigns/c1/weeks/S20", map[string]any{"planned": 300})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Distributing evenly
	rec = doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/distribute", map[string]any{"strategy": "even"})

	// THEN: Span weeks are replaced, S20 is kept
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[DistributeResponse](t, rec)
	assert.Equal(t, "even", resp.Strategy)
	assert.Len(t, resp.Allocation, 4)
	for _, wk := range []string{"S9", "S10", "S11", "S12"} {
		assertAmount(t, "2500", resp.Campaign.WeeklyBudgets[wk], wk)
	}
	assertAmount(t, "300", resp.Campaign.WeeklyBudgets["S20"])
}

func TestDistribute_ManualPercentagesWithRounding(t *testing.T) {
	// GIVEN: A 100 budget over 4 weeks
	_, srv := newTestServer(t)
	body := springCampaign("c1")
	body["total_budget"] = "100"
	createCampaign(t, srv, body)

	// WHEN: Splitting in thirds over three weeks
	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/distribute", map[string]any{
		"strategy":    "manual",
		"percentages": map[string]any{"S9": "33.33", "S10": "33.33", "S11": "33.34"},
	})

	// THEN: The result sums exactly to the total
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[DistributeResponse](t, rec)
	sum := decimal.Zero
	for _, v := range resp.Allocation {
		sum = sum.Add(v)
	}
	assertAmount(t, "100", sum)
	assertAmount(t, "0", resp.Allocation["S12"])
}

func TestDistribute_GlobalWithConfiguration(t *testing.T) {
	// GIVEN: A stored configuration covering the campaign span
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))
	rec := doRequest(t, srv, http.MethodPost, "/api/configurations", map[string]any{
		"id":          "quarter",
		"name":        "Quarter",
		"percentages": map[string]any{"S9": 10, "S10": 20, "S11": 30, "S12": 40},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: Distributing with the global strategy and that configuration
	rec = doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/distribute", map[string]any{
		"strategy":         "global",
		"configuration_id": "quarter",
	})

	// THEN: The configuration's shape is applied
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decodeBody[DistributeResponse](t, rec).Campaign
	assertAmount(t, "1000", c.WeeklyBudgets["S9"])
	assertAmount(t, "4000", c.WeeklyBudgets["S12"])

	// AND: An unknown configuration is a 404
	rec = doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/distribute", map[string]any{
		"strategy":         "global",
		"configuration_id": "nope",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// CELL EDITS
// =============================================================================

func TestUpdateCampaignWeek(t *testing.T) {
	// GIVEN: A campaign
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))

	// WHEN: Editing planned, actual and note of one week (lower-case label)
	rec := doRequest(t, srv, http.MethodPut, "/api/campaigns/c1/weeks/s10", map[string]any{
		"planned": "1200.50",
		"actual":  900,
		"note":    "  paused two days  ",
	})

	// THEN: The canonical week holds the values
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decodeBody[CampaignDTO](t, rec)
	assertAmount(t, "1200.50", c.WeeklyBudgets["S10"])
	assertAmount(t, "900", c.ActualBudgets["S10"])
	assert.Equal(t, "paused two days", c.WeeklyNotes["S10"])

	// WHEN: Clearing the note
	rec = doRequest(t, srv, http.MethodPut, "/api/campaigns/c1/weeks/S10", map[string]any{"note": ""})

	// THEN: The note is gone, amounts untouched
	require.Equal(t, http.StatusOK, rec.Code)
	c = decodeBody[CampaignDTO](t, rec)
	assert.NotContains(t, c.WeeklyNotes, "S10")
	assertAmount(t, "900", c.ActualBudgets["S10"])
}

func TestUpdateCampaignWeek_Errors(t *testing.T) {
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))

	cases := []struct {
		name string
		path string
		body map[string]any
		want int
	}{
		{"bad week", "/api/campaigns/c1/weeks/W3", map[string]any{"actual": 1}, http.StatusBadRequest},
		{"week out of range", "/api/campaigns/c1/weeks/S53", map[string]any{"actual": 1}, http.StatusBadRequest},
		{"empty body", "/api/campaigns/c1/weeks/S9", map[string]any{}, http.StatusBadRequest},
		{"negative actual", "/api/campaigns/c1/weeks/S9", map[string]any{"actual": -1}, http.StatusBadRequest},
		{"unknown campaign", "/api/campaigns/nope/weeks/S9", map[string]any{"actual": 1}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPut, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// ROLLUP AND VARIANCE
// =============================================================================

func TestCampaignRollup_Warnings(t *testing.T) {
	// GIVEN: An even campaign with one overridden week and a 60% ad set
	_, srv := newTestServer(t)
	body := springCampaign("c1")
	body["strategy"] = "even"
	createCampaign(t, srv, body)
	doRequest(t, srv, http.MethodPut, "/api/campaigns/c1/weeks/S9", map[string]any{"planned": 3000, "actual": 1000})
	rec := doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/adsets", map[string]any{
		"id": "a1", "name": "Prospecting", "budget_percentage": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doRequest(t, srv, http.MethodPut, "/api/adsets/a1/weeks/S9", map[string]any{"actual": 700})

	// WHEN: Fetching the rollup
	rec = doRequest(t, srv, http.MethodGet, "/api/campaigns/c1/rollup", nil)

	// THEN: Totals, derived ad-set plan and warnings are reported
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decodeBody[RollupResponse](t, rec)
	assertAmount(t, "10500", r.TotalPlanned)
	assertAmount(t, "1000", r.TotalActual)
	assertAmount(t, "-500", r.Allocation.Difference)
	assert.False(t, r.Allocation.Balanced)
	assertAmount(t, "60", r.AllocatedPercentage)
	assertAmount(t, "40", r.Headroom)
	assertAmount(t, "700", r.AdSetsActual)

	require.Len(t, r.AdSets, 1)
	assertAmount(t, "6300", r.AdSets[0].TotalPlanned)
	require.NotEmpty(t, r.AdSets[0].Weeks)
	assert.Equal(t, "S9", r.AdSets[0].Weeks[0].Week)
	assertAmount(t, "1800", r.AdSets[0].Weeks[0].Planned)

	codes := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"weekly_sum_mismatch", "adsets_under_allocated"}, codes)
}

func TestCampaignVariance(t *testing.T) {
	// GIVEN: An even campaign (2500/week) with mixed actuals
	_, srv := newTestServer(t)
	body := springCampaign("c1")
	body["strategy"] = "even"
	createCampaign(t, srv, body)
	doRequest(t, srv, http.MethodPut, "/api/campaigns/c1/weeks/S9", map[string]any{"actual": 3000})
	doRequest(t, srv, http.MethodPut, "/api/campaigns/c1/weeks/S10", map[string]any{"actual": 2000})
	doRequest(t, srv, http.MethodPut, "/api/campaigns/c1/weeks/S11", map[string]any{"actual": 2490})

	// WHEN: Fetching the variance grid
	rec := doRequest(t, srv, http.MethodGet, "/api/campaigns/c1/variance", nil)

	// THEN: Each week is classified
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[VarianceResponse](t, rec)
	require.Len(t, resp.Rows, 1)
	row := resp.Rows[0]
	assert.Equal(t, "campaign", row.Kind)

	states := map[string]string{}
	for _, v := range row.Weeks {
		states[v.Week] = v.State
	}
	assert.Equal(t, map[string]string{
		"S9":  "over",
		"S10": "within",
		"S11": "under",
		"S12": "none",
	}, states)
	assertAmount(t, "20", row.Weeks[0].DeltaPct)
	assertAmount(t, "7490", row.Total.Actual)
}

// =============================================================================
// INFRASTRUCTURE
// =============================================================================

func TestListWeeks(t *testing.T) {
	_, srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/weeks?year=2025", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	weeks := decodeBody[[]WeekDTO](t, rec)
	require.Len(t, weeks, 52)
	assert.Equal(t, "S1", weeks[0].WeekLabel)
	assert.Equal(t, "2025-01-06", weeks[0].StartDate)
	assert.Equal(t, "2025-01-12", weeks[0].EndDate)

	rec = doRequest(t, srv, http.MethodGet, "/api/weeks?year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	_, srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetrics_CountsDistributions(t *testing.T) {
	// GIVEN: One accepted and one rejected distribution
	_, srv := newTestServer(t)
	createCampaign(t, srv, springCampaign("c1"))
	doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/distribute", map[string]any{"strategy": "even"})
	doRequest(t, srv, http.MethodPost, "/api/campaigns/c1/distribute", map[string]any{
		"strategy": "manual", "percentages": map[string]any{"S9": 1},
	})

	// WHEN: Scraping /metrics
	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)

	// THEN: Both outcomes and the request counter are exported
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.True(t, strings.Contains(out, `budget_distributions_total{outcome="ok",strategy="even"} 1`), out)
	assert.True(t, strings.Contains(out, `budget_distributions_total{outcome="rejected",strategy="manual"} 1`), out)
	assert.Contains(t, out, `url="/api/campaigns/{id}/distribute"`)
}
