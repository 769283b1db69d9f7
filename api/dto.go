/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. The budget package has
  no JSON tags; everything on the wire goes through these types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Amounts and percentages are decimal.Decimal. They are written as JSON
  strings ("1250.50") so no precision is lost; requests accept either
  strings or numbers.

VALIDATION:
  Request types carry go-playground/validator tags, checked by decodeAndValidate
  in validation.go. Business rules (headroom, balanced percentages) are left
  to the budget package.

SEE ALSO:
  - handlers.go: Uses these types
  - validation.go: Custom tags media_channel, objective, strategy
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/media-budget/budget"
)

const dateLayout = "2006-01-02"

// =============================================================================
// WEEKS
// =============================================================================

// WeekDTO is one column of the planning grid.
type WeekDTO struct {
	WeekNumber int    `json:"week_number"`
	WeekLabel  string `json:"week_label"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

func toWeekDTOs(weeks []budget.Week) []WeekDTO {
	out := make([]WeekDTO, len(weeks))
	for i, w := range weeks {
		out[i] = WeekDTO{
			WeekNumber: w.WeekNumber,
			WeekLabel:  w.WeekLabel,
			StartDate:  w.StartDate.Format(dateLayout),
			EndDate:    w.EndDate.Format(dateLayout),
		}
	}
	return out
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

// CampaignRequest creates or updates a campaign. On create, Strategy (with
// Percentages or ConfigurationID for manual/global) pre-distributes the
// total over the campaign span.
type CampaignRequest struct {
	ID              string                     `json:"id" validate:"omitempty,max=64"`
	ClientID        string                     `json:"client_id" validate:"max=64"`
	MediaChannel    string                     `json:"media_channel" validate:"required,media_channel"`
	Name            string                     `json:"name" validate:"required,max=200"`
	Objective       string                     `json:"objective" validate:"omitempty,objective"`
	TargetAudience  string                     `json:"target_audience" validate:"max=1000"`
	StartDate       string                     `json:"start_date" validate:"required,datetime=2006-01-02"`
	DurationDays    int                        `json:"duration_days" validate:"required,min=1,max=366"`
	TotalBudget     *decimal.Decimal           `json:"total_budget" validate:"required"`
	Strategy        string                     `json:"strategy,omitempty" validate:"omitempty,strategy"`
	Percentages     map[string]decimal.Decimal `json:"percentages,omitempty"`
	ConfigurationID string                     `json:"configuration_id,omitempty"`
}

// CampaignDTO represents a campaign in API responses.
type CampaignDTO struct {
	ID             string                     `json:"id"`
	ClientID       string                     `json:"client_id,omitempty"`
	MediaChannel   string                     `json:"media_channel"`
	Name           string                     `json:"name"`
	Objective      string                     `json:"objective,omitempty"`
	TargetAudience string                     `json:"target_audience,omitempty"`
	StartDate      string                     `json:"start_date"`
	EndDate        string                     `json:"end_date"`
	DurationDays   int                        `json:"duration_days"`
	TotalBudget    decimal.Decimal            `json:"total_budget"`
	Weeks          []string                   `json:"weeks"`
	WeeklyBudgets  map[string]decimal.Decimal `json:"weekly_budgets"`
	ActualBudgets  map[string]decimal.Decimal `json:"actual_budgets"`
	WeeklyNotes    map[string]string          `json:"weekly_notes"`
	TotalPlanned   decimal.Decimal            `json:"total_planned"`
	TotalActual    decimal.Decimal            `json:"total_actual"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

func toCampaignDTO(c budget.Campaign) CampaignDTO {
	return CampaignDTO{
		ID:             string(c.ID),
		ClientID:       string(c.ClientID),
		MediaChannel:   string(c.MediaChannel),
		Name:           c.Name,
		Objective:      string(c.Objective),
		TargetAudience: c.TargetAudience,
		StartDate:      c.StartDate.Format(dateLayout),
		EndDate:        c.EndDate().Format(dateLayout),
		DurationDays:   c.DurationDays,
		TotalBudget:    c.TotalBudget,
		Weeks:          budget.Labels(budget.CampaignWeeks(c)),
		WeeklyBudgets:  amountsOrEmpty(c.WeeklyBudgets),
		ActualBudgets:  amountsOrEmpty(c.ActualBudgets),
		WeeklyNotes:    notesOrEmpty(c.WeeklyNotes),
		TotalPlanned:   budget.TotalPlanned(c),
		TotalActual:    budget.TotalActual(c),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// DistributeRequest runs a distribution over the campaign span.
type DistributeRequest struct {
	Strategy        string                     `json:"strategy" validate:"required,strategy"`
	Percentages     map[string]decimal.Decimal `json:"percentages,omitempty"`
	ConfigurationID string                     `json:"configuration_id,omitempty"`
}

// DistributeResponse is the stored campaign plus the fresh allocation.
type DistributeResponse struct {
	Strategy   string                     `json:"strategy"`
	Allocation map[string]decimal.Decimal `json:"allocation"`
	Campaign   CampaignDTO                `json:"campaign"`
}

// WeekCellRequest edits one week of a campaign. Absent fields are untouched;
// an empty note clears the note.
type WeekCellRequest struct {
	Planned *decimal.Decimal `json:"planned,omitempty"`
	Actual  *decimal.Decimal `json:"actual,omitempty"`
	Note    *string          `json:"note,omitempty" validate:"omitempty,max=500"`
}

// =============================================================================
// AD SETS
// =============================================================================

// AdSetRequest creates or updates an ad set.
type AdSetRequest struct {
	ID               string           `json:"id" validate:"omitempty,max=64"`
	Name             string           `json:"name" validate:"required,max=200"`
	BudgetPercentage *decimal.Decimal `json:"budget_percentage" validate:"required"`
	Description      string           `json:"description" validate:"max=1000"`
	TargetAudience   string           `json:"target_audience" validate:"max=1000"`
}

// AdSetCellRequest edits one week of an ad set. Planned is derived, so only
// actual spend and notes can be written.
type AdSetCellRequest struct {
	Actual *decimal.Decimal `json:"actual,omitempty"`
	Note   *string          `json:"note,omitempty" validate:"omitempty,max=500"`
}

// AdSetDTO represents an ad set with its derived weekly plan.
type AdSetDTO struct {
	ID               string                     `json:"id"`
	CampaignID       string                     `json:"campaign_id"`
	Name             string                     `json:"name"`
	BudgetPercentage decimal.Decimal            `json:"budget_percentage"`
	Description      string                     `json:"description,omitempty"`
	TargetAudience   string                     `json:"target_audience,omitempty"`
	PlannedBudgets   map[string]decimal.Decimal `json:"planned_budgets"`
	ActualBudgets    map[string]decimal.Decimal `json:"actual_budgets"`
	WeeklyNotes      map[string]string          `json:"weekly_notes"`
	TotalPlanned     decimal.Decimal            `json:"total_planned"`
	TotalActual      decimal.Decimal            `json:"total_actual"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

func toAdSetDTO(c budget.Campaign, a budget.AdSet) AdSetDTO {
	planned := budget.AdSetPlannedWeekly(c, a)
	return AdSetDTO{
		ID:               string(a.ID),
		CampaignID:       string(a.CampaignID),
		Name:             a.Name,
		BudgetPercentage: a.BudgetPercentage,
		Description:      a.Description,
		TargetAudience:   a.TargetAudience,
		PlannedBudgets:   planned,
		ActualBudgets:    amountsOrEmpty(a.ActualBudgets),
		WeeklyNotes:      notesOrEmpty(a.WeeklyNotes),
		TotalPlanned:     planned.Sum(),
		TotalActual:      a.ActualBudgets.Sum(),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// =============================================================================
// CONFIGURATIONS
// =============================================================================

// ConfigurationDTO represents a budget configuration.
type ConfigurationDTO struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Percentages map[string]decimal.Decimal `json:"percentages"`
	Total       decimal.Decimal            `json:"total"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

func toConfigurationDTO(cfg budget.BudgetConfiguration) ConfigurationDTO {
	return ConfigurationDTO{
		ID:          string(cfg.ID),
		Name:        cfg.Name,
		Percentages: amountsOrEmpty(cfg.Percentages),
		Total:       cfg.Percentages.Sum(),
		CreatedAt:   cfg.CreatedAt,
		UpdatedAt:   cfg.UpdatedAt,
	}
}

// ValidatePercentagesRequest checks a percentage map without storing it.
type ValidatePercentagesRequest struct {
	Percentages map[string]decimal.Decimal `json:"percentages" validate:"required"`
}

// PercentageCheckDTO is the validator's verdict.
type PercentageCheckDTO struct {
	Valid      bool            `json:"valid"`
	Total      decimal.Decimal `json:"total"`
	Difference decimal.Decimal `json:"difference"`
}

// =============================================================================
// ROLLUPS AND VARIANCE
// =============================================================================

// WeekFiguresDTO is one planned/actual pair.
type WeekFiguresDTO struct {
	Week    string          `json:"week"`
	Planned decimal.Decimal `json:"planned"`
	Actual  decimal.Decimal `json:"actual"`
}

// AllocationDTO compares the weekly plan with the total budget.
type AllocationDTO struct {
	Allocated  decimal.Decimal `json:"allocated"`
	Difference decimal.Decimal `json:"difference"`
	Percentage decimal.Decimal `json:"percentage"`
	Balanced   bool            `json:"balanced"`
}

// AdSetRollupDTO is one ad set inside a campaign rollup.
type AdSetRollupDTO struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	BudgetPercentage decimal.Decimal  `json:"budget_percentage"`
	Weeks            []WeekFiguresDTO `json:"weeks"`
	TotalPlanned     decimal.Decimal  `json:"total_planned"`
	TotalActual      decimal.Decimal  `json:"total_actual"`
}

// RollupResponse is the full campaign tree.
type RollupResponse struct {
	Campaign            CampaignDTO                `json:"campaign"`
	Weeks               []WeekFiguresDTO           `json:"weeks"`
	TotalPlanned        decimal.Decimal            `json:"total_planned"`
	TotalActual         decimal.Decimal            `json:"total_actual"`
	Allocation          AllocationDTO              `json:"allocation"`
	AdSets              []AdSetRollupDTO           `json:"ad_sets"`
	AdSetsActual        decimal.Decimal            `json:"ad_sets_actual"`
	AdSetsActualByWeek  map[string]decimal.Decimal `json:"ad_sets_actual_by_week"`
	AllocatedPercentage decimal.Decimal            `json:"allocated_percentage"`
	Headroom            decimal.Decimal            `json:"headroom"`
	Warnings            []WarningDTO               `json:"warnings"`
}

func toWeekFiguresDTOs(in []budget.WeekFigures) []WeekFiguresDTO {
	out := make([]WeekFiguresDTO, len(in))
	for i, f := range in {
		out[i] = WeekFiguresDTO{Week: f.Week, Planned: f.Planned, Actual: f.Actual}
	}
	return out
}

func toAllocationDTO(a budget.Allocation) AllocationDTO {
	return AllocationDTO{
		Allocated:  a.Allocated,
		Difference: a.Difference,
		Percentage: a.Percentage,
		Balanced:   a.Balanced,
	}
}

func toRollupResponse(r budget.CampaignRollup, warnings []budget.Warning) RollupResponse {
	resp := RollupResponse{
		Campaign:            toCampaignDTO(r.Campaign),
		Weeks:               toWeekFiguresDTOs(r.Weeks),
		TotalPlanned:        r.TotalPlanned,
		TotalActual:         r.TotalActual,
		Allocation:          toAllocationDTO(r.Allocation),
		AdSets:              make([]AdSetRollupDTO, 0, len(r.AdSets)),
		AdSetsActual:        r.AdSetsActual,
		AdSetsActualByWeek:  amountsOrEmpty(r.AdSetsActualByWeek),
		AllocatedPercentage: r.AllocatedPercentage,
		Headroom:            r.Headroom,
		Warnings:            toWarningDTOs(warnings),
	}
	for _, a := range r.AdSets {
		resp.AdSets = append(resp.AdSets, AdSetRollupDTO{
			ID:               string(a.AdSet.ID),
			Name:             a.AdSet.Name,
			BudgetPercentage: a.AdSet.BudgetPercentage,
			Weeks:            toWeekFiguresDTOs(a.Weeks),
			TotalPlanned:     a.TotalPlanned,
			TotalActual:      a.TotalActual,
		})
	}
	return resp
}

// VarianceDTO classifies one planned/actual pair.
type VarianceDTO struct {
	Week     string          `json:"week,omitempty"`
	Planned  decimal.Decimal `json:"planned"`
	Actual   decimal.Decimal `json:"actual"`
	State    string          `json:"state"`
	DeltaAbs decimal.Decimal `json:"delta_abs"`
	DeltaPct decimal.Decimal `json:"delta_pct"`
}

// VarianceRowDTO is one row of the variance grid: the campaign or an ad set.
type VarianceRowDTO struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Kind  string        `json:"kind"`
	Weeks []VarianceDTO `json:"weeks"`
	Total VarianceDTO   `json:"total"`
}

// VarianceResponse is the per-week variance grid for a campaign tree.
type VarianceResponse struct {
	CampaignID string           `json:"campaign_id"`
	Rows       []VarianceRowDTO `json:"rows"`
}

func toVarianceDTO(week string, planned, actual decimal.Decimal, v budget.Variance) VarianceDTO {
	return VarianceDTO{
		Week:     week,
		Planned:  planned,
		Actual:   actual,
		State:    string(v.State),
		DeltaAbs: v.DeltaAbs,
		DeltaPct: v.DeltaPct.Round(2),
	}
}

// =============================================================================
// WARNINGS, DASHBOARD, AUDIT
// =============================================================================

// WarningDTO is a soft-invariant violation.
type WarningDTO struct {
	Code       string `json:"code"`
	CampaignID string `json:"campaign_id"`
	AdSetID    string `json:"ad_set_id,omitempty"`
	Week       string `json:"week,omitempty"`
	Message    string `json:"message"`
}

func toWarningDTOs(ws []budget.Warning) []WarningDTO {
	out := make([]WarningDTO, len(ws))
	for i, w := range ws {
		out[i] = WarningDTO{
			Code:       string(w.Code),
			CampaignID: string(w.CampaignID),
			AdSetID:    string(w.AdSetID),
			Week:       w.Week,
			Message:    w.Message,
		}
	}
	return out
}

// TotalsDTO is a planned/actual pair for a group.
type TotalsDTO struct {
	Key     string          `json:"key"`
	Planned decimal.Decimal `json:"planned"`
	Actual  decimal.Decimal `json:"actual"`
}

// DashboardResponse is the fleet-wide fan-out.
type DashboardResponse struct {
	ClientID      string          `json:"client_id,omitempty"`
	CampaignCount int             `json:"campaign_count"`
	TotalBudget   decimal.Decimal `json:"total_budget"`
	TotalPlanned  decimal.Decimal `json:"total_planned"`
	TotalActual   decimal.Decimal `json:"total_actual"`
	ByChannel     []TotalsDTO     `json:"by_channel"`
	ByWeek        []TotalsDTO     `json:"by_week"`
	WarningCount  int             `json:"warning_count"`
}

// AuditReportDTO is the latest balance audit.
type AuditReportDTO struct {
	RanAt     *time.Time   `json:"ran_at,omitempty"`
	Campaigns int          `json:"campaigns"`
	Warnings  []WarningDTO `json:"warnings"`
	Error     string       `json:"error,omitempty"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func amountsOrEmpty(m budget.WeekAmounts) map[string]decimal.Decimal {
	if m == nil {
		return map[string]decimal.Decimal{}
	}
	return m
}

func notesOrEmpty(n budget.WeekNotes) map[string]string {
	if n == nil {
		return map[string]string{}
	}
	return n
}
