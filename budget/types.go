/*
Package budget provides the budget distribution and reconciliation engine.

PURPOSE:
  This package contains the pure calculation core of the media budget
  planner. Campaigns carry a total budget and per-week planned/actual maps;
  ad sets subdivide a campaign by percentage. The engine splits budgets
  across weeks, validates percentage splits, rolls planned and actual spend
  up the campaign tree and classifies planned-vs-actual variance.

KEY CONCEPTS IN THIS FILE (types.go):
  - Campaign: A spend unit with total budget and weekly planned/actual maps
  - AdSet: A percentage-of-parent subdivision of a campaign
  - BudgetConfiguration: A named, reusable weekly percentage template
  - WeekAmounts: The map<weekLabel, amount> shape shared with storage

DESIGN PRINCIPLES:
  1. Purity: No I/O, no hidden state. Every function returns a new map.
  2. Precision: Uses decimal.Decimal so sums hold exactly, not to epsilon
  3. Derivation: Ad-set planned budgets are derived, never stored
  4. Advisory invariants: Soft invariants surface as warnings, not errors

USAGE:
  weeks := budget.GenerateWeeks(2025)
  labels := budget.Labels(budget.WeeksForSpan(weeks, start, 28))
  alloc, err := budget.Distribute(decimal.NewFromInt(10000), labels, budget.StrategyFrontLoaded, nil)

SEE ALSO:
  - distribution.go: Strategies and rounding-residual correction
  - rollup.go: Planned/actual aggregation
  - variance.go: Planned-vs-actual classification
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WEEK AMOUNTS - The map<weekLabel, amount> shape
// =============================================================================

// WeekAmounts maps a week label (e.g. "S1") to an amount.
type WeekAmounts map[string]decimal.Decimal

// Sum returns the total of all values.
func (w WeekAmounts) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range w {
		total = total.Add(v)
	}
	return total
}

// Get returns the amount for a week, treating a missing week as zero.
func (w WeekAmounts) Get(week string) decimal.Decimal {
	if v, ok := w[week]; ok {
		return v
	}
	return decimal.Zero
}

// Clone returns an independent copy. A nil map clones to an empty map.
func (w WeekAmounts) Clone() WeekAmounts {
	out := make(WeekAmounts, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// WeekNotes maps a week label to a free-text note.
type WeekNotes map[string]string

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CampaignID string
type AdSetID string
type ConfigurationID string
type ClientID string

// =============================================================================
// ENUMS
// =============================================================================

// MediaChannel is the channel a campaign spends on.
type MediaChannel string

const (
	ChannelSocial  MediaChannel = "social"
	ChannelSearch  MediaChannel = "search"
	ChannelDisplay MediaChannel = "display"
	ChannelVideo   MediaChannel = "video"
	ChannelAudio   MediaChannel = "audio"
	ChannelPrint   MediaChannel = "print"
	ChannelOOH     MediaChannel = "ooh"
	ChannelTV      MediaChannel = "tv"
	ChannelRadio   MediaChannel = "radio"
	ChannelOther   MediaChannel = "other"
)

// MediaChannels lists every known channel, in display order.
var MediaChannels = []MediaChannel{
	ChannelSocial, ChannelSearch, ChannelDisplay, ChannelVideo, ChannelAudio,
	ChannelPrint, ChannelOOH, ChannelTV, ChannelRadio, ChannelOther,
}

// Valid reports whether c is a known channel.
func (c MediaChannel) Valid() bool {
	for _, known := range MediaChannels {
		if c == known {
			return true
		}
	}
	return false
}

// Objective is the marketing objective of a campaign.
type Objective string

const (
	ObjectiveAwareness     Objective = "awareness"
	ObjectiveConsideration Objective = "consideration"
	ObjectiveConversion    Objective = "conversion"
	ObjectiveTraffic       Objective = "traffic"
	ObjectiveEngagement    Objective = "engagement"
	ObjectiveLeads         Objective = "leads"
)

var Objectives = []Objective{
	ObjectiveAwareness, ObjectiveConsideration, ObjectiveConversion,
	ObjectiveTraffic, ObjectiveEngagement, ObjectiveLeads,
}

func (o Objective) Valid() bool {
	for _, known := range Objectives {
		if o == known {
			return true
		}
	}
	return false
}

// =============================================================================
// CAMPAIGN
// =============================================================================

// Campaign is a marketing spend unit.
//
// Soft invariant: WeeklyBudgets.Sum() == TotalBudget within BalanceTolerance.
// Violations are reported by CampaignWarnings, never rejected on write.
// ActualBudgets is only changed by direct per-week edits, never by the engine.
type Campaign struct {
	ID             CampaignID
	ClientID       ClientID
	MediaChannel   MediaChannel
	Name           string
	Objective      Objective
	TargetAudience string
	StartDate      time.Time
	DurationDays   int
	TotalBudget    decimal.Decimal
	WeeklyBudgets  WeekAmounts
	ActualBudgets  WeekAmounts
	WeeklyNotes    WeekNotes
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EndDate returns the last day the campaign runs (inclusive).
func (c Campaign) EndDate() time.Time {
	if c.DurationDays <= 0 {
		return c.StartDate
	}
	return c.StartDate.AddDate(0, 0, c.DurationDays-1)
}

// =============================================================================
// AD SET
// =============================================================================

// AdSet is a named percentage subdivision of a single campaign.
//
// The planned weekly budget of an ad set is always derived from the parent
// (see AdSetPlannedForWeek). Only actual spend is stored per ad set.
type AdSet struct {
	ID               AdSetID
	CampaignID       CampaignID
	Name             string
	BudgetPercentage decimal.Decimal
	Description      string
	TargetAudience   string
	ActualBudgets    WeekAmounts
	WeeklyNotes      WeekNotes
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// =============================================================================
// BUDGET CONFIGURATION - Reusable weekly percentage template
// =============================================================================

// BudgetConfiguration is a named percentage map used as a manual
// distribution preset. Which one is "active" is decided by the caller and
// passed explicitly into DistributeWithConfiguration.
type BudgetConfiguration struct {
	ID          ConfigurationID
	Name        string
	Percentages WeekAmounts
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
