/*
rollup.go - Planned and actual spend aggregation

PURPOSE:
  Aggregates planned and actual budgets over already-fetched entities. This
  answers "how much is planned/spent for this campaign, this ad set, this
  week, this channel?" for the dashboards.

KEY INSIGHT:
  An ad set's planned weekly budget is DERIVED, never stored:

    adSetPlanned(week) = campaign.WeeklyBudgets[week] * adSet.BudgetPercentage / 100

  Percentage is the single source of truth. Actual spend IS stored per ad
  set per week and is summed directly.

LEVELS:
  Campaign:  TotalPlanned, TotalActual, AllocatedVsPlanned
  Ad set:    AdSetPlannedForWeek, AdSetPlannedWeekly, AdSetsActualForWeek, AdSetsActualTotal
  Tree:      CampaignTree (campaign + all its ad sets, week by week)
  Fleet:     SumByChannel, SumByWeek, FleetTotals (plain fan-out)

SEE ALSO:
  - variance.go: Classifies the planned/actual pairs produced here
  - warnings.go: Soft-invariant checks built on these sums
*/
package budget

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceBand is the allowed |percentage - 100| for AllocatedVsPlanned to
// call a campaign balanced.
var BalanceBand = decimal.NewFromInt(1)

// =============================================================================
// CAMPAIGN LEVEL
// =============================================================================

// TotalPlanned sums the campaign's weekly planned budgets.
func TotalPlanned(c Campaign) decimal.Decimal { return c.WeeklyBudgets.Sum() }

// TotalActual sums the campaign's weekly actual spend.
func TotalActual(c Campaign) decimal.Decimal { return c.ActualBudgets.Sum() }

// Allocation compares what was distributed to weeks against the total.
type Allocation struct {
	Allocated  decimal.Decimal
	Difference decimal.Decimal // TotalBudget - Allocated
	Percentage decimal.Decimal // Allocated / TotalBudget * 100
	Balanced   bool
}

// AllocatedVsPlanned reports how much of the total budget is spread over
// weeks. With a zero total the percentage is 0 and the campaign counts as
// balanced only when nothing is allocated.
func AllocatedVsPlanned(c Campaign) Allocation {
	allocated := TotalPlanned(c)
	a := Allocation{
		Allocated:  allocated,
		Difference: c.TotalBudget.Sub(allocated),
		Percentage: decimal.Zero,
	}
	if c.TotalBudget.IsZero() {
		a.Balanced = allocated.IsZero()
		return a
	}
	a.Percentage = allocated.Div(c.TotalBudget).Mul(hundred)
	a.Balanced = a.Percentage.Sub(hundred).Abs().LessThan(BalanceBand)
	return a
}

// =============================================================================
// AD SET LEVEL
// =============================================================================

// AdSetPlannedForWeek derives the ad set's planned budget for week.
func AdSetPlannedForWeek(c Campaign, a AdSet, week string) decimal.Decimal {
	return c.WeeklyBudgets.Get(week).Mul(a.BudgetPercentage).Div(hundred)
}

// AdSetPlannedWeekly derives the ad set's planned budget for every week the
// campaign has a planned amount for.
func AdSetPlannedWeekly(c Campaign, a AdSet) WeekAmounts {
	out := make(WeekAmounts, len(c.WeeklyBudgets))
	for week := range c.WeeklyBudgets {
		out[week] = AdSetPlannedForWeek(c, a, week)
	}
	return out
}

// AdSetsActualForWeek sums the ad sets' actual spend for week. Missing
// entries count as zero.
func AdSetsActualForWeek(adSets []AdSet, week string) decimal.Decimal {
	total := decimal.Zero
	for _, a := range adSets {
		total = total.Add(a.ActualBudgets.Get(week))
	}
	return total
}

// AdSetsActualTotal sums every ad set's actual spend over all weeks.
func AdSetsActualTotal(adSets []AdSet) decimal.Decimal {
	total := decimal.Zero
	for _, a := range adSets {
		total = total.Add(a.ActualBudgets.Sum())
	}
	return total
}

// AllocatedPercentage sums the ad sets' budget percentages.
func AllocatedPercentage(adSets []AdSet) decimal.Decimal {
	total := decimal.Zero
	for _, a := range adSets {
		total = total.Add(a.BudgetPercentage)
	}
	return total
}

// =============================================================================
// CAMPAIGN TREE
// =============================================================================

// WeekFigures is the planned/actual pair for one week.
type WeekFigures struct {
	Week    string
	Planned decimal.Decimal
	Actual  decimal.Decimal
}

// AdSetRollup is one ad set's derived plan and recorded spend.
type AdSetRollup struct {
	AdSet        AdSet
	Weeks        []WeekFigures
	TotalPlanned decimal.Decimal
	TotalActual  decimal.Decimal
}

// CampaignRollup is a campaign with its ad sets rolled up week by week.
type CampaignRollup struct {
	Campaign            Campaign
	Weeks               []WeekFigures
	TotalPlanned        decimal.Decimal
	TotalActual         decimal.Decimal
	Allocation          Allocation
	AdSets              []AdSetRollup
	AdSetsActual        decimal.Decimal
	AdSetsActualByWeek  WeekAmounts
	AllocatedPercentage decimal.Decimal
	Headroom            decimal.Decimal
}

// CampaignTree rolls the campaign and its ad sets up week by week. Weeks
// are the union of planned and actual keys across the tree, in week order.
func CampaignTree(c Campaign, adSets []AdSet) CampaignRollup {
	weeks := weekUnion(c, adSets)

	r := CampaignRollup{
		Campaign:            c,
		TotalPlanned:        TotalPlanned(c),
		TotalActual:         TotalActual(c),
		Allocation:          AllocatedVsPlanned(c),
		AdSetsActual:        AdSetsActualTotal(adSets),
		AdSetsActualByWeek:  make(WeekAmounts, len(weeks)),
		AllocatedPercentage: AllocatedPercentage(adSets),
	}
	r.Headroom = hundred.Sub(r.AllocatedPercentage)

	for _, w := range weeks {
		r.Weeks = append(r.Weeks, WeekFigures{
			Week:    w,
			Planned: c.WeeklyBudgets.Get(w),
			Actual:  c.ActualBudgets.Get(w),
		})
		r.AdSetsActualByWeek[w] = AdSetsActualForWeek(adSets, w)
	}

	for _, a := range adSets {
		ar := AdSetRollup{AdSet: a, TotalPlanned: decimal.Zero, TotalActual: a.ActualBudgets.Sum()}
		for _, w := range weeks {
			planned := AdSetPlannedForWeek(c, a, w)
			ar.Weeks = append(ar.Weeks, WeekFigures{Week: w, Planned: planned, Actual: a.ActualBudgets.Get(w)})
			ar.TotalPlanned = ar.TotalPlanned.Add(planned)
		}
		r.AdSets = append(r.AdSets, ar)
	}
	return r
}

func weekUnion(c Campaign, adSets []AdSet) []string {
	seen := make(map[string]bool)
	for w := range c.WeeklyBudgets {
		seen[w] = true
	}
	for w := range c.ActualBudgets {
		seen[w] = true
	}
	for _, a := range adSets {
		for w := range a.ActualBudgets {
			seen[w] = true
		}
	}
	weeks := make([]string, 0, len(seen))
	for w := range seen {
		weeks = append(weeks, w)
	}
	SortWeekLabels(weeks)
	return weeks
}

// SortWeekLabels orders labels by week number; labels that do not parse
// sort after the grid, alphabetically.
func SortWeekLabels(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		a, errA := ParseWeekLabel(labels[i])
		b, errB := ParseWeekLabel(labels[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return labels[i] < labels[j]
		}
	})
}

// =============================================================================
// FLEET - Fan-out over many campaigns
// =============================================================================

// Totals is a planned/actual pair.
type Totals struct {
	Planned decimal.Decimal
	Actual  decimal.Decimal
}

func (t Totals) add(o Totals) Totals {
	return Totals{Planned: t.Planned.Add(o.Planned), Actual: t.Actual.Add(o.Actual)}
}

var zeroTotals = Totals{Planned: decimal.Zero, Actual: decimal.Zero}

// SumByChannel totals planned and actual spend per media channel.
func SumByChannel(campaigns []Campaign) map[MediaChannel]Totals {
	out := make(map[MediaChannel]Totals)
	for _, c := range campaigns {
		t, ok := out[c.MediaChannel]
		if !ok {
			t = zeroTotals
		}
		out[c.MediaChannel] = t.add(Totals{Planned: TotalPlanned(c), Actual: TotalActual(c)})
	}
	return out
}

// SumByWeek totals planned and actual spend per week label across campaigns.
func SumByWeek(campaigns []Campaign) map[string]Totals {
	out := make(map[string]Totals)
	get := func(w string) Totals {
		if t, ok := out[w]; ok {
			return t
		}
		return zeroTotals
	}
	for _, c := range campaigns {
		for w, v := range c.WeeklyBudgets {
			out[w] = get(w).add(Totals{Planned: v, Actual: decimal.Zero})
		}
		for w, v := range c.ActualBudgets {
			out[w] = get(w).add(Totals{Planned: decimal.Zero, Actual: v})
		}
	}
	return out
}

// FleetTotals sums every campaign's total budget, planned and actual spend.
func FleetTotals(campaigns []Campaign) (budgeted decimal.Decimal, totals Totals) {
	budgeted = decimal.Zero
	totals = zeroTotals
	for _, c := range campaigns {
		budgeted = budgeted.Add(c.TotalBudget)
		totals = totals.add(Totals{Planned: TotalPlanned(c), Actual: TotalActual(c)})
	}
	return budgeted, totals
}
