package budget

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceTolerance bounds |sum(weekly) - total| for the soft campaign invariant.
var BalanceTolerance = decimal.RequireFromString("0.01")

type WarningCode string

const (
	WarnWeeklySumMismatch    WarningCode = "weekly_sum_mismatch"
	WarnAdSetsOverAllocated  WarningCode = "adsets_over_allocated"
	WarnAdSetsUnderAllocated WarningCode = "adsets_under_allocated"
	WarnNegativeAmount       WarningCode = "negative_amount"
)

// Warning is an advisory soft-invariant violation. Warnings never block writes.
type Warning struct {
	Code       WarningCode
	CampaignID CampaignID
	AdSetID    AdSetID
	Week       string
	Message    string
}

// CampaignWarnings checks the soft invariants of a campaign tree:
//   - weekly planned budgets sum to the total within BalanceTolerance
//   - ad-set percentages do not exceed 100 (and, when ad sets exist, reach it)
//   - no stored amount is negative
func CampaignWarnings(c Campaign, adSets []AdSet) []Warning {
	var out []Warning

	planned := TotalPlanned(c)
	if planned.Sub(c.TotalBudget).Abs().GreaterThanOrEqual(BalanceTolerance) {
		out = append(out, Warning{
			Code:       WarnWeeklySumMismatch,
			CampaignID: c.ID,
			Message: fmt.Sprintf("weekly budgets sum to %s, total budget is %s",
				planned.StringFixed(2), c.TotalBudget.StringFixed(2)),
		})
	}

	if len(adSets) > 0 {
		pct := AllocatedPercentage(adSets)
		switch {
		case pct.GreaterThan(hundred):
			out = append(out, Warning{
				Code:       WarnAdSetsOverAllocated,
				CampaignID: c.ID,
				Message:    fmt.Sprintf("ad sets allocate %s%% of the campaign", pct.String()),
			})
		case hundred.Sub(pct).GreaterThanOrEqual(PercentageTolerance):
			out = append(out, Warning{
				Code:       WarnAdSetsUnderAllocated,
				CampaignID: c.ID,
				Message:    fmt.Sprintf("ad sets allocate %s%%, %s%% unassigned", pct.String(), hundred.Sub(pct).String()),
			})
		}
	}

	out = append(out, negativeWarnings(c.ID, "", c.WeeklyBudgets)...)
	out = append(out, negativeWarnings(c.ID, "", c.ActualBudgets)...)
	for _, a := range adSets {
		out = append(out, negativeWarnings(c.ID, a.ID, a.ActualBudgets)...)
	}
	return out
}

func negativeWarnings(cid CampaignID, aid AdSetID, amounts WeekAmounts) []Warning {
	var weeks []string
	for w, v := range amounts {
		if v.IsNegative() {
			weeks = append(weeks, w)
		}
	}
	SortWeekLabels(weeks)

	var out []Warning
	for _, w := range weeks {
		out = append(out, Warning{
			Code:       WarnNegativeAmount,
			CampaignID: cid,
			AdSetID:    aid,
			Week:       w,
			Message:    fmt.Sprintf("negative amount %s", amounts[w].StringFixed(2)),
		})
	}
	return out
}
