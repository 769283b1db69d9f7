/*
distribution.go - Splitting a total budget across weeks

PURPOSE:
  Computes a per-week allocation for a campaign from its total budget, the
  labels of the weeks it runs in, and a DistributionStrategy.

STRATEGIES:
  even:         floor(total / n) per week, the remainder goes to the LAST week
  front-loaded: weight(i) = n - i
  back-loaded:  weight(i) = i + 1
  bell-curve:   weight(i) = n - |i - floor(n/2)|
  manual:       amount(w) = round2(total * pct(w) / 100)
  global:       manual, with the percentages of a BudgetConfiguration

ROUNDING:
  Weighted and percentage amounts are rounded to 2 decimals. The residual
  (total - sum of rounded amounts) is always folded back so the result sums
  to exactly total:
    - positive residual: added to the week holding the largest allocation
    - negative residual: taken from the largest allocations first, never
      driving a week below zero
  Ties on "largest" go to the earliest week.

CONTRACT:
  - Empty labels: empty map, no error
  - manual/global without percentages: ErrMissingPercentages
  - manual/global with percentages off 100 (+/-0.01): ErrUnbalancedPercentages
  - Inputs are never mutated; callers merge the result (see MergeAllocation)

SEE ALSO:
  - percentage.go: ValidateTotal used by the manual path
  - week.go: WeeksForSpan/Labels produce the week labels
*/
package budget

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STRATEGY
// =============================================================================

// DistributionStrategy is the closed set of split algorithms.
type DistributionStrategy string

const (
	StrategyEven        DistributionStrategy = "even"
	StrategyFrontLoaded DistributionStrategy = "front-loaded"
	StrategyBackLoaded  DistributionStrategy = "back-loaded"
	StrategyBellCurve   DistributionStrategy = "bell-curve"
	StrategyManual      DistributionStrategy = "manual"
	StrategyGlobal      DistributionStrategy = "global"
)

var Strategies = []DistributionStrategy{
	StrategyEven, StrategyFrontLoaded, StrategyBackLoaded,
	StrategyBellCurve, StrategyManual, StrategyGlobal,
}

// ParseStrategy accepts the canonical names plus underscore spellings
// ("front_loaded", "bell_curve").
func ParseStrategy(s string) (DistributionStrategy, error) {
	norm := DistributionStrategy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, known := range Strategies {
		if norm == known {
			return known, nil
		}
	}
	return "", &StrategyError{Strategy: s}
}

// RequiresPercentages reports whether the strategy needs a percentage map.
func (s DistributionStrategy) RequiresPercentages() bool {
	return s == StrategyManual || s == StrategyGlobal
}

// =============================================================================
// DISTRIBUTE
// =============================================================================

// Distribute splits total across weekLabels using strategy. percentages is
// only read for manual and global.
func Distribute(total decimal.Decimal, weekLabels []string, strategy DistributionStrategy, percentages map[string]decimal.Decimal) (WeekAmounts, error) {
	if total.IsNegative() {
		return nil, ErrNegativeBudget
	}
	if strategy.RequiresPercentages() && percentages == nil {
		return nil, ErrMissingPercentages
	}
	weekLabels = uniqueLabels(weekLabels)
	if len(weekLabels) == 0 {
		if _, err := ParseStrategy(string(strategy)); err != nil {
			return nil, err
		}
		return WeekAmounts{}, nil
	}

	switch strategy {
	case StrategyEven:
		return distributeEven(total, weekLabels), nil
	case StrategyFrontLoaded, StrategyBackLoaded, StrategyBellCurve:
		return distributeWeighted(total, weekLabels, curveWeights(strategy, len(weekLabels))), nil
	case StrategyManual, StrategyGlobal:
		return distributeManual(total, weekLabels, percentages)
	default:
		return nil, &StrategyError{Strategy: string(strategy)}
	}
}

// DistributeWithConfiguration runs the global strategy with cfg's
// percentages. A nil cfg is a missing-percentages error.
func DistributeWithConfiguration(total decimal.Decimal, weekLabels []string, cfg *BudgetConfiguration) (WeekAmounts, error) {
	if cfg == nil {
		return nil, ErrMissingPercentages
	}
	pcts := cfg.Percentages
	if pcts == nil {
		pcts = WeekAmounts{}
	}
	return Distribute(total, weekLabels, StrategyGlobal, pcts)
}

// MergeAllocation returns a new map with partial's keys replacing those of
// existing. Weeks outside partial are kept untouched.
func MergeAllocation(existing, partial WeekAmounts) WeekAmounts {
	out := existing.Clone()
	for k, v := range partial {
		out[k] = v
	}
	return out
}

func distributeEven(total decimal.Decimal, labels []string) WeekAmounts {
	n := decimal.NewFromInt(int64(len(labels)))
	base := total.Div(n).Floor()
	out := make(WeekAmounts, len(labels))
	for _, l := range labels {
		out[l] = base
	}
	last := labels[len(labels)-1]
	out[last] = out[last].Add(total.Sub(base.Mul(n)))
	return out
}

func curveWeights(strategy DistributionStrategy, n int) []int64 {
	weights := make([]int64, n)
	mid := n / 2
	for i := range weights {
		switch strategy {
		case StrategyFrontLoaded:
			weights[i] = int64(n - i)
		case StrategyBackLoaded:
			weights[i] = int64(i + 1)
		case StrategyBellCurve:
			d := i - mid
			if d < 0 {
				d = -d
			}
			weights[i] = int64(n - d)
		}
	}
	return weights
}

func distributeWeighted(total decimal.Decimal, labels []string, weights []int64) WeekAmounts {
	var sum int64
	for _, w := range weights {
		sum += w
	}
	den := decimal.NewFromInt(sum)
	amounts := make([]decimal.Decimal, len(labels))
	for i, w := range weights {
		amounts[i] = total.Mul(decimal.NewFromInt(w)).Div(den).Round(2)
	}
	return toWeekAmounts(labels, correctResidual(total, amounts))
}

func distributeManual(total decimal.Decimal, labels []string, percentages map[string]decimal.Decimal) (WeekAmounts, error) {
	used := make(map[string]decimal.Decimal, len(labels))
	for _, l := range labels {
		p, ok := percentages[l]
		if !ok {
			p = decimal.Zero
		}
		if p.IsNegative() {
			return nil, ErrNegativePercentage
		}
		used[l] = p
	}
	// An empty split cannot reach the total, so it is unbalanced here even
	// though ValidateTotal accepts it as "nothing allocated yet".
	check := ValidateTotal(used)
	if !check.Valid || check.Total.IsZero() {
		return nil, &PercentageTotalError{Total: check.Total}
	}

	amounts := make([]decimal.Decimal, len(labels))
	for i, l := range labels {
		amounts[i] = total.Mul(used[l]).Div(hundred).Round(2)
	}
	return toWeekAmounts(labels, correctResidual(total, amounts)), nil
}

// correctResidual folds total - sum(amounts) back into amounts so the sum
// is exact and no amount goes negative.
func correctResidual(total decimal.Decimal, amounts []decimal.Decimal) []decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	residual := total.Sub(sum)
	if residual.IsZero() {
		return amounts
	}

	order := make([]int, len(amounts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return amounts[order[a]].GreaterThan(amounts[order[b]])
	})

	if residual.IsPositive() {
		amounts[order[0]] = amounts[order[0]].Add(residual)
		return amounts
	}

	owed := residual.Neg()
	for _, i := range order {
		if owed.IsZero() {
			break
		}
		take := decimal.Min(amounts[i], owed)
		amounts[i] = amounts[i].Sub(take)
		owed = owed.Sub(take)
	}
	return amounts
}

func uniqueLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func toWeekAmounts(labels []string, amounts []decimal.Decimal) WeekAmounts {
	out := make(WeekAmounts, len(labels))
	for i, l := range labels {
		out[l] = amounts[i]
	}
	return out
}
