package budget_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/media-budget/budget"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func labels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = budget.WeekLabel(i + 1)
	}
	return out
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	msg := fmt.Sprintf("want %s, got %s", want, got.String())
	if len(msgAndArgs) > 0 {
		if format, ok := msgAndArgs[0].(string); ok {
			msg += ": " + fmt.Sprintf(format, msgAndArgs[1:]...)
		}
	}
	assert.True(t, d(want).Equal(got), msg)
}

func evenPercentages(weeks []string, pcts ...string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(weeks))
	for i, w := range weeks {
		out[w] = d(pcts[i])
	}
	return out
}

// =============================================================================
// STRATEGY TESTS
// =============================================================================

func TestDistribute_EvenRemainderGoesToLastWeek(t *testing.T) {
	// GIVEN: 100 over 3 weeks
	// THEN: 33, 33, 34
	alloc, err := budget.Distribute(d("100"), labels(3), budget.StrategyEven, nil)
	require.NoError(t, err)

	assertDecimal(t, "33", alloc["S1"])
	assertDecimal(t, "33", alloc["S2"])
	assertDecimal(t, "34", alloc["S3"])
	assertDecimal(t, "100", alloc.Sum())
}

func TestDistribute_EvenWithCents(t *testing.T) {
	alloc, err := budget.Distribute(d("100.50"), labels(3), budget.StrategyEven, nil)
	require.NoError(t, err)

	assertDecimal(t, "33", alloc["S1"])
	assertDecimal(t, "34.5", alloc["S3"])
	assertDecimal(t, "100.50", alloc.Sum())
}

func TestDistribute_EvenIsDeterministic(t *testing.T) {
	weeks := labels(7)
	a, err := budget.Distribute(d("12345.67"), weeks, budget.StrategyEven, nil)
	require.NoError(t, err)
	b, err := budget.Distribute(d("12345.67"), weeks, budget.StrategyEven, nil)
	require.NoError(t, err)

	require.Len(t, b, len(a))
	for k, v := range a {
		assert.True(t, v.Equal(b[k]), "week %s differs", k)
	}
}

func TestDistribute_FrontLoadedExact(t *testing.T) {
	// GIVEN: 10000 over 4 weeks, weights 4,3,2,1
	alloc, err := budget.Distribute(d("10000"), labels(4), budget.StrategyFrontLoaded, nil)
	require.NoError(t, err)

	assertDecimal(t, "4000", alloc["S1"])
	assertDecimal(t, "3000", alloc["S2"])
	assertDecimal(t, "2000", alloc["S3"])
	assertDecimal(t, "1000", alloc["S4"])
	assertDecimal(t, "10000", alloc.Sum())
}

func TestDistribute_BackLoaded(t *testing.T) {
	alloc, err := budget.Distribute(d("10000"), labels(4), budget.StrategyBackLoaded, nil)
	require.NoError(t, err)

	assertDecimal(t, "1000", alloc["S1"])
	assertDecimal(t, "4000", alloc["S4"])
}

func TestDistribute_BellCurvePeaksInTheMiddle(t *testing.T) {
	// n=5, mid=2: weights 3,4,5,4,3 (sum 19)
	alloc, err := budget.Distribute(d("1900"), labels(5), budget.StrategyBellCurve, nil)
	require.NoError(t, err)

	assertDecimal(t, "300", alloc["S1"])
	assertDecimal(t, "400", alloc["S2"])
	assertDecimal(t, "500", alloc["S3"])
	assertDecimal(t, "400", alloc["S4"])
	assertDecimal(t, "300", alloc["S5"])
}

func TestDistribute_ResidualGoesToLargestWeek(t *testing.T) {
	// 10 over 7 bell-curve weeks (weights 4,5,6,7,6,5,4): rounded amounts
	// sum to 9.99, the missing cent lands on the peak week S4.
	alloc, err := budget.Distribute(d("10"), labels(7), budget.StrategyBellCurve, nil)
	require.NoError(t, err)

	assertDecimal(t, "10", alloc.Sum())
	assertDecimal(t, "1.90", alloc["S4"])
	peak := alloc["S4"]
	for w, v := range alloc {
		assert.True(t, peak.GreaterThanOrEqual(v), "peak S4 should be >= %s", w)
	}
}

func TestDistribute_ManualFollowsPercentages(t *testing.T) {
	weeks := labels(4)
	pcts := evenPercentages(weeks, "10", "20", "30", "40")

	alloc, err := budget.Distribute(d("5000"), weeks, budget.StrategyManual, pcts)
	require.NoError(t, err)

	for _, w := range weeks {
		ratio := alloc[w].Div(d("5000"))
		want := pcts[w].Div(d("100"))
		assert.True(t, ratio.Sub(want).Abs().LessThan(d("0.0001")), "week %s", w)
	}
	assertDecimal(t, "5000", alloc.Sum())
}

func TestDistribute_ManualThirdsCorrectsRounding(t *testing.T) {
	weeks := labels(3)
	pcts := evenPercentages(weeks, "33.333", "33.333", "33.334")

	alloc, err := budget.Distribute(d("100"), weeks, budget.StrategyManual, pcts)
	require.NoError(t, err)
	assertDecimal(t, "100", alloc.Sum())
}

func TestDistribute_ManualMissingWeekIsZero(t *testing.T) {
	weeks := labels(3)
	pcts := map[string]decimal.Decimal{"S1": d("50"), "S3": d("50")}

	alloc, err := budget.Distribute(d("800"), weeks, budget.StrategyManual, pcts)
	require.NoError(t, err)
	assertDecimal(t, "0", alloc["S2"])
	assertDecimal(t, "400", alloc["S3"])
}

// =============================================================================
// ERROR CONTRACT
// =============================================================================

func TestDistribute_EmptyWeeksIsNotAnError(t *testing.T) {
	for _, s := range budget.Strategies {
		var pcts map[string]decimal.Decimal
		if s.RequiresPercentages() {
			pcts = map[string]decimal.Decimal{}
		}
		alloc, err := budget.Distribute(d("1000"), nil, s, pcts)
		require.NoError(t, err, "strategy %s", s)
		assert.Empty(t, alloc)
		assert.NotNil(t, alloc)
	}
}

func TestDistribute_ManualWithoutPercentagesFails(t *testing.T) {
	_, err := budget.Distribute(d("1000"), labels(4), budget.StrategyManual, nil)
	assert.ErrorIs(t, err, budget.ErrMissingPercentages)

	_, err = budget.Distribute(d("1000"), labels(4), budget.StrategyGlobal, nil)
	assert.ErrorIs(t, err, budget.ErrMissingPercentages)

	_, err = budget.DistributeWithConfiguration(d("1000"), labels(4), nil)
	assert.ErrorIs(t, err, budget.ErrMissingPercentages)
}

func TestDistribute_UnbalancedPercentagesRejected(t *testing.T) {
	weeks := labels(2)
	_, err := budget.Distribute(d("1000"), weeks, budget.StrategyManual, evenPercentages(weeks, "50", "40"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, budget.ErrUnbalancedPercentages))
	var pe *budget.PercentageTotalError
	require.ErrorAs(t, err, &pe)
	assertDecimal(t, "90", pe.Total)

	_, err = budget.Distribute(d("1000"), weeks, budget.StrategyManual, map[string]decimal.Decimal{})
	assert.ErrorIs(t, err, budget.ErrUnbalancedPercentages, "empty split cannot reach the total")
}

func TestDistribute_NegativeInputsRejected(t *testing.T) {
	_, err := budget.Distribute(d("-1"), labels(2), budget.StrategyEven, nil)
	assert.ErrorIs(t, err, budget.ErrNegativeBudget)

	weeks := labels(2)
	_, err = budget.Distribute(d("10"), weeks, budget.StrategyManual, evenPercentages(weeks, "120", "-20"))
	assert.ErrorIs(t, err, budget.ErrNegativePercentage)
}

func TestDistribute_UnknownStrategy(t *testing.T) {
	_, err := budget.Distribute(d("10"), labels(2), budget.DistributionStrategy("zigzag"), nil)
	assert.ErrorIs(t, err, budget.ErrUnknownStrategy)
	assert.True(t, budget.IsClientError(err))
}

func TestDistributeWithConfiguration_UsesPresetPercentages(t *testing.T) {
	weeks := labels(2)
	cfg := &budget.BudgetConfiguration{ID: "cfg", Name: "70/30", Percentages: evenPercentages(weeks, "70", "30")}

	alloc, err := budget.DistributeWithConfiguration(d("1000"), weeks, cfg)
	require.NoError(t, err)
	assertDecimal(t, "700", alloc["S1"])
	assertDecimal(t, "300", alloc["S2"])
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestDistribute_SumAndNonNegativity(t *testing.T) {
	totals := []string{"0", "0.01", "0.05", "1", "99.99", "100", "1234.56", "1000000"}
	for _, total := range totals {
		for n := 1; n <= 52; n += 3 {
			weeks := labels(n)
			pcts := make(map[string]decimal.Decimal, n)
			share := d("100").Div(decimal.NewFromInt(int64(n))).Round(4)
			for i, w := range weeks {
				pcts[w] = share
				if i == n-1 {
					pcts[w] = d("100").Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
				}
			}

			for _, s := range budget.Strategies {
				alloc, err := budget.Distribute(d(total), weeks, s, pcts)
				require.NoError(t, err, "total=%s n=%d strategy=%s", total, n, s)
				assert.Len(t, alloc, n)
				assertDecimal(t, total, alloc.Sum(), "total=%s n=%d strategy=%s", total, n, s)
				for w, v := range alloc {
					assert.False(t, v.IsNegative(), "total=%s n=%d strategy=%s week=%s", total, n, s, w)
				}
			}
		}
	}
}

func TestDistribute_DoesNotMutateInputs(t *testing.T) {
	weeks := labels(3)
	pcts := evenPercentages(weeks, "20", "30", "50")
	before := budget.WeekAmounts(pcts).Clone()

	_, err := budget.Distribute(d("999"), weeks, budget.StrategyManual, pcts)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2", "S3"}, weeks)
	for k, v := range before {
		assert.True(t, v.Equal(pcts[k]))
	}
}

func TestMergeAllocation_KeepsWeeksOutsidePartial(t *testing.T) {
	existing := budget.WeekAmounts{"S1": d("10"), "S2": d("20"), "S9": d("90")}
	partial := budget.WeekAmounts{"S1": d("15"), "S2": d("25")}

	merged := budget.MergeAllocation(existing, partial)
	assertDecimal(t, "15", merged["S1"])
	assertDecimal(t, "90", merged["S9"])
	assertDecimal(t, "10", existing["S1"], "existing must not change")
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want budget.DistributionStrategy
		err  bool
	}{
		{"even", budget.StrategyEven, false},
		{"front_loaded", budget.StrategyFrontLoaded, false},
		{" Bell-Curve ", budget.StrategyBellCurve, false},
		{"global", budget.StrategyGlobal, false},
		{"random", "", true},
	}
	for _, tt := range tests {
		got, err := budget.ParseStrategy(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, budget.ErrUnknownStrategy, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
