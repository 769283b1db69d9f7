package budget_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/media-budget/budget"
)

func TestValidateTotal(t *testing.T) {
	tests := []struct {
		name  string
		pcts  map[string]decimal.Decimal
		valid bool
		total string
	}{
		{"empty is valid", map[string]decimal.Decimal{}, true, "0"},
		{"nil is valid", nil, true, "0"},
		{"exactly 100", map[string]decimal.Decimal{"a": d("60"), "b": d("40")}, true, "100"},
		{"within tolerance", map[string]decimal.Decimal{"a": d("33.333"), "b": d("33.333"), "c": d("33.333")}, true, "99.999"},
		{"at tolerance edge", map[string]decimal.Decimal{"a": d("99.99")}, false, "99.99"},
		{"over", map[string]decimal.Decimal{"a": d("60"), "b": d("41")}, false, "101"},
		{"under", map[string]decimal.Decimal{"a": d("50")}, false, "50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := budget.ValidateTotal(tt.pcts)
			assert.Equal(t, tt.valid, got.Valid)
			assertDecimal(t, tt.total, got.Total)
		})
	}
}

func TestRemainingHeadroom(t *testing.T) {
	assertDecimal(t, "30", budget.RemainingHeadroom([]decimal.Decimal{d("30"), d("40")}))
	assertDecimal(t, "100", budget.RemainingHeadroom(nil))
	assertDecimal(t, "-5", budget.RemainingHeadroom([]decimal.Decimal{d("60"), d("45")}))
}

func TestValidateAdSetPercentage_HeadroomBoundary(t *testing.T) {
	siblings := []decimal.Decimal{d("30"), d("40")}

	assert.NoError(t, budget.ValidateAdSetPercentage(d("30"), siblings), "exactly the headroom fits")
	assert.NoError(t, budget.ValidateAdSetPercentage(d("0.01"), siblings))

	err := budget.ValidateAdSetPercentage(d("30.01"), siblings)
	assert.ErrorIs(t, err, budget.ErrExceedsHeadroom)
	var he *budget.HeadroomError
	if assert.ErrorAs(t, err, &he) {
		assertDecimal(t, "30", he.Headroom)
		assertDecimal(t, "30.01", he.Requested)
	}
}

func TestValidateAdSetPercentage_Range(t *testing.T) {
	assert.ErrorIs(t, budget.ValidateAdSetPercentage(d("0"), nil), budget.ErrInvalidPercentage)
	assert.ErrorIs(t, budget.ValidateAdSetPercentage(d("-1"), nil), budget.ErrInvalidPercentage)
	assert.ErrorIs(t, budget.ValidateAdSetPercentage(d("100.5"), nil), budget.ErrInvalidPercentage)
	assert.NoError(t, budget.ValidateAdSetPercentage(d("100"), nil))
}

func TestSiblingPercentages_ExcludesEditedAdSet(t *testing.T) {
	adSets := []budget.AdSet{
		{ID: "a", BudgetPercentage: d("60")},
		{ID: "b", BudgetPercentage: d("40")},
	}
	// Editing "a" from 60 to 55 must be checked against b only.
	siblings := budget.SiblingPercentages(adSets, "a")
	assert.Len(t, siblings, 1)
	assert.NoError(t, budget.ValidateAdSetPercentage(d("55"), siblings))

	assert.Len(t, budget.SiblingPercentages(adSets, ""), 2)
}
