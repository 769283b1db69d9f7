package budget

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)

	// PercentageTolerance bounds |total - 100| for a split to count as balanced.
	PercentageTolerance = decimal.RequireFromString("0.01")
)

// PercentageCheck is the result of ValidateTotal.
type PercentageCheck struct {
	Valid bool
	Total decimal.Decimal
}

// ValidateTotal reports whether the percentages total 100 within
// PercentageTolerance. An empty map is valid: nothing has been allocated yet.
func ValidateTotal(percentages map[string]decimal.Decimal) PercentageCheck {
	total := decimal.Zero
	for _, p := range percentages {
		total = total.Add(p)
	}
	if len(percentages) == 0 {
		return PercentageCheck{Valid: true, Total: total}
	}
	return PercentageCheck{
		Valid: total.Sub(hundred).Abs().LessThan(PercentageTolerance),
		Total: total,
	}
}

// RemainingHeadroom returns 100 minus the sum of existing splits.
func RemainingHeadroom(existing []decimal.Decimal) decimal.Decimal {
	h := hundred
	for _, p := range existing {
		h = h.Sub(p)
	}
	return h
}

// ValidateAdSetPercentage checks that candidate lies in (0, headroom], where
// headroom is computed from the sibling splits (excluding the ad set being
// edited).
func ValidateAdSetPercentage(candidate decimal.Decimal, siblings []decimal.Decimal) error {
	if !candidate.IsPositive() || candidate.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	headroom := RemainingHeadroom(siblings)
	if candidate.GreaterThan(headroom) {
		return &HeadroomError{Requested: candidate, Headroom: headroom}
	}
	return nil
}

// SiblingPercentages returns the percentages of adSets, skipping exclude.
// Pass an empty exclude when adding a new ad set.
func SiblingPercentages(adSets []AdSet, exclude AdSetID) []decimal.Decimal {
	var out []decimal.Decimal
	for _, a := range adSets {
		if exclude != "" && a.ID == exclude {
			continue
		}
		out = append(out, a.BudgetPercentage)
	}
	return out
}
