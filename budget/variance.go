package budget

import "github.com/shopspring/decimal"

// VarianceState labels how actual spend relates to plan.
type VarianceState string

const (
	// VarianceNone: nothing spent yet.
	VarianceNone VarianceState = "none"
	// VarianceWithin: spent at most GraceRatio of plan.
	VarianceWithin VarianceState = "within"
	// VarianceUnder: above GraceRatio of plan but not over it.
	VarianceUnder VarianceState = "under"
	// VarianceOver: spent more than planned.
	VarianceOver VarianceState = "over"
)

// GraceRatio is the share of plan up to which spend counts as "within".
// Every caller classifies through Classify so the band is the same everywhere.
var GraceRatio = decimal.RequireFromString("0.98")

// Variance is the classification of one planned/actual pair.
type Variance struct {
	State    VarianceState
	DeltaAbs decimal.Decimal // actual - planned
	DeltaPct decimal.Decimal // (actual/planned - 1) * 100, zero when planned is zero
}

// Classify compares actual spend with plan. It is presentation-only and
// holds no state.
func Classify(planned, actual decimal.Decimal) Variance {
	v := Variance{
		DeltaAbs: actual.Sub(planned),
		DeltaPct: decimal.Zero,
	}
	if planned.IsPositive() {
		v.DeltaPct = actual.Div(planned).Sub(decimal.NewFromInt(1)).Mul(hundred)
	}

	switch {
	case actual.IsZero():
		v.State = VarianceNone
	case actual.GreaterThan(planned):
		v.State = VarianceOver
	case actual.LessThanOrEqual(planned.Mul(GraceRatio)):
		v.State = VarianceWithin
	default:
		v.State = VarianceUnder
	}
	return v
}

// ClassifyWeeks classifies every week present in planned or actual.
func ClassifyWeeks(planned, actual WeekAmounts) map[string]Variance {
	out := make(map[string]Variance, len(planned))
	for w, p := range planned {
		out[w] = Classify(p, actual.Get(w))
	}
	for w, a := range actual {
		if _, ok := out[w]; !ok {
			out[w] = Classify(decimal.Zero, a)
		}
	}
	return out
}
