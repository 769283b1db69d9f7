/*
errors.go - Centralized error types for the budget engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine never panics for bad input; every failure is a returned error.

ERROR CATEGORIES:
  1. Strategy input errors - manual/global without percentages, unknown strategy
  2. Validation errors - unbalanced percentages, headroom violations
  3. Store errors - missing rows

USAGE:
  alloc, err := budget.Distribute(total, labels, budget.StrategyManual, pcts)
  if errors.Is(err, budget.ErrUnbalancedPercentages) {
      // tell the user the split does not reach 100%
  }

SEE ALSO:
  - distribution.go: Returns strategy and percentage errors
  - percentage.go: Returns headroom errors
  - store.go: Returns not-found errors
*/
package budget

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingPercentages is returned when a manual or global distribution
	// is requested without a percentage map.
	ErrMissingPercentages = errors.New("percentages required for manual/global strategy")

	// ErrUnbalancedPercentages is returned when percentages do not total 100
	// within PercentageTolerance.
	ErrUnbalancedPercentages = errors.New("percentages do not sum to 100")

	// ErrUnknownStrategy is returned for a strategy outside the closed set.
	ErrUnknownStrategy = errors.New("unknown distribution strategy")

	// ErrNegativeBudget is returned when a total budget is below zero.
	ErrNegativeBudget = errors.New("budget must not be negative")

	// ErrNegativePercentage is returned when a percentage is below zero.
	ErrNegativePercentage = errors.New("percentage must not be negative")

	// ErrInvalidPercentage is returned when an ad-set percentage is not in (0, 100].
	ErrInvalidPercentage = errors.New("percentage must be greater than 0 and at most 100")

	// ErrExceedsHeadroom is returned when a new split exceeds 100 minus its siblings.
	ErrExceedsHeadroom = errors.New("percentage exceeds remaining headroom")

	ErrCampaignNotFound      = errors.New("campaign not found")
	ErrAdSetNotFound         = errors.New("ad set not found")
	ErrConfigurationNotFound = errors.New("budget configuration not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PercentageTotalError reports the total that failed validation.
type PercentageTotalError struct {
	Total decimal.Decimal
}

func (e *PercentageTotalError) Error() string {
	return fmt.Sprintf("percentages sum to %s, expected 100", e.Total.StringFixed(2))
}

func (e *PercentageTotalError) Unwrap() error {
	return ErrUnbalancedPercentages
}

// HeadroomError reports a split that does not fit next to its siblings.
type HeadroomError struct {
	Requested decimal.Decimal
	Headroom  decimal.Decimal
}

func (e *HeadroomError) Error() string {
	return fmt.Sprintf("percentage %s exceeds remaining headroom %s",
		e.Requested.String(), e.Headroom.String())
}

func (e *HeadroomError) Unwrap() error {
	return ErrExceedsHeadroom
}

// StrategyError wraps an unknown or unusable strategy name.
type StrategyError struct {
	Strategy string
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("unknown distribution strategy %q", e.Strategy)
}

func (e *StrategyError) Unwrap() error {
	return ErrUnknownStrategy
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingPercentages) ||
		errors.Is(err, ErrUnbalancedPercentages) ||
		errors.Is(err, ErrUnknownStrategy) ||
		errors.Is(err, ErrNegativeBudget) ||
		errors.Is(err, ErrNegativePercentage) ||
		errors.Is(err, ErrInvalidPercentage) ||
		errors.Is(err, ErrExceedsHeadroom)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrAdSetNotFound) ||
		errors.Is(err, ErrConfigurationNotFound)
}
