/*
store.go - Persistence interface for campaigns, ad sets and configurations

PURPOSE:
  Defines the interface between the engine and the storage collaborator.
  The engine itself never calls a Store; the API layer fetches entities,
  runs the pure functions and writes the resulting maps back verbatim.

KEY INTERFACES:
  Store:   Campaign, ad set and configuration persistence plus per-cell edits
  TxStore: Atomic multi-write (distribute result + campaign update)

WRITE MODEL:
  Single writer, last write wins. Per-cell edits (one week of one map) are
  individual writes. A distribute result is written with
  ReplaceWeeklyBudgets after the caller merged it into the full map, so
  weeks outside the campaign span are never clobbered.

CASCADE:
  DeleteCampaign removes the campaign's ad sets as well.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with JSON columns for weekly maps
  - budget/store/memory.go: In-memory for testing

SEE ALSO:
  - distribution.go: MergeAllocation before ReplaceWeeklyBudgets
*/
package budget

import (
	"context"

	"github.com/shopspring/decimal"
)

// WeekMap selects which per-week map of an entity an edit targets.
type WeekMap string

const (
	MapPlanned WeekMap = "planned"
	MapActual  WeekMap = "actual"
)

// CampaignFilter narrows ListCampaigns. Zero values match everything.
type CampaignFilter struct {
	ClientID     ClientID
	MediaChannel MediaChannel
}

// Matches reports whether c passes the filter.
func (f CampaignFilter) Matches(c Campaign) bool {
	if f.ClientID != "" && c.ClientID != f.ClientID {
		return false
	}
	if f.MediaChannel != "" && c.MediaChannel != f.MediaChannel {
		return false
	}
	return true
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// SaveCampaign inserts or replaces a campaign row.
	SaveCampaign(ctx context.Context, c Campaign) error
	GetCampaign(ctx context.Context, id CampaignID) (Campaign, error)
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]Campaign, error)
	// DeleteCampaign removes the campaign and its ad sets.
	DeleteCampaign(ctx context.Context, id CampaignID) error

	// SetCampaignWeek writes one week of the planned or actual map.
	SetCampaignWeek(ctx context.Context, id CampaignID, m WeekMap, week string, amount decimal.Decimal) error
	SetCampaignNote(ctx context.Context, id CampaignID, week, note string) error
	// ReplaceWeeklyBudgets overwrites the whole planned map.
	ReplaceWeeklyBudgets(ctx context.Context, id CampaignID, weekly WeekAmounts) error

	SaveAdSet(ctx context.Context, a AdSet) error
	GetAdSet(ctx context.Context, id AdSetID) (AdSet, error)
	ListAdSets(ctx context.Context, campaignID CampaignID) ([]AdSet, error)
	DeleteAdSet(ctx context.Context, id AdSetID) error
	SetAdSetActual(ctx context.Context, id AdSetID, week string, amount decimal.Decimal) error
	SetAdSetNote(ctx context.Context, id AdSetID, week, note string) error

	SaveConfiguration(ctx context.Context, cfg BudgetConfiguration) error
	GetConfiguration(ctx context.Context, id ConfigurationID) (BudgetConfiguration, error)
	ListConfigurations(ctx context.Context) ([]BudgetConfiguration, error)
	DeleteConfiguration(ctx context.Context, id ConfigurationID) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
