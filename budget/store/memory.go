// Package store provides budget.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/media-budget/budget"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu             sync.RWMutex
	campaigns      map[budget.CampaignID]budget.Campaign
	adSets         map[budget.AdSetID]budget.AdSet
	configurations map[budget.ConfigurationID]budget.BudgetConfiguration
}

func NewMemory() *Memory {
	return &Memory{
		campaigns:      make(map[budget.CampaignID]budget.Campaign),
		adSets:         make(map[budget.AdSetID]budget.AdSet),
		configurations: make(map[budget.ConfigurationID]budget.BudgetConfiguration),
	}
}

// Every entity is copied on the way in and out so callers never share maps
// with the store.

func cloneNotes(n budget.WeekNotes) budget.WeekNotes {
	out := make(budget.WeekNotes, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}

// setNote returns a copy of n with week set; an empty note clears the week.
func setNote(n budget.WeekNotes, week, note string) budget.WeekNotes {
	out := cloneNotes(n)
	if note == "" {
		delete(out, week)
	} else {
		out[week] = note
	}
	return out
}

func cloneCampaign(c budget.Campaign) budget.Campaign {
	c.WeeklyBudgets = c.WeeklyBudgets.Clone()
	c.ActualBudgets = c.ActualBudgets.Clone()
	c.WeeklyNotes = cloneNotes(c.WeeklyNotes)
	return c
}

func cloneAdSet(a budget.AdSet) budget.AdSet {
	a.ActualBudgets = a.ActualBudgets.Clone()
	a.WeeklyNotes = cloneNotes(a.WeeklyNotes)
	return a
}

func cloneConfiguration(cfg budget.BudgetConfiguration) budget.BudgetConfiguration {
	cfg.Percentages = cfg.Percentages.Clone()
	return cfg
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

func (m *Memory) SaveCampaign(_ context.Context, c budget.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCampaignLocked(c)
	return nil
}

func (m *Memory) saveCampaignLocked(c budget.Campaign) {
	now := time.Now().UTC()
	if existing, ok := m.campaigns[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.campaigns[c.ID] = cloneCampaign(c)
}

func (m *Memory) GetCampaign(_ context.Context, id budget.CampaignID) (budget.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return budget.Campaign{}, budget.ErrCampaignNotFound
	}
	return cloneCampaign(c), nil
}

func (m *Memory) ListCampaigns(_ context.Context, filter budget.CampaignFilter) ([]budget.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.Campaign
	for _, c := range m.campaigns {
		if filter.Matches(c) {
			out = append(out, cloneCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteCampaign(_ context.Context, id budget.CampaignID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCampaignLocked(id)
}

func (m *Memory) deleteCampaignLocked(id budget.CampaignID) error {
	if _, ok := m.campaigns[id]; !ok {
		return budget.ErrCampaignNotFound
	}
	delete(m.campaigns, id)
	for aid, a := range m.adSets {
		if a.CampaignID == id {
			delete(m.adSets, aid)
		}
	}
	return nil
}

func (m *Memory) SetCampaignWeek(_ context.Context, id budget.CampaignID, which budget.WeekMap, week string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCampaignWeekLocked(id, which, week, amount)
}

func (m *Memory) setCampaignWeekLocked(id budget.CampaignID, which budget.WeekMap, week string, amount decimal.Decimal) error {
	c, ok := m.campaigns[id]
	if !ok {
		return budget.ErrCampaignNotFound
	}
	if which == budget.MapActual {
		c.ActualBudgets = c.ActualBudgets.Clone()
		c.ActualBudgets[week] = amount
	} else {
		c.WeeklyBudgets = c.WeeklyBudgets.Clone()
		c.WeeklyBudgets[week] = amount
	}
	c.UpdatedAt = time.Now().UTC()
	m.campaigns[id] = c
	return nil
}

func (m *Memory) SetCampaignNote(_ context.Context, id budget.CampaignID, week, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return budget.ErrCampaignNotFound
	}
	c.WeeklyNotes = setNote(c.WeeklyNotes, week, note)
	m.campaigns[id] = c
	return nil
}

func (m *Memory) ReplaceWeeklyBudgets(_ context.Context, id budget.CampaignID, weekly budget.WeekAmounts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceWeeklyLocked(id, weekly)
}

func (m *Memory) replaceWeeklyLocked(id budget.CampaignID, weekly budget.WeekAmounts) error {
	c, ok := m.campaigns[id]
	if !ok {
		return budget.ErrCampaignNotFound
	}
	c.WeeklyBudgets = weekly.Clone()
	c.UpdatedAt = time.Now().UTC()
	m.campaigns[id] = c
	return nil
}

// =============================================================================
// AD SETS
// =============================================================================

func (m *Memory) SaveAdSet(_ context.Context, a budget.AdSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAdSetLocked(a)
}

func (m *Memory) saveAdSetLocked(a budget.AdSet) error {
	if _, ok := m.campaigns[a.CampaignID]; !ok {
		return budget.ErrCampaignNotFound
	}
	now := time.Now().UTC()
	if existing, ok := m.adSets[a.ID]; ok {
		a.CreatedAt = existing.CreatedAt
	} else if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	m.adSets[a.ID] = cloneAdSet(a)
	return nil
}

func (m *Memory) GetAdSet(_ context.Context, id budget.AdSetID) (budget.AdSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adSets[id]
	if !ok {
		return budget.AdSet{}, budget.ErrAdSetNotFound
	}
	return cloneAdSet(a), nil
}

func (m *Memory) ListAdSets(_ context.Context, campaignID budget.CampaignID) ([]budget.AdSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []budget.AdSet
	for _, a := range m.adSets {
		if a.CampaignID == campaignID {
			out = append(out, cloneAdSet(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteAdSet(_ context.Context, id budget.AdSetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.adSets[id]; !ok {
		return budget.ErrAdSetNotFound
	}
	delete(m.adSets, id)
	return nil
}

func (m *Memory) SetAdSetActual(_ context.Context, id budget.AdSetID, week string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adSets[id]
	if !ok {
		return budget.ErrAdSetNotFound
	}
	a.ActualBudgets = a.ActualBudgets.Clone()
	a.ActualBudgets[week] = amount
	a.UpdatedAt = time.Now().UTC()
	m.adSets[id] = a
	return nil
}

func (m *Memory) SetAdSetNote(_ context.Context, id budget.AdSetID, week, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adSets[id]
	if !ok {
		return budget.ErrAdSetNotFound
	}
	a.WeeklyNotes = setNote(a.WeeklyNotes, week, note)
	m.adSets[id] = a
	return nil
}

// =============================================================================
// CONFIGURATIONS
// =============================================================================

func (m *Memory) SaveConfiguration(_ context.Context, cfg budget.BudgetConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := m.configurations[cfg.ID]; ok {
		cfg.CreatedAt = existing.CreatedAt
	} else if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	m.configurations[cfg.ID] = cloneConfiguration(cfg)
	return nil
}

func (m *Memory) GetConfiguration(_ context.Context, id budget.ConfigurationID) (budget.BudgetConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configurations[id]
	if !ok {
		return budget.BudgetConfiguration{}, budget.ErrConfigurationNotFound
	}
	return cloneConfiguration(cfg), nil
}

func (m *Memory) ListConfigurations(_ context.Context) ([]budget.BudgetConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]budget.BudgetConfiguration, 0, len(m.configurations))
	for _, cfg := range m.configurations {
		out = append(out, cloneConfiguration(cfg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteConfiguration(_ context.Context, id budget.ConfigurationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configurations[id]; !ok {
		return budget.ErrConfigurationNotFound
	}
	delete(m.configurations, id)
	return nil
}

// Reset drops every entity.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns = make(map[budget.CampaignID]budget.Campaign)
	m.adSets = make(map[budget.AdSetID]budget.AdSet)
	m.configurations = make(map[budget.ConfigurationID]budget.BudgetConfiguration)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// fn must use the Store it is given; calling the outer TxMemory would deadlock.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(budget.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()

	// The view shares the live maps under its own mutex; the outer lock is
	// already held for the duration of fn.
	view := &Memory{
		campaigns:      tm.campaigns,
		adSets:         tm.adSets,
		configurations: tm.configurations,
	}
	if err := fn(view); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	campaigns      map[budget.CampaignID]budget.Campaign
	adSets         map[budget.AdSetID]budget.AdSet
	configurations map[budget.ConfigurationID]budget.BudgetConfiguration
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		campaigns:      make(map[budget.CampaignID]budget.Campaign, len(tm.campaigns)),
		adSets:         make(map[budget.AdSetID]budget.AdSet, len(tm.adSets)),
		configurations: make(map[budget.ConfigurationID]budget.BudgetConfiguration, len(tm.configurations)),
	}
	for k, v := range tm.campaigns {
		s.campaigns[k] = cloneCampaign(v)
	}
	for k, v := range tm.adSets {
		s.adSets[k] = cloneAdSet(v)
	}
	for k, v := range tm.configurations {
		s.configurations[k] = cloneConfiguration(v)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.campaigns = s.campaigns
	tm.adSets = s.adSets
	tm.configurations = s.configurations
}
