/*
auditor.go - Periodic balance audit

PURPOSE:
  Walks every campaign tree on an interval and collects soft-invariant
  warnings (weekly sums off the total, ad sets over or under 100%,
  negative amounts). Warnings never block writes; the auditor only
  reports them.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Audits once immediately on Start
  - Keeps the last report in memory for GET /api/audit
  - Publishes the warning count as the budget_audit_warnings gauge

USAGE:
  auditor := NewBalanceAuditor(store, metrics)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - budget/warnings.go: CampaignWarnings
  - dashboard.go: GetAudit, RunAudit endpoints
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warp/media-budget/budget"
)

// AuditReport is the outcome of one audit pass.
type AuditReport struct {
	RanAt     time.Time
	Campaigns int
	Warnings  []budget.Warning
	Err       error
}

// BalanceAuditor runs CampaignWarnings over the whole store.
type BalanceAuditor struct {
	Store    budget.Store
	Metrics  *Metrics
	Interval time.Duration
	Enabled  bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastMu  sync.RWMutex
	last    *AuditReport
	started bool
}

// NewBalanceAuditor creates an auditor with a one hour interval.
func NewBalanceAuditor(store budget.Store, metrics *Metrics) *BalanceAuditor {
	return &BalanceAuditor{
		Store:    store,
		Metrics:  metrics,
		Interval: time.Hour,
		Enabled:  true,
	}
}

// Start begins the periodic audit.
func (a *BalanceAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		log.Info().Msg("balance auditor disabled, not starting")
		return
	}
	if a.started {
		return
	}

	a.ticker = time.NewTicker(a.Interval)
	a.stop = make(chan struct{})
	a.started = true
	a.wg.Add(1)

	go a.run()

	log.Info().Dur("interval", a.Interval).Msg("balance auditor started")
}

// Stop stops the auditor and waits for an in-flight pass.
func (a *BalanceAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.started = false
	log.Info().Msg("balance auditor stopped")
}

func (a *BalanceAuditor) run() {
	defer a.wg.Done()

	a.RunNow(context.Background())

	for {
		select {
		case <-a.ticker.C:
			a.RunNow(context.Background())
		case <-a.stop:
			return
		}
	}
}

// RunNow audits every campaign and stores the report.
func (a *BalanceAuditor) RunNow(ctx context.Context) AuditReport {
	report := AuditReport{RanAt: time.Now().UTC()}

	campaigns, err := a.Store.ListCampaigns(ctx, budget.CampaignFilter{})
	if err != nil {
		report.Err = err
		log.Error().Err(err).Msg("balance audit: listing campaigns")
		a.publish(report)
		return report
	}

	for _, c := range campaigns {
		adSets, err := a.Store.ListAdSets(ctx, c.ID)
		if err != nil {
			log.Error().Err(err).Str("campaign", string(c.ID)).Msg("balance audit: listing ad sets")
			continue
		}
		report.Campaigns++
		report.Warnings = append(report.Warnings, budget.CampaignWarnings(c, adSets)...)
	}

	for _, w := range report.Warnings {
		log.Warn().
			Str("code", string(w.Code)).
			Str("campaign", string(w.CampaignID)).
			Str("ad_set", string(w.AdSetID)).
			Str("week", w.Week).
			Msg(w.Message)
	}
	log.Info().Int("campaigns", report.Campaigns).Int("warnings", len(report.Warnings)).Msg("balance audit completed")

	a.publish(report)
	return report
}

// LastReport returns the most recent report, or nil before the first pass.
func (a *BalanceAuditor) LastReport() *AuditReport {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	if a.last == nil {
		return nil
	}
	r := *a.last
	return &r
}

func (a *BalanceAuditor) publish(r AuditReport) {
	a.lastMu.Lock()
	a.last = &r
	a.lastMu.Unlock()
	if a.Metrics != nil && r.Err == nil {
		a.Metrics.SetAuditWarnings(len(r.Warnings))
	}
}
