/*
Package sqlite provides a SQLite-backed implementation of budget.Store.

PURPOSE:
  Persists campaigns, ad sets and budget configurations. Weekly maps are
  JSON columns ({"S1": 1000, "S2": 250.5}) written back verbatim from what
  the engine produced; the same layout works on PostgreSQL with jsonb.

KEY TABLES:
  campaigns:             One row per campaign, weekly_budgets/actual_budgets/weekly_notes JSON
  ad_sets:               One row per ad set, FK to campaigns with ON DELETE CASCADE
  budget_configurations: Named percentage templates

WRITE MODEL:
  Per-cell edits read-modify-write a single JSON column inside a
  transaction. SaveCampaign is an upsert (never REPLACE, which would
  cascade-delete the ad sets).

CONCURRENCY:
  The pool is limited to one connection. SQLite serializes writers anyway,
  and ":memory:" databases are per-connection.

USAGE:
  store, err := sqlite.New("./data/budget.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - budget/store.go: Interface definitions
  - budget/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/media-budget/budget"
)

const dateLayout = "2006-01-02"

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements budget.TxStore using SQLite.
type Store struct {
	queries
	sqlDB *sql.DB
}

// queries holds every statement; it runs against the pool or a transaction.
type queries struct {
	db dbtx
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{db: db}, sqlDB: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		media_channel TEXT NOT NULL,
		name TEXT NOT NULL,
		objective TEXT NOT NULL DEFAULT '',
		target_audience TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		duration_days INTEGER NOT NULL DEFAULT 0,
		total_budget TEXT NOT NULL,
		weekly_budgets TEXT NOT NULL DEFAULT '{}',
		actual_budgets TEXT NOT NULL DEFAULT '{}',
		weekly_notes TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_campaigns_client
		ON campaigns(client_id);
	CREATE INDEX IF NOT EXISTS idx_campaigns_channel
		ON campaigns(media_channel);

	CREATE TABLE IF NOT EXISTS ad_sets (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		budget_percentage TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		target_audience TEXT NOT NULL DEFAULT '',
		actual_budgets TEXT NOT NULL DEFAULT '{}',
		weekly_notes TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ad_sets_campaign
		ON ad_sets(campaign_id);

	CREATE TABLE IF NOT EXISTS budget_configurations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		percentages TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.sqlDB.Exec(schema)
	return err
}

// WithTx executes fn within a database transaction. fn must use the Store
// it is given: the pool has a single connection.
func (s *Store) WithTx(ctx context.Context, fn func(budget.Store) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Reset deletes every row. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(st budget.Store) error {
		q := st.(*queries)
		for _, table := range []string{"ad_sets", "campaigns", "budget_configurations"} {
			if _, err := q.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

const campaignColumns = `id, client_id, media_channel, name, objective, target_audience,
	start_date, duration_days, total_budget, weekly_budgets, actual_budgets, weekly_notes,
	created_at, updated_at`

func (q *queries) SaveCampaign(ctx context.Context, c budget.Campaign) error {
	weekly, err := encodeAmounts(c.WeeklyBudgets)
	if err != nil {
		return err
	}
	actual, err := encodeAmounts(c.ActualBudgets)
	if err != nil {
		return err
	}
	notes, err := encodeNotes(c.WeeklyNotes)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			media_channel = excluded.media_channel,
			name = excluded.name,
			objective = excluded.objective,
			target_audience = excluded.target_audience,
			start_date = excluded.start_date,
			duration_days = excluded.duration_days,
			total_budget = excluded.total_budget,
			weekly_budgets = excluded.weekly_budgets,
			actual_budgets = excluded.actual_budgets,
			weekly_notes = excluded.weekly_notes,
			updated_at = excluded.updated_at
	`,
		c.ID, c.ClientID, c.MediaChannel, c.Name, c.Objective, c.TargetAudience,
		c.StartDate.Format(dateLayout), c.DurationDays, c.TotalBudget.String(),
		weekly, actual, notes, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	return nil
}

func (q *queries) GetCampaign(ctx context.Context, id budget.CampaignID) (budget.Campaign, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+campaignColumns+" FROM campaigns WHERE id = ?", id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.Campaign{}, budget.ErrCampaignNotFound
	}
	return c, err
}

func (q *queries) ListCampaigns(ctx context.Context, filter budget.CampaignFilter) ([]budget.Campaign, error) {
	query := "SELECT " + campaignColumns + " FROM campaigns"
	var where []string
	var args []any
	if filter.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.MediaChannel != "" {
		where = append(where, "media_channel = ?")
		args = append(args, filter.MediaChannel)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	var out []budget.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) DeleteCampaign(ctx context.Context, id budget.CampaignID) error {
	return q.deleteByID(ctx, "campaigns", string(id), budget.ErrCampaignNotFound)
}

func (q *queries) SetCampaignWeek(ctx context.Context, id budget.CampaignID, which budget.WeekMap, week string, amount decimal.Decimal) error {
	column := "weekly_budgets"
	if which == budget.MapActual {
		column = "actual_budgets"
	}
	return q.updateAmounts(ctx, "campaigns", column, string(id), budget.ErrCampaignNotFound, func(m budget.WeekAmounts) {
		m[week] = amount
	})
}

func (q *queries) SetCampaignNote(ctx context.Context, id budget.CampaignID, week, note string) error {
	return q.updateNotes(ctx, "campaigns", string(id), budget.ErrCampaignNotFound, week, note)
}

func (q *queries) ReplaceWeeklyBudgets(ctx context.Context, id budget.CampaignID, weekly budget.WeekAmounts) error {
	encoded, err := encodeAmounts(weekly)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE campaigns SET weekly_budgets = ?, updated_at = ? WHERE id = ?",
		encoded, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to replace weekly budgets: %w", err)
	}
	return requireRow(res, budget.ErrCampaignNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row scanner) (budget.Campaign, error) {
	var (
		c                     budget.Campaign
		startDate, total      string
		weekly, actual, notes string
		createdAt, updatedAt  string
	)
	err := row.Scan(
		&c.ID, &c.ClientID, &c.MediaChannel, &c.Name, &c.Objective, &c.TargetAudience,
		&startDate, &c.DurationDays, &total, &weekly, &actual, &notes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan campaign: %w", err)
	}

	c.StartDate, _ = time.Parse(dateLayout, startDate)
	c.TotalBudget = parseDecimal(total)
	if c.WeeklyBudgets, err = decodeAmounts(weekly); err != nil {
		return c, err
	}
	if c.ActualBudgets, err = decodeAmounts(actual); err != nil {
		return c, err
	}
	if c.WeeklyNotes, err = decodeNotes(notes); err != nil {
		return c, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return c, nil
}

// =============================================================================
// AD SETS
// =============================================================================

const adSetColumns = `id, campaign_id, name, budget_percentage, description, target_audience,
	actual_budgets, weekly_notes, created_at, updated_at`

func (q *queries) SaveAdSet(ctx context.Context, a budget.AdSet) error {
	actual, err := encodeAmounts(a.ActualBudgets)
	if err != nil {
		return err
	}
	notes, err := encodeNotes(a.WeeklyNotes)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO ad_sets (`+adSetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			campaign_id = excluded.campaign_id,
			name = excluded.name,
			budget_percentage = excluded.budget_percentage,
			description = excluded.description,
			target_audience = excluded.target_audience,
			actual_budgets = excluded.actual_budgets,
			weekly_notes = excluded.weekly_notes,
			updated_at = excluded.updated_at
	`,
		a.ID, a.CampaignID, a.Name, a.BudgetPercentage.String(), a.Description, a.TargetAudience,
		actual, notes, now, now,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return budget.ErrCampaignNotFound
		}
		return fmt.Errorf("failed to save ad set: %w", err)
	}
	return nil
}

func (q *queries) GetAdSet(ctx context.Context, id budget.AdSetID) (budget.AdSet, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+adSetColumns+" FROM ad_sets WHERE id = ?", id)
	a, err := scanAdSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.AdSet{}, budget.ErrAdSetNotFound
	}
	return a, err
}

func (q *queries) ListAdSets(ctx context.Context, campaignID budget.CampaignID) ([]budget.AdSet, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+adSetColumns+" FROM ad_sets WHERE campaign_id = ? ORDER BY created_at, rowid",
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad sets: %w", err)
	}
	defer rows.Close()

	var out []budget.AdSet
	for rows.Next() {
		a, err := scanAdSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *queries) DeleteAdSet(ctx context.Context, id budget.AdSetID) error {
	return q.deleteByID(ctx, "ad_sets", string(id), budget.ErrAdSetNotFound)
}

func (q *queries) SetAdSetActual(ctx context.Context, id budget.AdSetID, week string, amount decimal.Decimal) error {
	return q.updateAmounts(ctx, "ad_sets", "actual_budgets", string(id), budget.ErrAdSetNotFound, func(m budget.WeekAmounts) {
		m[week] = amount
	})
}

func (q *queries) SetAdSetNote(ctx context.Context, id budget.AdSetID, week, note string) error {
	return q.updateNotes(ctx, "ad_sets", string(id), budget.ErrAdSetNotFound, week, note)
}

func scanAdSet(row scanner) (budget.AdSet, error) {
	var (
		a                    budget.AdSet
		pct, actual, notes   string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&a.ID, &a.CampaignID, &a.Name, &pct, &a.Description, &a.TargetAudience,
		&actual, &notes, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("failed to scan ad set: %w", err)
	}

	a.BudgetPercentage = parseDecimal(pct)
	if a.ActualBudgets, err = decodeAmounts(actual); err != nil {
		return a, err
	}
	if a.WeeklyNotes, err = decodeNotes(notes); err != nil {
		return a, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return a, nil
}

// =============================================================================
// BUDGET CONFIGURATIONS
// =============================================================================

func (q *queries) SaveConfiguration(ctx context.Context, cfg budget.BudgetConfiguration) error {
	pcts, err := encodeAmounts(cfg.Percentages)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO budget_configurations (id, name, percentages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			percentages = excluded.percentages,
			updated_at = excluded.updated_at
	`, cfg.ID, cfg.Name, pcts, now, now)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

func (q *queries) GetConfiguration(ctx context.Context, id budget.ConfigurationID) (budget.BudgetConfiguration, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT id, name, percentages, created_at, updated_at FROM budget_configurations WHERE id = ?", id)
	cfg, err := scanConfiguration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return budget.BudgetConfiguration{}, budget.ErrConfigurationNotFound
	}
	return cfg, err
}

func (q *queries) ListConfigurations(ctx context.Context) ([]budget.BudgetConfiguration, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name, percentages, created_at, updated_at FROM budget_configurations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query configurations: %w", err)
	}
	defer rows.Close()

	var out []budget.BudgetConfiguration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (q *queries) DeleteConfiguration(ctx context.Context, id budget.ConfigurationID) error {
	return q.deleteByID(ctx, "budget_configurations", string(id), budget.ErrConfigurationNotFound)
}

func scanConfiguration(row scanner) (budget.BudgetConfiguration, error) {
	var (
		cfg                  budget.BudgetConfiguration
		pcts                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&cfg.ID, &cfg.Name, &pcts, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cfg, err
		}
		return cfg, fmt.Errorf("failed to scan configuration: %w", err)
	}
	var err error
	if cfg.Percentages, err = decodeAmounts(pcts); err != nil {
		return cfg, err
	}
	cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return cfg, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// updateAmounts read-modify-writes one JSON amount column of one row.
// Table and column names are constants from this file, never user input.
func (q *queries) updateAmounts(ctx context.Context, table, column, id string, notFound error, mutate func(budget.WeekAmounts)) error {
	var raw string
	err := q.db.QueryRowContext(ctx, "SELECT "+column+" FROM "+table+" WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s.%s: %w", table, column, err)
	}

	m, err := decodeAmounts(raw)
	if err != nil {
		return err
	}
	mutate(m)
	encoded, err := encodeAmounts(m)
	if err != nil {
		return err
	}

	_, err = q.db.ExecContext(ctx,
		"UPDATE "+table+" SET "+column+" = ?, updated_at = ? WHERE id = ?",
		encoded, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s.%s: %w", table, column, err)
	}
	return nil
}

func (q *queries) updateNotes(ctx context.Context, table, id string, notFound error, week, note string) error {
	var raw string
	err := q.db.QueryRowContext(ctx, "SELECT weekly_notes FROM "+table+" WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s notes: %w", table, err)
	}
	notes, err := decodeNotes(raw)
	if err != nil {
		return err
	}
	if note == "" {
		delete(notes, week)
	} else {
		notes[week] = note
	}
	encoded, err := encodeNotes(notes)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, "UPDATE "+table+" SET weekly_notes = ? WHERE id = ?", encoded, id)
	if err != nil {
		return fmt.Errorf("failed to write %s notes: %w", table, err)
	}
	return nil
}

func (q *queries) deleteByID(ctx context.Context, table, id string, notFound error) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return requireRow(res, notFound)
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// encodeAmounts writes amounts as JSON numbers, not quoted strings.
func encodeAmounts(m budget.WeekAmounts) (string, error) {
	out := make(map[string]json.Number, len(m))
	for k, v := range m {
		out[k] = json.Number(v.String())
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode amounts: %w", err)
	}
	return string(b), nil
}

func decodeAmounts(raw string) (budget.WeekAmounts, error) {
	m := budget.WeekAmounts{}
	if raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to decode amounts: %w", err)
	}
	return m, nil
}

func encodeNotes(n budget.WeekNotes) (string, error) {
	if n == nil {
		n = budget.WeekNotes{}
	}
	b, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to encode notes: %w", err)
	}
	return string(b), nil
}

func decodeNotes(raw string) (budget.WeekNotes, error) {
	n := budget.WeekNotes{}
	if raw == "" {
		return n, nil
	}
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("failed to decode notes: %w", err)
	}
	return n, nil
}

func parseDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
