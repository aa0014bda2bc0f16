package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"rentwise/internal/domain"
	"rentwise/internal/ports"
)

const (
	transactionsTable = "gov_house_transactions"
	scheduleTable     = "scheduled_operations"
	statusTable       = "govt_api_status"

	maxSearchLimit    = 200
	defaultSearchRows = 20
	maxSampleRows     = 100
	maxTownRows       = 50
	defaultTownRows   = 10

	// FallbackCron is used when no schedule row has been persisted yet.
	FallbackCron = "0 2 * * *"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists transaction records, the sync schedule and the
// sync status row in Postgres.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.TransactionRepository = (*Repository)(nil)
var _ ports.ScheduleStore = (*Repository)(nil)
var _ ports.StatusStore = (*Repository)(nil)

// Open connects to Postgres and waits for it to accept connections.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres ping failed after retries: %w", err)
	}

	return db, nil
}

// NewRepository wires a sql.DB implementation.
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// EnsureSchema creates the tables if absent and additively backfills
// columns expected by the current schema. Safe to run on every start;
// never destructive.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + transactionsTable + ` (
			id           VARCHAR(64) PRIMARY KEY,
			approval_month VARCHAR(16),
			town         VARCHAR(64),
			block        VARCHAR(32),
			street_name  VARCHAR(128),
			flat_type    VARCHAR(32),
			monthly_rent INTEGER,
			source       VARCHAR(64),
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Backfill for tables created by an older schema version.
		`ALTER TABLE ` + transactionsTable + ` ADD COLUMN IF NOT EXISTS approval_month VARCHAR(16)`,
		`ALTER TABLE ` + transactionsTable + ` ADD COLUMN IF NOT EXISTS block VARCHAR(32)`,
		`ALTER TABLE ` + transactionsTable + ` ADD COLUMN IF NOT EXISTS street_name VARCHAR(128)`,
		`ALTER TABLE ` + transactionsTable + ` ADD COLUMN IF NOT EXISTS flat_type VARCHAR(32)`,
		`ALTER TABLE ` + transactionsTable + ` ADD COLUMN IF NOT EXISTS monthly_rent INTEGER`,
		`ALTER TABLE ` + transactionsTable + ` ADD COLUMN IF NOT EXISTS source VARCHAR(64)`,
		`CREATE INDEX IF NOT EXISTS idx_gov_town ON ` + transactionsTable + `(town)`,
		`CREATE INDEX IF NOT EXISTS idx_gov_flat_type ON ` + transactionsTable + `(flat_type)`,
		`CREATE INDEX IF NOT EXISTS idx_gov_monthly_rent ON ` + transactionsTable + `(monthly_rent)`,
		`CREATE TABLE IF NOT EXISTS ` + scheduleTable + ` (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			cron_expression VARCHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + statusTable + ` (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			current_status VARCHAR(32) NOT NULL,
			last_sync_time TIMESTAMPTZ
		)`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Upsert applies one row per record keyed by its id. On conflict every
// field except the primary key is overwritten and updated_at touched.
// Empty input is a no-op.
func (r *Repository) Upsert(ctx context.Context, records []domain.TransactionRecord, sourceLabel string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	const query = `INSERT INTO ` + transactionsTable + `
		(id, approval_month, town, block, street_name, flat_type, monthly_rent, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			approval_month = EXCLUDED.approval_month,
			town = EXCLUDED.town,
			block = EXCLUDED.block,
			street_name = EXCLUDED.street_name,
			flat_type = EXCLUDED.flat_type,
			monthly_rent = EXCLUDED.monthly_rent,
			source = EXCLUDED.source,
			updated_at = NOW()`

	affected := 0
	for _, rec := range records {
		source := rec.Source
		if source == "" {
			source = sourceLabel
		}

		_, err := r.db.ExecContext(ctx, query,
			rec.ID,
			rec.ApprovalMonth,
			rec.Town,
			rec.Block,
			rec.StreetName,
			rec.FlatType,
			rec.MonthlyRent,
			source,
		)
		if err != nil {
			return affected, fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
		affected++

		if affected%200 == 0 && r.logger != nil {
			r.logger.Debug("upsert progress", "rows", affected)
		}
	}

	return affected, nil
}

// Count returns the number of stored transaction records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+transactionsTable).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Sample returns the most recently updated rows, limit clamped to 1..100.
func (r *Repository) Sample(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	if limit < 1 {
		limit = 5
	}
	if limit > maxSampleRows {
		limit = maxSampleRows
	}

	query, args, err := psql.
		Select(recordColumns()...).
		From(transactionsTable).
		OrderBy("updated_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sample query: %w", err)
	}

	return r.queryRecords(ctx, query, args)
}

// SearchByFilters returns records matching equality filters on town and
// flat type plus a monthly rent range, cheapest first. Limit is clamped
// to a safe maximum so a caller cannot request unbounded result sets.
func (r *Repository) SearchByFilters(ctx context.Context, filters ports.SearchFilters) ([]domain.TransactionRecord, error) {
	limit := filters.Limit
	if limit < 1 {
		limit = defaultSearchRows
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	builder := psql.
		Select(recordColumns()...).
		From(transactionsTable).
		OrderBy("monthly_rent ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	builder = applyFilters(builder, filters)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	return r.queryRecords(ctx, query, args)
}

// ListTownsByScore groups records by town, most listings first.
func (r *Repository) ListTownsByScore(ctx context.Context, filters ports.SearchFilters) ([]domain.TownSummary, error) {
	limit := filters.Limit
	if limit < 1 {
		limit = defaultTownRows
	}
	if limit > maxTownRows {
		limit = maxTownRows
	}

	builder := psql.
		Select(
			"town",
			"COUNT(*) AS listings",
			"CAST(ROUND(AVG(monthly_rent)) AS INTEGER) AS avg_monthly_rent",
		).
		From(transactionsTable).
		Where(sq.And{sq.NotEq{"town": nil}, sq.NotEq{"town": ""}}).
		GroupBy("town").
		OrderBy("listings DESC").
		Limit(uint64(limit))
	builder = applyFilters(builder, ports.SearchFilters{
		FlatType: filters.FlatType,
		MinPrice: filters.MinPrice,
		MaxPrice: filters.MaxPrice,
	})

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build town score query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query towns by score: %w", err)
	}
	defer rows.Close()

	var summaries []domain.TownSummary
	for rows.Next() {
		var s domain.TownSummary
		if err := rows.Scan(&s.Town, &s.ListingCount, &s.AvgMonthlyRent); err != nil {
			return nil, fmt.Errorf("scan town summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return summaries, nil
}

// TownStatistic computes the aggregate for a single town at read time.
func (r *Repository) TownStatistic(ctx context.Context, town string) (domain.TownStatistic, error) {
	query, args, err := psql.
		Select("COUNT(*)", "COALESCE(CAST(ROUND(AVG(monthly_rent)) AS INTEGER), 0)").
		From(transactionsTable).
		Where(sq.Eq{"town": normalizeCategory(town)}).
		ToSql()
	if err != nil {
		return domain.TownStatistic{}, fmt.Errorf("build town stat query: %w", err)
	}

	var stat domain.TownStatistic
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stat.ListingCount, &stat.AvgMonthlyRent); err != nil {
		return domain.TownStatistic{}, fmt.Errorf("query town stat: %w", err)
	}
	stat.Available = stat.ListingCount > 0
	return stat, nil
}

// TownStatisticsByFlatType returns town -> flat type -> aggregate for
// every combination present in the store.
func (r *Repository) TownStatisticsByFlatType(ctx context.Context) (map[string]map[string]domain.TownStatistic, error) {
	query, args, err := psql.
		Select(
			"town",
			"flat_type",
			"COUNT(*) AS listings",
			"CAST(ROUND(AVG(monthly_rent)) AS INTEGER) AS avg_monthly_rent",
		).
		From(transactionsTable).
		Where(sq.And{sq.NotEq{"town": nil}, sq.NotEq{"town": ""}}).
		GroupBy("town", "flat_type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build grouped stat query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query grouped stats: %w", err)
	}
	defer rows.Close()

	result := make(map[string]map[string]domain.TownStatistic)
	for rows.Next() {
		var (
			town, flatType string
			stat           domain.TownStatistic
		)
		if err := rows.Scan(&town, &flatType, &stat.ListingCount, &stat.AvgMonthlyRent); err != nil {
			return nil, fmt.Errorf("scan grouped stat: %w", err)
		}
		stat.Available = stat.ListingCount > 0
		if result[town] == nil {
			result[town] = make(map[string]domain.TownStatistic)
		}
		result[town][flatType] = stat
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// ScheduleExpression reads the persisted cron expression, falling back
// to the default cadence when no row exists yet.
func (r *Repository) ScheduleExpression(ctx context.Context) (string, error) {
	var expr string
	err := r.db.QueryRowContext(ctx, `SELECT cron_expression FROM `+scheduleTable+` LIMIT 1`).Scan(&expr)
	if err == sql.ErrNoRows {
		return FallbackCron, nil
	}
	if err != nil {
		return "", fmt.Errorf("read schedule: %w", err)
	}
	return expr, nil
}

// SaveScheduleExpression atomically replaces the single schedule row.
func (r *Repository) SaveScheduleExpression(ctx context.Context, expr string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+scheduleTable+` (id, cron_expression) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET cron_expression = EXCLUDED.cron_expression`, expr)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

// RecordSyncResult touches the status row after a sync attempt.
func (r *Repository) RecordSyncResult(ctx context.Context, status domain.SyncStatus) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+statusTable+` (id, current_status, last_sync_time) VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET current_status = EXCLUDED.current_status, last_sync_time = NOW()`,
		string(status))
	if err != nil {
		return fmt.Errorf("record sync result: %w", err)
	}
	return nil
}

func normalizeCategory(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func applyFilters(builder sq.SelectBuilder, filters ports.SearchFilters) sq.SelectBuilder {
	if filters.Town != "" {
		builder = builder.Where(sq.Eq{"town": normalizeCategory(filters.Town)})
	}
	if filters.FlatType != "" {
		builder = builder.Where(sq.Eq{"flat_type": normalizeCategory(filters.FlatType)})
	}
	if filters.MinPrice > 0 {
		builder = builder.Where(sq.GtOrEq{"monthly_rent": filters.MinPrice})
	}
	if filters.MaxPrice > 0 {
		builder = builder.Where(sq.LtOrEq{"monthly_rent": filters.MaxPrice})
	}
	return builder
}

func recordColumns() []string {
	return []string{
		"id", "approval_month", "town", "block", "street_name",
		"flat_type", "monthly_rent", "source", "created_at", "updated_at",
	}
}

func (r *Repository) queryRecords(ctx context.Context, query string, args []interface{}) ([]domain.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(
			&rec.ID, &rec.ApprovalMonth, &rec.Town, &rec.Block, &rec.StreetName,
			&rec.FlatType, &rec.MonthlyRent, &rec.Source, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}
