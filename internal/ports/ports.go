package ports

import (
	"context"

	"rentwise/internal/domain"
)

// DatasetSource pulls transaction records from the external dataset API.
type DatasetSource interface {
	FetchPage(ctx context.Context, resourceID string, offset, limit int) (int, []domain.TransactionRecord, error)
	FetchAll(ctx context.Context, resourceID string, pageSize, maxRecords int) ([]domain.TransactionRecord, error)
}

// SearchFilters restricts transaction queries. Zero values mean "no filter".
type SearchFilters struct {
	Town     string
	FlatType string
	MinPrice int
	MaxPrice int
	Limit    int
	Offset   int
}

// TransactionRepository persists transaction records idempotently.
type TransactionRepository interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, records []domain.TransactionRecord, sourceLabel string) (int, error)
	Count(ctx context.Context) (int, error)
	Sample(ctx context.Context, limit int) ([]domain.TransactionRecord, error)
	SearchByFilters(ctx context.Context, filters SearchFilters) ([]domain.TransactionRecord, error)
	ListTownsByScore(ctx context.Context, filters SearchFilters) ([]domain.TownSummary, error)
	TownStatistic(ctx context.Context, town string) (domain.TownStatistic, error)
	TownStatisticsByFlatType(ctx context.Context) (map[string]map[string]domain.TownStatistic, error)
}

// ScheduleStore holds the single persisted sync cadence.
type ScheduleStore interface {
	ScheduleExpression(ctx context.Context) (string, error)
	SaveScheduleExpression(ctx context.Context, expr string) error
}

// StatusStore records the outcome of sync attempts for the admin surface.
type StatusStore interface {
	RecordSyncResult(ctx context.Context, status domain.SyncStatus) error
}

// Geocoder resolves free-text addresses or postal codes to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (string, domain.GeoPoint, error)
}

// CronRunner owns the single active timer bound to a cron expression.
// Replace swaps the expression atomically; an invalid expression leaves
// the previous timer untouched.
type CronRunner interface {
	Replace(expr string, job func()) error
	Start()
	Stop(ctx context.Context) error
}
