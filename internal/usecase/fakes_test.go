package usecase

import (
	"context"
	"errors"

	"rentwise/internal/domain"
	"rentwise/internal/ports"
)

// fakeRepo is an in-memory TransactionRepository with real upsert
// semantics, plus the schedule and status stores.
type fakeRepo struct {
	records  map[string]domain.TransactionRecord
	order    []string
	grouped  map[string]map[string]domain.TownStatistic
	expr     string
	statuses []domain.SyncStatus

	failUpsertAfter int
	upsertCalls     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:         map[string]domain.TransactionRecord{},
		expr:            "0 2 * * *",
		failUpsertAfter: -1,
	}
}

func (f *fakeRepo) EnsureSchema(context.Context) error { return nil }

func (f *fakeRepo) Upsert(_ context.Context, records []domain.TransactionRecord, sourceLabel string) (int, error) {
	if f.failUpsertAfter >= 0 && f.upsertCalls >= f.failUpsertAfter {
		return 0, errors.New("storage unavailable")
	}
	f.upsertCalls++

	for _, rec := range records {
		if rec.Source == "" {
			rec.Source = sourceLabel
		}
		if _, exists := f.records[rec.ID]; !exists {
			f.order = append(f.order, rec.ID)
		}
		f.records[rec.ID] = rec
	}
	return len(records), nil
}

func (f *fakeRepo) Count(context.Context) (int, error) { return len(f.records), nil }

func (f *fakeRepo) Sample(context.Context, int) ([]domain.TransactionRecord, error) {
	return nil, nil
}

func (f *fakeRepo) SearchByFilters(context.Context, ports.SearchFilters) ([]domain.TransactionRecord, error) {
	return nil, nil
}

func (f *fakeRepo) ListTownsByScore(context.Context, ports.SearchFilters) ([]domain.TownSummary, error) {
	byTown := map[string]*domain.TownSummary{}
	var names []string
	for _, id := range f.order {
		rec := f.records[id]
		if rec.Town == "" {
			continue
		}
		if byTown[rec.Town] == nil {
			byTown[rec.Town] = &domain.TownSummary{Town: rec.Town}
			names = append(names, rec.Town)
		}
		byTown[rec.Town].ListingCount++
		byTown[rec.Town].AvgMonthlyRent += rec.MonthlyRent
	}

	var out []domain.TownSummary
	for _, name := range names {
		s := byTown[name]
		if s.ListingCount > 0 {
			s.AvgMonthlyRent /= s.ListingCount
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeRepo) TownStatistic(_ context.Context, town string) (domain.TownStatistic, error) {
	count, sum := 0, 0
	for _, rec := range f.records {
		if rec.Town == town {
			count++
			sum += rec.MonthlyRent
		}
	}
	if count == 0 {
		return domain.TownStatistic{}, nil
	}
	return domain.TownStatistic{ListingCount: count, AvgMonthlyRent: sum / count, Available: true}, nil
}

func (f *fakeRepo) TownStatisticsByFlatType(context.Context) (map[string]map[string]domain.TownStatistic, error) {
	return f.grouped, nil
}

func (f *fakeRepo) ScheduleExpression(context.Context) (string, error) { return f.expr, nil }

func (f *fakeRepo) SaveScheduleExpression(_ context.Context, expr string) error {
	f.expr = expr
	return nil
}

func (f *fakeRepo) RecordSyncResult(_ context.Context, status domain.SyncStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

// fakeSource serves a fixed record set in pages.
type fakeSource struct {
	records []domain.TransactionRecord
	failAt  int // offset that errors, -1 for never
}

func (f *fakeSource) FetchPage(_ context.Context, _ string, offset, limit int) (int, []domain.TransactionRecord, error) {
	if f.failAt >= 0 && offset >= f.failAt {
		return 0, nil, errors.New("upstream unavailable")
	}
	if offset >= len(f.records) {
		return len(f.records), nil, nil
	}
	end := offset + limit
	if end > len(f.records) {
		end = len(f.records)
	}
	return len(f.records), f.records[offset:end], nil
}

func (f *fakeSource) FetchAll(ctx context.Context, resourceID string, pageSize, maxRecords int) ([]domain.TransactionRecord, error) {
	total := len(f.records)
	if maxRecords > 0 && maxRecords < total {
		total = maxRecords
	}
	return f.records[:total], nil
}

// fakeRunner records Replace calls and rejects a marker expression.
type fakeRunner struct {
	expr     string
	active   bool
	started  bool
	replaces int
}

func (f *fakeRunner) Replace(expr string, _ func()) error {
	if expr == "bad expr" {
		return errors.New("invalid cron expression")
	}
	f.expr = expr
	f.active = true
	f.replaces++
	return nil
}

func (f *fakeRunner) Start() { f.started = true }

func (f *fakeRunner) Stop(context.Context) error { return nil }

// fakeGeocoder resolves a fixed address book.
type fakeGeocoder struct {
	book map[string]domain.GeoPoint
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (string, domain.GeoPoint, error) {
	if point, ok := f.book[address]; ok {
		return address, point, nil
	}
	return "", domain.GeoPoint{}, errors.New("could not resolve location")
}
