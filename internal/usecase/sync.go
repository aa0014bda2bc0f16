package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"rentwise/internal/domain"
	"rentwise/internal/ports"
)

const defaultSourceLabel = "data.gov.sg"

// SyncDeps wires the driven adapters into the ingestion pipeline.
type SyncDeps struct {
	Source     ports.DatasetSource
	Repository ports.TransactionRepository
	Status     ports.StatusStore
	Logger     *slog.Logger

	ResourceID string
	PageSize   int
	MaxPages   int
}

// Sync runs the fetch-and-upsert ingestion pipeline. Each page is
// committed before the next is fetched, so pages that already succeeded
// survive a later failure. Every write is an idempotent upsert, which
// makes overlapping invocations (timer plus "sync now") safe.
type Sync struct {
	source     ports.DatasetSource
	repository ports.TransactionRepository
	status     ports.StatusStore
	logger     *slog.Logger

	resourceID string
	pageSize   int
	maxPages   int
}

// NewSync constructs the ingestion pipeline.
func NewSync(deps SyncDeps) *Sync {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	maxPages := deps.MaxPages
	if maxPages <= 0 {
		maxPages = 2000
	}
	return &Sync{
		source:     deps.Source,
		repository: deps.Repository,
		status:     deps.Status,
		logger:     deps.Logger,
		resourceID: deps.ResourceID,
		pageSize:   pageSize,
		maxPages:   maxPages,
	}
}

// Run ingests the full dataset and returns the number of rows touched.
func (s *Sync) Run(ctx context.Context) (int, error) {
	if err := s.repository.EnsureSchema(ctx); err != nil {
		s.recordStatus(ctx, domain.SyncFailed)
		return 0, fmt.Errorf("ensure schema: %w", err)
	}

	var (
		offset   int
		total    = -1
		affected int
	)

	for page := 0; page < s.maxPages; page++ {
		if total >= 0 && offset >= total {
			break
		}

		t, records, err := s.source.FetchPage(ctx, s.resourceID, offset, s.pageSize)
		if err != nil {
			s.recordStatus(ctx, domain.SyncFailed)
			return affected, fmt.Errorf("fetch page offset=%d: %w", offset, err)
		}
		total = t
		if len(records) == 0 {
			break
		}

		n, err := s.repository.Upsert(ctx, records, defaultSourceLabel)
		affected += n
		if err != nil {
			s.recordStatus(ctx, domain.SyncFailed)
			return affected, fmt.Errorf("upsert page offset=%d: %w", offset, err)
		}

		offset += len(records)
		s.info("sync progress", "upserted", affected, "offset", offset, "total", total)
	}

	s.recordStatus(ctx, domain.SyncOperational)
	s.info("sync complete", "upserted", affected, "total", total)
	return affected, nil
}

func (s *Sync) recordStatus(ctx context.Context, status domain.SyncStatus) {
	if s.status == nil {
		return
	}
	if err := s.status.RecordSyncResult(ctx, status); err != nil && s.logger != nil {
		s.logger.Warn("record sync status", "status", status, "error", err)
	}
}

func (s *Sync) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
