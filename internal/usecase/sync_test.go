package usecase

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentwise/internal/domain"
)

func syncRecords(n int) []domain.TransactionRecord {
	records := make([]domain.TransactionRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, domain.TransactionRecord{
			ID:          strconv.Itoa(i + 1),
			Town:        "BEDOK",
			FlatType:    "4-ROOM",
			MonthlyRent: 2000 + i,
		})
	}
	return records
}

func TestSyncIngestsAllPages(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	sync := NewSync(SyncDeps{
		Source:     &fakeSource{records: syncRecords(125), failAt: -1},
		Repository: repo,
		Status:     repo,
		ResourceID: "d_abc",
		PageSize:   50,
	})

	affected, err := sync.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 125, affected)
	assert.Len(t, repo.records, 125)
	require.NotEmpty(t, repo.statuses)
	assert.Equal(t, domain.SyncOperational, repo.statuses[len(repo.statuses)-1])
}

func TestSyncIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	sync := NewSync(SyncDeps{
		Source:     &fakeSource{records: syncRecords(80), failAt: -1},
		Repository: repo,
		Status:     repo,
		ResourceID: "d_abc",
		PageSize:   50,
	})

	_, err := sync.Run(context.Background())
	require.NoError(t, err)
	first := make(map[string]domain.TransactionRecord, len(repo.records))
	for id, rec := range repo.records {
		first[id] = rec
	}

	_, err = sync.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, repo.records, "second run must not change store state")
	assert.Len(t, repo.order, 80, "no duplicate rows on re-ingestion")
}

func TestSyncKeepsCommittedPagesOnFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	sync := NewSync(SyncDeps{
		Source:     &fakeSource{records: syncRecords(125), failAt: 50},
		Repository: repo,
		Status:     repo,
		ResourceID: "d_abc",
		PageSize:   50,
	})

	affected, err := sync.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 50, affected)
	assert.Len(t, repo.records, 50, "first page stays committed")
	require.NotEmpty(t, repo.statuses)
	assert.Equal(t, domain.SyncFailed, repo.statuses[len(repo.statuses)-1])
}

func TestSyncCapsPageCount(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	sync := NewSync(SyncDeps{
		Source:     &fakeSource{records: syncRecords(300), failAt: -1},
		Repository: repo,
		Status:     repo,
		ResourceID: "d_abc",
		PageSize:   50,
		MaxPages:   2,
	})

	affected, err := sync.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, affected)
}
