package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/factory-ops-back/internal/domain"
)

var baseTime = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func newReport(id, lineID string, status domain.ReportStatus, createdAt time.Time) *domain.FailureReport {
	return &domain.FailureReport{
		ID:          id,
		LineID:      lineID,
		LineName:    "Line " + lineID,
		Description: "conveyor jam",
		ReportedBy:  "John",
		Priority:    domain.DefaultPriority,
		Status:      status,
		PhotoURLs:   []string{},
		CreatedAt:   createdAt,
	}
}

func reportIDs(items []*domain.FailureReport) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

// exerciseReportStore runs the shared contract against any ReportStore.
func exerciseReportStore(t *testing.T, store ReportStore, prefix string) {
	t.Helper()
	ctx := context.Background()
	id := func(name string) string { return prefix + name }

	require.NoError(t, store.Create(ctx, newReport(id("a"), "1", domain.ReportStatusOpen, baseTime)))
	require.NoError(t, store.Create(ctx, newReport(id("b"), "1", domain.ReportStatusClosed, baseTime.Add(time.Minute))))
	require.NoError(t, store.Create(ctx, newReport(id("c"), "2", domain.ReportStatusOpen, baseTime)))

	t.Run("get returns stored report", func(t *testing.T) {
		report, err := store.Get(ctx, id("a"))
		require.NoError(t, err)
		assert.Equal(t, "1", report.LineID)
		assert.Equal(t, domain.ReportStatusOpen, report.Status)
		assert.NotNil(t, report.PhotoURLs)
		assert.True(t, report.CreatedAt.Equal(baseTime))
	})

	t.Run("get unknown id", func(t *testing.T) {
		_, err := store.Get(ctx, id("missing"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("filters combine with AND", func(t *testing.T) {
		items, err := store.List(ctx, domain.ReportFilter{Status: domain.ReportStatusOpen, LineID: "1"})
		require.NoError(t, err)
		assert.Equal(t, []string{id("a")}, filterPrefix(reportIDs(items), prefix))
	})

	t.Run("newest first with ties in insertion order", func(t *testing.T) {
		items, err := store.List(ctx, domain.ReportFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{id("b"), id("a"), id("c")}, filterPrefix(reportIDs(items), prefix))
	})

	t.Run("update replaces fields", func(t *testing.T) {
		report, err := store.Get(ctx, id("c"))
		require.NoError(t, err)
		assignee := "Mike"
		arrived := baseTime.Add(5 * time.Minute)
		minutes := 12
		report.Status = domain.ReportStatusInProgress
		report.AssignedTo = &assignee
		report.WorkerArrivedAt = &arrived
		report.TotalDurationMinutes = &minutes
		report.PhotoURLs = []string{"uploads/p1.jpg"}
		require.NoError(t, store.Update(ctx, report))

		stored, err := store.Get(ctx, id("c"))
		require.NoError(t, err)
		assert.Equal(t, domain.ReportStatusInProgress, stored.Status)
		require.NotNil(t, stored.AssignedTo)
		assert.Equal(t, "Mike", *stored.AssignedTo)
		require.NotNil(t, stored.WorkerArrivedAt)
		assert.True(t, stored.WorkerArrivedAt.Equal(arrived))
		require.NotNil(t, stored.TotalDurationMinutes)
		assert.Equal(t, 12, *stored.TotalDurationMinutes)
		assert.Equal(t, []string{"uploads/p1.jpg"}, stored.PhotoURLs)
	})

	t.Run("update unknown id", func(t *testing.T) {
		err := store.Update(ctx, newReport(id("missing"), "1", domain.ReportStatusOpen, baseTime))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete reports whether a row existed", func(t *testing.T) {
		deleted, err := store.Delete(ctx, id("b"))
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.Delete(ctx, id("b"))
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = store.Get(ctx, id("b"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func filterPrefix(ids []string, prefix string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			out = append(out, id)
		}
	}
	return out
}

func TestMemoryReportStoreContract(t *testing.T) {
	exerciseReportStore(t, NewMemoryReportStore(), "fr_")
}

func TestMemoryReportStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()
	report := newReport("fr_iso", "1", domain.ReportStatusOpen, baseTime)
	require.NoError(t, store.Create(ctx, report))

	report.PhotoURLs = append(report.PhotoURLs, "uploads/leak.jpg")
	report.Description = "mutated"

	stored, err := store.Get(ctx, "fr_iso")
	require.NoError(t, err)
	assert.Empty(t, stored.PhotoURLs)
	assert.Equal(t, "conveyor jam", stored.Description)

	stored.PhotoURLs = append(stored.PhotoURLs, "uploads/other.jpg")
	again, err := store.Get(ctx, "fr_iso")
	require.NoError(t, err)
	assert.Empty(t, again.PhotoURLs)
}

func TestMemoryReportStoreOverwriteKeepsPosition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReportStore()
	require.NoError(t, store.Create(ctx, newReport("fr_first", "1", domain.ReportStatusOpen, baseTime)))
	require.NoError(t, store.Create(ctx, newReport("fr_second", "1", domain.ReportStatusOpen, baseTime)))
	require.NoError(t, store.Create(ctx, newReport("fr_first", "1", domain.ReportStatusClosed, baseTime)))

	items, err := store.List(ctx, domain.ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"fr_first", "fr_second"}, reportIDs(items))
	assert.Equal(t, domain.ReportStatusClosed, items[0].Status)
}

func TestMemoryReportStoreEmptyListIsNotNil(t *testing.T) {
	items, err := NewMemoryReportStore().List(context.Background(), domain.ReportFilter{Status: domain.ReportStatusClosed})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestPostgresReportStoreContract(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	_, err := Migrate(databaseURL)
	require.NoError(t, err)

	store, err := NewPostgresReportStore(context.Background(), databaseURL)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	exerciseReportStore(t, store, "fr_"+uuid.NewString()[:8]+"_")
}

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/db":   "pgx5://u:p@localhost:5432/db",
		"postgresql://u:p@localhost:5432/db": "pgx5://u:p@localhost:5432/db",
		"pgx5://u:p@localhost:5432/db":       "pgx5://u:p@localhost:5432/db",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, migrateURL(input), input)
	}
}
