package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/factory-ops-back/internal/audit"
	"github.com/iago/factory-ops-back/internal/blobstore"
	"github.com/iago/factory-ops-back/internal/domain"
	"github.com/iago/factory-ops-back/internal/lifecycle"
	"github.com/iago/factory-ops-back/internal/logging"
	"github.com/iago/factory-ops-back/internal/repository"
	"github.com/iago/factory-ops-back/internal/upload"
)

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

type fixture struct {
	clock       *testClock
	store       *repository.MemoryReportStore
	blobs       *blobstore.LocalStore
	trail       *audit.MemoryLog
	maintenance *MaintenanceService
	documents   *DocumentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{current: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	blobs, err := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	store := repository.NewMemoryReportStore()
	trail := audit.NewMemoryLog(100)
	validator := upload.NewValidator(nil, 1024)
	logger := logging.Discard()

	return &fixture{
		clock: clock,
		store: store,
		blobs: blobs,
		trail: trail,
		maintenance: NewMaintenanceService(MaintenanceDependencies{
			Store:     store,
			Engine:    lifecycle.NewEngine(lifecycle.WithClock(clock.Now)),
			Validator: validator,
			Blobs:     blobs,
			Audit:     trail,
			Logger:    logger,
			Now:       clock.Now,
		}),
		documents: NewDocumentService(DocumentDependencies{
			Validator: validator,
			Blobs:     blobs,
			Audit:     trail,
			Logger:    logger,
			Now:       clock.Now,
		}),
	}
}

func (f *fixture) create(t *testing.T, lineID string) *domain.FailureReport {
	t.Helper()
	report, err := f.maintenance.Create(context.Background(), domain.NewReportInput{
		LineID:      lineID,
		LineName:    "Assembly Line A",
		Description: "belt stalls",
		ReportedBy:  "John",
		Priority:    "high",
	})
	require.NoError(t, err)
	return report
}

func (f *fixture) actions(t *testing.T) []domain.AuditAction {
	t.Helper()
	events, err := f.trail.Recent(context.Background(), 0)
	require.NoError(t, err)
	actions := make([]domain.AuditAction, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		actions = append(actions, events[i].Action)
	}
	return actions
}

func statusPtr(status domain.ReportStatus) *domain.ReportStatus { return &status }

func TestMaintenanceLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	report := f.create(t, "1")
	assert.Equal(t, domain.ReportStatusOpen, report.Status)

	f.clock.Advance(5 * time.Minute)
	arrived, err := f.maintenance.MarkWorkerArrived(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusInProgress, arrived.Status)
	require.NotNil(t, arrived.StartTime)
	require.NotNil(t, arrived.WorkerArrivedAt)

	f.clock.Advance(42*time.Minute + 30*time.Second)
	closed, err := f.maintenance.Update(ctx, report.ID, domain.ReportPatch{Status: statusPtr(domain.ReportStatusClosed)})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusClosed, closed.Status)
	require.NotNil(t, closed.CompletedAt)
	require.NotNil(t, closed.TotalDurationMinutes)
	assert.Equal(t, 42, *closed.TotalDurationMinutes)

	stored, err := f.maintenance.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, closed, stored)

	assert.Equal(t, []domain.AuditAction{
		domain.AuditActionCreated,
		domain.AuditActionWorkerArrived,
		domain.AuditActionStatusChanged,
		domain.AuditActionUpdated,
		domain.AuditActionStatusChanged,
	}, f.actions(t))
}

func TestMaintenanceNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.maintenance.Get(ctx, "fr_missing")
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.maintenance.Update(ctx, "fr_missing", domain.ReportPatch{})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.maintenance.MarkWorkerArrived(ctx, "fr_missing")
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.maintenance.AddPhoto(ctx, "fr_missing", upload.FileDescriptor{Filename: "a.exe"}, bytes.NewReader([]byte("x")))
	assert.Equal(t, KindNotFound, KindOf(err), "missing report wins over a bad photo")
}

func TestMaintenanceDeleteTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	report := f.create(t, "1")

	require.NoError(t, f.maintenance.Delete(ctx, report.ID))
	err := f.maintenance.Delete(ctx, report.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMaintenanceUpdateRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	report := f.create(t, "1")

	_, err := f.maintenance.Update(context.Background(), report.ID, domain.ReportPatch{Status: statusPtr("paused")})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestMaintenanceUpdateRejectsCompletionBeforeStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	report := f.create(t, "1")
	arrived, err := f.maintenance.MarkWorkerArrived(ctx, report.ID)
	require.NoError(t, err)

	completed := arrived.StartTime.Add(-time.Hour)
	_, err = f.maintenance.Update(ctx, report.ID, domain.ReportPatch{
		Status:      statusPtr(domain.ReportStatusClosed),
		CompletedAt: &completed,
	})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.ErrorIs(t, err, lifecycle.ErrCompletedBeforeStart)

	stored, err := f.maintenance.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusInProgress, stored.Status)
	assert.Nil(t, stored.CompletedAt)
	assert.Nil(t, stored.TotalDurationMinutes)
	assert.NotContains(t, f.actions(t), domain.AuditActionUpdated)
}

func TestMaintenanceListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.create(t, "L1")
	f.clock.Advance(time.Minute)
	second := f.create(t, "L1")
	f.clock.Advance(time.Minute)
	f.create(t, "L2")

	_, err := f.maintenance.Update(ctx, first.ID, domain.ReportPatch{Status: statusPtr(domain.ReportStatusInProgress)})
	require.NoError(t, err)
	_, err = f.maintenance.Update(ctx, second.ID, domain.ReportPatch{Status: statusPtr(domain.ReportStatusInProgress)})
	require.NoError(t, err)

	items, err := f.maintenance.List(ctx, domain.ReportFilter{Status: domain.ReportStatusInProgress, LineID: "L1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)
}

func TestMaintenanceAddPhoto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	report := f.create(t, "1")

	updated, err := f.maintenance.AddPhoto(ctx, report.ID,
		upload.FileDescriptor{Filename: "belt jam.JPG", ContentType: "image/jpeg"},
		bytes.NewReader([]byte("jpeg-bytes")))
	require.NoError(t, err)
	require.Len(t, updated.PhotoURLs, 1)
	reference := updated.PhotoURLs[0]
	assert.True(t, strings.HasPrefix(reference, "uploads/belt_jam_20250115_100000_"), reference)
	assert.True(t, strings.HasSuffix(reference, ".jpg"), reference)

	content, err := os.ReadFile(filepath.Join(f.blobs.Dir(), strings.TrimPrefix(reference, "uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(content))

	stored, err := f.maintenance.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{reference}, stored.PhotoURLs)
}

func TestMaintenanceAddPhotoRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	report := f.create(t, "1")

	cases := []struct {
		name     string
		file     upload.FileDescriptor
		content  []byte
		expected upload.RejectionKind
	}{
		{"pdf is not a photo", upload.FileDescriptor{Filename: "manual.pdf"}, []byte("x"), upload.RejectUnsupportedPhotoType},
		{"exe not allowed at all", upload.FileDescriptor{Filename: "tool.exe"}, []byte("x"), upload.RejectDisallowedExtension},
		{"empty photo", upload.FileDescriptor{Filename: "a.png"}, nil, upload.RejectEmpty},
		{"too large", upload.FileDescriptor{Filename: "a.png"}, bytes.Repeat([]byte("x"), 1025), upload.RejectTooLarge},
		{"no filename", upload.FileDescriptor{}, []byte("x"), upload.RejectMissingFilename},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.maintenance.AddPhoto(ctx, report.ID, tc.file, bytes.NewReader(tc.content))
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			rejection, ok := upload.AsRejection(err)
			require.True(t, ok)
			assert.Equal(t, tc.expected, rejection.Kind)
		})
	}

	stored, err := f.maintenance.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PhotoURLs)
}

type failingLog struct{}

func (failingLog) Append(context.Context, domain.AuditEvent) error {
	return errors.New("audit backend down")
}

func (failingLog) Recent(context.Context, int) ([]domain.AuditEvent, error) {
	return nil, errors.New("audit backend down")
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	service := NewMaintenanceService(MaintenanceDependencies{
		Store:  repository.NewMemoryReportStore(),
		Audit:  failingLog{},
		Logger: logging.Discard(),
	})

	report, err := service.Create(context.Background(), domain.NewReportInput{LineID: "1", LineName: "A", Description: "d", ReportedBy: "r"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPriority, report.Priority)

	_, err = NewAuditService(failingLog{}).Recent(context.Background(), 10)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestConcurrentPhotosAreNotLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	report := f.create(t, "1")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.maintenance.AddPhoto(ctx, report.ID,
				upload.FileDescriptor{Filename: fmt.Sprintf("p%d.png", i)},
				bytes.NewReader([]byte("png")))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := f.maintenance.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Len(t, stored.PhotoURLs, 20)
	assert.Equal(t, 0, f.maintenance.locks.size())
}

func TestDocumentUpload(t *testing.T) {
	f := newFixture(t)

	metadata, err := f.documents.Upload(context.Background(),
		upload.FileDescriptor{Filename: "Employee Handbook (v2).PDF"},
		bytes.NewReader([]byte("%PDF-1.4")))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(metadata.Filename, "Employee_Handbook_v2_20250115_100000_"), metadata.Filename)
	assert.True(t, strings.HasSuffix(metadata.Filename, ".pdf"))
	assert.Equal(t, domain.DocumentStatusDraft, metadata.Status)
	assert.Equal(t, "uploads/"+metadata.Filename, metadata.FilePath)
	assert.Equal(t, int64(8), metadata.FileSize)
	assert.Equal(t, "application/pdf", metadata.FileType)
	assert.Equal(t, f.clock.Now(), metadata.UploadDate)
	assert.Equal(t, []domain.AuditAction{domain.AuditActionUploaded}, f.actions(t))
}

func TestDocumentUploadRejectsExecutable(t *testing.T) {
	f := newFixture(t)

	_, err := f.documents.Upload(context.Background(),
		upload.FileDescriptor{Filename: "setup.exe", ContentType: "application/pdf"},
		bytes.NewReader([]byte("MZ")))
	assert.Equal(t, KindValidation, KindOf(err))

	entries, readErr := os.ReadDir(f.blobs.Dir())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestAuditServiceClampsLimit(t *testing.T) {
	ctx := context.Background()
	trail := audit.NewMemoryLog(1000)
	for i := range 600 {
		require.NoError(t, trail.Append(ctx, domain.AuditEvent{Target: fmt.Sprintf("fr_%d", i)}))
	}
	service := NewAuditService(trail)

	events, err := service.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, DefaultAuditLimit)
	assert.Equal(t, "fr_599", events[0].Target)

	events, err = service.Recent(ctx, 10000)
	require.NoError(t, err)
	assert.Len(t, events, MaxAuditLimit)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", repository.ErrNotFound)))
	assert.Equal(t, KindValidation, KindOf(&upload.Rejection{Kind: upload.RejectEmpty}))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(internal("op", errors.New("boom"))))
}
