package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/iago/factory-ops-back/internal/audit"
	"github.com/iago/factory-ops-back/internal/blobstore"
	"github.com/iago/factory-ops-back/internal/domain"
	"github.com/iago/factory-ops-back/internal/lifecycle"
	"github.com/iago/factory-ops-back/internal/metrics"
	"github.com/iago/factory-ops-back/internal/repository"
	"github.com/iago/factory-ops-back/internal/upload"
)

type MaintenanceDependencies struct {
	Store     repository.ReportStore
	Engine    *lifecycle.Engine
	Validator *upload.Validator
	Blobs     blobstore.Store
	Audit     audit.Log
	Logger    log.Interface
	Now       func() time.Time
}

// MaintenanceService drives failure reports through their lifecycle and
// persists every change.
type MaintenanceService struct {
	store     repository.ReportStore
	engine    *lifecycle.Engine
	validator *upload.Validator
	blobs     blobstore.Store
	recorder  *auditRecorder
	logger    log.Interface
	now       func() time.Time
	locks     *keyedLocks
}

func NewMaintenanceService(deps MaintenanceDependencies) *MaintenanceService {
	engine := deps.Engine
	if engine == nil {
		engine = lifecycle.NewEngine()
	}
	validator := deps.Validator
	if validator == nil {
		validator = upload.NewValidator(nil, 0)
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Log
	}

	return &MaintenanceService{
		store:     deps.Store,
		engine:    engine,
		validator: validator,
		blobs:     deps.Blobs,
		recorder:  newAuditRecorder(deps.Audit, logger),
		logger:    logger,
		now:       now,
		locks:     newKeyedLocks(),
	}
}

func (s *MaintenanceService) Create(ctx context.Context, input domain.NewReportInput) (*domain.FailureReport, error) {
	report := s.engine.Create(input)
	if err := s.store.Create(ctx, report); err != nil {
		return nil, internal("create failure report", err)
	}

	metrics.ReportCreated()
	s.logger.WithFields(log.Fields{
		"report_id": report.ID,
		"line_id":   report.LineID,
		"priority":  report.Priority,
	}).Info("failure report created")
	s.recorder.record(ctx, domain.AuditModuleMaintenance, domain.AuditActionCreated, report.ID,
		fmt.Sprintf("line %s (%s) reported by %s", report.LineID, report.LineName, report.ReportedBy))
	return report, nil
}

func (s *MaintenanceService) Get(ctx context.Context, reportID string) (*domain.FailureReport, error) {
	report, err := s.store.Get(ctx, reportID)
	if err != nil {
		return nil, s.storeError(reportID, "get failure report", err)
	}
	return report, nil
}

func (s *MaintenanceService) List(ctx context.Context, filter domain.ReportFilter) ([]*domain.FailureReport, error) {
	reports, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, internal("list failure reports", err)
	}
	return reports, nil
}

func (s *MaintenanceService) Update(ctx context.Context, reportID string, patch domain.ReportPatch) (*domain.FailureReport, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("invalid status %q", *patch.Status)}
	}

	var previous domain.ReportStatus
	report, err := s.mutate(ctx, reportID, "update failure report", func(report *domain.FailureReport) error {
		previous = report.Status
		if _, err := s.engine.ApplyPatch(report, patch); err != nil {
			return &Error{Kind: KindValidation, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.record(ctx, domain.AuditModuleMaintenance, domain.AuditActionUpdated, report.ID, describePatch(patch))
	s.recordStatusChange(ctx, report, previous)
	return report, nil
}

func (s *MaintenanceService) MarkWorkerArrived(ctx context.Context, reportID string) (*domain.FailureReport, error) {
	var previous domain.ReportStatus
	report, err := s.mutate(ctx, reportID, "mark worker arrived", func(report *domain.FailureReport) error {
		previous = report.Status
		s.engine.MarkWorkerArrived(report)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.record(ctx, domain.AuditModuleMaintenance, domain.AuditActionWorkerArrived, report.ID,
		"arrived at "+report.WorkerArrivedAt.Format(time.RFC3339))
	s.recordStatusChange(ctx, report, previous)
	return report, nil
}

func (s *MaintenanceService) recordStatusChange(ctx context.Context, report *domain.FailureReport, previous domain.ReportStatus) {
	if report.Status == previous {
		return
	}
	metrics.StatusTransition(string(report.Status))
	s.logger.WithFields(log.Fields{
		"report_id": report.ID,
		"from":      previous,
		"to":        report.Status,
	}).Info("failure report status changed")
	s.recorder.record(ctx, domain.AuditModuleMaintenance, domain.AuditActionStatusChanged, report.ID,
		fmt.Sprintf("%s -> %s", previous, report.Status))
}

// AddPhoto checks the report exists, validates and stores the image, then
// attaches its reference. A store failure after the blob is written leaves
// the blob orphaned.
func (s *MaintenanceService) AddPhoto(
	ctx context.Context,
	reportID string,
	file upload.FileDescriptor,
	content io.ReadSeeker,
) (*domain.FailureReport, error) {
	unlock := s.locks.lock(reportID)
	defer unlock()

	report, err := s.store.Get(ctx, reportID)
	if err != nil {
		return nil, s.storeError(reportID, "get failure report", err)
	}

	_, contentType, err := s.validator.ValidatePhoto(file)
	if err != nil {
		return nil, s.rejection(err)
	}
	size, err := s.validator.ValidateSize(content)
	if err != nil {
		return nil, s.rejection(err)
	}

	name := upload.GenerateFilename(file.Filename, s.now(), upload.RandomSuffix())
	object, err := s.blobs.Put(ctx, content, name, contentType)
	if err != nil {
		return nil, internal("save photo", err)
	}
	metrics.Uploaded(size)

	s.engine.AddPhoto(report, object.Reference)
	if err := s.store.Update(ctx, report); err != nil {
		s.logger.WithError(err).WithField("reference", object.Reference).Warn("photo stored but report update failed")
		return nil, s.storeError(reportID, "attach photo", err)
	}

	s.recorder.record(ctx, domain.AuditModuleMaintenance, domain.AuditActionPhotoAdded, report.ID, object.Reference)
	return report, nil
}

func (s *MaintenanceService) Delete(ctx context.Context, reportID string) error {
	unlock := s.locks.lock(reportID)
	defer unlock()

	deleted, err := s.store.Delete(ctx, reportID)
	if err != nil {
		return internal("delete failure report", err)
	}
	if !deleted {
		return notFound(fmt.Sprintf("failure report %s not found", reportID))
	}

	s.logger.WithField("report_id", reportID).Info("failure report deleted")
	s.recorder.record(ctx, domain.AuditModuleMaintenance, domain.AuditActionDeleted, reportID, "")
	return nil
}

// mutate runs a fetch, change, persist cycle under the report's lock.
func (s *MaintenanceService) mutate(
	ctx context.Context,
	reportID string,
	operation string,
	change func(report *domain.FailureReport) error,
) (*domain.FailureReport, error) {
	unlock := s.locks.lock(reportID)
	defer unlock()

	report, err := s.store.Get(ctx, reportID)
	if err != nil {
		return nil, s.storeError(reportID, operation, err)
	}

	if err := change(report); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, report); err != nil {
		return nil, s.storeError(reportID, operation, err)
	}
	return report, nil
}

func (s *MaintenanceService) storeError(reportID, operation string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(fmt.Sprintf("failure report %s not found", reportID))
	}
	return internal(operation, err)
}

func (s *MaintenanceService) rejection(err error) error {
	if rejection, ok := upload.AsRejection(err); ok {
		metrics.UploadRejected(string(rejection.Kind))
		return rejected(rejection)
	}
	return internal("validate photo", err)
}

func describePatch(patch domain.ReportPatch) string {
	fields := make([]string, 0, 8)
	if patch.Description != nil {
		fields = append(fields, "description")
	}
	if patch.Status != nil {
		fields = append(fields, "status")
	}
	if patch.Priority != nil {
		fields = append(fields, "priority")
	}
	if patch.AssignedTo != nil {
		fields = append(fields, "assigned_to")
	}
	if patch.Comments != nil {
		fields = append(fields, "comments")
	}
	if len(patch.PhotoURLs) > 0 {
		fields = append(fields, "photo_urls")
	}
	if patch.WorkerArrivedAt != nil {
		fields = append(fields, "worker_arrived_at")
	}
	if patch.CompletedAt != nil {
		fields = append(fields, "completed_at")
	}
	if len(fields) == 0 {
		return "no fields"
	}
	return "fields: " + strings.Join(fields, ", ")
}
