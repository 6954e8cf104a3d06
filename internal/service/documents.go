package service

import (
	"context"
	"io"
	"time"

	"github.com/apex/log"

	"github.com/iago/factory-ops-back/internal/audit"
	"github.com/iago/factory-ops-back/internal/blobstore"
	"github.com/iago/factory-ops-back/internal/domain"
	"github.com/iago/factory-ops-back/internal/metrics"
	"github.com/iago/factory-ops-back/internal/upload"
)

type DocumentDependencies struct {
	Validator *upload.Validator
	Blobs     blobstore.Store
	Audit     audit.Log
	Logger    log.Interface
	Now       func() time.Time
}

type DocumentService struct {
	validator *upload.Validator
	blobs     blobstore.Store
	recorder  *auditRecorder
	logger    log.Interface
	now       func() time.Time
}

func NewDocumentService(deps DocumentDependencies) *DocumentService {
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
	return &DocumentService{
		validator: validator,
		blobs:     deps.Blobs,
		recorder:  newAuditRecorder(deps.Audit, logger),
		logger:    logger,
		now:       now,
	}
}

// Upload validates the file, stores it under a generated name and returns
// the draft document metadata.
func (s *DocumentService) Upload(ctx context.Context, file upload.FileDescriptor, content io.ReadSeeker) (*domain.DocumentMetadata, error) {
	_, contentType, err := s.validator.Validate(file)
	if err != nil {
		return nil, s.rejection(err)
	}
	if _, err := s.validator.ValidateSize(content); err != nil {
		return nil, s.rejection(err)
	}

	uploadedAt := s.now()
	name := upload.GenerateFilename(file.Filename, uploadedAt, upload.RandomSuffix())
	object, err := s.blobs.Put(ctx, content, name, contentType)
	if err != nil {
		return nil, internal("save document", err)
	}
	metrics.Uploaded(object.Size)

	s.logger.WithFields(log.Fields{
		"filename":  name,
		"reference": object.Reference,
		"size":      object.Size,
	}).Info("document uploaded")
	s.recorder.record(ctx, domain.AuditModuleDocuments, domain.AuditActionUploaded, name, object.Reference)

	return &domain.DocumentMetadata{
		Filename:   name,
		UploadDate: uploadedAt,
		Status:     domain.DocumentStatusDraft,
		FilePath:   object.Reference,
		FileSize:   object.Size,
		FileType:   contentType,
	}, nil
}

func (s *DocumentService) rejection(err error) error {
	if rejection, ok := upload.AsRejection(err); ok {
		metrics.UploadRejected(string(rejection.Kind))
		return rejected(rejection)
	}
	return internal("validate document", err)
}
