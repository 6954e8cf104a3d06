package service

import (
	"context"

	"github.com/apex/log"

	"github.com/iago/factory-ops-back/internal/audit"
	"github.com/iago/factory-ops-back/internal/domain"
)

// auditRecorder appends to the audit trail. Failures are logged and never
// reach the caller.
type auditRecorder struct {
	log    audit.Log
	logger log.Interface
}

func newAuditRecorder(trail audit.Log, logger log.Interface) *auditRecorder {
	return &auditRecorder{log: trail, logger: logger}
}

func (r *auditRecorder) record(
	ctx context.Context,
	module domain.AuditModule,
	action domain.AuditAction,
	target string,
	detail string,
) {
	if r.log == nil {
		return
	}
	err := r.log.Append(ctx, domain.AuditEvent{
		Module: module,
		Action: action,
		Target: target,
		Detail: detail,
	})
	if err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"module": module,
			"action": action,
			"target": target,
		}).Warn("audit append failed")
	}
}

// AuditService exposes the audit trail for reading.
type AuditService struct {
	log audit.Log
}

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

func NewAuditService(trail audit.Log) *AuditService {
	return &AuditService{log: trail}
}

// Recent returns newest-first events, clamping limit to [1, MaxAuditLimit].
func (s *AuditService) Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	if s.log == nil {
		return []domain.AuditEvent{}, nil
	}
	events, err := s.log.Recent(ctx, limit)
	if err != nil {
		return nil, internal("read audit log", err)
	}
	return events, nil
}
