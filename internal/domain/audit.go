package domain

import "time"

type AuditModule string

const (
	AuditModuleMaintenance AuditModule = "maintenance"
	AuditModuleDocuments   AuditModule = "documents"
)

type AuditAction string

const (
	AuditActionCreated       AuditAction = "created"
	AuditActionUpdated       AuditAction = "updated"
	AuditActionStatusChanged AuditAction = "status_changed"
	AuditActionWorkerArrived AuditAction = "worker_arrived"
	AuditActionPhotoAdded    AuditAction = "photo_added"
	AuditActionDeleted       AuditAction = "deleted"
	AuditActionUploaded      AuditAction = "uploaded"
)

// AuditEvent is one entry of the system audit trail.
type AuditEvent struct {
	ID     string      `json:"id"`
	Time   time.Time   `json:"time"`
	Module AuditModule `json:"module"`
	Action AuditAction `json:"action"`
	Target string      `json:"target"`
	Detail string      `json:"detail,omitempty"`
}
