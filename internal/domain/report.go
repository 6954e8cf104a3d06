package domain

import (
	"strings"
	"time"
)

type ReportStatus string

const (
	ReportStatusOpen       ReportStatus = "open"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusClosed     ReportStatus = "closed"
)

const DefaultPriority = "normal"

// ParseReportStatus accepts the wire names case-insensitively.
func ParseReportStatus(value string) (ReportStatus, bool) {
	switch ReportStatus(strings.ToLower(strings.TrimSpace(value))) {
	case ReportStatusOpen:
		return ReportStatusOpen, true
	case ReportStatusInProgress:
		return ReportStatusInProgress, true
	case ReportStatusClosed:
		return ReportStatusClosed, true
	default:
		return "", false
	}
}

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusOpen, ReportStatusInProgress, ReportStatusClosed:
		return true
	default:
		return false
	}
}

// FailureReport is an equipment failure on a production line and its
// repair lifecycle.
type FailureReport struct {
	ID                   string       `json:"id"`
	LineID               string       `json:"line_id"`
	LineName             string       `json:"line_name"`
	Description          string       `json:"description"`
	ReportedBy           string       `json:"reported_by"`
	Priority             string       `json:"priority"`
	Status               ReportStatus `json:"status"`
	AssignedTo           *string      `json:"assigned_to"`
	Comments             *string      `json:"comments"`
	PhotoURLs            []string     `json:"photo_urls"`
	CreatedAt            time.Time    `json:"created_at"`
	StartTime            *time.Time   `json:"start_time"`
	WorkerArrivedAt      *time.Time   `json:"worker_arrived_at"`
	CompletedAt          *time.Time   `json:"completed_at"`
	TotalDurationMinutes *int         `json:"total_duration_minutes"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *FailureReport) Clone() *FailureReport {
	if r == nil {
		return nil
	}
	clone := *r
	clone.PhotoURLs = append(make([]string, 0, len(r.PhotoURLs)), r.PhotoURLs...)
	clone.AssignedTo = cloneString(r.AssignedTo)
	clone.Comments = cloneString(r.Comments)
	clone.StartTime = cloneTime(r.StartTime)
	clone.WorkerArrivedAt = cloneTime(r.WorkerArrivedAt)
	clone.CompletedAt = cloneTime(r.CompletedAt)
	if r.TotalDurationMinutes != nil {
		minutes := *r.TotalDurationMinutes
		clone.TotalDurationMinutes = &minutes
	}
	return &clone
}

// NewReportInput carries the fields a line master submits.
type NewReportInput struct {
	LineID      string
	LineName    string
	Description string
	ReportedBy  string
	Priority    string
}

// ReportPatch is a partial update; nil fields are left untouched.
type ReportPatch struct {
	Description     *string
	Status          *ReportStatus
	Priority        *string
	AssignedTo      *string
	Comments        *string
	PhotoURLs       []string
	WorkerArrivedAt *time.Time
	CompletedAt     *time.Time
}

// ReportFilter narrows a listing; empty fields match everything.
type ReportFilter struct {
	Status ReportStatus
	LineID string
}

func (f ReportFilter) Matches(report *FailureReport) bool {
	if f.Status != "" && report.Status != f.Status {
		return false
	}
	if f.LineID != "" && report.LineID != f.LineID {
		return false
	}
	return true
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
