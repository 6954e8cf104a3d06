// Package lifecycle holds the status-transition and timestamp rules of a
// failure report. It never touches storage: callers fetch a report, hand it
// to the engine and persist the result.
package lifecycle

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iago/factory-ops-back/internal/domain"
)

const reportIDPrefix = "fr_"

// ErrCompletedBeforeStart rejects a patch whose completed_at precedes the
// report's start_time.
var ErrCompletedBeforeStart = errors.New("completed_at must not be before start_time")

type Engine struct {
	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	engine := &Engine{
		now:   func() time.Time { return time.Now().UTC() },
		newID: NewReportID,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// NewReportID returns "fr_" followed by 8 random hex characters.
func NewReportID() string {
	return reportIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Create builds a fresh OPEN report with no photos.
func (e *Engine) Create(input domain.NewReportInput) *domain.FailureReport {
	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = domain.DefaultPriority
	}
	return &domain.FailureReport{
		ID:          e.newID(),
		LineID:      input.LineID,
		LineName:    input.LineName,
		Description: input.Description,
		ReportedBy:  input.ReportedBy,
		Priority:    priority,
		Status:      domain.ReportStatusOpen,
		PhotoURLs:   []string{},
		CreatedAt:   e.now(),
	}
}

// ApplyPatch overwrites every field present in the patch. Status goes
// through Transition; first-set timestamps are only filled when unset. A
// patched completed_at only lands when the report ends up CLOSED. The report
// is left untouched when the patch is rejected.
func (e *Engine) ApplyPatch(report *domain.FailureReport, patch domain.ReportPatch) (*domain.FailureReport, error) {
	completed := patchedCompletion(report, patch)
	if completed != nil && report.StartTime != nil && completed.Before(*report.StartTime) {
		return report, ErrCompletedBeforeStart
	}

	if patch.Description != nil {
		report.Description = *patch.Description
	}
	if patch.Priority != nil {
		report.Priority = *patch.Priority
	}
	if patch.AssignedTo != nil {
		assigned := *patch.AssignedTo
		report.AssignedTo = &assigned
	}
	if patch.Comments != nil {
		comments := *patch.Comments
		report.Comments = &comments
	}
	for _, photo := range patch.PhotoURLs {
		e.AddPhoto(report, photo)
	}
	if patch.WorkerArrivedAt != nil && report.WorkerArrivedAt == nil {
		arrived := patch.WorkerArrivedAt.UTC()
		report.WorkerArrivedAt = &arrived
	}

	if patch.Status != nil {
		// A direct update into IN_PROGRESS implies the worker is on site.
		if *patch.Status == domain.ReportStatusInProgress && report.WorkerArrivedAt == nil {
			now := e.now()
			report.WorkerArrivedAt = &now
		}
		// Transition keeps a completion that is already set.
		if completed != nil {
			report.CompletedAt = completed
		}
		e.Transition(report, *patch.Status)
	} else if completed != nil {
		report.CompletedAt = completed
	}

	recomputeDuration(report)
	return report, nil
}

// patchedCompletion returns the completed_at the patch would set, or nil
// when the report already has one or does not end up CLOSED.
func patchedCompletion(report *domain.FailureReport, patch domain.ReportPatch) *time.Time {
	if patch.CompletedAt == nil || report.CompletedAt != nil {
		return nil
	}
	status := report.Status
	if patch.Status != nil {
		status = *patch.Status
	}
	if status != domain.ReportStatusClosed {
		return nil
	}
	completed := patch.CompletedAt.UTC()
	return &completed
}

// Transition assigns the status unconditionally. No status pair is
// rejected, and a CLOSED report moved back keeps its completion fields.
func (e *Engine) Transition(report *domain.FailureReport, status domain.ReportStatus) *domain.FailureReport {
	now := e.now()
	if status == domain.ReportStatusInProgress && report.StartTime == nil {
		report.StartTime = &now
	}
	if status == domain.ReportStatusClosed && report.CompletedAt == nil {
		report.CompletedAt = &now
	}
	report.Status = status
	return report
}

// MarkWorkerArrived stamps the arrival once and moves an OPEN report to
// IN_PROGRESS.
func (e *Engine) MarkWorkerArrived(report *domain.FailureReport) *domain.FailureReport {
	if report.WorkerArrivedAt == nil {
		now := e.now()
		report.WorkerArrivedAt = &now
	}
	if report.Status == domain.ReportStatusOpen {
		e.Transition(report, domain.ReportStatusInProgress)
	}
	return report
}

// AddPhoto appends a reference unless it is already attached.
func (e *Engine) AddPhoto(report *domain.FailureReport, reference string) *domain.FailureReport {
	for _, existing := range report.PhotoURLs {
		if existing == reference {
			return report
		}
	}
	report.PhotoURLs = append(report.PhotoURLs, reference)
	return report
}

// DurationMinutes floors the elapsed minutes between start and completion.
func DurationMinutes(start, completed time.Time) int {
	return int(math.Floor(completed.Sub(start).Seconds() / 60))
}

func recomputeDuration(report *domain.FailureReport) {
	if report.Status != domain.ReportStatusClosed || report.CompletedAt == nil || report.StartTime == nil {
		return
	}
	minutes := DurationMinutes(*report.StartTime, *report.CompletedAt)
	report.TotalDurationMinutes = &minutes
}
