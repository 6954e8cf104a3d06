package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iago/factory-ops-back/internal/domain"
)

const DefaultMaxEntries = 1000

// Log records audit events and returns the most recent ones.
type Log interface {
	Append(ctx context.Context, event domain.AuditEvent) error
	Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error)
}

// stamp fills the ID and time of an event that does not carry them yet.
func stamp(event domain.AuditEvent, now time.Time) domain.AuditEvent {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = now
	}
	event.Time = event.Time.UTC()
	return event
}

// MemoryLog is a fixed-capacity ring; the oldest events are overwritten once
// it is full.
type MemoryLog struct {
	mu      sync.Mutex
	entries []domain.AuditEvent
	next    int
	full    bool
	now     func() time.Time
}

func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = DefaultMaxEntries
	}
	return &MemoryLog{
		entries: make([]domain.AuditEvent, capacity),
		now:     time.Now,
	}
}

func (l *MemoryLog) Append(_ context.Context, event domain.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = stamp(event, l.now())
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

func (l *MemoryLog) Recent(_ context.Context, limit int) ([]domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	items := make([]domain.AuditEvent, 0, limit)
	index := l.next
	for range limit {
		index = (index - 1 + len(l.entries)) % len(l.entries)
		items = append(items, l.entries[index])
	}
	return items, nil
}
