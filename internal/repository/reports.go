package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iago/factory-ops-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// ReportStore abstracts failure report persistence. Implementations must
// return ErrNotFound for unknown IDs on Get and Update.
type ReportStore interface {
	Create(ctx context.Context, report *domain.FailureReport) error
	Get(ctx context.Context, reportID string) (*domain.FailureReport, error)
	List(ctx context.Context, filter domain.ReportFilter) ([]*domain.FailureReport, error)
	Update(ctx context.Context, report *domain.FailureReport) error
	Delete(ctx context.Context, reportID string) (bool, error)
}

type memoryEntry struct {
	seq    uint64
	report *domain.FailureReport
}

// MemoryReportStore keeps reports in process memory. Data does not survive a
// restart.
type MemoryReportStore struct {
	mu      sync.RWMutex
	nextSeq uint64
	reports map[string]memoryEntry
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{
		reports: make(map[string]memoryEntry),
	}
}

// Create inserts or overwrites. An overwritten report keeps its original
// insertion position for tie-breaking.
func (s *MemoryReportStore) Create(_ context.Context, report *domain.FailureReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.reports[report.ID]
	if !exists {
		s.nextSeq++
		entry.seq = s.nextSeq
	}
	entry.report = report.Clone()
	s.reports[report.ID] = entry
	return nil
}

func (s *MemoryReportStore) Get(_ context.Context, reportID string) (*domain.FailureReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.report.Clone(), nil
}

// List returns matching reports, newest created_at first, ties in insertion
// order.
func (s *MemoryReportStore) List(_ context.Context, filter domain.ReportFilter) ([]*domain.FailureReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]memoryEntry, 0, len(s.reports))
	for _, entry := range s.reports {
		if filter.Matches(entry.report) {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		left, right := entries[i], entries[j]
		if !left.report.CreatedAt.Equal(right.report.CreatedAt) {
			return left.report.CreatedAt.After(right.report.CreatedAt)
		}
		return left.seq < right.seq
	})

	items := make([]*domain.FailureReport, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entry.report.Clone())
	}
	return items, nil
}

func (s *MemoryReportStore) Update(_ context.Context, report *domain.FailureReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.reports[report.ID]
	if !ok {
		return ErrNotFound
	}
	entry.report = report.Clone()
	s.reports[report.ID] = entry
	return nil
}

func (s *MemoryReportStore) Delete(_ context.Context, reportID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[reportID]; !ok {
		return false, nil
	}
	delete(s.reports, reportID)
	return true, nil
}
