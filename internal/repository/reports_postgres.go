package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iago/factory-ops-back/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportColumns = `id, line_id, line_name, description, reported_by, priority, status,
	assigned_to, comments, photo_urls, created_at, start_time, worker_arrived_at,
	completed_at, total_duration_minutes`

type PostgresReportStore struct {
	pool *pgxpool.Pool
}

func NewPostgresReportStore(ctx context.Context, databaseURL string) (*PostgresReportStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresReportStore{pool: pool}, nil
}

func (s *PostgresReportStore) Close() {
	s.pool.Close()
}

// Create upserts; an existing row keeps its seq so list ordering is stable.
func (s *PostgresReportStore) Create(ctx context.Context, report *domain.FailureReport) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO failure_reports (`+reportColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			line_id = EXCLUDED.line_id,
			line_name = EXCLUDED.line_name,
			description = EXCLUDED.description,
			reported_by = EXCLUDED.reported_by,
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			assigned_to = EXCLUDED.assigned_to,
			comments = EXCLUDED.comments,
			photo_urls = EXCLUDED.photo_urls,
			created_at = EXCLUDED.created_at,
			start_time = EXCLUDED.start_time,
			worker_arrived_at = EXCLUDED.worker_arrived_at,
			completed_at = EXCLUDED.completed_at,
			total_duration_minutes = EXCLUDED.total_duration_minutes
	`, reportArgs(report)...)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresReportStore) Get(ctx context.Context, reportID string) (*domain.FailureReport, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM failure_reports WHERE id = $1`, reportID)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query report: %w", err)
	}
	return report, nil
}

func (s *PostgresReportStore) List(ctx context.Context, filter domain.ReportFilter) ([]*domain.FailureReport, error) {
	where, args := buildReportFilters(filter)
	rows, err := s.pool.Query(ctx, `SELECT `+reportColumns+` FROM failure_reports`+where+` ORDER BY created_at DESC, seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.FailureReport, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, report)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reports: %w", rows.Err())
	}
	return items, nil
}

func (s *PostgresReportStore) Update(ctx context.Context, report *domain.FailureReport) error {
	command, err := s.pool.Exec(ctx, `
		UPDATE failure_reports
		SET line_id = $2,
			line_name = $3,
			description = $4,
			reported_by = $5,
			priority = $6,
			status = $7,
			assigned_to = $8,
			comments = $9,
			photo_urls = $10,
			created_at = $11,
			start_time = $12,
			worker_arrived_at = $13,
			completed_at = $14,
			total_duration_minutes = $15
		WHERE id = $1
	`, reportArgs(report)...)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresReportStore) Delete(ctx context.Context, reportID string) (bool, error) {
	command, err := s.pool.Exec(ctx, `DELETE FROM failure_reports WHERE id = $1`, reportID)
	if err != nil {
		return false, fmt.Errorf("delete report: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func reportArgs(report *domain.FailureReport) []any {
	photos := report.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	return []any{
		report.ID,
		report.LineID,
		report.LineName,
		report.Description,
		report.ReportedBy,
		report.Priority,
		string(report.Status),
		report.AssignedTo,
		report.Comments,
		photos,
		report.CreatedAt,
		report.StartTime,
		report.WorkerArrivedAt,
		report.CompletedAt,
		report.TotalDurationMinutes,
	}
}

func scanReport(row pgx.Row) (*domain.FailureReport, error) {
	var (
		report domain.FailureReport
		status string
	)
	err := row.Scan(
		&report.ID,
		&report.LineID,
		&report.LineName,
		&report.Description,
		&report.ReportedBy,
		&report.Priority,
		&status,
		&report.AssignedTo,
		&report.Comments,
		&report.PhotoURLs,
		&report.CreatedAt,
		&report.StartTime,
		&report.WorkerArrivedAt,
		&report.CompletedAt,
		&report.TotalDurationMinutes,
	)
	if err != nil {
		return nil, err
	}

	report.Status = domain.ReportStatus(status)
	if report.PhotoURLs == nil {
		report.PhotoURLs = []string{}
	}
	report.CreatedAt = report.CreatedAt.UTC()
	report.StartTime = utcPtr(report.StartTime)
	report.WorkerArrivedAt = utcPtr(report.WorkerArrivedAt)
	report.CompletedAt = utcPtr(report.CompletedAt)
	return &report, nil
}

func buildReportFilters(filter domain.ReportFilter) (string, []any) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if lineID := strings.TrimSpace(filter.LineID); lineID != "" {
		args = append(args, lineID)
		clauses = append(clauses, fmt.Sprintf("line_id = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	converted := value.UTC()
	return &converted
}
