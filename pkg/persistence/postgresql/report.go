package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// ReportRepository handles report-related database operations.
type ReportRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *sql.DB, logger *slog.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

const selectReport = `
	SELECT
		id
	  , hash_id
	  , template_id
	  , input_args
	  , status
	  , output_content
	  , output_file
	  , created_at
	  , updated_at
	FROM reports
`

// Create inserts a new report.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}

	report.UpdatedAt = now

	args, err := json.Marshal(report.InputArgs)
	if err != nil {
		return persistence.NewReportError("Create", report.ID, fmt.Errorf("failed to marshal input args: %w", err))
	}

	query := `
		INSERT INTO reports (id, hash_id, template_id, input_args, status, output_content, output_file, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.HashID,
		report.TemplateID,
		args,
		string(report.Status),
		report.OutputContent,
		report.OutputFile,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewReportError("Create", report.ID, persistence.ErrReportAlreadyExists)
		}

		return persistence.NewReportError("Create", report.ID, err)
	}

	return nil
}

func (r *ReportRepository) ByID(ctx context.Context, id string) (*models.Report, error) {
	return r.queryOne(ctx, "ByID", id, selectReport+" WHERE id = $1")
}

func (r *ReportRepository) ByHashID(ctx context.Context, hashID string) (*models.Report, error) {
	return r.queryOne(ctx, "ByHashID", hashID, selectReport+" WHERE hash_id = $1")
}

func (r *ReportRepository) queryOne(ctx context.Context, op, key, query string) (*models.Report, error) {
	report, err := scanReport(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewReportError(op, key, persistence.ErrReportNotFound)
		}

		// malformed uuids are rejected by postgres; treat them as unknown reports
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "invalid_text_representation" {
			return nil, persistence.NewReportError(op, key, persistence.ErrReportNotFound)
		}

		return nil, persistence.NewReportError(op, key, fmt.Errorf("failed to scan report: %w", err))
	}

	return report, nil
}

// Save overwrites the mutable fields of an existing report.
func (r *ReportRepository) Save(ctx context.Context, report *models.Report) error {
	report.UpdatedAt = time.Now().UTC()

	args, err := json.Marshal(report.InputArgs)
	if err != nil {
		return persistence.NewReportError("Save", report.ID, fmt.Errorf("failed to marshal input args: %w", err))
	}

	query := `
		UPDATE reports
		SET input_args = $2
		  , status = $3
		  , output_content = $4
		  , output_file = $5
		  , updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		report.ID,
		args,
		string(report.Status),
		report.OutputContent,
		report.OutputFile,
		report.UpdatedAt,
	)
	if err != nil {
		return persistence.NewReportError("Save", report.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewReportError("Save", report.ID, err)
	}

	if affected == 0 {
		return persistence.NewReportError("Save", report.ID, persistence.ErrReportNotFound)
	}

	return nil
}

func scanReport(row *sql.Row) (*models.Report, error) {
	var (
		report models.Report
		args   []byte
		status string
	)

	err := row.Scan(
		&report.ID,
		&report.HashID,
		&report.TemplateID,
		&args,
		&status,
		&report.OutputContent,
		&report.OutputFile,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Status = models.ReportStatus(status)
	report.CreatedAt = report.CreatedAt.UTC()
	report.UpdatedAt = report.UpdatedAt.UTC()

	err = models.DecodeJSON(args, &report.InputArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal input args: %w", err)
	}

	models.NormalizeNumbers(report.InputArgs)

	return &report, nil
}
