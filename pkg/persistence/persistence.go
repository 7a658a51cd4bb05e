// Package persistence provides the storage abstraction for generated reports.
package persistence

import (
	"context"

	"github.com/dukex/reportgen/pkg/models"
)

type Persistence interface {
	Reports() ReportRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// ReportRepository stores report records. Lookups of unknown reports return
// an error matching ErrReportNotFound.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	ByID(ctx context.Context, id string) (*models.Report, error)
	ByHashID(ctx context.Context, hashID string) (*models.Report, error)
	// Save overwrites every mutable field of an existing report and bumps UpdatedAt.
	Save(ctx context.Context, report *models.Report) error
}
