package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence"
)

// ReportRepository stores one JSON document per report under <root>/reports.
type ReportRepository struct {
	root string
	mu   sync.Mutex
}

// NewReportRepository creates a new report repository.
func NewReportRepository(root string) *ReportRepository {
	return &ReportRepository{root: root}
}

// validateReportID validates that the report ID is safe for file operations.
func validateReportID(id string) error {
	if id == "" {
		return errors.New("report ID cannot be empty")
	}

	// Check for path traversal attempts
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("report ID contains invalid characters")
	}

	return nil
}

func (r *ReportRepository) dir() string {
	return filepath.Join(r.root, "reports")
}

func (r *ReportRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

// Create writes a new report file, failing when one already exists.
func (r *ReportRepository) Create(_ context.Context, report *models.Report) error {
	err := validateReportID(report.ID)
	if err != nil {
		return persistence.NewReportError("Create", report.ID, fmt.Errorf("%w: %w", persistence.ErrInvalidReportID, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(report.ID)); err == nil {
		return persistence.NewReportError("Create", report.ID, persistence.ErrReportAlreadyExists)
	}

	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}

	report.UpdatedAt = now

	return r.write("Create", report)
}

func (r *ReportRepository) ByID(_ context.Context, id string) (*models.Report, error) {
	if err := validateReportID(id); err != nil {
		return nil, persistence.NewReportError("ByID", id, persistence.ErrReportNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read("ByID", id)
}

// ByHashID scans the stored reports for the given external identifier.
func (r *ReportRepository) ByHashID(_ context.Context, hashID string) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := fs.Glob(os.DirFS(r.dir()), "*.json")
	if err != nil {
		return nil, persistence.NewReportError("ByHashID", hashID, fmt.Errorf("failed to list report files: %w", err))
	}

	for _, name := range files {
		report, err := r.read("ByHashID", strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		if report.HashID == hashID {
			return report, nil
		}
	}

	return nil, persistence.NewReportError("ByHashID", hashID, persistence.ErrReportNotFound)
}

// Save overwrites an existing report file.
func (r *ReportRepository) Save(_ context.Context, report *models.Report) error {
	if err := validateReportID(report.ID); err != nil {
		return persistence.NewReportError("Save", report.ID, persistence.ErrReportNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(report.ID)); os.IsNotExist(err) {
		return persistence.NewReportError("Save", report.ID, persistence.ErrReportNotFound)
	}

	report.UpdatedAt = time.Now().UTC()

	return r.write("Save", report)
}

func (r *ReportRepository) read(op, id string) (*models.Report, error) {
	body, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewReportError(op, id, persistence.ErrReportNotFound)
		}

		return nil, persistence.NewReportError(op, id, fmt.Errorf("failed to read report: %w", err))
	}

	var report models.Report

	err = json.Unmarshal(body, &report)
	if err != nil {
		return nil, persistence.NewReportError(op, id, fmt.Errorf("failed to unmarshal report: %w", err))
	}

	return &report, nil
}

func (r *ReportRepository) write(op string, report *models.Report) error {
	err := os.MkdirAll(r.dir(), 0750)
	if err != nil {
		return persistence.NewReportError(op, report.ID, fmt.Errorf("failed to create reports directory: %w", err))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return persistence.NewReportError(op, report.ID, fmt.Errorf("failed to marshal report: %w", err))
	}

	err = os.WriteFile(r.path(report.ID), data, 0600)
	if err != nil {
		return persistence.NewReportError(op, report.ID, err)
	}

	return nil
}
