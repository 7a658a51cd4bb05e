package models

import (
	"time"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "P"
	ReportStatusFailed    ReportStatus = "F"
	ReportStatusGenerated ReportStatus = "G"
	ReportStatusDeleted   ReportStatus = "D"
)

// String returns the human readable status name.
func (s ReportStatus) String() string {
	switch s {
	case ReportStatusPending:
		return "PENDING"
	case ReportStatusFailed:
		return "FAILED"
	case ReportStatusGenerated:
		return "GENERATED"
	case ReportStatusDeleted:
		return "DELETED"
	default:
		return string(s)
	}
}

// Terminal reports whether the pipeline has finished with this report.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusFailed || s == ReportStatusGenerated
}

// Report is the persisted record of one report generation request.
// Only pipeline stages change Status after creation.
type Report struct {
	ID            string         `json:"id"`
	HashID        string         `json:"hash_id"`
	TemplateID    string         `json:"template_id"`
	InputArgs     map[string]any `json:"input_args"`
	Status        ReportStatus   `json:"status"`
	OutputContent string         `json:"output_content"`
	OutputFile    string         `json:"output_file"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewReport creates a pending report with fresh internal and external identifiers.
func NewReport(templateID string, args map[string]any) *Report {
	now := time.Now().UTC()

	if args == nil {
		args = make(map[string]any)
	}

	return &Report{
		ID:         uuid.New().String(),
		HashID:     uuid.New().String(),
		TemplateID: templateID,
		InputArgs:  args,
		Status:     ReportStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// PDFName is the output name handed to the renderer, without extension.
func (r *Report) PDFName() string {
	short := r.HashID
	if len(short) > 8 {
		short = short[:8]
	}

	return "report_" + r.TemplateID + "_" + short
}
