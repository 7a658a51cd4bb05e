package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence"
)

// GenericFailureMessage is the only failure detail shown to report readers.
const GenericFailureMessage = "Unexpected error during report generation. Contact admin."

// ErrorBody is stored as output_content of a failed report.
type ErrorBody struct {
	Message        string `json:"message"`
	VerboseMessage string `json:"verbose_message"`
}

// Sink is the terminal handler of every stage failure.
type Sink struct {
	reports persistence.ReportRepository
	logger  *slog.Logger
}

func NewSink(reports persistence.ReportRepository, logger *slog.Logger) *Sink {
	return &Sink{reports: reports, logger: logger.With("module", "error_sink")}
}

// Handle marks the report FAILED with a structured error body. A missing
// report is logged and ignored; only storage failures are returned.
func (s *Sink) Handle(ctx context.Context, stage, reportID, errMessage, trace string) error {
	s.logger.ErrorContext(ctx, "Pipeline stage failed", "stage", stage, "report_id", reportID, "error", errMessage)

	report, err := s.reports.ByID(ctx, reportID)
	if err != nil {
		if persistence.IsReportNotFound(err) {
			s.logger.WarnContext(ctx, "Failed report does not exist; nothing to update", "report_id", reportID)

			return nil
		}

		return err
	}

	body, err := json.Marshal(ErrorBody{
		Message:        GenericFailureMessage,
		VerboseMessage: fmt.Sprintf("%s - %s - %s", stage, errMessage, trace),
	})
	if err != nil {
		return fmt.Errorf("failed to encode error body: %w", err)
	}

	report.Status = models.ReportStatusFailed
	report.OutputContent = string(body)

	return s.reports.Save(ctx, report)
}
