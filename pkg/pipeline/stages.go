package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence"
	"github.com/dukex/reportgen/pkg/script"
)

// Stage names, in execution order.
const (
	StageValidate          = "validate"
	StageFetchPlaceholders = "fetch_placeholders"
	StageRenderHTML        = "render_html"
	StageRenderPDF         = "render_pdf"
	StageFinalize          = "finalize"
)

const entryPoint = "main"

// Stage is one unit of pipeline work. Run mutates pc in place; the driver
// hands the result to the next stage.
type Stage struct {
	Name string
	Run  func(ctx context.Context, pc *models.PipelineContext) error
}

type ArgsValidator interface {
	Validate(ctx context.Context, templateID string, args map[string]any) (string, map[string]any, error)
}

type AssetProvider interface {
	EnsureAssets(ctx context.Context, templateID string) (*models.Bundle, error)
}

type ScriptRunner interface {
	Execute(ctx context.Context, source, entryPoint string, args ...any) (script.Result, error)
}

type PDFRenderer interface {
	Render(ctx context.Context, outputName, html string, opts models.PDFOptions) error
}

// Dependencies are the collaborators the stages run against.
type Dependencies struct {
	Validator  ArgsValidator
	Assets     AssetProvider
	Scripts    ScriptRunner
	DataSource *script.DataSource
	Renderer   PDFRenderer
	Reports    persistence.ReportRepository
	Now        func() time.Time
}

type stages struct {
	deps   Dependencies
	logger *slog.Logger
}

// NewStages returns the ordered stage descriptors of the report pipeline.
func NewStages(deps Dependencies, logger *slog.Logger) []Stage {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &stages{deps: deps, logger: logger}

	return []Stage{
		{Name: StageValidate, Run: s.validate},
		{Name: StageFetchPlaceholders, Run: s.fetchPlaceholders},
		{Name: StageRenderHTML, Run: s.renderHTML},
		{Name: StageRenderPDF, Run: s.renderPDF},
		{Name: StageFinalize, Run: s.finalize},
	}
}

func (s *stages) validate(ctx context.Context, pc *models.PipelineContext) error {
	module, processArgs, err := s.deps.Validator.Validate(ctx, pc.TemplateID, pc.Args)
	if err != nil {
		return err
	}

	pc.Module = module
	pc.ProcessArgs = processArgs

	return nil
}

func (s *stages) fetchPlaceholders(ctx context.Context, pc *models.PipelineContext) error {
	bundle, err := s.deps.Assets.EnsureAssets(ctx, pc.TemplateID)
	if err != nil {
		return err
	}

	err = s.runTest(ctx, bundle.Test, pc.ProcessArgs)
	if err != nil {
		return err
	}

	result, err := s.deps.Scripts.Execute(ctx, bundle.Logic, entryPoint, pc.ProcessArgs, s.deps.DataSource)
	if err != nil {
		return &LogicExecutionError{Err: err}
	}

	placeholders, ok := result.Mapping()
	if !ok {
		return &LogicExecutionError{Reason: fmt.Sprintf("%s() must return a dict of placeholders, got %T", entryPoint, result.Value())}
	}

	pc.Placeholders = placeholders

	return nil
}

// runTest treats a test script without an entry point as passing.
func (s *stages) runTest(ctx context.Context, source string, processArgs map[string]any) error {
	result, err := s.deps.Scripts.Execute(ctx, source, entryPoint, processArgs, s.deps.DataSource)
	if err != nil {
		if script.IsEntryPointMissing(err) {
			s.logger.DebugContext(ctx, "Template has no test entry point; skipping")

			return nil
		}

		return &TestExecutionError{Err: err}
	}

	if !result.Truth() {
		return ErrNoDataFound
	}

	return nil
}

func (s *stages) renderHTML(ctx context.Context, pc *models.PipelineContext) error {
	bundle, err := s.deps.Assets.EnsureAssets(ctx, pc.TemplateID)
	if err != nil {
		return err
	}

	html, err := renderHTML(bundle.HTML, pc.Placeholders, s.deps.Now())
	if err != nil {
		return err
	}

	opts := bundle.Meta.PDFOptions()

	pc.HTML = html
	pc.PDFOptions = &opts

	return nil
}

func (s *stages) renderPDF(ctx context.Context, pc *models.PipelineContext) error {
	report, err := s.deps.Reports.ByID(ctx, pc.ReportID)
	if err != nil {
		return err
	}

	opts := models.PDFOptions{PageSize: models.DefaultPageSize, Orientation: models.OrientationLandscape}
	if pc.PDFOptions != nil {
		opts = *pc.PDFOptions
	}

	name := report.PDFName()

	err = s.deps.Renderer.Render(ctx, name, pc.HTML, opts)
	if err != nil {
		return err
	}

	pc.OutputFile = name + ".pdf"

	return nil
}

// finalize overwrites the terminal fields unconditionally, so redelivery converges.
func (s *stages) finalize(ctx context.Context, pc *models.PipelineContext) error {
	report, err := s.deps.Reports.ByID(ctx, pc.ReportID)
	if err != nil {
		return err
	}

	report.Status = models.ReportStatusGenerated
	report.OutputContent = pc.HTML
	report.OutputFile = pc.OutputFile

	err = s.deps.Reports.Save(ctx, report)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Report generated", "report_id", report.ID, "output_file", report.OutputFile)

	return nil
}

// IsNoDataFound checks if a pipeline failed because the test script rejected the input.
func IsNoDataFound(err error) bool {
	return errors.Is(err, ErrNoDataFound)
}
