package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/reportgen/pkg/assetstore"
	"github.com/dukex/reportgen/pkg/channels/gochannel"
	"github.com/dukex/reportgen/pkg/eventbus"
	"github.com/dukex/reportgen/pkg/events"
	"github.com/dukex/reportgen/pkg/mocks"
	"github.com/dukex/reportgen/pkg/models"
	"github.com/dukex/reportgen/pkg/persistence"
	"github.com/dukex/reportgen/pkg/persistence/file"
	"github.com/dukex/reportgen/pkg/renderer"
	"github.com/dukex/reportgen/pkg/script"
	"github.com/dukex/reportgen/pkg/templates"
	"github.com/dukex/reportgen/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const e2eIndex = `{"templates": [
  {"id": "hello_simple", "path": "hello",
   "args": {"required": ["name"], "optional": ["greeting"], "defaults": {"greeting": "Hi"}}},
  {"id": "empty_report", "path": "empty", "args": {"required": []}},
  {"id": "typed_args", "path": "typed",
   "args": {"required": ["count", "enabled", "items"], "defaults": {"scale": 1000000000000}}}
]}`

const typedLogic = `def main(process_args, db):
    items = process_args["items"]
    picked = [items[i] for i in range(process_args["count"])]
    return {
        "label": "%d of %d" % (process_args["count"], len(items)),
        "picked": picked,
        "enabled": process_args["enabled"],
        "big": process_args["scale"] * 1000000000000,
    }
`

type remoteRepo struct {
	mu    sync.Mutex
	files map[string]string
}

func newRemoteRepo(t *testing.T) (*remoteRepo, string) {
	t.Helper()

	repo := &remoteRepo{files: map[string]string{
		"/index.json":          e2eIndex,
		"/hello/template.html": "<p>{{ greeting }}, {{ name }}!</p>",
		"/hello/logic.py":      "def main(process_args, db):\n    return {\"name\": process_args[\"name\"], \"greeting\": process_args[\"greeting\"]}\n",
		"/hello/test.py":       "def main(process_args, db):\n    return True\n",
		"/empty/template.html": "<p>never</p>",
		"/empty/logic.py":      "def main(process_args, db):\n    return {}\n",
		"/empty/test.py":       "def main(process_args, db):\n    return False\n",
		"/typed/template.html": "<p>{{label}}: {{#picked}}[{{.}}]{{/picked}}{{#enabled}} on{{/enabled}} {{big}}</p>",
		"/typed/logic.py":      typedLogic,
		"/typed/test.py":       "def main(process_args, db):\n    return process_args[\"count\"] + 0 > 0\n",
	}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		repo.mu.Lock()
		body, ok := repo.files[r.URL.Path]
		repo.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	return repo, server.URL + "/index.json"
}

type pdfService struct {
	hits   atomic.Int32
	status atomic.Int32
}

func newPDFService(t *testing.T) (*pdfService, string) {
	t.Helper()

	svc := &pdfService{}
	svc.status.Store(http.StatusOK)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc.hits.Add(1)

		status := int(svc.status.Load())
		w.WriteHeader(status)

		if status == http.StatusOK {
			_, _ = io.WriteString(w, `{"status":"success","path":"/out/`+r.FormValue("outputFilename")+`.pdf"}`)

			return
		}

		_, _ = io.WriteString(w, `{"status":"error","message":"renderer unavailable"}`)
	}))
	t.Cleanup(server.Close)

	return svc, server.URL
}

type harness struct {
	orchestrator *Orchestrator
	reports      persistence.ReportRepository
	pdf          *pdfService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.Default()

	_, indexURL := newRemoteRepo(t)
	pdf, pdfURL := newPDFService(t)

	registry, err := templates.NewRegistry(assetstore.NewMemoryStore(), templates.NewHTTPSource(5*time.Second, ""), indexURL, logger)
	require.NoError(t, err)

	reports := file.NewPersistence(t.TempDir()).Reports()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	stages := NewStages(Dependencies{
		Validator: validation.NewValidator(registry, logger),
		Assets:    registry,
		Scripts:   script.NewEngine(script.Config{}, logger),
		Renderer:  renderer.NewClient(renderer.Config{Host: pdfURL, MaxRetries: 3, Backoff: time.Millisecond}, logger),
		Reports:   reports,
	}, logger)

	orchestrator := NewOrchestrator(bus, stages, NewSink(reports, logger), nil, "worker-test", logger)
	require.NoError(t, orchestrator.Register(bus))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, bus.Subscribe(ctx))

	return &harness{orchestrator: orchestrator, reports: reports, pdf: pdf}
}

// submit creates a pending report and waits until the pipeline settles it.
func (h *harness) submit(t *testing.T, templateID string, args map[string]any) *models.Report {
	t.Helper()

	ctx := context.Background()

	report := models.NewReport(templateID, args)
	require.NoError(t, h.reports.Create(ctx, report))
	require.NoError(t, h.orchestrator.Start(ctx, templateID, args, report.ID))

	var settled *models.Report

	require.Eventually(t, func() bool {
		current, err := h.reports.ByID(ctx, report.ID)
		if err != nil || !current.Status.Terminal() {
			return false
		}

		settled = current

		return true
	}, 10*time.Second, 20*time.Millisecond)

	return settled
}

func failureBody(t *testing.T, report *models.Report) ErrorBody {
	t.Helper()

	var body ErrorBody
	require.NoError(t, json.Unmarshal([]byte(report.OutputContent), &body))

	return body
}

func TestPipeline_GeneratesReport(t *testing.T) {
	h := newHarness(t)

	report := h.submit(t, "hello_simple", map[string]any{"name": "Ava"})

	assert.Equal(t, models.ReportStatusGenerated, report.Status)
	assert.Equal(t, "<p>Hi, Ava!</p>", report.OutputContent)
	assert.Equal(t, report.PDFName()+".pdf", report.OutputFile)
	assert.Equal(t, int32(1), h.pdf.hits.Load())
}

func TestPipeline_TypedArgsReachScripts(t *testing.T) {
	h := newHarness(t)

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"count": 2, "enabled": true, "items": ["a", "b", "c"]}`), &args))

	report := h.submit(t, "typed_args", args)

	require.Equal(t, models.ReportStatusGenerated, report.Status, report.OutputContent)
	assert.Equal(t, "<p>2 of 3: [a][b] on 1000000000000000000000000</p>", report.OutputContent)
	assert.Equal(t, int32(1), h.pdf.hits.Load())
}

func TestPipeline_UnknownTemplateFails(t *testing.T) {
	h := newHarness(t)

	report := h.submit(t, "does-not-exist", map[string]any{})

	assert.Equal(t, models.ReportStatusFailed, report.Status)

	body := failureBody(t, report)
	assert.Equal(t, GenericFailureMessage, body.Message)
	assert.Contains(t, body.VerboseMessage, "validate - ")
	assert.Contains(t, body.VerboseMessage, "does-not-exist")
	assert.Zero(t, h.pdf.hits.Load())
}

func TestPipeline_MissingArgumentFails(t *testing.T) {
	h := newHarness(t)

	report := h.submit(t, "hello_simple", map[string]any{"greeting": "Hello"})

	assert.Equal(t, models.ReportStatusFailed, report.Status)
	assert.Contains(t, failureBody(t, report).VerboseMessage, "name")
	assert.Zero(t, h.pdf.hits.Load())
}

func TestPipeline_RendererUnavailableFails(t *testing.T) {
	h := newHarness(t)
	h.pdf.status.Store(http.StatusServiceUnavailable)

	report := h.submit(t, "hello_simple", map[string]any{"name": "Ava"})

	assert.Equal(t, models.ReportStatusFailed, report.Status)
	assert.Contains(t, failureBody(t, report).VerboseMessage, "render_pdf - ")
	assert.Equal(t, int32(4), h.pdf.hits.Load())
}

func TestPipeline_FalsyTestFails(t *testing.T) {
	h := newHarness(t)

	report := h.submit(t, "empty_report", map[string]any{})

	assert.Equal(t, models.ReportStatusFailed, report.Status)
	assert.Contains(t, failureBody(t, report).VerboseMessage, "fetch_placeholders - "+ErrNoDataFound.Error())
	assert.Zero(t, h.pdf.hits.Load())
}

func newMockedOrchestrator(t *testing.T, stages []Stage) (*Orchestrator, *mocks.MockEventBus, persistence.ReportRepository) {
	t.Helper()

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("event-id")

	reports := file.NewReportRepository(t.TempDir())
	orchestrator := NewOrchestrator(bus, stages, NewSink(reports, slog.Default()), nil, "worker-test", slog.Default())

	return orchestrator, bus, reports
}

func TestOrchestrator_PublishesNextStage(t *testing.T) {
	stages := []Stage{
		{Name: "first", Run: func(_ context.Context, pc *models.PipelineContext) error {
			pc.HTML = "<p/>"

			return nil
		}},
		{Name: "second", Run: func(context.Context, *models.PipelineContext) error { return nil }},
	}

	orchestrator, bus, _ := newMockedOrchestrator(t, stages)

	bus.On("Publish", mock.Anything, "r1", mock.MatchedBy(func(event events.StageRequested) bool {
		return event.Stage == "second" && event.Context.HTML == "<p/>" && event.ReportID == "r1"
	})).Return(nil).Once()

	err := orchestrator.HandleStage(context.Background(), &events.StageRequested{
		Stage:   "first",
		Context: models.PipelineContext{ReportID: "r1"},
	})
	require.NoError(t, err)

	// the last stage publishes nothing
	err = orchestrator.HandleStage(context.Background(), &events.StageRequested{
		Stage:   "second",
		Context: models.PipelineContext{ReportID: "r1"},
	})
	require.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestOrchestrator_RecoversPanics(t *testing.T) {
	stages := []Stage{{Name: "boom", Run: func(context.Context, *models.PipelineContext) error {
		panic("kaboom")
	}}}

	orchestrator, bus, _ := newMockedOrchestrator(t, stages)

	bus.On("Publish", mock.Anything, "r1", mock.MatchedBy(func(event events.StageFailed) bool {
		return event.Stage == "boom" && event.Error == "stage panicked: kaboom" && event.Trace != ""
	})).Return(nil).Once()

	err := orchestrator.HandleStage(context.Background(), &events.StageRequested{
		Stage:   "boom",
		Context: models.PipelineContext{ReportID: "r1"},
	})
	require.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestOrchestrator_UnknownStage(t *testing.T) {
	orchestrator, bus, _ := newMockedOrchestrator(t, NewStages(Dependencies{}, slog.Default()))

	bus.On("Publish", mock.Anything, "r1", mock.MatchedBy(func(event events.StageFailed) bool {
		return event.Stage == "archive" && event.Error == "archive: "+ErrUnknownStage.Error()
	})).Return(nil).Once()

	err := orchestrator.HandleStage(context.Background(), &events.StageRequested{
		Stage:   "archive",
		Context: models.PipelineContext{ReportID: "r1"},
	})
	require.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestOrchestrator_FallsBackToSinkWhenPublishFails(t *testing.T) {
	stages := []Stage{{Name: "only", Run: func(context.Context, *models.PipelineContext) error {
		return errors.New("stage broke")
	}}}

	orchestrator, bus, reports := newMockedOrchestrator(t, stages)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	report := models.NewReport("t", nil)
	require.NoError(t, reports.Create(context.Background(), report))

	err := orchestrator.HandleStage(context.Background(), &events.StageRequested{
		Stage:   "only",
		Context: models.PipelineContext{ReportID: report.ID},
	})
	require.NoError(t, err)

	stored, err := reports.ByID(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	assert.Contains(t, stored.OutputContent, "only - stage broke")
}

func TestOrchestrator_StartRequiresStages(t *testing.T) {
	orchestrator, _, _ := newMockedOrchestrator(t, nil)

	require.Error(t, orchestrator.Start(context.Background(), "t", nil, "r1"))
}
