package events

import (
	"encoding/json"
	"testing"

	"github.com/dukex/reportgen/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageRequested_CarriesPipelineContext(t *testing.T) {
	event := StageRequested{
		BaseEvent: NewBaseEvent("evt-1", StageRequestedEvent, "report-1", "worker-1"),
		Stage:     "render_html",
		Context: models.PipelineContext{
			TemplateID:   "hello_simple",
			ReportID:     "report-1",
			ProcessArgs:  map[string]any{"name": "Ava"},
			Placeholders: map[string]any{"greeting": "Hi"},
		},
	}

	assert.Equal(t, StageRequestedEvent, event.GetType())

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded StageRequested
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "render_html", decoded.Stage)
	assert.Equal(t, "report-1", decoded.ReportID)
	assert.Equal(t, "Hi", decoded.Context.Placeholders["greeting"])
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestStageFailed_Type(t *testing.T) {
	event := StageFailed{BaseEvent: NewBaseEvent("evt-2", StageFailedEvent, "report-1", ""), Stage: "validate", Error: "boom"}

	assert.Equal(t, StageFailedEvent, event.GetType())
	assert.Equal(t, StageFailedEvent, event.Type)
}
