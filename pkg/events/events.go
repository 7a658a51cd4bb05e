// Package events defines the messages exchanged between report pipeline stages.
package events

import (
	"time"

	"github.com/dukex/reportgen/pkg/models"
)

type EventType string

// Topic carries every pipeline event.
const Topic = "reportgen.pipeline"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	StageRequestedEvent EventType = "report.stage.requested"
	StageFailedEvent    EventType = "report.stage.failed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ReportID  string    `json:"report_id"`
	WorkerID  string    `json:"worker_id,omitempty"`
}

// NewBaseEvent stamps an event of the given type for reportID.
func NewBaseEvent(id string, eventType EventType, reportID, workerID string) BaseEvent {
	return BaseEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ReportID:  reportID,
		WorkerID:  workerID,
	}
}

// StageRequested asks a worker to run Stage with the accumulated pipeline context.
type StageRequested struct {
	BaseEvent

	Stage   string                 `json:"stage"`
	Context models.PipelineContext `json:"context"`
}

func (s StageRequested) GetType() EventType {
	return StageRequestedEvent
}

// StageFailed reports that Stage raised an error. It is consumed by the error sink.
type StageFailed struct {
	BaseEvent

	Stage string `json:"stage"`
	Error string `json:"error"`
	Trace string `json:"trace,omitempty"`
}

func (s StageFailed) GetType() EventType {
	return StageFailedEvent
}
