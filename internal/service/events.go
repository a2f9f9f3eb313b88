package service

import (
	"encoding/json"

	"lingua_voice_backend/internal/model"
)

// EventType enumerates everything that can flow toward the client over the
// session socket. All event kinds share one ordered outbound queue so a
// turn_complete can never overtake the transcription it finalizes.
type EventType string

const (
	EventWelcome        EventType = "welcome"
	EventSessionStarted EventType = "session_started"
	EventAudio          EventType = "audio"
	EventTranscription  EventType = "transcription"
	EventFeedback       EventType = "feedback"
	EventTurnComplete   EventType = "turn_complete"
	EventSessionEnded   EventType = "session_ended"
	EventError          EventType = "error"
)

// OutEvent is one queued outbound item. Audio events carry Binary and go
// out as binary WebSocket frames; everything else marshals Data as JSON.
type OutEvent struct {
	Type   EventType   `json:"type"`
	Data   interface{} `json:"data,omitempty"`
	Binary []byte      `json:"-"`
}

func (e OutEvent) IsAudio() bool {
	return e.Type == EventAudio
}

func (e OutEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EngineEvent is one parsed message from the conversational AI engine.
type EngineEventType string

const (
	EngineTranscript   EngineEventType = "transcript"
	EngineAudio        EngineEventType = "audio"
	EngineTurnBoundary EngineEventType = "turn_boundary"
	EngineAnalysis     EngineEventType = "analysis"
	EngineClosed       EngineEventType = "closed"
)

type EngineEvent struct {
	Type    EngineEventType `json:"type"`
	Role    model.TurnRole  `json:"role,omitempty"`
	Text    string          `json:"text,omitempty"`
	Metrics model.MetricMap `json:"metrics,omitempty"`
	Audio   []byte          `json:"-"`
	Err     error           `json:"-"`
}
