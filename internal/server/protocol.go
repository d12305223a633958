package server

import (
	"github.com/lawnchairsociety/roomweaver/internal/rando"
)

// Request types a client may send
const (
	RequestGenerate = "generate"
	RequestPing     = "ping"
)

// Message types the service sends
const (
	MessageAccepted = "accepted"
	MessageProgress = "progress"
	MessageResult   = "result"
	MessageError    = "error"
	MessagePong     = "pong"
)

// Request is one client message.
type Request struct {
	Type string `json:"type"`
	// Settings is a settings YAML document applied over the defaults
	Settings    string `json:"settings,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
}

// Message is one service message. Progress messages carry the event
// fields; a result carries the exported map YAML.
type Message struct {
	Type  string `json:"type"`
	JobID string `json:"job_id,omitempty"`

	Event      string  `json:"event,omitempty"`
	Attempt    int     `json:"attempt,omitempty"`
	Rooms      int     `json:"rooms,omitempty"`
	Worth      float64 `json:"worth,omitempty"`
	Backtracks int     `json:"backtracks,omitempty"`

	Map   string `json:"map,omitempty"`
	Error string `json:"error,omitempty"`
}

func progressMessage(jobID string, ev rando.Event) Message {
	msg := Message{
		Type:       MessageProgress,
		JobID:      jobID,
		Event:      ev.Kind.String(),
		Attempt:    ev.Attempt,
		Rooms:      ev.Rooms,
		Worth:      ev.Worth,
		Backtracks: ev.Backtracks,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

func errorMessage(jobID, text string) Message {
	return Message{Type: MessageError, JobID: jobID, Error: text}
}
