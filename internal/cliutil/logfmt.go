package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Paintersrp/duet/internal/engine"
)

// LogRecord represents a structured supervisor event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Service   string    `json:"service,omitempty"`
	Type      string    `json:"type"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	PID       int       `json:"pid,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewLogRecord converts an engine event into a structured log record.
func NewLogRecord(event engine.Event) LogRecord {
	level := event.Level
	if level == "" {
		level = "info"
	}
	source := event.Source
	if source == "" {
		source = engine.SourceSystem
	}
	record := LogRecord{
		Timestamp: event.Timestamp,
		Service:   event.Service,
		Type:      string(event.Type),
		Level:     level,
		Message:   event.Message,
		Source:    source,
		Reason:    event.Reason,
		PID:       event.PID,
	}
	if event.Err != nil {
		record.Error = event.Err.Error()
	}
	return record
}

// EncodeLogEvent encodes an event to JSON, reporting errors to stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event engine.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}

// FormatText renders an event as a human-readable progress notice.
func FormatText(event engine.Event) string {
	switch event.Level {
	case "error":
		return "[duet] error: " + event.Message
	case "warn":
		return "[duet] warning: " + event.Message
	default:
		return "[duet] " + event.Message
	}
}

// IsDebug reports whether the event is only shown in verbose mode.
func IsDebug(event engine.Event) bool {
	return event.Level == "debug"
}
