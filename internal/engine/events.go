package engine

import "time"

// EventType captures high level lifecycle notifications emitted by the
// supervisor.
type EventType string

const (
	EventTypeStarting EventType = "starting"
	EventTypeStarted  EventType = "started"
	EventTypeReady    EventType = "ready"
	EventTypeStopping EventType = "stopping"
	EventTypeStopped  EventType = "stopped"
	EventTypeExited   EventType = "exited"
	EventTypeFailed   EventType = "failed"
	EventTypeNotice   EventType = "notice"
)

// SourceSystem marks events produced by the supervisor itself.
const SourceSystem = "system"

// Event represents a single lifecycle notification.
type Event struct {
	Timestamp time.Time
	Service   string
	Type      EventType
	Message   string
	Level     string
	Source    string
	PID       int
	Err       error
	Reason    string
}

const (
	ReasonInitialStart  = "initial_start"
	ReasonStartDelay    = "start_delay"
	ReasonStartFailure  = "start_failure"
	ReasonEndpoint      = "endpoint"
	ReasonInstanceExit  = "instance_exit"
	ReasonInstanceCrash = "instance_crash"
	ReasonSignal        = "signal"
	ReasonStopFailed    = "stop_failed"
	ReasonStopTimeout   = "stop_timeout"
	ReasonShutdown      = "shutdown"
)

func (s *Supervisor) emit(evt Event) {
	if s.events == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	if evt.Level == "" {
		evt.Level = "info"
	}
	if evt.Source == "" {
		evt.Source = SourceSystem
	}
	s.events <- evt
}
