package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Paintersrp/duet/internal/config"
	"github.com/Paintersrp/duet/internal/metrics"
	"github.com/Paintersrp/duet/internal/runtime"
)

// PIDs is a snapshot of the recorded child process identifiers. A zero value
// means the child was never spawned.
type PIDs struct {
	Backend  int
	Frontend int
}

type child struct {
	name string
	spec *config.ServiceSpec

	// inst is written by the main flow and read by shutdown and PIDs; guarded
	// by Supervisor.mu.
	inst runtime.Instance
}

// Supervisor launches the backend and frontend children in order, waits for
// them, and forwards shutdown to both when its context is cancelled.
type Supervisor struct {
	runtime  runtime.Runtime
	children []*child

	startDelay  time.Duration
	stopTimeout time.Duration

	stdout io.Writer
	stderr io.Writer
	events chan<- Event

	sleep func(context.Context, time.Duration) error
	now   func() time.Time

	mu    sync.Mutex
	state State

	shutdownOnce sync.Once
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithEvents directs lifecycle notifications to events. The channel is never
// closed by the supervisor.
func WithEvents(events chan<- Event) Option {
	return func(s *Supervisor) {
		s.events = events
	}
}

// WithOutput sets the writers that receive the children's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Supervisor) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// New constructs a supervisor for the services described by cfg.
func New(cfg *config.Config, rt runtime.Runtime, opts ...Option) *Supervisor {
	sup := &Supervisor{
		runtime:     rt,
		startDelay:  cfg.StartDelay.Duration,
		stopTimeout: cfg.StopTimeout.Duration,
		sleep:       sleepWithContext,
		now:         time.Now,
		state:       StateNotStarted,
	}
	for _, named := range cfg.Ordered() {
		sup.children = append(sup.children, &child{name: named.Name, spec: named.Spec.Clone()})
	}
	for _, opt := range opts {
		opt(sup)
	}
	metrics.SetSupervisorState(sup.state.String())
	return sup
}

// State reports the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PIDs returns the process identifiers recorded so far.
func (s *Supervisor) PIDs() PIDs {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pids PIDs
	for _, c := range s.children {
		if c.inst == nil {
			continue
		}
		switch c.name {
		case config.ServiceBackend:
			pids.Backend = c.inst.PID()
		case config.ServiceFrontend:
			pids.Frontend = c.inst.PID()
		}
	}
	return pids
}

// Run spawns the children in order with the start delay between them and
// blocks until both exit or ctx is cancelled. Cancellation sends one
// termination request to every recorded child and returns nil. A spawn
// failure aborts the remaining launches and is returned as a *SpawnError;
// children that exit on their own with a non-zero status are reported as
// *ExitError values.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.transition(StateNotStarted, StateRunning) {
		return errors.New("supervisor already started")
	}

	for i, c := range s.children {
		if i > 0 && s.startDelay > 0 {
			s.emit(Event{
				Service: c.name,
				Type:    EventTypeNotice,
				Reason:  ReasonStartDelay,
				Message: fmt.Sprintf("Waiting %s before starting %s", s.startDelay, c.name),
			})
			if err := s.sleep(ctx, s.startDelay); err != nil {
				s.shutdown(ReasonSignal)
				return nil
			}
		}
		if ctx.Err() != nil {
			s.shutdown(ReasonSignal)
			return nil
		}
		if err := s.spawn(ctx, c); err != nil {
			if ctx.Err() != nil {
				s.shutdown(ReasonSignal)
				return nil
			}
			s.shutdown(ReasonStartFailure)
			return err
		}
	}

	s.announce()
	return s.wait(ctx)
}

func (s *Supervisor) spawn(ctx context.Context, c *child) error {
	s.emit(Event{
		Service: c.name,
		Type:    EventTypeStarting,
		Reason:  ReasonInitialStart,
		Message: fmt.Sprintf("Starting %s in %s: %s", c.name, c.spec.ResolvedWorkdir, strings.Join(c.spec.Command, " ")),
	})

	inst, err := s.runtime.Start(ctx, buildStartSpec(c.name, c.spec, s.stdout, s.stderr))
	metrics.ObserveSpawn(c.name, err)
	if err != nil {
		spawnErr := &SpawnError{Service: c.name, Command: append([]string(nil), c.spec.Command...), Err: err}
		s.emit(Event{
			Service: c.name,
			Type:    EventTypeFailed,
			Level:   "error",
			Reason:  ReasonStartFailure,
			Message: spawnErr.Error(),
			Err:     spawnErr,
		})
		return spawnErr
	}

	s.mu.Lock()
	c.inst = inst
	s.mu.Unlock()
	metrics.SetChildRunning(c.name, true)

	s.emit(Event{
		Service: c.name,
		Type:    EventTypeStarted,
		Reason:  ReasonInitialStart,
		PID:     inst.PID(),
		Message: fmt.Sprintf("Started %s (pid %d)", c.name, inst.PID()),
	})
	return nil
}

func (s *Supervisor) announce() {
	s.emit(Event{Type: EventTypeReady, Message: "All services started"})
	for _, c := range s.children {
		if url := c.spec.URL(); url != "" {
			s.emit(Event{
				Service: c.name,
				Type:    EventTypeNotice,
				Reason:  ReasonEndpoint,
				Message: fmt.Sprintf("%s: %s", titleCase(c.name), url),
			})
		}
	}
	s.emit(Event{Type: EventTypeNotice, Message: "Press Ctrl+C to stop all services"})
}

func (s *Supervisor) wait(ctx context.Context) error {
	exited := make(chan *child, len(s.children))
	for _, c := range s.children {
		go func(c *child) {
			<-c.inst.Done()
			exited <- c
		}(c)
	}

	var errs []error
	for remaining := len(s.children); remaining > 0; {
		select {
		case <-ctx.Done():
			s.shutdown(ReasonSignal)
			return nil
		case c := <-exited:
			remaining--
			if err := s.childExited(c); err != nil {
				errs = append(errs, err)
			}
		}
	}

	s.transition(StateRunning, StateTerminating)
	s.emit(Event{Type: EventTypeStopped, Reason: ReasonShutdown, Message: "All services exited"})
	s.transition(StateTerminating, StateExited)
	return errors.Join(errs...)
}

func (s *Supervisor) childExited(c *child) error {
	metrics.SetChildRunning(c.name, false)
	waitErr := c.inst.Err()
	code := runtime.ExitCode(waitErr)
	if waitErr == nil {
		s.emit(Event{
			Service: c.name,
			Type:    EventTypeExited,
			Reason:  ReasonInstanceExit,
			PID:     c.inst.PID(),
			Message: fmt.Sprintf("%s exited", c.name),
		})
		return nil
	}
	exitErr := &ExitError{Service: c.name, Code: code, Err: waitErr}
	s.emit(Event{
		Service: c.name,
		Type:    EventTypeExited,
		Level:   "error",
		Reason:  ReasonInstanceCrash,
		PID:     c.inst.PID(),
		Message: exitErr.Error(),
		Err:     exitErr,
	})
	return exitErr
}

// shutdown requests termination of every recorded child exactly once, waits
// up to the stop timeout for them to be reaped and moves to StateExited.
func (s *Supervisor) shutdown(reason string) {
	s.shutdownOnce.Do(func() {
		s.setState(StateTerminating)
		targets := s.recorded()
		s.emit(Event{Type: EventTypeStopping, Reason: reason, Message: "Stopping services"})

		for _, c := range targets {
			metrics.IncTerminationRequest(c.name)
			if err := c.inst.Terminate(); err != nil {
				s.emit(Event{
					Service: c.name,
					Type:    EventTypeNotice,
					Level:   "debug",
					Reason:  ReasonStopFailed,
					PID:     c.inst.PID(),
					Message: fmt.Sprintf("termination request for %s failed: %v", c.name, err),
					Err:     err,
				})
			}
		}

		s.awaitExit(targets)
		s.setState(StateExited)
	})
}

func (s *Supervisor) awaitExit(targets []*child) {
	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	expired := false
	for _, c := range targets {
		if !expired {
			select {
			case <-c.inst.Done():
				s.stopped(c)
				continue
			case <-timer.C:
				expired = true
			}
		}
		select {
		case <-c.inst.Done():
			s.stopped(c)
		default:
			s.emit(Event{
				Service: c.name,
				Type:    EventTypeNotice,
				Level:   "warn",
				Reason:  ReasonStopTimeout,
				PID:     c.inst.PID(),
				Message: fmt.Sprintf("%s (pid %d) still running after %s", c.name, c.inst.PID(), s.stopTimeout),
			})
		}
	}
}

func (s *Supervisor) stopped(c *child) {
	metrics.SetChildRunning(c.name, false)
	s.emit(Event{
		Service: c.name,
		Type:    EventTypeStopped,
		Reason:  ReasonShutdown,
		PID:     c.inst.PID(),
		Message: fmt.Sprintf("Stopped %s", c.name),
	})
}

func (s *Supervisor) recorded() []*child {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*child, 0, len(s.children))
	for _, c := range s.children {
		if c.inst != nil {
			out = append(out, c)
		}
	}
	return out
}

func (s *Supervisor) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	metrics.SetSupervisorState(to.String())
	return true
}

func (s *Supervisor) setState(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
	metrics.SetSupervisorState(to.String())
}

func buildStartSpec(name string, svc *config.ServiceSpec, stdout, stderr io.Writer) runtime.StartSpec {
	spec := runtime.StartSpec{
		Name:    name,
		Workdir: svc.ResolvedWorkdir,
		Stdout:  stdout,
		Stderr:  stderr,
	}
	if len(svc.Command) > 0 {
		spec.Command = append([]string(nil), svc.Command...)
	}
	if len(svc.Env) > 0 {
		env := make(map[string]string, len(svc.Env))
		for k, v := range svc.Env {
			env[k] = v
		}
		spec.Env = env
	}
	return spec
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func titleCase(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
