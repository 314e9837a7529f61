package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// States lists every supervisor state label, in lifecycle order.
var States = []string{"not_started", "running", "terminating", "exited"}

var (
	registry = prometheus.NewRegistry()

	childRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "duet",
		Name:      "child_running",
		Help:      "Whether a supervised child process is running (1=running, 0=exited).",
	}, []string{"service"})

	childSpawns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duet",
		Name:      "child_spawns_total",
		Help:      "Total number of spawn attempts for each child, labelled by outcome.",
	}, []string{"service", "outcome"})

	terminationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duet",
		Name:      "termination_requests_total",
		Help:      "Total number of termination requests sent to each child.",
	}, []string{"service"})

	supervisorState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "duet",
		Name:      "supervisor_state",
		Help:      "Current supervisor state (1 for the active state, 0 otherwise).",
	}, []string{"state"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "duet",
		Name:      "build_info",
		Help:      "Build metadata for the running duet binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(childRunning, childSpawns, terminationRequests, supervisorState, buildInfo)
}

// Registry returns the Prometheus registry containing all duet metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetChildRunning records whether the named child is currently running.
func SetChildRunning(service string, running bool) {
	if service == "" {
		return
	}
	value := 0.0
	if running {
		value = 1.0
	}
	childRunning.WithLabelValues(service).Set(value)
}

// ObserveSpawn counts a spawn attempt for the named child.
func ObserveSpawn(service string, err error) {
	if service == "" {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	childSpawns.WithLabelValues(service, outcome).Inc()
}

// IncTerminationRequest counts a termination request sent to the named child.
func IncTerminationRequest(service string) {
	if service == "" {
		return
	}
	terminationRequests.WithLabelValues(service).Inc()
}

// SetSupervisorState marks state as the active supervisor state.
func SetSupervisorState(state string) {
	for _, s := range States {
		value := 0.0
		if s == state {
			value = 1.0
		}
		supervisorState.WithLabelValues(s).Set(value)
	}
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetService clears all series recorded for a child.
func ResetService(service string) {
	if service == "" {
		return
	}
	childRunning.DeleteLabelValues(service)
	childSpawns.DeletePartialMatch(prometheus.Labels{"service": service})
	terminationRequests.DeleteLabelValues(service)
}
