package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/fakecam/internal/process"
)

var processTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fakecam",
	Subsystem: "process",
	Name:      "transitions_total",
	Help:      "State transitions of supervised processes",
}, []string{"name", "to"})

// RecordTransition counts a transition of process name into state to. It
// is meant to be called from the registry's state change callback.
func RecordTransition(name string, to process.State) {
	processTransitions.WithLabelValues(name, string(to)).Inc()
}

// Snapshotter lists supervised processes. *process.Registry satisfies it.
type Snapshotter interface {
	Snapshot() []process.Status
}

// ProcessCollector exports the registry's state on every scrape.
type ProcessCollector struct {
	source Snapshotter
	now    func() time.Time

	state           *prometheus.Desc
	pid             *prometheus.Desc
	uptime          *prometheus.Desc
	killUnconfirmed *prometheus.Desc
}

// NewProcessCollector returns a collector over source. Register it with
// prometheus.MustRegister.
func NewProcessCollector(source Snapshotter) *ProcessCollector {
	return &ProcessCollector{
		source: source,
		now:    time.Now,
		state: prometheus.NewDesc("fakecam_process_state",
			"1 for the state the process is in, 0 for the others",
			[]string{"name", "state"}, nil),
		pid: prometheus.NewDesc("fakecam_process_pid",
			"OS pid of the most recent run, 0 if never started",
			[]string{"name"}, nil),
		uptime: prometheus.NewDesc("fakecam_process_uptime_seconds",
			"Seconds since the running process was started",
			[]string{"name"}, nil),
		killUnconfirmed: prometheus.NewDesc("fakecam_process_kill_unconfirmed",
			"1 when SIGKILL was sent but the exit was never observed",
			[]string{"name"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *ProcessCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.pid
	ch <- c.uptime
	ch <- c.killUnconfirmed
}

// Collect implements prometheus.Collector.
func (c *ProcessCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.source.Snapshot() {
		for _, s := range process.AllStates {
			ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, boolValue(st.State == s), st.Name, string(s))
		}
		ch <- prometheus.MustNewConstMetric(c.pid, prometheus.GaugeValue, float64(st.PID), st.Name)

		var up float64
		if st.State == process.StateRunning && !st.StartedAt.IsZero() {
			up = c.now().Sub(st.StartedAt).Seconds()
		}
		ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, up, st.Name)
		ch <- prometheus.MustNewConstMetric(c.killUnconfirmed, prometheus.GaugeValue, boolValue(st.KillUnconfirmed), st.Name)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
