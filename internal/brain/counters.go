package brain

import "github.com/prometheus/client_golang/prometheus"

// Counters are the per-kind structural metrics spec.md §7 requires Brain to
// expose alongside its logs.
type Counters struct {
	TracesStarted     prometheus.Counter
	TracesCompleted   prometheus.Counter
	SimulationErrors  prometheus.Counter
	OverloadedForks   prometheus.Counter
	UnderwaterEmitted prometheus.Counter
}

// NewCounters registers Brain's counters against reg.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		TracesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_brain_traces_started_total",
			Help: "Simulation traces started from an inbound PriceUpdate or PositionEvent.",
		}),
		TracesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_brain_traces_completed_total",
			Help: "Simulation traces that ran to completion before their deadline.",
		}),
		SimulationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_brain_simulation_failures_total",
			Help: "Bucket simulations that errored (excluding overloaded-fork backoffs).",
		}),
		OverloadedForks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_brain_overloaded_fork_total",
			Help: "Bucket acquires that gave up after the fork-pool acquire deadline.",
		}),
		UnderwaterEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vega_brain_underwater_users_total",
			Help: "UnderwaterUser messages emitted to the outbound bus.",
		}),
	}
	reg.MustRegister(c.TracesStarted, c.TracesCompleted, c.SimulationErrors, c.OverloadedForks, c.UnderwaterEmitted)
	return c
}
