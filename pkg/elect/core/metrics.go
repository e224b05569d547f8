package core

import "github.com/prometheus/client_golang/prometheus"

// TransportMetrics counts transport activity. A nil bundle disables
// instrumentation.
type TransportMetrics struct {
	DatagramsReceived prometheus.Counter
	DatagramsSent     prometheus.Counter
	SendErrors        prometheus.Counter
	ForwardDrops      prometheus.Counter
}

// EngineMetrics counts protocol progress. A nil bundle disables
// instrumentation.
type EngineMetrics struct {
	RoundsCompleted  prometheus.Counter
	BestAdopted      prometheus.Counter
	MalformedDropped prometheus.Counter
	Converged        prometheus.Counter
}

// NewTransportMetrics builds and registers the transport counters.
func NewTransportMetrics(reg prometheus.Registerer) *TransportMetrics {
	m := &TransportMetrics{
		DatagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elect", Subsystem: "transport",
			Name: "datagrams_received_total",
			Help: "Datagrams read from the socket and forwarded.",
		}),
		DatagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elect", Subsystem: "transport",
			Name: "datagrams_sent_total",
			Help: "Datagrams multicast to the group.",
		}),
		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elect", Subsystem: "transport",
			Name: "send_errors_total",
			Help: "Failed multicast sends.",
		}),
		ForwardDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elect", Subsystem: "transport",
			Name: "forward_drops_total",
			Help: "Inbound payloads dropped because the engine inbox was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.DatagramsReceived, m.DatagramsSent, m.SendErrors, m.ForwardDrops)
	}
	return m
}

// NewEngineMetrics builds and registers the engine counters.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		RoundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elect", Subsystem: "engine",
			Name: "rounds_completed_total",
			Help: "Election merge rounds completed.",
		}),
		BestAdopted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elect", Subsystem: "engine",
			Name: "best_adopted_total",
			Help: "Merge steps that adopted a better pair.",
		}),
		MalformedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elect", Subsystem: "engine",
			Name: "malformed_dropped_total",
			Help: "Datagrams dropped by the parser.",
		}),
		Converged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elect", Subsystem: "engine",
			Name: "converged_total",
			Help: "Elections that reached convergence.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.RoundsCompleted, m.BestAdopted, m.MalformedDropped, m.Converged)
	}
	return m
}
