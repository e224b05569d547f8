package elect

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vialba/go-elect/pkg/elect/core"
)

// Metrics bundles the collectors handed to the node tasks.
type Metrics struct {
	Engine    *core.EngineMetrics
	Transport *core.TransportMetrics
}

// NewMetrics builds the bundle, registering on the given registerer. A nil
// registerer keeps the counters unregistered but still usable.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Engine:    core.NewEngineMetrics(reg),
		Transport: core.NewTransportMetrics(reg),
	}
}
