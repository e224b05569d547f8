// Package elect implements a decentralized single-shot leader election for
// nodes on one link. Each node draws a random candidacy weight, discovers
// its neighbors over link-local all-nodes multicast and floods the minimum
// weight until it stays stable for a configured number of rounds; the node
// carrying that minimum is the leader, ties broken by the lexicographically
// smaller address. Convergence assumes messages are eventually delivered;
// there is no liveness bound under a lossy transport.
package elect

import (
	"github.com/vialba/go-elect/pkg/elect/definition"
	"github.com/vialba/go-elect/pkg/elect/types"
)

// DefaultConfiguration returns a ready to use configuration with the wire
// protocol constants and the default logger.
func DefaultConfiguration(name string) *types.Configuration {
	return &types.Configuration{
		Name:      name,
		Port:      types.ServerPort,
		QueueSize: types.EngineQueueSize,
		Timing:    types.DefaultTiming(),
		Logger:    definition.NewDefaultLogger(name),
	}
}
