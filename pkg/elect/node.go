package elect

import (
	"context"
	"sync"

	"github.com/vialba/go-elect/pkg/elect/core"
	"github.com/vialba/go-elect/pkg/elect/types"
)

// Holds information for shutting down the node.
type poweroff struct {
	shutdown bool
	ch       chan struct{}
	mutex    *sync.Mutex
}

// Node wires the engine and transport tasks of a single participant and
// exposes the leader query.
type Node struct {
	configuration *types.Configuration
	engine        *core.Engine
	transport     core.Transport
	invoker       core.Invoker
	cancel        context.CancelFunc
	off           poweroff
}

// NewNode creates a node on the real UDP transport and starts both tasks.
func NewNode(configuration *types.Configuration) (*Node, error) {
	metrics := NewMetrics(nil)
	return newNode(configuration, metrics, func(engine *core.Engine) (core.Transport, error) {
		return core.NewUDPTransport(configuration, engine.Inbox(), metrics.Transport, configuration.Logger)
	})
}

// NewNodeWithTransport creates a node on a caller supplied transport. The
// builder receives the engine inbox the transport must perform its startup
// handshake against.
func NewNodeWithTransport(configuration *types.Configuration, build func(engine *core.Mailbox) (core.Transport, error)) (*Node, error) {
	return newNode(configuration, NewMetrics(nil), func(engine *core.Engine) (core.Transport, error) {
		return build(engine.Inbox())
	})
}

func newNode(configuration *types.Configuration, metrics *Metrics, build func(*core.Engine) (core.Transport, error)) (*Node, error) {
	inbox := core.NewMailbox("engine", configuration.QueueSize)
	engine := core.NewEngine(configuration, inbox, metrics.Engine, configuration.Logger)

	transport, err := build(engine)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	node := &Node{
		configuration: configuration,
		engine:        engine,
		transport:     transport,
		invoker:       core.NewInvoker(),
		cancel:        cancel,
		off: poweroff{
			ch:    make(chan struct{}),
			mutex: &sync.Mutex{},
		},
	}

	node.invoker.Spawn(func() {
		engine.Run(ctx)
	})
	node.invoker.Spawn(func() {
		if err := transport.Run(ctx); err != nil && ctx.Err() == nil {
			configuration.Logger.Errorf("transport task stopped: %v", err)
		}
	})
	return node, nil
}

// WhoIsLeader asks the engine for the current leader address. Blocks until
// the engine answers or the context ends. The engine services queries in
// every phase, so the wait is short in practice.
func (n *Node) WhoIsLeader(ctx context.Context) (string, error) {
	res, err := n.engine.Inbox().Request(ctx, types.KindLeaderQuery, nil, nil)
	if err != nil {
		return "", err
	}
	return string(res.Payload), nil
}

// Done is closed when Shutdown is first called, before the tasks have
// returned.
func (n *Node) Done() <-chan struct{} {
	return n.off.ch
}

// Shutdown stops both tasks and waits for them to return. Safe to call
// more than once.
func (n *Node) Shutdown() {
	n.off.mutex.Lock()
	defer n.off.mutex.Unlock()

	if n.off.shutdown {
		return
	}
	n.off.shutdown = true
	close(n.off.ch)

	n.cancel()
	n.transport.Close()
	n.engine.Inbox().Close()
	n.invoker.Stop()
}
