package test

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vialba/go-elect/pkg/elect/core"
	"github.com/vialba/go-elect/pkg/elect/definition"
	"github.com/vialba/go-elect/pkg/elect/types"
)

// FastTiming compresses every protocol deadline so a full election fits in
// a test run. Each deadline is scaled on its own; the ratios between them
// differ from the wire defaults.
func FastTiming() types.ProtocolTiming {
	return types.ProtocolTiming{
		Tick:           5 * time.Millisecond,
		DiscoveryDelay: 400 * time.Millisecond,
		DiscoveryIdle:  60 * time.Millisecond,
		ElectionDelay:  250 * time.Millisecond,
		SettleInterval: 30 * time.Millisecond,
		ResponseWindow: 100 * time.Millisecond,
		StableRounds:   types.DefaultStableRounds,
	}
}

type clusterNode struct {
	addr    string
	engine  *core.Engine
	metrics *core.EngineMetrics
}

// Cluster runs several engines in one process, connected by a hub that
// plays the link: every datagram an engine hands to its transport is copied
// to every other engine, never back to the sender.
type Cluster struct {
	T *testing.T

	mutex   *sync.Mutex
	nodes   []*clusterNode
	hub     *core.Mailbox
	invoker core.Invoker
	ctx     context.Context
	cancel  context.CancelFunc
}

// CreateCluster starts one engine per value. Node i gets address fe80::<i+1>.
func CreateCluster(t *testing.T, values []uint16) *Cluster {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cluster{
		T:       t,
		mutex:   &sync.Mutex{},
		hub:     core.NewMailbox("hub", 256),
		invoker: core.NewInvoker(),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.invoker.Spawn(c.route)
	for i, value := range values {
		c.AddNode(fmt.Sprintf("fe80::%d", i+1), value)
	}
	return c
}

// AddNode joins one more engine to the link, performing the startup
// handshake the transport would do.
func (c *Cluster) AddNode(addr string, value uint16) {
	conf := &types.Configuration{
		Name:          addr,
		QueueSize:     types.EngineQueueSize,
		ElectionValue: value,
		Timing:        FastTiming(),
		Logger:        definition.NewDefaultLoggerWithOutput(addr, io.Discard),
	}
	node := &clusterNode{
		addr:    addr,
		metrics: core.NewEngineMetrics(nil),
	}
	node.engine = core.NewEngine(conf, core.NewMailbox(addr, conf.QueueSize), node.metrics, conf.Logger)

	c.mutex.Lock()
	c.nodes = append(c.nodes, node)
	c.mutex.Unlock()

	inbox := node.engine.Inbox()
	inbox.TrySend(types.Message{Kind: types.KindTransportUp, Sender: c.hub})
	inbox.TrySend(types.Message{Kind: types.KindAddress, Payload: []byte(addr)})

	c.invoker.Spawn(func() {
		node.engine.Run(c.ctx)
	})
}

// The link between the engines. Dropping on a full inbox mirrors what the
// real transport does when the engine lags.
func (c *Cluster) route() {
	for {
		msg, err := c.hub.Receive(c.ctx)
		if err != nil {
			return
		}
		if msg.Kind != types.KindDatagram {
			continue
		}
		c.mutex.Lock()
		peers := make([]*clusterNode, len(c.nodes))
		copy(peers, c.nodes)
		c.mutex.Unlock()
		for _, peer := range peers {
			if msg.Sender == types.Handle(peer.engine.Inbox()) {
				continue
			}
			payload := make([]byte, len(msg.Payload))
			copy(payload, msg.Payload)
			peer.engine.Inbox().TrySend(types.Message{
				Kind:    types.KindDatagram,
				Payload: payload,
				Sender:  c.hub,
			})
		}
	}
}

// Leader queries node i over the bus, the way the shell does.
func (c *Cluster) Leader(i int) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.mutex.Lock()
	node := c.nodes[i]
	c.mutex.Unlock()
	res, err := node.engine.Inbox().Request(ctx, types.KindLeaderQuery, nil, nil)
	if err != nil {
		c.T.Errorf("leader query on %s failed: %v", node.addr, err)
		return ""
	}
	return string(res.Payload)
}

// Converged reports whether node i latched a leader, observed through the
// engine metrics.
func (c *Cluster) Converged(i int) bool {
	c.mutex.Lock()
	node := c.nodes[i]
	c.mutex.Unlock()
	return testutil.ToFloat64(node.metrics.Converged) > 0
}

// AllAgreeOn waits until every node both converged and reports the
// expected leader.
func (c *Cluster) AllAgreeOn(expected string, within time.Duration) bool {
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		agreed := true
		for i := 0; i < c.size(); i++ {
			if !c.Converged(i) || c.Leader(i) != expected {
				agreed = false
				break
			}
		}
		if agreed {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func (c *Cluster) size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.nodes)
}

// Off stops every engine and the hub, waiting for all routines to return.
func (c *Cluster) Off() {
	c.cancel()
	c.mutex.Lock()
	for _, node := range c.nodes {
		node.engine.Inbox().Close()
	}
	c.mutex.Unlock()
	c.hub.Close()
	c.invoker.Stop()
}

func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	t.Errorf("%s", buf)
}

func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan bool)
	go func() {
		cb()
		done <- true
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}
