package elect

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialba/go-elect/pkg/elect/core"
	"github.com/vialba/go-elect/pkg/elect/definition"
	"github.com/vialba/go-elect/pkg/elect/types"
)

// A transport double that performs the startup handshake and then idles,
// standing in for the socket-backed implementation.
type nullTransport struct {
	engine types.Handle
	inbox  *core.Mailbox
	addr   string
}

// Implements the core.Transport interface.
func (t *nullTransport) Run(ctx context.Context) error {
	if err := t.engine.TrySend(types.Message{Kind: types.KindTransportUp, Sender: t.inbox}); err != nil {
		return err
	}
	if err := t.engine.TrySend(types.Message{Kind: types.KindAddress, Payload: []byte(t.addr)}); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// Implements the core.Transport interface.
func (t *nullTransport) Inbox() *core.Mailbox {
	return t.inbox
}

// Implements the core.Transport interface.
func (t *nullTransport) Close() {
	t.inbox.Close()
}

func quietConfiguration(name string) *types.Configuration {
	conf := DefaultConfiguration(name)
	conf.Logger = definition.NewDefaultLoggerWithOutput(name, io.Discard)
	conf.Timing.Tick = 5 * time.Millisecond
	return conf
}

func newNullNode(t *testing.T, name, addr string) *Node {
	t.Helper()
	node, err := NewNodeWithTransport(quietConfiguration(name), func(engine *core.Mailbox) (core.Transport, error) {
		return &nullTransport{
			engine: engine,
			inbox:  core.NewMailbox("transport", types.DefaultQueueSize),
			addr:   addr,
		}, nil
	})
	require.NoError(t, err)
	return node
}

func TestNode_LeaderQueryAfterAnnouncement(t *testing.T) {
	node := newNullNode(t, "node-1", "fe80::1")
	defer node.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Eventually the announcement lands and the node reports itself.
	deadline := time.Now().Add(3 * time.Second)
	leader := ""
	for time.Now().Before(deadline) {
		var err error
		leader, err = node.WhoIsLeader(ctx)
		require.NoError(t, err)
		if leader == "fe80::1" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, "fe80::1", leader)
}

func TestNode_ShutdownIsIdempotent(t *testing.T) {
	node := newNullNode(t, "node-2", "fe80::2")
	node.Shutdown()
	node.Shutdown()
}
