package core

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialba/go-elect/pkg/elect/definition"
	"github.com/vialba/go-elect/pkg/elect/types"
)

func TestTransport_UnknownInterface(t *testing.T) {
	conf := &types.Configuration{
		Name:      "bad-iface",
		Interface: "does-not-exist-0",
		Logger:    definition.NewDefaultLoggerWithOutput("bad-iface", io.Discard),
	}
	engine := NewMailbox("engine", types.EngineQueueSize)
	_, err := NewUDPTransport(conf, engine, nil, conf.Logger)
	assert.Error(t, err)
}

func TestTransport_HandshakeAnnouncesHandle(t *testing.T) {
	engine := NewMailbox("engine", types.EngineQueueSize)
	trans := &UDPTransport{
		log:    definition.NewDefaultLoggerWithOutput("transport", io.Discard),
		engine: engine,
		inbox:  NewMailbox("transport", types.DefaultQueueSize),
	}

	require.NoError(t, trans.handshake(context.Background()))

	msg, ok := engine.TryReceive()
	require.True(t, ok)
	assert.Equal(t, types.KindTransportUp, msg.Kind)
	assert.Equal(t, types.Handle(trans.inbox), msg.Sender)
}

func TestTransport_HandshakeGivesUp(t *testing.T) {
	// An engine inbox with no room makes every attempt fail; the
	// cancelled context keeps the retry loop from sleeping out the
	// full attempt budget.
	engine := NewMailbox("engine", 1)
	require.NoError(t, engine.TrySend(types.Message{Kind: types.KindDatagram}))

	trans := &UDPTransport{
		log:    definition.NewDefaultLoggerWithOutput("transport", io.Discard),
		engine: engine,
		inbox:  NewMailbox("transport", types.DefaultQueueSize),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := trans.handshake(ctx)
	assert.ErrorIs(t, err, ErrEngineUnreachable)
}

func TestTransport_TransientReceiveClassification(t *testing.T) {
	assert.True(t, isTransientReceive(os.ErrDeadlineExceeded))
	assert.False(t, isTransientReceive(net.ErrClosed))
	assert.False(t, isTransientReceive(io.EOF))
}
