package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/ipv6"

	"github.com/vialba/go-elect/pkg/elect/types"
)

var (
	// ErrEngineUnreachable is returned when the startup handshake with
	// the engine task exhausts its attempts.
	ErrEngineUnreachable = errors.New("engine did not accept the transport handshake")

	// ErrNoLinkLocalAddress is returned when no usable interface carries
	// a link-local IPv6 address.
	ErrNoLinkLocalAddress = errors.New("no link-local IPv6 address available")
)

const (
	handshakeAttempts = 10
	handshakeInterval = time.Second
	receiveInterval   = time.Second
	receiveBufferSize = 64
)

// Transport moves protocol datagrams between the engine and the network.
type Transport interface {
	// Run the receive loop until the context is cancelled. The loop
	// performs the startup handshake with the engine first.
	Run(ctx context.Context) error

	// Inbox accepting outbound multicast requests.
	Inbox() *Mailbox

	// Close releases the socket.
	Close()
}

// UDPTransport owns the socket bound to the well known port and the
// membership of the link-local all-nodes group.
type UDPTransport struct {
	log     types.Logger
	engine  types.Handle
	inbox   *Mailbox
	metrics *TransportMetrics

	conn  *net.UDPConn
	pconn *ipv6.PacketConn
	group *net.UDPAddr
	local string
}

// NewUDPTransport binds the socket, joins the multicast group and discovers
// the local link-local address. The engine handle is where inbound payloads
// are forwarded.
func NewUDPTransport(conf *types.Configuration, engine types.Handle, metrics *TransportMetrics, log types.Logger) (*UDPTransport, error) {
	port := conf.Port
	if port == 0 {
		port = types.ServerPort
	}
	ifi, local, err := linkLocalInterface(conf.Interface)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.IPv6unspecified, Port: port})
	if err != nil {
		return nil, fmt.Errorf("binding port %d: %w", port, err)
	}

	pconn := ipv6.NewPacketConn(conn)
	group := &net.UDPAddr{IP: net.ParseIP(types.MulticastGroup), Port: port, Zone: ifi.Name}
	if err := pconn.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining %s on %s: %w", types.MulticastGroup, ifi.Name, err)
	}
	if err := pconn.SetMulticastInterface(ifi); err != nil {
		conn.Close()
		return nil, err
	}
	// Link scope only; peers on the same link never loop our own sends.
	pconn.SetMulticastHopLimit(1)
	pconn.SetMulticastLoopback(false)

	t := &UDPTransport{
		log:     log,
		engine:  engine,
		inbox:   NewMailbox("transport", types.DefaultQueueSize),
		metrics: metrics,
		conn:    conn,
		pconn:   pconn,
		group:   group,
		local:   local,
	}
	log.Infof("started UDP server on port %d, local address %s", port, local)
	return t, nil
}

// LocalAddress is the textual link-local address announced to the engine.
func (t *UDPTransport) LocalAddress() string {
	return t.local
}

// Implements the Transport interface.
func (t *UDPTransport) Inbox() *Mailbox {
	return t.inbox
}

// Implements the Transport interface.
func (t *UDPTransport) Run(ctx context.Context) error {
	if err := t.handshake(ctx); err != nil {
		return err
	}
	if err := t.engine.TrySend(types.Message{
		Kind:    types.KindAddress,
		Payload: []byte(t.local),
		Sender:  t.inbox,
	}); err != nil {
		return err
	}

	buffer := make([]byte, receiveBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t.receiveOnce(buffer)
		t.drainOutbound()
	}
}

// The engine task may come up after us, so keep knocking until it accepts
// the announcement or the attempt budget runs out.
func (t *UDPTransport) handshake(ctx context.Context) error {
	announce := func() error {
		return t.engine.TrySend(types.Message{
			Kind:   types.KindTransportUp,
			Sender: t.inbox,
		})
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(handshakeInterval), handshakeAttempts-1),
		ctx,
	)
	if err := backoff.Retry(announce, policy); err != nil {
		t.log.Errorf("timed out on communicating with the engine task: %v", err)
		return ErrEngineUnreachable
	}
	t.log.Info("transport initiated communication with the engine task")
	return nil
}

func (t *UDPTransport) receiveOnce(buffer []byte) {
	t.conn.SetReadDeadline(time.Now().Add(receiveInterval))
	n, _, err := t.conn.ReadFromUDP(buffer)
	if err != nil {
		if !isTransientReceive(err) {
			t.log.Errorf("failed to receive UDP: %v", err)
		}
		return
	}
	if n == 0 || n > types.MaxDatagramLen {
		return
	}
	if t.metrics != nil {
		t.metrics.DatagramsReceived.Inc()
	}
	payload := make([]byte, n)
	copy(payload, buffer[:n])
	err = t.engine.TrySend(types.Message{
		Kind:    types.KindDatagram,
		Payload: payload,
		Sender:  t.inbox,
	})
	if err != nil {
		t.log.Warnf("dropping inbound payload, engine inbox unavailable: %v", err)
		if t.metrics != nil {
			t.metrics.ForwardDrops.Inc()
		}
	}
}

// Any datagram found in the inbox is a multicast send request.
func (t *UDPTransport) drainOutbound() {
	for {
		msg, ok := t.inbox.TryReceive()
		if !ok {
			return
		}
		if msg.Kind != types.KindDatagram || len(msg.Payload) == 0 || len(msg.Payload) > types.MaxDatagramLen {
			t.log.Warnf("ignoring non-datagram outbound request kind=%d", msg.Kind)
			continue
		}
		if _, err := t.conn.WriteToUDP(msg.Payload, t.group); err != nil {
			t.log.Errorf("could not send %q: %v", msg.Payload, err)
			if t.metrics != nil {
				t.metrics.SendErrors.Inc()
			}
			continue
		}
		if t.metrics != nil {
			t.metrics.DatagramsSent.Inc()
		}
	}
}

// Implements the Transport interface.
func (t *UDPTransport) Close() {
	t.inbox.Close()
	t.pconn.Close()
}

func isTransientReceive(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// linkLocalInterface picks the interface to join the group on and its
// link-local address. An empty name selects the first up, multicast capable
// interface carrying one.
func linkLocalInterface(name string) (*net.Interface, string, error) {
	var candidates []net.Interface
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, "", err
		}
		candidates = []net.Interface{*ifi}
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return nil, "", err
		}
		candidates = all
	}

	for i := range candidates {
		ifi := &candidates[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP
			if ip.To4() == nil && ip.IsLinkLocalUnicast() {
				return ifi, ip.String(), nil
			}
		}
	}
	return nil, "", ErrNoLinkLocalAddress
}
