package core

import (
	"context"
	"errors"
	"sync"

	"github.com/vialba/go-elect/pkg/elect/types"
)

var (
	// ErrMailboxFull is returned by a non blocking send when the
	// destination queue has no space left.
	ErrMailboxFull = errors.New("mailbox queue is full")

	// ErrMailboxClosed is returned when sending to a task that already
	// shut down.
	ErrMailboxClosed = errors.New("mailbox is closed")
)

// Mailbox is a bounded FIFO inbox owned by a single task. Messages from a
// given sender arrive in order; no order is guaranteed across senders.
type Mailbox struct {
	name string
	ch   chan types.Message
	done chan struct{}
	once sync.Once
}

// NewMailbox creates an inbox with the given queue capacity.
func NewMailbox(name string, capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = types.DefaultQueueSize
	}
	return &Mailbox{
		name: name,
		ch:   make(chan types.Message, capacity),
		done: make(chan struct{}),
	}
}

// Name of the owning task.
func (m *Mailbox) Name() string {
	return m.name
}

// TrySend enqueues without blocking. Implements the types.Handle interface.
func (m *Mailbox) TrySend(msg types.Message) error {
	select {
	case <-m.done:
		return ErrMailboxClosed
	default:
	}
	select {
	case m.ch <- msg:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Send enqueues, suspending until space is available or the context ends.
func (m *Mailbox) Send(ctx context.Context, msg types.Message) error {
	select {
	case <-m.done:
		return ErrMailboxClosed
	default:
	}
	select {
	case <-m.done:
		return ErrMailboxClosed
	case m.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryReceive dequeues without blocking.
func (m *Mailbox) TryReceive() (types.Message, bool) {
	select {
	case msg := <-m.ch:
		return msg, true
	default:
		return types.Message{}, false
	}
}

// Receive dequeues, suspending until a message arrives or the context ends.
func (m *Mailbox) Receive(ctx context.Context) (types.Message, error) {
	select {
	case msg := <-m.ch:
		return msg, nil
	default:
	}
	select {
	case msg := <-m.ch:
		return msg, nil
	case <-m.done:
		return types.Message{}, ErrMailboxClosed
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

// Request sends a request message and blocks until the owner replies or the
// context ends. The sender handle identifies the requester on the receiving
// side.
func (m *Mailbox) Request(ctx context.Context, kind types.Kind, payload []byte, sender types.Handle) (types.Message, error) {
	req, reply := types.NewRequest(kind, payload, sender)
	if err := m.Send(ctx, req); err != nil {
		return types.Message{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

// Close marks the owning task as gone. Pending messages stay readable.
func (m *Mailbox) Close() {
	m.once.Do(func() {
		close(m.done)
	})
}
