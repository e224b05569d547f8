package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/vialba/go-elect/pkg/elect/helper"
	"github.com/vialba/go-elect/pkg/elect/types"
)

// Discovery sub-states.
const (
	discoveryAnnounce = iota
	discoveryListen
)

// Election sub-states. The numbering keeps the wire-era protocol states;
// state 4 never existed.
const (
	electionAnnounce  = 0
	electionFirstWait = 1
	electionSettle    = 2
	electionCollect   = 3
	electionDone      = 5
)

// tempMinSentinel marks a round with no value heard yet. It sits above
// every legal election value.
const tempMinSentinel = 257

// Engine drives the neighbor discovery and leader election state machines.
// All state here is owned by the engine goroutine; the mailbox is the only
// way in, the leader query reply the only way out.
type Engine struct {
	log     types.Logger
	conf    *types.Configuration
	inbox   *Mailbox
	metrics *EngineMetrics

	// Candidacy weight, immutable after creation.
	m uint16

	ownAddr   string
	transport types.Handle

	neighbors *NeighborTable

	min    uint16
	leader string

	// Round-temporary best, reset at round boundaries.
	tempMin    uint16
	tempLeader string

	// Neighbors that reported this round.
	reported int

	// Remaining no-progress rounds before convergence.
	counter int

	allowElection    bool
	runningDiscovery bool
	runningElection  bool
	hasElectedLeader bool

	stateDiscovery int
	stateElection  int

	started       time.Time
	lastDiscovery time.Time
	lastElection  time.Time
	settleStart   time.Time
	windowStart   time.Time
	electionStart time.Time
	electionEnd   time.Time
}

// NewEngine creates the engine state. The election value is drawn here and
// never changes.
func NewEngine(conf *types.Configuration, inbox *Mailbox, metrics *EngineMetrics, log types.Logger) *Engine {
	m := conf.ElectionValue
	if m == 0 {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		m = helper.ElectionValue(rng)
	}
	e := &Engine{
		log:       log,
		conf:      conf,
		inbox:     inbox,
		metrics:   metrics,
		m:         m,
		neighbors: NewNeighborTable(),
		leader:    types.UnknownLeader,
		tempMin:   tempMinSentinel,
		counter:   conf.Timing.StableRounds,
	}
	e.min = e.m
	return e
}

// Inbox of the engine task.
func (e *Engine) Inbox() *Mailbox {
	return e.inbox
}

// Run the engine loop until the context is cancelled. Each wake-up drains
// at most one inbox message, then advances both state machines.
func (e *Engine) Run(ctx context.Context) error {
	e.start(time.Now())
	e.log.Infof("started engine task, m=%d", e.m)

	ticker := time.NewTicker(e.conf.Timing.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick := <-ticker.C:
			e.step(tick)
		}
	}
}

// The clock starts here: the first discovery run and the election delay
// are both measured from this instant.
func (e *Engine) start(now time.Time) {
	e.started = now
	e.lastElection = now
}

// A single engine iteration.
func (e *Engine) step(now time.Time) {
	if msg, ok := e.inbox.TryReceive(); ok {
		e.dispatch(msg, now)
	}
	e.advanceDiscovery(now)
	e.advanceElection(now)
}

func (e *Engine) dispatch(msg types.Message, now time.Time) {
	switch msg.Kind {
	case types.KindTransportUp:
		if e.transport != nil {
			return
		}
		if msg.Sender == nil {
			e.log.Warn("transport announcement without a handle")
			return
		}
		e.transport = msg.Sender
		e.log.Info("recorded the transport task handle")

	case types.KindAddress:
		if e.ownAddr != "" {
			return
		}
		e.ownAddr = string(msg.Payload)
		e.leader = e.ownAddr
		e.allowElection = true
		e.log.Infof("local address is %s", e.ownAddr)

	case types.KindLeaderQuery:
		err := msg.Reply(types.Message{
			Kind:    types.KindLeaderQuery,
			Payload: []byte(e.leader),
		})
		if err != nil {
			e.log.Warnf("could not answer leader query: %v", err)
		}

	case types.KindDatagram:
		if e.hasElectedLeader {
			return
		}
		d, err := ParseDatagram(msg.Payload)
		if err != nil {
			e.log.Debugf("dropping payload %q: %v", msg.Payload, err)
			if e.metrics != nil {
				e.metrics.MalformedDropped.Inc()
			}
			return
		}
		e.handleDatagram(d, now)

	default:
		e.log.Warnf("received an illegal message kind=%d", msg.Kind)
	}
}

func (e *Engine) handleDatagram(d Datagram, now time.Time) {
	switch d := d.(type) {
	case NDInit:
		if e.ownAddr == "" {
			return
		}
		e.send(NDAck{Addr: e.ownAddr})

	case NDAck:
		e.handleNeighborAck(d.Addr, now)

	case NDHello:
		if d.Addr == e.ownAddr {
			e.log.Debug("acknowledged by a peer")
		}

	case LEInit:
		e.sendBest()

	case LEQuery:
		e.sendBest()

	case LEAck:
		e.handleElectionAck(d, now)
	}
}

// A peer announced itself. New addresses are inserted and greeted; the own
// address is ignored and a duplicate only refreshes the discovery timer, so
// replays leave the table unchanged.
func (e *Engine) handleNeighborAck(addr string, now time.Time) {
	if addr == e.ownAddr || e.ownAddr == "" {
		return
	}
	if _, known := e.neighbors.Lookup(addr); known {
		e.lastDiscovery = now
		return
	}
	if !e.neighbors.Insert(addr) {
		return
	}
	e.log.Infof("discovered neighbor %s (%d known)", addr, e.neighbors.Len())
	e.send(NDHello{Addr: addr})
	e.lastDiscovery = now
}

// A peer reported its current best. Values accumulate into the round
// temporary pair; the carry-over best is only touched at the merge step.
func (e *Engine) handleElectionAck(ack LEAck, now time.Time) {
	if ack.Sender == e.ownAddr {
		return
	}
	i, ok := e.neighbors.Lookup(ack.Sender)
	if !ok {
		return
	}
	if e.neighbors.Val(i) == 0 {
		e.reported++
	}
	e.neighbors.SetVal(i, ack.Min)
	if ack.Min < e.tempMin {
		e.tempMin = ack.Min
		e.tempLeader = ack.Leader
	}
	e.lastElection = now
}

func (e *Engine) advanceDiscovery(now time.Time) {
	if e.hasElectedLeader || e.transport == nil || e.ownAddr == "" {
		return
	}
	timing := e.conf.Timing

	if !e.runningDiscovery {
		var due time.Time
		if e.lastDiscovery.IsZero() {
			due = e.started.Add(timing.DiscoveryDelay / 3)
		} else {
			due = e.lastDiscovery.Add(timing.DiscoveryDelay)
		}
		if now.Before(due) {
			return
		}
		e.log.Info("running neighbor discovery")
		e.runningDiscovery = true
		e.stateDiscovery = discoveryAnnounce
	}

	switch e.stateDiscovery {
	case discoveryAnnounce:
		e.send(NDInit{})
		e.lastDiscovery = now
		e.stateDiscovery = discoveryListen

	case discoveryListen:
		if now.Sub(e.lastDiscovery) <= timing.DiscoveryIdle {
			return
		}
		if e.neighbors.Len() > 0 {
			e.log.Infof("neighbor discovery settled with %d neighbors", e.neighbors.Len())
			e.runningDiscovery = false
		}
		// No acknowledgment for a while: announce again.
		e.stateDiscovery = discoveryAnnounce
	}
}

func (e *Engine) advanceElection(now time.Time) {
	if e.hasElectedLeader || !e.allowElection || e.transport == nil {
		return
	}
	timing := e.conf.Timing

	if !e.runningElection {
		if now.Before(e.lastElection.Add(timing.ElectionDelay)) {
			return
		}
		e.log.Infof("running leader election, m=%d", e.m)
		e.runningElection = true
		e.electionStart = now
		e.counter = timing.StableRounds
		e.stateElection = electionAnnounce
	}

	switch e.stateElection {
	case electionAnnounce:
		e.send(LEInit{})
		e.reported = 0
		e.windowStart = now
		e.stateElection = electionFirstWait

	case electionFirstWait:
		if !e.roundSettled(now) {
			return
		}
		e.resetRound()
		e.settleStart = now
		e.stateElection = electionSettle

	case electionSettle:
		if now.Sub(e.settleStart) < timing.SettleInterval {
			return
		}
		e.windowStart = now
		e.stateElection = electionCollect

	case electionCollect:
		if !e.roundSettled(now) {
			return
		}
		e.merge()
		if e.metrics != nil {
			e.metrics.RoundsCompleted.Inc()
		}
		e.sendBest()
		if e.counter == 0 {
			e.finishElection(now)
			return
		}
		e.resetRound()
		e.settleStart = now
		e.stateElection = electionSettle
	}
}

// A round settles when every known neighbor reported or the response
// window elapsed.
func (e *Engine) roundSettled(now time.Time) bool {
	if e.neighbors.Len() > 0 && e.reported >= e.neighbors.Len() {
		return true
	}
	return now.Sub(e.windowStart) >= e.conf.Timing.ResponseWindow
}

// The merge step folds the round temporary pair into the carry-over best.
// Progress rearms the stability counter; a tied minimum consumes one round
// and breaks the tie towards the lexicographically smaller address.
func (e *Engine) merge() {
	switch {
	case e.tempMin < e.min:
		e.min = e.tempMin
		e.leader = e.tempLeader
		e.counter = e.conf.Timing.StableRounds
		if e.metrics != nil {
			e.metrics.BestAdopted.Inc()
		}
		e.log.Infof("adopted best (%d, %s)", e.min, e.leader)

	case e.tempMin == e.min:
		e.counter--
		if winner := helper.MinAddress(e.tempLeader, e.leader); winner != e.leader {
			e.log.Infof("tie on %d, leader %s wins over %s", e.min, winner, e.leader)
			e.leader = winner
		}
	}
}

func (e *Engine) resetRound() {
	e.tempMin = tempMinSentinel
	e.tempLeader = ""
	e.reported = 0
	e.neighbors.ClearVals()
}

// Convergence latches the best pair forever and releases the neighbor
// table; from here on only leader queries are serviced.
func (e *Engine) finishElection(now time.Time) {
	e.electionEnd = now
	e.hasElectedLeader = true
	e.runningElection = false
	e.runningDiscovery = false
	e.stateElection = electionDone
	e.neighbors = NewNeighborTable()
	if e.metrics != nil {
		e.metrics.Converged.Inc()
	}
	e.log.Infof("elected leader %s with value %d after %v",
		e.leader, e.min, e.electionEnd.Sub(e.electionStart))
}

// Broadcast the current best pair.
func (e *Engine) sendBest() {
	if e.ownAddr == "" {
		return
	}
	e.send(LEAck{Min: e.min, Leader: e.leader, Sender: e.ownAddr})
}

func (e *Engine) send(d Datagram) {
	if e.transport == nil {
		return
	}
	err := e.transport.TrySend(types.Message{
		Kind:    types.KindDatagram,
		Payload: d.Encode(),
		Sender:  e.inbox,
	})
	if err != nil {
		e.log.Warnf("could not hand %q to the transport: %v", d.Encode(), err)
	}
}
