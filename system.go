package troupe

import (
	"context"
	"encoding/binary"
	"iter"
	"log/slog"
	"time"
	"weak"

	"github.com/google/uuid"

	"github.com/lguibr/troupe/actorid"
)

// SystemConfig configures a System; it is the only source of its runtime
// tuning. The zero value is completed with defaults by New.
type SystemConfig struct {
	// MaxActors bounds the address pool's capacity.
	MaxActors int
	// DefaultStartTimeout is the timeout a supervisor uses for StartChild
	// when a ChildSpec does not override it.
	DefaultStartTimeout time.Duration
	// Logger receives lifecycle, restart and failure events. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

const defaultMaxActors = 1 << 16

func (c SystemConfig) withDefaults() SystemConfig {
	if c.MaxActors <= 0 {
		c.MaxActors = defaultMaxActors
	}
	if c.DefaultStartTimeout <= 0 {
		c.DefaultStartTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// System is the top-level façade: spawn, send, signal exit, wait,
// enumerate, info. Callers reach an actor only through a
// System; actors reach each other only through the weak reference a
// System hands to their Context.
type System struct {
	tag    uint32
	cfg    SystemConfig
	pool   *actorid.Pool
	table  *entryTable
	logger *slog.Logger
}

// New constructs a System. Each System is tagged with a random id (drawn
// via google/uuid, the same dependency the pack uses elsewhere for
// collision-free identifiers) so that ActorIDs minted by independently
// created Systems in the same process never alias (actorid.Pool.Valid
// checks this tag first).
func New(cfg SystemConfig) *System {
	cfg = cfg.withDefaults()
	tag := binary.BigEndian.Uint32(uuid.New()[:4])
	return &System{
		tag:    tag,
		cfg:    cfg,
		pool:   actorid.New(tag, cfg.MaxActors),
		table:  newEntryTable(cfg.MaxActors),
		logger: cfg.Logger,
	}
}

// SystemWeakRef is a weak handle to a System. An actor should never keep
// its enclosing System alive by itself; it should instead be able to
// observe that every strong handle has been dropped while it keeps
// running. Go 1.24's weak.Pointer expresses that directly.
type SystemWeakRef struct {
	ptr weak.Pointer[System]
}

// Upgrade returns the System, or nil if it has been collected.
func (r SystemWeakRef) Upgrade() *System { return r.ptr.Value() }

// Downgrade returns a weak reference to s, handed to every actor's
// Context so actors never hold the System alive.
func (s *System) Downgrade() SystemWeakRef {
	return SystemWeakRef{ptr: weak.Make(s)}
}

// Logger returns the System's configured logger.
func (s *System) Logger() *slog.Logger { return s.logger }

// Config returns the System's configuration.
func (s *System) Config() SystemConfig { return s.cfg }

// Behaviour is the actor behaviour contract: a function over a Context and
// an argument, whose return value maps to an Exit via
// intoExit when the behaviour returns. A panic inside the behaviour is
// recovered and mapped the same way, carrying the recovered value.
type Behaviour[Args, M any] func(ctx Context[M], args Args) any

// Spawn allocates a slot, wires the actor's mailboxes, pre-installs
// opts.Links (before the entry is exposed, so the link set is established
// before init-ack can fire), and starts the actor's Runner.
//
// A peer that cannot be linked (already gone) is compensated with a
// pre-enqueued SigExit(peer, NoActor) placed directly into the new
// actor's own system-message queue, before that queue is ever exposed in
// the Entry Table — the new actor observes the dead link exactly once,
// on its first receive.
func Spawn[Args, M any](sys *System, behaviour Behaviour[Args, M], args Args, opts SpawnOpts) (actorid.ID, error) {
	lease, err := sys.pool.Acquire()
	if err != nil {
		return actorid.ID{}, &SpawnError{Kind: SpawnMaxActorsLimit, Source: err}
	}
	id := lease.ID()

	msgQ := newUnboundedQueue[M]()
	sysQ := newUnboundedQueue[sysMsg]()

	msgSend := func(m any) (accepted bool, typeMatched bool) {
		typed, ok := m.(M)
		if !ok {
			return false, false
		}
		return msgQ.Send(typed), true
	}

	links := opts.Links()
	established := make([]actorid.ID, 0, len(links))
	for _, peer := range links {
		// The new actor's own half of the link is established regardless
		// of whether peer is still alive to receive the reciprocal Link —
		// exactly as if it had processed a normal sysLink itself. That is
		// what lets the compensating SigExit below pass the "from must be
		// linked" gate in handleSigExit instead of being silently ignored.
		established = append(established, peer)
		if !sys.sendSysMsg(peer, sysLink{id: id}) {
			sysQ.Send(sysSigExit{from: peer, reason: NoActor()})
		}
	}

	sys.table.put(id, msgSend, sysQ)

	r := &runner[Args, M]{
		system:    sys,
		lease:     lease,
		selfID:    id,
		msgQ:      msgQ,
		sysQ:      sysQ,
		opts:      opts,
		links:     established,
		behaviour: behaviour,
		args:      args,
	}
	r.start()

	return id, nil
}

// SpawnAndAwait spawns behaviour with a fresh init-ack channel wired onto
// opts, then blocks until the actor acks or timeout elapses — the contract
// a supervisor's StartChild relies on. A child that acks with a non-nil
// error, or that fails to ack in time, is asked to exit (Shutdown) so it
// does not leak, and SpawnAndAwait reports a SpawnError wrapping the cause.
func SpawnAndAwait[Args, M any](ctx context.Context, sys *System, behaviour Behaviour[Args, M], args Args, opts SpawnOpts, timeout time.Duration) (actorid.ID, error) {
	ack := make(InitAck, 1)
	opts = opts.WithInitAck(ack)

	id, err := Spawn(sys, behaviour, args, opts)
	if err != nil {
		return actorid.ID{}, err
	}

	ackCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case ackErr, ok := <-ack:
		if ok && ackErr != nil {
			sys.Exit(id, Shutdown())
			return actorid.ID{}, &SpawnError{Kind: SpawnStartChildFailed, Source: ackErr}
		}
		return id, nil
	case <-ackCtx.Done():
		sys.Exit(id, Shutdown())
		return actorid.ID{}, &SpawnError{Kind: SpawnStartTimeout}
	}
}

// Send resolves to's slot and, if the generation matches and the stored
// sender accepts M, enqueues message. A stale id, unknown id, or message
// whose runtime type does not match the actor's declared message type is
// silently dropped (logged at Warn).
func (s *System) Send(to actorid.ID, message any) {
	snap, ok := s.table.read(to)
	if !ok || snap.runningID != to || snap.msgSend == nil {
		return
	}
	accepted, typeMatched := snap.msgSend(message)
	if !typeMatched {
		s.logger.Warn("troupe: dropped message, type mismatch", "actor", to.String())
		return
	}
	if !accepted {
		s.logger.Warn("troupe: dropped message, mailbox closed", "actor", to.String())
	}
}

// sendSysMsg delivers msg to to's system-message queue, reporting false
// on slot vacancy, generation mismatch, or a closed queue.
func (s *System) sendSysMsg(to actorid.ID, msg sysMsg) bool {
	snap, ok := s.table.read(to)
	if !ok || snap.runningID != to || snap.sysQ == nil {
		return false
	}
	return snap.sysQ.Send(msg)
}

// Exit delivers SigExit(id, reason) to id. Because from equals id itself,
// this bypasses the link-membership gate in handleSigExit regardless of
// whether id ever linked to anyone.
func (s *System) Exit(id actorid.ID, reason Exit) {
	s.sendSysMsg(id, sysSigExit{from: id, reason: reason})
}

// Link sends Link to both a and b. If delivery to one side fails, the
// other is compensated with SigExit(otherId, NoActor) so it observes the
// failed link instead of silently keeping a one-sided association.
func (s *System) Link(a, b actorid.ID) {
	aOK := s.sendSysMsg(a, sysLink{id: b})
	bOK := s.sendSysMsg(b, sysLink{id: a})
	if aOK && !bOK {
		s.sendSysMsg(a, sysSigExit{from: b, reason: NoActor()})
	}
	if bOK && !aOK {
		s.sendSysMsg(b, sysSigExit{from: a, reason: NoActor()})
	}
}

// Wait blocks until id terminates (or ctx is done), returning its final
// Exit. Registration talks directly to the Entry Table rather than
// round-tripping through id's Runner, so there is a single authority —
// the Entry Table's own termination broadcast — to register a waiter
// against instead of two competing notification paths.
func (s *System) Wait(ctx context.Context, id actorid.ID) Exit {
	reply := make(chan Exit, 1)
	if !s.table.addWaiter(id, reply) {
		return NoActor()
	}
	select {
	case reason := <-reply:
		return reason
	case <-ctx.Done():
		return NoActor()
	}
}

// AllActors iterates the ActorIDs currently live, as of the moment of the
// call.
func (s *System) AllActors() iter.Seq[actorid.ID] {
	snapshot := s.table.snapshotIDs()
	return func(yield func(actorid.ID) bool) {
		for _, id := range snapshot {
			if !yield(id) {
				return
			}
		}
	}
}

// ActorInfo round-trips a GetInfo system message to id, returning its
// inspection snapshot. Reports false if id is unknown or stale.
func (s *System) ActorInfo(ctx context.Context, id actorid.ID) (ActorInfo, bool) {
	reply := make(chan ActorInfo, 1)
	if !s.sendSysMsg(id, sysGetInfo{reply: reply}) {
		return ActorInfo{}, false
	}
	select {
	case info := <-reply:
		return info, true
	case <-ctx.Done():
		return ActorInfo{}, false
	}
}

// Channel resolves to to a typed send-only channel: a Go channel the
// caller can send on (directly or in a select) instead of calling
// System.Send repeatedly.
// It costs one extra goroutine per resolved channel, which forwards onto the
// actor's mailbox via System.Send and exits once ch is closed. Messages
// are still subject to System.Send's type check at forward time; a stale
// or unknown to is rejected immediately.
func Channel[M any](sys *System, to actorid.ID) (chan<- M, error) {
	snap, ok := sys.table.read(to)
	if !ok || snap.runningID != to {
		return nil, ErrNoActorChannel
	}

	ch := make(chan M, 1)
	go func() {
		for m := range ch {
			sys.Send(to, m)
		}
	}()
	return ch, nil
}
