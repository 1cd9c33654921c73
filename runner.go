package troupe

import (
	"context"

	"github.com/lguibr/troupe/actorid"
)

// runner holds everything Spawn needs to start an actor's two goroutines.
// It is discarded once start has launched them; all subsequent state
// lives in backend.
type runner[Args, M any] struct {
	system *System
	lease  *actorid.Lease
	selfID actorid.ID

	msgQ *unboundedQueue[M]
	sysQ *unboundedQueue[sysMsg]

	opts  SpawnOpts
	links []actorid.ID

	behaviour Behaviour[Args, M]
	args      Args
}

// start wires the actor's inboxes and Context, then launches the
// behaviour goroutine and the backend select-loop goroutine. Go has no
// lazily-polled future to race the two against each other, so both
// goroutines start eagerly; link establishment has already happened
// synchronously in Spawn before this call, preserving the
// "links before init-ack" ordering regardless.
func (r *runner[Args, M]) start() {
	inbox := NewPipe[M](r.opts.msgInboxSizeOrDefault())
	signals := NewPipe[Signal](r.opts.sigInboxSizeOrDefault())
	calls := NewPipe[callMsg](1)

	ctx := newContext[M](r.selfID, r.system.Downgrade(), inbox, signals, calls, r.opts.initAck)

	linkSet := make(map[actorid.ID]struct{}, len(r.links))
	for _, id := range r.links {
		linkSet[id] = struct{}{}
	}

	b := &backend[M]{
		system:        r.system,
		lease:         r.lease,
		selfID:        r.selfID,
		msgQ:          r.msgQ,
		sysQ:          r.sysQ,
		inbox:         inbox,
		signals:       signals,
		calls:         calls,
		tasks:         newUnboundedQueue[M](),
		links:         linkSet,
		exitHandler:   r.opts.exitHandler,
		behaviourName: behaviourFuncName(r.behaviour),
		argsType:      typeName[Args](),
		msgType:       typeName[M](),
	}

	go runBehaviour(ctx, r.behaviour, r.args)
	go b.run()
}

// runBehaviour drives a single behaviour invocation. A panic is recovered
// and mapped to an Exit carrying the recovered value, the same path an
// ordinary return value takes through intoExit; an explicit Context.Exit
// call has already issued its own exit signal and unwound via
// runtime.Goexit, so recover sees nothing in that case and this deferred
// function is a no-op.
func runBehaviour[Args, M any](ctx *context[M], behaviour Behaviour[Args, M], args Args) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx.signalExit(intoExit(rec))
		}
	}()
	ret := behaviour(ctx, args)
	ctx.signalExit(intoExit(ret))
}

// backend is the select loop itself: the goroutine that actually owns
// link-set maintenance, trap_exit state, and the mailboxes.
type backend[M any] struct {
	system *System
	lease  *actorid.Lease
	selfID actorid.ID

	msgQ *unboundedQueue[M]
	sysQ *unboundedQueue[sysMsg]

	inbox   *Pipe[M]
	signals *Pipe[Signal]
	calls   *Pipe[callMsg]
	tasks   *unboundedQueue[M]

	links    map[actorid.ID]struct{}
	trapExit bool

	tasksCount  int
	exitHandler ExitHandler

	behaviourName, argsType, msgType string
}

// run executes the select loop to completion and then the termination
// sequence.
func (b *backend[M]) run() {
	reason := b.loop()

	b.msgQ.Close()
	b.inbox.CloseProducer()

	for peer := range b.links {
		b.system.sendSysMsg(peer, sysSigExit{from: b.selfID, reason: reason})
	}

	b.sysQ.Close()
	for {
		msg, ok := b.sysQ.Recv(context.Background())
		if !ok {
			break
		}
		b.handleSysMsgShutdown(msg, reason)
	}

	b.system.table.terminate(b.selfID, reason)
	if b.exitHandler != nil {
		b.exitHandler(b.selfID, reason)
	}
	b.lease.Release()
}

// loop is the four-source fair select. It returns once a branch produces
// a terminal Exit.
func (b *backend[M]) loop() Exit {
	for {
		select {
		case <-b.sysQ.NotifyChan():
			msg, ok := b.sysQ.TryRecv()
			if !ok {
				continue
			}
			if exitNow, reason := b.handleSysMsg(msg); exitNow {
				return reason
			}

		case call, ok := <-b.calls.Chan():
			if !ok {
				return FromBackendFailure(BackendFailure{Kind: BackendRxClosed, Source: "calls"})
			}
			if exitNow, reason := b.handleCall(call); exitNow {
				return reason
			}

		case <-b.msgQ.NotifyChan():
			msg, ok := b.msgQ.TryRecv()
			if !ok {
				continue
			}
			if err := b.inbox.Send(context.Background(), msg); err != nil {
				return FromBackendFailure(BackendFailure{Kind: BackendInboxFull, Source: "msg-inbox"})
			}

		case <-b.tasks.NotifyChan():
			res, ok := b.tasks.TryRecv()
			if !ok {
				continue
			}
			b.tasksCount--
			if err := b.inbox.Send(context.Background(), res); err != nil {
				return FromBackendFailure(BackendFailure{Kind: BackendInboxFull, Source: "msg-inbox"})
			}
		}
	}
}

// handleSysMsg processes one system message during normal operation.
func (b *backend[M]) handleSysMsg(msg sysMsg) (exitNow bool, reason Exit) {
	switch m := msg.(type) {
	case sysLink:
		b.links[m.id] = struct{}{}
	case sysUnlink:
		delete(b.links, m.id)
	case sysSigExit:
		return b.handleSigExit(m.from, m.reason)
	case sysGetInfo:
		m.reply <- b.snapshotInfo()
	}
	return false, Exit{}
}

// handleSigExit implements the SigExit rules. from equal to selfID marks
// a direct System.Exit command rather than a link notification, which
// bypasses the "from must be linked" gate.
func (b *backend[M]) handleSigExit(from actorid.ID, reason Exit) (bool, Exit) {
	direct := from == b.selfID
	if !direct {
		if _, linked := b.links[from]; !linked {
			return false, Exit{}
		}
		delete(b.links, from)
	}
	if reason.IsKill() {
		return true, reason
	}
	if b.trapExit {
		_ = b.signals.Send(context.Background(), Signal{From: from, Reason: reason})
		return false, Exit{}
	}
	if reason.IsNormal() && !direct {
		return false, Exit{}
	}
	return true, reason
}

// handleCall processes one behaviour-issued call message.
func (b *backend[M]) handleCall(msg callMsg) (exitNow bool, reason Exit) {
	switch m := msg.(type) {
	case callExit:
		return true, m.reason
	case callLink:
		b.system.sendSysMsg(m.id, sysLink{id: b.selfID})
		b.links[m.id] = struct{}{}
	case callUnlink:
		b.system.sendSysMsg(m.id, sysUnlink{id: b.selfID})
		delete(b.links, m.id)
	case callTrapExit:
		b.trapExit = m.on
	case callAttachFuture:
		b.tasksCount++
		go b.runAttachedFuture(m.fut)
	}
	return false, Exit{}
}

// runAttachedFuture runs an attached future to completion and forwards
// its result into the task-completion queue the backend loop drains. A
// panic is swallowed — an attached future has no caller left to observe
// an error return.
func (b *backend[M]) runAttachedFuture(fut func() any) {
	defer func() { recover() }()
	result := fut().(M)
	b.tasks.Send(result)
}

// handleSysMsgShutdown processes one system message drained during the
// shutdown window, after the behaviour has already exited.
func (b *backend[M]) handleSysMsgShutdown(msg sysMsg, reason Exit) {
	switch m := msg.(type) {
	case sysLink:
		if reason.IsNormal() {
			b.system.sendSysMsg(m.id, sysUnlink{id: b.selfID})
		} else {
			b.system.sendSysMsg(m.id, sysSigExit{from: b.selfID, reason: reason})
		}
	case sysGetInfo:
		m.reply <- b.snapshotInfo()
	}
}

// snapshotInfo builds the inspection record returned by System.ActorInfo.
func (b *backend[M]) snapshotInfo() ActorInfo {
	msgLen, msgCap := b.inbox.Len()
	sigLen, sigCap := b.signals.Len()
	callLen, callCap := b.calls.Len()

	links := make([]actorid.ID, 0, len(b.links))
	for id := range b.links {
		links = append(links, id)
	}

	return ActorInfo{
		ActorID:      b.selfID,
		Behaviour:    b.behaviourName,
		ArgsType:     b.argsType,
		MessageType:  b.msgType,
		MsgQueueLen:  [2]int{msgLen, msgCap},
		SigQueueLen:  [2]int{sigLen, sigCap},
		CallQueueLen: [2]int{callLen, callCap},
		TasksCount:   b.tasksCount,
		TrapExit:     b.trapExit,
		Links:        links,
		WaitsLen:     b.system.table.waitersLen(b.selfID),
	}
}
