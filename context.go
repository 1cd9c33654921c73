package troupe

import (
	"context"
	"runtime"
	"sync"

	"github.com/lguibr/troupe/actorid"
)

// Event is what Context.NextEvent yields: either a user Message or a
// Signal (delivered only when trap_exit is set).
type Event[M any] struct {
	IsSignal bool
	Message  M
	Signal   Signal
}

// Context is the handle exposed to a behaviour.
type Context[M any] interface {
	// NextEvent returns the next Message or Signal. Fair between the two
	// inboxes, but a ready Signal is always preferred over a ready
	// Message.
	NextEvent() Event[M]
	// NextMessage is NextEvent filtered to messages only; any Signal
	// encountered along the way is discarded.
	NextMessage() M
	// Exit terminates the calling actor with reason. It does not return.
	Exit(reason Exit)
	// Link establishes a link to id.
	Link(id actorid.ID)
	// Unlink removes a link to id.
	Unlink(id actorid.ID)
	// TrapExit toggles trap-exit mode.
	TrapExit(on bool)
	// AttachFuture schedules fut to run concurrently; its result is
	// delivered as a user Message once it completes.
	AttachFuture(fut func() M)
	// InitAck delivers the init-ack exactly once; a no-op if the actor
	// was spawned without one.
	InitAck(err error)
	// Self returns the calling actor's own id.
	Self() actorid.ID
	// System returns the enclosing System, or (nil, false) if it has
	// since been dropped.
	System() (*System, bool)
}

type context[M any] struct {
	self    actorid.ID
	sysRef  SystemWeakRef
	inbox   *Pipe[M]
	signals *Pipe[Signal]
	calls   *Pipe[callMsg]

	initAckOnce sync.Once
	initAck     InitAck
}

func newContext[M any](self actorid.ID, sysRef SystemWeakRef, inbox *Pipe[M], signals *Pipe[Signal], calls *Pipe[callMsg], initAck InitAck) *context[M] {
	return &context[M]{self: self, sysRef: sysRef, inbox: inbox, signals: signals, calls: calls, initAck: initAck}
}

func (c *context[M]) Self() actorid.ID { return c.self }

func (c *context[M]) System() (*System, bool) {
	s := c.sysRef.Upgrade()
	return s, s != nil
}

func (c *context[M]) NextEvent() Event[M] {
	// Signals take precedence when both are ready: a non-blocking check
	// first, then a fair select.
	select {
	case sig, ok := <-c.signals.Chan():
		if ok {
			return Event[M]{IsSignal: true, Signal: sig}
		}
	default:
	}

	select {
	case sig, ok := <-c.signals.Chan():
		if ok {
			return Event[M]{IsSignal: true, Signal: sig}
		}
		return c.NextEvent()
	case msg, ok := <-c.inbox.Chan():
		if !ok {
			// Inbox producer closed: the backend has already started
			// tearing this actor down. There is nothing further for the
			// behaviour to observe, so unwind its goroutine now rather
			// than block it forever.
			runtime.Goexit()
		}
		return Event[M]{Message: msg}
	}
}

func (c *context[M]) NextMessage() M {
	for {
		ev := c.NextEvent()
		if !ev.IsSignal {
			return ev.Message
		}
	}
}

func (c *context[M]) Exit(reason Exit) {
	c.signalExit(reason)
	runtime.Goexit()
}

// signalExit issues the Exit call without unwinding the goroutine; used
// both by the public Exit (followed by Goexit) and by the runner when a
// behaviour returns or panics.
func (c *context[M]) signalExit(reason Exit) {
	_ = c.calls.Send(context.Background(), callExit{reason: reason})
}

func (c *context[M]) Link(id actorid.ID) {
	_ = c.calls.Send(context.Background(), callLink{id: id})
}

func (c *context[M]) Unlink(id actorid.ID) {
	_ = c.calls.Send(context.Background(), callUnlink{id: id})
}

func (c *context[M]) TrapExit(on bool) {
	_ = c.calls.Send(context.Background(), callTrapExit{on: on})
}

func (c *context[M]) AttachFuture(fut func() M) {
	erased := func() any { return fut() }
	_ = c.calls.Send(context.Background(), callAttachFuture{fut: erased})
}

func (c *context[M]) InitAck(err error) {
	c.initAckOnce.Do(func() {
		if c.initAck == nil {
			return
		}
		c.initAck <- err
		close(c.initAck)
	})
}
