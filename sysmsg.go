package troupe

import "github.com/lguibr/troupe/actorid"

// sysMsg is the sum type of system-level messages routed through an
// actor's unbounded system channel.
type sysMsg interface{ isSysMsg() }

type sysLink struct{ id actorid.ID }
type sysUnlink struct{ id actorid.ID }

// sysSigExit is both how a linked peer's exit is reported to the holder of
// the link, and how System.Exit commands an actor directly: in the latter
// case from equals the recipient's own id, a convention that bypasses the
// "from must be in links" gate in handleSigExit.
type sysSigExit struct {
	from   actorid.ID
	reason Exit
}
type sysGetInfo struct{ reply chan ActorInfo }

func (sysLink) isSysMsg()    {}
func (sysUnlink) isSysMsg()  {}
func (sysSigExit) isSysMsg() {}
func (sysGetInfo) isSysMsg() {}

// callMsg is the sum type issued by a behaviour to its own Runner via the
// one-slot calls pipe.
type callMsg interface{ isCallMsg() }

type callExit struct{ reason Exit }
type callLink struct{ id actorid.ID }
type callUnlink struct{ id actorid.ID }
type callTrapExit struct{ on bool }
type callAttachFuture struct{ fut func() any }

func (callExit) isCallMsg()         {}
func (callLink) isCallMsg()         {}
func (callUnlink) isCallMsg()       {}
func (callTrapExit) isCallMsg()     {}
func (callAttachFuture) isCallMsg() {}

// Signal is what a trap_exit actor observes in place of termination when
// a linked peer exits (normally or not) or System.Exit targets it with any
// reason other than Kill.
type Signal struct {
	From   actorid.ID
	Reason Exit
}

// ActorInfo is the inspection snapshot returned by System.ActorInfo.
// WaitsLen is a supplemented field reporting how many callers are
// currently blocked in System.Wait on this actor.
type ActorInfo struct {
	ActorID      actorid.ID
	Behaviour    string
	ArgsType     string
	MessageType  string
	MsgQueueLen  [2]int // (current, capacity)
	SigQueueLen  [2]int
	CallQueueLen [2]int
	TasksCount   int
	TrapExit     bool
	Links        []actorid.ID
	WaitsLen     int
}
