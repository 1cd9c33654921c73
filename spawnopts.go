package troupe

import "github.com/lguibr/troupe/actorid"

const (
	// DefaultMsgInboxSize is the default bounded message-inbox capacity.
	DefaultMsgInboxSize = 1024
	// DefaultSigInboxSize is the default signal-inbox capacity.
	DefaultSigInboxSize = 16
)

// InitAck is the one-shot channel a behaviour uses to signal readiness. A
// supervisor waiting on a child's startup blocks on this channel before
// declaring the child started.
type InitAck chan error

// ExitHandler is the optional per-actor callback invoked with the final
// Exit after termination, before the slot is recycled.
type ExitHandler func(id actorid.ID, reason Exit)

// SpawnOpts configures a single Spawn call. Build one with NewSpawnOpts and
// its With* combinators, which return a modified copy rather than mutating
// the receiver; the zero value behaves like NewSpawnOpts(), since unset
// inbox sizes fall back to their defaults.
type SpawnOpts struct {
	links        []actorid.ID
	msgInboxSize int
	sigInboxSize int
	initAck      InitAck
	exitHandler  ExitHandler
}

// NewSpawnOpts returns SpawnOpts with its documented defaults.
func NewSpawnOpts() SpawnOpts {
	return SpawnOpts{
		msgInboxSize: DefaultMsgInboxSize,
		sigInboxSize: DefaultSigInboxSize,
	}
}

// WithLink adds a peer to the initial link set, established before the
// actor's init-ack fires.
func (o SpawnOpts) WithLink(with actorid.ID) SpawnOpts {
	links := make([]actorid.ID, len(o.links), len(o.links)+1)
	copy(links, o.links)
	o.links = append(links, with)
	return o
}

// WithMsgInboxSize overrides the bounded message-inbox capacity.
func (o SpawnOpts) WithMsgInboxSize(n int) SpawnOpts { o.msgInboxSize = n; return o }

// WithSigInboxSize overrides the signal-inbox capacity.
func (o SpawnOpts) WithSigInboxSize(n int) SpawnOpts { o.sigInboxSize = n; return o }

// WithInitAck attaches an init-ack channel; the behaviour consumes it via
// Context.InitAck.
func (o SpawnOpts) WithInitAck(ack InitAck) SpawnOpts { o.initAck = ack; return o }

// WithExitHandler attaches an exit handler.
func (o SpawnOpts) WithExitHandler(h ExitHandler) SpawnOpts { o.exitHandler = h; return o }

// Links returns a copy of the configured initial link set.
func (o SpawnOpts) Links() []actorid.ID {
	out := make([]actorid.ID, len(o.links))
	copy(out, o.links)
	return out
}

func (o SpawnOpts) msgInboxSizeOrDefault() int {
	if o.msgInboxSize <= 0 {
		return DefaultMsgInboxSize
	}
	return o.msgInboxSize
}

func (o SpawnOpts) sigInboxSizeOrDefault() int {
	if o.sigInboxSize <= 0 {
		return DefaultSigInboxSize
	}
	return o.sigInboxSize
}
