package troupe

import (
	"fmt"
)

// SpawnError is returned by System.Spawn.
type SpawnError struct {
	Kind SpawnErrorKind
	// Source is set for StartChildFailed.
	Source error
}

// SpawnErrorKind enumerates SpawnError's cases.
type SpawnErrorKind int

const (
	// SpawnMaxActorsLimit means the system's address pool is exhausted.
	SpawnMaxActorsLimit SpawnErrorKind = iota
	// SpawnStartChildFailed means the produce/init-ack step failed.
	SpawnStartChildFailed
	// SpawnStartTimeout means the child did not ack within its start
	// timeout.
	SpawnStartTimeout
)

func (e *SpawnError) Error() string {
	switch e.Kind {
	case SpawnMaxActorsLimit:
		return "troupe: max actors limit reached"
	case SpawnStartChildFailed:
		return fmt.Sprintf("troupe: start child failed: %v", e.Source)
	case SpawnStartTimeout:
		return "troupe: start timed out"
	default:
		return "troupe: spawn error"
	}
}

func (e *SpawnError) Unwrap() error { return e.Source }

// ErrMaxActorsLimit is a sentinel for errors.Is against SpawnError{Kind:
// SpawnMaxActorsLimit}.
var ErrMaxActorsLimit = &SpawnError{Kind: SpawnMaxActorsLimit}

// Is implements errors.Is comparison by Kind, ignoring Source.
func (e *SpawnError) Is(target error) bool {
	t, ok := target.(*SpawnError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// BackendFailure is an internal runner fault. It converts to an Exit via
// ToExit.
type BackendFailure struct {
	Kind   BackendFailureKind
	Source string // which source closed/rejected, e.g. "sys-msg", "messages"
}

// BackendFailureKind enumerates BackendFailure's cases.
type BackendFailureKind int

const (
	// BackendRxClosed means one of the runner's four input sources
	// reported closure.
	BackendRxClosed BackendFailureKind = iota
	// BackendInboxFull means the bounded msg-inbox rejected a forwarded
	// message because its consumer (the behaviour) is gone.
	BackendInboxFull
	// BackendShutdownFailed means the Shutdown Escalator exhausted its
	// step sequence without the child terminating.
	BackendShutdownFailed
)

func (e BackendFailure) Error() string {
	switch e.Kind {
	case BackendRxClosed:
		return fmt.Sprintf("troupe: receiver closed: %s", e.Source)
	case BackendInboxFull:
		return fmt.Sprintf("troupe: inbox full: %s", e.Source)
	case BackendShutdownFailed:
		return "troupe: shutdown escalation failed"
	default:
		return "troupe: backend failure"
	}
}

// ToExit folds a BackendFailure into an Exit.
func (e BackendFailure) ToExit() Exit { return FromBackendFailure(e) }

// SysChannelError is returned by operations that resolve an ActorID to a
// typed channel.
type SysChannelError int

const (
	// ErrNoActorChannel means the actor does not exist (stale or unknown
	// id).
	ErrNoActorChannel SysChannelError = iota
	// ErrInvalidMessageType means the actor exists but was spawned with a
	// different message type.
	ErrInvalidMessageType
)

func (e SysChannelError) Error() string {
	switch e {
	case ErrNoActorChannel:
		return "troupe: no such actor"
	case ErrInvalidMessageType:
		return "troupe: invalid message type for actor"
	default:
		return "troupe: sys channel error"
	}
}

