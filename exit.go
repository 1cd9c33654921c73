package troupe

import "fmt"

// ExitKind tags the reason an actor terminated.
type ExitKind int

const (
	// ExitNormal is a willful, non-erroneous termination.
	ExitNormal ExitKind = iota
	// ExitShutdown is a requested, orderly termination, optionally
	// carrying the Exit that caused it (for causality display, e.g. a
	// supervisor's own shutdown reason propagating to its children).
	ExitShutdown
	// ExitKill is the terminal, non-trappable kind: an actor observing a
	// SigExit carrying Kill terminates immediately regardless of
	// trap_exit.
	ExitKill
	// ExitNoActor means the target of an operation did not exist (stale
	// ActorID, unknown id, or a link race).
	ExitNoActor
	// ExitBackendFailure is an internal runner fault.
	ExitBackendFailure
	// ExitCustom carries an arbitrary behaviour-supplied payload, e.g. the
	// mapped return value of a behaviour function via IntoExit.
	ExitCustom
)

// Exit is a tagged exit reason. The zero value is Normal.
type Exit struct {
	Kind    ExitKind
	Source  *Exit // only meaningful for ExitShutdown
	Failure error // only meaningful for ExitBackendFailure
	Payload any   // only meaningful for ExitCustom
}

// Normal is the successful-termination reason.
func Normal() Exit { return Exit{Kind: ExitNormal} }

// Shutdown is a requested termination with no recorded cause.
func Shutdown() Exit { return Exit{Kind: ExitShutdown} }

// ShutdownWithSource is a requested termination caused by another Exit,
// preserved for causality display.
func ShutdownWithSource(source Exit) Exit {
	s := source
	return Exit{Kind: ExitShutdown, Source: &s}
}

// Kill is the terminal, non-trappable reason.
func Kill() Exit { return Exit{Kind: ExitKill} }

// NoActor reports that the target actor does not exist.
func NoActor() Exit { return Exit{Kind: ExitNoActor} }

// FromBackendFailure wraps a BackendFailure as an Exit.
func FromBackendFailure(err error) Exit { return Exit{Kind: ExitBackendFailure, Failure: err} }

// CustomExit carries an arbitrary payload as the exit reason, used when a
// behaviour's return value maps through IntoExit.
func CustomExit(payload any) Exit { return Exit{Kind: ExitCustom, Payload: payload} }

// IsNormal reports whether e is the Normal kind.
func (e Exit) IsNormal() bool { return e.Kind == ExitNormal }

// IsKill reports whether e is the Kill kind.
func (e Exit) IsKill() bool { return e.Kind == ExitKill }

func (e Exit) String() string {
	switch e.Kind {
	case ExitNormal:
		return "normal"
	case ExitShutdown:
		if e.Source != nil {
			return fmt.Sprintf("shutdown(source: %s)", e.Source)
		}
		return "shutdown"
	case ExitKill:
		return "kill"
	case ExitNoActor:
		return "no_actor"
	case ExitBackendFailure:
		return fmt.Sprintf("backend_failure(%v)", e.Failure)
	case ExitCustom:
		return fmt.Sprintf("custom(%v)", e.Payload)
	default:
		return "exit(unknown)"
	}
}

// IntoExit is implemented by a behaviour's return type to convert it into
// an Exit when the behaviour function returns.
type IntoExit interface {
	IntoExit() Exit
}

// intoExit converts an arbitrary behaviour return value into an Exit: nil
// and the Exit type pass through, error values become BackendFailure-free
// custom exits carrying the error, and anything implementing IntoExit is
// delegated to.
func intoExit(v any) Exit {
	switch x := v.(type) {
	case nil:
		return Normal()
	case Exit:
		return x
	case IntoExit:
		return x.IntoExit()
	case error:
		return CustomExit(x)
	default:
		return CustomExit(x)
	}
}
