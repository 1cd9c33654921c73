package sup

import (
	"context"
	"fmt"
	"time"

	"github.com/lguibr/troupe"
	"github.com/lguibr/troupe/actorid"
)

// ChildType controls how a Fixed supervisor treats one of its children
// exiting Normal: whether that exit alone is reason enough to restart it.
type ChildType int

const (
	// Permanent children are always restarted, even on a Normal exit.
	Permanent ChildType = iota
	// Transient children are restarted only on an abnormal exit; a Normal
	// exit is left alone.
	Transient
	// Temporary children are never restarted after their own exit,
	// regardless of exit reason. A OneForAll or RestForOne sweep triggered
	// by a sibling still starts every slot in its range, this one included.
	Temporary
)

func (t ChildType) String() string {
	switch t {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case Temporary:
		return "temporary"
	default:
		return "child_type(unknown)"
	}
}

// ChildSpec describes one statically declared child of a Fixed supervisor.
// Start fuses child production and spawning into a single closure over the
// constructor argument, rather than splitting them into a separate factory
// type and spawn step.
type ChildSpec struct {
	// Name identifies the child for logging and ActorInfo-adjacent
	// diagnostics; it is not interpreted by the supervisor itself.
	Name string
	// Type selects restart-on-normal-exit behavior (Fixed supervisor only;
	// Uniform supervisors have no static declarations to apply it to).
	Type ChildType
	// Start produces and spawns the child, blocking until it has
	// acknowledged readiness or ctx expires.
	Start func(ctx context.Context, sys *troupe.System) (actorid.ID, error)
	// Shutdown overrides DefaultShutdownSteps for this child.
	Shutdown []ShutdownStep
	// StartTimeout overrides the supervisor's own default start timeout.
	StartTimeout time.Duration
}

func (c ChildSpec) shutdownSteps() []ShutdownStep {
	if len(c.Shutdown) == 0 {
		return DefaultShutdownSteps()
	}
	return c.Shutdown
}

func (c ChildSpec) startTimeout(fallback time.Duration) time.Duration {
	if c.StartTimeout > 0 {
		return c.StartTimeout
	}
	if fallback > 0 {
		return fallback
	}
	return defaultShutdownTimeout
}

// ChildStartupFailure is the Custom exit payload a Fixed supervisor
// terminates with when a child's Start failed, either during initial
// startup or while carrying out a StartAction.
type ChildStartupFailure struct {
	Index  int
	Source error
}

func (e *ChildStartupFailure) Error() string {
	return fmt.Sprintf("sup: child %d startup failed: %v", e.Index, e.Source)
}

func (e *ChildStartupFailure) Unwrap() error { return e.Source }
