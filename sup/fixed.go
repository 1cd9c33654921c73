package sup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/lguibr/troupe"
	"github.com/lguibr/troupe/actorid"
)

// SupSpec describes a Fixed supervisor's static child list and restart
// policy.
type SupSpec struct {
	Strategy Strategy
	Policy   FrequencyPolicy
	Children []ChildSpec
	// StartTimeout is the fallback start timeout for children that don't
	// set their own.
	StartTimeout time.Duration
}

// Fixed is the Fixed supervisor behaviour: it starts every declared child
// in order, links to each, then traps exits and drives a Decider off the
// resulting Signal stream for the rest of its life. Spawn it like any
// other actor — troupe.Spawn(sys, sup.Fixed, spec, opts) — with M =
// struct{}, since a Fixed supervisor has no runtime control surface of its
// own beyond the link-driven restart loop.
func Fixed(ctx troupe.Context[struct{}], spec SupSpec) any {
	sys, ok := ctx.System()
	if !ok {
		return troupe.Shutdown()
	}
	ctx.TrapExit(true)

	started := make([]actorid.ID, len(spec.Children))
	for i, child := range spec.Children {
		id, err := startChild(sys, child, spec.StartTimeout)
		if err != nil {
			if stopErr := stopStarted(sys, spec, started, i-1); stopErr != nil {
				sys.Logger().Error("sup: cleanup after failed startup", "error", stopErr)
			}
			ctx.InitAck(err)
			return troupe.CustomExit(&ChildStartupFailure{Index: i, Source: err})
		}
		ctx.Link(id)
		started[i] = id
	}
	ctx.InitAck(nil)

	decider := NewDecider(ctx.Self(), spec.Strategy, len(spec.Children), spec.Policy)
	for i, id := range started {
		decider.ChildUp(i, id)
	}

	for {
		ev := ctx.NextEvent()
		if !ev.IsSignal {
			continue
		}
		sig := ev.Signal

		if idx := indexOfStarted(started, sig.From); idx >= 0 {
			switch spec.Children[idx].Type {
			case Temporary:
				// Temporary children are never restarted, whatever the exit
				// reason, so the Decider never even sees this exit.
				started[idx] = actorid.ID{}
				decider.ChildDown(idx)
				continue
			case Transient:
				if sig.Reason.IsNormal() {
					started[idx] = actorid.ID{}
					decider.ChildDown(idx)
					continue
				}
			case Permanent:
				// fall through to the Decider below: a Permanent child is
				// restarted even on a clean exit.
			}
		}

		actions := decider.ActorDown(sig.From, sig.Reason)
		if reason, exit := applyFixedActions(ctx, sys, spec, started, decider, actions); exit {
			return reason
		}
	}
}

func startChild(sys *troupe.System, child ChildSpec, fallbackTimeout time.Duration) (actorid.ID, error) {
	if fallbackTimeout <= 0 {
		fallbackTimeout = sys.Config().DefaultStartTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), child.startTimeout(fallbackTimeout))
	defer cancel()
	return child.Start(ctx, sys)
}

func indexOfStarted(started []actorid.ID, id actorid.ID) int {
	for i, s := range started {
		if s == id {
			return i
		}
	}
	return -1
}

// escalateChild brings down id via the Escalator and reports an error if
// it never actually terminated cleanly (the escalation sweep exhausted
// its steps without the child going away).
func escalateChild(sys *troupe.System, index int, id actorid.ID, steps []ShutdownStep) error {
	reason := Escalate(context.Background(), sys, id, steps)
	if reason.Kind == troupe.ExitBackendFailure {
		return fmt.Errorf("sup: child %d (%s) did not terminate: %w", index, id, reason.Failure)
	}
	return nil
}

// stopStarted tears down every started child up to and including upTo, in
// reverse order, aggregating any escalation failures with multierr rather
// than stopping at the first one — every child still gets a chance to go
// down cleanly regardless of an earlier sibling's failure.
func stopStarted(sys *troupe.System, spec SupSpec, started []actorid.ID, upTo int) error {
	var errs error
	for i := upTo; i >= 0; i-- {
		if !started[i].IsZero() {
			errs = multierr.Append(errs, escalateChild(sys, i, started[i], spec.Children[i].shutdownSteps()))
		}
	}
	return errs
}

func applyFixedActions(ctx troupe.Context[struct{}], sys *troupe.System, spec SupSpec, started []actorid.ID, decider *Decider, actions []Action) (troupe.Exit, bool) {
	var stopErrs error
	for _, action := range actions {
		switch a := action.(type) {
		case StopAction:
			stopErrs = multierr.Append(stopErrs, escalateChild(sys, a.Index, a.ID, spec.Children[a.Index].shutdownSteps()))
			started[a.Index] = actorid.ID{}
		case StartAction:
			child := spec.Children[a.Index]
			id, err := startChild(sys, child, spec.StartTimeout)
			if err != nil {
				return troupe.CustomExit(&ChildStartupFailure{Index: a.Index, Source: err}), true
			}
			ctx.Link(id)
			started[a.Index] = id
			decider.ChildUp(a.Index, id)
		case ExitAction:
			if stopErrs != nil {
				sys.Logger().Error("sup: restart sweep had shutdown failures", "error", stopErrs)
			}
			return a.Reason, true
		}
	}
	if stopErrs != nil {
		sys.Logger().Warn("sup: restart sweep had shutdown failures", "error", stopErrs)
	}
	return troupe.Exit{}, false
}
