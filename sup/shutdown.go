package sup

import (
	"context"
	"time"

	"github.com/lguibr/troupe"
	"github.com/lguibr/troupe/actorid"
)

// ShutdownStep is one escalation rung: send reason, then wait up to
// timeout for the target to actually terminate before moving to the next
// step.
type ShutdownStep struct {
	Reason  troupe.Exit
	Timeout time.Duration
}

const defaultShutdownTimeout = 5 * time.Second

// DefaultShutdownSteps returns the default two-rung sequence — a polite
// Shutdown, then an unconditional Kill — each given a 5s timeout.
func DefaultShutdownSteps() []ShutdownStep {
	return []ShutdownStep{
		{Reason: troupe.Shutdown(), Timeout: defaultShutdownTimeout},
		{Reason: troupe.Kill(), Timeout: defaultShutdownTimeout},
	}
}

// Escalate drives target down through steps in order, sending each step's
// reason and waiting out its timeout before trying the next. It reports
// the actor's actual final Exit, or a BackendFailure{BackendShutdownFailed}
// exit if target is still alive once every step's timeout has elapsed.
//
// Distinguishing "the step's own timeout fired" from "Wait genuinely
// resolved" matters here because System.Wait folds both outcomes into the
// same NoActor value on its own deadline; Escalate instead inspects the
// per-step context's Err() immediately after the call returns. That context
// derives from ctx, so a cancelled ctx also counts as a timed-out step:
// Escalate then runs through the remaining steps without waiting and
// reports BackendShutdownFailed.
func Escalate(ctx context.Context, sys *troupe.System, target actorid.ID, steps []ShutdownStep) troupe.Exit {
	if len(steps) == 0 {
		steps = DefaultShutdownSteps()
	}
	for _, step := range steps {
		sys.Exit(target, step.Reason)

		stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
		reason := sys.Wait(stepCtx, target)
		timedOut := stepCtx.Err() != nil
		cancel()

		if !timedOut {
			return reason
		}
	}
	return troupe.BackendFailure{Kind: troupe.BackendShutdownFailed, Source: target.String()}.ToExit()
}
