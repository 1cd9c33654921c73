package sup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/lguibr/troupe"
	"github.com/lguibr/troupe/actorid"
)

// UniformSpec describes an on-demand supervisor of homogeneous children:
// every child is produced by the same Start function from a
// caller-supplied argument, rather than declared statically up front.
type UniformSpec[Arg any] struct {
	Start        func(ctx context.Context, sys *troupe.System, arg Arg) (actorid.ID, error)
	Shutdown     []ShutdownStep
	StartTimeout time.Duration
}

func (s UniformSpec[Arg]) shutdownSteps() []ShutdownStep {
	if len(s.Shutdown) == 0 {
		return DefaultShutdownSteps()
	}
	return s.Shutdown
}

func (s UniformSpec[Arg]) startTimeout(fallback time.Duration) time.Duration {
	if s.StartTimeout > 0 {
		return s.StartTimeout
	}
	if fallback > 0 {
		return fallback
	}
	return defaultShutdownTimeout
}

// StartChildResult is delivered on StartChildRequest.Reply once the
// requested child has been produced (or failed to).
type StartChildResult struct {
	ID  actorid.ID
	Err error
}

// StartChildRequest is a Uniform supervisor's only message: spawn a new
// child from Arg and report the outcome on Reply. Reply may be nil for a
// fire-and-forget start.
type StartChildRequest[Arg any] struct {
	Arg   Arg
	Reply chan StartChildResult
}

// Uniform is the Uniform supervisor behaviour. It never restarts a failed
// child on its own — callers who need a child kept alive ask for a new one
// via StartChildRequest — but it does stop every live child (reverse
// insertion order) when it is itself asked to exit, whether by an
// unrelated link signal or its own parent supervisor.
func Uniform[Arg any](ctx troupe.Context[StartChildRequest[Arg]], spec UniformSpec[Arg]) any {
	sys, ok := ctx.System()
	if !ok {
		return troupe.Shutdown()
	}
	ctx.TrapExit(true)
	ctx.InitAck(nil)

	live := make(map[actorid.ID]struct{})
	order := make([]actorid.ID, 0)

	for {
		ev := ctx.NextEvent()
		if ev.IsSignal {
			sig := ev.Signal
			if _, isChild := live[sig.From]; isChild {
				delete(live, sig.From)
				continue
			}
			if err := stopAll(sys, spec, live, order); err != nil {
				sys.Logger().Error("sup: shutdown had failures stopping live children", "error", err)
			}
			return sig.Reason
		}

		req := ev.Message
		startCtx, cancel := context.WithTimeout(context.Background(), spec.startTimeout(sys.Config().DefaultStartTimeout))
		id, err := spec.Start(startCtx, sys, req.Arg)
		cancel()
		if err == nil {
			ctx.Link(id)
			live[id] = struct{}{}
			order = append(order, id)
		}
		if req.Reply != nil {
			req.Reply <- StartChildResult{ID: id, Err: err}
		}
	}
}

// stopAll tears down every live child in reverse insertion order,
// aggregating any escalation failures with multierr rather than
// abandoning the sweep at the first one.
func stopAll[Arg any](sys *troupe.System, spec UniformSpec[Arg], live map[actorid.ID]struct{}, order []actorid.ID) error {
	var errs error
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if _, ok := live[id]; ok {
			reason := Escalate(context.Background(), sys, id, spec.shutdownSteps())
			if reason.Kind == troupe.ExitBackendFailure {
				errs = multierr.Append(errs, fmt.Errorf("sup: child %s did not terminate: %w", id, reason.Failure))
			}
		}
	}
	return errs
}

// StartChild asks a running Uniform supervisor to produce a new child from
// arg, blocking until it has started or ctx expires.
func StartChild[Arg any](ctx context.Context, sys *troupe.System, sup actorid.ID, arg Arg) (actorid.ID, error) {
	reply := make(chan StartChildResult, 1)
	sys.Send(sup, StartChildRequest[Arg]{Arg: arg, Reply: reply})

	select {
	case res := <-reply:
		return res.ID, res.Err
	case <-ctx.Done():
		return actorid.ID{}, ctx.Err()
	}
}
