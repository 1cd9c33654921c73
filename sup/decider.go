package sup

import (
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/lguibr/troupe"
	"github.com/lguibr/troupe/actorid"
)

// Action is one step of a restart plan a Decider hands back to a
// supervisor behaviour after ActorDown. A single ActorDown call can return
// several actions in sequence: the supervisor applies them in order.
type Action interface{ isAction() }

// StartAction asks the supervisor to (re)produce the child at Index.
type StartAction struct{ Index int }

// StopAction asks the supervisor to bring down the still-running child at
// Index (identified by ID, its last known incarnation) with Reason, via the
// Shutdown Escalator.
type StopAction struct {
	Index  int
	ID     actorid.ID
	Reason troupe.Exit
}

// ExitAction asks the supervisor to terminate itself with Reason, once
// every preceding action in the plan has been applied.
type ExitAction struct{ Reason troupe.Exit }

func (StartAction) isAction() {}
func (StopAction) isAction()  {}
func (ExitAction) isAction()  {}

// RestartFrequencyExceeded is the ExitAction.Reason payload (via
// troupe.Exit.Payload) when a child tripped its FrequencyPolicy.
type RestartFrequencyExceeded struct {
	// Index identifies the child (or, under OneForAll, the group) whose
	// failures exceeded the policy.
	Index int
}

func (e RestartFrequencyExceeded) Error() string {
	return fmt.Sprintf("sup: restart frequency exceeded for child %d", e.Index)
}

// Decider is the pure restart-policy component: given a child's abnormal
// exit, it reports what the supervisor should do next.
// It never touches the System itself — the owning supervisor behaviour is
// responsible for carrying out the Actions it returns.
type Decider struct {
	supID    actorid.ID
	strategy Strategy
	policy   FrequencyPolicy

	ids      []actorid.ID
	breakers []*gobreaker.CircuitBreaker

	ignored map[actorid.ID]struct{}
}

// NewDecider builds a Decider for a supervisor identified by supID,
// watching over n children under strategy and policy.
//
// The exact shape of a restart-frequency window is left open: a literal
// sliding window of per-child failure timestamps is one option, but
// gobreaker's CircuitBreaker already approximates it with a tumbling
// window (ReadyToTrip sees ConsecutiveFailures inside a generation that
// resets every policy.Within), which is close enough to "too many
// failures too fast trips the supervisor down" without this package
// hand-rolling its own sliding-window counter.
func NewDecider(supID actorid.ID, strategy Strategy, n int, policy FrequencyPolicy) *Decider {
	policy = policy.withDefaults()

	breakerCount := n
	if strategy == OneForAll {
		breakerCount = 1
	}
	breakers := make([]*gobreaker.CircuitBreaker, breakerCount)
	for i := range breakers {
		breakers[i] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     fmt.Sprintf("sup-child-%d", i),
			Interval: policy.Within,
			Timeout:  policy.Within,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > uint32(policy.MaxFailures)
			},
		})
	}

	return &Decider{
		supID:    supID,
		strategy: strategy,
		policy:   policy,
		ids:      make([]actorid.ID, n),
		breakers: breakers,
		ignored:  make(map[actorid.ID]struct{}),
	}
}

// ChildUp records id as the current incarnation of the child at index.
func (d *Decider) ChildUp(index int, id actorid.ID) {
	d.ids[index] = id
}

// ChildDown clears the child at index without producing a restart plan —
// used when a supervisor decides on its own (e.g. a Transient or Temporary
// ChildSpec exiting Normal) not to treat the exit as failure-worthy, so
// that a later restart of a sibling does not mistake the cleared slot for
// one still running.
func (d *Decider) ChildDown(index int) {
	d.ids[index] = actorid.ID{}
}

// ActorDown reports actorID's exit and returns the resulting restart plan.
// Three cases never name a known child: the supervisor's own id going down
// (something killed the supervisor itself), an id already marked ignored
// (a sibling the plan itself is in the middle of stopping), and an
// unrecognized linked id (some other abnormal link). An ignored id is
// absorbed and yields no actions; the other two initiate a full shutdown
// rather than a restart.
func (d *Decider) ActorDown(actorID actorid.ID, reason troupe.Exit) []Action {
	if actorID == d.supID {
		return d.shutdownActions(reason)
	}

	if _, ignored := d.ignored[actorID]; ignored {
		delete(d.ignored, actorID)
		return nil
	}

	idx := d.indexOf(actorID)
	if idx < 0 {
		d.ignoreAllChildren()
		return d.shutdownActions(reason)
	}
	d.ids[idx] = actorid.ID{}

	if d.reportFailure(d.breakerIndex(idx)) {
		d.ignoreAllChildren()
		return d.shutdownActions(troupe.CustomExit(RestartFrequencyExceeded{Index: idx}))
	}

	switch d.strategy {
	case OneForAll:
		return d.restartGroupActions(reason)
	case RestForOne:
		return d.restForOneActions(idx, reason)
	default:
		return []Action{StartAction{Index: idx}}
	}
}

func (d *Decider) indexOf(id actorid.ID) int {
	for i, existing := range d.ids {
		if existing == id {
			return i
		}
	}
	return -1
}

func (d *Decider) breakerIndex(childIndex int) int {
	if d.strategy == OneForAll {
		return 0
	}
	return childIndex
}

// reportFailure runs a failing no-op request through the child's breaker
// and reports whether that trips it open.
func (d *Decider) reportFailure(breakerIdx int) bool {
	b := d.breakers[breakerIdx]
	_, _ = b.Execute(func() (interface{}, error) { return nil, errExecFailure })
	return b.State() == gobreaker.StateOpen
}

var errExecFailure = fmt.Errorf("sup: child failure")

func (d *Decider) ignoreAllChildren() {
	for _, id := range d.ids {
		if !id.IsZero() {
			d.ignored[id] = struct{}{}
		}
	}
}

// shutdownActions stops every still-running child in reverse insertion
// order, wrapping each StopAction's reason with ShutdownWithSource for
// causality display, then exits with exitReason verbatim.
func (d *Decider) shutdownActions(exitReason troupe.Exit) []Action {
	stopReason := troupe.ShutdownWithSource(exitReason)
	actions := make([]Action, 0, len(d.ids)+1)
	for i := len(d.ids) - 1; i >= 0; i-- {
		if !d.ids[i].IsZero() {
			actions = append(actions, StopAction{Index: i, ID: d.ids[i], Reason: stopReason})
			d.ids[i] = actorid.ID{}
		}
	}
	return append(actions, ExitAction{Reason: exitReason})
}

// restartGroupActions stops every other still-running child (reverse
// order), ignoring their resulting exits, then restarts the whole group
// (forward order).
func (d *Decider) restartGroupActions(cause troupe.Exit) []Action {
	stopReason := troupe.ShutdownWithSource(cause)
	actions := make([]Action, 0, 2*len(d.ids))
	for i := len(d.ids) - 1; i >= 0; i-- {
		if !d.ids[i].IsZero() {
			d.ignored[d.ids[i]] = struct{}{}
			actions = append(actions, StopAction{Index: i, ID: d.ids[i], Reason: stopReason})
			d.ids[i] = actorid.ID{}
		}
	}
	for i := 0; i < len(d.ids); i++ {
		actions = append(actions, StartAction{Index: i})
	}
	return actions
}

// restForOneActions stops every child started after crashedIndex (reverse
// order), ignoring their resulting exits, then restarts crashedIndex and
// everything after it (forward order).
func (d *Decider) restForOneActions(crashedIndex int, cause troupe.Exit) []Action {
	stopReason := troupe.ShutdownWithSource(cause)
	actions := make([]Action, 0, 2*(len(d.ids)-crashedIndex))
	for i := len(d.ids) - 1; i > crashedIndex; i-- {
		if !d.ids[i].IsZero() {
			d.ignored[d.ids[i]] = struct{}{}
			actions = append(actions, StopAction{Index: i, ID: d.ids[i], Reason: stopReason})
			d.ids[i] = actorid.ID{}
		}
	}
	for i := crashedIndex; i < len(d.ids); i++ {
		actions = append(actions, StartAction{Index: i})
	}
	return actions
}
