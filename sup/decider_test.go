package sup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/troupe"
	"github.com/lguibr/troupe/actorid"
)

func childID(slot uint32) actorid.ID {
	return actorid.ID{System: 1, Slot: slot, Generation: 1}
}

func generousPolicy() FrequencyPolicy {
	return FrequencyPolicy{MaxFailures: 1000, Within: time.Hour}
}

func TestDecider_OneForOne_RestartsOnlyCrashedChild(t *testing.T) {
	supID := childID(99)
	d := NewDecider(supID, OneForOne, 3, generousPolicy())
	ids := []actorid.ID{childID(0), childID(1), childID(2)}
	for i, id := range ids {
		d.ChildUp(i, id)
	}

	actions := d.ActorDown(ids[1], troupe.CustomExit("boom"))
	require.Equal(t, []Action{StartAction{Index: 1}}, actions)
}

func TestDecider_OneForAll_StopsSurvivorsThenRestartsAll(t *testing.T) {
	supID := childID(99)
	d := NewDecider(supID, OneForAll, 3, generousPolicy())
	ids := []actorid.ID{childID(0), childID(1), childID(2)}
	for i, id := range ids {
		d.ChildUp(i, id)
	}

	actions := d.ActorDown(ids[1], troupe.CustomExit("boom"))

	require.Len(t, actions, 5)
	assert.Equal(t, StopAction{Index: 2, ID: ids[2], Reason: actions[0].(StopAction).Reason}, actions[0])
	assert.Equal(t, StopAction{Index: 0, ID: ids[0], Reason: actions[1].(StopAction).Reason}, actions[1])
	assert.Equal(t, StartAction{Index: 0}, actions[2])
	assert.Equal(t, StartAction{Index: 1}, actions[3])
	assert.Equal(t, StartAction{Index: 2}, actions[4])
}

func TestDecider_RestForOne_StopsOnlyLaterSiblings(t *testing.T) {
	supID := childID(99)
	d := NewDecider(supID, RestForOne, 4, generousPolicy())
	ids := []actorid.ID{childID(0), childID(1), childID(2), childID(3)}
	for i, id := range ids {
		d.ChildUp(i, id)
	}

	actions := d.ActorDown(ids[1], troupe.CustomExit("boom"))

	require.Len(t, actions, 5)
	assert.Equal(t, StopAction{Index: 3, ID: ids[3], Reason: actions[0].(StopAction).Reason}, actions[0])
	assert.Equal(t, StopAction{Index: 2, ID: ids[2], Reason: actions[1].(StopAction).Reason}, actions[1])
	assert.Equal(t, StartAction{Index: 1}, actions[2])
	assert.Equal(t, StartAction{Index: 2}, actions[3])
	assert.Equal(t, StartAction{Index: 3}, actions[4])
}

func TestDecider_FrequencyExceeded_TriggersShutdown(t *testing.T) {
	supID := childID(99)
	d := NewDecider(supID, OneForOne, 1, FrequencyPolicy{MaxFailures: 1, Within: time.Hour})

	id1 := childID(0)
	d.ChildUp(0, id1)
	actions := d.ActorDown(id1, troupe.CustomExit("first"))
	require.Equal(t, []Action{StartAction{Index: 0}}, actions)

	id2 := childID(1)
	d.ChildUp(0, id2)
	actions = d.ActorDown(id2, troupe.CustomExit("second"))

	require.Len(t, actions, 1)
	exitAction, ok := actions[0].(ExitAction)
	require.True(t, ok)
	payload, ok := exitAction.Reason.Payload.(RestartFrequencyExceeded)
	require.True(t, ok)
	assert.Equal(t, 0, payload.Index)
}

func TestDecider_UnknownLinkedActor_TriggersShutdown(t *testing.T) {
	supID := childID(99)
	d := NewDecider(supID, OneForOne, 2, generousPolicy())
	ids := []actorid.ID{childID(0), childID(1)}
	for i, id := range ids {
		d.ChildUp(i, id)
	}

	stranger := childID(50)
	reason := troupe.CustomExit("mystery")
	actions := d.ActorDown(stranger, reason)

	require.Len(t, actions, 3)
	assert.Equal(t, StopAction{Index: 1, ID: ids[1], Reason: actions[0].(StopAction).Reason}, actions[0])
	assert.Equal(t, StopAction{Index: 0, ID: ids[0], Reason: actions[1].(StopAction).Reason}, actions[1])
	assert.Equal(t, ExitAction{Reason: reason}, actions[2])
}

func TestDecider_SupervisorOwnIDDown_TriggersShutdown(t *testing.T) {
	supID := childID(99)
	d := NewDecider(supID, OneForOne, 1, generousPolicy())
	d.ChildUp(0, childID(0))

	reason := troupe.CustomExit("supervisor killed")
	actions := d.ActorDown(supID, reason)

	require.Len(t, actions, 2)
	_, isStop := actions[0].(StopAction)
	assert.True(t, isStop)
	assert.Equal(t, ExitAction{Reason: reason}, actions[1])
}

func TestDecider_IgnoredExit_AbsorbedSilently(t *testing.T) {
	supID := childID(99)
	d := NewDecider(supID, OneForAll, 2, generousPolicy())
	ids := []actorid.ID{childID(0), childID(1)}
	for i, id := range ids {
		d.ChildUp(i, id)
	}

	actions := d.ActorDown(ids[0], troupe.CustomExit("boom"))
	require.NotEmpty(t, actions)

	var stoppedSibling actorid.ID
	for _, a := range actions {
		if stop, ok := a.(StopAction); ok {
			stoppedSibling = stop.ID
		}
	}
	require.False(t, stoppedSibling.IsZero())

	followUp := d.ActorDown(stoppedSibling, troupe.Shutdown())
	assert.Nil(t, followUp)
}
