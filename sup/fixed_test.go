package sup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/troupe"
	"github.com/lguibr/troupe/actorid"
)

type workerMsg struct{ crash bool }

type childEvent struct {
	index int
	id    actorid.ID
}

func crashableChild(index int, events chan childEvent) ChildSpec {
	return crashableChildOfType(index, events, Permanent)
}

func crashableChildOfType(index int, events chan childEvent, childType ChildType) ChildSpec {
	return ChildSpec{
		Name: "worker",
		Type: childType,
		Start: func(ctx context.Context, sys *troupe.System) (actorid.ID, error) {
			id, err := troupe.SpawnAndAwait(ctx, sys, func(c troupe.Context[workerMsg], _ struct{}) any {
				c.InitAck(nil)
				for {
					m := c.NextMessage()
					if m.crash {
						return troupe.CustomExit("boom")
					}
				}
			}, struct{}{}, troupe.NewSpawnOpts(), time.Second)
			if err == nil {
				events <- childEvent{index: index, id: id}
			}
			return id, err
		},
	}
}

func drainEvent(t *testing.T, events chan childEvent) childEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a child start event")
		return childEvent{}
	}
}

// TestFixed_OneForOne_RestartsOnlyCrashedChild exercises the one-for-one
// strategy end to end: crashing one child restarts only that child, with a
// fresh id, while its sibling keeps running untouched.
func TestFixed_OneForOne_RestartsOnlyCrashedChild(t *testing.T) {
	sys := troupe.New(troupe.SystemConfig{MaxActors: 64})
	events := make(chan childEvent, 16)

	spec := SupSpec{
		Strategy: OneForOne,
		Policy:   FrequencyPolicy{MaxFailures: 5, Within: time.Minute},
		Children: []ChildSpec{crashableChild(0, events), crashableChild(1, events)},
	}

	ack := make(troupe.InitAck, 1)
	_, err := troupe.Spawn(sys, Fixed, spec, troupe.NewSpawnOpts().WithInitAck(ack))
	require.NoError(t, err)
	require.NoError(t, <-ack)

	first0 := drainEvent(t, events)
	first1 := drainEvent(t, events)
	assert.Equal(t, 0, first0.index)
	assert.Equal(t, 1, first1.index)

	sys.Send(first0.id, workerMsg{crash: true})

	restarted := drainEvent(t, events)
	assert.Equal(t, 0, restarted.index)
	assert.NotEqual(t, first0.id, restarted.id)

	select {
	case ev := <-events:
		t.Fatalf("unexpected extra start event under one-for-one: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	infoCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := sys.ActorInfo(infoCtx, first1.id)
	assert.True(t, ok, "sibling child must still be running")
}

// TestFixed_OneForAll_RestartsEverySibling exercises the one-for-all
// strategy: crashing one child brings down and restarts both.
func TestFixed_OneForAll_RestartsEverySibling(t *testing.T) {
	sys := troupe.New(troupe.SystemConfig{MaxActors: 64})
	events := make(chan childEvent, 16)

	spec := SupSpec{
		Strategy: OneForAll,
		Policy:   FrequencyPolicy{MaxFailures: 5, Within: time.Minute},
		Children: []ChildSpec{crashableChild(0, events), crashableChild(1, events)},
	}

	ack := make(troupe.InitAck, 1)
	_, err := troupe.Spawn(sys, Fixed, spec, troupe.NewSpawnOpts().WithInitAck(ack))
	require.NoError(t, err)
	require.NoError(t, <-ack)

	first0 := drainEvent(t, events)
	first1 := drainEvent(t, events)

	sys.Send(first0.id, workerMsg{crash: true})

	restartA := drainEvent(t, events)
	restartB := drainEvent(t, events)
	seen := map[int]actorid.ID{restartA.index: restartA.id, restartB.index: restartB.id}

	require.Contains(t, seen, 0)
	require.Contains(t, seen, 1)
	assert.NotEqual(t, first0.id, seen[0])
	assert.NotEqual(t, first1.id, seen[1])
}

// TestFixed_TemporaryChild_NeverRestartedOnCrash exercises the Temporary
// ChildType contract: an abnormal exit is not enough to restart it, unlike
// a Permanent sibling crashing the same way.
func TestFixed_TemporaryChild_NeverRestartedOnCrash(t *testing.T) {
	sys := troupe.New(troupe.SystemConfig{MaxActors: 64})
	events := make(chan childEvent, 16)

	spec := SupSpec{
		Strategy: OneForOne,
		Policy:   FrequencyPolicy{MaxFailures: 5, Within: time.Minute},
		Children: []ChildSpec{crashableChildOfType(0, events, Temporary), crashableChild(1, events)},
	}

	ack := make(troupe.InitAck, 1)
	supID, err := troupe.Spawn(sys, Fixed, spec, troupe.NewSpawnOpts().WithInitAck(ack))
	require.NoError(t, err)
	require.NoError(t, <-ack)

	first0 := drainEvent(t, events)
	first1 := drainEvent(t, events)

	sys.Send(first0.id, workerMsg{crash: true})

	select {
	case ev := <-events:
		t.Fatalf("temporary child must not be restarted on crash, got: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}

	infoCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := sys.ActorInfo(infoCtx, first1.id)
	assert.True(t, ok, "sibling child must still be running")

	_, supOk := sys.ActorInfo(infoCtx, supID)
	assert.True(t, supOk, "supervisor must remain up after a Temporary child's crash")
}

// TestFixed_TransientChild_RestartedOnCrash exercises the abnormal-exit half
// of the Transient ChildType contract: a crash restarts it with a fresh id.
func TestFixed_TransientChild_RestartedOnCrash(t *testing.T) {
	sys := troupe.New(troupe.SystemConfig{MaxActors: 64})
	events := make(chan childEvent, 16)

	spec := SupSpec{
		Strategy: OneForOne,
		Policy:   FrequencyPolicy{MaxFailures: 5, Within: time.Minute},
		Children: []ChildSpec{crashableChildOfType(0, events, Transient)},
	}

	ack := make(troupe.InitAck, 1)
	_, err := troupe.Spawn(sys, Fixed, spec, troupe.NewSpawnOpts().WithInitAck(ack))
	require.NoError(t, err)
	require.NoError(t, <-ack)

	first0 := drainEvent(t, events)

	sys.Send(first0.id, workerMsg{crash: true})

	restarted := drainEvent(t, events)
	assert.Equal(t, 0, restarted.index)
	assert.NotEqual(t, first0.id, restarted.id)
}
