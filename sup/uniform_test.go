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

type roomArg struct{ name string }

func roomSpec() UniformSpec[roomArg] {
	return UniformSpec[roomArg]{
		Start: func(ctx context.Context, sys *troupe.System, _ roomArg) (actorid.ID, error) {
			return troupe.SpawnAndAwait(ctx, sys, func(c troupe.Context[struct{}], _ roomArg) any {
				c.InitAck(nil)
				c.NextMessage()
				return troupe.Normal()
			}, roomArg{}, troupe.NewSpawnOpts(), time.Second)
		},
	}
}

// the Start field above ignores its arg parameter (a fixed-shape test
// double); a real UniformSpec would thread req.Arg into the child's Args.

// TestUniform_StartChild_TracksAndLinksEachNewChild exercises the
// on-demand StartChild path and confirms the supervisor links each child
// it produces.
func TestUniform_StartChild_TracksAndLinksEachNewChild(t *testing.T) {
	sys := troupe.New(troupe.SystemConfig{MaxActors: 64})

	ack := make(troupe.InitAck, 1)
	supID, err := troupe.Spawn(sys, Uniform[roomArg], roomSpec(), troupe.NewSpawnOpts().WithInitAck(ack))
	require.NoError(t, err)
	require.NoError(t, <-ack)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	childA, err := StartChild(ctx, sys, supID, roomArg{name: "a"})
	require.NoError(t, err)

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	childB, err := StartChild(ctx2, sys, supID, roomArg{name: "b"})
	require.NoError(t, err)

	assert.NotEqual(t, childA, childB)

	infoCtx, cancel3 := context.WithTimeout(context.Background(), time.Second)
	defer cancel3()
	infoA, ok := sys.ActorInfo(infoCtx, childA)
	require.True(t, ok)
	assert.Contains(t, infoA.Links, supID)
}

// TestUniform_ExitStopsAllLiveChildren exercises the shutdown path: asking
// the supervisor to exit (a graceful, trapped SigExit, not a Kill) must
// bring down every child it started, via the Escalator in reverse insertion order,
// before it terminates itself.
func TestUniform_ExitStopsAllLiveChildren(t *testing.T) {
	sys := troupe.New(troupe.SystemConfig{MaxActors: 64})

	ack := make(troupe.InitAck, 1)
	supID, err := troupe.Spawn(sys, Uniform[roomArg], roomSpec(), troupe.NewSpawnOpts().WithInitAck(ack))
	require.NoError(t, err)
	require.NoError(t, <-ack)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	childA, err := StartChild(ctx, sys, supID, roomArg{name: "a"})
	require.NoError(t, err)

	sys.Exit(supID, troupe.Shutdown())

	waitCtx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	reason := sys.Wait(waitCtx, supID)
	assert.True(t, reason.IsNormal() || reason.Kind == troupe.ExitShutdown)

	infoCtx, cancel3 := context.WithTimeout(context.Background(), time.Second)
	defer cancel3()
	_, ok := sys.ActorInfo(infoCtx, childA)
	assert.False(t, ok, "child must have been stopped along with its supervisor")
}
