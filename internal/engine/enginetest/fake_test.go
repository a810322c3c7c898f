package enginetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/lumen/internal/model"
)

func liveFake(t *testing.T) *Fake {
	t.Helper()
	f := New()
	creds, err := f.CreateSession(context.Background())
	require.NoError(t, err)
	f.SetCredentials(creds)
	_, err = f.InitSession(context.Background(), model.Default(model.UnitsMeters))
	require.NoError(t, err)
	return f
}

func TestOmitInlineHashesDropsOnlyMutationHashes(t *testing.T) {
	f := liveFake(t)
	ctx := context.Background()

	f.OmitInlineHashes(true)
	fp, err := f.PatchRoom(ctx, model.RoomPatch{X: model.Ptr(7.0)})
	require.NoError(t, err)
	assert.Nil(t, fp)

	added, err := f.AddLightSource(ctx, model.LightSource{Name: "a", Enabled: true})
	require.NoError(t, err)
	assert.Nil(t, added.StateHashes)

	fetched, err := f.FetchStateHashes(ctx)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, f.Hashes(), *fetched)

	f.OmitInlineHashes(false)
	fp, err = f.PatchRoom(ctx, model.RoomPatch{X: model.Ptr(8.0)})
	require.NoError(t, err)
	assert.NotNil(t, fp)
}

func TestSetLatencyLetsLaterCallsLandFirst(t *testing.T) {
	f := liveFake(t)
	ctx := context.Background()
	added, err := f.AddLightSource(ctx, model.LightSource{Name: "a", Enabled: true})
	require.NoError(t, err)

	f.SetLatency(func(c Call) time.Duration {
		if c.Op == OpUpdateLamp && c.Lamp.X != nil && *c.Lamp.X == 1 {
			return 150 * time.Millisecond
		}
		return 0
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.UpdateLightSource(ctx, added.ID, model.LightSourcePatch{X: model.Ptr(1.0)})
	}()
	time.Sleep(30 * time.Millisecond)
	_, err = f.UpdateLightSource(ctx, added.ID, model.LightSourcePatch{X: model.Ptr(2.0)})
	require.NoError(t, err)
	<-done

	calls := f.Calls(OpUpdateLamp)
	require.Len(t, calls, 2)
	assert.Equal(t, 2.0, *calls[0].Lamp.X)
	assert.Equal(t, 1.0, *calls[1].Lamp.X)
	assert.Equal(t, 1.0, f.LightSources()[0].X)
}

func TestLatencyEndsWithContext(t *testing.T) {
	f := liveFake(t)
	f.SetLatency(func(Call) time.Duration { return time.Minute })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, _ = f.PatchRoom(ctx, model.RoomPatch{X: model.Ptr(5.0)})
	assert.Less(t, time.Since(start), 5*time.Second)
}
