package persist

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/model"
	"github.com/five82/lumen/internal/state"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func modelWithValues() model.Model {
	m := model.Default(model.UnitsMeters)
	m.Name = "Ward"
	v := 1.5
	m.Results = &model.Results{
		CalculatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		MeanFluence:  &v,
		Zones: map[string]model.ZoneResult{
			model.ZoneEyeLimits: {
				ZoneID:     model.ZoneEyeLimits,
				ZoneType:   model.ZonePlane,
				Statistics: model.Statistics{Mean: &v},
				Values:     json.RawMessage(`[[1,2],[3,4]]`),
			},
		},
	}
	return m
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	ws := db.Workspace("")
	assert.Equal(t, DefaultWorkspace, ws.Name())
	require.NoError(t, ws.SaveModel(model.Default(model.UnitsFeet)))
	require.NoError(t, db.Close())

	db, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	defer db.Close()
	m, restored, err := db.Workspace("").LoadModel(true, model.UnitsMeters)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, model.UnitsFeet, m.Room.Units)
}

func TestSaveModelStripsValues(t *testing.T) {
	ws := openMemory(t).Workspace("tab-1")
	require.NoError(t, ws.SaveModel(modelWithValues()))

	m, restored, err := ws.LoadModel(true, model.UnitsMeters)
	require.NoError(t, err)
	require.True(t, restored)
	assert.Equal(t, "Ward", m.Name)
	require.NotNil(t, m.Results)
	zr := m.Results.Zones[model.ZoneEyeLimits]
	assert.Nil(t, zr.Values)
	assert.Equal(t, 1.5, *zr.Statistics.Mean)
}

func TestLoadWithoutResumeDropsModelOnly(t *testing.T) {
	ws := openMemory(t).Workspace("tab-1")
	require.NoError(t, ws.SaveModel(modelWithValues()))
	require.NoError(t, ws.SaveCredentials(engine.Credentials{SessionID: "s-1", Token: "t-1"}))

	m, restored, err := ws.LoadModel(false, model.UnitsFeet)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, model.UnitsFeet, m.Room.Units)
	assert.Len(t, m.Zones, 3)

	_, restored, err = ws.LoadModel(true, model.UnitsMeters)
	require.NoError(t, err)
	assert.False(t, restored, "model key was cleared")

	creds, ok, err := ws.LoadCredentials()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, engine.Credentials{SessionID: "s-1", Token: "t-1"}, creds)
}

func TestMalformedModelDiscarded(t *testing.T) {
	db := openMemory(t)
	ws := db.Workspace("tab-1")

	for name, raw := range map[string]string{
		"not json":       `{"version":`,
		"missing slices": `{"version":"1","room":{"x":4,"y":6,"z":2.7}}`,
		"no version":     `{"room":{},"lightSources":[],"zones":[]}`,
	} {
		require.NoError(t, db.db.Update(func(txn *badger.Txn) error {
			return txn.Set(ws.modelKey(), []byte(raw))
		}), name)

		m, restored, err := ws.LoadModel(true, model.UnitsMeters)
		require.NoError(t, err, name)
		assert.False(t, restored, name)
		assert.Equal(t, model.SchemaVersion, m.Version, name)

		_, found, err := ws.get(ws.modelKey())
		require.NoError(t, err)
		assert.False(t, found, "%s: malformed snapshot is deleted", name)
	}
}

func TestWorkspacesAreIsolated(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, db.Workspace("a").SaveModel(modelWithValues()))

	_, restored, err := db.Workspace("b").LoadModel(true, model.UnitsMeters)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestCredentialsExpire(t *testing.T) {
	db, err := Open(Config{InMemory: true, CredentialTTL: time.Second})
	require.NoError(t, err)
	defer db.Close()
	ws := db.Workspace("tab-1")

	require.NoError(t, ws.SaveCredentials(engine.Credentials{SessionID: "s-1", Token: "t"}))
	_, ok, err := ws.LoadCredentials()
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok, err := ws.LoadCredentials()
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)

	require.NoError(t, ws.SaveCredentials(engine.Credentials{SessionID: "s-2", Token: "t"}))
	require.NoError(t, ws.ClearCredentials())
	_, ok, err = ws.LoadCredentials()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAutosaveCoalescesAndFlushesOnStop(t *testing.T) {
	ws := openMemory(t).Workspace("tab-1")
	store := state.NewStore(model.Default(model.UnitsMeters))
	saver := StartAutosave(store, ws, time.Hour, nil)

	for i := 1; i <= 5; i++ {
		store.Mutate(func(m *model.Model) { m.Room.AirChanges = float64(i) })
	}
	_, found, err := ws.get(ws.modelKey())
	require.NoError(t, err)
	assert.False(t, found, "nothing is written inside the delay window")

	saver.Stop()
	m, restored, err := ws.LoadModel(true, model.UnitsMeters)
	require.NoError(t, err)
	require.True(t, restored)
	assert.Equal(t, 5.0, m.Room.AirChanges)
}

func TestAutosaveWritesAfterDelay(t *testing.T) {
	ws := openMemory(t).Workspace("tab-1")
	store := state.NewStore(model.Default(model.UnitsMeters))
	saver := StartAutosave(store, ws, 10*time.Millisecond, nil)
	defer saver.Stop()

	store.Mutate(func(m *model.Model) { m.Name = "Lab" })
	require.Eventually(t, func() bool {
		m, restored, err := ws.LoadModel(true, model.UnitsMeters)
		return err == nil && restored && m.Name == "Lab"
	}, 2*time.Second, 5*time.Millisecond)
}
