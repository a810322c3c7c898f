package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(lamps, refl string, zones map[string]string) *StateFingerprint {
	upd := make(map[string]string, len(zones))
	for id := range zones {
		upd[id] = "u-" + id
	}
	return &StateFingerprint{
		CalcState:   HashFamily{LightSources: lamps, Reflectance: refl, Zones: zones},
		UpdateState: HashFamily{LightSources: lamps, Reflectance: refl, Zones: upd},
	}
}

func TestTracker_EmptyNeedsNothing(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, Signals{}, tr.Signals())
	assert.False(t, tr.NeedsComputation())
}

func TestTracker_CurrentWithoutComputationNeedsComputation(t *testing.T) {
	tr := NewTracker()
	tr.ApplyFromResponse(fp("a", "r", map[string]string{"z1": "1"}))

	sig := tr.Signals()
	assert.True(t, sig.HasCurrent)
	assert.False(t, sig.HasComputed)
	assert.True(t, sig.NeedsComputation)
	assert.False(t, sig.LightSourcesStale, "narrow signals need a computation to compare against")
}

func TestTracker_AcceptanceClearsAndCalcChangeRestores(t *testing.T) {
	tr := NewTracker()
	same := fp("a", "r", map[string]string{"z1": "1"})
	tr.ApplyFromResponse(same)
	tr.ApplyFromComputation(same)
	require.False(t, tr.NeedsComputation())

	tr.ApplyFromResponse(fp("b", "r", map[string]string{"z1": "1"}))
	assert.True(t, tr.NeedsComputation())
	assert.True(t, tr.LightSourcesStale())
	assert.False(t, tr.RoomStale())

	tr.ApplyFromResponse(fp("a", "r2", map[string]string{"z1": "1"}))
	assert.True(t, tr.RoomStale())
	assert.False(t, tr.LightSourcesStale())
}

func TestTracker_ZoneSetMismatchIsStale(t *testing.T) {
	tr := NewTracker()
	base := fp("a", "r", map[string]string{"z1": "1", "z2": "2"})
	tr.ApplyFromResponse(base)
	tr.ApplyFromComputation(base)

	// z2 removed, z1 unchanged.
	tr.ApplyFromResponse(fp("a", "r", map[string]string{"z1": "1"}))
	assert.True(t, tr.NeedsComputation())

	// z3 added alongside unchanged z1 and z2.
	tr.ApplyFromResponse(fp("a", "r", map[string]string{"z1": "1", "z2": "2", "z3": "3"}))
	assert.True(t, tr.NeedsComputation())
}

func TestTracker_ResetClearsBothSides(t *testing.T) {
	tr := NewTracker()
	tr.ApplyFromResponse(fp("a", "r", nil))
	tr.ApplyFromComputation(fp("a", "r", nil))
	tr.Reset()

	_, ok := tr.Current()
	assert.False(t, ok)
	_, ok = tr.LastComputed()
	assert.False(t, ok)
	assert.False(t, tr.NeedsComputation())
}

func TestTracker_NilInputsIgnored(t *testing.T) {
	tr := NewTracker()
	tr.ApplyFromResponse(fp("a", "r", nil))
	tr.ApplyFromResponse(nil)
	tr.ApplyFromComputation(nil)

	cur, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.CalcState.LightSources)
}

func TestTracker_StoresCopies(t *testing.T) {
	tr := NewTracker()
	in := fp("a", "r", map[string]string{"z1": "1"})
	tr.ApplyFromResponse(in)
	tr.ApplyFromComputation(in)

	in.CalcState.Zones["z1"] = "changed"
	assert.False(t, tr.NeedsComputation())
}

func TestTracker_SubscribeReceivesSignals(t *testing.T) {
	tr := NewTracker()
	var got []Signals
	unsubscribe := tr.Subscribe(func(s Signals) { got = append(got, s) })

	tr.ApplyFromResponse(fp("a", "r", nil))
	tr.ApplyFromComputation(fp("a", "r", nil))
	unsubscribe()
	tr.Reset()

	require.Len(t, got, 2)
	assert.True(t, got[0].NeedsComputation)
	assert.False(t, got[1].NeedsComputation)
}

func TestIsZoneStale(t *testing.T) {
	last := fp("a", "r", map[string]string{"z1": "1", "z2": "2"})

	tests := []struct {
		name    string
		id      string
		current *StateFingerprint
		last    *StateFingerprint
		want    bool
	}{
		{name: "no computation", id: "z1", current: last, last: nil, want: false},
		{name: "no current", id: "z1", current: nil, last: last, want: false},
		{name: "unchanged", id: "z1", current: fp("b", "r", map[string]string{"z1": "1", "z2": "2"}), last: last, want: false},
		{name: "calc hash changed", id: "z2", current: fp("a", "r", map[string]string{"z1": "1", "z2": "9"}), last: last, want: true},
		{name: "new zone", id: "z3", current: fp("a", "r", map[string]string{"z1": "1", "z3": "3"}), last: last, want: true},
		{name: "removed zone", id: "z2", current: fp("a", "r", map[string]string{"z1": "1"}), last: last, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsZoneStale(tt.id, tt.current, tt.last))
		})
	}

	t.Run("update hash changed", func(t *testing.T) {
		cur := fp("a", "r", map[string]string{"z1": "1", "z2": "2"})
		cur.UpdateState.Zones["z1"] = "other"
		assert.True(t, IsZoneStale("z1", cur, last))
		assert.False(t, IsZoneStale("z2", cur, last))
	})
}
