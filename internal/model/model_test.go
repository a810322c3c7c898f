package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasStandardZonesWithInvariants(t *testing.T) {
	m := Default(UnitsMeters)

	require.Len(t, m.Zones, 3)
	assert.Equal(t, DefaultRoomX, m.Room.X)
	assert.Equal(t, DefaultRoomY, m.Room.Y)
	assert.Equal(t, DefaultRoomZ, m.Room.Z)
	for _, z := range m.Zones {
		assert.True(t, IsStandardZoneID(z.ID), z.ID)
		assert.True(t, HasExpectedOrientation(z), z.ID)
	}
	eye, ok := m.Zone(ZoneEyeLimits)
	require.True(t, ok)
	assert.True(t, eye.Vert)
	assert.False(t, eye.Horiz)
	assert.Equal(t, EyeFOVVert, eye.FOVVert)

	skin, ok := m.Zone(ZoneSkinLimits)
	require.True(t, ok)
	assert.True(t, skin.Horiz)
	assert.False(t, skin.Vert)
	assert.Equal(t, SkinFOVVert, skin.FOVVert)

	require.NoError(t, Validate(m))
}

func TestClone_IsIndependent(t *testing.T) {
	m := Default(UnitsMeters)
	m.LightSources = append(m.LightSources, LightSource{ID: "L-1", LampType: LampKrCl222, ScalingFactor: 1})
	mean := 1.5
	m.Results = &Results{MeanFluence: &mean, Zones: map[string]ZoneResult{
		ZoneEyeLimits: {ZoneID: ZoneEyeLimits, NumPoints: []int{2, 2}},
	}}

	dup := m.Clone()
	dup.LightSources[0].X = 9
	dup.Zones[0].Name = "changed"
	dup.Room.Reflectance.Surfaces[SurfaceFloor] = SurfaceConfig{Reflectance: 0.9}
	*dup.Results.MeanFluence = 7
	dup.Results.Zones[ZoneEyeLimits].NumPoints[0] = 99
	delete(dup.Results.Zones, ZoneEyeLimits)

	assert.Equal(t, 0.0, m.LightSources[0].X)
	assert.NotEqual(t, "changed", m.Zones[0].Name)
	assert.Equal(t, DefaultReflectance, m.Room.Reflectance.Surfaces[SurfaceFloor].Reflectance)
	assert.Equal(t, 1.5, *m.Results.MeanFluence)
	require.Contains(t, m.Results.Zones, ZoneEyeLimits)
	assert.Equal(t, 2, m.Results.Zones[ZoneEyeLimits].NumPoints[0])
}

func TestResultsWithoutValues(t *testing.T) {
	r := Results{Zones: map[string]ZoneResult{
		"z": {ZoneID: "z", Values: json.RawMessage(`[[1,2],[3,4]]`)},
	}}
	stripped := r.WithoutValues()
	assert.Nil(t, stripped.Zones["z"].Values)
	assert.NotNil(t, r.Zones["z"].Values)
}

func TestReplaceStandardZones_KeepsCustomZones(t *testing.T) {
	m := Default(UnitsMeters)
	m.Zones = append(m.Zones, Zone{ID: "custom-1", Type: ZonePlane})

	next := PlaceholderStandardZones(Room{X: 10, Y: 6, Z: 2.7, Units: UnitsMeters})
	m.ReplaceStandardZones(next)

	require.Len(t, m.Zones, 4)
	assert.Equal(t, "custom-1", m.Zones[3].ID)
	whole, _ := m.Zone(ZoneWholeRoomFluence)
	assert.Equal(t, 10.0, whole.XMax)
}

func TestRoomPatch_MergeAndApply(t *testing.T) {
	first := RoomPatch{X: Ptr(5.0), Y: Ptr(7.0)}
	second := RoomPatch{X: Ptr(10.0), Reflectance: &ReflectancePatch{
		Surfaces: map[Surface]SurfacePatch{SurfaceFloor: {Reflectance: Ptr(0.2)}},
	}}
	merged := first.Merge(second)

	require.NotNil(t, merged.X)
	assert.Equal(t, 10.0, *merged.X)
	assert.Equal(t, 7.0, *merged.Y)
	assert.True(t, merged.ChangesDimensions())
	assert.False(t, merged.OrderingSensitive())

	room := DefaultRoom(UnitsMeters)
	merged.Apply(&room)
	assert.Equal(t, 10.0, room.X)
	assert.Equal(t, 7.0, room.Y)
	assert.Equal(t, 0.2, room.Reflectance.Surfaces[SurfaceFloor].Reflectance)
	assert.Equal(t, ModeSpacing, room.Reflectance.Surfaces[SurfaceFloor].Mode)
}

func TestRoomPatch_OrderingSensitiveAndRemote(t *testing.T) {
	units := UnitsFeet
	p := RoomPatch{Units: &units, ColorMap: Ptr("viridis"), UseStandardZones: Ptr(false)}
	assert.True(t, p.OrderingSensitive())
	assert.True(t, p.ChangesStandardGeometry())

	remote := p.Remote()
	assert.Nil(t, remote.ColorMap)
	assert.Nil(t, remote.UseStandardZones)
	assert.NotNil(t, remote.Units)

	assert.True(t, RoomPatch{ColorMap: Ptr("x")}.Remote().Empty())
}

func TestZonePatch_MergeSwitchesResolutionMode(t *testing.T) {
	p := ZonePatch{XSpacing: Ptr(0.2), YSpacing: Ptr(0.2)}
	p = p.Merge(ZonePatch{NumX: Ptr(10)})

	assert.Nil(t, p.XSpacing)
	assert.Nil(t, p.YSpacing)
	require.NotNil(t, p.NumX)

	z := Zone{Resolution: Resolution{Mode: ModeSpacing}}
	p.Apply(&z)
	assert.Equal(t, ModeNumPoints, z.Resolution.Mode)
	assert.Equal(t, 10, z.Resolution.NumX)
}

func TestLightSourcePatch_Merge(t *testing.T) {
	p := LightSourcePatch{X: Ptr(5.0)}.Merge(LightSourcePatch{X: Ptr(7.0), Enabled: Ptr(false)})
	ls := LightSource{ID: "L-1", Enabled: true}
	p.Apply(&ls)
	assert.Equal(t, 7.0, ls.X)
	assert.False(t, ls.Enabled)
	assert.True(t, LightSourcePatch{}.Empty())
	assert.Nil(t, LightSourcePatch{Name: Ptr("a")}.Remote().Name)
}

func TestValidate_RejectsBadRoomAndSurface(t *testing.T) {
	m := Default(UnitsMeters)
	m.Room.X = 0
	err := Validate(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Room.X")

	m = Default(UnitsMeters)
	m.Room.Reflectance.Surfaces[SurfaceNorth] = SurfaceConfig{Reflectance: 0.1, Mode: ModeNumPoints}
	require.Error(t, Validate(m))
}

func TestValidateNewLightSource_IgnoresMissingID(t *testing.T) {
	ls := LightSource{LampType: LampKrCl222, ScalingFactor: 1}
	require.NoError(t, ValidateNewLightSource(ls))

	ls.LampType = "mystery"
	require.Error(t, ValidateNewLightSource(ls))
}

func TestValidateNewZone_RejectsTinySpacing(t *testing.T) {
	z := Zone{Type: ZonePlane, Resolution: Resolution{Mode: ModeSpacing, XSpacing: 0.001}}
	require.Error(t, ValidateNewZone(z))

	z.Resolution.XSpacing = 0.5
	require.NoError(t, ValidateNewZone(z))
}

func TestLookups_WorkOnReturnedValues(t *testing.T) {
	read := func() Model {
		m := Default(UnitsMeters)
		m.LightSources = append(m.LightSources, LightSource{ID: "L-1", Name: "a"})
		return m
	}

	ls, ok := read().LightSource("L-1")
	require.True(t, ok)
	assert.Equal(t, "a", ls.Name)

	_, ok = read().Zone(ZoneEyeLimits)
	assert.True(t, ok)
	assert.Len(t, read().StandardZones(), 3)
	assert.Equal(t, -1, read().ZoneIndex("missing"))
	assert.Equal(t, 0, read().LightSourceIndex("L-1"))
}
