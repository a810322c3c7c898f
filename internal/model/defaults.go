package model

// Engine defaults for a fresh room.
const (
	DefaultRoomX              = 4.0
	DefaultRoomY              = 6.0
	DefaultRoomZ              = 2.7
	DefaultPrecision          = 1
	DefaultAirChanges         = 1.0
	DefaultOzoneDecayConstant = 2.7
	DefaultReflectance        = 0.078
	DefaultReflectanceSpacing = 0.5
	DefaultReflectancePoints  = 10
	DefaultMaxNumPasses       = 100
	DefaultReflectanceThresh  = 0.02
	DefaultColorMap           = "plasma"
	DefaultExposureHours      = 8.0
)

// Reserved standard zone ids.
const (
	ZoneWholeRoomFluence = "WholeRoomFluence"
	ZoneEyeLimits        = "EyeLimits"
	ZoneSkinLimits       = "SkinLimits"
)

// StandardZoneIDs lists the reserved ids in display order.
var StandardZoneIDs = []string{ZoneWholeRoomFluence, ZoneEyeLimits, ZoneSkinLimits}

// Field-of-view invariants for the safety planes.
const (
	EyeFOVVert  = 80.0
	SkinFOVVert = 180.0
	FOVHoriz    = 360.0
)

const (
	standardVolumePoints = 25
	standardPlaneSpacing = 0.1
	// Evaluation height of the safety planes; the engine refines it per standard.
	standardPlaneHeightMeters = 1.8
	standardPlaneHeightFeet   = 5.9
)

// IsStandardZoneID reports whether id is one of the reserved standard zones.
func IsStandardZoneID(id string) bool {
	for _, s := range StandardZoneIDs {
		if s == id {
			return true
		}
	}
	return false
}

// DefaultRoom returns the engine's default room in the given units.
func DefaultRoom(units Units) Room {
	if units != UnitsFeet {
		units = UnitsMeters
	}
	surfaces := make(map[Surface]SurfaceConfig, len(Surfaces))
	for _, s := range Surfaces {
		surfaces[s] = SurfaceConfig{
			Reflectance: DefaultReflectance,
			Mode:        ModeSpacing,
			XSpacing:    DefaultReflectanceSpacing,
			YSpacing:    DefaultReflectanceSpacing,
			NumX:        DefaultReflectancePoints,
			NumY:        DefaultReflectancePoints,
		}
	}
	return Room{
		X:         DefaultRoomX,
		Y:         DefaultRoomY,
		Z:         DefaultRoomZ,
		Units:     units,
		Precision: DefaultPrecision,
		Standard:  defaultStandard,
		Reflectance: ReflectanceConfig{
			Surfaces:     surfaces,
			MaxNumPasses: DefaultMaxNumPasses,
			Threshold:    DefaultReflectanceThresh,
		},
		AirChanges:         DefaultAirChanges,
		OzoneDecayConstant: DefaultOzoneDecayConstant,
		UseStandardZones:   true,
		ColorMap:           DefaultColorMap,
	}
}

// Default returns a fresh model with the standard zones present.
func Default(units Units) Model {
	room := DefaultRoom(units)
	return Model{
		Version:      SchemaVersion,
		Name:         "Untitled project",
		Room:         room,
		LightSources: []LightSource{},
		Zones:        PlaceholderStandardZones(room),
	}
}

// PlaceholderStandardZones builds the standard zones the way the engine
// would for room. The values are shown until the first zone-state fetch
// replaces them.
func PlaceholderStandardZones(room Room) []Zone {
	height := standardPlaneHeightMeters
	if room.Units == UnitsFeet {
		height = standardPlaneHeightFeet
	}
	return []Zone{
		{
			ID:         ZoneWholeRoomFluence,
			Name:       "Whole Room Fluence",
			Type:       ZoneVolume,
			Enabled:    true,
			IsStandard: true,
			Hours:      DefaultExposureHours,
			Resolution: Resolution{
				Mode:   ModeNumPoints,
				NumX:   standardVolumePoints,
				NumY:   standardVolumePoints,
				NumZ:   standardVolumePoints,
				Offset: true,
			},
			XMax: room.X,
			YMax: room.Y,
			ZMax: room.Z,
		},
		standardPlane(ZoneEyeLimits, "Eye Dose (8 Hours)", room, height),
		standardPlane(ZoneSkinLimits, "Skin Dose (8 Hours)", room, height),
	}
}

func standardPlane(id, name string, room Room, height float64) Zone {
	z := Zone{
		ID:         id,
		Name:       name,
		Type:       ZonePlane,
		Enabled:    true,
		IsStandard: true,
		Dose:       true,
		Hours:      DefaultExposureHours,
		Resolution: Resolution{
			Mode:     ModeSpacing,
			XSpacing: standardPlaneSpacing,
			YSpacing: standardPlaneSpacing,
			Offset:   true,
		},
		Height:     height,
		X2:         room.X,
		Y2:         room.Y,
		RefSurface: "xy",
		FOVHoriz:   FOVHoriz,
	}
	ApplyStandardOrientation(&z)
	return z
}

// ExpectedOrientation returns the orientation flags a standard safety
// plane must report. ok is false for zones without such an invariant.
func ExpectedOrientation(id string) (horiz, vert bool, fovVert float64, ok bool) {
	switch id {
	case ZoneEyeLimits:
		return false, true, EyeFOVVert, true
	case ZoneSkinLimits:
		return true, false, SkinFOVVert, true
	default:
		return false, false, 0, false
	}
}

// HasExpectedOrientation reports whether z satisfies its orientation invariant.
func HasExpectedOrientation(z Zone) bool {
	horiz, vert, fov, ok := ExpectedOrientation(z.ID)
	if !ok {
		return true
	}
	return z.Horiz == horiz && z.Vert == vert && z.FOVVert == fov
}

// ApplyStandardOrientation overwrites z's orientation flags with its invariant.
func ApplyStandardOrientation(z *Zone) {
	horiz, vert, fov, ok := ExpectedOrientation(z.ID)
	if !ok {
		return
	}
	z.Horiz = horiz
	z.Vert = vert
	z.FOVVert = fov
}

// StandardZones returns the standard zones currently in m, in slice order.
func (m Model) StandardZones() []Zone {
	var out []Zone
	for _, z := range m.Zones {
		if IsStandardZoneID(z.ID) {
			out = append(out, z)
		}
	}
	return out
}

// ReplaceStandardZones removes every standard zone and inserts zones ahead
// of the custom zones, which keep their relative order.
func (m *Model) ReplaceStandardZones(zones []Zone) {
	out := make([]Zone, 0, len(zones)+len(m.Zones))
	for _, z := range zones {
		z.IsStandard = true
		out = append(out, z)
	}
	for _, z := range m.Zones {
		if !IsStandardZoneID(z.ID) {
			out = append(out, z)
		}
	}
	m.Zones = out
}
