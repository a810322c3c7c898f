package model

import (
	"encoding/json"
	"time"
)

// SchemaVersion identifies the persisted model layout.
const SchemaVersion = "1"

// Units names the room unit system.
type Units string

const (
	UnitsMeters Units = "meters"
	UnitsFeet   Units = "feet"
)

// Standard names the photobiological safety standard used by the engine.
type Standard string

const (
	StandardACGIH   Standard = "ACGIH"
	StandardUL8802  Standard = "ACGIH-UL8802"
	StandardICNIRP  Standard = "ICNIRP"
	defaultStandard          = StandardACGIH
)

// Standards lists the supported standards in cycling order.
var Standards = []Standard{StandardACGIH, StandardUL8802, StandardICNIRP}

// ResolutionMode selects how a sampling grid is described.
type ResolutionMode string

const (
	ModeSpacing   ResolutionMode = "spacing"
	ModeNumPoints ResolutionMode = "num_points"
)

// Surface identifies one of the six room surfaces.
type Surface string

const (
	SurfaceFloor   Surface = "floor"
	SurfaceCeiling Surface = "ceiling"
	SurfaceNorth   Surface = "north"
	SurfaceSouth   Surface = "south"
	SurfaceEast    Surface = "east"
	SurfaceWest    Surface = "west"
)

// Surfaces lists all room surfaces in a stable order.
var Surfaces = []Surface{SurfaceFloor, SurfaceCeiling, SurfaceNorth, SurfaceSouth, SurfaceEast, SurfaceWest}

// ZoneType distinguishes planar and volumetric zones.
type ZoneType string

const (
	ZonePlane  ZoneType = "plane"
	ZoneVolume ZoneType = "volume"
)

// LampType names the emitter family of a light source.
type LampType string

const (
	LampKrCl222 LampType = "krcl_222"
	LampLP254   LampType = "lp_254"
)

// Model is the root aggregate edited by the user.
type Model struct {
	Version        string        `json:"version" validate:"required"`
	Name           string        `json:"name"`
	Room           Room          `json:"room"`
	LightSources   []LightSource `json:"lightSources" validate:"dive"`
	Zones          []Zone        `json:"zones" validate:"dive"`
	Results        *Results      `json:"results,omitempty"`
	LastModifiedAt time.Time     `json:"lastModifiedAt"`
}

// Room holds dimensions and room-wide calculation settings.
type Room struct {
	X                  float64           `json:"x" validate:"gt=0,lte=1000"`
	Y                  float64           `json:"y" validate:"gt=0,lte=1000"`
	Z                  float64           `json:"z" validate:"gt=0,lte=100"`
	Units              Units             `json:"units" validate:"oneof=meters feet"`
	Precision          int               `json:"precision" validate:"gte=0,lte=10"`
	Standard           Standard          `json:"standard" validate:"oneof=ACGIH ACGIH-UL8802 ICNIRP"`
	Reflectance        ReflectanceConfig `json:"reflectance"`
	AirChanges         float64           `json:"airChanges" validate:"gte=0,lte=100"`
	OzoneDecayConstant float64           `json:"ozoneDecayConstant" validate:"gte=0,lte=100"`
	UseStandardZones   bool              `json:"useStandardZones"`
	// ColorMap only affects rendering.
	ColorMap string `json:"colorMap"`
}

// ReflectanceConfig describes interreflection settings.
type ReflectanceConfig struct {
	Enabled      bool                      `json:"enabled"`
	Surfaces     map[Surface]SurfaceConfig `json:"surfaces" validate:"dive"`
	MaxNumPasses int                       `json:"maxNumPasses" validate:"gte=1,lte=100"`
	Threshold    float64                   `json:"threshold" validate:"gte=0,lte=1"`
}

// SurfaceConfig holds the reflectance and sampling grid of one surface.
// Only the fields of the active Mode are meaningful.
type SurfaceConfig struct {
	Reflectance float64        `json:"reflectance" validate:"gte=0,lte=1"`
	Mode        ResolutionMode `json:"mode" validate:"oneof=spacing num_points"`
	XSpacing    float64        `json:"xSpacing" validate:"gte=0"`
	YSpacing    float64        `json:"ySpacing" validate:"gte=0"`
	NumX        int            `json:"numX" validate:"gte=0"`
	NumY        int            `json:"numY" validate:"gte=0"`
}

// FileStatus tracks an auxiliary file uploaded for a light source.
type FileStatus struct {
	Loaded   bool   `json:"loaded"`
	FileName string `json:"fileName,omitempty"`
}

// LightSource is a lamp placed in the room. ID is always engine-assigned.
type LightSource struct {
	ID            string     `json:"id" validate:"required"`
	Name          string     `json:"name"`
	LampType      LampType   `json:"lampType" validate:"oneof=krcl_222 lp_254"`
	PresetID      string     `json:"presetId,omitempty"`
	X             float64    `json:"x"`
	Y             float64    `json:"y"`
	Z             float64    `json:"z"`
	AimX          float64    `json:"aimx"`
	AimY          float64    `json:"aimy"`
	AimZ          float64    `json:"aimz"`
	Angle         float64    `json:"angle"`
	ScalingFactor float64    `json:"scalingFactor" validate:"gte=0"`
	Enabled       bool       `json:"enabled"`
	Photometry    FileStatus `json:"photometry"`
	Spectrum      FileStatus `json:"spectrum"`
	IntensityMap  FileStatus `json:"intensityMap"`
}

// Resolution describes a zone sampling grid in either mode.
type Resolution struct {
	Mode     ResolutionMode `json:"mode" validate:"oneof=spacing num_points"`
	NumX     int            `json:"numX" validate:"gte=0"`
	NumY     int            `json:"numY" validate:"gte=0"`
	NumZ     int            `json:"numZ" validate:"gte=0"`
	XSpacing float64        `json:"xSpacing" validate:"gte=0"`
	YSpacing float64        `json:"ySpacing" validate:"gte=0"`
	ZSpacing float64        `json:"zSpacing" validate:"gte=0"`
	Offset   bool           `json:"offset"`
}

// Zone is a calculation plane or volume.
type Zone struct {
	ID         string     `json:"id" validate:"required"`
	Name       string     `json:"name"`
	Type       ZoneType   `json:"type" validate:"oneof=plane volume"`
	Enabled    bool       `json:"enabled"`
	IsStandard bool       `json:"isStandard"`
	Dose       bool       `json:"dose"`
	Hours      float64    `json:"hours" validate:"gte=0"`
	Resolution Resolution `json:"resolution"`

	// Plane fields.
	Height     float64 `json:"height,omitempty"`
	X1         float64 `json:"x1,omitempty"`
	X2         float64 `json:"x2,omitempty"`
	Y1         float64 `json:"y1,omitempty"`
	Y2         float64 `json:"y2,omitempty"`
	RefSurface string  `json:"refSurface,omitempty"`
	Horiz      bool    `json:"horiz,omitempty"`
	Vert       bool    `json:"vert,omitempty"`
	FOVVert    float64 `json:"fovVert,omitempty"`
	FOVHoriz   float64 `json:"fovHoriz,omitempty"`

	// Volume fields.
	XMin float64 `json:"xMin,omitempty"`
	XMax float64 `json:"xMax,omitempty"`
	YMin float64 `json:"yMin,omitempty"`
	YMax float64 `json:"yMax,omitempty"`
	ZMin float64 `json:"zMin,omitempty"`
	ZMax float64 `json:"zMax,omitempty"`
}

// Statistics summarises the values computed for a zone.
type Statistics struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
	Std  *float64 `json:"std"`
}

// ZoneResult is the computed output for one zone.
type ZoneResult struct {
	ZoneID     string          `json:"zoneId"`
	ZoneName   string          `json:"zoneName,omitempty"`
	ZoneType   ZoneType        `json:"zoneType"`
	Statistics Statistics      `json:"statistics"`
	NumPoints  []int           `json:"numPoints,omitempty"`
	Values     json.RawMessage `json:"values,omitempty"`
}

// Results is the last accepted computation.
type Results struct {
	CalculatedAt time.Time             `json:"calculatedAt"`
	MeanFluence  *float64              `json:"meanFluence,omitempty"`
	Zones        map[string]ZoneResult `json:"zones"`
}

// LightSourceIndex returns the slice index of id, or -1.
func (m Model) LightSourceIndex(id string) int {
	for i := range m.LightSources {
		if m.LightSources[i].ID == id {
			return i
		}
	}
	return -1
}

// ZoneIndex returns the slice index of id, or -1.
func (m Model) ZoneIndex(id string) int {
	for i := range m.Zones {
		if m.Zones[i].ID == id {
			return i
		}
	}
	return -1
}

// LightSource returns a copy of the light source with the given id.
func (m Model) LightSource(id string) (LightSource, bool) {
	if i := m.LightSourceIndex(id); i >= 0 {
		return m.LightSources[i], true
	}
	return LightSource{}, false
}

// Zone returns a copy of the zone with the given id.
func (m Model) Zone(id string) (Zone, bool) {
	if i := m.ZoneIndex(id); i >= 0 {
		return m.Zones[i], true
	}
	return Zone{}, false
}

// ClearZoneResults drops computed results for the given zone ids.
func (m *Model) ClearZoneResults(ids ...string) {
	if m.Results == nil {
		return
	}
	for _, id := range ids {
		delete(m.Results.Zones, id)
	}
}

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	dup := m
	dup.Room.Reflectance.Surfaces = cloneSurfaces(m.Room.Reflectance.Surfaces)
	if m.LightSources != nil {
		dup.LightSources = make([]LightSource, len(m.LightSources))
		copy(dup.LightSources, m.LightSources)
	}
	if m.Zones != nil {
		dup.Zones = make([]Zone, len(m.Zones))
		copy(dup.Zones, m.Zones)
	}
	if m.Results != nil {
		res := m.Results.Clone()
		dup.Results = &res
	}
	return dup
}

// Clone returns a deep copy of the results. Value payloads are shared
// because they are never mutated in place.
func (r Results) Clone() Results {
	dup := r
	if r.MeanFluence != nil {
		v := *r.MeanFluence
		dup.MeanFluence = &v
	}
	if r.Zones != nil {
		dup.Zones = make(map[string]ZoneResult, len(r.Zones))
		for id, zr := range r.Zones {
			if zr.NumPoints != nil {
				zr.NumPoints = append([]int(nil), zr.NumPoints...)
			}
			dup.Zones[id] = zr
		}
	}
	return dup
}

// WithoutValues returns a copy with every zone's value payload removed.
func (r Results) WithoutValues() Results {
	dup := r.Clone()
	for id, zr := range dup.Zones {
		zr.Values = nil
		dup.Zones[id] = zr
	}
	return dup
}

func cloneSurfaces(in map[Surface]SurfaceConfig) map[Surface]SurfaceConfig {
	if in == nil {
		return nil
	}
	out := make(map[Surface]SurfaceConfig, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
