package engine

import (
	"encoding/json"
	"time"

	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/model"
)

// Credentials identify a remote session. An empty Token means the session
// id was generated locally because credential issuance failed.
type Credentials struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// Degraded reports whether the credentials were generated client-side.
func (c Credentials) Degraded() bool {
	return c.Token == ""
}

// Status mirrors GET /status.
type Status struct {
	Active    bool   `json:"active"`
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// InitResult mirrors the /init response.
type InitResult struct {
	Success     bool                          `json:"success"`
	Message     string                        `json:"message"`
	LampCount   int                           `json:"lamp_count"`
	ZoneCount   int                           `json:"zone_count"`
	StateHashes *fingerprint.StateFingerprint `json:"state_hashes,omitempty"`
}

// AddResult is returned by add and copy calls.
type AddResult struct {
	ID          string
	StateHashes *fingerprint.StateFingerprint
}

// LightSourceUpdate carries the aim the engine settled on after a patch.
type LightSourceUpdate struct {
	AimX        *float64                      `json:"aimx,omitempty"`
	AimY        *float64                      `json:"aimy,omitempty"`
	AimZ        *float64                      `json:"aimz,omitempty"`
	StateHashes *fingerprint.StateFingerprint `json:"state_hashes,omitempty"`
}

// ZoneUpdate carries the grid values the engine derived from a zone patch.
type ZoneUpdate struct {
	NumX        *int                          `json:"num_x,omitempty"`
	NumY        *int                          `json:"num_y,omitempty"`
	NumZ        *int                          `json:"num_z,omitempty"`
	XSpacing    *float64                      `json:"x_spacing,omitempty"`
	YSpacing    *float64                      `json:"y_spacing,omitempty"`
	ZSpacing    *float64                      `json:"z_spacing,omitempty"`
	StateHashes *fingerprint.StateFingerprint `json:"state_hashes,omitempty"`
}

// ApplyTo writes the engine-computed grid into z.
func (u ZoneUpdate) ApplyTo(z *model.Zone) {
	setIf(&z.Resolution.NumX, u.NumX)
	setIf(&z.Resolution.NumY, u.NumY)
	setIf(&z.Resolution.NumZ, u.NumZ)
	setIf(&z.Resolution.XSpacing, u.XSpacing)
	setIf(&z.Resolution.YSpacing, u.YSpacing)
	setIf(&z.Resolution.ZSpacing, u.ZSpacing)
}

// ZoneState mirrors one entry of GET /zones. Fields the engine omits stay nil.
type ZoneState struct {
	ID       string         `json:"id"`
	Name     *string        `json:"name,omitempty"`
	Type     model.ZoneType `json:"type"`
	Enabled  *bool          `json:"enabled,omitempty"`
	NumX     *int           `json:"num_x,omitempty"`
	NumY     *int           `json:"num_y,omitempty"`
	NumZ     *int           `json:"num_z,omitempty"`
	XSpacing *float64       `json:"x_spacing,omitempty"`
	YSpacing *float64       `json:"y_spacing,omitempty"`
	ZSpacing *float64       `json:"z_spacing,omitempty"`
	Offset   *bool          `json:"offset,omitempty"`
	Height   *float64       `json:"height,omitempty"`
	X1       *float64       `json:"x1,omitempty"`
	X2       *float64       `json:"x2,omitempty"`
	Y1       *float64       `json:"y1,omitempty"`
	Y2       *float64       `json:"y2,omitempty"`
	Horiz    *bool          `json:"horiz,omitempty"`
	Vert     *bool          `json:"vert,omitempty"`
	FOVVert  *float64       `json:"fov_vert,omitempty"`
	Dose     *bool          `json:"dose,omitempty"`
	Hours    *float64       `json:"hours,omitempty"`
	XMin     *float64       `json:"x_min,omitempty"`
	XMax     *float64       `json:"x_max,omitempty"`
	YMin     *float64       `json:"y_min,omitempty"`
	YMax     *float64       `json:"y_max,omitempty"`
	ZMin     *float64       `json:"z_min,omitempty"`
	ZMax     *float64       `json:"z_max,omitempty"`
}

// ApplyTo overwrites z with every field the engine reported. Resolution
// mode, ref surface and horizontal FOV are client-side and left alone.
func (s ZoneState) ApplyTo(z *model.Zone) {
	z.ID = s.ID
	if s.Type != "" {
		z.Type = s.Type
	}
	setIf(&z.Name, s.Name)
	setIf(&z.Enabled, s.Enabled)
	setIf(&z.Resolution.NumX, s.NumX)
	setIf(&z.Resolution.NumY, s.NumY)
	setIf(&z.Resolution.NumZ, s.NumZ)
	setIf(&z.Resolution.XSpacing, s.XSpacing)
	setIf(&z.Resolution.YSpacing, s.YSpacing)
	setIf(&z.Resolution.ZSpacing, s.ZSpacing)
	setIf(&z.Resolution.Offset, s.Offset)
	setIf(&z.Height, s.Height)
	setIf(&z.X1, s.X1)
	setIf(&z.X2, s.X2)
	setIf(&z.Y1, s.Y1)
	setIf(&z.Y2, s.Y2)
	setIf(&z.Horiz, s.Horiz)
	setIf(&z.Vert, s.Vert)
	setIf(&z.FOVVert, s.FOVVert)
	setIf(&z.Dose, s.Dose)
	setIf(&z.Hours, s.Hours)
	setIf(&z.XMin, s.XMin)
	setIf(&z.XMax, s.XMax)
	setIf(&z.YMin, s.YMin)
	setIf(&z.YMax, s.YMax)
	setIf(&z.ZMin, s.ZMin)
	setIf(&z.ZMax, s.ZMax)
}

// StateOf builds the ZoneState the engine would report for z. Used by
// fakes and tests.
func StateOf(z model.Zone) ZoneState {
	s := ZoneState{
		ID:       z.ID,
		Name:     &z.Name,
		Type:     z.Type,
		Enabled:  &z.Enabled,
		NumX:     &z.Resolution.NumX,
		NumY:     &z.Resolution.NumY,
		XSpacing: &z.Resolution.XSpacing,
		YSpacing: &z.Resolution.YSpacing,
		Offset:   &z.Resolution.Offset,
		Dose:     &z.Dose,
		Hours:    &z.Hours,
	}
	if z.Type == model.ZonePlane {
		s.Height, s.X1, s.X2, s.Y1, s.Y2 = &z.Height, &z.X1, &z.X2, &z.Y1, &z.Y2
		s.Horiz, s.Vert, s.FOVVert = &z.Horiz, &z.Vert, &z.FOVVert
	} else {
		s.NumZ, s.ZSpacing = &z.Resolution.NumZ, &z.Resolution.ZSpacing
		s.XMin, s.XMax, s.YMin, s.YMax, s.ZMin, s.ZMax = &z.XMin, &z.XMax, &z.YMin, &z.YMax, &z.ZMin, &z.ZMax
	}
	return s
}

// Calculation is the outcome of POST /calculate.
type Calculation struct {
	Results     model.Results
	StateHashes *fingerprint.StateFingerprint
}

// PlacementMode selects where the engine puts a lamp.
type PlacementMode string

const (
	PlaceDownlight  PlacementMode = "downlight"
	PlaceCorner     PlacementMode = "corner"
	PlaceEdge       PlacementMode = "edge"
	PlaceHorizontal PlacementMode = "horizontal"
)

// PlacementRequest mirrors the body of POST /lamps/{id}/place. An empty
// Mode uses the lamp preset's default; a nil PositionIndex asks for the
// automatic layout.
type PlacementRequest struct {
	Mode          PlacementMode `json:"mode,omitempty"`
	PositionIndex *int          `json:"position_index,omitempty"`
}

// Placement is a position the engine computed for a lamp. The engine does
// not apply it; the client sends it back as an ordinary lamp update.
type Placement struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Z             float64 `json:"z"`
	Angle         float64 `json:"angle"`
	AimX          float64 `json:"aimx"`
	AimY          float64 `json:"aimy"`
	AimZ          float64 `json:"aimz"`
	Mode          string  `json:"mode"`
	PositionIndex int     `json:"position_index"`
	PositionCount int     `json:"position_count"`
}

// Patch returns the lamp update that applies p.
func (p Placement) Patch() model.LightSourcePatch {
	return model.LightSourcePatch{
		X:     model.Ptr(p.X),
		Y:     model.Ptr(p.Y),
		Z:     model.Ptr(p.Z),
		Angle: model.Ptr(p.Angle),
		AimX:  model.Ptr(p.AimX),
		AimY:  model.Ptr(p.AimY),
		AimZ:  model.Ptr(p.AimZ),
	}
}

// CalculationEstimate mirrors GET /calculate/estimate.
type CalculationEstimate struct {
	EstimatedSeconds   float64 `json:"estimated_seconds"`
	GridPoints         int     `json:"grid_points"`
	LampCount          int     `json:"lamp_count"`
	ReflectanceEnabled bool    `json:"reflectance_enabled"`
	ReflectancePasses  int     `json:"reflectance_passes"`
	BudgetPercent      float64 `json:"budget_percent"`
}

// SafetyStatus is the overall verdict of POST /check-lamps.
type SafetyStatus string

const (
	SafetyCompliant              SafetyStatus = "compliant"
	SafetyNonCompliant           SafetyStatus = "non_compliant"
	SafetyCompliantWithDimming   SafetyStatus = "compliant_with_dimming"
	SafetyNonCompliantWhenDimmed SafetyStatus = "non_compliant_even_with_dimming"
)

// LampCompliance is the per-lamp part of a safety check.
type LampCompliance struct {
	LampID              string  `json:"lamp_id"`
	LampName            string  `json:"lamp_name"`
	SkinDoseMax         float64 `json:"skin_dose_max"`
	EyeDoseMax          float64 `json:"eye_dose_max"`
	SkinTLV             float64 `json:"skin_tlv"`
	EyeTLV              float64 `json:"eye_tlv"`
	SkinDimmingRequired float64 `json:"skin_dimming_required"`
	EyeDimmingRequired  float64 `json:"eye_dimming_required"`
	SkinCompliant       bool    `json:"is_skin_compliant"`
	EyeCompliant        bool    `json:"is_eye_compliant"`
	MissingSpectrum     bool    `json:"missing_spectrum"`
}

// SafetyWarning is one message of a safety check.
type SafetyWarning struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	LampID  string `json:"lamp_id,omitempty"`
}

// SafetyCheck mirrors POST /check-lamps.
type SafetyCheck struct {
	Status                   SafetyStatus              `json:"status"`
	Lamps                    map[string]LampCompliance `json:"lamp_results"`
	Warnings                 []SafetyWarning           `json:"warnings"`
	MaxSkinDose              float64                   `json:"max_skin_dose"`
	MaxEyeDose               float64                   `json:"max_eye_dose"`
	SkinDimmingForCompliance *float64                  `json:"skin_dimming_for_compliance,omitempty"`
	EyeDimmingForCompliance  *float64                  `json:"eye_dimming_for_compliance,omitempty"`
}

// Compliant reports whether the installation passes without dimming.
func (c SafetyCheck) Compliant() bool {
	return c.Status == SafetyCompliant
}

type calculateResponse struct {
	Success      bool                          `json:"success"`
	CalculatedAt string                        `json:"calculated_at"`
	MeanFluence  *float64                      `json:"mean_fluence"`
	Zones        map[string]zoneResultPayload  `json:"zones"`
	StateHashes  *fingerprint.StateFingerprint `json:"state_hashes,omitempty"`
}

type zoneResultPayload struct {
	ZoneID     string           `json:"zone_id"`
	ZoneName   *string          `json:"zone_name"`
	ZoneType   model.ZoneType   `json:"zone_type"`
	Statistics model.Statistics `json:"statistics"`
	NumPoints  []int            `json:"num_points,omitempty"`
	Values     json.RawMessage  `json:"values,omitempty"`
}

func (r calculateResponse) calculation() *Calculation {
	res := model.Results{
		CalculatedAt: parseTime(r.CalculatedAt),
		MeanFluence:  r.MeanFluence,
		Zones:        make(map[string]model.ZoneResult, len(r.Zones)),
	}
	for id, z := range r.Zones {
		zr := model.ZoneResult{
			ZoneID:     z.ZoneID,
			ZoneType:   z.ZoneType,
			Statistics: z.Statistics,
			NumPoints:  z.NumPoints,
			Values:     z.Values,
		}
		if zr.ZoneID == "" {
			zr.ZoneID = id
		}
		if z.ZoneName != nil {
			zr.ZoneName = *z.ZoneName
		}
		res.Zones[id] = zr
	}
	return &Calculation{Results: res, StateHashes: r.StateHashes}
}

type successResponse struct {
	Success     bool                          `json:"success"`
	Message     string                        `json:"message,omitempty"`
	StateHashes *fingerprint.StateFingerprint `json:"state_hashes,omitempty"`
}

type addLampResponse struct {
	Success     bool                          `json:"success"`
	LampID      string                        `json:"lamp_id"`
	StateHashes *fingerprint.StateFingerprint `json:"state_hashes,omitempty"`
}

type addZoneResponse struct {
	Success     bool                          `json:"success"`
	ZoneID      string                        `json:"zone_id"`
	StateHashes *fingerprint.StateFingerprint `json:"state_hashes,omitempty"`
}

type zonesResponse struct {
	Zones []ZoneState `json:"zones"`
}

// Request payloads use the engine's snake_case names.

type initRequest struct {
	Room  roomConfig  `json:"room"`
	Lamps []lampInput `json:"lamps"`
	Zones []zoneInput `json:"zones"`
}

type roomConfig struct {
	X                  float64            `json:"x"`
	Y                  float64            `json:"y"`
	Z                  float64            `json:"z"`
	Units              model.Units        `json:"units"`
	Precision          int                `json:"precision"`
	Standard           model.Standard     `json:"standard"`
	EnableReflectance  bool               `json:"enable_reflectance"`
	Reflectances       map[string]float64 `json:"reflectances,omitempty"`
	XSpacings          map[string]float64 `json:"reflectance_x_spacings,omitempty"`
	YSpacings          map[string]float64 `json:"reflectance_y_spacings,omitempty"`
	XNumPoints         map[string]int     `json:"reflectance_x_num_points,omitempty"`
	YNumPoints         map[string]int     `json:"reflectance_y_num_points,omitempty"`
	MaxNumPasses       int                `json:"reflectance_max_num_passes"`
	Threshold          float64            `json:"reflectance_threshold"`
	AirChanges         float64            `json:"air_changes"`
	OzoneDecayConstant float64            `json:"ozone_decay_constant"`
}

type roomUpdate struct {
	X                  *float64           `json:"x,omitempty"`
	Y                  *float64           `json:"y,omitempty"`
	Z                  *float64           `json:"z,omitempty"`
	Units              *model.Units       `json:"units,omitempty"`
	Precision          *int               `json:"precision,omitempty"`
	Standard           *model.Standard    `json:"standard,omitempty"`
	EnableReflectance  *bool              `json:"enable_reflectance,omitempty"`
	Reflectances       map[string]float64 `json:"reflectances,omitempty"`
	XSpacings          map[string]float64 `json:"reflectance_x_spacings,omitempty"`
	YSpacings          map[string]float64 `json:"reflectance_y_spacings,omitempty"`
	XNumPoints         map[string]int     `json:"reflectance_x_num_points,omitempty"`
	YNumPoints         map[string]int     `json:"reflectance_y_num_points,omitempty"`
	MaxNumPasses       *int               `json:"reflectance_max_num_passes,omitempty"`
	Threshold          *float64           `json:"reflectance_threshold,omitempty"`
	AirChanges         *float64           `json:"air_changes,omitempty"`
	OzoneDecayConstant *float64           `json:"ozone_decay_constant,omitempty"`
}

type lampInput struct {
	ID            string         `json:"id,omitempty"`
	LampType      model.LampType `json:"lamp_type"`
	PresetID      string         `json:"preset_id,omitempty"`
	X             float64        `json:"x"`
	Y             float64        `json:"y"`
	Z             float64        `json:"z"`
	AimX          float64        `json:"aimx"`
	AimY          float64        `json:"aimy"`
	AimZ          float64        `json:"aimz"`
	ScalingFactor float64        `json:"scaling_factor"`
	Enabled       bool           `json:"enabled"`
}

type lampUpdate struct {
	X             *float64 `json:"x,omitempty"`
	Y             *float64 `json:"y,omitempty"`
	Z             *float64 `json:"z,omitempty"`
	AimX          *float64 `json:"aimx,omitempty"`
	AimY          *float64 `json:"aimy,omitempty"`
	AimZ          *float64 `json:"aimz,omitempty"`
	Angle         *float64 `json:"angle,omitempty"`
	ScalingFactor *float64 `json:"scaling_factor,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty"`
	PresetID      *string  `json:"preset_id,omitempty"`
}

type zoneInput struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Type       model.ZoneType `json:"type"`
	Enabled    bool           `json:"enabled"`
	IsStandard bool           `json:"isStandard"`
	Dose       bool           `json:"dose"`
	Hours      float64        `json:"hours"`
	Height     *float64       `json:"height,omitempty"`
	X1         *float64       `json:"x1,omitempty"`
	X2         *float64       `json:"x2,omitempty"`
	Y1         *float64       `json:"y1,omitempty"`
	Y2         *float64       `json:"y2,omitempty"`
	XMin       *float64       `json:"x_min,omitempty"`
	XMax       *float64       `json:"x_max,omitempty"`
	YMin       *float64       `json:"y_min,omitempty"`
	YMax       *float64       `json:"y_max,omitempty"`
	ZMin       *float64       `json:"z_min,omitempty"`
	ZMax       *float64       `json:"z_max,omitempty"`
	NumX       *int           `json:"num_x,omitempty"`
	NumY       *int           `json:"num_y,omitempty"`
	NumZ       *int           `json:"num_z,omitempty"`
	XSpacing   *float64       `json:"x_spacing,omitempty"`
	YSpacing   *float64       `json:"y_spacing,omitempty"`
	ZSpacing   *float64       `json:"z_spacing,omitempty"`
	Offset     bool           `json:"offset"`
	RefSurface string         `json:"ref_surface,omitempty"`
	Horiz      *bool          `json:"horiz,omitempty"`
	Vert       *bool          `json:"vert,omitempty"`
	FOVVert    *float64       `json:"fov_vert,omitempty"`
	FOVHoriz   *float64       `json:"fov_horiz,omitempty"`
}

type zoneUpdate struct {
	Name     *string  `json:"name,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"`
	Dose     *bool    `json:"dose,omitempty"`
	Hours    *float64 `json:"hours,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	NumX     *int     `json:"num_x,omitempty"`
	NumY     *int     `json:"num_y,omitempty"`
	NumZ     *int     `json:"num_z,omitempty"`
	XSpacing *float64 `json:"x_spacing,omitempty"`
	YSpacing *float64 `json:"y_spacing,omitempty"`
	ZSpacing *float64 `json:"z_spacing,omitempty"`
}

func newRoomConfig(r model.Room) roomConfig {
	cfg := roomConfig{
		X:                  r.X,
		Y:                  r.Y,
		Z:                  r.Z,
		Units:              r.Units,
		Precision:          r.Precision,
		Standard:           r.Standard,
		EnableReflectance:  r.Reflectance.Enabled,
		MaxNumPasses:       r.Reflectance.MaxNumPasses,
		Threshold:          r.Reflectance.Threshold,
		AirChanges:         r.AirChanges,
		OzoneDecayConstant: r.OzoneDecayConstant,
	}
	for _, s := range model.Surfaces {
		sc, ok := r.Reflectance.Surfaces[s]
		if !ok {
			continue
		}
		key := string(s)
		putFloat(&cfg.Reflectances, key, sc.Reflectance)
		// Only the active mode goes out so the engine never re-derives the
		// grid from the inactive mode's leftovers.
		if sc.Mode == model.ModeNumPoints {
			putInt(&cfg.XNumPoints, key, sc.NumX)
			putInt(&cfg.YNumPoints, key, sc.NumY)
		} else {
			putFloat(&cfg.XSpacings, key, sc.XSpacing)
			putFloat(&cfg.YSpacings, key, sc.YSpacing)
		}
	}
	return cfg
}

func newRoomUpdate(p model.RoomPatch) roomUpdate {
	u := roomUpdate{
		X:                  p.X,
		Y:                  p.Y,
		Z:                  p.Z,
		Units:              p.Units,
		Precision:          p.Precision,
		Standard:           p.Standard,
		AirChanges:         p.AirChanges,
		OzoneDecayConstant: p.OzoneDecayConstant,
	}
	if rp := p.Reflectance; rp != nil {
		u.EnableReflectance = rp.Enabled
		u.MaxNumPasses = rp.MaxNumPasses
		u.Threshold = rp.Threshold
		for s, sp := range rp.Surfaces {
			key := string(s)
			if sp.Reflectance != nil {
				putFloat(&u.Reflectances, key, *sp.Reflectance)
			}
			if sp.XSpacing != nil {
				putFloat(&u.XSpacings, key, *sp.XSpacing)
			}
			if sp.YSpacing != nil {
				putFloat(&u.YSpacings, key, *sp.YSpacing)
			}
			if sp.NumX != nil {
				putInt(&u.XNumPoints, key, *sp.NumX)
			}
			if sp.NumY != nil {
				putInt(&u.YNumPoints, key, *sp.NumY)
			}
		}
	}
	return u
}

func newLampInput(ls model.LightSource) lampInput {
	return lampInput{
		ID:            ls.ID,
		LampType:      ls.LampType,
		PresetID:      ls.PresetID,
		X:             ls.X,
		Y:             ls.Y,
		Z:             ls.Z,
		AimX:          ls.AimX,
		AimY:          ls.AimY,
		AimZ:          ls.AimZ,
		ScalingFactor: ls.ScalingFactor,
		Enabled:       ls.Enabled,
	}
}

func newLampUpdate(p model.LightSourcePatch) lampUpdate {
	return lampUpdate{
		X:             p.X,
		Y:             p.Y,
		Z:             p.Z,
		AimX:          p.AimX,
		AimY:          p.AimY,
		AimZ:          p.AimZ,
		Angle:         p.Angle,
		ScalingFactor: p.ScalingFactor,
		Enabled:       p.Enabled,
		PresetID:      p.PresetID,
	}
}

func newZoneInput(z model.Zone) zoneInput {
	in := zoneInput{
		ID:         z.ID,
		Name:       z.Name,
		Type:       z.Type,
		Enabled:    z.Enabled,
		IsStandard: z.IsStandard,
		Dose:       z.Dose,
		Hours:      z.Hours,
		Offset:     z.Resolution.Offset,
	}
	res := z.Resolution
	if z.Type == model.ZonePlane {
		in.Height = nonZero(z.Height)
		in.X1, in.X2, in.Y1, in.Y2 = model.Ptr(z.X1), model.Ptr(z.X2), model.Ptr(z.Y1), model.Ptr(z.Y2)
		in.RefSurface = z.RefSurface
		in.Horiz, in.Vert = model.Ptr(z.Horiz), model.Ptr(z.Vert)
		in.FOVVert, in.FOVHoriz = nonZero(z.FOVVert), nonZero(z.FOVHoriz)
		if res.Mode == model.ModeNumPoints {
			in.NumX, in.NumY = nonZero(res.NumX), nonZero(res.NumY)
		} else {
			in.XSpacing, in.YSpacing = nonZero(res.XSpacing), nonZero(res.YSpacing)
		}
		return in
	}
	in.XMin, in.XMax = model.Ptr(z.XMin), model.Ptr(z.XMax)
	in.YMin, in.YMax = model.Ptr(z.YMin), model.Ptr(z.YMax)
	in.ZMin, in.ZMax = model.Ptr(z.ZMin), model.Ptr(z.ZMax)
	if res.Mode == model.ModeNumPoints {
		in.NumX, in.NumY, in.NumZ = nonZero(res.NumX), nonZero(res.NumY), nonZero(res.NumZ)
	} else {
		in.XSpacing, in.YSpacing, in.ZSpacing = nonZero(res.XSpacing), nonZero(res.YSpacing), nonZero(res.ZSpacing)
	}
	return in
}

func newZoneUpdate(p model.ZonePatch) zoneUpdate {
	return zoneUpdate{
		Name:     p.Name,
		Enabled:  p.Enabled,
		Dose:     p.Dose,
		Hours:    p.Hours,
		Height:   p.Height,
		NumX:     p.NumX,
		NumY:     p.NumY,
		NumZ:     p.NumZ,
		XSpacing: p.XSpacing,
		YSpacing: p.YSpacing,
		ZSpacing: p.ZSpacing,
	}
}

func putFloat(m *map[string]float64, key string, v float64) {
	if *m == nil {
		*m = make(map[string]float64)
	}
	(*m)[key] = v
}

func putInt(m *map[string]int, key string, v int) {
	if *m == nil {
		*m = make(map[string]int)
	}
	(*m)[key] = v
}

func nonZero[T int | float64](v T) *T {
	if v == 0 {
		return nil
	}
	return &v
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// The engine stamps results with a naive ISO timestamp in UTC.
const engineTimestampLayout = "2006-01-02T15:04:05.999999"

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(engineTimestampLayout, value, time.UTC); err == nil {
		return t
	}
	return time.Time{}
}
