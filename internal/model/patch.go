package model

// Patches use pointer fields: nil means "leave unchanged and do not send",
// a non-nil pointer means "set and send". The engine rejects explicit nulls,
// so there is no way to express "send null" and none is needed.

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// RoomPatch is a partial room update.
type RoomPatch struct {
	X                  *float64
	Y                  *float64
	Z                  *float64
	Units              *Units
	Precision          *int
	Standard           *Standard
	AirChanges         *float64
	OzoneDecayConstant *float64
	UseStandardZones   *bool
	ColorMap           *string
	Reflectance        *ReflectancePatch
}

// ReflectancePatch is a partial reflectance update.
type ReflectancePatch struct {
	Enabled      *bool
	MaxNumPasses *int
	Threshold    *float64
	Surfaces     map[Surface]SurfacePatch
}

// SurfacePatch is a partial update of one surface.
type SurfacePatch struct {
	Reflectance *float64
	Mode        *ResolutionMode
	XSpacing    *float64
	YSpacing    *float64
	NumX        *int
	NumY        *int
}

// LightSourcePatch is a partial light-source update.
type LightSourcePatch struct {
	Name          *string
	PresetID      *string
	X             *float64
	Y             *float64
	Z             *float64
	AimX          *float64
	AimY          *float64
	AimZ          *float64
	Angle         *float64
	ScalingFactor *float64
	Enabled       *bool
}

// ZonePatch is a partial zone update.
type ZonePatch struct {
	Name     *string
	Enabled  *bool
	Dose     *bool
	Hours    *float64
	Height   *float64
	Mode     *ResolutionMode
	NumX     *int
	NumY     *int
	NumZ     *int
	XSpacing *float64
	YSpacing *float64
	ZSpacing *float64
}

func pick[T any](cur, next *T) *T {
	if next != nil {
		return next
	}
	return cur
}

// Empty reports whether the patch changes nothing.
func (p RoomPatch) Empty() bool {
	return p.X == nil && p.Y == nil && p.Z == nil && p.Units == nil &&
		p.Precision == nil && p.Standard == nil && p.AirChanges == nil &&
		p.OzoneDecayConstant == nil && p.UseStandardZones == nil &&
		p.ColorMap == nil && (p.Reflectance == nil || p.Reflectance.Empty())
}

// ChangesDimensions reports whether x, y or z is set.
func (p RoomPatch) ChangesDimensions() bool {
	return p.X != nil || p.Y != nil || p.Z != nil
}

// ChangesStandardGeometry reports whether the patch touches a field the
// engine derives standard-zone geometry from.
func (p RoomPatch) ChangesStandardGeometry() bool {
	return p.ChangesDimensions() || p.Units != nil || p.Standard != nil
}

// OrderingSensitive reports whether the patch must reach the engine
// immediately instead of through the debounce window.
func (p RoomPatch) OrderingSensitive() bool {
	return p.Units != nil || p.Standard != nil || p.UseStandardZones != nil ||
		(p.Reflectance != nil && p.Reflectance.Enabled != nil)
}

// Remote returns the patch without presentation-only and client-only fields.
func (p RoomPatch) Remote() RoomPatch {
	p.ColorMap = nil
	p.UseStandardZones = nil
	return p
}

// Merge returns p with every field set in next overriding p.
func (p RoomPatch) Merge(next RoomPatch) RoomPatch {
	out := RoomPatch{
		X:                  pick(p.X, next.X),
		Y:                  pick(p.Y, next.Y),
		Z:                  pick(p.Z, next.Z),
		Units:              pick(p.Units, next.Units),
		Precision:          pick(p.Precision, next.Precision),
		Standard:           pick(p.Standard, next.Standard),
		AirChanges:         pick(p.AirChanges, next.AirChanges),
		OzoneDecayConstant: pick(p.OzoneDecayConstant, next.OzoneDecayConstant),
		UseStandardZones:   pick(p.UseStandardZones, next.UseStandardZones),
		ColorMap:           pick(p.ColorMap, next.ColorMap),
		Reflectance:        p.Reflectance,
	}
	if next.Reflectance != nil {
		var base ReflectancePatch
		if p.Reflectance != nil {
			base = *p.Reflectance
		}
		merged := base.Merge(*next.Reflectance)
		out.Reflectance = &merged
	}
	return out
}

// Apply writes the patch into r.
func (p RoomPatch) Apply(r *Room) {
	set(&r.X, p.X)
	set(&r.Y, p.Y)
	set(&r.Z, p.Z)
	set(&r.Units, p.Units)
	set(&r.Precision, p.Precision)
	set(&r.Standard, p.Standard)
	set(&r.AirChanges, p.AirChanges)
	set(&r.OzoneDecayConstant, p.OzoneDecayConstant)
	set(&r.UseStandardZones, p.UseStandardZones)
	set(&r.ColorMap, p.ColorMap)
	if p.Reflectance != nil {
		p.Reflectance.Apply(&r.Reflectance)
	}
}

// Empty reports whether the patch changes nothing.
func (p ReflectancePatch) Empty() bool {
	return p.Enabled == nil && p.MaxNumPasses == nil && p.Threshold == nil && len(p.Surfaces) == 0
}

// Merge returns p with every field set in next overriding p.
func (p ReflectancePatch) Merge(next ReflectancePatch) ReflectancePatch {
	out := ReflectancePatch{
		Enabled:      pick(p.Enabled, next.Enabled),
		MaxNumPasses: pick(p.MaxNumPasses, next.MaxNumPasses),
		Threshold:    pick(p.Threshold, next.Threshold),
	}
	if len(p.Surfaces)+len(next.Surfaces) > 0 {
		out.Surfaces = make(map[Surface]SurfacePatch, len(p.Surfaces)+len(next.Surfaces))
		for s, sp := range p.Surfaces {
			out.Surfaces[s] = sp
		}
		for s, sp := range next.Surfaces {
			out.Surfaces[s] = out.Surfaces[s].Merge(sp)
		}
	}
	return out
}

// Apply writes the patch into c.
func (p ReflectancePatch) Apply(c *ReflectanceConfig) {
	set(&c.Enabled, p.Enabled)
	set(&c.MaxNumPasses, p.MaxNumPasses)
	set(&c.Threshold, p.Threshold)
	if len(p.Surfaces) == 0 {
		return
	}
	if c.Surfaces == nil {
		c.Surfaces = make(map[Surface]SurfaceConfig, len(p.Surfaces))
	}
	for s, sp := range p.Surfaces {
		cur := c.Surfaces[s]
		sp.Apply(&cur)
		c.Surfaces[s] = cur
	}
}

// Merge returns p with every field set in next overriding p.
func (p SurfacePatch) Merge(next SurfacePatch) SurfacePatch {
	return SurfacePatch{
		Reflectance: pick(p.Reflectance, next.Reflectance),
		Mode:        pick(p.Mode, next.Mode),
		XSpacing:    pick(p.XSpacing, next.XSpacing),
		YSpacing:    pick(p.YSpacing, next.YSpacing),
		NumX:        pick(p.NumX, next.NumX),
		NumY:        pick(p.NumY, next.NumY),
	}
}

// Apply writes the patch into c.
func (p SurfacePatch) Apply(c *SurfaceConfig) {
	set(&c.Reflectance, p.Reflectance)
	set(&c.Mode, p.Mode)
	set(&c.XSpacing, p.XSpacing)
	set(&c.YSpacing, p.YSpacing)
	set(&c.NumX, p.NumX)
	set(&c.NumY, p.NumY)
}

// Empty reports whether the patch changes nothing.
func (p LightSourcePatch) Empty() bool {
	return p == LightSourcePatch{}
}

// Merge returns p with every field set in next overriding p.
func (p LightSourcePatch) Merge(next LightSourcePatch) LightSourcePatch {
	return LightSourcePatch{
		Name:          pick(p.Name, next.Name),
		PresetID:      pick(p.PresetID, next.PresetID),
		X:             pick(p.X, next.X),
		Y:             pick(p.Y, next.Y),
		Z:             pick(p.Z, next.Z),
		AimX:          pick(p.AimX, next.AimX),
		AimY:          pick(p.AimY, next.AimY),
		AimZ:          pick(p.AimZ, next.AimZ),
		Angle:         pick(p.Angle, next.Angle),
		ScalingFactor: pick(p.ScalingFactor, next.ScalingFactor),
		Enabled:       pick(p.Enabled, next.Enabled),
	}
}

// Remote returns the patch without client-only fields.
func (p LightSourcePatch) Remote() LightSourcePatch {
	p.Name = nil
	return p
}

// Apply writes the patch into ls.
func (p LightSourcePatch) Apply(ls *LightSource) {
	set(&ls.Name, p.Name)
	set(&ls.PresetID, p.PresetID)
	set(&ls.X, p.X)
	set(&ls.Y, p.Y)
	set(&ls.Z, p.Z)
	set(&ls.AimX, p.AimX)
	set(&ls.AimY, p.AimY)
	set(&ls.AimZ, p.AimZ)
	set(&ls.Angle, p.Angle)
	set(&ls.ScalingFactor, p.ScalingFactor)
	set(&ls.Enabled, p.Enabled)
}

// Empty reports whether the patch changes nothing.
func (p ZonePatch) Empty() bool {
	return p == ZonePatch{}
}

// Merge returns p with every field set in next overriding p. Setting a
// resolution field of one mode drops the other mode's pending fields.
func (p ZonePatch) Merge(next ZonePatch) ZonePatch {
	out := ZonePatch{
		Name:     pick(p.Name, next.Name),
		Enabled:  pick(p.Enabled, next.Enabled),
		Dose:     pick(p.Dose, next.Dose),
		Hours:    pick(p.Hours, next.Hours),
		Height:   pick(p.Height, next.Height),
		Mode:     pick(p.Mode, next.Mode),
		NumX:     pick(p.NumX, next.NumX),
		NumY:     pick(p.NumY, next.NumY),
		NumZ:     pick(p.NumZ, next.NumZ),
		XSpacing: pick(p.XSpacing, next.XSpacing),
		YSpacing: pick(p.YSpacing, next.YSpacing),
		ZSpacing: pick(p.ZSpacing, next.ZSpacing),
	}
	switch {
	case next.touchesNumPoints():
		out.XSpacing, out.YSpacing, out.ZSpacing = nil, nil, nil
	case next.touchesSpacing():
		out.NumX, out.NumY, out.NumZ = nil, nil, nil
	}
	return out
}

func (p ZonePatch) touchesNumPoints() bool {
	return p.NumX != nil || p.NumY != nil || p.NumZ != nil
}

func (p ZonePatch) touchesSpacing() bool {
	return p.XSpacing != nil || p.YSpacing != nil || p.ZSpacing != nil
}

// TouchesGeometry reports whether the patch edits fields the engine owns
// for standard zones.
func (p ZonePatch) TouchesGeometry() bool {
	return p.Height != nil
}

// WithoutGeometry drops fields that are read-only on standard zones.
func (p ZonePatch) WithoutGeometry() ZonePatch {
	p.Height = nil
	return p
}

// Apply writes the patch into z.
func (p ZonePatch) Apply(z *Zone) {
	set(&z.Name, p.Name)
	set(&z.Enabled, p.Enabled)
	set(&z.Dose, p.Dose)
	set(&z.Hours, p.Hours)
	set(&z.Height, p.Height)
	set(&z.Resolution.Mode, p.Mode)
	set(&z.Resolution.NumX, p.NumX)
	set(&z.Resolution.NumY, p.NumY)
	set(&z.Resolution.NumZ, p.NumZ)
	set(&z.Resolution.XSpacing, p.XSpacing)
	set(&z.Resolution.YSpacing, p.YSpacing)
	set(&z.Resolution.ZSpacing, p.ZSpacing)
	switch {
	case p.touchesNumPoints() && p.Mode == nil:
		z.Resolution.Mode = ModeNumPoints
	case p.touchesSpacing() && p.Mode == nil:
		z.Resolution.Mode = ModeSpacing
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
