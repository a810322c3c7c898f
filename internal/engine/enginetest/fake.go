// Package enginetest provides an in-memory engine.Gateway for tests.
package enginetest

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/model"
)

// Operation names recorded in Call.Op.
const (
	OpCreate         = "create"
	OpInit           = "init"
	OpStatus         = "status"
	OpPatchRoom      = "patch-room"
	OpAddLamp        = "add-lamp"
	OpUpdateLamp     = "update-lamp"
	OpDeleteLamp     = "delete-lamp"
	OpCopyLamp       = "copy-lamp"
	OpUploadIES      = "upload-ies"
	OpUploadSpectrum = "upload-spectrum"
	OpAddZone        = "add-zone"
	OpUpdateZone     = "update-zone"
	OpDeleteZone     = "delete-zone"
	OpCopyZone       = "copy-zone"
	OpFetchZones     = "fetch-zones"
	OpStateHashes    = "state-hashes"
	OpCalculate      = "calculate"
	OpUploadMap      = "upload-intensity-map"
	OpDeleteMap      = "delete-intensity-map"
	OpPlaceLamp      = "place-lamp"
	OpEstimate       = "estimate"
	OpCheckLamps     = "check-lamps"
)

// Call records one gateway invocation.
type Call struct {
	Op   string
	ID   string
	Room model.RoomPatch
	Lamp model.LightSourcePatch
	Zone model.ZonePatch
	// Model is set for init calls, NewZone for add-zone calls.
	Model   *model.Model
	NewZone *model.Zone
}

// Fake is a small in-memory engine. It assigns ids, keeps standard zones in
// step with the room and reports deterministic state hashes.
type Fake struct {
	mu    sync.Mutex
	creds engine.Credentials

	sessions map[string]bool
	issued   int

	room  model.Room
	lamps []model.LightSource
	zones []model.Zone

	nextLamp int
	nextZone int

	calls    []Call
	failAll  error
	failOps  map[string]error
	wrongFor map[string]bool

	afterFetch func(ctx context.Context)
	latency    func(c Call) time.Duration
	noInline   bool
}

var _ engine.Gateway = (*Fake)(nil)

// New returns a fake with no sessions.
func New() *Fake {
	return &Fake{
		sessions: make(map[string]bool),
		failOps:  make(map[string]error),
		wrongFor: make(map[string]bool),
		room:     model.DefaultRoom(model.UnitsMeters),
	}
}

// FailAll makes every call return err. A nil err heals.
func (f *Fake) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

// Fail makes calls to op return err. A nil err heals.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failOps, op)
		return
	}
	f.failOps[op] = err
}

// Expire forgets every session, as the engine does after its idle timeout.
func (f *Fake) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.sessions)
}

// MisreportOrientation makes FetchZones report the wrong orientation flags
// for zone id until the zone is recreated.
func (f *Fake) MisreportOrientation(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wrongFor[id] = true
}

// OmitInlineHashes makes mutation responses carry no state hashes, as the
// engine does for plain success responses. FetchStateHashes, InitSession
// and Calculate still report them.
func (f *Fake) OmitInlineHashes(omit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noInline = omit
}

// SetLatency installs a hook that delays each call by the returned
// duration before it touches the engine state. Calls recorded later may
// therefore be applied earlier.
func (f *Fake) SetLatency(fn func(c Call) time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = fn
}

// delay sleeps for the latency configured for c, outside the lock.
func (f *Fake) delay(ctx context.Context, c Call) {
	f.mu.Lock()
	fn := f.latency
	f.mu.Unlock()
	if fn == nil {
		return
	}
	d := fn(c)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// AfterFetchZones installs a hook run by every FetchZones call after the
// zone state was captured and before it is returned, outside the lock.
func (f *Fake) AfterFetchZones(fn func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterFetch = fn
}

// Calls returns the recorded calls, optionally filtered to ops.
func (f *Fake) Calls(ops ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ops) == 0 {
		return append([]Call(nil), f.calls...)
	}
	var out []Call
	for _, c := range f.calls {
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// ResetCalls forgets the recorded calls.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Room returns the engine's room.
func (f *Fake) Room() model.Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.room
}

// Zones returns the engine's zones.
func (f *Fake) Zones() []model.Zone {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Zone(nil), f.zones...)
}

// LightSources returns the engine's lamps.
func (f *Fake) LightSources() []model.LightSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.LightSource(nil), f.lamps...)
}

// Hashes returns the fingerprint for the engine's current state.
func (f *Fake) Hashes() fingerprint.StateFingerprint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.hashesLocked()
}

func (f *Fake) SetCredentials(creds engine.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = creds
}

func (f *Fake) Credentials() engine.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds
}

func (f *Fake) CreateSession(context.Context) (engine.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpCreate}, false); err != nil {
		return engine.Credentials{}, err
	}
	f.issued++
	return engine.Credentials{
		SessionID: fmt.Sprintf("session-%d", f.issued),
		Token:     fmt.Sprintf("token-%d", f.issued),
	}, nil
}

func (f *Fake) InitSession(_ context.Context, m model.Model) (*engine.InitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := m.Clone()
	if err := f.begin(Call{Op: OpInit, Model: &dup}, false); err != nil {
		return nil, err
	}
	if f.creds.SessionID == "" {
		return nil, &engine.APIError{Method: "POST", Path: "/init", Status: 400, Detail: "Missing X-Session-ID header"}
	}
	f.sessions[f.creds.SessionID] = true
	f.room = dup.Room
	f.lamps = append([]model.LightSource(nil), dup.LightSources...)
	f.zones = nil
	for _, z := range dup.Zones {
		f.zones = append(f.zones, f.normalizeZone(z))
	}
	clear(f.wrongFor)
	return &engine.InitResult{
		Success:     true,
		Message:     "Session initialized",
		LampCount:   len(f.lamps),
		ZoneCount:   len(f.zones),
		StateHashes: f.hashesLocked(),
	}, nil
}

func (f *Fake) Status(context.Context) (*engine.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpStatus}, false); err != nil {
		return nil, err
	}
	if f.creds.SessionID == "" {
		return nil, fmt.Errorf("GET /status: %w", engine.ErrSessionExpired)
	}
	return &engine.Status{Active: f.sessions[f.creds.SessionID], SessionID: f.creds.SessionID}, nil
}

func (f *Fake) PatchRoom(ctx context.Context, patch model.RoomPatch) (*fingerprint.StateFingerprint, error) {
	f.delay(ctx, Call{Op: OpPatchRoom, Room: patch})
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpPatchRoom, Room: patch}, true); err != nil {
		return nil, err
	}
	patch.Apply(&f.room)
	if patch.ChangesStandardGeometry() {
		for i, z := range f.zones {
			if model.IsStandardZoneID(z.ID) {
				f.zones[i] = f.normalizeZone(z)
			}
		}
	}
	return f.inlineLocked(), nil
}

func (f *Fake) AddLightSource(ctx context.Context, ls model.LightSource) (engine.AddResult, error) {
	f.delay(ctx, Call{Op: OpAddLamp})
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpAddLamp}, true); err != nil {
		return engine.AddResult{}, err
	}
	f.nextLamp++
	ls.ID = fmt.Sprintf("L-%d", f.nextLamp)
	f.lamps = append(f.lamps, ls)
	return engine.AddResult{ID: ls.ID, StateHashes: f.inlineLocked()}, nil
}

func (f *Fake) UpdateLightSource(ctx context.Context, id string, patch model.LightSourcePatch) (*engine.LightSourceUpdate, error) {
	f.delay(ctx, Call{Op: OpUpdateLamp, ID: id, Lamp: patch})
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpUpdateLamp, ID: id, Lamp: patch}, true); err != nil {
		return nil, err
	}
	i := f.lampIndex(id)
	if i < 0 {
		return nil, notFound("lamps", id)
	}
	patch.Apply(&f.lamps[i])
	ls := f.lamps[i]
	return &engine.LightSourceUpdate{
		AimX:        model.Ptr(ls.AimX),
		AimY:        model.Ptr(ls.AimY),
		AimZ:        model.Ptr(ls.AimZ),
		StateHashes: f.inlineLocked(),
	}, nil
}

func (f *Fake) DeleteLightSource(ctx context.Context, id string) (*fingerprint.StateFingerprint, error) {
	f.delay(ctx, Call{Op: OpDeleteLamp, ID: id})
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpDeleteLamp, ID: id}, true); err != nil {
		return nil, err
	}
	i := f.lampIndex(id)
	if i < 0 {
		return nil, notFound("lamps", id)
	}
	f.lamps = append(f.lamps[:i], f.lamps[i+1:]...)
	return f.inlineLocked(), nil
}

func (f *Fake) CopyLightSource(_ context.Context, id string) (engine.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpCopyLamp, ID: id}, true); err != nil {
		return engine.AddResult{}, err
	}
	i := f.lampIndex(id)
	if i < 0 {
		return engine.AddResult{}, notFound("lamps", id)
	}
	f.nextLamp++
	dup := f.lamps[i]
	dup.ID = fmt.Sprintf("L-%d", f.nextLamp)
	f.lamps = append(f.lamps, dup)
	return engine.AddResult{ID: dup.ID, StateHashes: f.inlineLocked()}, nil
}

func (f *Fake) UploadPhotometry(_ context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error) {
	return f.upload(OpUploadIES, id, fileName, r, func(ls *model.LightSource) {
		ls.Photometry = model.FileStatus{Loaded: true, FileName: fileName}
	})
}

func (f *Fake) UploadSpectrum(_ context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error) {
	return f.upload(OpUploadSpectrum, id, fileName, r, func(ls *model.LightSource) {
		ls.Spectrum = model.FileStatus{Loaded: true, FileName: fileName}
	})
}

func (f *Fake) UploadIntensityMap(_ context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error) {
	return f.upload(OpUploadMap, id, fileName, r, func(ls *model.LightSource) {
		ls.IntensityMap = model.FileStatus{Loaded: true, FileName: fileName}
	})
}

func (f *Fake) DeleteIntensityMap(ctx context.Context, id string) (*fingerprint.StateFingerprint, error) {
	f.delay(ctx, Call{Op: OpDeleteMap, ID: id})
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpDeleteMap, ID: id}, true); err != nil {
		return nil, err
	}
	i := f.lampIndex(id)
	if i < 0 {
		return nil, notFound("lamps", id)
	}
	f.lamps[i].IntensityMap = model.FileStatus{}
	return f.inlineLocked(), nil
}

// PlaceLightSource centres downlights on the ceiling and cycles corner
// placements through the four room corners. The lamp is not moved.
func (f *Fake) PlaceLightSource(_ context.Context, id string, req engine.PlacementRequest) (*engine.Placement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpPlaceLamp, ID: id}, true); err != nil {
		return nil, err
	}
	if f.lampIndex(id) < 0 {
		return nil, notFound("lamps", id)
	}
	r := f.room
	z := r.Z - 0.1
	p := engine.Placement{X: r.X / 2, Y: r.Y / 2, Z: z, AimX: r.X / 2, AimY: r.Y / 2, Mode: string(engine.PlaceDownlight), PositionCount: 1}
	if req.Mode == engine.PlaceCorner {
		corners := [][2]float64{{0.1, 0.1}, {r.X - 0.1, 0.1}, {r.X - 0.1, r.Y - 0.1}, {0.1, r.Y - 0.1}}
		idx := 0
		if req.PositionIndex != nil {
			idx = *req.PositionIndex % len(corners)
		}
		p.X, p.Y = corners[idx][0], corners[idx][1]
		p.Mode, p.PositionIndex, p.PositionCount = string(engine.PlaceCorner), idx, len(corners)
	}
	return &p, nil
}

func (f *Fake) upload(op, id, fileName string, r io.Reader, mark func(*model.LightSource)) (*fingerprint.StateFingerprint, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: op, ID: id}, true); err != nil {
		return nil, err
	}
	i := f.lampIndex(id)
	if i < 0 {
		return nil, notFound("lamps", id)
	}
	mark(&f.lamps[i])
	return f.inlineLocked(), nil
}

func (f *Fake) AddZone(_ context.Context, z model.Zone) (engine.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := z
	if err := f.begin(Call{Op: OpAddZone, NewZone: &dup}, true); err != nil {
		return engine.AddResult{}, err
	}
	if !model.IsStandardZoneID(z.ID) {
		f.nextZone++
		z.ID = fmt.Sprintf("Z-%d", f.nextZone)
	} else {
		delete(f.wrongFor, z.ID)
	}
	f.zones = append(f.zones, f.normalizeZone(z))
	return engine.AddResult{ID: z.ID, StateHashes: f.inlineLocked()}, nil
}

func (f *Fake) UpdateZone(ctx context.Context, id string, patch model.ZonePatch) (*engine.ZoneUpdate, error) {
	f.delay(ctx, Call{Op: OpUpdateZone, ID: id, Zone: patch})
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpUpdateZone, ID: id, Zone: patch}, true); err != nil {
		return nil, err
	}
	i := f.zoneIndex(id)
	if i < 0 {
		return nil, notFound("zones", id)
	}
	patch.Apply(&f.zones[i])
	deriveGrid(&f.zones[i])
	res := f.zones[i].Resolution
	upd := &engine.ZoneUpdate{
		NumX:        model.Ptr(res.NumX),
		NumY:        model.Ptr(res.NumY),
		XSpacing:    model.Ptr(res.XSpacing),
		YSpacing:    model.Ptr(res.YSpacing),
		StateHashes: f.inlineLocked(),
	}
	if f.zones[i].Type == model.ZoneVolume {
		upd.NumZ = model.Ptr(res.NumZ)
		upd.ZSpacing = model.Ptr(res.ZSpacing)
	}
	return upd, nil
}

func (f *Fake) DeleteZone(ctx context.Context, id string) (*fingerprint.StateFingerprint, error) {
	f.delay(ctx, Call{Op: OpDeleteZone, ID: id})
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpDeleteZone, ID: id}, true); err != nil {
		return nil, err
	}
	i := f.zoneIndex(id)
	if i < 0 {
		return nil, notFound("zones", id)
	}
	f.zones = append(f.zones[:i], f.zones[i+1:]...)
	return f.inlineLocked(), nil
}

func (f *Fake) CopyZone(_ context.Context, id string) (engine.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpCopyZone, ID: id}, true); err != nil {
		return engine.AddResult{}, err
	}
	i := f.zoneIndex(id)
	if i < 0 {
		return engine.AddResult{}, notFound("zones", id)
	}
	f.nextZone++
	dup := f.zones[i]
	dup.ID = fmt.Sprintf("Z-%d", f.nextZone)
	dup.IsStandard = false
	f.zones = append(f.zones, dup)
	return engine.AddResult{ID: dup.ID, StateHashes: f.inlineLocked()}, nil
}

func (f *Fake) FetchZones(ctx context.Context) ([]engine.ZoneState, error) {
	f.mu.Lock()
	if err := f.begin(Call{Op: OpFetchZones}, true); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	out := make([]engine.ZoneState, 0, len(f.zones))
	for _, z := range f.zones {
		if f.wrongFor[z.ID] {
			z.Horiz, z.Vert = !z.Horiz, !z.Vert
			z.FOVVert = model.FOVHoriz
		}
		out = append(out, engine.StateOf(z))
	}
	hook := f.afterFetch
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	return out, nil
}

func (f *Fake) FetchStateHashes(context.Context) (*fingerprint.StateFingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpStateHashes}, true); err != nil {
		return nil, err
	}
	return f.hashesLocked(), nil
}

func (f *Fake) Calculate(context.Context) (*engine.Calculation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpCalculate}, true); err != nil {
		return nil, err
	}
	mean := float64(len(f.lamps))
	res := model.Results{
		CalculatedAt: time.Now().UTC(),
		MeanFluence:  &mean,
		Zones:        make(map[string]model.ZoneResult, len(f.zones)),
	}
	for _, z := range f.zones {
		if !z.Enabled {
			continue
		}
		v := mean
		res.Zones[z.ID] = model.ZoneResult{
			ZoneID:     z.ID,
			ZoneName:   z.Name,
			ZoneType:   z.Type,
			Statistics: model.Statistics{Min: &v, Max: &v, Mean: &v},
			NumPoints:  []int{z.Resolution.NumX, z.Resolution.NumY},
			Values:     json.RawMessage(fmt.Sprintf("[[%g]]", v)),
		}
	}
	return &engine.Calculation{Results: res, StateHashes: f.hashesLocked()}, nil
}

func (f *Fake) EstimateCalculation(context.Context) (*engine.CalculationEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpEstimate}, true); err != nil {
		return nil, err
	}
	points := 0
	for _, z := range f.zones {
		if z.Enabled {
			points += z.Resolution.NumX * z.Resolution.NumY * max(z.Resolution.NumZ, 1)
		}
	}
	passes := 0
	if f.room.Reflectance.Enabled {
		passes = f.room.Reflectance.MaxNumPasses
	}
	seconds := float64(points*len(f.lamps)*(passes+1)) * 1e-5
	return &engine.CalculationEstimate{
		EstimatedSeconds:   seconds,
		GridPoints:         points,
		LampCount:          len(f.lamps),
		ReflectanceEnabled: f.room.Reflectance.Enabled,
		ReflectancePasses:  passes,
		BudgetPercent:      math.Round(seconds*10) / 10,
	}, nil
}

// CheckLamps treats a scaling factor above one as needing dimming and a
// KrCl lamp without a spectrum as missing data.
func (f *Fake) CheckLamps(context.Context) (*engine.SafetyCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(Call{Op: OpCheckLamps}, true); err != nil {
		return nil, err
	}
	check := &engine.SafetyCheck{
		Status: engine.SafetyCompliant,
		Lamps:  make(map[string]engine.LampCompliance, len(f.lamps)),
	}
	for _, ls := range f.lamps {
		dim := 1.0
		if ls.ScalingFactor > 1 {
			dim = 1 / ls.ScalingFactor
			check.Status = engine.SafetyCompliantWithDimming
		}
		res := engine.LampCompliance{
			LampID:              ls.ID,
			LampName:            ls.Name,
			SkinDimmingRequired: dim,
			EyeDimmingRequired:  dim,
			SkinCompliant:       dim == 1,
			EyeCompliant:        dim == 1,
			MissingSpectrum:     ls.LampType == model.LampKrCl222 && !ls.Spectrum.Loaded,
		}
		if res.MissingSpectrum {
			check.Warnings = append(check.Warnings, engine.SafetyWarning{
				Level: "warning", Message: ls.Name + " has no spectrum", LampID: ls.ID,
			})
		}
		check.Lamps[ls.ID] = res
	}
	return check, nil
}

// begin records c and applies injected failures. needSession rejects
// calls without a live session the way the engine does.
func (f *Fake) begin(c Call, needSession bool) error {
	f.calls = append(f.calls, c)
	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.failOps[c.Op]; ok {
		return err
	}
	if needSession && !f.sessions[f.creds.SessionID] {
		return fmt.Errorf("%s: %w", c.Op, engine.ErrSessionExpired)
	}
	return nil
}

// normalizeZone fits standard zones to the room the way the engine does.
func (f *Fake) normalizeZone(z model.Zone) model.Zone {
	if !model.IsStandardZoneID(z.ID) {
		deriveGrid(&z)
		return z
	}
	for _, placed := range model.PlaceholderStandardZones(f.room) {
		if placed.ID != z.ID {
			continue
		}
		placed.Enabled = z.Enabled
		if placed.Type == model.ZoneVolume {
			placed.Resolution.Mode = model.ModeNumPoints
		}
		deriveGrid(&placed)
		return placed
	}
	return z
}

func deriveGrid(z *model.Zone) {
	spanX, spanY, spanZ := z.X2-z.X1, z.Y2-z.Y1, 0.0
	if z.Type == model.ZoneVolume {
		spanX, spanY, spanZ = z.XMax-z.XMin, z.YMax-z.YMin, z.ZMax-z.ZMin
	}
	r := &z.Resolution
	if r.Mode == model.ModeNumPoints {
		r.XSpacing, r.YSpacing = spacing(spanX, r.NumX), spacing(spanY, r.NumY)
		if z.Type == model.ZoneVolume {
			r.ZSpacing = spacing(spanZ, r.NumZ)
		}
		return
	}
	r.NumX, r.NumY = points(spanX, r.XSpacing), points(spanY, r.YSpacing)
	if z.Type == model.ZoneVolume {
		r.NumZ = points(spanZ, r.ZSpacing)
	}
}

func spacing(span float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Round(span/float64(n)*1e6) / 1e6
}

func points(span, step float64) int {
	if step <= 0 {
		return 0
	}
	return int(math.Max(1, math.Round(span/step)))
}

// inlineLocked returns the hashes a mutation response carries.
func (f *Fake) inlineLocked() *fingerprint.StateFingerprint {
	if f.noInline {
		return nil
	}
	return f.hashesLocked()
}

func (f *Fake) hashesLocked() *fingerprint.StateFingerprint {
	lamps := append([]model.LightSource(nil), f.lamps...)
	sort.Slice(lamps, func(i, j int) bool { return lamps[i].ID < lamps[j].ID })
	for i := range lamps {
		lamps[i].Name = ""
	}
	room := f.room
	room.ColorMap = ""
	room.UseStandardZones = false

	fp := &fingerprint.StateFingerprint{
		CalcState: fingerprint.HashFamily{
			LightSources: digest(lamps),
			Reflectance:  digest(room),
			Zones:        make(map[string]string, len(f.zones)),
		},
		UpdateState: fingerprint.HashFamily{
			LightSources: digest(len(lamps)),
			Reflectance:  digest(room.Reflectance),
			Zones:        make(map[string]string, len(f.zones)),
		},
	}
	for _, z := range f.zones {
		name := z.Name
		z.Name = ""
		fp.CalcState.Zones[z.ID] = digest(z)
		fp.UpdateState.Zones[z.ID] = digest(name)
	}
	return fp
}

func digest(v any) string {
	raw, _ := json.Marshal(v)
	h := fnv.New64a()
	_, _ = h.Write(raw)
	return fmt.Sprintf("%016x", h.Sum64())
}

func (f *Fake) lampIndex(id string) int {
	for i := range f.lamps {
		if f.lamps[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *Fake) zoneIndex(id string) int {
	for i := range f.zones {
		if f.zones[i].ID == id {
			return i
		}
	}
	return -1
}

func notFound(kind, id string) error {
	return &engine.APIError{Method: "PATCH", Path: "/" + kind + "/" + id, Status: 404, Detail: fmt.Sprintf("%s %s not found", kind, id)}
}
