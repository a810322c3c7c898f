package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"

	"github.com/five82/lumen/internal/coalesce"
	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/logx"
	"github.com/five82/lumen/internal/model"
	"github.com/five82/lumen/internal/notify"
	"github.com/five82/lumen/internal/state"
)

const (
	// DefaultDebounce is the coalescing window for slider-style edits.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultFingerprintDebounce delays fingerprint fetches after calls
	// that return no inline hashes.
	DefaultFingerprintDebounce = 500 * time.Millisecond

	keyRoom        = "room"
	keyFingerprint = "fingerprint"
)

// Options tunes an Engine.
type Options struct {
	Debounce            time.Duration
	FingerprintDebounce time.Duration
	Logger              pslog.Logger
}

// Engine owns every entity operation. Each edit is applied to the store
// first and pushed to the engine afterwards; nothing here returns an error
// to the caller.
type Engine struct {
	store     *state.Store
	gw        engine.Gateway
	guard     *Guard
	session   Session
	tracker   *fingerprint.Tracker
	sink      notify.Sink
	coalescer *coalesce.Coalescer
	logger    pslog.Logger

	debounce            time.Duration
	fingerprintDebounce time.Duration

	mu           sync.Mutex
	pendingRoom  model.RoomPatch
	pendingLamps map[string]model.LightSourcePatch
	pendingZones map[string]model.ZonePatch

	// seq keeps calls for one entity in issue order.
	seq sequencer

	refreshSeq atomic.Uint64
}

// NewEngine wires an Engine.
func NewEngine(store *state.Store, gw engine.Gateway, guard *Guard, session Session, tracker *fingerprint.Tracker, sink notify.Sink, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.FingerprintDebounce <= 0 {
		opts.FingerprintDebounce = DefaultFingerprintDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logx.Discard()
	}
	e := &Engine{
		store:               store,
		gw:                  gw,
		guard:               guard,
		session:             session,
		tracker:             tracker,
		sink:                sink,
		coalescer:           coalesce.New(),
		logger:              opts.Logger,
		debounce:            opts.Debounce,
		fingerprintDebounce: opts.FingerprintDebounce,
		pendingLamps:        make(map[string]model.LightSourcePatch),
		pendingZones:        make(map[string]model.ZonePatch),
	}
	guard.OnMissingFingerprint(e.scheduleFingerprint)
	return e
}

// Store returns the model store the engine mutates.
func (e *Engine) Store() *state.Store { return e.store }

// Guard returns the engine's sync guard.
func (e *Engine) Guard() *Guard { return e.guard }

func lampKey(id string) string { return "lamp:" + id }
func zoneKey(id string) string { return "zone:" + id }

// applyRemote writes engine-originated values into the store without
// echoing them back.
func (e *Engine) applyRemote(fn func(*model.Model)) {
	e.guard.Suppress(func() {
		e.store.Mutate(fn)
	})
}

func (e *Engine) invalid(op string, err error) {
	logx.WithOp(e.logger, op).Warn("rejected invalid edit", "err", err)
	e.sink.Notify(notify.SeverityError, op, err.Error())
}

// --- Room ---

// UpdateRoom applies patch locally and pushes it. Debounce-safe fields are
// coalesced; units, standard, reflectance enable and the standard-zone
// toggle are sent immediately together with anything still pending.
func (e *Engine) UpdateRoom(patch model.RoomPatch) {
	const op = "updateRoom"
	if patch.UseStandardZones != nil {
		enabled := *patch.UseStandardZones
		patch.UseStandardZones = nil
		defer e.SetStandardZonesEnabled(enabled)
	}
	if patch.Empty() {
		return
	}

	cur := e.store.Read()
	candidate := cur.Clone()
	patch.Apply(&candidate.Room)
	if err := model.Validate(candidate); err != nil {
		e.invalid(op, err)
		return
	}
	e.store.Mutate(func(m *model.Model) { patch.Apply(&m.Room) })

	remote := patch.Remote()
	if remote.Empty() || e.guard.Suppressed() {
		return
	}

	e.mu.Lock()
	e.pendingRoom = e.pendingRoom.Merge(remote)
	e.mu.Unlock()

	if remote.OrderingSensitive() {
		e.coalescer.Cancel(keyRoom)
		e.sendRoom()
		return
	}
	e.coalescer.Coalesce(keyRoom, e.sendRoom, e.debounce)
}

// sendRoom takes the pending room patch and issues it on a tracked
// goroutine. The room slot is taken before the goroutine starts, so the
// patch reaches the engine after every earlier room call and refresh
// passes started afterwards wait for it.
func (e *Engine) sendRoom() {
	e.mu.Lock()
	patch := e.pendingRoom
	e.pendingRoom = model.RoomPatch{}
	e.mu.Unlock()
	if patch.Empty() {
		return
	}
	patch = activeSurfaceFields(patch, e.store.Read().Room)

	prev, release := e.seq.next(keyRoom)
	e.guard.Spawn(func(ctx context.Context) {
		waitFor(ctx, prev)
		e.pushRoom(ctx, patch, release)
	})
}

// pushRoom sends patch, releases the room slot and refreshes the standard
// zones when the geometry they derive from changed.
func (e *Engine) pushRoom(ctx context.Context, patch model.RoomPatch, release func()) {
	ok := e.guard.Run(ctx, "updateRoom", func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		return e.gw.PatchRoom(ctx, patch)
	})
	release()
	if ok && patch.ChangesStandardGeometry() && e.store.Read().Room.UseStandardZones {
		e.RefreshStandardZones(ctx)
	}
}

func (e *Engine) awaitRoomSync(ctx context.Context) {
	waitFor(ctx, e.seq.last(keyRoom))
}

// spawnOrdered runs fn on a tracked goroutine after every call issued
// earlier on key.
func (e *Engine) spawnOrdered(key string, fn func(ctx context.Context)) {
	prev, release := e.seq.next(key)
	e.guard.Spawn(func(ctx context.Context) {
		defer release()
		waitFor(ctx, prev)
		fn(ctx)
	})
}

// runOrdered is spawnOrdered on the caller's goroutine.
func (e *Engine) runOrdered(ctx context.Context, key string, fn func(ctx context.Context)) {
	prev, release := e.seq.next(key)
	defer release()
	waitFor(ctx, prev)
	fn(ctx)
}

// activeSurfaceFields rewrites the per-surface part of p so only the
// active resolution mode's values are sent. A mode switch sends the newly
// active mode's current values.
func activeSurfaceFields(p model.RoomPatch, room model.Room) model.RoomPatch {
	if p.Reflectance == nil || len(p.Reflectance.Surfaces) == 0 {
		return p
	}
	rp := *p.Reflectance
	surfaces := make(map[model.Surface]model.SurfacePatch, len(rp.Surfaces))
	for s, sp := range rp.Surfaces {
		cfg := room.Reflectance.Surfaces[s]
		if sp.Mode != nil {
			if cfg.Mode == model.ModeNumPoints {
				sp.NumX, sp.NumY = model.Ptr(cfg.NumX), model.Ptr(cfg.NumY)
			} else {
				sp.XSpacing, sp.YSpacing = model.Ptr(cfg.XSpacing), model.Ptr(cfg.YSpacing)
			}
			sp.Mode = nil
		}
		if cfg.Mode == model.ModeNumPoints {
			sp.XSpacing, sp.YSpacing = nil, nil
		} else {
			sp.NumX, sp.NumY = nil, nil
		}
		surfaces[s] = sp
	}
	rp.Surfaces = surfaces
	p.Reflectance = &rp
	return p
}

// SetStandardZonesEnabled adds or removes the three standard zones.
// Disabling removes them and their results locally and deletes them
// remotely in order. Enabling inserts placeholders, creates the zones
// remotely and then refreshes them from the engine.
func (e *Engine) SetStandardZonesEnabled(enabled bool) {
	const op = "setStandardZones"
	if e.store.Read().Room.UseStandardZones == enabled {
		return
	}
	for _, id := range model.StandardZoneIDs {
		e.dropPendingZone(id)
	}

	var placeholders []model.Zone
	e.store.Mutate(func(m *model.Model) {
		m.Room.UseStandardZones = enabled
		m.ClearZoneResults(model.StandardZoneIDs...)
		if enabled {
			placeholders = model.PlaceholderStandardZones(m.Room)
			m.ReplaceStandardZones(placeholders)
		} else {
			m.ReplaceStandardZones(nil)
		}
	})

	if e.guard.Suppressed() {
		return
	}

	prev, finish := e.seq.next(keyRoom)
	e.guard.Spawn(func(ctx context.Context) {
		waitFor(ctx, prev)
		if !e.session.Active() {
			// A new session is initialized from the model, which already
			// reflects the toggle.
			err := e.session.Ensure(ctx)
			finish()
			if err == nil && enabled {
				e.RefreshStandardZones(ctx)
			}
			return
		}
		ok := e.guard.Run(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
			var last *fingerprint.StateFingerprint
			if !enabled {
				for _, id := range model.StandardZoneIDs {
					fp, err := e.gw.DeleteZone(ctx, id)
					if err != nil {
						return nil, fmt.Errorf("delete %s: %w", id, err)
					}
					last = fp
				}
				return last, nil
			}
			for _, z := range placeholders {
				res, err := e.gw.AddZone(ctx, z)
				if err != nil {
					return nil, fmt.Errorf("add %s: %w", z.ID, err)
				}
				last = res.StateHashes
			}
			return last, nil
		})
		finish()
		if ok && enabled {
			e.RefreshStandardZones(ctx)
		}
	})
}

// --- Light sources ---

// AddLightSource creates ls remotely and inserts it with the engine's id.
func (e *Engine) AddLightSource(ctx context.Context, ls model.LightSource) (model.LightSource, bool) {
	const op = "addLightSource"
	ls.ID = ""
	if err := model.ValidateNewLightSource(ls); err != nil {
		e.invalid(op, err)
		return model.LightSource{}, false
	}

	var id string
	ok := e.guard.Await(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		res, err := e.gw.AddLightSource(ctx, ls)
		if err != nil {
			return nil, err
		}
		id = res.ID
		return res.StateHashes, nil
	})
	if !ok {
		return model.LightSource{}, false
	}
	ls.ID = id
	e.store.Mutate(func(m *model.Model) {
		m.LightSources = append(m.LightSources, ls)
	})
	return ls, true
}

// UpdateLightSource applies patch locally and coalesces the remote update.
func (e *Engine) UpdateLightSource(id string, patch model.LightSourcePatch) bool {
	const op = "updateLightSource"
	cur := e.store.Read()
	ls, found := cur.LightSource(id)
	if !found || patch.Empty() {
		return false
	}
	patch.Apply(&ls)
	if err := model.ValidateNewLightSource(ls); err != nil {
		e.invalid(op, err)
		return false
	}
	e.store.Mutate(func(m *model.Model) {
		if i := m.LightSourceIndex(id); i >= 0 {
			patch.Apply(&m.LightSources[i])
		}
	})

	remote := patch.Remote()
	if remote.Empty() || e.guard.Suppressed() {
		return true
	}
	e.mu.Lock()
	e.pendingLamps[id] = e.pendingLamps[id].Merge(remote)
	e.mu.Unlock()
	e.coalescer.Coalesce(lampKey(id), func() { e.sendLamp(id) }, e.debounce)
	return true
}

func (e *Engine) takeLamp(id string) (model.LightSourcePatch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pendingLamps[id]
	delete(e.pendingLamps, id)
	return p, ok && !p.Empty()
}

func (e *Engine) sendLamp(id string) {
	patch, ok := e.takeLamp(id)
	if !ok {
		return
	}
	e.spawnOrdered(lampKey(id), func(ctx context.Context) { e.pushLamp(ctx, id, patch) })
}

func (e *Engine) pushLamp(ctx context.Context, id string, patch model.LightSourcePatch) {
	var upd *engine.LightSourceUpdate
	ok := e.guard.Run(ctx, "updateLightSource", func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		var err error
		upd, err = e.gw.UpdateLightSource(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		return upd.StateHashes, nil
	})
	if !ok || upd == nil {
		return
	}
	// The engine may normalize the aim. A newer aim edit still pending
	// locally wins over the response.
	e.mu.Lock()
	next := e.pendingLamps[id]
	e.mu.Unlock()
	if next.AimX != nil || next.AimY != nil || next.AimZ != nil {
		return
	}
	e.applyRemote(func(m *model.Model) {
		if i := m.LightSourceIndex(id); i >= 0 {
			ls := &m.LightSources[i]
			setIf(&ls.AimX, upd.AimX)
			setIf(&ls.AimY, upd.AimY)
			setIf(&ls.AimZ, upd.AimZ)
		}
	})
}

// flushLamp sends the pending update for id now and returns once every
// call issued earlier for id finished.
func (e *Engine) flushLamp(ctx context.Context, id string) {
	e.coalescer.Cancel(lampKey(id))
	e.runOrdered(ctx, lampKey(id), func(ctx context.Context) {
		if patch, ok := e.takeLamp(id); ok {
			e.pushLamp(ctx, id, patch)
		}
	})
}

// RemoveLightSource removes the light source locally and deletes it
// remotely in the background. A failed delete is reported but not rolled
// back.
func (e *Engine) RemoveLightSource(id string) bool {
	removed := false
	e.coalescer.Cancel(lampKey(id))
	e.mu.Lock()
	delete(e.pendingLamps, id)
	e.mu.Unlock()
	e.store.Mutate(func(m *model.Model) {
		if i := m.LightSourceIndex(id); i >= 0 {
			m.LightSources = append(m.LightSources[:i], m.LightSources[i+1:]...)
			removed = true
		}
	})
	if !removed || e.guard.Suppressed() {
		return removed
	}
	e.spawnOrdered(lampKey(id), func(ctx context.Context) {
		e.guard.Run(ctx, "removeLightSource", func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
			return e.gw.DeleteLightSource(ctx, id)
		})
	})
	return true
}

// CopyLightSource duplicates id remotely and inserts the copy after the
// original.
func (e *Engine) CopyLightSource(ctx context.Context, id string) (model.LightSource, bool) {
	const op = "copyLightSource"
	if _, found := e.store.Read().LightSource(id); !found {
		return model.LightSource{}, false
	}
	e.flushLamp(ctx, id)

	var newID string
	ok := e.guard.Await(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		res, err := e.gw.CopyLightSource(ctx, id)
		if err != nil {
			return nil, err
		}
		newID = res.ID
		return res.StateHashes, nil
	})
	if !ok {
		return model.LightSource{}, false
	}
	var dup model.LightSource
	e.store.Mutate(func(m *model.Model) {
		i := m.LightSourceIndex(id)
		if i < 0 {
			return
		}
		dup = m.LightSources[i]
		dup.ID = newID
		dup.Name = copyName(dup.Name)
		m.LightSources = insertAt(m.LightSources, i+1, dup)
	})
	if dup.ID == "" {
		return model.LightSource{}, false
	}
	e.scheduleFingerprint()
	return dup, true
}

// UploadPhotometry uploads an IES file for id.
func (e *Engine) UploadPhotometry(ctx context.Context, id, fileName string, data []byte) bool {
	return e.upload(ctx, "uploadPhotometry", id, fileName, data, e.gw.UploadPhotometry, func(ls *model.LightSource) {
		ls.Photometry = model.FileStatus{Loaded: true, FileName: fileName}
	})
}

// UploadSpectrum uploads a spectral distribution file for id.
func (e *Engine) UploadSpectrum(ctx context.Context, id, fileName string, data []byte) bool {
	return e.upload(ctx, "uploadSpectrum", id, fileName, data, e.gw.UploadSpectrum, func(ls *model.LightSource) {
		ls.Spectrum = model.FileStatus{Loaded: true, FileName: fileName}
	})
}

// UploadIntensityMap uploads a near-field intensity map CSV for id.
func (e *Engine) UploadIntensityMap(ctx context.Context, id, fileName string, data []byte) bool {
	return e.upload(ctx, "uploadIntensityMap", id, fileName, data, e.gw.UploadIntensityMap, func(ls *model.LightSource) {
		ls.IntensityMap = model.FileStatus{Loaded: true, FileName: fileName}
	})
}

// ClearIntensityMap drops the intensity map of id locally and deletes it
// remotely after any call already issued for the lamp.
func (e *Engine) ClearIntensityMap(id string) bool {
	cleared := false
	e.store.Mutate(func(m *model.Model) {
		if i := m.LightSourceIndex(id); i >= 0 && m.LightSources[i].IntensityMap.Loaded {
			m.LightSources[i].IntensityMap = model.FileStatus{}
			cleared = true
		}
	})
	if !cleared || e.guard.Suppressed() {
		return cleared
	}
	e.spawnOrdered(lampKey(id), func(ctx context.Context) {
		e.guard.Run(ctx, "clearIntensityMap", func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
			return e.gw.DeleteIntensityMap(ctx, id)
		})
	})
	return true
}

// PlaceLightSource asks the engine where id should go and applies the
// answer as an ordinary edit, so it is sent back like any other move.
func (e *Engine) PlaceLightSource(ctx context.Context, id string, req engine.PlacementRequest) (model.LightSource, bool) {
	const op = "placeLightSource"
	if _, found := e.store.Read().LightSource(id); !found {
		return model.LightSource{}, false
	}
	e.FlushPending(ctx)

	var placement *engine.Placement
	ok := e.guard.Query(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		var err error
		placement, err = e.gw.PlaceLightSource(ctx, id, req)
		return nil, err
	})
	if !ok || placement == nil {
		return model.LightSource{}, false
	}
	if !e.UpdateLightSource(id, placement.Patch()) {
		return model.LightSource{}, false
	}
	ls, found := e.store.Read().LightSource(id)
	return ls, found
}

type uploadFunc func(ctx context.Context, id, fileName string, r io.Reader) (*fingerprint.StateFingerprint, error)

func (e *Engine) upload(ctx context.Context, op, id, fileName string, data []byte, send uploadFunc, mark func(*model.LightSource)) bool {
	if _, found := e.store.Read().LightSource(id); !found {
		return false
	}
	ok := e.guard.Await(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		return send(ctx, id, fileName, bytes.NewReader(data))
	})
	if !ok {
		return false
	}
	e.session.MarkAuxiliaryFile()
	e.applyRemote(func(m *model.Model) {
		if i := m.LightSourceIndex(id); i >= 0 {
			mark(&m.LightSources[i])
		}
	})
	return true
}

// --- Zones ---

// AddZone creates z remotely and inserts it with the engine's id. The
// reserved standard-zone ids cannot be added this way.
func (e *Engine) AddZone(ctx context.Context, z model.Zone) (model.Zone, bool) {
	const op = "addZone"
	if model.IsStandardZoneID(z.ID) {
		e.invalid(op, fmt.Errorf("zone id %q is reserved", z.ID))
		return model.Zone{}, false
	}
	z.ID = ""
	z.IsStandard = false
	if err := model.ValidateNewZone(z); err != nil {
		e.invalid(op, err)
		return model.Zone{}, false
	}

	var id string
	ok := e.guard.Await(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		res, err := e.gw.AddZone(ctx, z)
		if err != nil {
			return nil, err
		}
		id = res.ID
		return res.StateHashes, nil
	})
	if !ok {
		return model.Zone{}, false
	}
	z.ID = id
	e.store.Mutate(func(m *model.Model) {
		m.Zones = append(m.Zones, z)
	})
	return z, true
}

// UpdateZone applies patch locally and coalesces the remote update.
// Engine-owned geometry of standard zones is ignored.
func (e *Engine) UpdateZone(id string, patch model.ZonePatch) bool {
	const op = "updateZone"
	if model.IsStandardZoneID(id) {
		patch = patch.WithoutGeometry()
	}
	cur := e.store.Read()
	z, found := cur.Zone(id)
	if !found || patch.Empty() {
		return false
	}
	patch.Apply(&z)
	if err := model.ValidateNewZone(z); err != nil {
		e.invalid(op, err)
		return false
	}
	e.store.Mutate(func(m *model.Model) {
		if i := m.ZoneIndex(id); i >= 0 {
			patch.Apply(&m.Zones[i])
		}
	})

	// Mode is implied by which resolution fields are sent, so a mode switch
	// sends the newly active mode's values.
	if e.guard.Suppressed() {
		return true
	}
	remote := patch
	if remote.Mode != nil {
		r := z.Resolution
		if r.Mode == model.ModeNumPoints {
			remote = remote.Merge(model.ZonePatch{NumX: model.Ptr(r.NumX), NumY: model.Ptr(r.NumY), NumZ: model.Ptr(r.NumZ)})
		} else {
			remote = remote.Merge(model.ZonePatch{XSpacing: model.Ptr(r.XSpacing), YSpacing: model.Ptr(r.YSpacing), ZSpacing: model.Ptr(r.ZSpacing)})
		}
		remote.Mode = nil
	}
	if remote.Empty() {
		return true
	}
	e.mu.Lock()
	e.pendingZones[id] = e.pendingZones[id].Merge(remote)
	e.mu.Unlock()
	e.coalescer.Coalesce(zoneKey(id), func() { e.sendZone(id) }, e.debounce)
	return true
}

func (e *Engine) takeZone(id string) (model.ZonePatch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pendingZones[id]
	delete(e.pendingZones, id)
	return p, ok && !p.Empty()
}

func (e *Engine) dropPendingZone(id string) {
	e.coalescer.Cancel(zoneKey(id))
	e.mu.Lock()
	delete(e.pendingZones, id)
	e.mu.Unlock()
}

func (e *Engine) sendZone(id string) {
	patch, ok := e.takeZone(id)
	if !ok {
		return
	}
	e.spawnOrdered(zoneKey(id), func(ctx context.Context) { e.pushZone(ctx, id, patch) })
}

func (e *Engine) pushZone(ctx context.Context, id string, patch model.ZonePatch) {
	var upd *engine.ZoneUpdate
	ok := e.guard.Run(ctx, "updateZone", func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		var err error
		upd, err = e.gw.UpdateZone(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		return upd.StateHashes, nil
	})
	if !ok || upd == nil {
		return
	}
	// A resolution edit typed while this call was in flight wins.
	e.mu.Lock()
	next := e.pendingZones[id]
	e.mu.Unlock()
	if next.NumX != nil || next.NumY != nil || next.NumZ != nil ||
		next.XSpacing != nil || next.YSpacing != nil || next.ZSpacing != nil {
		return
	}
	e.applyRemote(func(m *model.Model) {
		if i := m.ZoneIndex(id); i >= 0 {
			upd.ApplyTo(&m.Zones[i])
		}
	})
}

func (e *Engine) flushZone(ctx context.Context, id string) {
	e.coalescer.Cancel(zoneKey(id))
	e.runOrdered(ctx, zoneKey(id), func(ctx context.Context) {
		if patch, ok := e.takeZone(id); ok {
			e.pushZone(ctx, id, patch)
		}
	})
}

// RemoveZone removes a custom zone locally and deletes it remotely in the
// background. Standard zones are only removed through
// SetStandardZonesEnabled; RemoveZone reports false for them.
func (e *Engine) RemoveZone(id string) bool {
	if model.IsStandardZoneID(id) {
		logx.WithOp(e.logger, "removeZone").Debug("refusing to remove standard zone", "zone", id)
		return false
	}
	e.dropPendingZone(id)
	removed := false
	e.store.Mutate(func(m *model.Model) {
		if i := m.ZoneIndex(id); i >= 0 {
			m.Zones = append(m.Zones[:i], m.Zones[i+1:]...)
			m.ClearZoneResults(id)
			removed = true
		}
	})
	if !removed || e.guard.Suppressed() {
		return removed
	}
	e.spawnOrdered(zoneKey(id), func(ctx context.Context) {
		e.guard.Run(ctx, "removeZone", func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
			return e.gw.DeleteZone(ctx, id)
		})
	})
	return true
}

// CopyZone duplicates id remotely and inserts the copy after the original.
// Copies of standard zones are ordinary zones.
func (e *Engine) CopyZone(ctx context.Context, id string) (model.Zone, bool) {
	const op = "copyZone"
	if _, found := e.store.Read().Zone(id); !found {
		return model.Zone{}, false
	}
	e.flushZone(ctx, id)

	var newID string
	ok := e.guard.Await(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		res, err := e.gw.CopyZone(ctx, id)
		if err != nil {
			return nil, err
		}
		newID = res.ID
		return res.StateHashes, nil
	})
	if !ok {
		return model.Zone{}, false
	}
	var dup model.Zone
	e.store.Mutate(func(m *model.Model) {
		i := m.ZoneIndex(id)
		if i < 0 {
			return
		}
		dup = m.Zones[i]
		dup.ID = newID
		dup.IsStandard = false
		dup.Name = copyName(dup.Name)
		m.Zones = insertAt(m.Zones, i+1, dup)
	})
	if dup.ID == "" {
		return model.Zone{}, false
	}
	e.scheduleFingerprint()
	return dup, true
}

// --- Computation and whole-model operations ---

// Calculate pushes every pending edit, waits for in-flight calls and runs
// the computation. Results and the fingerprint they were computed from
// are accepted together.
func (e *Engine) Calculate(ctx context.Context) bool {
	const op = "calculate"
	e.FlushPending(ctx)
	if err := e.guard.Wait(ctx); err != nil {
		return false
	}

	var calc *engine.Calculation
	ok := e.guard.Await(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		var err error
		calc, err = e.gw.Calculate(ctx)
		if err != nil {
			return nil, err
		}
		return calc.StateHashes, nil
	})
	if !ok || calc == nil {
		return false
	}
	e.AcceptComputation(calc.Results, calc.StateHashes)
	return true
}

// EstimateCalculation pushes pending edits and asks the engine what the
// next calculation would cost.
func (e *Engine) EstimateCalculation(ctx context.Context) (engine.CalculationEstimate, bool) {
	var est *engine.CalculationEstimate
	ok := e.settledQuery(ctx, "estimateCalculation", func(ctx context.Context) error {
		var err error
		est, err = e.gw.EstimateCalculation(ctx)
		return err
	})
	if !ok || est == nil {
		return engine.CalculationEstimate{}, false
	}
	return *est, true
}

// CheckLamps pushes pending edits and runs the engine's safety check
// against the resulting state.
func (e *Engine) CheckLamps(ctx context.Context) (engine.SafetyCheck, bool) {
	var check *engine.SafetyCheck
	ok := e.settledQuery(ctx, "checkLamps", func(ctx context.Context) error {
		var err error
		check, err = e.gw.CheckLamps(ctx)
		return err
	})
	if !ok || check == nil {
		return engine.SafetyCheck{}, false
	}
	if !check.Compliant() {
		logx.WithOp(e.logger, "checkLamps").Info("installation not compliant",
			"status", check.Status, "warnings", len(check.Warnings))
	}
	return *check, true
}

// settledQuery runs a read once every edit has reached the engine.
func (e *Engine) settledQuery(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	e.FlushPending(ctx)
	if err := e.guard.Wait(ctx); err != nil {
		return false
	}
	return e.guard.Query(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		return nil, fn(ctx)
	})
}

// AcceptComputation stores results and records fp as the fingerprint they
// were computed from.
func (e *Engine) AcceptComputation(results model.Results, fp *fingerprint.StateFingerprint) {
	e.applyRemote(func(m *model.Model) {
		res := results.Clone()
		m.Results = &res
	})
	e.tracker.ApplyFromComputation(fp)
	if _, ok := e.tracker.Current(); !ok {
		e.tracker.ApplyFromResponse(fp)
	}
}

// RefreshFingerprints fetches the current fingerprint.
func (e *Engine) RefreshFingerprints(ctx context.Context) bool {
	return e.guard.Background(ctx, "fetchStateHashes", func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		return e.gw.FetchStateHashes(ctx)
	})
}

// SessionHooks returns the work to run after every session activation: a
// fingerprint fetch and, with standard zones enabled, a refresh pass.
func (e *Engine) SessionHooks() []func(context.Context) error {
	return []func(context.Context) error{
		func(ctx context.Context) error {
			if !e.RefreshFingerprints(ctx) {
				return errors.New("fingerprint fetch skipped or failed")
			}
			return nil
		},
		func(ctx context.Context) error {
			if !e.store.Read().Room.UseStandardZones {
				return nil
			}
			if !e.RefreshStandardZones(ctx) {
				return errors.New("standard zone refresh not applied")
			}
			return nil
		},
	}
}

func (e *Engine) scheduleFingerprint() {
	e.coalescer.Coalesce(keyFingerprint, func() {
		e.guard.Spawn(func(ctx context.Context) { e.RefreshFingerprints(ctx) })
	}, e.fingerprintDebounce)
}

// FlushPending sends every coalesced edit now, in order: room first, then
// light sources and zones.
func (e *Engine) FlushPending(ctx context.Context) {
	e.coalescer.Cancel(keyRoom)
	e.mu.Lock()
	room := e.pendingRoom
	e.pendingRoom = model.RoomPatch{}
	lampIDs := make([]string, 0, len(e.pendingLamps))
	for id := range e.pendingLamps {
		lampIDs = append(lampIDs, id)
	}
	zoneIDs := make([]string, 0, len(e.pendingZones))
	for id := range e.pendingZones {
		zoneIDs = append(zoneIDs, id)
	}
	e.mu.Unlock()

	if !room.Empty() {
		room = activeSurfaceFields(room, e.store.Read().Room)
		prev, release := e.seq.next(keyRoom)
		waitFor(ctx, prev)
		e.pushRoom(ctx, room, release)
	}
	for _, id := range lampIDs {
		e.flushLamp(ctx, id)
	}
	for _, id := range zoneIDs {
		e.flushZone(ctx, id)
	}
}

// Reset replaces the model with a fresh default and starts a new session
// from it.
func (e *Engine) Reset(ctx context.Context, units model.Units) {
	e.replace(ctx, model.Default(units))
}

// Load replaces the model with m and replays it into a new session. An
// invalid model is rejected with a notification.
func (e *Engine) Load(ctx context.Context, m model.Model) bool {
	if m.Version == "" {
		m.Version = model.SchemaVersion
	}
	if err := model.Validate(m); err != nil {
		e.invalid("load", err)
		return false
	}
	if m.Room.UseStandardZones && len(m.StandardZones()) == 0 {
		m.ReplaceStandardZones(model.PlaceholderStandardZones(m.Room))
	}
	e.replace(ctx, m)
	return true
}

func (e *Engine) replace(ctx context.Context, m model.Model) {
	e.cancelPending()
	e.refreshSeq.Add(1)
	e.guard.Suppress(func() {
		e.store.Replace(m)
	})
	e.tracker.Reset()
	// Failures are reported by the session manager.
	_ = e.session.Reinitialize(ctx)
}

func (e *Engine) cancelPending() {
	e.mu.Lock()
	keys := []string{keyRoom, keyFingerprint}
	for id := range e.pendingLamps {
		keys = append(keys, lampKey(id))
	}
	for id := range e.pendingZones {
		keys = append(keys, zoneKey(id))
	}
	e.pendingRoom = model.RoomPatch{}
	clear(e.pendingLamps)
	clear(e.pendingZones)
	e.mu.Unlock()
	for _, k := range keys {
		e.coalescer.Cancel(k)
	}
}

// Close sends pending edits and waits for in-flight calls.
func (e *Engine) Close(ctx context.Context) error {
	e.FlushPending(ctx)
	return e.guard.Wait(ctx)
}

func copyName(name string) string {
	if name == "" {
		return ""
	}
	return name + " (copy)"
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
