package syncer

import (
	"context"
	"fmt"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/logx"
	"github.com/five82/lumen/internal/model"
)

// RefreshStandardZones reads the engine-owned geometry of the standard
// zones and writes it into the store. Only the newest pass may write: a
// pass that finishes after a newer one started is discarded. It waits for
// the last room sync issued before it so the engine has seen the latest
// dimensions.
//
// A Skin or Eye zone reported with the wrong orientation is corrected by
// deleting and re-creating it with the expected flags. The correction runs
// even when the pass itself is later discarded.
func (e *Engine) RefreshStandardZones(ctx context.Context) bool {
	const op = "refreshStandardZones"
	log := logx.WithOp(e.logger, op)

	seq := e.refreshSeq.Add(1)
	e.awaitRoomSync(ctx)

	var states []engine.ZoneState
	ok := e.guard.Background(ctx, op, func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		var err error
		states, err = e.gw.FetchZones(ctx)
		return nil, err
	})
	if !ok {
		return false
	}
	if e.refreshSeq.Load() != seq {
		log.Debug("superseded refresh discarded", "seq", seq)
		return false
	}

	cur := e.store.Read()
	if !cur.Room.UseStandardZones {
		log.Debug("standard zones disabled; refresh discarded")
		return false
	}

	zones := mergeStandardStates(cur, states)
	for i := range zones {
		if model.HasExpectedOrientation(zones[i]) {
			continue
		}
		log.Warn("standard zone orientation mismatch; recreating", "zone", zones[i].ID,
			"horiz", zones[i].Horiz, "vert", zones[i].Vert, "fov_vert", zones[i].FOVVert)
		model.ApplyStandardOrientation(&zones[i])
		e.recreateZone(ctx, zones[i])
	}

	if e.refreshSeq.Load() != seq {
		log.Debug("superseded refresh discarded", "seq", seq)
		return false
	}
	e.applyRemote(func(m *model.Model) {
		if m.Room.UseStandardZones {
			m.ReplaceStandardZones(zones)
		}
	})
	return true
}

// mergeStandardStates overlays the reported standard-zone states onto the
// local zones, or onto placeholders for zones not yet in the store.
// Missing zones are kept from the local base.
func mergeStandardStates(cur model.Model, states []engine.ZoneState) []model.Zone {
	base := make(map[string]model.Zone, len(model.StandardZoneIDs))
	for _, z := range model.PlaceholderStandardZones(cur.Room) {
		base[z.ID] = z
	}
	for _, z := range cur.StandardZones() {
		base[z.ID] = z
	}
	for _, s := range states {
		if !model.IsStandardZoneID(s.ID) {
			continue
		}
		z := base[s.ID]
		s.ApplyTo(&z)
		z.IsStandard = true
		base[s.ID] = z
	}
	out := make([]model.Zone, 0, len(model.StandardZoneIDs))
	for _, id := range model.StandardZoneIDs {
		out = append(out, base[id])
	}
	return out
}

// recreateZone deletes z remotely and adds it back with the same id.
func (e *Engine) recreateZone(ctx context.Context, z model.Zone) {
	e.guard.Await(ctx, "correctZoneOrientation", func(ctx context.Context) (*fingerprint.StateFingerprint, error) {
		if _, err := e.gw.DeleteZone(ctx, z.ID); err != nil {
			return nil, fmt.Errorf("delete %s: %w", z.ID, err)
		}
		res, err := e.gw.AddZone(ctx, z)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", z.ID, err)
		}
		return res.StateHashes, nil
	})
}
