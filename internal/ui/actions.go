package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/model"
)

// Nudge steps, in room units.
const (
	roomStepMeters = 0.5
	roomStepFeet   = 1.0
	lampStep       = 0.1
	hoursStep      = 1.0
)

// handleEdit maps a key to a model mutation. Local-first edits run inline;
// calls that wait on the engine become commands.
func (m *Model) handleEdit(msg tea.KeyMsg) (tea.Cmd, bool) {
	k := m.keys
	room := m.snap.model.Room
	step := roomStepMeters
	if room.Units == model.UnitsFeet {
		step = roomStepFeet
	}

	switch {
	case key.Matches(msg, k.RoomXDown):
		m.opts.Editor.UpdateRoom(model.RoomPatch{X: model.Ptr(shrink(room.X, step))})
	case key.Matches(msg, k.RoomXUp):
		m.opts.Editor.UpdateRoom(model.RoomPatch{X: model.Ptr(room.X + step)})
	case key.Matches(msg, k.RoomYDown):
		m.opts.Editor.UpdateRoom(model.RoomPatch{Y: model.Ptr(shrink(room.Y, step))})
	case key.Matches(msg, k.RoomYUp):
		m.opts.Editor.UpdateRoom(model.RoomPatch{Y: model.Ptr(room.Y + step)})
	case key.Matches(msg, k.RoomZDown):
		m.opts.Editor.UpdateRoom(model.RoomPatch{Z: model.Ptr(shrink(room.Z, step))})
	case key.Matches(msg, k.RoomZUp):
		m.opts.Editor.UpdateRoom(model.RoomPatch{Z: model.Ptr(room.Z + step)})
	case key.Matches(msg, k.CycleStandard):
		m.opts.Editor.UpdateRoom(model.RoomPatch{Standard: model.Ptr(nextStandard(room.Standard))})
	case key.Matches(msg, k.ToggleUnits):
		units := model.UnitsFeet
		if room.Units == model.UnitsFeet {
			units = model.UnitsMeters
		}
		m.opts.Editor.UpdateRoom(model.RoomPatch{Units: &units})
	case key.Matches(msg, k.Reflectance):
		m.opts.Editor.UpdateRoom(model.RoomPatch{
			Reflectance: &model.ReflectancePatch{Enabled: model.Ptr(!room.Reflectance.Enabled)},
		})
	case key.Matches(msg, k.StandardZones):
		m.opts.Editor.SetStandardZonesEnabled(!room.UseStandardZones)

	case key.Matches(msg, k.NudgeDown):
		m.nudgeSelected(-1)
	case key.Matches(msg, k.NudgeUp):
		m.nudgeSelected(1)
	case key.Matches(msg, k.ToggleEnabled):
		m.toggleSelected()
	case key.Matches(msg, k.Remove):
		m.removeSelected()
	case key.Matches(msg, k.ClearMap):
		if ls, ok := m.selectedLamp(); ok && m.focus == paneLamps {
			if !m.opts.Editor.ClearIntensityMap(ls.ID) {
				m.status = ls.Name + " has no intensity map"
			}
		}
	case key.Matches(msg, k.Place):
		return m.placeCmd(), true

	case key.Matches(msg, k.Add):
		return m.addCmd(), true
	case key.Matches(msg, k.Copy):
		return m.copyCmd(), true
	case key.Matches(msg, k.Calculate):
		m.busy++
		return m.remoteCmd("calculate", m.opts.Editor.Calculate), true
	case key.Matches(msg, k.Estimate):
		m.busy++
		return m.queryCmd("estimate", func(ctx context.Context) (string, bool) {
			est, ok := m.opts.Editor.EstimateCalculation(ctx)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("~%.1fs, %d points, %.1f%% of budget",
				est.EstimatedSeconds, est.GridPoints, est.BudgetPercent), true
		}), true
	case key.Matches(msg, k.Safety):
		m.busy++
		return m.queryCmd("safety", func(ctx context.Context) (string, bool) {
			check, ok := m.opts.Editor.CheckLamps(ctx)
			if !ok {
				return "", false
			}
			detail := strings.ReplaceAll(string(check.Status), "_", " ")
			if n := len(check.Warnings); n > 0 {
				detail += fmt.Sprintf(" (%d warnings)", n)
			}
			return detail, true
		}), true
	case key.Matches(msg, k.NewModel):
		units := room.Units
		m.busy++
		return m.remoteCmd("new model", func(ctx context.Context) bool {
			m.opts.Editor.Reset(ctx, units)
			return true
		}), true

	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) selectedLamp() (model.LightSource, bool) {
	lamps := m.snap.model.LightSources
	i := m.selected[paneLamps]
	if i < 0 || i >= len(lamps) {
		return model.LightSource{}, false
	}
	return lamps[i], true
}

func (m *Model) selectedZone() (model.Zone, bool) {
	zones := m.snap.model.Zones
	i := m.selected[paneZones]
	if i < 0 || i >= len(zones) {
		return model.Zone{}, false
	}
	return zones[i], true
}

// nudgeSelected moves a lamp along x inside the room, or changes a zone's
// exposure hours.
func (m *Model) nudgeSelected(dir float64) {
	switch m.focus {
	case paneLamps:
		ls, ok := m.selectedLamp()
		if !ok {
			return
		}
		x := clamp(ls.X+dir*lampStep, 0, m.snap.model.Room.X)
		m.opts.Editor.UpdateLightSource(ls.ID, model.LightSourcePatch{X: &x})
	case paneZones:
		z, ok := m.selectedZone()
		if !ok {
			return
		}
		hours := clamp(z.Hours+dir*hoursStep, 0, 24)
		m.opts.Editor.UpdateZone(z.ID, model.ZonePatch{Hours: &hours})
	}
}

func (m *Model) toggleSelected() {
	switch m.focus {
	case paneLamps:
		if ls, ok := m.selectedLamp(); ok {
			m.opts.Editor.UpdateLightSource(ls.ID, model.LightSourcePatch{Enabled: model.Ptr(!ls.Enabled)})
		}
	case paneZones:
		if z, ok := m.selectedZone(); ok {
			m.opts.Editor.UpdateZone(z.ID, model.ZonePatch{Enabled: model.Ptr(!z.Enabled)})
		}
	}
}

func (m *Model) removeSelected() {
	switch m.focus {
	case paneLamps:
		if ls, ok := m.selectedLamp(); ok {
			m.opts.Editor.RemoveLightSource(ls.ID)
		}
	case paneZones:
		z, ok := m.selectedZone()
		if !ok {
			return
		}
		if !m.opts.Editor.RemoveZone(z.ID) {
			m.status = fmt.Sprintf("%s is a standard zone; toggle standard zones to remove it", z.Name)
		}
	}
}

func (m *Model) addCmd() tea.Cmd {
	room := m.snap.model.Room
	m.busy++
	if m.focus == paneZones {
		z := newZone(room, len(m.snap.model.Zones)+1)
		return m.remoteCmd("add zone", func(ctx context.Context) bool {
			_, ok := m.opts.Editor.AddZone(ctx, z)
			return ok
		})
	}
	ls := newLamp(room, len(m.snap.model.LightSources)+1)
	return m.remoteCmd("add lamp", func(ctx context.Context) bool {
		_, ok := m.opts.Editor.AddLightSource(ctx, ls)
		return ok
	})
}

// placeCmd moves the selected lamp to the next corner the engine offers.
func (m *Model) placeCmd() tea.Cmd {
	if m.focus != paneLamps {
		return nil
	}
	ls, ok := m.selectedLamp()
	if !ok {
		return nil
	}
	req := engine.PlacementRequest{Mode: engine.PlaceCorner, PositionIndex: model.Ptr(m.placeIndex)}
	m.placeIndex++
	m.busy++
	return m.remoteCmd("place lamp", func(ctx context.Context) bool {
		_, ok := m.opts.Editor.PlaceLightSource(ctx, ls.ID, req)
		return ok
	})
}

func (m *Model) copyCmd() tea.Cmd {
	if m.focus == paneZones {
		z, ok := m.selectedZone()
		if !ok {
			return nil
		}
		m.busy++
		return m.remoteCmd("copy zone", func(ctx context.Context) bool {
			_, ok := m.opts.Editor.CopyZone(ctx, z.ID)
			return ok
		})
	}
	ls, ok := m.selectedLamp()
	if !ok {
		return nil
	}
	m.busy++
	return m.remoteCmd("copy lamp", func(ctx context.Context) bool {
		_, ok := m.opts.Editor.CopyLightSource(ctx, ls.ID)
		return ok
	})
}

// newLamp places a ceiling-mounted lamp aimed straight down at the room
// centre.
func newLamp(room model.Room, n int) model.LightSource {
	cx, cy := room.X/2, room.Y/2
	return model.LightSource{
		Name:          fmt.Sprintf("Lamp %d", n),
		LampType:      model.LampKrCl222,
		X:             cx,
		Y:             cy,
		Z:             room.Z - 0.1,
		AimX:          cx,
		AimY:          cy,
		AimZ:          0,
		ScalingFactor: 1,
		Enabled:       true,
	}
}

// newZone returns a horizontal plane over the whole floor at desk height.
func newZone(room model.Room, n int) model.Zone {
	height := 0.75
	spacing := 0.5
	if room.Units == model.UnitsFeet {
		height, spacing = 2.5, 1.5
	}
	return model.Zone{
		Name:    fmt.Sprintf("Plane %d", n),
		Type:    model.ZonePlane,
		Enabled: true,
		Hours:   8,
		Resolution: model.Resolution{
			Mode:     model.ModeSpacing,
			XSpacing: spacing,
			YSpacing: spacing,
		},
		Height:     height,
		X2:         room.X,
		Y2:         room.Y,
		RefSurface: "xy",
		Horiz:      true,
	}
}

func nextStandard(cur model.Standard) model.Standard {
	for i, s := range model.Standards {
		if s == cur {
			return model.Standards[(i+1)%len(model.Standards)]
		}
	}
	return model.Standards[0]
}

// shrink steps v down but never to zero or below.
func shrink(v, step float64) float64 {
	if v-step <= 0 {
		return v
	}
	return v - step
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
