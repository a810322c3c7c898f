package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/model"
	"github.com/five82/lumen/internal/notify"
	"github.com/five82/lumen/internal/prefs"
	"github.com/five82/lumen/internal/session"
	"github.com/five82/lumen/internal/state"
)

// stubEditor applies edits to the store directly and records them.
type stubEditor struct {
	store *state.Store

	mu    sync.Mutex
	calls []string
	rooms []model.RoomPatch
}

func (s *stubEditor) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
}

func (s *stubEditor) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubEditor) UpdateRoom(p model.RoomPatch) {
	s.record("updateRoom")
	s.mu.Lock()
	s.rooms = append(s.rooms, p)
	s.mu.Unlock()
	s.store.Mutate(func(m *model.Model) { p.Apply(&m.Room) })
}

func (s *stubEditor) SetStandardZonesEnabled(enabled bool) {
	s.record("setStandardZones")
	s.store.Mutate(func(m *model.Model) { m.Room.UseStandardZones = enabled })
}

func (s *stubEditor) AddLightSource(_ context.Context, ls model.LightSource) (model.LightSource, bool) {
	s.record("addLamp")
	ls.ID = "lamp-1"
	s.store.Mutate(func(m *model.Model) { m.LightSources = append(m.LightSources, ls) })
	return ls, true
}

func (s *stubEditor) UpdateLightSource(id string, p model.LightSourcePatch) bool {
	s.record("updateLamp:" + id)
	return true
}

func (s *stubEditor) RemoveLightSource(id string) bool {
	s.record("removeLamp:" + id)
	return true
}

func (s *stubEditor) CopyLightSource(_ context.Context, id string) (model.LightSource, bool) {
	s.record("copyLamp:" + id)
	return model.LightSource{}, false
}

func (s *stubEditor) AddZone(_ context.Context, z model.Zone) (model.Zone, bool) {
	s.record("addZone")
	return z, true
}

func (s *stubEditor) UpdateZone(id string, p model.ZonePatch) bool {
	s.record("updateZone:" + id)
	return true
}

func (s *stubEditor) RemoveZone(id string) bool {
	s.record("removeZone:" + id)
	return !model.IsStandardZoneID(id)
}

func (s *stubEditor) CopyZone(_ context.Context, id string) (model.Zone, bool) {
	s.record("copyZone:" + id)
	return model.Zone{}, true
}

func (s *stubEditor) Calculate(context.Context) bool {
	s.record("calculate")
	return true
}

func (s *stubEditor) PlaceLightSource(_ context.Context, id string, req engine.PlacementRequest) (model.LightSource, bool) {
	s.record(fmt.Sprintf("placeLamp:%s:%s:%d", id, req.Mode, *req.PositionIndex))
	return model.LightSource{ID: id}, true
}

func (s *stubEditor) ClearIntensityMap(id string) bool {
	s.record("clearMap:" + id)
	return false
}

func (s *stubEditor) EstimateCalculation(context.Context) (engine.CalculationEstimate, bool) {
	s.record("estimate")
	return engine.CalculationEstimate{EstimatedSeconds: 2.5, GridPoints: 1200, BudgetPercent: 12}, true
}

func (s *stubEditor) CheckLamps(context.Context) (engine.SafetyCheck, bool) {
	s.record("checkLamps")
	return engine.SafetyCheck{
		Status:   engine.SafetyCompliantWithDimming,
		Warnings: []engine.SafetyWarning{{Message: "dim lamp"}},
	}, true
}

func (s *stubEditor) Reset(_ context.Context, units model.Units) {
	s.record("reset:" + string(units))
}

type stubSession struct{}

func (stubSession) State() session.State { return session.StateActive }
func (stubSession) SessionID() string    { return "session-1" }
func (stubSession) Degraded() bool       { return false }

type fixture struct {
	editor  *stubEditor
	store   *state.Store
	notices *notify.Queue
	model   Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := state.NewStore(model.Default(model.UnitsMeters))
	f := &fixture{
		editor:  &stubEditor{store: store},
		store:   store,
		notices: notify.NewQueue(),
	}
	f.model = New(context.Background(), Options{
		Editor:    f.editor,
		Store:     store,
		Tracker:   fingerprint.NewTracker(),
		Notices:   f.notices,
		Session:   stubSession{},
		Workspace: "test",
		Prefs:     prefs.Prefs{Theme: "Nightfox", Units: "meters", Workspace: "test"},
		PrefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
	})
	f.send(tea.WindowSizeMsg{Width: 140, Height: 40})
	return f
}

func (f *fixture) send(msg tea.Msg) tea.Cmd {
	next, cmd := f.model.Update(msg)
	f.model = next.(Model)
	return cmd
}

func (f *fixture) press(keys string) tea.Cmd {
	switch keys {
	case "tab":
		return f.send(tea.KeyMsg{Type: tea.KeyTab})
	case "enter":
		return f.send(tea.KeyMsg{Type: tea.KeyEnter})
	}
	return f.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
}

// finish runs a command and feeds its message back.
func (f *fixture) finish(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	f.send(cmd())
}

func TestRoomNudgesSendPatches(t *testing.T) {
	f := newFixture(t)
	x := f.store.Read().Room.X

	f.press("X")
	f.press("x")
	f.press("x")

	require.Len(t, f.editor.rooms, 3)
	assert.Equal(t, x+roomStepMeters, *f.editor.rooms[0].X)
	assert.Equal(t, x-roomStepMeters, f.store.Read().Room.X)
}

func TestStandardZonesToggle(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.store.Read().Room.UseStandardZones)

	f.press("s")
	assert.False(t, f.store.Read().Room.UseStandardZones)
	f.press("s")
	assert.True(t, f.store.Read().Room.UseStandardZones)
}

func TestRemoveStandardZoneExplains(t *testing.T) {
	f := newFixture(t)
	f.press("tab")
	f.press("d")

	first := f.store.Read().Zones[0]
	assert.Contains(t, f.editor.Calls(), "removeZone:"+first.ID)
	assert.Contains(t, f.model.status, "standard zone")
}

func TestAddLampRunsAsCommand(t *testing.T) {
	f := newFixture(t)
	cmd := f.press("a")
	require.NotNil(t, cmd)
	assert.Equal(t, 1, f.model.busy)

	f.finish(cmd)
	assert.Equal(t, 0, f.model.busy)
	assert.Equal(t, "add lamp done", f.model.status)
	assert.Len(t, f.store.Read().LightSources, 1)

	f.press("l")
	assert.Contains(t, f.editor.Calls(), "updateLamp:lamp-1")
}

func TestCalculateAndNewModel(t *testing.T) {
	f := newFixture(t)
	f.finish(f.press("enter"))
	f.finish(f.press("N"))
	assert.Equal(t, []string{"calculate", "reset:meters"}, f.editor.Calls())
}

func TestPlaceCyclesCornerPositions(t *testing.T) {
	f := newFixture(t)
	f.finish(f.press("a"))

	f.finish(f.press("p"))
	f.finish(f.press("p"))
	assert.Equal(t, "place lamp done", f.model.status)
	assert.Equal(t, []string{"addLamp", "placeLamp:lamp-1:corner:0", "placeLamp:lamp-1:corner:1"}, f.editor.Calls())

	f.press("i")
	assert.Contains(t, f.editor.Calls(), "clearMap:lamp-1")
	assert.Contains(t, f.model.status, "no intensity map")
}

func TestEstimateAndSafetyReportInStatus(t *testing.T) {
	f := newFixture(t)
	f.finish(f.press("E"))
	assert.Equal(t, "estimate: ~2.5s, 1200 points, 12.0% of budget", f.model.status)

	f.finish(f.press("K"))
	assert.Equal(t, "safety: compliant with dimming (1 warnings)", f.model.status)
	assert.Equal(t, 0, f.model.busy)
}

func TestCycleThemeSavesPrefs(t *testing.T) {
	f := newFixture(t)
	f.press("T")
	assert.Equal(t, "Kanagawa", f.model.theme.Name)

	saved, err := prefs.Load(f.model.opts.PrefsPath)
	require.NoError(t, err)
	assert.Equal(t, "Kanagawa", saved.Theme)
	assert.Equal(t, "test", saved.Workspace)
}

func TestDismissNewestNotification(t *testing.T) {
	f := newFixture(t)
	f.notices.Notify(notify.SeverityError, "patchRoom", "first")
	f.notices.Notify(notify.SeverityWarning, "fetchZones", "second")
	f.send(tickMsg{})

	f.press("D")
	list := f.notices.List()
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Message)

	f.press("C")
	assert.Zero(t, f.notices.Len())
}

func TestViewRendersModel(t *testing.T) {
	f := newFixture(t)
	f.notices.Notify(notify.SeverityError, "calculate", "engine unreachable")
	f.send(tickMsg{})

	out := f.model.View()
	for _, want := range []string{"lumen", "ACTIVE", "Lamps (0)", "Zones (3)", "STD", "engine unreachable"} {
		assert.True(t, strings.Contains(out, want), "view missing %q", want)
	}

	f.press("?")
	assert.Contains(t, f.model.View(), "Keyboard Shortcuts")
	f.press("x")
	assert.False(t, f.model.showHelp)
	assert.Empty(t, f.editor.Calls(), "the key that closes help is not an edit")
}
