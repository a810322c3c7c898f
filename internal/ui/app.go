package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/model"
	"github.com/five82/lumen/internal/notify"
	"github.com/five82/lumen/internal/prefs"
	"github.com/five82/lumen/internal/session"
	"github.com/five82/lumen/internal/state"
)

// Editor is the mutation surface the UI drives. Calls that may block on the
// engine run inside tea commands.
type Editor interface {
	UpdateRoom(patch model.RoomPatch)
	SetStandardZonesEnabled(enabled bool)
	AddLightSource(ctx context.Context, ls model.LightSource) (model.LightSource, bool)
	UpdateLightSource(id string, patch model.LightSourcePatch) bool
	RemoveLightSource(id string) bool
	CopyLightSource(ctx context.Context, id string) (model.LightSource, bool)
	AddZone(ctx context.Context, z model.Zone) (model.Zone, bool)
	UpdateZone(id string, patch model.ZonePatch) bool
	RemoveZone(id string) bool
	CopyZone(ctx context.Context, id string) (model.Zone, bool)
	PlaceLightSource(ctx context.Context, id string, req engine.PlacementRequest) (model.LightSource, bool)
	ClearIntensityMap(id string) bool
	Calculate(ctx context.Context) bool
	EstimateCalculation(ctx context.Context) (engine.CalculationEstimate, bool)
	CheckLamps(ctx context.Context) (engine.SafetyCheck, bool)
	Reset(ctx context.Context, units model.Units)
}

// SessionView is the read side of the session manager.
type SessionView interface {
	State() session.State
	SessionID() string
	Degraded() bool
}

// Options configures the UI.
type Options struct {
	Editor    Editor
	Store     *state.Store
	Tracker   *fingerprint.Tracker
	Notices   *notify.Queue
	Session   SessionView
	Workspace string
	Prefs     prefs.Prefs
	PrefsPath string
	Tick      time.Duration
}

type pane int

const (
	paneLamps pane = iota
	paneZones
)

// snapshot is everything one frame renders.
type snapshot struct {
	model     model.Model
	signals   fingerprint.Signals
	stale     map[string]bool
	notices   []notify.SyncNotification
	session   session.State
	sessionID string
	degraded  bool
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx  context.Context
	opts Options

	keys  keyMap
	help  help.Model
	theme Theme
	prefs prefs.Prefs

	width    int
	height   int
	ready    bool
	showHelp bool

	focus    pane
	selected [2]int

	snap   snapshot
	busy   int
	status string
	// placeIndex cycles corner placements.
	placeIndex int
}

// New creates a new Bubble Tea model.
func New(ctx context.Context, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultUIInterval
	}
	if opts.PrefsPath == "" {
		opts.PrefsPath = prefs.DefaultPath()
	}
	m := Model{
		ctx:   ctx,
		opts:  opts,
		keys:  DefaultKeyMap(),
		help:  help.New(),
		theme: GetTheme(opts.Prefs.Theme),
		prefs: opts.Prefs,
	}
	m.snap = m.capture()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.opts.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		m.snap = m.capture()
		m.clampSelection()
		return m, tickCmd(m.opts.Tick)

	case opDoneMsg:
		m.busy--
		switch {
		case msg.ok && msg.detail != "":
			m.status = msg.op + ": " + msg.detail
		case msg.ok:
			m.status = msg.op + " done"
		default:
			m.status = msg.op + " failed"
		}
		m.snap = m.capture()
		m.clampSelection()
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, k.CycleTheme):
		m.cycleTheme()
		return m, nil
	case key.Matches(msg, k.Tab):
		m.focus = (m.focus + 1) % 2
		return m, nil
	case key.Matches(msg, k.Up):
		m.moveSelection(-1)
		return m, nil
	case key.Matches(msg, k.Down):
		m.moveSelection(1)
		return m, nil
	case key.Matches(msg, k.Dismiss):
		m.dismissNewest()
		return m, nil
	case key.Matches(msg, k.DismissAll):
		m.opts.Notices.Clear()
		m.snap = m.capture()
		return m, nil
	}

	if cmd, handled := m.handleEdit(msg); handled {
		m.snap = m.capture()
		m.clampSelection()
		return m, cmd
	}
	return m, nil
}

func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.prefs.Theme = m.theme.Name
	if err := prefs.Save(m.opts.PrefsPath, m.prefs); err != nil {
		m.status = fmt.Sprintf("save prefs: %v", err)
	}
}

func (m *Model) dismissNewest() {
	list := m.snap.notices
	if len(list) == 0 {
		return
	}
	m.opts.Notices.Dismiss(list[len(list)-1].ID)
	m.snap = m.capture()
}

func (m *Model) moveSelection(delta int) {
	m.selected[m.focus] += delta
	m.clampSelection()
}

func (m *Model) clampSelection() {
	counts := [2]int{len(m.snap.model.LightSources), len(m.snap.model.Zones)}
	for i, n := range counts {
		switch {
		case n == 0:
			m.selected[i] = 0
		case m.selected[i] >= n:
			m.selected[i] = n - 1
		case m.selected[i] < 0:
			m.selected[i] = 0
		}
	}
}

// capture reads every source once so a frame never mixes two states.
func (m Model) capture() snapshot {
	s := snapshot{stale: make(map[string]bool)}
	if m.opts.Store != nil {
		s.model = m.opts.Store.Read()
	}
	if t := m.opts.Tracker; t != nil {
		s.signals = t.Signals()
		for _, z := range s.model.Zones {
			s.stale[z.ID] = t.ZoneStale(z.ID)
		}
	}
	if m.opts.Notices != nil {
		s.notices = m.opts.Notices.List()
	}
	if sv := m.opts.Session; sv != nil {
		s.session = sv.State()
		s.sessionID = sv.SessionID()
		s.degraded = sv.Degraded()
	}
	return s
}

// Messages

type tickMsg time.Time

type opDoneMsg struct {
	op     string
	ok     bool
	detail string
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// remoteCmd runs a call that may wait on the engine.
func (m Model) remoteCmd(op string, fn func(ctx context.Context) bool) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, ok: fn(ctx)}
	}
}

// queryCmd is remoteCmd for calls whose answer is shown in the status line.
func (m Model) queryCmd(op string, fn func(ctx context.Context) (string, bool)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		detail, ok := fn(ctx)
		return opDoneMsg{op: op, ok: ok, detail: detail}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Editor == nil || opts.Store == nil || opts.Notices == nil {
		return errors.New("ui requires an editor, a store and a notification queue")
	}
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
