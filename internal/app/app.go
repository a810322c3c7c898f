package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/five82/lumen/internal/config"
	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/logx"
	"github.com/five82/lumen/internal/model"
	"github.com/five82/lumen/internal/notify"
	"github.com/five82/lumen/internal/persist"
	"github.com/five82/lumen/internal/prefs"
	"github.com/five82/lumen/internal/session"
	"github.com/five82/lumen/internal/state"
	"github.com/five82/lumen/internal/syncer"
	"github.com/five82/lumen/internal/ui"
)

const shutdownTimeout = 5 * time.Second

// Options configure the lumen application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/lumen/prefs.toml
	Workspace  string // empty uses the workspace from prefs
	// Resume restores the persisted model and session instead of starting
	// from a fresh default model.
	Resume bool
	Logger pslog.Logger
}

// Run boots the lumen TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load lumen config: %w", err)
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	wsName := strings.TrimSpace(opts.Workspace)
	if wsName == "" {
		wsName = userPrefs.Workspace
	}
	log := logx.WithWorkspace(logx.Or(ctx, opts.Logger), wsName)

	db, err := persist.Open(persist.Config{Dir: cfg.StateDir(), Logger: log})
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn("close state failed", "err", cerr)
		}
	}()

	client, err := engine.NewClient(cfg.EngineURL, cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("init engine client: %w", err)
	}

	rt, err := Build(ctx, client, db.Workspace(wsName), Settings{
		Units:               model.Units(userPrefs.Units),
		Resume:              opts.Resume,
		Debounce:            cfg.Debounce,
		FingerprintDebounce: cfg.FingerprintDebounce,
		Logger:              log,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		rt.Close(closeCtx)
	}()

	rt.Start()
	StartPoller(ctx, rt.Engine.RefreshFingerprints, rt.Session.Active, cfg.Heartbeat, log)

	return ui.Run(ctx, ui.Options{
		Editor:    rt.Engine,
		Store:     rt.Store,
		Tracker:   rt.Tracker,
		Notices:   rt.Notices,
		Session:   rt.Session,
		Workspace: wsName,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
	})
}

// Settings tune a Runtime.
type Settings struct {
	Units               model.Units
	Resume              bool
	Debounce            time.Duration
	FingerprintDebounce time.Duration
	AutosaveDelay       time.Duration
	Logger              pslog.Logger
}

// Runtime is the wired set of components behind one workspace.
type Runtime struct {
	Store    *state.Store
	Tracker  *fingerprint.Tracker
	Notices  *notify.Queue
	Session  *session.Manager
	Guard    *syncer.Guard
	Engine   *syncer.Engine
	Restored bool

	resume   bool
	autosave *persist.Autosaver
	log      pslog.Logger
}

// Build loads the workspace model and connects the store, session and
// synchronization engine to gw. Nothing talks to the engine until Start.
func Build(ctx context.Context, gw engine.Gateway, ws *persist.Workspace, s Settings) (*Runtime, error) {
	log := logx.Or(ctx, s.Logger)
	units := s.Units
	if units != model.UnitsFeet {
		units = model.UnitsMeters
	}

	m, restored, err := ws.LoadModel(s.Resume, units)
	if err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", ws.Name(), err)
	}

	rt := &Runtime{
		Store:    state.NewStore(m),
		Tracker:  fingerprint.NewTracker(),
		Notices:  notify.NewQueue(),
		Restored: restored,
		resume:   s.Resume,
		log:      log,
	}

	var guard *syncer.Guard
	rt.Session = session.NewManager(ctx, gw, rt.Store, rt.Tracker, rt.Notices, session.Options{
		Credentials: ws,
		Logger:      log,
		Spawn:       func(fn func(context.Context)) { guard.Spawn(fn) },
	})
	guard = syncer.NewGuard(ctx, rt.Session, rt.Tracker, rt.Notices, log)
	rt.Guard = guard
	rt.Engine = syncer.NewEngine(rt.Store, gw, guard, rt.Session, rt.Tracker, rt.Notices, syncer.Options{
		Debounce:            s.Debounce,
		FingerprintDebounce: s.FingerprintDebounce,
		Logger:              log,
	})
	for _, hook := range rt.Engine.SessionHooks() {
		rt.Session.OnActive(hook)
	}
	rt.autosave = persist.StartAutosave(rt.Store, ws, s.AutosaveDelay, log)

	log.Info("workspace loaded", "restored", restored, "lamps", len(m.LightSources), "zones", len(m.Zones))
	return rt, nil
}

// Start opens the remote session in the background. A restored workspace
// resumes its stored session when the engine still knows it.
func (rt *Runtime) Start() {
	rt.Guard.Spawn(func(ctx context.Context) {
		var err error
		if rt.resume && rt.Restored {
			err = rt.Session.Resume(ctx)
		} else {
			err = rt.Session.Init(ctx)
		}
		if err != nil {
			rt.log.Warn("session start failed; edits stay local until the next remote call", "err", err)
		}
	})
}

// Close sends pending edits, waits for in-flight calls and writes the model
// one last time.
func (rt *Runtime) Close(ctx context.Context) {
	if err := rt.Engine.Close(ctx); err != nil {
		rt.log.Warn("pending calls abandoned on shutdown", "err", err)
	}
	rt.autosave.Stop()
}
