package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"pkt.systems/pslog"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/logx"
	"github.com/five82/lumen/internal/notify"
	"github.com/five82/lumen/internal/state"
)

// State is the lifecycle state of the remote session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CredentialStore persists issued credentials so a restart can resume the
// same remote session.
type CredentialStore interface {
	LoadCredentials() (engine.Credentials, bool, error)
	SaveCredentials(engine.Credentials) error
}

// Hook runs after every successful activation.
type Hook func(ctx context.Context) error

// Options configures a Manager.
type Options struct {
	Credentials CredentialStore
	Logger      pslog.Logger
	// Spawn runs activation hooks off the caller's goroutine. Defaults to a
	// plain goroutine.
	Spawn func(func(ctx context.Context))
}

// Manager owns the remote session. It creates sessions, replays the model
// into them and reports failures to the notification sink. It never retries
// on its own; the next user-triggered remote call does.
type Manager struct {
	gw      engine.Gateway
	store   *state.Store
	tracker *fingerprint.Tracker
	sink    notify.Sink
	creds   CredentialStore
	logger  pslog.Logger
	spawn   func(func(ctx context.Context))

	flight singleflight.Group

	mu        sync.Mutex
	state     State
	auxFile   bool
	hooks     []Hook
	listeners map[uint64]func(State)
	nextID    uint64
}

// NewManager builds a manager in the uninitialized state.
func NewManager(ctx context.Context, gw engine.Gateway, store *state.Store, tracker *fingerprint.Tracker, sink notify.Sink, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logx.Discard()
	}
	if opts.Spawn == nil {
		opts.Spawn = func(fn func(context.Context)) { go fn(ctx) }
	}
	return &Manager{
		gw:        gw,
		store:     store,
		tracker:   tracker,
		sink:      sink,
		creds:     opts.Credentials,
		logger:    opts.Logger,
		spawn:     opts.Spawn,
		listeners: make(map[uint64]func(State)),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether remote calls may be issued.
func (m *Manager) Active() bool {
	return m.State() == StateActive
}

// SessionID returns the id of the current credentials.
func (m *Manager) SessionID() string {
	return m.gw.Credentials().SessionID
}

// Degraded reports whether the session runs on a client-generated id.
func (m *Manager) Degraded() bool {
	return m.gw.Credentials().Degraded()
}

// LoadedFromAuxiliaryFile reports whether the session holds uploaded file
// data. The flag survives reinitialization.
func (m *Manager) LoadedFromAuxiliaryFile() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auxFile
}

// MarkAuxiliaryFile records an upload.
func (m *Manager) MarkAuxiliaryFile() {
	m.mu.Lock()
	m.auxFile = true
	m.mu.Unlock()
}

// OnActive registers a hook run after each successful (re)initialization.
func (m *Manager) OnActive(h Hook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, h)
	m.mu.Unlock()
}

// Subscribe registers fn for state changes and returns a function that
// removes it.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	listeners := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// Init obtains credentials and replays the current model into a new
// session.
func (m *Manager) Init(ctx context.Context) error {
	return m.initialize(ctx, "initSession")
}

// Reinitialize replays the model into a fresh session after expiry.
func (m *Manager) Reinitialize(ctx context.Context) error {
	m.setState(StateExpired)
	return m.initialize(ctx, "reinitializeSession")
}

// Ensure initializes a session unless one is already active.
func (m *Manager) Ensure(ctx context.Context) error {
	if m.Active() {
		return nil
	}
	_, err, _ := m.flight.Do("init", func() (any, error) {
		if m.Active() {
			return nil, nil
		}
		return nil, m.replay(ctx, "initSession")
	})
	return err
}

// Resume reuses persisted credentials when the engine still knows them and
// falls back to a fresh session otherwise. It shares the init flight, so an
// Ensure racing it never sees half-installed credentials, and it does
// nothing once a session is active.
func (m *Manager) Resume(ctx context.Context) error {
	if m.creds == nil {
		return m.Init(ctx)
	}
	_, err, _ := m.flight.Do("init", func() (any, error) {
		return nil, m.resume(ctx)
	})
	return err
}

func (m *Manager) resume(ctx context.Context) error {
	if m.Active() {
		return nil
	}
	creds, ok, err := m.creds.LoadCredentials()
	if err != nil {
		m.logger.Warn("load persisted credentials failed", "err", err)
	}
	if !ok || err != nil {
		return m.replay(ctx, "initSession")
	}

	log := logx.WithSession(m.logger, creds.SessionID)
	m.gw.SetCredentials(creds)
	st, err := m.gw.Status(ctx)
	if err != nil || !st.Active {
		log.Info("persisted session unavailable; starting a new one", "err", err)
		return m.replay(ctx, "initSession")
	}
	log.Info("resumed session")
	m.setState(StateActive)
	m.runHooks()
	return nil
}

// initialize runs one init flow. Concurrent callers share it.
func (m *Manager) initialize(ctx context.Context, op string) error {
	_, err, _ := m.flight.Do("init", func() (any, error) {
		return nil, m.replay(ctx, op)
	})
	return err
}

func (m *Manager) replay(ctx context.Context, op string) error {
	prev := m.State()
	m.setState(StateInitializing)

	creds, err := m.gw.CreateSession(ctx)
	if err != nil {
		creds = engine.Credentials{SessionID: uuid.NewString()}
		m.logger.Warn("credential issuance failed; continuing with a client-generated session id",
			"err", err, "session", creds.SessionID)
	}
	m.gw.SetCredentials(creds)
	log := logx.WithOp(logx.WithSession(m.logger, creds.SessionID), op)

	if m.creds != nil && !creds.Degraded() {
		if err := m.creds.SaveCredentials(creds); err != nil {
			log.Warn("persist credentials failed", "err", err)
		}
	}

	res, err := m.gw.InitSession(ctx, m.store.Read())
	if err != nil {
		failed := StateUninitialized
		if prev == StateActive || prev == StateExpired {
			failed = StateExpired
		}
		m.setState(failed)
		log.Error("session initialization failed", "err", err)
		m.sink.Notify(notify.SeverityError, op, err.Error())
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.StateHashes != nil {
		m.tracker.ApplyFromResponse(res.StateHashes)
	}
	m.setState(StateActive)
	log.Info("session active", "lamps", res.LampCount, "zones", res.ZoneCount,
		"auxiliary_file", m.LoadedFromAuxiliaryFile())
	m.runHooks()
	return nil
}

// runHooks starts the activation hooks concurrently. Each hook reports its
// own failures.
func (m *Manager) runHooks() {
	m.mu.Lock()
	hooks := append([]Hook(nil), m.hooks...)
	m.mu.Unlock()
	if len(hooks) == 0 {
		return
	}
	m.spawn(func(ctx context.Context) {
		var g errgroup.Group
		for _, h := range hooks {
			g.Go(func() error { return h(ctx) })
		}
		if err := g.Wait(); err != nil {
			m.logger.Debug("activation hook failed", "err", err)
		}
	})
}
