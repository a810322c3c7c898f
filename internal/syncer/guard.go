package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"pkt.systems/pslog"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/fingerprint"
	"github.com/five82/lumen/internal/logx"
	"github.com/five82/lumen/internal/notify"
)

// Session is the part of the session lifecycle the guard depends on.
type Session interface {
	// Active reports whether a remote session is ready for calls.
	Active() bool
	// Ensure initializes a session when none is active. Failures are
	// reported to the user by the implementation.
	Ensure(ctx context.Context) error
	// Reinitialize replays the model into a fresh session. Failures are
	// reported to the user by the implementation.
	Reinitialize(ctx context.Context) error
	// MarkAuxiliaryFile records that the session holds uploaded file data
	// a plain replay cannot reconstruct.
	MarkAuxiliaryFile()
}

// RemoteFunc performs one remote call and returns the fingerprint the
// engine reported inline, if any.
type RemoteFunc func(ctx context.Context) (*fingerprint.StateFingerprint, error)

type runMode struct {
	severity notify.Severity
	// ensure starts a session when none is active.
	ensure bool
	// retry repeats the call once after a successful reinitialization.
	// Calls whose effect is carried by the replay itself do not retry.
	retry bool
	// query calls read engine state and change nothing.
	query bool
}

var (
	modeMutation   = runMode{severity: notify.SeverityError, ensure: true}
	modeAwaited    = runMode{severity: notify.SeverityError, ensure: true, retry: true}
	modeQuery      = runMode{severity: notify.SeverityError, ensure: true, retry: true, query: true}
	modeBackground = runMode{severity: notify.SeverityWarning, retry: true, query: true}
)

// Guard wraps every remote call. It skips calls while no session is
// active or sync is suppressed, merges inline fingerprints into the
// tracker, turns session expiry into a reinitialization and reports every
// other failure as a notification. Errors never reach the caller.
type Guard struct {
	session Session
	tracker *fingerprint.Tracker
	sink    notify.Sink
	logger  pslog.Logger

	suppressed atomic.Int32
	missing    atomic.Pointer[func()]

	baseCtx  context.Context
	inflight inflight
}

// NewGuard builds a guard. ctx bounds goroutines started with Go.
func NewGuard(ctx context.Context, session Session, tracker *fingerprint.Tracker, sink notify.Sink, logger pslog.Logger) *Guard {
	if logger == nil {
		logger = logx.Discard()
	}
	return &Guard{
		session: session,
		tracker: tracker,
		sink:    sink,
		logger:  logger,
		baseCtx: ctx,
	}
}

// OnMissingFingerprint installs fn to run after a successful mutation
// whose response carried no fingerprint. The engine uses it to schedule a
// fetch so the current fingerprint follows every edit.
func (g *Guard) OnMissingFingerprint(fn func()) {
	g.missing.Store(&fn)
}

// Enabled reports whether calls would currently be issued.
func (g *Guard) Enabled() bool {
	return g.suppressed.Load() == 0 && g.session.Active()
}

// Suppressed reports whether a Suppress block is running.
func (g *Guard) Suppressed() bool {
	return g.suppressed.Load() > 0
}

// Suppress runs fn with remote sync disabled. Nested calls are allowed and
// the previous state is restored even if fn panics.
func (g *Guard) Suppress(fn func()) {
	g.suppressed.Add(1)
	defer g.suppressed.Add(-1)
	fn()
}

// Run issues a user-triggered mutation. When no session is active it first
// tries to start one. It reports whether the call ran and succeeded.
func (g *Guard) Run(ctx context.Context, op string, fn RemoteFunc) bool {
	return g.run(ctx, op, modeMutation, fn)
}

// Await is Run for calls whose effect a session replay cannot reproduce
// (adds, copies, uploads, calculations). After a reinitialization the call
// is repeated once.
func (g *Guard) Await(ctx context.Context, op string, fn RemoteFunc) bool {
	return g.run(ctx, op, modeAwaited, fn)
}

// Query is Await for user-triggered reads such as estimates and safety
// checks.
func (g *Guard) Query(ctx context.Context, op string, fn RemoteFunc) bool {
	return g.run(ctx, op, modeQuery, fn)
}

// Background issues refresh traffic. It never starts a session and reports
// failures as warnings.
func (g *Guard) Background(ctx context.Context, op string, fn RemoteFunc) bool {
	return g.run(ctx, op, modeBackground, fn)
}

// Go runs a fire-and-forget mutation on a tracked goroutine.
func (g *Guard) Go(op string, fn RemoteFunc) {
	g.Spawn(func(ctx context.Context) {
		g.Run(ctx, op, fn)
	})
}

// Spawn runs fn on a tracked goroutine bound to the guard's context.
func (g *Guard) Spawn(fn func(ctx context.Context)) {
	g.inflight.add()
	go func() {
		defer g.inflight.done()
		fn(g.baseCtx)
	}()
}

// Wait blocks until no tracked goroutine is running or ctx ends.
func (g *Guard) Wait(ctx context.Context) error {
	return g.inflight.wait(ctx)
}

func (g *Guard) run(ctx context.Context, op string, mode runMode, fn RemoteFunc) bool {
	log := logx.WithOp(g.logger, op)
	if g.Suppressed() {
		log.Trace("sync suppressed")
		return false
	}
	if !g.session.Active() {
		if !mode.ensure {
			log.Debug("no active session; skipped")
			return false
		}
		if err := g.session.Ensure(ctx); err != nil {
			log.Debug("no session available; skipped", "err", err)
			return false
		}
	}

	fp, err := fn(ctx)
	if errors.Is(err, engine.ErrSessionExpired) {
		log.Info("session expired; reinitializing")
		if rerr := g.session.Reinitialize(ctx); rerr != nil {
			return false
		}
		if !mode.retry {
			return true
		}
		fp, err = fn(ctx)
	}
	if err != nil {
		g.report(log, op, mode.severity, err)
		return false
	}
	if fp == nil {
		if fn := g.missing.Load(); fn != nil && !mode.query {
			(*fn)()
		}
		return true
	}
	g.tracker.ApplyFromResponse(fp)
	return true
}

func (g *Guard) report(log pslog.Logger, op string, severity notify.Severity, err error) {
	if severity == notify.SeverityWarning {
		log.Warn("sync operation failed", "err", err)
	} else {
		log.Error("sync operation failed", "err", err)
	}
	g.sink.Notify(severity, op, err.Error())
}

// inflight counts running goroutines and lets callers wait for zero.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (t *inflight) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
}

func (t *inflight) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
}

func (t *inflight) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.n == 0 {
		t.mu.Unlock()
		return nil
	}
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
