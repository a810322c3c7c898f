package persist

import (
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/five82/lumen/internal/coalesce"
	"github.com/five82/lumen/internal/logx"
	"github.com/five82/lumen/internal/model"
	"github.com/five82/lumen/internal/state"
)

// DefaultAutosaveDelay coalesces bursts of edits into one write.
const DefaultAutosaveDelay = 500 * time.Millisecond

const autosaveKey = "persist"

// Autosaver writes the model to a workspace shortly after it changes.
type Autosaver struct {
	ws        *Workspace
	delay     time.Duration
	logger    pslog.Logger
	coalescer *coalesce.Coalescer

	mu     sync.Mutex
	latest model.Model
	dirty  bool

	unsubscribe func()
}

// StartAutosave subscribes to store and saves into ws after each burst of
// mutations.
func StartAutosave(store *state.Store, ws *Workspace, delay time.Duration, logger pslog.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	if logger == nil {
		logger = logx.Discard()
	}
	a := &Autosaver{
		ws:        ws,
		delay:     delay,
		logger:    logx.WithWorkspace(logger, ws.Name()),
		coalescer: coalesce.New(),
	}
	a.unsubscribe = store.Subscribe(a.changed)
	return a
}

func (a *Autosaver) changed(m model.Model) {
	a.mu.Lock()
	a.latest = m
	a.dirty = true
	a.mu.Unlock()
	a.coalescer.Coalesce(autosaveKey, a.save, a.delay)
}

func (a *Autosaver) save() {
	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return
	}
	m := a.latest
	a.dirty = false
	a.mu.Unlock()

	if err := a.ws.SaveModel(m); err != nil {
		a.logger.Warn("autosave failed", "err", err)
		return
	}
	a.logger.Trace("model saved")
}

// Stop unsubscribes and writes any pending change.
func (a *Autosaver) Stop() {
	a.unsubscribe()
	a.coalescer.Cancel(autosaveKey)
	a.save()
}
