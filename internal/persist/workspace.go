package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/five82/lumen/internal/engine"
	"github.com/five82/lumen/internal/model"
)

// DefaultWorkspace is used when no workspace name is given.
const DefaultWorkspace = "default"

// Workspace stores one model snapshot and one credential record.
type Workspace struct {
	db            *badger.DB
	name          string
	credentialTTL time.Duration
}

// Name returns the workspace name.
func (w *Workspace) Name() string { return w.name }

func (w *Workspace) modelKey() []byte       { return []byte(w.name + "/model") }
func (w *Workspace) credentialsKey() []byte { return []byte(w.name + "/credentials") }

// SaveModel stores m without the per-point result values.
func (w *Workspace) SaveModel(m model.Model) error {
	if m.Results != nil {
		stripped := m.Results.WithoutValues()
		m.Results = &stripped
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return w.db.Update(func(txn *badger.Txn) error {
		return txn.Set(w.modelKey(), raw)
	})
}

// LoadModel returns the stored model when resume is set and a usable one
// exists. Otherwise it returns a fresh default model; restored reports
// which. Without resume the stored model is deleted. A malformed snapshot
// is discarded silently. Credentials are left alone in every case.
func (w *Workspace) LoadModel(resume bool, units model.Units) (m model.Model, restored bool, err error) {
	fresh := model.Default(units)
	if !resume {
		if err := w.deleteKey(w.modelKey()); err != nil {
			return model.Model{}, false, err
		}
		return fresh, false, nil
	}

	raw, found, err := w.get(w.modelKey())
	if err != nil {
		return model.Model{}, false, err
	}
	if !found {
		return fresh, false, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil || !wellFormed(m) {
		if err := w.deleteKey(w.modelKey()); err != nil {
			return model.Model{}, false, err
		}
		return fresh, false, nil
	}
	return m, true, nil
}

// wellFormed checks that the required parts of a snapshot are present.
func wellFormed(m model.Model) bool {
	if m.Version == "" || m.LightSources == nil || m.Zones == nil {
		return false
	}
	if m.Room.Reflectance.Surfaces == nil {
		return false
	}
	return model.Validate(m) == nil
}

// SaveCredentials stores c with the credential TTL.
func (w *Workspace) SaveCredentials(c engine.Credentials) error {
	raw, err := json.Marshal(credentialRecord{SessionID: c.SessionID, Token: c.Token})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return w.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(w.credentialsKey(), raw).WithTTL(w.credentialTTL))
	})
}

// LoadCredentials returns the stored credentials unless they expired.
func (w *Workspace) LoadCredentials() (engine.Credentials, bool, error) {
	raw, found, err := w.get(w.credentialsKey())
	if err != nil || !found {
		return engine.Credentials{}, false, err
	}
	var rec credentialRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.SessionID == "" {
		return engine.Credentials{}, false, nil
	}
	return engine.Credentials{SessionID: rec.SessionID, Token: rec.Token}, true, nil
}

// ClearCredentials forgets the stored credentials.
func (w *Workspace) ClearCredentials() error {
	return w.deleteKey(w.credentialsKey())
}

type credentialRecord struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

func (w *Workspace) get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := w.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return out, true, nil
}

func (w *Workspace) deleteKey(key []byte) error {
	err := w.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
