package persist

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"pkt.systems/pslog"
)

// CredentialTTL matches the engine's idle session timeout.
const CredentialTTL = 30 * time.Minute

// Config selects where the database lives.
type Config struct {
	// Dir holds the badger files. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// CredentialTTL overrides the credential lifetime.
	CredentialTTL time.Duration
	// Logger receives badger's internal messages. nil silences them.
	Logger pslog.Logger
}

// DB is the local badger store shared by all workspaces.
type DB struct {
	db            *badger.DB
	credentialTTL time.Duration
	logger        pslog.Logger
}

type badgerLogger struct {
	logger pslog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Trace(fmt.Sprintf(format, args...))
}

// Open opens or creates the database.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("persist: directory is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create state directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	ttl := cfg.CredentialTTL
	if ttl <= 0 {
		ttl = CredentialTTL
	}
	return &DB{db: db, credentialTTL: ttl, logger: cfg.Logger}, nil
}

// Close runs a value-log GC pass and closes the database.
func (d *DB) Close() error {
	if err := d.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		if d.logger != nil {
			d.logger.Debug("state database gc skipped", "err", err)
		}
	}
	return d.db.Close()
}

// Workspace returns the key space of one workspace.
func (d *DB) Workspace(name string) *Workspace {
	if name == "" {
		name = DefaultWorkspace
	}
	return &Workspace{db: d.db, name: name, credentialTTL: d.credentialTTL}
}
