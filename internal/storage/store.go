package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"site89-bot/internal/config"

	"go.uber.org/zap"
)

const schemaVersion = 1

const (
	keyWarnings      = "warnings"
	keyClearance     = "clearance"
	keyAnnouncements = "announcements"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store holds the bot's three persistent documents on top of a Backend.
// Every mutation runs load, change and save under a per-key lock.
type Store struct {
	backend Backend
	logger  *zap.Logger
	locks   *keyLocks
	clock   Clock
}

func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		locks:   newKeyLocks(),
		clock:   realClock{},
	}
}

// Open builds the backend named by cfg.Driver and runs its migrations.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	switch cfg.Driver {
	case "", "json":
		backend, err := NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return New(backend, logger), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		backend, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := backend.Migrate(); err != nil {
			_ = backend.Close()
			return nil, err
		}
		return New(backend, logger), nil
	case "postgres":
		backend, err := NewPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := backend.Migrate(ctx); err != nil {
			_ = backend.Close()
			return nil, err
		}
		return New(backend, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func (s *Store) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Store) Close() error {
	return s.backend.Close()
}

type document interface {
	normalize()
}

// load returns the empty default when the key is missing, empty or unparsable.
// Only backend failures are reported as errors.
func load[T any, P interface {
	*T
	document
}](ctx context.Context, s *Store, key string) (P, error) {
	doc := P(new(T))
	data, err := s.backend.Load(ctx, key)
	switch {
	case errors.Is(err, ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", key, err)
	case len(bytes.TrimSpace(data)) == 0:
	default:
		if err := json.Unmarshal(data, doc); err != nil {
			s.logger.Warn("corrupt document, using empty default", zap.String("key", key), zap.Error(err))
			doc = P(new(T))
		}
	}
	doc.normalize()
	return doc, nil
}

func (s *Store) save(ctx context.Context, key string, doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// mutate applies fn to the current document and persists the result. If fn
// returns an error nothing is written.
func mutate[T any, P interface {
	*T
	document
}](ctx context.Context, s *Store, key string, fn func(P) error) error {
	unlock := s.locks.lock(key)
	defer unlock()

	doc, err := load[T, P](ctx, s, key)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(ctx, key, doc)
}

func read[T any, P interface {
	*T
	document
}](ctx context.Context, s *Store, key string) (P, error) {
	unlock := s.locks.lock(key)
	defer unlock()
	return load[T, P](ctx, s, key)
}
