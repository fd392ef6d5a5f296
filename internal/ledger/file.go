package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/model"
)

// FileStore persists the ledger as a JSON document. Writers hold an exclusive
// flock on a sidecar lock file and readers a shared one, so separate processes
// sharing the file serialize the same way goroutines do through mu.
type FileStore struct {
	path     string
	lockPath string
	mu       sync.RWMutex
	logger   *zap.Logger
	now      Clock
}

// NewFileStore creates a file-backed store at path. The directory is created
// if missing; the document itself is created on first access.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	return &FileStore{
		path:     path,
		lockPath: path + ".lock",
		logger:   logger,
		now:      systemClock,
	}, nil
}

// WithClock overrides the clock used for default initialization
func (s *FileStore) WithClock(c Clock) *FileStore {
	s.now = c
	return s
}

// Path returns the ledger document path
func (s *FileStore) Path() string {
	return s.path
}

// Read returns a snapshot of the ledger
func (s *FileStore) Read(ctx context.Context) (model.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return model.Ledger{}, err
	}

	s.mu.RLock()
	l, err := s.readShared()
	s.mu.RUnlock()
	if err == nil {
		return l, nil
	}

	// Missing or corrupt: heal under the write lock
	return s.Mutate(ctx, func(*model.Ledger) error { return nil })
}

// Mutate applies fn atomically
func (s *FileStore) Mutate(ctx context.Context, fn func(*model.Ledger) error) (model.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return model.Ledger{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lf, err := s.openLock()
	if err != nil {
		return model.Ledger{}, err
	}
	defer func() { _ = lf.Close() }()

	if err := flock(lf, true); err != nil {
		return model.Ledger{}, fmt.Errorf("lock ledger: %w", err)
	}
	defer func() { _ = funlock(lf) }()

	current, healed := s.load()

	next := current.Clone()
	if err := fn(&next); err != nil {
		if healed {
			// Persist the default ledger even when the caller aborts
			if werr := s.write(current); werr != nil {
				return model.Ledger{}, werr
			}
		}
		return model.Ledger{}, err
	}

	if err := s.write(next); err != nil {
		return model.Ledger{}, err
	}
	return next.Clone(), nil
}

// Close is a no-op; the document is closed after every operation
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readShared() (model.Ledger, error) {
	lf, err := s.openLock()
	if err != nil {
		return model.Ledger{}, err
	}
	defer func() { _ = lf.Close() }()

	if err := flock(lf, false); err != nil {
		return model.Ledger{}, fmt.Errorf("lock ledger: %w", err)
	}
	defer func() { _ = funlock(lf) }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return model.Ledger{}, err
	}
	return decode(data)
}

// load reads the document, substituting the default ledger when it is
// missing or unreadable. healed reports whether a default was substituted.
func (s *FileStore) load() (l model.Ledger, healed bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("ledger unreadable, reinitializing", zap.String("path", s.path), zap.Error(err))
		}
		return model.NewLedger(s.now()), true
	}

	l, err = decode(data)
	if err != nil {
		s.logger.Warn("ledger corrupt, reinitializing", zap.String("path", s.path), zap.Error(err))
		return model.NewLedger(s.now()), true
	}
	return l, false
}

// write replaces the document atomically via rename
func (s *FileStore) write(l model.Ledger) error {
	data, err := encode(l)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (s *FileStore) openLock() (*os.File, error) {
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger lock: %w", err)
	}
	return f, nil
}
