package lock

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrLockTimeout is returned when acquiring a lock times out.
	ErrLockTimeout = fmt.Errorf("timeout acquiring lock")
	// ErrNameRequired is returned when a lock name is empty.
	ErrNameRequired = fmt.Errorf("lock name is required")
	// ErrNilLock is returned when a nil handle is passed to Release.
	ErrNilLock = fmt.Errorf("nil lock handle")
)

// shortPollInterval is the interval to sleep when polling for a lock.
const shortPollInterval = 10 * time.Millisecond

// Handle represents an acquired advisory lock.
type Handle struct {
	Name  string
	flock *flock.Flock
}

// Manager hands out exclusive OS-level advisory locks backed by lock files
// in a fixed directory. The engine takes a single batch-scoped lock per
// apply, serializing whole batches rather than individual files.
type Manager struct {
	lockDir string
}

// NewManager creates a Manager whose lock files live under lockDir.
func NewManager(lockDir string) *Manager {
	return &Manager{lockDir: lockDir}
}

// Acquire attempts to take the named exclusive lock, polling until timeout.
func (m *Manager) Acquire(name string, timeout time.Duration) (*Handle, error) {
	if name == "" {
		return nil, ErrNameRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fl := flock.New(filepath.Join(m.lockDir, name+".lock"))
	locked, err := fl.TryLockContext(ctx, shortPollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("error acquiring lock %s: %w", name, err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	return &Handle{Name: name, flock: fl}, nil
}

// Release releases the given lock.
func (m *Manager) Release(h *Handle) error {
	if h == nil {
		return ErrNilLock
	}
	if h.flock != nil {
		_ = h.flock.Unlock()
	}
	return nil
}
