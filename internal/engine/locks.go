package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"resonance/internal/services"
)

const lockRetryDelay = 50 * time.Millisecond

type userLocks struct {
	dir     string
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newUserLocks(dir string, timeout time.Duration) *userLocks {
	return &userLocks{dir: dir, timeout: timeout, slots: map[string]chan struct{}{}}
}

// slot returns the single-holder semaphore guarding name in this process.
func (l *userLocks) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.slots[name]
	if !ok {
		sem = make(chan struct{}, 1)
		l.slots[name] = sem
	}
	return sem
}

// forUser serializes writers for one user across goroutines and processes.
func (l *userLocks) forUser(ctx context.Context, userID int64) (func(), error) {
	return l.acquire(ctx, fmt.Sprintf("user-%d", userID))
}

// acquire waits up to the lock timeout, or until ctx ends, for both the
// in-process slot and the lock file.
func (l *userLocks) acquire(ctx context.Context, name string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	sem := l.slot(name)
	select {
	case sem <- struct{}{}:
	case <-lockCtx.Done():
		return nil, services.Wrap(services.ErrConflict, "engine", "lock", fmt.Sprintf("%s is busy", name), lockCtx.Err())
	}

	path := filepath.Join(l.dir, name+".lock")
	fl := flock.New(path)
	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !ok {
		<-sem
		if err == nil {
			err = fmt.Errorf("lock %s not acquired", path)
		}
		return nil, services.Wrap(services.ErrConflict, "engine", "lock", fmt.Sprintf("%s is busy", name), err)
	}
	return func() {
		_ = fl.Unlock()
		<-sem
	}, nil
}
