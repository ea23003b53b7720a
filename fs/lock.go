package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fwojciec/cratedoc"
	"github.com/gofrs/flock"
)

// heldKey is the context key under which held lock paths are recorded.
type heldKey struct{}

// heldLocks is an immutable chain of lock paths held by one operation.
type heldLocks struct {
	path   string
	parent *heldLocks
}

func holds(ctx context.Context, path string) bool {
	for h, _ := ctx.Value(heldKey{}).(*heldLocks); h != nil; h = h.parent {
		if h.path == path {
			return true
		}
	}
	return false
}

func withHeld(ctx context.Context, path string) context.Context {
	parent, _ := ctx.Value(heldKey{}).(*heldLocks)
	return context.WithValue(ctx, heldKey{}, &heldLocks{path: path, parent: parent})
}

// keyLock serializes goroutines of this process on one lock file.
type keyLock struct {
	ch   chan struct{}
	refs int
}

func (s *Store) ref(path string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	kl, ok := s.locks[path]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[path] = kl
	}
	kl.refs++
	return kl
}

func (s *Store) unref(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kl := s.locks[path]
	kl.refs--
	if kl.refs == 0 {
		delete(s.locks, path)
	}
}

// Reserve implements cratedoc.Store.
//
// Goroutines of this process queue on an in-memory slot; the file lock
// excludes other processes sharing the cache directory.
func (s *Store) Reserve(ctx context.Context, key cratedoc.CacheKey) (context.Context, cratedoc.Lock, error) {
	if err := validateLockKey(key); err != nil {
		return ctx, nil, err
	}
	path := s.lockPath(key)
	if holds(ctx, path) {
		return ctx, noopLock{}, nil
	}

	wctx, cancel := context.WithTimeout(ctx, s.LockTimeout)
	defer cancel()

	kl := s.ref(path)
	select {
	case kl.ch <- struct{}{}:
	case <-wctx.Done():
		s.unref(path)
		return ctx, nil, s.waitError(ctx, key)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		<-kl.ch
		s.unref(path)
		return ctx, nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to create lock directory for %s", key)
	}

	fl := flock.New(path)
	ok, err := fl.TryLockContext(wctx, s.PollInterval)
	if err != nil || !ok {
		<-kl.ch
		s.unref(path)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return ctx, nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to lock %s", key)
		}
		return ctx, nil, s.waitError(ctx, key)
	}

	lock := &fileLock{
		fl: fl,
		release: func() {
			<-kl.ch
			s.unref(path)
		},
	}
	return withHeld(ctx, path), lock, nil
}

// waitError reports why a lock wait ended before the lock was obtained.
func (s *Store) waitError(ctx context.Context, key cratedoc.CacheKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return cratedoc.Errorf(cratedoc.ELOCKTIMEOUT, "timed out after %s waiting for %s", s.LockTimeout, key)
}

func validateLockKey(key cratedoc.CacheKey) error {
	if key.Version == "" {
		if err := validateSegment(key.Name); err != nil {
			return err
		}
		return key.Origin.Validate()
	}
	return key.Validate()
}

func validateSegment(name string) error {
	k := cratedoc.CacheKey{Name: name, Version: "0", Origin: cratedoc.RegistryOrigin()}
	return k.Validate()
}

// fileLock releases both the file lock and the in-process slot once.
type fileLock struct {
	once    sync.Once
	fl      *flock.Flock
	release func()
	err     error
}

func (l *fileLock) Release() error {
	l.once.Do(func() {
		if err := l.fl.Unlock(); err != nil {
			l.err = cratedoc.WrapError(cratedoc.EIO, err, "failed to unlock %s", l.fl.Path())
		}
		l.release()
	})
	return l.err
}

// noopLock is returned for reservations already held by the context.
type noopLock struct{}

func (noopLock) Release() error { return nil }
