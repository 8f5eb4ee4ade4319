package sealed

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// sessionKey is the context key under which the active session is stored.
type sessionKey struct{}

// Session binds one Algorithm to a context for a bounded lifetime.
//
// A session caches at most one encryptor and one decryptor. Accessor
// closures obtained from EncryptProvider and friends resolve the session
// from the context they are called with, so every field of a serialization
// pass shares the same transforms.
//
// A session context may be shared by several goroutines. Reusable
// transforms are shared between them; a single-use transform is handed to
// one caller until it is cleaned up, and concurrent callers get their own.
//
// Sessions do not nest. Open fails if the context already carries an open
// session; close the first one before opening another on the same chain.
type Session struct {
	alg   Algorithm
	cache *cache

	closeOnce sync.Once
	closeErr  error
}

// Open installs a new session for alg into a context derived from ctx.
// The session takes ownership of alg and closes it in Close.
func Open(ctx context.Context, alg Algorithm) (context.Context, *Session, error) {
	if alg == nil {
		return ctx, nil, newSessionError(ErrNilAlgorithm, "", "open")
	}
	if prev, ok := FromContext(ctx); ok && !prev.Closed() {
		return ctx, nil, newSessionError(ErrSessionActive, "", "open")
	}

	s := &Session{
		alg:   alg,
		cache: newCache(alg),
	}
	emitSessionOpened(ctx, s.cache.name)
	return context.WithValue(ctx, sessionKey{}, s), s, nil
}

// FromContext returns the session carried by ctx, open or closed.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// Close closes the algorithm and then every cached transform.
// Only this session's cache is touched. Calling Close again returns nil.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		stats := s.cache.stats()
		var errs []error
		if err := s.alg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close algorithm: %w", err))
		}
		if err := s.cache.close(); err != nil {
			errs = append(errs, fmt.Errorf("close transforms: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		emitSessionClosed(context.Background(), s.cache.name, stats, s.closeErr)
	})
	return s.closeErr
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.cache.isClosed()
}

// Stats returns transform counts for the session so far.
func (s *Session) Stats() Stats {
	return s.cache.stats()
}

// Do opens a session for alg, runs fn with the session context, and closes
// the session on every exit path. A panic in fn is re-raised after Close.
func Do(ctx context.Context, alg Algorithm, fn func(ctx context.Context) error) (err error) {
	sctx, s, err := Open(ctx, alg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := s.Close()
		if r := recover(); r != nil {
			panic(r)
		}
		err = errors.Join(err, closeErr)
	}()
	return fn(sctx)
}
