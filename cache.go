package sealed

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Stats reports transform activity for one session.
type Stats struct {
	EncryptCreated int // Encryptors created by the algorithm
	EncryptEvicted int // Non-reusable encryptors closed on cleanup
	DecryptCreated int // Decryptors created by the algorithm
	DecryptEvicted int // Non-reusable decryptors closed on cleanup
}

// slot holds at most one cached transform for one side, plus any
// non-reusable transforms handed out while the cached one was checked out.
type slot struct {
	t       Transform
	loaned  map[Transform]struct{}
	created int
	evicted int
}

// cache holds the encrypt and decrypt transforms of one session.
// The two sides never influence each other.
type cache struct {
	alg  Algorithm
	name string

	mu      sync.Mutex
	encrypt slot
	decrypt slot
	closed  bool
}

func newCache(alg Algorithm) *cache {
	return &cache{alg: alg, name: algorithmName(alg)}
}

func (c *cache) slotFor(side Side) *slot {
	if side == SideDecrypt {
		return &c.decrypt
	}
	return &c.encrypt
}

// acquire returns the cached transform for side, creating and caching one
// if the slot is empty. A cached non-reusable transform is always checked
// out, so a second caller gets its own uncached one.
func (c *cache) acquire(ctx context.Context, side Side) (Transform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, newSessionError(ErrSessionDisposed, side, "provide")
	}

	s := c.slotFor(side)
	if s.t != nil && s.t.Reusable() {
		return s.t, nil
	}

	var (
		t   Transform
		err error
	)
	if side == SideDecrypt {
		t, err = c.alg.NewDecryptor()
	} else {
		t, err = c.alg.NewEncryptor()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateTransform, side, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s: algorithm returned nil", ErrCreateTransform, side)
	}

	if s.t == nil {
		s.t = t
	} else {
		if s.loaned == nil {
			s.loaned = make(map[Transform]struct{})
		}
		s.loaned[t] = struct{}{}
	}
	s.created++
	emitTransformCreated(ctx, c.name, side, t.Reusable(), s.created)
	return t, nil
}

// release closes t and forgets it when t is not reusable.
// Reusable transforms stay cached for the rest of the session. Only handles
// this cache handed out are counted as evicted; anything else is closed
// without being counted.
func (c *cache) release(ctx context.Context, side Side, t Transform) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return newSessionError(ErrSessionDisposed, side, "cleanup")
	}
	if t == nil || t.Reusable() {
		return nil
	}

	s := c.slotFor(side)
	if s.t == t {
		s.t = nil
	} else if _, ok := s.loaned[t]; ok {
		delete(s.loaned, t)
	} else {
		return t.Close()
	}
	s.evicted++
	emitTransformEvicted(ctx, c.name, side, s.evicted)
	return t.Close()
}

// close closes every cached or loaned transform regardless of its
// reusable flag.
func (c *cache) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for _, s := range []*slot{&c.encrypt, &c.decrypt} {
		if s.t != nil {
			if err := s.t.Close(); err != nil {
				errs = append(errs, err)
			}
			s.t = nil
		}
		for t := range s.loaned {
			if err := t.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.loaned = nil
	}
	return errors.Join(errs...)
}

func (c *cache) stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		EncryptCreated: c.encrypt.created,
		EncryptEvicted: c.encrypt.evicted,
		DecryptCreated: c.decrypt.created,
		DecryptEvicted: c.decrypt.evicted,
	}
}

func (c *cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
