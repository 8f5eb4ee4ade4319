package sealed

import (
	"reflect"
	"sync"
)

// memo maps keys to values built once, on first request.
type memo[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// get returns the value for k, calling build under the write lock on a
// miss so concurrent first callers converge on one value. Failed builds are
// not remembered.
func (c *memo[K, V]) get(k K, build func() (V, error)) (V, error) {
	c.mu.RLock()
	v, ok := c.m[k]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.m[k]; ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return v, err
	}
	if c.m == nil {
		c.m = make(map[K]V)
	}
	c.m[k] = v
	return v, nil
}

func (c *memo[K, V]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = nil
}

// processorKey identifies a processor by the type it walks and the content
// type it writes.
type processorKey struct {
	typ         reflect.Type
	contentType string
}

var processors memo[processorKey, any]

// Use returns the shared processor for T and the codec's content type,
// building it on first use. Field plans for T are scanned once and shared
// by every processor of T.
func Use[T Cloner[T]](codec Codec) (*Processor[T], error) {
	key := processorKey{typ: reflect.TypeFor[T](), contentType: codec.ContentType()}
	p, err := processors.get(key, func() (any, error) {
		return NewProcessor[T](codec)
	})
	if err != nil {
		return nil, err
	}
	return p.(*Processor[T]), nil
}

// Reset drops every processor returned by Use. Field plans are kept; they
// depend only on the type.
func Reset() {
	processors.reset()
}
