// Package testing provides test utilities for sealed.
package testing

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/zoobzio/sealed"
)

// ErrWrongOwner is returned when a CountingAlgorithm transform is asked to
// decrypt data produced by a different algorithm.
var ErrWrongOwner = errors.New("ciphertext from another algorithm")

// TestKey returns a valid 32-byte key for testing.
func TestKey(tb testing.TB) []byte {
	tb.Helper()
	return []byte("32-byte-key-for-aes-256-encrypt!")
}

// TestIV returns a valid 16-byte CBC IV for testing.
func TestIV(tb testing.TB) []byte {
	tb.Helper()
	return []byte("16-byte-iv-cbc!!")
}

// TestAlgorithm returns an AES-CBC algorithm configured for testing.
func TestAlgorithm(tb testing.TB) sealed.Algorithm {
	tb.Helper()
	alg, err := sealed.AES(TestKey(tb), TestIV(tb))
	if err != nil {
		tb.Fatalf("AES() error: %v", err)
	}
	return alg
}

// CountingAlgorithm is a fake Algorithm that records every transform it
// creates. Its transforms tag output with Owner so tests can tell which
// algorithm produced a value.
type CountingAlgorithm struct {
	Owner           string
	EncryptReusable bool
	DecryptReusable bool

	mu         sync.Mutex
	encryptors []*CountingTransform
	decryptors []*CountingTransform
	closes     int
}

// NewCountingAlgorithm returns a CountingAlgorithm with the given flags.
func NewCountingAlgorithm(owner string, encryptReusable, decryptReusable bool) *CountingAlgorithm {
	return &CountingAlgorithm{
		Owner:           owner,
		EncryptReusable: encryptReusable,
		DecryptReusable: decryptReusable,
	}
}

// Name implements sealed.Named.
func (a *CountingAlgorithm) Name() string { return "counting" }

// NewEncryptor implements sealed.Algorithm.
func (a *CountingAlgorithm) NewEncryptor() (sealed.Transform, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := &CountingTransform{owner: a.Owner, encrypt: true, reusable: a.EncryptReusable}
	a.encryptors = append(a.encryptors, t)
	return t, nil
}

// NewDecryptor implements sealed.Algorithm.
func (a *CountingAlgorithm) NewDecryptor() (sealed.Transform, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := &CountingTransform{owner: a.Owner, reusable: a.DecryptReusable}
	a.decryptors = append(a.decryptors, t)
	return t, nil
}

// Close implements sealed.Algorithm and counts calls.
func (a *CountingAlgorithm) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closes++
	return nil
}

// EncryptCreated returns how many encryptors were created.
func (a *CountingAlgorithm) EncryptCreated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.encryptors)
}

// DecryptCreated returns how many decryptors were created.
func (a *CountingAlgorithm) DecryptCreated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.decryptors)
}

// Closes returns how many times Close was called.
func (a *CountingAlgorithm) Closes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closes
}

// Transforms returns every transform created so far, encryptors first.
func (a *CountingAlgorithm) Transforms() []*CountingTransform {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*CountingTransform, 0, len(a.encryptors)+len(a.decryptors))
	out = append(out, a.encryptors...)
	return append(out, a.decryptors...)
}

// CountingTransform prefixes output with its owner on encrypt and strips
// the prefix on decrypt.
type CountingTransform struct {
	owner    string
	encrypt  bool
	reusable bool

	mu      sync.Mutex
	applies int
	closes  int
}

// Owner returns the owner of the algorithm that created the transform.
func (t *CountingTransform) Owner() string { return t.owner }

// Reusable implements sealed.Transform.
func (t *CountingTransform) Reusable() bool { return t.reusable }

// Apply implements sealed.Transform.
func (t *CountingTransform) Apply(src []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closes > 0 {
		return nil, sealed.ErrTransformClosed
	}
	t.applies++

	prefix := []byte(t.owner + ":")
	if t.encrypt {
		return append(prefix, src...), nil
	}
	if !bytes.HasPrefix(src, prefix) {
		return nil, ErrWrongOwner
	}
	return bytes.Clone(src[len(prefix):]), nil
}

// Close implements sealed.Transform and counts calls.
func (t *CountingTransform) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return nil
}

// Applies returns how many times Apply succeeded.
func (t *CountingTransform) Applies() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applies
}

// Closes returns how many times Close was called.
func (t *CountingTransform) Closes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// SimpleCard is a test type with no encrypted fields.
type SimpleCard struct {
	ID     string `json:"id" yaml:"id" msgpack:"id" bson:"id"`
	Holder string `json:"holder" yaml:"holder" msgpack:"holder" bson:"holder"`
}

// Clone implements sealed.Cloner.
func (c SimpleCard) Clone() SimpleCard { return c }

// SecretCard is a test type with several encrypted fields.
type SecretCard struct {
	ID     string            `json:"id" yaml:"id" msgpack:"id" bson:"id"`
	Holder string            `json:"holder" yaml:"holder" msgpack:"holder" bson:"holder"`
	Number string            `json:"number" yaml:"number" msgpack:"number" bson:"number" encrypt:"true"`
	CVV    []byte            `json:"cvv" yaml:"cvv" msgpack:"cvv" bson:"cvv" encrypt:"true"`
	Notes  []string          `json:"notes" yaml:"notes" msgpack:"notes" bson:"notes" encrypt:"true"`
	Meta   map[string]string `json:"meta" yaml:"meta" msgpack:"meta" bson:"meta" encrypt:"true"`
}

// Clone implements sealed.Cloner.
func (c SecretCard) Clone() SecretCard {
	clone := c
	if c.CVV != nil {
		clone.CVV = bytes.Clone(c.CVV)
	}
	if c.Notes != nil {
		clone.Notes = make([]string, len(c.Notes))
		copy(clone.Notes, c.Notes)
	}
	if c.Meta != nil {
		clone.Meta = make(map[string]string, len(c.Meta))
		for k, v := range c.Meta {
			clone.Meta[k] = v
		}
	}
	return clone
}

// NewSecretCard returns a populated SecretCard.
func NewSecretCard() *SecretCard {
	return &SecretCard{
		ID:     "card-1",
		Holder: "Alice",
		Number: "4111111111111111",
		CVV:    []byte("123"),
		Notes:  []string{"primary", "travel"},
		Meta:   map[string]string{"issuer": "acme"},
	}
}
