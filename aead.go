package sealed

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// ChaCha20Poly1305 returns a ChaCha20-Poly1305 algorithm.
// Key must be 32 bytes. Transforms behave like AESGCM's.
func ChaCha20Poly1305(key []byte) (Algorithm, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKey, chacha20poly1305.KeySize, len(key))
	}

	k := bytes.Clone(key)
	aead, err := chacha20poly1305.New(k)
	if err != nil {
		return nil, err
	}

	return newAEADAlgorithm(ModeChaCha20Poly1305, k, aead), nil
}

// aeadAlgorithm hands out nonce-bound sealers and reusable openers.
type aeadAlgorithm struct {
	mode Mode

	mu     sync.Mutex
	key    []byte
	aead   cipher.AEAD
	closed bool
}

func newAEADAlgorithm(mode Mode, key []byte, aead cipher.AEAD) *aeadAlgorithm {
	return &aeadAlgorithm{mode: mode, key: key, aead: aead}
}

func (a *aeadAlgorithm) Name() string { return string(a.mode) }

func (a *aeadAlgorithm) NewEncryptor() (Transform, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrAlgorithmClosed
	}

	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return &aeadSealer{aead: a.aead, nonce: nonce}, nil
}

func (a *aeadAlgorithm) NewDecryptor() (Transform, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrAlgorithmClosed
	}
	return &aeadOpener{aead: a.aead}, nil
}

func (a *aeadAlgorithm) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	wipe(a.key)
	a.aead = nil
	return nil
}

// aeadSealer seals exactly once with its nonce.
type aeadSealer struct {
	mu     sync.Mutex
	aead   cipher.AEAD
	nonce  []byte
	spent  bool
	closed bool
}

func (t *aeadSealer) Reusable() bool { return false }

func (t *aeadSealer) Apply(src []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransformClosed
	}
	if t.spent {
		return nil, ErrTransformSpent
	}
	t.spent = true

	// Prepend nonce to ciphertext
	out := make([]byte, len(t.nonce), len(t.nonce)+len(src)+t.aead.Overhead())
	copy(out, t.nonce)
	return t.aead.Seal(out, t.nonce, src, nil), nil
}

func (t *aeadSealer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		wipe(t.nonce)
		t.aead = nil
	}
	return nil
}

// aeadOpener reads the nonce from each ciphertext.
type aeadOpener struct {
	mu     sync.Mutex
	aead   cipher.AEAD
	closed bool
}

func (t *aeadOpener) Reusable() bool { return true }

func (t *aeadOpener) Apply(src []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransformClosed
	}

	nonceSize := t.aead.NonceSize()
	if len(src) < nonceSize+t.aead.Overhead() {
		return nil, ErrCiphertextShort
	}

	nonce, ciphertext := src[:nonceSize], src[nonceSize:]
	plaintext, err := t.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func (t *aeadOpener) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.aead = nil
	return nil
}
