package sealed

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"fmt"
	"sync"
)

// cbcAlgorithm implements AES-CBC with PKCS#7 padding.
type cbcAlgorithm struct {
	mu     sync.Mutex
	key    []byte
	iv     []byte
	block  cipher.Block
	closed bool
}

// AES returns an AES-CBC algorithm with PKCS#7 padding.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
// IV must be 16 bytes.
//
// CBC with a fixed IV is deterministic, so its transforms are reusable and
// a session creates one encryptor and one decryptor for the whole pass.
func AES(key, iv []byte) (Algorithm, error) {
	if err := checkAESKey(key); err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidIV, aes.BlockSize, len(iv))
	}

	k := bytes.Clone(key)
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}

	return &cbcAlgorithm{key: k, iv: bytes.Clone(iv), block: block}, nil
}

func (a *cbcAlgorithm) Name() string { return string(ModeCBC) }

func (a *cbcAlgorithm) NewEncryptor() (Transform, error) {
	return a.newTransform(true)
}

func (a *cbcAlgorithm) NewDecryptor() (Transform, error) {
	return a.newTransform(false)
}

func (a *cbcAlgorithm) newTransform(encrypt bool) (Transform, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrAlgorithmClosed
	}
	return &cbcTransform{block: a.block, iv: bytes.Clone(a.iv), encrypt: encrypt}, nil
}

func (a *cbcAlgorithm) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	wipe(a.key)
	wipe(a.iv)
	a.block = nil
	return nil
}

// cbcTransform restarts the chain from the IV on every Apply.
type cbcTransform struct {
	mu      sync.Mutex
	block   cipher.Block
	iv      []byte
	encrypt bool
	closed  bool
}

func (t *cbcTransform) Reusable() bool { return true }

func (t *cbcTransform) Apply(src []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransformClosed
	}

	bs := t.block.BlockSize()
	if t.encrypt {
		out := pkcs7Pad(src, bs)
		cipher.NewCBCEncrypter(t.block, t.iv).CryptBlocks(out, out)
		return out, nil
	}

	if len(src) == 0 || len(src)%bs != 0 {
		return nil, fmt.Errorf("%w: length %d is not a positive multiple of %d", ErrCiphertextShort, len(src), bs)
	}
	out := make([]byte, len(src))
	cipher.NewCBCDecrypter(t.block, t.iv).CryptBlocks(out, src)
	return pkcs7Unpad(out, bs)
}

func (t *cbcTransform) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		wipe(t.iv)
		t.block = nil
	}
	return nil
}

// AESGCM returns an AES-GCM algorithm.
// Key must be 16, 24, or 32 bytes.
//
// Each encryptor is bound to one random nonce and is single-use; the nonce is
// prepended to the ciphertext. Decryptors read the nonce back and are reusable.
func AESGCM(key []byte) (Algorithm, error) {
	if err := checkAESKey(key); err != nil {
		return nil, err
	}

	k := bytes.Clone(key)
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return newAEADAlgorithm(ModeGCM, k, gcm), nil
}

func checkAESKey(key []byte) error {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKey, len(key))
	}
	return nil
}

func pkcs7Pad(src []byte, bs int) []byte {
	n := bs - len(src)%bs
	out := make([]byte, len(src)+n)
	copy(out, src)
	for i := len(src); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(src []byte, bs int) ([]byte, error) {
	n := int(src[len(src)-1])
	if n == 0 || n > bs || n > len(src) {
		return nil, ErrInvalidPadding
	}
	pad := src[len(src)-n:]
	if subtle.ConstantTimeCompare(pad, bytes.Repeat([]byte{byte(n)}, n)) != 1 {
		return nil, ErrInvalidPadding
	}
	return src[:len(src)-n], nil
}

// wipe overwrites b with zeros. Only the raw key copy held by an algorithm
// is reached; key schedules inside crypto/aes and chacha20poly1305 are not.
func wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}
