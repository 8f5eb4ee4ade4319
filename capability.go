package sealed

import "fmt"

// Mode represents a supported cipher mode.
type Mode string

const (
	// ModeCBC uses AES-CBC with PKCS#7 padding and a fixed IV (reusable transforms).
	ModeCBC Mode = "aes-cbc"

	// ModeGCM uses AES-GCM with a fresh nonce per encryptor (single-use encryptors).
	ModeGCM Mode = "aes-gcm"

	// ModeChaCha20Poly1305 uses ChaCha20-Poly1305 with a fresh nonce per encryptor.
	ModeChaCha20Poly1305 Mode = "chacha20poly1305"
)

// validModes contains all valid cipher modes.
var validModes = map[Mode]bool{
	ModeCBC:              true,
	ModeGCM:              true,
	ModeChaCha20Poly1305: true,
}

// IsValidMode returns true if the mode is a known cipher mode.
func IsValidMode(m Mode) bool {
	return validModes[m]
}

// Config selects and keys a built-in algorithm.
// Key and IV are raw bytes; loading them is the caller's job.
type Config struct {
	Mode Mode   `yaml:"mode"`
	Key  []byte `yaml:"key"`
	IV   []byte `yaml:"iv,omitempty"` // CBC only
}

// NewAlgorithm builds the algorithm described by cfg.
func NewAlgorithm(cfg Config) (Algorithm, error) {
	switch cfg.Mode {
	case ModeCBC:
		return AES(cfg.Key, cfg.IV)
	case ModeGCM:
		return AESGCM(cfg.Key)
	case ModeChaCha20Poly1305:
		return ChaCha20Poly1305(cfg.Key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode)
	}
}
