package sealed

// Algorithm creates encrypt and decrypt transforms over a single key.
// A Session owns its Algorithm and closes it when the session ends.
type Algorithm interface {
	// NewEncryptor returns a fresh encrypting transform.
	NewEncryptor() (Transform, error)

	// NewDecryptor returns a fresh decrypting transform.
	NewDecryptor() (Transform, error)

	// Close stops the algorithm from creating transforms. Must be safe
	// to call more than once.
	Close() error
}

// Transform is a live encryptor or decryptor.
type Transform interface {
	// Apply runs src through the transform and returns the result.
	Apply(src []byte) ([]byte, error)

	// Reusable reports whether Apply may be called again without creating
	// a new transform. The value is fixed at creation.
	Reusable() bool

	// Close releases the transform. Must be safe to call more than once.
	Close() error
}

// Side selects the encrypt or decrypt half of a session cache.
type Side string

const (
	// SideEncrypt is the encrypting half.
	SideEncrypt Side = "encrypt"

	// SideDecrypt is the decrypting half.
	SideDecrypt Side = "decrypt"
)

// Named is implemented by algorithms that report a name for signals.
type Named interface {
	Name() string
}

// algorithmName returns the algorithm's Name, or "custom".
func algorithmName(alg Algorithm) string {
	if n, ok := alg.(Named); ok {
		return n.Name()
	}
	return "custom"
}
