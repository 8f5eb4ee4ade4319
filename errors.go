package sealed

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrNoActiveSession indicates an accessor was invoked with a context
	// that carries no session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionDisposed indicates a session was used after Close.
	ErrSessionDisposed = errors.New("session disposed")

	// ErrSessionActive indicates Open was called on a context that already
	// carries an open session.
	ErrSessionActive = errors.New("session already active")

	// ErrNilAlgorithm indicates Open was called without an algorithm.
	ErrNilAlgorithm = errors.New("nil algorithm")

	// ErrCreateTransform indicates the algorithm failed to create a transform.
	ErrCreateTransform = errors.New("create transform failed")

	// ErrTransformClosed indicates a transform was applied after Close.
	ErrTransformClosed = errors.New("transform closed")

	// ErrTransformSpent indicates a single-use transform was applied twice.
	ErrTransformSpent = errors.New("transform spent")

	// ErrAlgorithmClosed indicates an algorithm was asked for a transform after Close.
	ErrAlgorithmClosed = errors.New("algorithm closed")

	// ErrInvalidKey indicates an encryption key has invalid size or format.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidIV indicates an initialization vector has invalid size.
	ErrInvalidIV = errors.New("invalid iv")

	// ErrInvalidMode indicates an unknown cipher mode.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrInvalidPadding indicates decrypted data carries malformed padding.
	ErrInvalidPadding = errors.New("invalid padding")

	// ErrCiphertextShort indicates ciphertext is shorter than the mode requires.
	ErrCiphertextShort = errors.New("ciphertext too short")

	// ErrDecryptionFailed indicates authentication or decryption failed.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrUnmarshal indicates the codec failed to unmarshal input data.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates the codec failed to marshal output data.
	ErrMarshal = errors.New("marshal failed")

	// ErrEncrypt indicates encryption of a field failed.
	ErrEncrypt = errors.New("encrypt failed")

	// ErrDecrypt indicates decryption of a field failed.
	ErrDecrypt = errors.New("decrypt failed")
)

// SessionError represents a misuse of the session contract.
// It wraps a sentinel error with the side and operation that observed it.
type SessionError struct {
	Err  error  // Underlying sentinel error (ErrNoActiveSession, ErrSessionDisposed, etc.)
	Side Side   // Transform side, empty for session-level operations
	Op   string // Operation that failed (provide, cleanup, open, close)
}

func (e *SessionError) Error() string {
	if e.Side != "" {
		return fmt.Sprintf("%s %s: %s", e.Side, e.Op, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// TransformError represents an error during field transformation.
// It wraps a sentinel error with context about which field and operation failed.
type TransformError struct {
	Err       error  // Underlying sentinel error (ErrEncrypt, ErrDecrypt)
	Field     string // Field name that failed
	Operation string // Operation that failed (encrypt, decrypt)
	Cause     error  // Original error from the underlying operation
}

func (e *TransformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s field %s: %v", e.Operation, e.Field, e.Cause)
	}
	return fmt.Sprintf("%s field %s", e.Operation, e.Field)
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// ErrEncrypt as well as ErrNoActiveSession raised deeper down.
func (e *TransformError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// CodecError represents a marshal/unmarshal error.
type CodecError struct {
	Err   error // Underlying sentinel error (ErrMarshal, ErrUnmarshal)
	Cause error // Original error from the codec
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Err.Error(), e.Cause)
	}
	return e.Err.Error()
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func newSessionError(sentinel error, side Side, op string) error {
	return &SessionError{Err: sentinel, Side: side, Op: op}
}

// newTransformError creates a TransformError for field transformation failures.
func newTransformError(sentinel error, operation, field string, cause error) error {
	return &TransformError{
		Err:       sentinel,
		Field:     field,
		Operation: operation,
		Cause:     cause,
	}
}

// newCodecError creates a CodecError for marshal/unmarshal failures.
func newCodecError(sentinel error, cause error) error {
	return &CodecError{
		Err:   sentinel,
		Cause: cause,
	}
}
