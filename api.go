// Package sealed caches cipher transforms for the length of a serialization
// pass, so encrypting many fields does not create a transform per field.
//
// # Sessions
//
// A Session binds one Algorithm to a context. It holds at most one
// encryptor and one decryptor. Open installs the session into a derived
// context; Close closes the algorithm and every cached transform.
//
//	alg, _ := sealed.AES(key, iv)
//	ctx, sess, err := sealed.Open(ctx, alg)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
// Do wraps the same thing and guarantees Close on every exit path:
//
//	err := sealed.Do(ctx, alg, func(ctx context.Context) error {
//	    data, err = proc.Store(ctx, &card)
//	    return err
//	})
//
// Sessions do not nest. Opening a session on a context that already
// carries an open one fails with ErrSessionActive.
//
// # Accessors
//
// EncryptProvider, EncryptCleanup, DecryptProvider and DecryptCleanup
// return closures for a converter to call once per field. The session is
// resolved from the ctx passed to the closure, not when the closure is
// built:
//
//	provide, release := sealed.EncryptProvider(), sealed.EncryptCleanup()
//	t, err := provide(ctx)
//	if err != nil {
//	    return err
//	}
//	out, err := t.Apply(plaintext)
//	release(ctx, t)
//
// A reusable transform stays cached until the session closes. A
// non-reusable one is closed and evicted by the cleanup call, and the next
// provide creates a fresh one. Calling a closure with a context that has no
// session fails with ErrNoActiveSession; after Close it fails with
// ErrSessionDisposed.
//
// # Algorithms
//
// Built-in algorithms:
//
//   - AES(key, iv) - AES-CBC with PKCS#7 padding, reusable transforms
//   - AESGCM(key) - AES-GCM, single-use encryptors bound to a random nonce
//   - ChaCha20Poly1305(key) - ChaCha20-Poly1305, same shape as AESGCM
//
// Any type implementing Algorithm can be used instead.
//
// # Field Processing
//
// Processor walks a struct and runs every `encrypt:"true"` field through
// the accessors. Supported field types are string, []byte, []string,
// [][]byte, map[K]string, Text and []Text, including inside nested structs
// and struct pointers. Strings are base64 encoded after encryption.
//
// Text carries values such as UUIDs that are encrypted through their text
// form:
//
//	IDs []sealed.Text[uuid.UUID, *uuid.UUID] `json:"ids" encrypt:"true"`
//
//	type Card struct {
//	    Holder string `json:"holder"`
//	    Number string `json:"number" encrypt:"true"`
//	}
//
//	func (c Card) Clone() Card { return c }
//
//	proc, _ := sealed.NewProcessor[Card](codec.JSON())
//
// Codecs for JSON, XML, YAML, MessagePack and BSON live in the codec
// subpackage.
//
// # Signals
//
// Session, transform and processor lifecycle events are emitted through
// capitan. See the Signal and Key variables.
package sealed
