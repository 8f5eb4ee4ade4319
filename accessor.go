package sealed

import "context"

// Provider returns the transform to use for the next field.
type Provider func(ctx context.Context) (Transform, error)

// Cleanup hands a transform back after use. Non-reusable transforms are
// closed; the caller must not use t afterwards.
type Cleanup func(ctx context.Context, t Transform) error

// EncryptProvider returns a Provider for the encrypt side.
// The session is looked up in ctx each time the Provider is called.
func EncryptProvider() Provider {
	return func(ctx context.Context) (Transform, error) {
		return provide(ctx, SideEncrypt)
	}
}

// EncryptCleanup returns a Cleanup for the encrypt side.
func EncryptCleanup() Cleanup {
	return func(ctx context.Context, t Transform) error {
		return cleanup(ctx, SideEncrypt, t)
	}
}

// DecryptProvider returns a Provider for the decrypt side.
func DecryptProvider() Provider {
	return func(ctx context.Context) (Transform, error) {
		return provide(ctx, SideDecrypt)
	}
}

// DecryptCleanup returns a Cleanup for the decrypt side.
func DecryptCleanup() Cleanup {
	return func(ctx context.Context, t Transform) error {
		return cleanup(ctx, SideDecrypt, t)
	}
}

func provide(ctx context.Context, side Side) (Transform, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return nil, newSessionError(ErrNoActiveSession, side, "provide")
	}
	return s.cache.acquire(ctx, side)
}

func cleanup(ctx context.Context, side Side, t Transform) error {
	s, ok := FromContext(ctx)
	if !ok {
		return newSessionError(ErrNoActiveSession, side, "cleanup")
	}
	return s.cache.release(ctx, side, t)
}

// Apply runs src through one provide/apply/cleanup cycle on side.
// The transform is released even when Apply fails.
func Apply(ctx context.Context, side Side, src []byte) ([]byte, error) {
	if side == SideDecrypt {
		return cycle(ctx, DecryptProvider(), DecryptCleanup(), src)
	}
	return cycle(ctx, EncryptProvider(), EncryptCleanup(), src)
}

func cycle(ctx context.Context, provide Provider, release Cleanup, src []byte) (out []byte, err error) {
	t, err := provide(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := release(ctx, t); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return t.Apply(src)
}
