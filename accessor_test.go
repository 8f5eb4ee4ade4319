package sealed_test

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/zoobzio/sealed"
	sealedtest "github.com/zoobzio/sealed/testing"
)

// useEncrypt runs n provide/apply/cleanup pairs on the encrypt side.
func useEncrypt(t *testing.T, ctx context.Context, n int) {
	t.Helper()
	provide, release := sealed.EncryptProvider(), sealed.EncryptCleanup()
	for i := 0; i < n; i++ {
		tr, err := provide(ctx)
		if err != nil {
			t.Fatalf("provide() error: %v", err)
		}
		if _, err := tr.Apply([]byte("field")); err != nil {
			t.Fatalf("Apply() error: %v", err)
		}
		if err := release(ctx, tr); err != nil {
			t.Fatalf("cleanup() error: %v", err)
		}
	}
}

func TestAccessors_ReusableCreatedOnce(t *testing.T) {
	alg := sealedtest.NewCountingAlgorithm("a", true, true)
	ctx, sess, _ := sealed.Open(context.Background(), alg)
	defer sess.Close()

	useEncrypt(t, ctx, 3)

	if got := alg.EncryptCreated(); got != 1 {
		t.Errorf("EncryptCreated() = %d, want 1", got)
	}
	if tr := alg.Transforms()[0]; tr.Applies() != 3 || tr.Closes() != 0 {
		t.Errorf("cached encryptor applies=%d closes=%d, want 3 and 0", tr.Applies(), tr.Closes())
	}
}

func TestAccessors_NonReusableCreatedPerPair(t *testing.T) {
	alg := sealedtest.NewCountingAlgorithm("a", false, false)
	ctx, sess, _ := sealed.Open(context.Background(), alg)
	defer sess.Close()

	useEncrypt(t, ctx, 3)

	if got := alg.EncryptCreated(); got != 3 {
		t.Errorf("EncryptCreated() = %d, want 3", got)
	}
	for i, tr := range alg.Transforms() {
		if tr.Closes() != 1 {
			t.Errorf("encryptor %d closed %d times, want 1", i, tr.Closes())
		}
	}
}

func TestAccessors_SidesAreIndependent(t *testing.T) {
	alg := sealedtest.NewCountingAlgorithm("a", false, true)
	ctx, sess, _ := sealed.Open(context.Background(), alg)
	defer sess.Close()

	provideDec, releaseDec := sealed.DecryptProvider(), sealed.DecryptCleanup()

	for i := 0; i < 4; i++ {
		useEncrypt(t, ctx, 1)

		tr, err := provideDec(ctx)
		if err != nil {
			t.Fatalf("decrypt provide() error: %v", err)
		}
		if _, err := tr.Apply([]byte("a:field")); err != nil {
			t.Fatalf("decrypt Apply() error: %v", err)
		}
		if err := releaseDec(ctx, tr); err != nil {
			t.Fatalf("decrypt cleanup() error: %v", err)
		}
	}

	if got := alg.EncryptCreated(); got != 4 {
		t.Errorf("EncryptCreated() = %d, want 4", got)
	}
	if got := alg.DecryptCreated(); got != 1 {
		t.Errorf("DecryptCreated() = %d, want 1", got)
	}
}

func TestAccessors_ResolveAtCallTime(t *testing.T) {
	// Closures built before any session exists still find the session
	// carried by the ctx they are invoked with.
	provide, release := sealed.EncryptProvider(), sealed.EncryptCleanup()

	alg := sealedtest.NewCountingAlgorithm("late", true, true)
	ctx, sess, _ := sealed.Open(context.Background(), alg)
	defer sess.Close()

	tr, err := provide(ctx)
	if err != nil {
		t.Fatalf("provide() error: %v", err)
	}
	if ct, ok := tr.(*sealedtest.CountingTransform); !ok || ct.Owner() != "late" {
		t.Error("provide() should return a transform from the session's algorithm")
	}
	if err := release(ctx, tr); err != nil {
		t.Fatalf("cleanup() error: %v", err)
	}
}

func TestAccessors_NoActiveSession(t *testing.T) {
	ctx := context.Background()
	alg := sealedtest.NewCountingAlgorithm("a", true, true)
	tr, _ := alg.NewEncryptor()

	tests := []struct {
		name string
		call func() error
	}{
		{"encrypt provider", func() error { _, err := sealed.EncryptProvider()(ctx); return err }},
		{"encrypt cleanup", func() error { return sealed.EncryptCleanup()(ctx, tr) }},
		{"decrypt provider", func() error { _, err := sealed.DecryptProvider()(ctx); return err }},
		{"decrypt cleanup", func() error { return sealed.DecryptCleanup()(ctx, tr) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, sealed.ErrNoActiveSession) {
				t.Errorf("error = %v, want ErrNoActiveSession", err)
			}
			var se *sealed.SessionError
			if !errors.As(err, &se) {
				t.Error("error should be a *SessionError")
			}
		})
	}
}

func TestAccessors_AfterDispose(t *testing.T) {
	alg := sealedtest.NewCountingAlgorithm("a", true, true)
	ctx, sess, _ := sealed.Open(context.Background(), alg)

	provideEnc, releaseEnc := sealed.EncryptProvider(), sealed.EncryptCleanup()
	provideDec, releaseDec := sealed.DecryptProvider(), sealed.DecryptCleanup()

	tr, err := provideEnc(ctx)
	if err != nil {
		t.Fatalf("provide() error: %v", err)
	}
	_ = releaseEnc(ctx, tr)
	_ = sess.Close()

	if _, err := provideEnc(ctx); !errors.Is(err, sealed.ErrSessionDisposed) {
		t.Errorf("encrypt provide() after Close error = %v, want ErrSessionDisposed", err)
	}
	if _, err := provideDec(ctx); !errors.Is(err, sealed.ErrSessionDisposed) {
		t.Errorf("decrypt provide() after Close error = %v, want ErrSessionDisposed", err)
	}
	if err := releaseEnc(ctx, tr); !errors.Is(err, sealed.ErrSessionDisposed) {
		t.Errorf("encrypt cleanup() after Close error = %v, want ErrSessionDisposed", err)
	}
	if err := releaseDec(ctx, tr); !errors.Is(err, sealed.ErrSessionDisposed) {
		t.Errorf("decrypt cleanup() after Close error = %v, want ErrSessionDisposed", err)
	}
	if got := alg.EncryptCreated(); got != 1 {
		t.Errorf("EncryptCreated() = %d, want 1 (no creation after Close)", got)
	}
}

func TestAccessors_CleanupNilIsNoop(t *testing.T) {
	alg := sealedtest.NewCountingAlgorithm("a", false, false)
	ctx, sess, _ := sealed.Open(context.Background(), alg)
	defer sess.Close()

	if err := sealed.EncryptCleanup()(ctx, nil); err != nil {
		t.Errorf("cleanup(nil) error: %v", err)
	}
}

func TestAccessors_GoroutineIsolation(t *testing.T) {
	const workers = 8
	const fields = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	algs := make([]*sealedtest.CountingAlgorithm, workers)

	for w := 0; w < workers; w++ {
		owner := fmt.Sprintf("worker-%d", w)
		// Alternate reuse so both cache paths run concurrently.
		alg := sealedtest.NewCountingAlgorithm(owner, w%2 == 0, true)
		algs[w] = alg

		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- sealed.Do(context.Background(), alg, func(ctx context.Context) error {
				provide, release := sealed.EncryptProvider(), sealed.EncryptCleanup()
				for i := 0; i < fields; i++ {
					tr, err := provide(ctx)
					if err != nil {
						return err
					}
					if got := tr.(*sealedtest.CountingTransform).Owner(); got != owner {
						return fmt.Errorf("%s received transform of %s", owner, got)
					}
					if _, err := tr.Apply([]byte("v")); err != nil {
						return err
					}
					if err := release(ctx, tr); err != nil {
						return err
					}
				}
				return nil
			})
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}

	for w, alg := range algs {
		want := 1
		if w%2 != 0 {
			want = fields
		}
		if got := alg.EncryptCreated(); got != want {
			t.Errorf("worker %d EncryptCreated() = %d, want %d", w, got, want)
		}
		if alg.Closes() != 1 {
			t.Errorf("worker %d algorithm closed %d times, want 1", w, alg.Closes())
		}
	}
}

func TestAccessors_SharedSessionContext(t *testing.T) {
	const workers = 8
	const fields = 200

	gcm, err := sealed.AESGCM(sealedtest.TestKey(t))
	if err != nil {
		t.Fatalf("AESGCM() error: %v", err)
	}
	ctx, sess, err := sealed.Open(context.Background(), gcm)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer sess.Close()

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			provide, release := sealed.EncryptProvider(), sealed.EncryptCleanup()
			for i := 0; i < fields; i++ {
				tr, err := provide(ctx)
				if err != nil {
					errs <- err
					return
				}
				runtime.Gosched()
				_, applyErr := tr.Apply([]byte("v"))
				if err := release(ctx, tr); err != nil {
					errs <- err
					return
				}
				if applyErr != nil {
					errs <- applyErr
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("shared session: %v", err)
	}

	stats := sess.Stats()
	if stats.EncryptCreated != workers*fields {
		t.Errorf("EncryptCreated = %d, want %d", stats.EncryptCreated, workers*fields)
	}
	if stats.EncryptEvicted != workers*fields {
		t.Errorf("EncryptEvicted = %d, want %d", stats.EncryptEvicted, workers*fields)
	}
}

// failingAlgorithm cannot create transforms.
type failingAlgorithm struct{ closes int }

var errNoTransforms = errors.New("no transforms today")

func (a *failingAlgorithm) NewEncryptor() (sealed.Transform, error) { return nil, errNoTransforms }
func (a *failingAlgorithm) NewDecryptor() (sealed.Transform, error) { return nil, errNoTransforms }
func (a *failingAlgorithm) Close() error { a.closes++; return nil }

func TestAccessors_CreateError(t *testing.T) {
	alg := &failingAlgorithm{}
	ctx, sess, _ := sealed.Open(context.Background(), alg)

	_, err := sealed.EncryptProvider()(ctx)
	if !errors.Is(err, sealed.ErrCreateTransform) || !errors.Is(err, errNoTransforms) {
		t.Errorf("provide() error = %v, want ErrCreateTransform wrapping cause", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if alg.closes != 1 {
		t.Errorf("algorithm closed %d times, want 1", alg.closes)
	}
}

func TestApply_ReleasesOnFailure(t *testing.T) {
	alg := sealedtest.NewCountingAlgorithm("a", true, false)
	ctx, sess, _ := sealed.Open(context.Background(), alg)
	defer sess.Close()

	// Wrong owner makes the decryptor fail; it must still be evicted.
	if _, err := sealed.Apply(ctx, sealed.SideDecrypt, []byte("b:x")); !errors.Is(err, sealedtest.ErrWrongOwner) {
		t.Fatalf("Apply() error = %v, want ErrWrongOwner", err)
	}
	if _, err := sealed.Apply(ctx, sealed.SideDecrypt, []byte("a:x")); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if got := alg.DecryptCreated(); got != 2 {
		t.Errorf("DecryptCreated() = %d, want 2", got)
	}
	for _, tr := range alg.Transforms() {
		if tr.Closes() != 1 {
			t.Errorf("decryptor closed %d times, want 1", tr.Closes())
		}
	}
}

func TestAccessors_BuiltinAlgorithms(t *testing.T) {
	cbc, _ := sealed.AES(sealedtest.TestKey(t), sealedtest.TestIV(t))
	gcm, _ := sealed.AESGCM(sealedtest.TestKey(t))

	tests := []struct {
		name        string
		alg         sealed.Algorithm
		wantCreated int
	}{
		{"cbc reuses", cbc, 1},
		{"gcm per field", gcm, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, sess, err := sealed.Open(context.Background(), tt.alg)
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			defer sess.Close()

			for i := 0; i < 5; i++ {
				ct, err := sealed.Apply(ctx, sealed.SideEncrypt, []byte("field"))
				if err != nil {
					t.Fatalf("encrypt error: %v", err)
				}
				pt, err := sealed.Apply(ctx, sealed.SideDecrypt, ct)
				if err != nil {
					t.Fatalf("decrypt error: %v", err)
				}
				if string(pt) != "field" {
					t.Errorf("round-trip = %q, want %q", pt, "field")
				}
			}

			stats := sess.Stats()
			if stats.EncryptCreated != tt.wantCreated {
				t.Errorf("EncryptCreated = %d, want %d", stats.EncryptCreated, tt.wantCreated)
			}
			if stats.DecryptCreated != 1 {
				t.Errorf("DecryptCreated = %d, want 1", stats.DecryptCreated)
			}
		})
	}
}
