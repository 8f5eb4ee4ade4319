package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zoobzio/sealed"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, body string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sealed.yaml")
	if err := os.WriteFile(path, []byte(body), perm); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, "mode: aes-cbc\nkey: "+testKeyHex+"\niv: 00112233445566778899aabbccddeeff\n", 0o600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Mode != sealed.ModeCBC {
		t.Errorf("Mode = %q, want %q", cfg.Mode, sealed.ModeCBC)
	}
	if len(cfg.Key) != 32 || len(cfg.IV) != 16 {
		t.Errorf("key/iv lengths = %d/%d, want 32/16", len(cfg.Key), len(cfg.IV))
	}
	if _, err := sealed.NewAlgorithm(cfg); err != nil {
		t.Errorf("NewAlgorithm() error: %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "mode: aes-cbc\nkey: "+testKeyHex+"\n", 0o600)
	t.Setenv("SEALED_MODE", "chacha20poly1305")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Mode != sealed.ModeChaCha20Poly1305 {
		t.Errorf("Mode = %q, want env override", cfg.Mode)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("SEALED_KEY", testKeyHex)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Mode != sealed.ModeGCM {
		t.Errorf("Mode = %q, want default %q", cfg.Mode, sealed.ModeGCM)
	}
}

func TestLoad_RejectsOpenPermissions(t *testing.T) {
	path := writeConfig(t, "key: "+testKeyHex+"\n", 0o644)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "group or others") {
		t.Errorf("Load() error = %v, want permission error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestFile_Decode(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		wantErr error
	}{
		{"missing key", File{Mode: "aes-gcm"}, ErrMissingKey},
		{"unknown mode", File{Mode: "rot13", Key: testKeyHex}, sealed.ErrInvalidMode},
		{"bad key hex", File{Key: "zz"}, nil},
		{"bad iv hex", File{Mode: "aes-cbc", Key: testKeyHex, IV: "zz"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.file.Decode()
			if err == nil {
				t.Fatal("Decode() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
