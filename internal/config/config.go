// Package config loads the algorithm settings used by the sealed command.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/zoobzio/sealed"
)

const (
	// EnvPrefix is stripped from environment variables before mapping them
	// to keys: SEALED_MODE -> mode.
	EnvPrefix = "SEALED_"

	maxConfigFileSize = 64 * 1024
)

// ErrMissingKey is returned when neither the file nor the environment sets a key.
var ErrMissingKey = errors.New("config: key is required")

// File is the on-disk shape. Key and IV are hex encoded.
type File struct {
	Mode string `koanf:"mode"`
	Key  string `koanf:"key"`
	IV   string `koanf:"iv"`
}

// Load reads path (if non-empty), overlays SEALED_* environment variables
// and decodes the result into a sealed.Config.
//
// Precedence, highest first:
//  1. Environment variables (SEALED_MODE, SEALED_KEY, SEALED_IV)
//  2. YAML file at path
//  3. Mode defaults to aes-gcm
func Load(path string) (sealed.Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readFile(path)
		if err != nil {
			return sealed.Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return sealed.Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return sealed.Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return sealed.Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return f.Decode()
}

// Decode validates f and converts it into a sealed.Config.
func (f File) Decode() (sealed.Config, error) {
	mode := sealed.Mode(f.Mode)
	if mode == "" {
		mode = sealed.ModeGCM
	}
	if !sealed.IsValidMode(mode) {
		return sealed.Config{}, fmt.Errorf("%w: %q", sealed.ErrInvalidMode, f.Mode)
	}
	if f.Key == "" {
		return sealed.Config{}, ErrMissingKey
	}

	key, err := hex.DecodeString(f.Key)
	if err != nil {
		return sealed.Config{}, fmt.Errorf("config: key: %w", err)
	}

	cfg := sealed.Config{Mode: mode, Key: key}
	if f.IV != "" {
		if cfg.IV, err = hex.DecodeString(f.IV); err != nil {
			return sealed.Config{}, fmt.Errorf("config: iv: %w", err)
		}
	}
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("config file %s must not be readable by group or others (mode %o)", path, info.Mode().Perm())
	}
	return os.ReadFile(path)
}
