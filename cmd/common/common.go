// Package common provides shared utilities for Immunet CLI commands:
// YAML configuration loading and key load-or-generate helpers.
package common

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/serolabs/immunet/crypto"
	"github.com/serolabs/immunet/store"
)

// KeysConfig holds the oracle key material.
type KeysConfig struct {
	// OracleSigningKey is the hex Ed25519 private key the oracle proves
	// decryptions with. Generated if empty.
	OracleSigningKey string `yaml:"oracle_signing_key"`

	// PadKey is the hex 32-byte pad key ciphertexts are produced under.
	// Generated if empty; providers must encrypt under the same key.
	PadKey string `yaml:"pad_key"`
}

// Config is the immunetd configuration.
type Config struct {
	HTTPAddr        string                `yaml:"http_addr"`
	MetricsAddr     string                `yaml:"metrics_addr"`
	EnablePprof     bool                  `yaml:"enable_pprof"`
	Owner           string                `yaml:"owner"` // hex public key
	Identity        string                `yaml:"identity"`
	CooldownSeconds uint64                `yaml:"cooldown_seconds"`
	Providers       []string              `yaml:"providers"` // hex public keys
	Keys            KeysConfig            `yaml:"keys"`
	Postgres        *store.PostgresConfig `yaml:"postgres"`
}

// DefaultConfig returns a development configuration.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		Identity:        "immunet-dev",
		CooldownSeconds: 30,
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// LoadOrGeneratePadKey loads a 32-byte pad key from a hex string, or
// generates a fresh one if hexKey is empty.
func LoadOrGeneratePadKey(hexKey string) ([]byte, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return keyBytes, nil
	}
	return crypto.GeneratePadKey()
}

// ParsePublicKeys parses a list of hex public keys.
func ParsePublicKeys(hexKeys []string) ([]crypto.PublicKey, error) {
	out := make([]crypto.PublicKey, 0, len(hexKeys))
	for _, raw := range hexKeys {
		pk, err := crypto.NewPublicKeyFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid public key %q: %w", raw, err)
		}
		out = append(out, pk)
	}
	return out, nil
}
