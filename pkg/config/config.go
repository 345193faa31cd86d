// Package config loads and bootstraps a node's on-disk configuration
// file: its peer identity, device catalogue, rule set, web port, and
// secrets. Secrets are generated and written back the first time the
// node runs against a config file that doesn't have them yet.
package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"diodt/core"
	"diodt/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// DefaultPath is the config file name used when none is given on the
// command line or via DIODT_CONFIG.
const DefaultPath = "config.json"

// pskSize is the pre-shared key length libp2p's private network
// transport expects.
const pskSize = 32

// PeerSection is the node's own identity and hardware catalogue.
type PeerSection struct {
	Name    string                         `json:"name"`
	Devices map[string]core.DeviceConfig  `json:"devices"`
}

// SecretsSection holds the node's long-lived cryptographic material.
// The section is null (or its fields empty) on a fresh config file;
// LoadOrBootstrap fills it in and writes the result back before the
// node starts.
type SecretsSection struct {
	PSK     string `json:"psk"`
	Keypair string `json:"keypair"`
}

// WebSection configures the HTTP/WebSocket bridge.
type WebSection struct {
	Port uint16 `json:"port"`
}

// LoggingSection configures the node's log verbosity.
type LoggingSection struct {
	Level string `json:"level"`
}

// Config is the full on-disk configuration file (§6).
type Config struct {
	Peer    PeerSection     `json:"peer"`
	Secrets *SecretsSection `json:"secrets"`
	Web     WebSection      `json:"web"`
	Logging LoggingSection  `json:"logging"`
	Rules   []core.Rule     `json:"rules"`
}

// Load reads and parses a config file from disk. Rule and device
// sub-structures carry custom json.Unmarshaler implementations for
// their tagged-union fields (ConditionOp, Measurement, ActuatorValue),
// which only encoding/json invokes — viper's mapstructure-based decoder
// does not call into json.Unmarshaler, so structural decoding happens
// here directly rather than through viper despite viper fronting the
// rest of this application's configuration surface (see DESIGN.md).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("parse config %s", path))
	}
	return &cfg, nil
}

// Save writes the config back to disk as indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return utils.Wrap(err, "marshal config")
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadOrBootstrap loads the config at path and, if its secrets section
// is empty, generates a fresh PSK and Ed25519 keypair and writes them
// back before returning (§6).
func LoadOrBootstrap(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("load config %s", path))
	}

	if cfg.Secrets != nil && cfg.Secrets.PSK != "" && cfg.Secrets.Keypair != "" {
		return cfg, nil
	}

	psk := make([]byte, pskSize)
	if _, err := rand.Read(psk); err != nil {
		return nil, utils.Wrap(err, "generate pre-shared key")
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, utils.Wrap(err, "generate ed25519 keypair")
	}

	cfg.Secrets = &SecretsSection{
		PSK:     hex.EncodeToString(psk),
		Keypair: base64.StdEncoding.EncodeToString(priv),
	}

	if err := Save(path, cfg); err != nil {
		return nil, utils.Wrap(err, "write bootstrapped secrets")
	}
	return cfg, nil
}

// DecodePSK parses the hex-encoded pre-shared key from the config file.
func (s *SecretsSection) DecodePSK() ([]byte, error) {
	psk, err := hex.DecodeString(s.PSK)
	if err != nil {
		return nil, utils.Wrap(err, "decode pre-shared key")
	}
	if len(psk) != pskSize {
		return nil, fmt.Errorf("pre-shared key: expected %d bytes, got %d", pskSize, len(psk))
	}
	return psk, nil
}

// DecodeKeypair parses the base64-encoded raw Ed25519 private key from
// the config file.
func (s *SecretsSection) DecodeKeypair() (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s.Keypair)
	if err != nil {
		return nil, utils.Wrap(err, "decode keypair")
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}
