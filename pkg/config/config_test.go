package config

import (
	"path/filepath"
	"testing"

	"diodt/core"
)

func writeTestConfig(t *testing.T, dir string, withSecrets bool) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	cfg := &Config{
		Peer: PeerSection{
			Name: "node-a",
			Devices: map[string]core.DeviceConfig{
				"buzzer": {DeviceType: core.DeviceTypeBuzzer, Config: []byte(`{"pin":4}`)},
			},
		},
		Web:     WebSection{Port: 8080},
		Logging: LoggingSection{Level: "info"},
		Rules: []core.Rule{
			{
				Sensor: core.UniversalSensorIdentifier{DeviceName: "buzzer", SensorName: "tick"},
				On:     core.AnyCondition(),
				Then: core.Action{
					Actuator: core.FullActuatorData{
						DeviceName:   "buzzer",
						ActuatorName: "beep",
						Data:         core.NewSignalActuatorValue(),
					},
				},
			},
		},
	}
	if withSecrets {
		cfg.Secrets = &SecretsSection{PSK: "00", Keypair: "AA=="}
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, true)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Peer.Name != "node-a" {
		t.Fatalf("Peer.Name = %q, want %q", cfg.Peer.Name, "node-a")
	}
	if cfg.Web.Port != 8080 {
		t.Fatalf("Web.Port = %d, want 8080", cfg.Web.Port)
	}
	entry, ok := cfg.Peer.Devices["buzzer"]
	if !ok || entry.DeviceType != core.DeviceTypeBuzzer {
		t.Fatalf("Peer.Devices[buzzer] = %+v, %v", entry, ok)
	}
}

func TestLoadOrBootstrapGeneratesSecretsOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, false)

	cfg, err := LoadOrBootstrap(path)
	if err != nil {
		t.Fatalf("LoadOrBootstrap: %v", err)
	}
	if cfg.Secrets == nil || cfg.Secrets.PSK == "" || cfg.Secrets.Keypair == "" {
		t.Fatal("expected LoadOrBootstrap to generate secrets")
	}

	psk, err := cfg.Secrets.DecodePSK()
	if err != nil {
		t.Fatalf("DecodePSK: %v", err)
	}
	if len(psk) != pskSize {
		t.Fatalf("psk length = %d, want %d", len(psk), pskSize)
	}

	priv, err := cfg.Secrets.DecodeKeypair()
	if err != nil {
		t.Fatalf("DecodeKeypair: %v", err)
	}
	if len(priv) == 0 {
		t.Fatal("expected a non-empty decoded keypair")
	}

	reloaded, err := LoadOrBootstrap(path)
	if err != nil {
		t.Fatalf("second LoadOrBootstrap: %v", err)
	}
	if reloaded.Secrets.PSK != cfg.Secrets.PSK || reloaded.Secrets.Keypair != cfg.Secrets.Keypair {
		t.Fatal("expected LoadOrBootstrap to be idempotent on a second run")
	}
}
