package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("port = %d", cfg.Web.Port)
	}
	if cfg.Idempotency.Window != 10*time.Second || cfg.Idempotency.WaitTimeout != 30*time.Second {
		t.Errorf("idempotency = %+v", cfg.Idempotency)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinicore.yaml")
	data := []byte(`
web:
  port: 9999
security:
  encryption_secret: s3cret
idempotency:
  window: 5s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Web.Port != 9999 {
		t.Errorf("port = %d", cfg.Web.Port)
	}
	if cfg.Security.EncryptionSecret != "s3cret" {
		t.Errorf("secret = %q", cfg.Security.EncryptionSecret)
	}
	if cfg.Idempotency.Window != 5*time.Second {
		t.Errorf("window = %v", cfg.Idempotency.Window)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err == nil {
		t.Error("empty encryption secret should fail validation")
	}

	cfg.Security.EncryptionSecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("sqlite config: %v", err)
	}

	cfg.Database.Driver = "postgres"
	cfg.Database.Postgres.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Error("incomplete postgres config should fail validation")
	}
}
