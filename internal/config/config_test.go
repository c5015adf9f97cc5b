package config

import (
	"os"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		EnvAddr, EnvModelPath, EnvLogLevel, EnvMaxGroupSize, EnvSinkURL, EnvSinkToken,
		EnvMQTTBroker, EnvMQTTUsername, EnvMQTTPassword, EnvHTTPAdapterURL, EnvCoAPAddr, EnvLedgerPath,
	}
	for _, v := range vars {
		old, had := os.LookupEnv(v)
		_ = os.Unsetenv(v)
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(v, old)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Addr() != DefaultAddr {
		t.Errorf("Addr() = %q, want %q", c.Addr(), DefaultAddr)
	}
	if c.ModelPath() != DefaultModelPath {
		t.Errorf("ModelPath() = %q, want %q", c.ModelPath(), DefaultModelPath)
	}
	if c.MaxGroupSize() != DefaultMaxGroupSize {
		t.Errorf("MaxGroupSize() = %d, want %d", c.MaxGroupSize(), DefaultMaxGroupSize)
	}
	if c.LedgerPath() != DefaultLedgerPath {
		t.Errorf("LedgerPath() = %q, want %q", c.LedgerPath(), DefaultLedgerPath)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAddr, ":9090")
	t.Setenv(EnvMaxGroupSize, "500")
	t.Setenv(EnvSinkToken, "s3cr3t")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Addr() != ":9090" {
		t.Errorf("Addr() = %q, want :9090", c.Addr())
	}
	if c.MaxGroupSize() != 500 {
		t.Errorf("MaxGroupSize() = %d, want 500", c.MaxGroupSize())
	}
	if c.SinkToken() != "s3cr3t" {
		t.Errorf("SinkToken() = %q, want s3cr3t", c.SinkToken())
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAddr, ":999999")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an out-of-range port")
	}
}

func TestLoadTreatsEmptyModelPathEnvAsUnset(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModelPath, "")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	// An empty env value is treated as unset by applyEnv, so the default
	// model path still applies; validate() only rejects an explicitly
	// empty ModelPath, which applyEnv can never produce.
	if c.ModelPath() != DefaultModelPath {
		t.Errorf("ModelPath() = %q, want default %q", c.ModelPath(), DefaultModelPath)
	}
}

func TestStringRedactsSinkToken(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvSinkToken, "s3cr3t")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	s := c.String()
	if strings.Contains(s, "s3cr3t") {
		t.Errorf("String() leaked the sink token: %q", s)
	}
	if !strings.Contains(s, "[set]") {
		t.Errorf("String() should indicate the token is set: %q", s)
	}
}
