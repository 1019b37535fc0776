package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const yamlConfig = `
version: "1"
storage:
  path: /tmp/test-vault.db
  quota_bytes: 1048576
sync:
  flush_interval: 45s
  remote_timeout: 5s
  max_retries: 5
conflicts:
  rules:
    - name: nutrition-tags
      pattern: "*_tags"
      strategy: merge_values
    - name: device-settings
      pattern: "device_*"
      strategy: local_wins
`

func TestLoadYAML(t *testing.T) {
	c, err := LoadBytes([]byte(yamlConfig), "yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Storage.Path != "/tmp/test-vault.db" {
		t.Errorf("path = %q", c.Storage.Path)
	}
	if c.Storage.QuotaBytes != 1048576 {
		t.Errorf("quota = %d", c.Storage.QuotaBytes)
	}

	flush, err := c.FlushInterval()
	if err != nil || flush != 45*time.Second {
		t.Errorf("flush interval = %v, %v", flush, err)
	}
	timeout, err := c.RemoteTimeout()
	if err != nil || timeout != 5*time.Second {
		t.Errorf("remote timeout = %v, %v", timeout, err)
	}
	if len(c.Conflicts.Rules) != 2 {
		t.Errorf("rules = %d", len(c.Conflicts.Rules))
	}
}

func TestLoadJSON(t *testing.T) {
	data := []byte(`{"version":"1","storage":{"path":"x.db"},"sync":{"max_retries":2}}`)
	c, err := LoadBytes(data, "json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Storage.Path != "x.db" {
		t.Errorf("path = %q", c.Storage.Path)
	}
	if c.Sync.MaxRetries != 2 {
		t.Errorf("retries = %d", c.Sync.MaxRetries)
	}
}

func TestLoadFromFileDetectsFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fitvault.yaml")
	if err := os.WriteFile(path, []byte(yamlConfig), 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Storage.Path != "/tmp/test-vault.db" {
		t.Errorf("path = %q", c.Storage.Path)
	}
}

func TestDefaultsApplied(t *testing.T) {
	c, err := LoadBytes([]byte(`version: "1"`), "yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Storage.Path != "fitvault.db" {
		t.Errorf("default path = %q", c.Storage.Path)
	}
	if c.Sync.FlushInterval != "30s" || c.Sync.RemoteTimeout != "10s" {
		t.Errorf("default sync settings = %+v", c.Sync)
	}
}

func TestRejectsUnknownStrategy(t *testing.T) {
	data := []byte(`
version: "1"
conflicts:
  rules:
    - name: bad
      pattern: "*"
      strategy: coin_flip
`)
	if _, err := LoadBytes(data, "yaml"); err == nil {
		t.Fatal("unknown strategy accepted")
	}
}

func TestRejectsDuplicateRuleNames(t *testing.T) {
	data := []byte(`
version: "1"
conflicts:
  rules:
    - name: dup
      pattern: "a_*"
      strategy: local_wins
    - name: dup
      pattern: "b_*"
      strategy: remote_wins
`)
	if _, err := LoadBytes(data, "yaml"); err == nil {
		t.Fatal("duplicate rule names accepted")
	}
}

func TestRejectsBadDuration(t *testing.T) {
	data := []byte(`
version: "1"
sync:
  flush_interval: soon
`)
	if _, err := LoadBytes(data, "yaml"); err == nil {
		t.Fatal("unparseable duration accepted")
	}
}

func TestRejectsUnknownFormat(t *testing.T) {
	if _, err := LoadBytes([]byte("{}"), "toml"); err == nil {
		t.Fatal("unknown format accepted")
	}
}

func TestStoreConfig(t *testing.T) {
	c, err := LoadBytes([]byte(yamlConfig), "yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := c.StoreConfig()
	if cfg.DataSourceName != "/tmp/test-vault.db" {
		t.Errorf("dsn = %q", cfg.DataSourceName)
	}
	if cfg.QuotaBytes != 1048576 {
		t.Errorf("quota = %d", cfg.QuotaBytes)
	}
	if !cfg.EnableWAL {
		t.Error("WAL disabled by default")
	}
}

func TestQueueConfig(t *testing.T) {
	c, err := LoadBytes([]byte(yamlConfig), "yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := c.QueueConfig()
	if cfg.MaxRetries != 5 {
		t.Errorf("retries = %d", cfg.MaxRetries)
	}
	if cfg.Retry == nil {
		t.Fatal("retry config missing")
	}
}

func TestConflictOptionsCount(t *testing.T) {
	c, err := LoadBytes([]byte(yamlConfig), "yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(c.ConflictOptions()); got != 2 {
		t.Errorf("options = %d, want 2", got)
	}

	c.Conflicts.DisableDefaults = true
	if got := len(c.ConflictOptions()); got != 3 {
		t.Errorf("options with disabled defaults = %d, want 3", got)
	}
}
