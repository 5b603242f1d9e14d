package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig loads defaults from an empty directory
func newTestConfig(t *testing.T) *Config {
	t.Helper()
	isolate(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	return cfg
}

// isolate keeps stray casehub.yaml files and HOME out of a test
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	return dir
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "casehub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := newTestConfig(t)

	assert.NotEmpty(t, cfg.Instance.Name)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "http", cfg.IndexServer.Scheme)
	assert.Equal(t, 8983, cfg.IndexServer.Port)
	assert.Equal(t, "/solr", cfg.IndexServer.Path)
	assert.Equal(t, 6379, cfg.Messaging.Port)
	assert.Equal(t, "casehub-events", cfg.Messaging.Selector)
	assert.Equal(t, []string{"localhost:2379"}, cfg.Coordination.Endpoints)
	assert.Equal(t, 15*time.Second, cfg.Coordination.DialTimeout)
	assert.Equal(t, 15*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Monitor.ProbeTimeout)
	assert.Equal(t, 2, cfg.Monitor.ProbeAttempts)
	assert.Equal(t, 1, cfg.Messenger.SendAttempts)
	assert.Equal(t, 256, cfg.Messenger.InboxSize)
	assert.Equal(t, 1024, cfg.Messenger.DedupCacheSize)
	assert.True(t, cfg.Diagnostics.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "env", cfg.Secrets.Provider)
}

func TestLoadConfig_SearchesWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "instance:\n  name: examiner-7\n")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "examiner-7", cfg.Instance.Name)
}

func TestLoadConfig_File(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
instance:
  name: lab-2
database:
  type: sqlite
  path: /var/lib/casehub/cases.db
index_server:
  host: solr.internal
  port: 8984
messaging:
  host: broker.internal
  selector: lab
coordination:
  endpoints:
    - etcd-1:2379
    - etcd-2:2379
monitor:
  poll_interval: 30s
  probe_attempts: 3
messenger:
  send_attempts: 4
  send_retry_delay: 250ms
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "lab-2", cfg.Instance.Name)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "/var/lib/casehub/cases.db", cfg.Database.Path)
	assert.Equal(t, "solr.internal", cfg.IndexServer.Host)
	assert.Equal(t, 8984, cfg.IndexServer.Port)
	assert.Equal(t, "broker.internal", cfg.Messaging.Host)
	assert.Equal(t, "lab", cfg.Messaging.Selector)
	assert.Equal(t, []string{"etcd-1:2379", "etcd-2:2379"}, cfg.Coordination.Endpoints)
	assert.Equal(t, 30*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 3, cfg.Monitor.ProbeAttempts)
	assert.Equal(t, 4, cfg.Messenger.SendAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Messenger.SendRetryDelay)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "messaging:\n  host: from-file\n")

	t.Setenv("CASEHUB_MESSAGING_HOST", "from-env")
	t.Setenv("CASEHUB_DATABASE_PORT", "6543")
	t.Setenv("CASEHUB_MONITOR_POLL_INTERVAL", "1m")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Messaging.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, time.Minute, cfg.Monitor.PollInterval)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := LoadConfig(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"port out of range", "messaging:\n  port: 70000\n", "Port"},
		{"unknown database type", "database:\n  type: oracle\n", "Type"},
		{"no endpoints", "coordination:\n  endpoints: []\n", "Endpoints"},
		{"zero probe attempts", "monitor:\n  probe_attempts: 0\n", "ProbeAttempts"},
		{"bad log level", "logging:\n  level: chatty\n", "Level"},
		{"unknown secrets provider", "secrets:\n  provider: keychain\n", "Provider"},
		{"sqlite without path", "database:\n  type: sqlite\n", "database.path"},
		{"poll too fast", "monitor:\n  poll_interval: 10ms\n", "poll_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := writeConfig(t, dir, tt.body)

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_MongoURI(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database.Type = "mongodb"
	cfg.Database.Host = ""
	assert.Error(t, Validate(cfg))

	cfg.Database.URI = "mongodb://cases.internal:27017"
	assert.NoError(t, Validate(cfg))
}

func TestValidate_DiagnosticsAddrRequiredWhenEnabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Diagnostics.Addr = ""
	assert.Error(t, Validate(cfg))

	cfg.Diagnostics.Enabled = false
	assert.NoError(t, Validate(cfg))
}

func TestConfig_Policies(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Monitor.ProbeAttempts = 3
	cfg.Monitor.ProbeRetryDelay = 2 * time.Second
	cfg.Monitor.ProbeTimeout = 4 * time.Second

	probe := cfg.ProbePolicy()
	require.Len(t, probe, 3)
	assert.Zero(t, probe[0].Delay)
	assert.Equal(t, 2*time.Second, probe[1].Delay)
	assert.Equal(t, 4*time.Second, probe[2].Timeout)

	send := cfg.SendPolicy()
	require.Len(t, send, 1)
	assert.Equal(t, 5*time.Second, send[0].Timeout)
}

func TestConfig_MonitorPollInterval(t *testing.T) {
	cfg := newTestConfig(t)
	assert.Equal(t, 15*time.Second, cfg.MonitorPollInterval())

	cfg.Monitor.PollInterval = 0
	assert.Negative(t, cfg.MonitorPollInterval())
}

// chdir changes the working directory for the duration of the test,
// matching testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
