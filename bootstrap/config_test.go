package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	logger, sugar, err := InitLogger("warn", true)
	require.NoError(t, err)
	require.NotNil(t, sugar)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, _, err = InitLogger("", false)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	_, _, err := InitLogger("chatty", true)
	assert.Error(t, err)
}

func TestInitConfig_ResolvesSecrets(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("CASEHUB_MESSAGING_PASSWORD", "broker-secret")

	path := filepath.Join(dir, "casehub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instance:\n  name: lab\nmessaging:\n  password: from-file\n"), 0o600))

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "lab", cfg.Instance.Name)
	assert.Equal(t, "broker-secret", cfg.Messaging.Password)
}

func TestInitConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	path := filepath.Join(dir, "casehub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("secrets:\n  provider: keychain\n"), 0o600))

	_, err := InitConfig(path)
	assert.Error(t, err)
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
