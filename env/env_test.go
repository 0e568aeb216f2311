package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentuity/go-cachekit/logger"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test.env")

	tests := []struct {
		name     string
		content  string
		expected []EnvLine
	}{
		{
			name:     "empty file",
			content:  "",
			expected: []EnvLine{},
		},
		{
			name: "valid env file",
			content: `
CACHEKIT_BACKEND=sqlite
CACHEKIT_TARGET="/var/cache/app.db"
KEY3='value3'
# This is a comment
export KEY4=value with spaces
`,
			expected: []EnvLine{
				{Key: "CACHEKIT_BACKEND", Val: "sqlite"},
				{Key: "CACHEKIT_TARGET", Val: "/var/cache/app.db"},
				{Key: "KEY3", Val: "value3"},
				{Key: "KEY4", Val: "value with spaces"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(tmpFile, []byte(tt.content), 0644))
			got, err := ParseEnvFile(tmpFile)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		got, err := ParseEnvFile(filepath.Join(tmpDir, "missing.env"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestParseEnvBufferInterpolation(t *testing.T) {
	t.Setenv("CACHEKIT_TEST_HOST", "redis.internal")
	got := ParseEnvBuffer([]byte(`
PORT=6380
URL=redis://${env:CACHEKIT_TEST_HOST}:${PORT}/0
FALLBACK=${MISSING:-memory}
KEPT=${UNKNOWN}
`))
	assert.Equal(t, []EnvLine{
		{Key: "PORT", Val: "6380"},
		{Key: "URL", Val: "redis://redis.internal:6380/0"},
		{Key: "FALLBACK", Val: "memory"},
		{Key: "KEPT", Val: "${UNKNOWN}"},
	}, got)
}

func TestProcessEnvLine(t *testing.T) {
	assert.Equal(t, EnvLine{Key: "KEY", Val: "value"}, ProcessEnvLine("KEY=value"))
	assert.Equal(t, EnvLine{Key: "KEY", Val: "a=b"}, ProcessEnvLine("KEY=a=b"))
	assert.Equal(t, EnvLine{Key: "KEY", Val: ""}, ProcessEnvLine("KEY="))
	assert.Equal(t, EnvLine{Key: "KEY"}, ProcessEnvLine("KEY"))
	assert.Equal(t, EnvLine{Key: "KEY", Val: "quoted"}, ProcessEnvLine(`export KEY="quoted"`))
}

func TestDequote(t *testing.T) {
	assert.Equal(t, "value", dequote(`"value"`))
	assert.Equal(t, "value", dequote(`'value'`))
	assert.Equal(t, `"value`, dequote(`"value`))
	assert.Equal(t, `"`, dequote(`"`))
	assert.Equal(t, "", dequote(`""`))
}

func TestLoadEnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("CACHEKIT_TEST_A=from-file\nCACHEKIT_TEST_B=from-file\n"), 0644))
	t.Setenv("CACHEKIT_TEST_A", "from-env")
	t.Setenv("CACHEKIT_TEST_B", "")
	os.Unsetenv("CACHEKIT_TEST_B")

	require.NoError(t, LoadEnvFile(file))
	assert.Equal(t, "from-env", os.Getenv("CACHEKIT_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("CACHEKIT_TEST_B"))
}

func TestFlagOrEnv(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("test-flag", "", "Test flag")

	cmd.Flags().Set("test-flag", "flag-value")
	assert.Equal(t, "flag-value", FlagOrEnv(cmd, "test-flag", "TEST_ENV", "default"))

	cmd.Flags().Set("test-flag", "")
	t.Setenv("TEST_ENV", "env-value")
	assert.Equal(t, "env-value", FlagOrEnv(cmd, "test-flag", "TEST_ENV", "default"))

	os.Unsetenv("TEST_ENV")
	assert.Equal(t, "default", FlagOrEnv(cmd, "test-flag", "TEST_ENV", "default"))

	assert.Equal(t, "default", FlagOrEnv(cmd, "no-such-flag", "TEST_ENV", "default"))
}

func TestLogLevel(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "Log level")

	testCases := []struct {
		name      string
		flagValue string
		envValue  string
		expected  logger.LogLevel
	}{
		{"debug level via flag", "debug", "", logger.LevelDebug},
		{"debug level via env", "", "DEBUG", logger.LevelDebug},
		{"flag wins over env", "error", "trace", logger.LevelError},
		{"trace level via env", "", "TRACE", logger.LevelTrace},
		{"invalid level", "loud", "", logger.LevelWarn},
		{"default level", "", "", logger.LevelWarn},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd.Flags().Set("log-level", tc.flagValue)
			t.Setenv(logger.EnvLogLevel, tc.envValue)
			assert.Equal(t, tc.expected, LogLevel(cmd))
		})
	}
}

func TestNewLogger(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "error", "Log level")
	cmd.Flags().String("log-format", "", "Log format")

	l := NewLogger(cmd)
	assert.True(t, l.IsLevelEnabled(logger.LevelError))
	assert.False(t, l.IsLevelEnabled(logger.LevelWarn))

	cmd.Flags().Set("log-format", "json")
	l = NewLogger(cmd)
	assert.True(t, l.IsLevelEnabled(logger.LevelError))
}
