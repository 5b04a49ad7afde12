package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "/webhooks", cfg.WebhookPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.AllowUnsigned)
	assert.Empty(t, cfg.WebhookProviders)
}

func TestLoadConfig_EnvFileAndOverrides(t *testing.T) {
	file := writeEnvFile(t, `
# receiver settings
BRIDGE_ADDR=:9000
BRIDGE_LOG_FORMAT=json
BRIDGE_SHUTDOWN_TIMEOUT=3s
BRIDGE_WEBHOOK_PROVIDERS=github,slack
GITHUB_WEBHOOK_SECRET=from-file
SLACK_SIGNING_SECRET="quoted value"
`)
	t.Setenv("GITHUB_WEBHOOK_SECRET", "from-env")

	cfg, err := LoadConfig(file)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"github", "slack"}, cfg.WebhookProviders)
	assert.Equal(t, "from-env", cfg.Webhooks.GitHubSecret, "the process environment wins over the file")
	assert.Equal(t, "quoted value", cfg.Webhooks.SlackSecret)

	_, ok := os.LookupEnv("BRIDGE_ADDR")
	assert.False(t, ok, "env files must not leak into the process environment")
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"log level", map[string]string{"BRIDGE_LOG_LEVEL": "loud"}, ErrInvalidConfig},
		{"log format", map[string]string{"BRIDGE_LOG_FORMAT": "xml"}, ErrInvalidConfig},
		{"webhook path", map[string]string{"BRIDGE_WEBHOOK_PATH": "hooks"}, ErrInvalidConfig},
		{"provider", map[string]string{"BRIDGE_WEBHOOK_PROVIDERS": "github,gitlab"}, ErrInvalidConfig},
		{"duration", map[string]string{"BRIDGE_SHUTDOWN_TIMEOUT": "soon"}, ErrParsingConfig},
		{"bool", map[string]string{"BRIDGE_ALLOW_UNSIGNED": "maybe"}, ErrParsingConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("missing env file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absent.env")
	})
}

func TestConfigCommand(t *testing.T) {
	file := writeEnvFile(t, `
GITHUB_WEBHOOK_SECRET=s3cret
BRIDGE_WEBHOOK_PROVIDERS=github,slack,linear
BRIDGE_ALLOW_UNSIGNED=true
`)
	out, err := executeCommand(NewRootCmd(), "config", "--env-file", file)
	require.NoError(t, err)

	assert.Contains(t, out, "github   signed")
	assert.Contains(t, out, "slack    unsigned")
	assert.Contains(t, out, "discord  disabled")
	assert.Contains(t, out, "linear   unsigned")
	assert.NotContains(t, out, "s3cret")
}
