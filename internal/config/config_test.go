// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, time.Second, cfg.Serial.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Serial.DialTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Protocol.GraceDelay)
	assert.Equal(t, "127.0.0.1:8085", cfg.GetServerAddr())
	assert.Equal(t, ">> ", cfg.Console.Prompt)
	assert.Equal(t, 500, cfg.App.LogHistory)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsDebugEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: COM9
  baud_rate: 9600
  read_timeout: 250ms
protocol:
  grace_delay: 20ms
app:
  environment: production
logging:
  level: warn
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	conn := cfg.ConnectionConfig()
	assert.Equal(t, "COM9", conn.Port)
	assert.Equal(t, 9600, conn.BaudRate)
	assert.Equal(t, 250*time.Millisecond, conn.ReadTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.Protocol.GraceDelay)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("REGTERM_SERIAL_PORT", "/dev/ttyACM0")
	t.Setenv("REGTERM_SERIAL_BAUD_RATE", "57600")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
}

func TestLoadWithFlags(t *testing.T) {
	path := writeConfig(t, "serial:\n  port: COM1\n  baud_rate: 9600\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--port", "tcp://127.0.0.1:7000", "--read-timeout", "300ms"}))

	cfg, err := LoadWithFlags(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "tcp://127.0.0.1:7000", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 300*time.Millisecond, cfg.Serial.ReadTimeout)
}

func TestValidate(t *testing.T) {
	tests := map[string]string{
		"unsupported baud":  "serial:\n  port: COM5\n  baud_rate: 1234\n",
		"zero read timeout": "serial:\n  read_timeout: 0s\n",
		"negative grace":    "protocol:\n  grace_delay: -1ms\n",
		"bad environment":   "app:\n  environment: moon\n",
		"bad level":         "logging:\n  level: loud\n",
		"empty history":     "app:\n  log_history: 0\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestBaudIgnoredWithoutPort(t *testing.T) {
	cfg, err := Load(writeConfig(t, "serial:\n  baud_rate: 1234\n"))
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.Serial.BaudRate)
}
