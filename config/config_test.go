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

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8888", c.ListenAddr)
	assert.Equal(t, "./iplogin.db", c.Database.Path)
	assert.Equal(t, 12*time.Hour, c.SessionTTL)
	assert.Equal(t, 25, c.SMTP.Port)
	assert.False(t, c.Updates.Enabled)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9000"
operator_email: ops@example.test
site:
  name: Example
  url: https://example.test
smtp:
  host: mail.example.test
  port: 587
database:
  path: /var/lib/iplogin.db
`), 0o600))

	t.Setenv("IPLOGIN_SMTP_FROM", "noreply@example.test")
	t.Setenv("IPLOGIN_SESSION_TTL", "30m")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("listen", "", "")
	require.NoError(t, flags.Parse([]string{"--db", "/tmp/override.db"}))

	c, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.ListenAddr, "unset flag does not override file")
	assert.Equal(t, "/tmp/override.db", c.Database.Path)
	assert.Equal(t, "ops@example.test", c.OperatorEmail)
	assert.Equal(t, "Example", c.Site.Name)
	assert.Equal(t, 587, c.SMTP.Port)
	assert.Equal(t, "noreply@example.test", c.SMTP.From)
	assert.Equal(t, 30*time.Minute, c.SessionTTL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}
