package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapEnv serves environment lookups from a map.
func mapEnv(m map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tbaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("", mapEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, "tbthree", cfg.Chain.Name)
	assert.Equal(t, "tbthree", cfg.Chain.ID)
	assert.Equal(t, "tbthree", cfg.Chain.Module)
	assert.Equal(t, DefaultRPC, cfg.Chain.RPC)
	assert.Equal(t, "test", cfg.Chain.KeyringBackend)
	assert.Equal(t, DefaultListCommand, cfg.Chain.ListCommand)
	assert.NotEmpty(t, cfg.Chain.Home)
	assert.NotEmpty(t, cfg.Chain.Binary)
	assert.Equal(t, DefaultDBPath, cfg.Store.Path)
	assert.Equal(t, 10*time.Second, cfg.Audit.Timeout.Std())
	assert.Equal(t, 4, cfg.Audit.Concurrency)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadChainIDAndModuleFollowName(t *testing.T) {
	cfg, err := load("", mapEnv(map[string]string{"CHAIN_NAME": "mychain"}))
	require.NoError(t, err)
	assert.Equal(t, "mychain", cfg.Chain.ID)
	assert.Equal(t, "mychain", cfg.Chain.Module)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
chain:
  name: tbthree
  id: tbthree-testnet
  rpc: http://node.example:26657
  home: /var/lib/tbthree
  binary: /usr/local/bin/tbthreed
store:
  path: /var/lib/tbaudit/audit.db
audit:
  timeout: 3s
  concurrency: 8
http:
  addr: 127.0.0.1:9090
`)
	cfg, err := load(path, mapEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, "tbthree-testnet", cfg.Chain.ID)
	assert.Equal(t, "http://node.example:26657", cfg.Chain.RPC)
	assert.Equal(t, "/var/lib/tbthree", cfg.Chain.Home)
	assert.Equal(t, "/usr/local/bin/tbthreed", cfg.Chain.Binary)
	assert.Equal(t, "/var/lib/tbaudit/audit.db", cfg.Store.Path)
	assert.Equal(t, 3*time.Second, cfg.Audit.Timeout.Std())
	assert.Equal(t, 8, cfg.Audit.Concurrency)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
}

func TestLoadIntegerSecondsTimeout(t *testing.T) {
	path := writeConfig(t, "audit:\n  timeout: 15\n")
	cfg, err := load(path, mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Audit.Timeout.Std())
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := load(writeConfig(t, ""), mapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultChainName, cfg.Chain.Name)
}

func TestLoadUnknownField(t *testing.T) {
	_, err := load(writeConfig(t, "chain:\n  colour: blue\n"), mapEnv(nil))
	assert.ErrorContains(t, err, "colour")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), mapEnv(nil))
	assert.ErrorContains(t, err, "read config")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "chain:\n  rpc: tcp://file:26657\nstore:\n  path: file.db\n")
	cfg, err := load(path, mapEnv(map[string]string{
		"RPC_URL":       "tcp://env:26657",
		"DB_URL":        "sqlite:///data/env.db",
		"TB3D":          "/opt/tb3d",
		"AUDIT_TIMEOUT": "750ms",
		"HTTP_ADDR":     ":9999",
	}))
	require.NoError(t, err)

	assert.Equal(t, "tcp://env:26657", cfg.Chain.RPC)
	assert.Equal(t, "data/env.db", cfg.Store.Path)
	assert.Equal(t, "/opt/tb3d", cfg.Chain.Binary)
	assert.Equal(t, 750*time.Millisecond, cfg.Audit.Timeout.Std())
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestEnvFirstNonBlankWins(t *testing.T) {
	cfg, err := load("", mapEnv(map[string]string{
		"CHAIN_RPC": "  ",
		"RPC_URL":   "tcp://second:26657",
		"DB_PATH":   "/abs/path.db",
		"DB_URL":    "sqlite:///ignored.db",
	}))
	require.NoError(t, err)
	assert.Equal(t, "tcp://second:26657", cfg.Chain.RPC)
	assert.Equal(t, "/abs/path.db", cfg.Store.Path)
}

func TestEnvAbsoluteSQLiteURL(t *testing.T) {
	cfg, err := load("", mapEnv(map[string]string{"DB_URL": "sqlite:////srv/tbthree.db"}))
	require.NoError(t, err)
	assert.Equal(t, "/srv/tbthree.db", cfg.Store.Path)
}

func TestEnvInvalidValues(t *testing.T) {
	_, err := load("", mapEnv(map[string]string{"AUDIT_TIMEOUT": "soon"}))
	assert.ErrorContains(t, err, "AUDIT_TIMEOUT")

	_, err = load("", mapEnv(map[string]string{"AUDIT_CONCURRENCY": "many"}))
	assert.ErrorContains(t, err, "AUDIT_CONCURRENCY")
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"rpc scheme", map[string]string{"CHAIN_RPC": "127.0.0.1:26657"}, "rpc"},
		{"keyring", map[string]string{"KEYRING_BACKEND": "vault"}, "keyring_backend"},
		{"concurrency", map[string]string{"AUDIT_CONCURRENCY": "500"}, "concurrency"},
		{"http addr", map[string]string{"HTTP_ADDR": "localhost"}, "addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load("", mapEnv(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDurationMarshalYAML(t *testing.T) {
	v, err := Duration(1500 * time.Millisecond).MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", v)
}
