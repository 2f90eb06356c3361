// Package config loads tbaudit configuration from a YAML file and the
// environment, and validates the result against an embedded CUE schema.
//
// Precedence, highest first: environment variables, the YAML file, defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Defaults.
const (
	DefaultChainName      = "tbthree"
	DefaultRPC            = "tcp://127.0.0.1:26657"
	DefaultKeyringBackend = "test"
	DefaultBinary         = "tbthreed"
	DefaultListCommand    = "list-log-summary-by-task"
	DefaultDBPath         = "./data/tbthree.db"
	DefaultTimeout        = 10 * time.Second
	DefaultConcurrency    = 4
	DefaultHTTPAddr       = ":8080"
)

// sqliteURLPrefix is stripped from DB_URL values.
const sqliteURLPrefix = "sqlite:///"

// Config is the resolved configuration.
type Config struct {
	Chain ChainConfig `yaml:"chain"`
	Store StoreConfig `yaml:"store"`
	Audit AuditConfig `yaml:"audit"`
	HTTP  HTTPConfig  `yaml:"http"`
}

// ChainConfig locates the chain binary, node and module.
type ChainConfig struct {
	Name           string `yaml:"name"`
	ID             string `yaml:"id"`
	Module         string `yaml:"module"`
	RPC            string `yaml:"rpc"`
	Home           string `yaml:"home"`
	Binary         string `yaml:"binary"`
	KeyringBackend string `yaml:"keyring_backend"`
	ListCommand    string `yaml:"list_command"`
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig tunes reconciliation.
type AuditConfig struct {
	// Timeout bounds each source read.
	Timeout Duration `yaml:"timeout"`

	// Concurrency bounds batch reconciliation.
	Concurrency int `yaml:"concurrency"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Duration is a time.Duration read from YAML as "10s" or as integer seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Env looks up an environment variable.
type Env func(key string) (string, bool)

// Load reads the YAML file at path (optional; "" skips it), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, env Env) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// firstEnv returns the first non-blank value among keys.
func firstEnv(env Env, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := env(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func applyEnv(cfg *Config, env Env) error {
	set := func(dst *string, keys ...string) {
		if v, ok := firstEnv(env, keys...); ok {
			*dst = v
		}
	}
	set(&cfg.Chain.Name, "CHAIN_NAME")
	set(&cfg.Chain.ID, "CHAIN_ID")
	set(&cfg.Chain.Module, "MODULE_NAME")
	set(&cfg.Chain.RPC, "CHAIN_RPC", "RPC_URL")
	set(&cfg.Chain.Home, "CHAIN_HOME")
	set(&cfg.Chain.Binary, "TBTHREED", "TB3D")
	set(&cfg.Chain.KeyringBackend, "KEYRING_BACKEND")
	set(&cfg.Chain.ListCommand, "AUDIT_LIST_COMMAND")
	set(&cfg.HTTP.Addr, "HTTP_ADDR")

	if v, ok := firstEnv(env, "DB_PATH", "DB_URL"); ok {
		cfg.Store.Path = strings.TrimPrefix(v, sqliteURLPrefix)
	}
	if v, ok := firstEnv(env, "AUDIT_TIMEOUT"); ok {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("AUDIT_TIMEOUT: %w", err)
		}
		cfg.Audit.Timeout = Duration(d)
	}
	if v, ok := firstEnv(env, "AUDIT_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUDIT_CONCURRENCY: invalid integer %q", v)
		}
		cfg.Audit.Concurrency = n
	}
	return nil
}

func applyDefaults(cfg *Config) {
	c := &cfg.Chain
	if c.Name == "" {
		c.Name = DefaultChainName
	}
	if c.ID == "" {
		c.ID = c.Name
	}
	if c.Module == "" {
		c.Module = c.Name
	}
	if c.RPC == "" {
		c.RPC = DefaultRPC
	}
	if c.Home == "" {
		c.Home = defaultHome(c.Name, c.ID)
	}
	if c.Binary == "" {
		c.Binary = defaultBinary()
	}
	if c.KeyringBackend == "" {
		c.KeyringBackend = DefaultKeyringBackend
	}
	if c.ListCommand == "" {
		c.ListCommand = DefaultListCommand
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultDBPath
	}
	if cfg.Audit.Timeout == 0 {
		cfg.Audit.Timeout = Duration(DefaultTimeout)
	}
	if cfg.Audit.Concurrency == 0 {
		cfg.Audit.Concurrency = DefaultConcurrency
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}
}

// defaultHome is ~/.<name> if it exists, else ~/.<id>.
func defaultHome(name, id string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + name
	}
	byName := filepath.Join(home, "."+name)
	if _, err := os.Stat(byName); err == nil {
		return byName
	}
	return filepath.Join(home, "."+id)
}

// defaultBinary prefers whichever chain binary is on PATH.
func defaultBinary() string {
	for _, name := range []string{"tbthreed", "tb3d"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return DefaultBinary
}

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg *Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(cfg.schemaView()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// schemaView is the shape validated by schema.cue.
func (c *Config) schemaView() map[string]any {
	return map[string]any{
		"chain": map[string]any{
			"name":            c.Chain.Name,
			"id":              c.Chain.ID,
			"module":          c.Chain.Module,
			"rpc":             c.Chain.RPC,
			"home":            c.Chain.Home,
			"binary":          c.Chain.Binary,
			"keyring_backend": c.Chain.KeyringBackend,
			"list_command":    c.Chain.ListCommand,
		},
		"store": map[string]any{
			"path": c.Store.Path,
		},
		"audit": map[string]any{
			"timeout_ms":  c.Audit.Timeout.Std().Milliseconds(),
			"concurrency": c.Audit.Concurrency,
		},
		"http": map[string]any{
			"addr": c.HTTP.Addr,
		},
	}
}
