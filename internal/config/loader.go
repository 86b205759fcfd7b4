// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from these layers (highest
precedence last):

  0. Built-in defaults (see model.go).
  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `DNSCACHE_`, where `__` maps to “.”
     (e.g., `DNSCACHE_CACHE__CAPACITY → cache.capacity`).

After merging, `vault:` references are swapped for their secret values,
the tree is unmarshalled into strongly-typed structs, validated, enriched
with the runtime root path, and cached in an `atomic.Pointer` for
lock-free reads.  `Reload()` repeats the last load with the same root and
secret source and swaps the pointer; main calls it on SIGHUP.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read.
  • ERROR spans: YAML parse, env overlay, secret lookup, unmarshal, and
    validation failures.
  • INFO  span : final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.
*/
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// loadArgs remembers what the last successful load used so Reload can
// repeat it.
type loadArgs struct {
	root    string
	secrets Secrets
}

var (
	current atomic.Pointer[Config]
	last    atomic.Pointer[loadArgs]
)

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves DNSCACHE_ROOT or climbs directories until
// conf/global.yaml is found.  Falls back to the executable's parent for a
// `<root>/bin/dnscache` layout.
func rootDir() string {
	if r := os.Getenv("DNSCACHE_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads defaults, .env, YAML, env overrides, resolves secrets,
// validates, and caches Config.  secrets may be nil when no value uses the
// `vault:` prefix.
func Load(ctx context.Context, secrets Secrets) (*Config, error) {
	return LoadDir(ctx, rootDir(), secrets)
}

// LoadDir is Load with an explicit root directory.
func LoadDir(ctx context.Context, root string, secrets Secrets) (*Config, error) {
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")
	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
			return nil, err
		}
		zap.S().Debugw("config yaml loaded", "file", yamlPath)
	}

	// Env overrides: DNSCACHE_CACHE__CAPACITY → cache.capacity
	if err := k.Load(env.Provider("DNSCACHE_", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, "DNSCACHE_"), "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, k, secrets); err != nil {
		zap.S().Errorw("config secret lookup failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	last.Store(&loadArgs{root: root, secrets: secrets})
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"capacity", cfg.Cache.Capacity,
		"store", cfg.Store.Driver,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the most recently loaded Config, or nil before Load.
func Get() *Config { return current.Load() }

// Reload repeats the last successful load with the same root and secret
// source.  On failure the previous Config stays current.
func Reload(ctx context.Context) (*Config, error) {
	a := last.Load()
	if a == nil {
		return Load(ctx, nil)
	}
	return LoadDir(ctx, a.root, a.secrets)
}

// StorePath returns the file store path, anchored at root when relative.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Paths.Root, c.Store.Path)
}
