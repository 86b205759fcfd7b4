// internal/config/model.go
//
// Typed configuration model for dnscache.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                            – dotenv values,
//   • `conf/global.yaml`                         – primary static file,
//   • `DNSCACHE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Durations accept Go syntax ("100ms", "30s").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import "time"

//
// HTTP section
//

// HTTP holds admin-API server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Cache section
//

// Cache sizes the LRU.  Capacity is fixed for the process lifetime.
type Cache struct {
	Capacity int `koanf:"capacity" validate:"min=1"`
}

//
// Store section
//

// Store selects the authoritative record store.
//
// For `file`, Path names the `domain=ip` text file.  For `mysql` and
// `sqlite`, DSN is a template that may carry one %s verb; Password (usually
// a `vault:` reference) is substituted into it at open time.
type Store struct {
	Driver   string `koanf:"driver"   validate:"required,oneof=file mysql sqlite"`
	Path     string `koanf:"path"     validate:"required_if=Driver file"`
	DSN      string `koanf:"dsn"      validate:"required_unless=Driver file"`
	Password string `koanf:"password"`
}

//
// Sync section
//

// Sync controls when the cache is reconciled against the store.  Watch
// applies to the file store; Interval > 0 starts a poller for any store.
type Sync struct {
	Watch    bool          `koanf:"watch"`
	Interval time.Duration `koanf:"interval"`
	Debounce time.Duration `koanf:"debounce"`
}

//
// Geo section
//

// Geo points at an optional GeoLite2 Country database.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

//
// Log section
//

type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // DNSCACHE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP  HTTP  `koanf:"http"`
	Cache Cache `koanf:"cache"`
	Store Store `koanf:"store"`
	Sync  Sync  `koanf:"sync"`
	Geo   Geo   `koanf:"geo"`
	Log   Log   `koanf:"log"`
	Paths Paths `koanf:"-"` // not loaded from config files
}

// defaults seeds the koanf tree before the YAML layer.
func defaults() map[string]any {
	return map[string]any{
		"http.listen_addr": ":8053",
		"cache.capacity":   5,
		"store.driver":     "file",
		"store.path":       "dns.txt",
		"sync.watch":       true,
		"sync.debounce":    "100ms",
		"log.level":        "info",
	}
}
