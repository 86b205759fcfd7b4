// cmd/dnscache/main.go
//
// dnscache – LRU lookup service entry point.
//
// Start-up
// --------
//
//  1. Load env vars (system-wide file → .env fallback).
//
//  2. Connect to Vault when VAULT_ADDR is set, so `vault:` config values
//     resolve.
//
//  3. Load and validate configuration, then start the daily rotating
//     logger (tees to console when running in a TTY).
//
//  4. Open the record store: a `domain=ip` file, or a MySQL / SQLite
//     table via sqlx.
//
//  5. Build the lookup service and run one initial Sync.
//
//  6. Start the change trigger: fsnotify on the store file, a ticker
//     poller when sync.interval > 0, or both.  SIGHUP reloads the config
//     and restarts them with the new sync settings.
//
//  7. Serve the admin API until SIGINT / SIGTERM, then shut down
//     gracefully.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/yanizio/dnscache/internal/api"
	"github.com/yanizio/dnscache/internal/config"
	"github.com/yanizio/dnscache/internal/database"
	"github.com/yanizio/dnscache/internal/geo"
	"github.com/yanizio/dnscache/internal/logger"
	"github.com/yanizio/dnscache/internal/middleware"
	"github.com/yanizio/dnscache/internal/record"
	"github.com/yanizio/dnscache/internal/resolver"
	"github.com/yanizio/dnscache/internal/server"
	"github.com/yanizio/dnscache/internal/vault"
	"github.com/yanizio/dnscache/internal/watch"
)

const serverEnvPath = "/usr/local/etc/dnscache/dnscache.env"

// Compile-time assertion: the Vault client can resolve config secrets.
var _ config.Secrets = (*vault.Client)(nil)

// loadEnv prefers the system-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Secrets + config ────────────────────────────────────────────
	//
	var secrets config.Secrets
	if vault.Enabled() {
		vc, err := vault.New(ctx, nil)
		if err != nil {
			log.Fatalf("vault: %v", err)
		}
		secrets = vc
	}

	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync()

	//
	// ── 2.  Record store ────────────────────────────────────────────────
	//
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logOut.Fatalw("open record store", "driver", cfg.Store.Driver, "err", err)
	}
	defer closeStore()
	logOut.Infow("record store online", "driver", cfg.Store.Driver)

	//
	// ── 3.  Lookup service + change triggers ────────────────────────────
	//
	svc := resolver.New(store, cfg.Cache.Capacity, logOut)
	if _, _, err := svc.Sync(ctx); err != nil {
		logOut.Warnw("initial sync failed", "err", err)
	}

	resync := func(ctx context.Context) {
		if _, _, err := svc.Sync(ctx); err != nil {
			logOut.Warnw("sync failed", "err", err)
		}
	}

	// startTriggers runs the watcher and poller for sc until the returned
	// cancel func is called.
	startTriggers := func(sc config.Sync) context.CancelFunc {
		tctx, cancel := context.WithCancel(ctx)
		if fs, ok := store.(*record.FileStore); ok && sc.Watch {
			go func() {
				if err := watch.Watch(tctx, fs.Path(), sc.Debounce, resync); err != nil {
					logOut.Errorw("store watcher stopped", "path", fs.Path(), "err", err)
				}
			}()
			logOut.Infow("watching record file", "path", fs.Path(), "debounce", sc.Debounce)
		}
		if sc.Interval > 0 {
			go watch.Poll(tctx, sc.Interval, resync)
			logOut.Infow("polling record store", "interval", sc.Interval)
		}
		return cancel
	}
	stopTriggers := startTriggers(cfg.Sync)

	//
	// ── 3b. SIGHUP: reload config, apply log level + sync settings ─────
	//
	// Listen address, store, and capacity are fixed for the process
	// lifetime; changing them needs a restart.
	//
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
			}
			next, err := config.Reload(ctx)
			if err != nil {
				logOut.Warnw("config reload failed, keeping previous", "err", err)
				continue
			}
			if next.Log.Level != "" {
				if err := logger.SetLevel(next.Log.Level); err != nil {
					logOut.Warnw("log level not applied", "level", next.Log.Level, "err", err)
				}
			}
			stopTriggers()
			stopTriggers = startTriggers(next.Sync)
			resync(ctx)
			logOut.Infow("config reloaded", "level", next.Log.Level, "sync", next.Sync)
		}
	}()

	//
	// ── 4.  Optional geo annotation ─────────────────────────────────────
	//
	geoDB, err := geo.Open(cfg.Geo.DBPath)
	if err != nil {
		logOut.Warnw("geo database unavailable", "path", cfg.Geo.DBPath, "err", err)
	}
	defer geoDB.Close()

	//
	// ── 5.  Router + middleware ─────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(middleware.RequestLog(logOut))
	r.Use(middleware.Security)
	r.Mount("/", api.New(svc, geoDB, logOut).Routes())

	var root http.Handler = r
	if cfg.HTTP.ForceHTTPS {
		root = middleware.ForceHTTPS(root)
	}

	//
	// ── 6.  Serve until signalled ───────────────────────────────────────
	//
	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr, "capacity", cfg.Cache.Capacity)
	if err := server.Run(ctx, server.New(cfg.HTTP.ListenAddr, root)); err != nil {
		logOut.Errorw("http server", "err", err)
		return
	}
	logOut.Infow("shut down cleanly")
}

// openStore builds the configured record.Store and returns a close func.
func openStore(ctx context.Context, cfg *config.Config) (record.Store, func(), error) {
	if cfg.Store.Driver == "file" {
		return record.NewFileStore(cfg.StorePath()), func() {}, nil
	}

	dsn, err := database.ExpandDSN(cfg.Store.DSN, cfg.Store.Password)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	s := record.NewSQLStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, func() { db.Close() }, nil
}
