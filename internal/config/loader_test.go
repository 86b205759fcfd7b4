package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSecrets map[string]string

func (f fakeSecrets) GetKV(_ context.Context, path, key string, _ time.Duration) (string, error) {
	v, ok := f[path+"#"+key]
	if !ok {
		return "", errors.New("no such secret")
	}
	return v, nil
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "conf"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoadDir_Defaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadDir(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cache.Capacity != 5 {
		t.Fatalf("capacity = %d, want 5", cfg.Cache.Capacity)
	}
	if cfg.Store.Driver != "file" || cfg.StorePath() != filepath.Join(root, "dns.txt") {
		t.Fatalf("store = %+v, path %q", cfg.Store, cfg.StorePath())
	}
	if cfg.Sync.Debounce != 100*time.Millisecond {
		t.Fatalf("debounce = %v", cfg.Sync.Debounce)
	}
	if Get() != cfg {
		t.Fatalf("Get() did not return the loaded config")
	}
}

func TestLoadDir_YAMLAndEnvOverlay(t *testing.T) {
	root := writeYAML(t, `
http:
  listen_addr: "127.0.0.1:9000"
cache:
  capacity: 8
sync:
  interval: 30s
`)
	t.Setenv("DNSCACHE_CACHE__CAPACITY", "3")

	cfg, err := LoadDir(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("listen_addr = %q", cfg.HTTP.ListenAddr)
	}
	if cfg.Cache.Capacity != 3 {
		t.Fatalf("capacity = %d, want env override 3", cfg.Cache.Capacity)
	}
	if cfg.Sync.Interval != 30*time.Second {
		t.Fatalf("interval = %v", cfg.Sync.Interval)
	}
}

func TestLoadDir_RejectsZeroCapacity(t *testing.T) {
	root := writeYAML(t, "cache:\n  capacity: 0\n")
	if _, err := LoadDir(context.Background(), root, nil); err == nil {
		t.Fatalf("expected validation error for capacity 0")
	}
}

func TestLoadDir_RejectsUnknownDriver(t *testing.T) {
	root := writeYAML(t, "store:\n  driver: redis\n")
	if _, err := LoadDir(context.Background(), root, nil); err == nil {
		t.Fatalf("expected validation error for driver redis")
	}
}

func TestLoadDir_VaultReference(t *testing.T) {
	root := writeYAML(t, `
store:
  driver: mysql
  dsn: "dns:%s@tcp(db:3306)/dns"
  password: "vault:secret/dnscache#db_password"
`)
	secrets := fakeSecrets{"secret/dnscache#db_password": "s3cret"}

	cfg, err := LoadDir(context.Background(), root, secrets)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Password != "s3cret" {
		t.Fatalf("password = %q, want resolved secret", cfg.Store.Password)
	}
}

func TestLoadDir_VaultReferenceWithoutClient(t *testing.T) {
	root := writeYAML(t, `
store:
  driver: mysql
  dsn: "dns:%s@tcp(db:3306)/dns"
  password: "vault:secret/dnscache#db_password"
`)
	if _, err := LoadDir(context.Background(), root, nil); err == nil {
		t.Fatalf("expected error when no vault client is configured")
	}
}

func TestLoadDir_RejectsDoubleVerbDSN(t *testing.T) {
	root := writeYAML(t, `
store:
  driver: mysql
  dsn: "%s:%s@tcp(db:3306)/dns"
`)
	if _, err := LoadDir(context.Background(), root, nil); err == nil {
		t.Fatalf("expected error for dsn with two verbs")
	}
}

func TestReload_PicksUpYAMLChanges(t *testing.T) {
	root := writeYAML(t, "log:\n  level: info\nsync:\n  interval: 10s\n")
	first, err := LoadDir(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	body := "log:\n  level: debug\nsync:\n  interval: 1m\n"
	if err := os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	next, err := Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if next.Log.Level != "debug" || next.Sync.Interval != time.Minute {
		t.Fatalf("reloaded = %+v / %+v", next.Log, next.Sync)
	}
	if Get() != next || Get() == first {
		t.Fatalf("Get() not swapped to reloaded config")
	}

	// A broken file keeps the previous config current.
	if err := os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte("cache:\n  capacity: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Reload(context.Background()); err == nil {
		t.Fatalf("expected validation error")
	}
	if Get() != next {
		t.Fatalf("failed reload replaced the current config")
	}
}
