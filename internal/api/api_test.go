// internal/api/api_test.go
//
// Route-level tests against a FileStore in a temp directory.

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/yanizio/dnscache/internal/record"
	"github.com/yanizio/dnscache/internal/resolver"
)

func newTestServer(t *testing.T, contents string) (*httptest.Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dns.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write store: %v", err)
	}
	svc := resolver.New(record.NewFileStore(path), resolver.DefaultCapacity, zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(New(svc, nil, nil).Routes())
	t.Cleanup(srv.Close)
	return srv, path
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(raw)
}

func TestResolve(t *testing.T) {
	srv, _ := newTestServer(t, "a.com=1.1.1.1\n")

	resp, body := do(t, http.MethodGet, srv.URL+"/resolve/a.com", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["domain"] != "a.com" || got["ip"] != "1.1.1.1" || got["cached"] != false {
		t.Fatalf("first resolve = %v", got)
	}
	if _, ok := got["country"]; ok {
		t.Fatalf("country present without geo db: %v", got)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/resolve/a.com", "")
	if !strings.Contains(body, `"cached":true`) {
		t.Fatalf("second resolve not cached: %s", body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/resolve/nope.com", "")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "unknown domain") {
		t.Fatalf("miss = %d %s", resp.StatusCode, body)
	}
}

func TestResolve_StoreUnavailable(t *testing.T) {
	srv, path := newTestServer(t, "")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	resp, body := do(t, http.MethodGet, srv.URL+"/resolve/a.com", "")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "record store unavailable") {
		t.Fatalf("got %d %s", resp.StatusCode, body)
	}
}

func TestCacheDump(t *testing.T) {
	srv, _ := newTestServer(t, "a.com=1.1.1.1\nb.com=2.2.2.2\n")

	_, body := do(t, http.MethodGet, srv.URL+"/cache", "")
	if body != "The cache is empty\n" {
		t.Fatalf("empty dump = %q", body)
	}

	do(t, http.MethodGet, srv.URL+"/resolve/b.com", "")
	do(t, http.MethodGet, srv.URL+"/resolve/a.com", "")

	_, body = do(t, http.MethodGet, srv.URL+"/cache", "")
	if body != "b.com = 2.2.2.2\na.com = 1.1.1.1\n" {
		t.Fatalf("dump = %q", body)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/cache/entries", "")
	var got struct {
		Capacity int `json:"capacity"`
		Len      int `json:"len"`
		Entries  []struct {
			Key string `json:"key"`
		} `json:"entries"`
	}
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Capacity != 5 || got.Len != 2 || got.Entries[0].Key != "b.com" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestRecordsAndUpsert(t *testing.T) {
	raw := "b.com=2.2.2.2\n# pinned\na.com=1.1.1.1\nb.com=5.5.5.5\n"
	srv, path := newTestServer(t, raw)

	// The file store is dumped as written, duplicates and comments included.
	_, body := do(t, http.MethodGet, srv.URL+"/records", "")
	if body != raw {
		t.Fatalf("records = %q, want %q", body, raw)
	}

	resp, body := do(t, http.MethodPut, srv.URL+"/records/c.com", `{"ip":"3.3.3.3"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"change":"added"`) {
		t.Fatalf("add = %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, http.MethodPut, srv.URL+"/records/a.com", `{"ip":"9.9.9.9"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"change":"updated"`) {
		t.Fatalf("update = %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, http.MethodPut, srv.URL+"/records/a.com", `{"ip":"9.9.9.9"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"change":"unchanged"`) {
		t.Fatalf("unchanged = %d %s", resp.StatusCode, body)
	}

	stored, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(stored), "a.com=9.9.9.9") || !strings.Contains(string(stored), "c.com=3.3.3.3") {
		t.Fatalf("store file = %q", stored)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/cache", "")
	if body != "c.com = 3.3.3.3\na.com = 9.9.9.9\n" {
		t.Fatalf("cache after upserts = %q", body)
	}
}

func TestUpsert_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, "")

	for _, tc := range []struct{ domain, body string }{
		{"a.com", `not json`},
		{"a.com", `{"ip":"not-an-ip"}`},
		{"bad_domain!", `{"ip":"1.2.3.4"}`},
	} {
		resp, body := do(t, http.MethodPut, srv.URL+"/records/"+tc.domain, tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s %s: status %d, body %s", tc.domain, tc.body, resp.StatusCode, body)
		}
	}
}

func TestReconcile(t *testing.T) {
	srv, path := newTestServer(t, "a.com=1.1.1.1\nb.com=2.2.2.2\n")
	do(t, http.MethodGet, srv.URL+"/resolve/a.com", "")
	do(t, http.MethodGet, srv.URL+"/resolve/b.com", "")

	if err := os.WriteFile(path, []byte("b.com=4.4.4.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	resp, body := do(t, http.MethodPost, srv.URL+"/reconcile", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %s", resp.StatusCode, body)
	}
	var res struct {
		Removed   []string `json:"removed"`
		Refreshed []string `json:"refreshed"`
		Kept      int      `json:"kept"`
	}
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Removed) != 1 || res.Removed[0] != "a.com" || len(res.Refreshed) != 1 || res.Refreshed[0] != "b.com" {
		t.Fatalf("result = %+v", res)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/reconcile", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("missing store: status %d, want 503", resp.StatusCode)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, "")

	if _, body := do(t, http.MethodGet, srv.URL+"/healthz", ""); body != "ok\n" {
		t.Fatalf("healthz = %q", body)
	}
	do(t, http.MethodGet, srv.URL+"/resolve/x.com", "")
	if _, body := do(t, http.MethodGet, srv.URL+"/metrics", ""); !strings.Contains(body, "dnscache_misses_total") {
		t.Fatalf("metrics missing cache counters")
	}
}

func TestRecords_StoreUnavailable(t *testing.T) {
	srv, path := newTestServer(t, "")
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	resp, body := do(t, http.MethodGet, srv.URL+"/records", "")
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(body, "record store unavailable") {
		t.Fatalf("got %d %s", resp.StatusCode, body)
	}
}
