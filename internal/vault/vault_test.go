package vault

import (
	"context"
	"testing"
	"time"
)

func TestSplitMount(t *testing.T) {
	cases := []struct{ in, mount, rel string }{
		{"secret/dnscache", "secret", "dnscache"},
		{"kv/prod/dns/db", "kv", "prod/dns/db"},
		{"secret", "secret", ""},
	}
	for _, tc := range cases {
		m, r := splitMount(tc.in)
		if m != tc.mount || r != tc.rel {
			t.Errorf("splitMount(%q) = %q, %q; want %q, %q", tc.in, m, r, tc.mount, tc.rel)
		}
	}
}

func TestGetKV_ServesFromCache(t *testing.T) {
	c := &Client{cache: map[string]cached{
		"secret/dnscache#db_password": {val: "s3cret", exp: time.Now().Add(time.Minute)},
	}}

	got, err := c.GetKV(context.Background(), "secret/dnscache", "db_password", time.Minute)
	if err != nil || got != "s3cret" {
		t.Fatalf("GetKV = %q, %v", got, err)
	}
}

func TestGetKV_RejectsEmptyArgs(t *testing.T) {
	c := &Client{cache: map[string]cached{}}
	if _, err := c.GetKV(context.Background(), "", "k", 0); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
