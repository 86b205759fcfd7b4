// internal/record/record.go
//
// Authoritative domain → IP record stores.
//
// Context
// -------
// The resolver consults a Store on cache misses and pulls a full Snapshot
// when it reconciles.  Two implementations live in this package:
//
//   - FileStore – one `domain=ip` record per line in a flat text file.
//   - SQLStore  – a `dns_record` table behind sqlx (MySQL or SQLite).
//
// Both report absence with ErrNotFound and I/O failure with ErrUnavailable,
// so the resolver can treat the two alike for caching and still tell the
// caller which one happened.
//
// Notes
// -----
//   - Upserts are validated with go-playground/validator before they touch
//     the backing medium.
package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned when no record exists for a domain.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable is returned when the backing medium cannot be read or
	// written.  The underlying cause is wrapped alongside it.
	ErrUnavailable = errors.New("record store unavailable")

	// ErrInvalid is returned by Upsert for malformed domains or addresses.
	ErrInvalid = errors.New("invalid record")
)

// Change reports what an Upsert did to the store.
type Change int

const (
	Unchanged Change = iota
	Added
	Updated
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// MarshalText lets Change appear as its name in JSON responses.
func (c Change) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Store is the contract between the resolver and an authoritative store.
type Store interface {
	// Lookup returns the IP for domain, ErrNotFound, or ErrUnavailable.
	Lookup(ctx context.Context, domain string) (string, error)

	// Snapshot returns the complete, consistently read mapping.
	Snapshot(ctx context.Context) (map[string]string, error)

	// Upsert persists a new or changed record.
	Upsert(ctx context.Context, domain, ip string) (Change, error)
}

// Dumper is implemented by stores with a native textual form.  Dump
// writes it verbatim, including lines Snapshot would skip or collapse.
type Dumper interface {
	Dump(ctx context.Context, w io.Writer) error
}

// Record is one domain → IP association as accepted by Upsert.
type Record struct {
	Domain string `db:"domain" validate:"required,hostname_rfc1123"`
	IP     string `db:"ip"     validate:"required,ip"`
}

var v = validator.New()

// Validate returns ErrInvalid wrapped with the first failing field.
func (r Record) Validate() error {
	if err := v.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Fingerprint hashes a snapshot independent of map iteration order.  Equal
// snapshots always produce equal fingerprints.
func Fingerprint(snap map[string]string) uint64 {
	domains := make([]string, 0, len(snap))
	for d := range snap {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	h := xxhash.New()
	for _, d := range domains {
		_, _ = h.WriteString(d)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(snap[d])
		_, _ = h.WriteString("\n")
	}
	return h.Sum64()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
