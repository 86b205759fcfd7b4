//
//  internal/geo/geo.go
//
//  Best-effort country lookup for resolved IP addresses.
//
//  The resolve endpoint annotates each answer with the ISO country of the
//  IP when a GeoLite2 (Country or City) database is configured.  Without
//  one, or for private and unknown addresses, Country returns "".
//
//  Dependencies
//  • github.com/oschwald/geoip2-golang (MaxMind lookup)
//

package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Reader wraps a MaxMind handle.  A nil *Reader is valid and disabled.
// Safe for concurrent reads, which is all we ever perform.
type Reader struct {
	db *geoip2.Reader
}

// Open loads the database at path.  An empty path yields a nil Reader.
func Open(path string) (*Reader, error) {
	if path == "" {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

// Country returns the ISO country code for ip, or "".
func (r *Reader) Country(ip string) string {
	if r == nil || r.db == nil {
		return ""
	}
	addr := net.ParseIP(ip)
	if addr == nil || addr.IsPrivate() || addr.IsLoopback() {
		return ""
	}
	rec, err := r.db.Country(addr)
	if err != nil {
		return ""
	}
	return rec.Country.IsoCode
}

// Close releases the underlying database.
func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
