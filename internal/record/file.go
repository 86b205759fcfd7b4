// internal/record/file.go
//
// Flat-file record store.
//
// Context
// -------
// Each line holds one `domain=ip` record, split on the first `=`.  Lines
// without `=` are skipped on read and carried through unchanged on
// rewrite.  When a domain appears more than once the first line wins for
// both Lookup and Snapshot.
//
// New domains are appended.  A changed IP rewrites the whole file into a
// temp sibling and renames it over the original, so a concurrent reader
// sees either the old or the new file, never a torn one.
package record

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore implements Store over a line-oriented text file.
type FileStore struct {
	path string
	mu   sync.Mutex // serializes writers
}

var (
	_ Store  = (*FileStore)(nil)
	_ Dumper = (*FileStore)(nil)
)

// NewFileStore returns a store backed by path.  The file is not opened
// until the first call.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Lookup scans the file for domain.
func (s *FileStore) Lookup(ctx context.Context, domain string) (string, error) {
	var (
		ip    string
		found bool
	)
	err := s.scan(ctx, func(d, v string) bool {
		if d == domain {
			ip, found = v, true
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}
	return ip, nil
}

// Snapshot reads every record in one pass.
func (s *FileStore) Snapshot(ctx context.Context) (map[string]string, error) {
	snap := make(map[string]string)
	err := s.scan(ctx, func(d, v string) bool {
		if _, dup := snap[d]; !dup {
			snap[d] = v
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Upsert appends a new record or rewrites the file with the changed one.
func (s *FileStore) Upsert(ctx context.Context, domain, ip string) (Change, error) {
	if err := (Record{Domain: domain, IP: ip}).Validate(); err != nil {
		return Unchanged, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Lookup(ctx, domain)
	switch {
	case err == nil && current == ip:
		return Unchanged, nil
	case err == nil:
		if err := s.rewrite(domain, ip); err != nil {
			return Unchanged, err
		}
		return Updated, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, os.ErrNotExist):
		// A missing file is created by the first append.
		if err := s.appendRecord(domain, ip); err != nil {
			return Unchanged, err
		}
		return Added, nil
	default:
		return Unchanged, err
	}
}

// Dump copies the file as stored: comments, malformed lines, and
// duplicates included.
func (s *FileStore) Dump(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return unavailable("open "+s.path, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return unavailable("read "+s.path, err)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// scan calls fn for every record line until fn returns false.
func (s *FileStore) scan(ctx context.Context, fn func(domain, ip string) bool) error {
	f, err := os.Open(s.path)
	if err != nil {
		return unavailable("open "+s.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, ip, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		if !fn(d, ip) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return unavailable("read "+s.path, err)
	}
	return nil
}

func (s *FileStore) appendRecord(domain, ip string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return unavailable("open "+s.path, err)
	}
	if _, err := fmt.Fprintf(f, "%s=%s\n", domain, ip); err != nil {
		f.Close()
		return unavailable("append "+s.path, err)
	}
	if err := f.Close(); err != nil {
		return unavailable("close "+s.path, err)
	}
	return nil
}

// rewrite replaces every line for domain and renames the result into place.
func (s *FileStore) rewrite(domain, ip string) error {
	in, err := os.Open(s.path)
	if err != nil {
		return unavailable("open "+s.path, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return unavailable("create temp", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if fi, err := in.Stat(); err == nil {
		_ = tmp.Chmod(fi.Mode().Perm())
	}

	if err := copyReplacing(tmp, in, domain, ip); err != nil {
		tmp.Close()
		return unavailable("rewrite "+s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return unavailable("sync temp", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("close temp", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return unavailable("rename temp", err)
	}
	return nil
}

func copyReplacing(w io.Writer, r io.Reader, domain, ip string) error {
	bw := bufio.NewWriter(w)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if d, _, ok := parseLine(line); ok && d == domain {
			line = domain + "=" + ip
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

func parseLine(line string) (domain, ip string, ok bool) {
	line = strings.TrimRight(line, "\r")
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	return line[:i], line[i+1:], true
}

