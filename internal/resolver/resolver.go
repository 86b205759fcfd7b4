// internal/resolver/resolver.go
//
// Lookup service that fronts a record.Store with an LRU cache.
//
// Context
// -------
// Resolve answers from the cache when it can.  On a miss it asks the store
// and caches the answer only when the store has one; misses are never
// cached, so a repeated lookup for an unknown domain reaches the store
// again.  Concurrent misses for one domain share a single store query
// through singleflight.
//
// Reconcile and Sync pull a full snapshot from the store and hand it to
// cache.Reconcile.  Sync skips the pass when the snapshot fingerprint
// matches the last one applied and no lookup or upsert has written the
// cache since; the file watcher and the poller call it.
//
// Notes
// -----
//   - The LRU itself is unsynchronized.  mu covers every cache operation
//     from start to finish and is never held across store I/O.
//   - Upsert and reconcile passes are authoritative writes.  They bump a
//     generation counter, and a miss whose store read straddles one does
//     not cache its possibly older answer.
//   - A store failure on the miss path is reported as ErrNotFound with
//     record.ErrUnavailable wrapped alongside, and the cache is untouched.
package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/dnscache/internal/cache"
	"github.com/yanizio/dnscache/internal/metrics"
	"github.com/yanizio/dnscache/internal/record"
)

// DefaultCapacity matches the reference configuration.
const DefaultCapacity = 5

// ErrNotFound is returned when neither the cache nor the store knows a
// domain.  When the store could not be read the error also matches
// record.ErrUnavailable.
var ErrNotFound = errors.New("domain not found")

// Answer is the outcome of a successful Resolve.
type Answer struct {
	Domain string `json:"domain"`
	IP     string `json:"ip"`
	Cached bool   `json:"cached"`
}

// Service owns one LRU and the store behind it.
type Service struct {
	store record.Store
	log   *zap.SugaredLogger
	sfg   singleflight.Group

	// wmu serializes authoritative writes (Upsert and reconcile passes)
	// so the cache sees them in the order the store did.
	wmu sync.Mutex

	mu     sync.Mutex
	lru    *cache.LRU
	gen    uint64 // bumped by every authoritative write
	dirty  bool   // cache written since the last reconcile pass
	synced bool
	lastFP uint64
}

// New builds a Service with an empty cache of the given capacity.  Panics
// on capacity < 1, like cache.New.
func New(store record.Store, capacity int, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		store: store,
		log:   log,
		lru:   cache.New(capacity),
	}
}

/*──────────────────────────── lookups ─────────────────────────────────────*/

// Resolve returns the IP for domain, loading it from the store on a miss.
func (s *Service) Resolve(ctx context.Context, domain string) (Answer, error) {
	s.mu.Lock()
	ip, ok := s.lru.Get(domain)
	s.mu.Unlock()
	if ok {
		metrics.CacheHitsTotal.Inc()
		return Answer{Domain: domain, IP: ip, Cached: true}, nil
	}
	metrics.CacheMissesTotal.Inc()

	v, err, _ := s.sfg.Do(domain, func() (any, error) {
		// Double-check after singleflight barrier.
		s.mu.Lock()
		ip, ok := s.lru.Peek(domain)
		gen := s.gen
		s.mu.Unlock()
		if ok {
			return ip, nil
		}

		ip, err := s.store.Lookup(ctx, domain)
		if err != nil {
			return "", err
		}
		return s.fill(domain, ip, gen), nil
	})
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return Answer{}, ErrNotFound
		}
		metrics.StoreErrorsTotal.Inc()
		s.log.Warnw("record store lookup failed", "domain", domain, "err", err)
		return Answer{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return Answer{Domain: domain, IP: v.(string)}, nil
}

// fill caches a value read on the miss path and returns the value to
// serve.  A resident entry wins over ip.  When an authoritative write
// landed after gen was captured, ip may predate it and is not cached.
func (s *Service) fill(domain, ip string, gen uint64) string {
	s.mu.Lock()
	if cur, ok := s.lru.Peek(domain); ok {
		s.mu.Unlock()
		return cur
	}
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Debugw("skipped caching superseded lookup", "domain", domain, "ip", ip)
		return ip
	}
	ev, evicted := s.lru.Put(domain, ip)
	s.dirty = true
	n := s.lru.Len()
	s.mu.Unlock()

	s.observePut(domain, ev, evicted, n)
	return ip
}

// Upsert writes domain → ip to the store and then to the cache, promoting
// or inserting the entry as most recently used.
func (s *Service) Upsert(ctx context.Context, domain, ip string) (record.Change, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	ch, err := s.store.Upsert(ctx, domain, ip)
	if err != nil {
		if !errors.Is(err, record.ErrInvalid) {
			metrics.StoreErrorsTotal.Inc()
			s.log.Warnw("record store upsert failed", "domain", domain, "err", err)
		}
		return record.Unchanged, err
	}
	metrics.UpsertsTotal.WithLabelValues(ch.String()).Inc()
	s.log.Infow("record upserted", "domain", domain, "ip", ip, "change", ch.String())

	s.mu.Lock()
	ev, evicted := s.lru.Put(domain, ip)
	s.gen++
	s.dirty = true
	n := s.lru.Len()
	s.mu.Unlock()

	s.observePut(domain, ev, evicted, n)
	return ch, nil
}

func (s *Service) observePut(domain string, ev cache.Entry, evicted bool, n int) {
	metrics.CacheEntries.Set(float64(n))
	if evicted {
		metrics.CacheEvictionsTotal.Inc()
		s.log.Debugw("cache eviction", "domain", ev.Key, "ip", ev.Value, "for", domain)
	}
}

/*──────────────────────────── reconciliation ──────────────────────────────*/

// Reconcile always applies a fresh snapshot.  When the snapshot cannot be
// read the error is returned and the cache is left as it was.
func (s *Service) Reconcile(ctx context.Context) (cache.Result, error) {
	res, _, err := s.reconcile(ctx, true)
	return res, err
}

// Sync is Reconcile that skips a snapshot identical to the last one
// applied, provided nothing has written the cache since.  It reports
// whether a pass actually ran.
func (s *Service) Sync(ctx context.Context) (cache.Result, bool, error) {
	return s.reconcile(ctx, false)
}

func (s *Service) reconcile(ctx context.Context, force bool) (cache.Result, bool, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		s.log.Warnw("record store snapshot failed", "err", err)
		return cache.Result{}, false, err
	}
	fp := record.Fingerprint(snap)

	s.mu.Lock()
	if !force && s.synced && !s.dirty && fp == s.lastFP {
		s.mu.Unlock()
		return cache.Result{}, false, nil
	}
	res := cache.Reconcile(s.lru, snap)
	s.gen++
	s.synced, s.dirty, s.lastFP = true, false, fp
	n := s.lru.Len()
	s.mu.Unlock()

	metrics.CacheEntries.Set(float64(n))
	metrics.ReconcileRunsTotal.Inc()
	metrics.ReconcileRemovedTotal.Add(float64(len(res.Removed)))
	metrics.ReconcileRefreshedTotal.Add(float64(len(res.Refreshed)))
	s.log.Infow("cache reconciled",
		"removed", res.Removed,
		"refreshed", res.Refreshed,
		"kept", res.Kept,
		"upstream", len(snap),
	)
	return res, true, nil
}

/*──────────────────────────── diagnostics ─────────────────────────────────*/

// Entries returns the resident entries oldest first.
func (s *Service) Entries() []cache.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Entries()
}

// Dump writes the cache as "key = value" lines, oldest first.
func (s *Service) Dump(w io.Writer) error {
	var buf bytes.Buffer
	s.mu.Lock()
	err := s.lru.Dump(&buf)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Capacity reports the fixed cache capacity.
func (s *Service) Capacity() int { return s.lru.Cap() }

// DumpRecords writes the store's records without touching the cache.  A
// record.Dumper writes its native form; any other store is written as
// sorted "domain=ip" lines.  Nothing reaches w when the store fails.
func (s *Service) DumpRecords(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	if d, ok := s.store.(record.Dumper); ok {
		if err := d.Dump(ctx, &buf); err != nil {
			return err
		}
	} else {
		snap, err := s.store.Snapshot(ctx)
		if err != nil {
			return err
		}
		domains := make([]string, 0, len(snap))
		for d := range snap {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		for _, d := range domains {
			fmt.Fprintf(&buf, "%s=%s\n", d, snap[d])
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}
