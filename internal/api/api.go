// internal/api/api.go
//
// Admin HTTP surface for the lookup service.
//
// Context
// -------
// The resolver is driven over plain HTTP.  Every route is a thin adapter
// around one resolver.Service method: decode the path or body, call the
// service, and encode the outcome as JSON or text.
//
//	GET  /resolve/{domain}   JSON answer, 404 on miss
//	GET  /cache              "key = value" lines, oldest first
//	GET  /cache/entries      JSON entries plus capacity
//	GET  /records            the store's records as text
//	PUT  /records/{domain}   upsert {"ip": "..."}
//	POST /reconcile          force a reconciliation pass
//	GET  /healthz            liveness
//	GET  /metrics            Prometheus exposition
//
// Notes
// -----
// • Middleware (request log, security headers, HTTPS redirect) is applied
//   by the caller so tests can exercise handlers bare.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/dnscache/internal/cache"
	"github.com/yanizio/dnscache/internal/geo"
	"github.com/yanizio/dnscache/internal/record"
	"github.com/yanizio/dnscache/internal/resolver"
)

// emptyCache is printed by GET /cache when nothing is resident.
const emptyCache = "The cache is empty\n"

// maxBody caps PUT payloads.
const maxBody = 4 << 10

// Handler serves the admin API for one Service.
type Handler struct {
	svc *resolver.Service
	geo *geo.Reader
	log *zap.SugaredLogger
}

// New returns a Handler.  geo may be nil; log may be nil.
func New(svc *resolver.Service, g *geo.Reader, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, geo: g, log: log}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/resolve/{domain}", h.handleResolve)
	r.Get("/cache", h.handleCacheDump)
	r.Get("/cache/entries", h.handleCacheEntries)
	r.Get("/records", h.handleRecords)
	r.Put("/records/{domain}", h.handleUpsert)
	r.Post("/reconcile", h.handleReconcile)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok\n")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

/*──────────────────────────── payloads ────────────────────────────────────*/

type resolveResponse struct {
	resolver.Answer
	Country string `json:"country,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type entriesResponse struct {
	Capacity int           `json:"capacity"`
	Len      int           `json:"len"`
	Entries  []cache.Entry `json:"entries"`
}

type upsertRequest struct {
	IP string `json:"ip"`
}

type upsertResponse struct {
	Domain string        `json:"domain"`
	IP     string        `json:"ip"`
	Change record.Change `json:"change"`
}

/*──────────────────────────── handlers ────────────────────────────────────*/

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	ans, err := h.svc.Resolve(r.Context(), domain)
	if err != nil {
		reason := "unknown domain"
		if errors.Is(err, record.ErrUnavailable) {
			reason = "record store unavailable"
		}
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Reason: reason})
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Answer: ans, Country: h.geo.Country(ans.IP)})
}

func (h *Handler) handleCacheDump(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if len(h.svc.Entries()) == 0 {
		io.WriteString(w, emptyCache)
		return
	}
	if err := h.svc.Dump(w); err != nil {
		h.log.Debugw("cache dump write failed", "err", err)
	}
}

func (h *Handler) handleCacheEntries(w http.ResponseWriter, _ *http.Request) {
	entries := h.svc.Entries()
	if entries == nil {
		entries = []cache.Entry{}
	}
	writeJSON(w, http.StatusOK, entriesResponse{
		Capacity: h.svc.Capacity(),
		Len:      len(entries),
		Entries:  entries,
	})
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.DumpRecords(r.Context(), &buf); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "record store unavailable", Reason: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	var req upsertRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request", Reason: "body must be {\"ip\": \"...\"}"})
		return
	}

	ch, err := h.svc.Upsert(r.Context(), domain, req.IP)
	switch {
	case errors.Is(err, record.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid record", Reason: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "record store unavailable", Reason: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{Domain: domain, IP: req.IP, Change: ch})
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Reconcile(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "record store unavailable", Reason: err.Error()})
		return
	}
	if res.Removed == nil {
		res.Removed = []string{}
	}
	if res.Refreshed == nil {
		res.Refreshed = []string{}
	}
	writeJSON(w, http.StatusOK, res)
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
