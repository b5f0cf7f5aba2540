package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"golang.org/x/time/rate"

	"github.com/regionpulse/regionpulse/server/internal/compute"
	"github.com/regionpulse/regionpulse/server/internal/dataset"
	"github.com/regionpulse/regionpulse/server/internal/metrics"
)

// Banner is the message served at GET /.
const Banner = "regionpulse latency API"

// Options configures a Handler.
type Options struct {
	// DefaultThresholdMs applies when a request omits threshold_ms.
	DefaultThresholdMs float64

	// Metrics records request and lookup counters. Nil disables them.
	Metrics *metrics.Metrics

	// AllowedOrigins feeds the CORS policy. Empty means ["*"].
	AllowedOrigins []string

	// RateLimit and Burst configure the token bucket in front of /api and
	// /ws routes. A zero RateLimit disables limiting.
	RateLimit float64
	Burst     int
}

// Handler is the HTTP handler for the regionpulse API.
// The dataset is published with SetDataset once loaded; until then queries
// are answered with 503.
type Handler struct {
	opts      Options
	router    chi.Router
	root      http.Handler
	limiter   *rate.Limiter
	store     atomic.Pointer[dataset.Store]
	threshold atomic.Uint64 // math.Float64bits of the default threshold
}

// New creates a Handler and registers all routes.
func New(opts Options) *Handler {
	h := &Handler{opts: opts, router: chi.NewRouter()}
	h.SetDefaultThreshold(opts.DefaultThresholdMs)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	r := h.router
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(h.observe)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/", h.banner)
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/latency", h.latency)
		r.Get("/regions", h.regions)
		r.Get("/regions/{region}/distribution", h.distribution)
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h.root = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)(h.router)

	return h
}

// Handle registers an extra GET endpoint such as /metrics or the WebSocket
// stream. Handlers mounted under /ws share the API rate limit.
func (h *Handler) Handle(pattern string, handler http.Handler) {
	if strings.HasPrefix(pattern, "/ws") {
		handler = h.rateLimit(handler)
	}
	h.router.Method(http.MethodGet, pattern, handler)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// SetDataset publishes the loaded dataset. Passing an empty store marks the
// service as loaded but unavailable.
func (h *Handler) SetDataset(st *dataset.Store) {
	h.store.Store(st)
}

// Dataset returns the published dataset, or nil while loading.
func (h *Handler) Dataset() *dataset.Store {
	return h.store.Load()
}

// SetDefaultThreshold changes the threshold used when a request omits one.
func (h *Handler) SetDefaultThreshold(ms float64) {
	h.threshold.Store(math.Float64bits(ms))
}

// DefaultThreshold returns the threshold used when a request omits one.
func (h *Handler) DefaultThreshold() float64 {
	return math.Float64frombits(h.threshold.Load())
}

// --- route handlers ---------------------------------------------------------

// banner returns GET /: service identification.
func (h *Handler) banner(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, bannerResponse{Message: Banner})
}

// healthz returns GET /healthz: process liveness, independent of the dataset.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// readyz returns GET /readyz: 200 once a non-empty dataset is loaded.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	st := h.store.Load()
	switch {
	case st == nil:
		jsonErr(w, http.StatusServiceUnavailable, ErrNotReady.Error())
	case st.Empty():
		jsonErr(w, http.StatusServiceUnavailable, compute.ErrDatasetUnavailable.Error())
	default:
		jsonResp(w, http.StatusOK, StatusResponse{Status: "ready", Records: st.Len()})
	}
}

// latency returns POST /api/v1/latency: per-region summary statistics.
func (h *Handler) latency(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeLatencyRequest(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		writeQueryErr(w, r, err)
		return
	}

	resp, err := h.Query(req)
	if err != nil {
		writeQueryErr(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// regions returns GET /api/v1/regions: the regions present in the dataset.
func (h *Handler) regions(w http.ResponseWriter, r *http.Request) {
	st := h.store.Load()
	if st == nil {
		jsonErr(w, http.StatusServiceUnavailable, ErrNotReady.Error())
		return
	}
	jsonResp(w, http.StatusOK, RegionsResponse{
		Regions:  st.Regions(),
		Records:  st.Len(),
		Source:   st.Source(),
		LoadedAt: st.LoadedAt().UTC().Format(time.RFC3339),
	})
}

// distribution returns GET /api/v1/regions/{region}/distribution: sketch
// quantiles for one region; 404 if the region has no records.
func (h *Handler) distribution(w http.ResponseWriter, r *http.Request) {
	st := h.store.Load()
	if st == nil {
		jsonErr(w, http.StatusServiceUnavailable, ErrNotReady.Error())
		return
	}

	region := chi.URLParam(r, "region")
	d, ok := st.Distribution(region)
	if !ok {
		jsonErr(w, http.StatusNotFound, "region not found")
		return
	}
	jsonResp(w, http.StatusOK, DistributionResponse{
		Region:       region,
		Distribution: d,
		Approximate:  true,
	})
}

// --- helpers ----------------------------------------------------------------

// StatusFor maps a query error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReady), errors.Is(err, compute.ErrDatasetUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeQueryErr(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.Error("api: query failed", "err", err, "request_id", RequestID(r.Context()))
		msg = "internal error"
	}
	jsonErr(w, code, msg)
}

// jsonResp encodes v before writing the status so an unencodable value
// becomes a 500 instead of a truncated success.
func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("api: encode response", "err", err)
		code = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: "internal error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(body, '\n')) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
