// Package api exposes the record store over HTTP: uploads, listings,
// deletions, store queries and the recipe costing report. It also serves the
// embedded front-end.
package api

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/larder/costing"
	"github.com/hazyhaar/larder/docpipe"
	"github.com/hazyhaar/larder/ingest"
	"github.com/hazyhaar/larder/journal"
	"github.com/hazyhaar/larder/shield"
	"github.com/hazyhaar/larder/warehouse"
)

//go:embed static
var staticFS embed.FS

// multipartOverhead is the slack allowed on top of the upload cap for the
// multipart envelope.
const multipartOverhead = 1 << 20

// Server wires the HTTP surface to the ingest pipeline and the store.
type Server struct {
	ing       *ingest.Ingester
	store     *warehouse.Store
	journal   *journal.Journal
	calc      *costing.Calculator
	maxUpload int64
	logger    *slog.Logger
	started   time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithJournal exposes the ingest journal on /api/journal.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxUpload sets the upload cap in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// New creates a server.
func New(ing *ingest.Ingester, calc *costing.Calculator, opts ...Option) *Server {
	s := &Server{
		ing:       ing,
		store:     ing.Store(),
		calc:      calc,
		maxUpload: 20 << 20,
		logger:    slog.Default(),
		started:   time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.maxUpload + multipartOverhead) {
		r.Use(mw)
	}
	r.Use(recoverer)

	r.Get("/health", s.handleHealth)

	static, _ := fs.Sub(staticFS, "static")
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "index.html")
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)

		r.Get("/recipes", s.handleRecipes)
		r.Get("/recipes/{id}", s.handleRecipe)
		r.Delete("/recipes/{id}", s.handleDeleteRecipe)

		r.Get("/prices", s.handlePrices)
		r.Delete("/prices/{id}", s.handleDeletePrice)

		r.Get("/imports", s.handleImports)
		r.Get("/journal", s.handleJournal)
		r.Get("/warehouse", s.handleWarehouse)
		r.Get("/calculate", s.handleCalculate)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	return r
}

// statusFor maps pipeline and store errors to HTTP status codes.
func statusFor(err error) int {
	var pe *docpipe.ParseError
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, docpipe.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrTooLarge), errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, warehouse.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, costing.ErrInvalidDate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// recoverer turns a handler panic into a JSON 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				shield.GetLogger(r.Context()).Error("panic", "panic", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
