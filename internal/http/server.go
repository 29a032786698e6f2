package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/cache"
	"tally/internal/core"
)

// DatasetService is the application surface the HTTP layer exposes.
type DatasetService interface {
	Load(ctx context.Context) (core.Dataset, int64, error)
	Overview(ctx context.Context) (core.Overview, error)
	Revision(ctx context.Context) (int64, error)

	AddCategory(ctx context.Context, name string) (core.Category, error)
	RenameCategory(ctx context.Context, id uuid.UUID, name string) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	AddItem(ctx context.Context, categoryID uuid.UUID, amount decimal.Decimal, description string) (core.ExpenseItem, error)
	DeleteItem(ctx context.Context, categoryID, itemID uuid.UUID) error

	ExportImage(ctx context.Context, strategyName string) ([]byte, int64, error)
	ExportText(ctx context.Context) ([]byte, error)
	ImportImage(ctx context.Context, data []byte) (int64, error)
	ImportScanned(ctx context.Context, raw []byte) (int64, error)
	ImportText(ctx context.Context, data []byte) (int64, error)
}

type Server struct {
	http.Server
	service DatasetService
	limiter *writeLimiter

	// Rendered export images, keyed by dataset revision and strategy.
	renders *cache.RenderCache

	maxImportBytes int64
	metrics        securityMetrics
	shutdownOnce   sync.Once
}

// NewServer configures routes and returns a ready-to-run http.Server.
// maxImportBytes caps the body size of import requests and writesPerMinute
// caps mutating requests per client IP; zero selects the defaults.
func NewServer(addr string, svc DatasetService, renders *cache.RenderCache, maxImportBytes int64, writesPerMinute int) *Server {
	if renders == nil {
		renders = cache.NewRenderCache(32<<20, 10*time.Minute)
	}
	if maxImportBytes <= 0 {
		maxImportBytes = 10 << 20
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		service:        svc,
		limiter:        newWriteLimiter(writesPerMinute),
		renders:        renders,
		maxImportBytes: maxImportBytes,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.withAPIHeaders(s.handleReady))

	mux.HandleFunc("GET /api/categories", s.withAPIHeaders(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withAPIHeaders(s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.withAPIHeaders(s.handleRenameCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withAPIHeaders(s.handleDeleteCategory))
	mux.HandleFunc("POST /api/categories/{id}/items", s.withAPIHeaders(s.handleCreateItem))
	mux.HandleFunc("DELETE /api/categories/{id}/items/{itemID}", s.withAPIHeaders(s.handleDeleteItem))
	mux.HandleFunc("GET /api/overview", s.withAPIHeaders(s.handleOverview))

	mux.HandleFunc("GET /api/export/image", s.withAPIHeaders(s.handleExportImage))
	mux.HandleFunc("GET /api/export/text", s.withAPIHeaders(s.handleExportText))
	mux.HandleFunc("POST /api/import/image", s.withAPIHeaders(s.handleImportImage))
	mux.HandleFunc("POST /api/import/scan", s.withAPIHeaders(s.handleImportScanned))
	mux.HandleFunc("POST /api/import/text", s.withAPIHeaders(s.handleImportText))

	return s
}

// withAPIHeaders adds security headers, rate limiting, and request logging.
func (s *Server) withAPIHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if !s.limiter.allow(r.Method, clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Revision(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
