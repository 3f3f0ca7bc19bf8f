/*
server.go - HTTP router and middleware configuration

ROUTER: chi

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logger:     zap access log (method, path, status, bytes, duration)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard frontend
  5. Auth:       /api/* only; /healthz stays open for probes

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticator and operator context
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterOptions struct {
	Auth        Authenticator
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	auth := opts.Auth
	if auth == nil {
		auth = NewStaticTokens(nil)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(auth))

		r.Post("/receives", h.SubmitReceive)
		r.Get("/receives/{id}/diffs", h.ListReceiveDiffs)
		r.Get("/shipments/{id}/receives", h.ListShipmentReceives)

		r.Route("/diffs", func(r chi.Router) {
			r.Get("/pending", h.ListPendingDiffs)
			r.Post("/{id}/resolve", h.ResolveDiff)
		})

		r.Route("/abnormal", func(r chi.Router) {
			r.Get("/", h.ListAbnormal)
			r.Post("/process", h.ProcessAbnormal)
			r.Get("/{logisticNum}", h.GetAbnormalDetail)
			r.Delete("/{logisticNum}", h.DeleteAbnormal)
			r.Get("/{logisticNum}/history", h.GetAbnormalHistory)
		})

		r.Get("/fifo/layers", h.ListFifoLayers)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
