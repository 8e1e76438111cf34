package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webhookd/internal/worker"
	"webhookd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Enqueue(kind string, payload worker.Payload) worker.Event
	Stats() worker.Stats
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(AccessLog)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// GitLab posts to the root path; /webhook is the documented alias.
	r.Post("/", handleWebhook(svc))
	r.Post("/webhook", handleWebhook(svc))

	r.Get("/status", handleStatus(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() && !shuttingDown() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("stopping"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleStatus godoc
// @Summary      Worker status
// @Description  Queue depth, lifecycle state and pending deferred checks.
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statusResponse(svc.Stats())); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	}
}

func statusResponse(st worker.Stats) types.StatusResponse {
	checks := make([]types.DeferredCheckStatus, 0, len(st.DeferredChecks))
	for _, c := range st.DeferredChecks {
		checks = append(checks, types.DeferredCheckStatus{
			Key:         c.Key,
			ScheduledAt: c.ScheduledAt.Unix(),
			Tries:       c.Tries,
		})
	}
	return types.StatusResponse{
		State:          st.State.String(),
		QueueDepth:     st.QueueDepth,
		Processed:      st.Processed,
		Dropped:        st.Dropped,
		Handlers:       append([]string{}, st.HandlerNames...),
		DeferredChecks: checks,
		StartedAt:      st.StartedAt.Unix(),
	}
}
