package weighlink

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is a point-in-time view of the gateway.
type Status struct {
	Online     bool     `json:"online"`
	Sink       string   `json:"sink,omitempty"`
	Pending    bool     `json:"pending"`
	QueueLen   int      `json:"queue_len"`
	Collectors []string `json:"collectors"`
	// Running are the collectors started so far; the rest are being retried.
	Running []string `json:"running"`
}

// opsHandler serves /healthz always and /metrics when a registry is available.
func (g *Gateway) opsHandler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(g.Status())
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
