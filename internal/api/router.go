package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/relaybot/internal/storage"
	"github.com/kalambet/relaybot/internal/telemetry"
)

const maxRequestBodySize = 1 << 20 // 1MB

// TelemetryService is the reading contract the handlers serve.
type TelemetryService interface {
	Ingest(ctx context.Context, raw []byte, origin telemetry.Origin) (storage.Record, error)
	Latest(ctx context.Context) (storage.Record, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Telemetry TelemetryService
	Health    Pinger       // optional; nil reports healthy
	Token     string       // ingest bearer token; empty disables auth
	Logger    *slog.Logger // optional
}

// NewHandler returns the relay's HTTP surface.
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "api")

	r := chi.NewRouter()
	r.Use(RequestContext(logger))

	r.With(BearerAuth(deps.Token)).Post("/relaybot-data", handleIngest(deps, logger))
	r.Get("/latest", handleLatest(deps, logger))
	r.Get("/health", handleHealth(deps))

	r.Get("/", handleHome)
	r.Get("/dashboard", handlePage("dashboard.html"))
	r.Get("/team", handlePage("team.html"))
	r.Get("/network", handlePage("network.html"))

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health.Ping(r.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "storage unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ok")
	}
}
