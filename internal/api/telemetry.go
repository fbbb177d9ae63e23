package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kalambet/relaybot/internal/relay"
	"github.com/kalambet/relaybot/internal/storage"
	"github.com/kalambet/relaybot/internal/telemetry"
)

// LatestResponse is the body of GET /latest when a reading exists.
type LatestResponse struct {
	Bot       string `json:"bot"`
	Left      int    `json:"left"`
	Right     int    `json:"right"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

func newLatestResponse(rec storage.Record) LatestResponse {
	return LatestResponse{
		Bot:       rec.BotID,
		Left:      rec.LeftSpeed,
		Right:     rec.RightSpeed,
		State:     rec.State,
		Timestamp: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func handleIngest(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeStatus(w, http.StatusRequestEntityTooLarge, "payload too large")
				return
			}
			writeStatus(w, http.StatusBadRequest, "invalid json")
			return
		}

		origin := telemetry.OriginDevice
		if r.Header.Get(relay.ForwardedHeader) != "" {
			origin = telemetry.OriginPeer
		}

		_, err = deps.Telemetry.Ingest(r.Context(), raw, origin)
		var fieldErr *telemetry.FieldError
		switch {
		case err == nil:
			writeStatus(w, http.StatusOK, "ok")
		case errors.Is(err, telemetry.ErrMalformedInput):
			writeStatus(w, http.StatusBadRequest, "invalid json")
		case errors.As(err, &fieldErr):
			writeJSON(w, http.StatusBadRequest, statusResponse{Status: fieldErr.Err.Error(), Field: fieldErr.Field})
		default:
			logger.ErrorContext(r.Context(), "ingest failed", "error", err)
			writeStatus(w, http.StatusInternalServerError, "storage error")
		}
	}
}

func handleLatest(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Telemetry.Latest(r.Context())
		if errors.Is(err, telemetry.ErrNoData) {
			writeStatus(w, http.StatusOK, "no data yet")
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "reading latest failed", "error", err)
			writeStatus(w, http.StatusInternalServerError, "storage error")
			return
		}
		writeJSON(w, http.StatusOK, newLatestResponse(rec))
	}
}
