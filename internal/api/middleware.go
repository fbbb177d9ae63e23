package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/relaybot/internal/requestid"
)

const maxRequestIDLen = 128

// RequestContext tags each request with an id (taken from X-Request-ID or
// generated), recovers panics as 500s and writes one access log line.
func RequestContext(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestid.Header)
			if id == "" || len(id) > maxRequestIDLen {
				id = requestid.New()
			}
			w.Header().Set(requestid.Header, id)
			ctx := requestid.With(r.Context(), id)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.ErrorContext(ctx, "panic serving request",
						"request_id", id,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					if ww.Status() == 0 {
						writeStatus(ww, http.StatusInternalServerError, "internal error")
					}
				}

				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelDebug
				if status >= 500 {
					level = slog.LevelWarn
				}
				logger.Log(ctx, level, "request",
					"request_id", id,
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
