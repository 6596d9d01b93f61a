package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/rs/cors"

	"research_intake/config"
)

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request handled",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"duration", time.Since(start).Seconds(),
		)
	})
}

var defaultCorsOptions = cors.Options{
	AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders: []string{"*"},
}

// corsMiddleware allows every origin for "*" and the listed origins
// otherwise. Credentials are only allowed for an explicit list.
func corsMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	opts := defaultCorsOptions
	opts.AllowedOrigins = cfg.AllowedOrigins
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			return cors.New(opts).Handler
		}
	}
	opts.AllowCredentials = true
	return cors.New(opts).Handler
}
