package middleware

import (
	"net/http"
	apperrors "noqbot/pkg/errors"
	httputil "noqbot/pkg/http"
	"noqbot/pkg/logger"
)

// MaxRequestSize rejects bodies declared larger than maxBytes and caps the
// reader for the rest.
func MaxRequestSize(maxBytes int64, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				log.Warn("Request body too large",
					"request_id", RequestIDFromContext(r.Context()),
					"content_length", r.ContentLength,
					"max_bytes", maxBytes,
					"path", r.URL.Path,
				)
				_ = httputil.WriteError(w, apperrors.PayloadTooLarge(maxBytes))
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}

			next.ServeHTTP(w, r)
		})
	}
}
