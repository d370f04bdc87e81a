package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// quietPaths are only logged when they fail.
var quietPaths = map[string]struct{}{
	"/healthz": {},
}

// LoggingMiddleware puts a request scoped logger into the context and logs
// each handled request at a level derived from its status.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()

		logger := log.With().
			Str("correlation_id", CorrelationCtx(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))

		if _, quiet := quietPaths[r.URL.Path]; quiet && rec.status < http.StatusBadRequest {
			return
		}
		logger.WithLevel(levelFor(rec.status)).
			Int("status", rec.status).
			Int("bytes", rec.written).
			Str("remote", r.RemoteAddr).
			Dur("took", time.Since(began)).
			Msg("debug request handled")
	})
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// RecoverMiddleware answers a panicking handler with a JSON 500 that carries
// the correlation id, so the failed request can be found in the logs.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			// when this runs outside the correlation middleware the id is
			// only left on the response headers
			id := CorrelationCtx(r.Context())
			if id == "" {
				id = w.Header().Get(CorrelationIDHeader)
			}
			log.Error().
				Str("correlation_id", id).
				Str("path", r.URL.Path).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":          "internal server error",
				"correlation_id": id,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// responseRecorder remembers the status and body size written by a handler.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.status = code
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	n, err := rr.ResponseWriter.Write(b)
	rr.written += n
	return n, err
}

func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}
