package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sorengranfeldt/mre/internal/api/middleware"
	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/service"
)

// Error kinds let clients tell rule problems apart from server state.
const (
	KindNotInitialized = "not_initialized"
	KindNotSupported   = "not_supported"
	KindConfiguration  = "configuration"
	KindConversion     = "conversion"
)

// ErrorResponse is the body of every failed debug request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("response body was not written")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	writeError(w, r, ErrorResponse{Error: msg}, status)
}

// Err reports an error returned by the provisioning service. The status comes
// from a wrapped service.HTTPError and falls back to 400.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	status := http.StatusBadRequest
	var httpErr *service.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.StatusCode
	}
	writeError(w, r, ErrorResponse{Error: short + ": " + err.Error(), Kind: kindOf(err)}, status)
}

func writeError(w http.ResponseWriter, r *http.Request, resp ErrorResponse, status int) {
	resp.CorrelationID = middleware.CorrelationCtx(r.Context())
	JSON(w, r, resp, status)
}

func kindOf(err error) string {
	var (
		cfgErr  core.ConfigurationError
		convErr core.ConversionError
	)
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		return KindNotInitialized
	case errors.Is(err, core.ErrNotSupported):
		return KindNotSupported
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &convErr):
		return KindConversion
	default:
		return ""
	}
}
