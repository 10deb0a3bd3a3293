package res

import (
	"encoding/json"
	"net/http"

	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// ErrorResponse is the JSON shape returned for errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// JsonResponse writes a JSON response with the given status.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JsonErrorResponse writes a JSON error response and logs it.
func JsonErrorResponse(w http.ResponseWriter, errResponse ErrorResponse, status int, log *logger.Logger) {
	JsonResponse(w, errResponse, status)
	log.Warnw("Request failed", "status", status, "error", errResponse.Error, "code", errResponse.ErrorCode)
}
