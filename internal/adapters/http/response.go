package http

import (
	"encoding/json"
	"net/http"

	"github.com/keygate/license-service/internal/application"
	"github.com/keygate/license-service/internal/domain"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// writeDecision maps a verification outcome to its HTTP status. Denials are
// valid responses, not errors, so they carry the decision payload.
func writeDecision(w http.ResponseWriter, res application.VerifyResult) {
	writeJSON(w, decisionStatus(res.Decision), res)
}

func decisionStatus(d domain.Decision) int {
	switch d {
	case domain.DecisionAllowed:
		return http.StatusOK
	case domain.DecisionNotFound:
		return http.StatusNotFound
	case domain.DecisionSoftwareDenied, domain.DecisionBlocked, domain.DecisionExpired, domain.DecisionDeniedIPMismatch:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
