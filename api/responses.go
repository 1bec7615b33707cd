package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeConflict   = "CONFLICT"
	codeDiscovery  = "DISCOVERY_FAILED"
	codeBatch      = "BATCH_FAILED"
	codeInternal   = "INTERNAL"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message, Details: details}})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		var details any
		if len(reqErr.details) > 0 {
			details = reqErr.details
		}
		writeError(w, http.StatusBadRequest, codeValidation, reqErr.message, details)
		return
	}
	writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
}
