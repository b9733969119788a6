package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-file-collector/internal/model"
	"go-file-collector/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, body model.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, model.APIResponse{Success: true, Data: data})
}

func writeSuccessMeta(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	writeJSON(w, status, model.APIResponse{Success: true, Data: data, Meta: meta})
}

// writeError maps service errors onto the response envelope. Typed API
// errors carry their own status and code; known sentinels get stable
// codes; anything else is reported as an internal failure without leaking
// its message.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.HTTPStatus, model.APIResponse{
			Success: false,
			Error:   &model.APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details},
		})
		return
	}

	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, model.APIResponse{
			Success: false,
			Error:   &model.APIError{Code: "NOT_FOUND", Message: "task not found"},
		})
	case errors.Is(err, model.ErrSettingsNotFound):
		writeJSON(w, http.StatusNotFound, model.APIResponse{
			Success: false,
			Error:   &model.APIError{Code: "NOT_FOUND", Message: "settings not found"},
		})
	case errors.Is(err, model.ErrInvalidCredentials), errors.Is(err, model.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, model.APIResponse{
			Success: false,
			Error:   &model.APIError{Code: "UNAUTHORIZED", Message: "unauthorized"},
		})
	case errors.Is(err, model.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, model.APIResponse{
			Success: false,
			Error:   &model.APIError{Code: "BAD_REQUEST", Message: err.Error()},
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, model.APIResponse{
			Success: false,
			Error:   &model.APIError{Code: "INTERNAL_ERROR", Message: "internal server error"},
		})
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.New("BAD_REQUEST", "invalid JSON body", err.Error(), http.StatusBadRequest)
	}
	return nil
}
