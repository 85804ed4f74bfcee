package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Geetk172/archestra/internal/storage"
	"github.com/Geetk172/archestra/pkg/models"
)

// writeAPIError writes the uniform error body {error:{message,type}}.
func writeAPIError(w http.ResponseWriter, status int, errType models.ErrorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.NewAPIError(errType, message))
}

// writeStoreError maps storage sentinels to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, models.ErrorTypeNotFound, "resource not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		writeAPIError(w, http.StatusConflict, models.ErrorTypeInvalidRequest, "resource already exists")
	case errors.Is(err, storage.ErrTaintReasonRequired),
		errors.Is(err, storage.ErrInvalidMaxRounds):
		writeAPIError(w, http.StatusBadRequest, models.ErrorTypeInvalidRequest, err.Error())
	default:
		writeAPIError(w, http.StatusInternalServerError, models.ErrorTypeAPI, "internal error")
	}
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes a request body. Unknown fields are tolerated;
// completion bodies round-trip them to the upstream untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
