// Package handlers exposes the CareSync services over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// writeError maps a service error to its status code. Only the user-facing
// message is sent; the wrapped cause is logged by the service.
func writeError(w http.ResponseWriter, err error) {
	kind := services.KindOf(err)
	writeJSON(w, StatusFor(kind), models.ErrorResponse{
		Error: services.MessageOf(err),
		Kind:  string(kind),
	})
}

// StatusFor returns the HTTP status of an error kind.
func StatusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindExtraction:
		return http.StatusUnprocessableEntity
	case services.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeMessage(w http.ResponseWriter, status int, kind services.ErrorKind, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, Kind: string(kind)})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
