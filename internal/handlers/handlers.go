// Package handlers exposes the JSON API. Handlers decode and sanity-check
// payloads, delegate to the services and translate their errors onto HTTP
// statuses.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/diewo77/facturation/internal/auth"
	"github.com/diewo77/facturation/internal/billing"
	"github.com/diewo77/facturation/internal/httpx"
	"github.com/diewo77/facturation/internal/models"
	"github.com/diewo77/facturation/internal/services"
)

const dateLayout = "2006-01-02"

// userID extracts the authenticated user. RequireAuth guarantees presence on
// protected routes; the fallback is a hard 401 anyway.
func userID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return 0, false
	}
	return uid, true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return t, nil
}

// violations flattens validator errors into the per-field map carried by
// validation_failed responses.
func violations(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return fields
}

// writeServiceError maps service errors onto the API's status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Fields)
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrConflict):
		httpx.JSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		httpx.JSONError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, billing.ErrSequenceExhausted):
		httpx.JSONError(w, http.StatusConflict, "sequence_exhausted", err.Error())
	case errors.Is(err, services.ErrNoClientEmail):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "no_client_email", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
