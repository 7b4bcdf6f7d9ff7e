package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/gigbroker-backend/api/responses"
	"github.com/angelmondragon/gigbroker-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

// AdminListWebhookReviews lists gateway events awaiting manual reconciliation.
func AdminListWebhookReviews(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = value
		}

		reviews, err := svc.ListOpenReviews(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reviews)
	}
}

// AdminResolveWebhookReview closes a review after manual handling.
func AdminResolveWebhookReview(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := strings.TrimSpace(chi.URLParam(r, "eventId"))
		if eventID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "eventId is required"))
			return
		}

		if err := svc.ResolveReview(r.Context(), eventID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"resolved": true})
	}
}
