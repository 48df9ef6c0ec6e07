package api

import (
	"errors"
	"net/http"

	"github.com/m3n3sx/gatehouse/actor"
	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/webhook"
)

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		keyValidation *apikey.ValidationError
		whValidation  *webhook.ValidationError
		keyQuota      *apikey.QuotaExceededError
		whQuota       *webhook.QuotaExceededError
	)

	switch {
	case errors.Is(err, actor.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, apikey.ErrKeyNotFound),
		errors.Is(err, webhook.ErrWebhookNotFound),
		errors.Is(err, delivery.ErrDeliveryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &keyValidation),
		errors.As(err, &whValidation),
		errors.Is(err, apikey.ErrInvalidExpiration),
		errors.Is(err, webhook.ErrInvalidEvents):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, webhook.ErrEndpointUnreachable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &keyQuota), errors.As(err, &whQuota):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
