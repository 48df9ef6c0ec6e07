package api

import (
	"net/http"

	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/id"
)

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	// The registry service enforces ownership; a caller who cannot see the
	// webhook cannot see its deliveries either.
	if _, err := h.webhookSvc.Get(r.Context(), whID, act); err != nil {
		writeServiceError(w, err)
		return
	}

	opts := delivery.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	if stateStr := queryParam(r, "state"); stateStr != "" {
		state := delivery.State(stateStr)
		opts.State = &state
	}

	deliveries, err := h.store.ListByWebhook(r.Context(), whID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}
