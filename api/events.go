package api

import "net/http"

// listEventDefinitions returns the subscribable event vocabulary so clients
// can discover what webhooks may be registered against.
func (h *Handler) listEventDefinitions(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Definitions())
}
