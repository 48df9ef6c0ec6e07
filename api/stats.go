package api

import (
	"net/http"

	"github.com/m3n3sx/gatehouse/ledger"
)

type statsResponse struct {
	PendingDeliveries int64         `json:"pending_deliveries"`
	Ledger            *ledger.Stats `json:"ledger"`
}

// getStats reports delivery backlog and ledger aggregates. The ledger is
// global (it includes other owners' traffic and security audit counts), so
// the route is admin-only.
func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !act.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	pending, err := h.store.CountPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats, err := h.ledgerSvc.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		PendingDeliveries: pending,
		Ledger:            stats,
	})
}
