package api

import (
	"net/http"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/webhook"
)

// webhookResponse pairs webhook metadata with the signing secret on
// creation and rotation. The secret is shown exactly once.
type webhookResponse struct {
	Webhook *webhook.Webhook `json:"webhook"`
	Secret  string           `json:"secret,omitempty"`
}

func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	var in webhook.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.OwnerID == "" {
		in.OwnerID = act.OwnerID
	}
	if !act.CanManage(in.OwnerID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	wh, secret, err := h.webhookSvc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, webhookResponse{Webhook: wh, Secret: secret})
}

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	ownerID := queryParam(r, "owner_id")
	if ownerID == "" {
		ownerID = act.OwnerID
	}
	opts := webhook.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	hooks, err := h.webhookSvc.List(r.Context(), ownerID, act, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hooks)
}

func (h *Handler) getWebhook(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	wh, err := h.webhookSvc.Get(r.Context(), whID, act)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *Handler) updateWebhook(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	var in webhook.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	wh, err := h.webhookSvc.Update(r.Context(), whID, in, act)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	if err := h.webhookSvc.Delete(r.Context(), whID, act); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableWebhook(w http.ResponseWriter, r *http.Request) {
	h.setWebhookActive(w, r, true)
}

func (h *Handler) disableWebhook(w http.ResponseWriter, r *http.Request) {
	h.setWebhookActive(w, r, false)
}

func (h *Handler) setWebhookActive(w http.ResponseWriter, r *http.Request, active bool) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	if err := h.webhookSvc.SetActive(r.Context(), whID, active, act); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return
	}

	secret, err := h.webhookSvc.RotateSecret(r.Context(), whID, act)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}
