package api

import (
	"net/http"

	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/id"
)

// keyResponse pairs key metadata with the plaintext on the operations that
// mint one. The plaintext is shown exactly once.
type keyResponse struct {
	Key       *apikey.Key `json:"key"`
	Plaintext string      `json:"plaintext,omitempty"`
}

func (h *Handler) createKey(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	var in apikey.IssueInput
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

	k, plaintext, err := h.keySvc.Issue(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, keyResponse{Key: k, Plaintext: plaintext})
}

func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	ownerID := queryParam(r, "owner_id")
	if ownerID == "" {
		ownerID = act.OwnerID
	}
	opts := apikey.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	keys, err := h.keySvc.List(r.Context(), ownerID, act, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handler) getKey(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	keyID, err := id.ParseKeyID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key ID")
		return
	}

	k, err := h.keySvc.Get(r.Context(), keyID, act)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	keyID, err := id.ParseKeyID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key ID")
		return
	}

	if err := h.keySvc.Revoke(r.Context(), keyID, act); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateKey(w http.ResponseWriter, r *http.Request) {
	act, ok := requireActor(w, r)
	if !ok {
		return
	}

	keyID, err := id.ParseKeyID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key ID")
		return
	}

	k, plaintext, err := h.keySvc.Rotate(r.Context(), keyID, act)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Key: k, Plaintext: plaintext})
}
