package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/m3n3sx/gatehouse/actor"
	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/ratelimit"
)

// authenticate validates the presented API key and stores the resulting
// actor in the request context. Every route behind the handler requires it.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		candidate := h.extractKey(r)
		origin := r.Header.Get("Origin")

		grant, err := h.keySvc.Validate(r.Context(), candidate, origin)
		if err != nil {
			h.writeAuthError(w, err)
			return
		}

		ctx := actor.WithActor(r.Context(), actor.Actor{
			OwnerID:     grant.OwnerID,
			KeyID:       grant.KeyID.String(),
			Permissions: grant.Permissions,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractKey pulls the candidate key from the request. The query parameter
// form exists for manual testing only and is logged at warn.
func (h *Handler) extractKey(r *http.Request) string {
	if v := r.Header.Get("X-Api-Key"); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if bearer, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return bearer
		}
	}
	if v := r.URL.Query().Get("api_key"); v != "" {
		h.logger.Warn("api key passed as query parameter",
			"path", r.URL.Path,
		)
		return v
	}
	return ""
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	var rle *ratelimit.RateLimitExceededError
	switch {
	case errors.Is(err, apikey.ErrMissingCredential),
		errors.Is(err, apikey.ErrInvalidCredential),
		errors.Is(err, apikey.ErrInactiveCredential),
		errors.Is(err, apikey.ErrExpiredCredential):
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
	case errors.Is(err, apikey.ErrOriginNotAllowed):
		writeError(w, http.StatusForbidden, "origin not allowed")
	case errors.As(err, &rle):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "authentication failed")
	}
}

// requireActor reads the authenticated actor back out of the context.
func requireActor(w http.ResponseWriter, r *http.Request) (actor.Actor, bool) {
	act, ok := actor.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
	}
	return act, ok
}
