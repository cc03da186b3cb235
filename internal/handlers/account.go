package handlers

import (
	"net/http"

	"github.com/aamsco/awardswithfriends/pkg/functions"
)

// handleUpdatePushToken records the push token of the caller and forwards it
func (h *Handlers) handleUpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	// A failed forward leaves the token recorded for a later sync
	if err := h.Account.UpdatePushToken(r.Context(), uid(r), req.Token); err != nil {
		if functions.StatusOf(err) == "" {
			h.fail(w, r, err)
			return
		}
		h.Log.Warn("Push token not synced", "user_id", uid(r), "error", err)
		respondJSON(w, http.StatusAccepted, PushTokenResponse{Synced: false})
		return
	}
	respondOK(w, PushTokenResponse{Synced: true})
}

// handleDeleteAccount deletes the caller's account and local data
func (h *Handlers) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.Account.DeleteAccount(r.Context(), uid(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	respondDeleted(w)
}

// handleGetPreferences lists the caller's stored preferences
func (h *Handlers) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.Account.Preferences(r.Context(), uid(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, prefs)
}

// handleSetPreference stores one preference of the caller
func (h *Handlers) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	key, err := pathParam(r, "key")
	if err != nil {
		respondError(w, err)
		return
	}
	var req PreferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := h.Account.SetPreference(r.Context(), uid(r), key, req.Value); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, "Preference saved")
}
