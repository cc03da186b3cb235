package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// lookupTimeout bounds one-shot reads of live queries
const lookupTimeout = 5 * time.Second

// snapshot reads the first value of src
func snapshot[T any](ctx context.Context, src stream.Source[T]) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	v, err := stream.First(ctx, src, func(T) bool { return true })
	if err != nil && ctx.Err() != nil {
		return v, errors.Unavailable("live query timed out", err)
	}
	return v, err
}

// loadCompetition reads competition id, or fails with NotFound
func (h *Handlers) loadCompetition(ctx context.Context, id string) (*models.Competition, error) {
	c, err := snapshot(ctx, h.Queries.Competition(id))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.NotFoundf("competition %s not found", id)
	}
	return c, nil
}

// handleCreateCompetition creates a competition owned by the caller
func (h *Handlers) handleCreateCompetition(w http.ResponseWriter, r *http.Request) {
	var req CreateCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if allowed, err := snapshot(r.Context(), h.Features.CanAccessCompetitions(uid(r))); err != nil || !allowed {
		respondError(w, services.ErrPaymentRequired)
		return
	}

	res, err := h.Competitions.Create(r.Context(), services.NewCompetition{
		Name:         req.Name,
		CeremonyYear: req.CeremonyYear,
		Event:        req.Event,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondCreated(w, CompetitionCreatedResponse{
		CompetitionID: res.CompetitionID,
		InviteCode:    res.InviteCode,
		InviteLink:    h.Competitions.InviteLink(res.InviteCode),
	})
}

// handleJoinCompetition joins by invite code
func (h *Handlers) handleJoinCompetition(w http.ResponseWriter, r *http.Request) {
	var req JoinCompetitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	res, err := h.Competitions.Join(r.Context(), req.InviteCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, JoinedResponse{CompetitionID: res.CompetitionID, CompetitionName: res.CompetitionName})
}

// handleLeaveCompetition removes the caller from a competition
func (h *Handlers) handleLeaveCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.Competitions.Leave(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, "Left competition")
}

// handleDeleteCompetition deletes a competition
func (h *Handlers) handleDeleteCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.Competitions.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	respondDeleted(w)
}

// handleSetInactive activates or deactivates a competition
func (h *Handlers) handleSetInactive(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req SetInactiveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Inactive == nil {
		respondError(w, BadRequest("inactive is required"))
		return
	}
	if err := h.Competitions.SetInactive(r.Context(), id, *req.Inactive); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, "Competition updated")
}

// handleShareCompetition returns the invite link and share text
func (h *Handlers) handleShareCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	c, err := h.loadCompetition(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, ShareResponse{
		InviteCode: c.InviteCode,
		InviteLink: h.Competitions.InviteLink(c.InviteCode),
		Message:    h.Competitions.ShareMessage(*c),
	})
}

// handleInviteQR serves the invite link of a code as a PNG
func (h *Handlers) handleInviteQR(w http.ResponseWriter, r *http.Request) {
	code, err := pathParam(r, "code")
	if err != nil {
		respondError(w, err)
		return
	}
	png, err := h.Competitions.InviteQR(code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(png)
}
