package handlers

import (
	"net/http"

	"github.com/aamsco/awardswithfriends/internal/services"
)

// handleCastVote records a vote within one competition
func (h *Handlers) handleCastVote(w http.ResponseWriter, r *http.Request) {
	competitionID, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Voting.CastVote(r.Context(), competitionID, req.CategoryID, req.NomineeID); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, "Vote recorded")
}

// handleCastCeremonyVote records a vote in every open competition of a
// ceremony. Success does not depend on the vote being observed in time.
func (h *Handlers) handleCastCeremonyVote(w http.ResponseWriter, r *http.Request) {
	var req CeremonyVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	res, err := h.Voting.CastCeremonyVote(r.Context(), uid(r), services.CeremonyVote{
		CeremonyYear: req.CeremonyYear,
		Event:        req.Event,
		CategoryID:   req.CategoryID,
		NomineeID:    req.NomineeID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, CeremonyVoteResponse{Success: true, Confirmed: res.Confirmed, Vote: res.Vote})
}

// handleGetCeremonyVotes returns the caller's effective vote per category
// across all competitions of a ceremony
func (h *Handlers) handleGetCeremonyVotes(w http.ResponseWriter, r *http.Request) {
	year, err := pathParam(r, "year")
	if err != nil {
		respondError(w, err)
		return
	}
	event := r.URL.Query().Get("event")

	votes, err := snapshot(r.Context(), h.Votes.CeremonyVotes(uid(r), year, event))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, CeremonyVotesResponse{Votes: votes})
}
