package handlers

import (
	"net/http"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/views"
	"github.com/aamsco/awardswithfriends/internal/websocket"
)

// Every WebSocket endpoint builds a fresh view for the connection,
// initializes it for the caller and hands it to the hub, which closes it
// when the connection goes away.

func (h *Handlers) viewLog(r *http.Request) logger.Logger {
	return h.Log.With("user_id", uid(r))
}

func (h *Handlers) handleHomeWS(w http.ResponseWriter, r *http.Request) {
	v := views.NewHomeView(h.viewLog(r), h.Membership, h.Queries, h.Features, h.Account)
	v.Initialize(r.Context(), uid(r))
	h.Hub.ServeWs(w, r, uid(r), websocket.HomeSession(v))
}

func (h *Handlers) handleCeremoniesWS(w http.ResponseWriter, r *http.Request) {
	v := views.NewCeremoniesView(h.viewLog(r), h.Queries, h.Counts, h.Account)
	v.Initialize(r.Context(), uid(r))
	h.Hub.ServeWs(w, r, uid(r), websocket.CeremoniesSession(v))
}

// handleCeremonyWS serves one ceremony. Year and event come from the query
// string, or from the ceremony document when year is absent.
func (h *Handlers) handleCeremonyWS(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	scope := views.CeremonyScope{
		UserID:     uid(r),
		CeremonyID: id,
		Year:       r.URL.Query().Get("year"),
		Event:      r.URL.Query().Get("event"),
	}
	if scope.Year == "" {
		c, err := snapshot(r.Context(), h.Queries.Ceremony(id))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if c == nil {
			respondError(w, NotFound("ceremony "+id+" not found"))
			return
		}
		scope.Year, scope.Event = c.Year, c.Event
	}

	v := views.NewCeremonyDetailView(h.viewLog(r), h.Queries, h.Catalog, h.Votes, h.Membership, h.Voting, h.Features)
	v.Initialize(scope)
	h.Hub.ServeWs(w, r, uid(r), websocket.CeremonyDetailSession(v))
}

func (h *Handlers) handleCompetitionWS(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	v := views.NewCompetitionView(h.viewLog(r), h.Queries, h.Queries, h.Catalog, h.Competitions)
	v.Initialize(views.CompetitionScope{UserID: uid(r), CompetitionID: id})
	h.Hub.ServeWs(w, r, uid(r), websocket.CompetitionSession(v))
}

func (h *Handlers) handleCategoryWS(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	categoryID, err := pathParam(r, "categoryID")
	if err != nil {
		respondError(w, err)
		return
	}
	v := views.NewCategoryView(h.viewLog(r), h.Queries, h.Queries, h.Catalog, h.Voting)
	v.Initialize(views.CategoryViewScope{UserID: uid(r), CompetitionID: id, CategoryID: categoryID})
	h.Hub.ServeWs(w, r, uid(r), websocket.CategorySession(v))
}

func (h *Handlers) handleLeaderboardWS(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	v := views.NewLeaderboardView(h.viewLog(r), h.Queries)
	v.Initialize(views.CompetitionScope{UserID: uid(r), CompetitionID: id})
	h.Hub.ServeWs(w, r, uid(r), websocket.LeaderboardSession(v))
}

func (h *Handlers) handleProfileWS(w http.ResponseWriter, r *http.Request) {
	v := views.NewProfileView(h.viewLog(r), h.Account)
	v.Initialize(r.Context(), uid(r))
	h.Hub.ServeWs(w, r, uid(r), websocket.ProfileSession(v))
}
