package views

import (
	"cmp"
	"slices"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
)

// LeaderboardState is the ranking of one competition
type LeaderboardState struct {
	Competition  *models.Competition  `json:"competition"`
	Participants []models.Participant `json:"participants"`
	IsLoading    bool                 `json:"isLoading"`
	Error        string               `json:"error,omitempty"`
}

// LeaderboardView ranks the participants of a competition
type LeaderboardView struct {
	*holder[LeaderboardState]
	queries repository.CompetitionQueries
}

// NewLeaderboardView creates a new LeaderboardView
func NewLeaderboardView(log logger.Logger, queries repository.CompetitionQueries) *LeaderboardView {
	return &LeaderboardView{
		holder:  newHolder(log.With("view", "leaderboard"), LeaderboardState{IsLoading: true}),
		queries: queries,
	}
}

// Rank drops blocked participants and sorts the rest by score, highest
// first. Equal scores keep their order.
func Rank(participants []models.Participant) []models.Participant {
	out := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if !p.Blocked {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Participant) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Initialize starts the subscriptions for scope
func (v *LeaderboardView) Initialize(scope CompetitionScope) {
	life, ok := v.begin(scope)
	if !ok {
		return
	}

	follow(life, v.holder, "competition", v.queries.Competition(scope.CompetitionID),
		func(s *LeaderboardState, c *models.Competition) { s.Competition = c },
		func(s *LeaderboardState, err error) { s.Error = err.Error() })

	follow(life, v.holder, "participants", v.queries.Participants(scope.CompetitionID),
		func(s *LeaderboardState, ps []models.Participant) {
			s.Participants = Rank(ps)
			s.IsLoading = false
		},
		func(s *LeaderboardState, err error) {
			s.Error = err.Error()
			s.IsLoading = false
		})
}

// ParticipantCount counts the ranked participants
func (v *LeaderboardView) ParticipantCount() int {
	return len(v.State().Participants)
}

// IsCurrentUser reports whether p is the signed-in user
func (v *LeaderboardView) IsCurrentUser(p models.Participant) bool {
	scope, _ := v.currentScope().(CompetitionScope)
	return scope.UserID != "" && p.ID == scope.UserID
}

// ClearError dismisses the current error
func (v *LeaderboardView) ClearError() {
	v.update(func(s *LeaderboardState) { s.Error = "" })
}
