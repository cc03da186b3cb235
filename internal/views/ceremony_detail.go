package views

import (
	"context"
	"maps"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// CeremonyScope identifies a ceremony detail view
type CeremonyScope struct {
	UserID     string
	CeremonyID string
	Year       string
	Event      string
}

// CeremonyDetailState is the state of one ceremony and the user's
// ceremony-wide votes
type CeremonyDetailState struct {
	Ceremony             *models.Ceremony       `json:"ceremony"`
	Categories           []models.Category      `json:"categories"`
	Votes                map[string]models.Vote `json:"votes"`
	OpenCompetitionCount int                    `json:"openCompetitionCount"`
	CanVote              bool                   `json:"canVote"`
	IsLoading            bool                   `json:"isLoading"`
	IsVoting             bool                   `json:"isVoting"`
	VoteSuccess          bool                   `json:"voteSuccess"`
	Error                string                 `json:"error,omitempty"`
}

// CeremonyDetailView shows the categories of a ceremony together with the
// user's latest vote in each
type CeremonyDetailView struct {
	*holder[CeremonyDetailState]
	queries    repository.CeremonyQueries
	catalog    services.CatalogServicer
	votes      services.VoteAggregatorServicer
	membership services.MembershipServicer
	voting     services.VotingServicer
	features   services.FeatureServicer
}

// NewCeremonyDetailView creates a new CeremonyDetailView
func NewCeremonyDetailView(
	log logger.Logger,
	queries repository.CeremonyQueries,
	catalog services.CatalogServicer,
	votes services.VoteAggregatorServicer,
	membership services.MembershipServicer,
	voting services.VotingServicer,
	features services.FeatureServicer,
) *CeremonyDetailView {
	return &CeremonyDetailView{
		holder:     newHolder(log.With("view", "ceremony_detail"), CeremonyDetailState{IsLoading: true, Votes: map[string]models.Vote{}}),
		queries:    queries,
		catalog:    catalog,
		votes:      votes,
		membership: membership,
		voting:     voting,
		features:   features,
	}
}

// Initialize starts the subscriptions for scope
func (v *CeremonyDetailView) Initialize(scope CeremonyScope) {
	life, ok := v.begin(scope)
	if !ok {
		return
	}
	fatal := func(s *CeremonyDetailState, err error) {
		s.Error = err.Error()
		s.IsLoading = false
	}

	follow(life, v.holder, "ceremony", v.queries.Ceremony(scope.CeremonyID),
		func(s *CeremonyDetailState, c *models.Ceremony) { s.Ceremony = c },
		fatal)

	categories := v.catalog.Categories(services.CurrentScope{Year: scope.Year, Event: scope.Event})
	follow(life, v.holder, "categories", stream.Map(categories, services.VisibleSorted),
		func(s *CeremonyDetailState, cats []models.Category) {
			s.Categories = cats
			s.IsLoading = false
		},
		fatal)

	follow(life, v.holder, "competitions", v.membership.CompetitionsForUser(scope.UserID),
		func(s *CeremonyDetailState, comps []models.Competition) {
			s.OpenCompetitionCount = services.OpenCompetitionCount(comps, scope.Year, scope.Event)
		}, nil)

	follow(life, v.holder, "votes", v.votes.CeremonyVotes(scope.UserID, scope.Year, scope.Event),
		func(s *CeremonyDetailState, votes map[string]models.Vote) { s.Votes = votes },
		nil)

	follow(life, v.holder, "can_vote", v.features.CanAccessCompetitions(scope.UserID),
		func(s *CeremonyDetailState, can bool) { s.CanVote = can },
		nil)
}

// CastCeremonyVote casts a vote in every competition of the ceremony. A
// confirmed vote is written into the vote map right away; an unconfirmed
// one arrives with the next snapshot.
func (v *CeremonyDetailView) CastCeremonyVote(ctx context.Context, categoryID, nomineeID string) error {
	current, life := v.session()
	scope, ok := current.(CeremonyScope)
	if !ok {
		return ErrNotInitialized
	}
	v.apply(life, func(s *CeremonyDetailState) {
		s.IsVoting = true
		s.Error = ""
	})

	res, err := v.voting.CastCeremonyVote(ctx, scope.UserID, services.CeremonyVote{
		CeremonyYear: scope.Year,
		Event:        scope.Event,
		CategoryID:   categoryID,
		NomineeID:    nomineeID,
	})
	if err != nil {
		v.apply(life, func(s *CeremonyDetailState) {
			s.IsVoting = false
			s.Error = err.Error()
		})
		return err
	}

	v.apply(life, func(s *CeremonyDetailState) {
		if res.Confirmed && res.Vote != nil {
			votes := maps.Clone(s.Votes)
			if votes == nil {
				votes = map[string]models.Vote{}
			}
			votes[categoryID] = *res.Vote
			s.Votes = votes
		}
		s.IsVoting = false
		s.VoteSuccess = true
	})
	return nil
}

// ClearError dismisses the current error
func (v *CeremonyDetailView) ClearError() {
	v.update(func(s *CeremonyDetailState) { s.Error = "" })
}

// ClearVoteSuccess resets the vote success flag
func (v *CeremonyDetailView) ClearVoteSuccess() {
	v.update(func(s *CeremonyDetailState) { s.VoteSuccess = false })
}
