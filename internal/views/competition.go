package views

import (
	"context"

	"github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// CompetitionScope identifies a competition view
type CompetitionScope struct {
	UserID        string
	CompetitionID string
}

// CompetitionState is the state of one competition and the user's votes in it
type CompetitionState struct {
	Competition *models.Competition    `json:"competition"`
	Categories  []models.Category      `json:"categories"`
	Votes       map[string]models.Vote `json:"votes"`
	IsLoading   bool                   `json:"isLoading"`
	IsLeaving   bool                   `json:"isLeaving"`
	Left        bool                   `json:"left"`
	Error       string                 `json:"error,omitempty"`
}

// CompetitionView shows a competition's categories and the user's picks
type CompetitionView struct {
	*holder[CompetitionState]
	competitions repository.CompetitionQueries
	votes        repository.VoteQueries
	catalog      services.CatalogServicer
	commands     services.CompetitionServicer
}

// NewCompetitionView creates a new CompetitionView
func NewCompetitionView(
	log logger.Logger,
	competitions repository.CompetitionQueries,
	votes repository.VoteQueries,
	catalog services.CatalogServicer,
	commands services.CompetitionServicer,
) *CompetitionView {
	return &CompetitionView{
		holder:       newHolder(log.With("view", "competition"), CompetitionState{IsLoading: true, Votes: map[string]models.Vote{}}),
		competitions: competitions,
		votes:        votes,
		catalog:      catalog,
		commands:     commands,
	}
}

// competitionScope follows the category scope of a competition. Repeated
// snapshots with the same scope keep the current category subscription.
func competitionScope(src stream.Source[*models.Competition]) stream.Source[services.CategoryScope] {
	scopes := stream.Map(src, func(c *models.Competition) services.CategoryScope {
		if c == nil {
			return nil
		}
		return services.ScopeFor(*c)
	})
	return stream.Distinct(scopes, func(a, b services.CategoryScope) bool { return a == b })
}

// scopedCategories watches the visible categories of a competition
func scopedCategories(catalog services.CatalogServicer, src stream.Source[*models.Competition]) stream.Source[[]models.Category] {
	return stream.SwitchMap(competitionScope(src), func(scope services.CategoryScope) stream.Source[[]models.Category] {
		if scope == nil {
			return stream.Just[[]models.Category](nil)
		}
		return stream.Map(catalog.Categories(scope), services.VisibleSorted)
	})
}

// Initialize starts the subscriptions for scope
func (v *CompetitionView) Initialize(scope CompetitionScope) {
	life, ok := v.begin(scope)
	if !ok {
		return
	}
	fatal := func(s *CompetitionState, err error) {
		s.Error = err.Error()
		s.IsLoading = false
	}

	follow(life, v.holder, "competition", v.competitions.Competition(scope.CompetitionID),
		func(s *CompetitionState, c *models.Competition) {
			s.Competition = c
			if c == nil {
				s.IsLoading = false
			}
		}, fatal)

	follow(life, v.holder, "categories", scopedCategories(v.catalog, v.competitions.Competition(scope.CompetitionID)),
		func(s *CompetitionState, cats []models.Category) {
			s.Categories = cats
			if cats != nil {
				s.IsLoading = false
			}
		}, fatal)

	follow(life, v.holder, "votes", v.votes.UserVotes(scope.CompetitionID, scope.UserID),
		func(s *CompetitionState, votes []models.Vote) { s.Votes = services.VotesByCategory(votes) },
		nil)
}

// VotedCount counts the listed categories the user has voted in
func (v *CompetitionView) VotedCount() int {
	s := v.State()
	n := 0
	for _, c := range s.Categories {
		if _, ok := s.Votes[c.ID]; ok {
			n++
		}
	}
	return n
}

// IsOwner reports whether the user created the competition. It only
// decides which controls to show.
func (v *CompetitionView) IsOwner() bool {
	scope, _ := v.currentScope().(CompetitionScope)
	c := v.State().Competition
	return c != nil && c.IsOwnedBy(scope.UserID)
}

// VotedNomineeName returns the title of the nominee the user picked in cat
func (v *CompetitionView) VotedNomineeName(cat models.Category) (string, bool) {
	vote, ok := v.State().Votes[cat.ID]
	if !ok {
		return "", false
	}
	n := cat.Nominee(vote.NomineeID)
	if n == nil {
		return "", false
	}
	return n.Title, true
}

// Leave removes the user from the competition
func (v *CompetitionView) Leave(ctx context.Context) error {
	current, life := v.session()
	scope, ok := current.(CompetitionScope)
	if !ok {
		return ErrNotInitialized
	}
	v.apply(life, func(s *CompetitionState) { s.IsLeaving = true })
	if err := v.commands.Leave(ctx, scope.CompetitionID); err != nil {
		v.apply(life, func(s *CompetitionState) {
			s.IsLeaving = false
			s.Error = err.Error()
		})
		return err
	}
	v.apply(life, func(s *CompetitionState) {
		s.IsLeaving = false
		s.Left = true
	})
	return nil
}

// ToggleInactive flips the inactive state. The change shows up through the
// competition subscription.
func (v *CompetitionView) ToggleInactive(ctx context.Context) error {
	c := v.State().Competition
	if c == nil {
		return errors.NotFound("competition not loaded")
	}
	if err := v.commands.ToggleInactive(ctx, *c); err != nil {
		v.update(func(s *CompetitionState) { s.Error = err.Error() })
		return err
	}
	return nil
}

// ClearError dismisses the current error
func (v *CompetitionView) ClearError() {
	v.update(func(s *CompetitionState) { s.Error = "" })
}
