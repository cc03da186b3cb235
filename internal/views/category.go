package views

import (
	"context"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// CategoryViewScope identifies a category view
type CategoryViewScope struct {
	UserID        string
	CompetitionID string
	CategoryID    string
}

// CategoryState is the state of one category within a competition
type CategoryState struct {
	Category          *models.Category `json:"category"`
	CurrentVote       *models.Vote     `json:"currentVote"`
	SelectedNomineeID string           `json:"selectedNomineeId,omitempty"`
	IsLoading         bool             `json:"isLoading"`
	IsVoting          bool             `json:"isVoting"`
	VoteSuccess       bool             `json:"voteSuccess"`
	Error             string           `json:"error,omitempty"`
}

// CategoryView lets the user pick a nominee in one category of a
// competition
type CategoryView struct {
	*holder[CategoryState]
	competitions repository.CompetitionQueries
	votes        repository.VoteQueries
	catalog      services.CatalogServicer
	voting       services.VotingServicer
}

// NewCategoryView creates a new CategoryView
func NewCategoryView(
	log logger.Logger,
	competitions repository.CompetitionQueries,
	votes repository.VoteQueries,
	catalog services.CatalogServicer,
	voting services.VotingServicer,
) *CategoryView {
	return &CategoryView{
		holder:       newHolder(log.With("view", "category"), CategoryState{IsLoading: true}),
		competitions: competitions,
		votes:        votes,
		catalog:      catalog,
		voting:       voting,
	}
}

// Initialize starts the subscriptions for scope
func (v *CategoryView) Initialize(scope CategoryViewScope) {
	life, ok := v.begin(scope)
	if !ok {
		return
	}

	category := stream.SwitchMap(competitionScope(v.competitions.Competition(scope.CompetitionID)),
		func(cs services.CategoryScope) stream.Source[*models.Category] {
			if cs == nil {
				return stream.Just[*models.Category](nil)
			}
			return v.catalog.Category(cs, scope.CategoryID)
		})
	follow(life, v.holder, "category", category,
		func(s *CategoryState, c *models.Category) {
			s.Category = c
			s.IsLoading = false
			if s.SelectedNomineeID == "" && s.CurrentVote != nil {
				s.SelectedNomineeID = s.CurrentVote.NomineeID
			}
		},
		func(s *CategoryState, err error) {
			s.Error = err.Error()
			s.IsLoading = false
		})

	follow(life, v.holder, "vote", v.votes.UserVotes(scope.CompetitionID, scope.UserID),
		func(s *CategoryState, votes []models.Vote) {
			s.CurrentVote = nil
			for i := range votes {
				if votes[i].CategoryID == scope.CategoryID {
					vote := votes[i]
					s.CurrentVote = &vote
					break
				}
			}
			if s.SelectedNomineeID == "" && s.CurrentVote != nil {
				s.SelectedNomineeID = s.CurrentVote.NomineeID
			}
		}, nil)
}

// SelectNominee marks a nominee as selected. It is ignored while the
// category is missing or locked.
func (v *CategoryView) SelectNominee(nomineeID string) {
	v.update(func(s *CategoryState) {
		if s.Category == nil || s.Category.IsVotingLocked() {
			return
		}
		s.SelectedNomineeID = nomineeID
	})
}

// CanVote reports whether the selection can be submitted
func (v *CategoryView) CanVote() bool {
	return canVote(v.State())
}

func canVote(s CategoryState) bool {
	if s.SelectedNomineeID == "" || s.IsVoting {
		return false
	}
	if s.CurrentVote != nil && s.CurrentVote.NomineeID == s.SelectedNomineeID {
		return false
	}
	return s.Category != nil && !s.Category.IsVotingLocked()
}

// HasExistingVote reports whether the user already voted in the category
func (v *CategoryView) HasExistingVote() bool {
	return v.State().CurrentVote != nil
}

// CastVote submits the selected nominee. Submitting the nominee already
// voted for does nothing.
func (v *CategoryView) CastVote(ctx context.Context) error {
	current, life := v.session()
	scope, ok := current.(CategoryViewScope)
	if !ok {
		return ErrNotInitialized
	}
	s := v.State()
	if s.CurrentVote != nil && s.SelectedNomineeID != "" && s.CurrentVote.NomineeID == s.SelectedNomineeID {
		return nil
	}

	v.apply(life, func(s *CategoryState) {
		s.IsVoting = true
		s.Error = ""
	})
	if err := v.voting.CastCategoryVote(ctx, scope.CompetitionID, s.Category, s.SelectedNomineeID); err != nil {
		v.apply(life, func(s *CategoryState) {
			s.IsVoting = false
			s.Error = err.Error()
		})
		return err
	}
	v.apply(life, func(s *CategoryState) {
		s.IsVoting = false
		s.VoteSuccess = true
	})
	return nil
}

// ClearError dismisses the current error
func (v *CategoryView) ClearError() {
	v.update(func(s *CategoryState) { s.Error = "" })
}

// ClearVoteSuccess dismisses the confirmation
func (v *CategoryView) ClearVoteSuccess() {
	v.update(func(s *CategoryState) { s.VoteSuccess = false })
}
