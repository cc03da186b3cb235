package services

import (
	"context"
	"strings"
	"time"

	"github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/stream"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

// DefaultConfirmationTimeout bounds the wait for a cast vote to show up
const DefaultConfirmationTimeout = 5 * time.Second

// VotingService casts votes through the remote commands
type VotingService struct {
	log     logger.Logger
	client  functions.Client
	votes   CategoryVoteServicer
	timeout time.Duration
}

// NewVotingService creates a new VotingService. A non-positive timeout
// selects DefaultConfirmationTimeout.
func NewVotingService(log logger.Logger, client functions.Client, votes CategoryVoteServicer, timeout time.Duration) *VotingService {
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	return &VotingService{
		log:     log,
		client:  client,
		votes:   votes,
		timeout: timeout,
	}
}

// CeremonyVote identifies a ceremony-wide vote
type CeremonyVote struct {
	CeremonyYear string `json:"ceremonyYear"`
	Event        string `json:"event,omitempty"`
	CategoryID   string `json:"categoryId"`
	NomineeID    string `json:"nomineeId"`
}

// CeremonyVoteResult contains the result of a ceremony vote
type CeremonyVoteResult struct {
	// Confirmed is set when the vote was observed before the timeout
	Confirmed bool         `json:"confirmed"`
	Vote      *models.Vote `json:"vote,omitempty"`
}

func (v CeremonyVote) validate() error {
	switch {
	case strings.TrimSpace(v.CeremonyYear) == "":
		return errors.Validation("ceremony year is required")
	case v.CategoryID == "":
		return errors.Validation("category is required")
	case v.NomineeID == "":
		return ErrNoNomineeSelected
	}
	return nil
}

// CastCeremonyVote casts uid's vote in every competition of the ceremony.
//
// A failed command is returned as is. Once the command succeeds the call
// waits, bounded by the confirmation timeout, for the vote to be observed
// with the submitted nominee. Not observing it in time still counts as
// success: Confirmed is false and Vote is nil.
func (s *VotingService) CastCeremonyVote(ctx context.Context, uid string, v CeremonyVote) (*CeremonyVoteResult, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}

	if err := s.client.CastCeremonyVote(ctx, v.CeremonyYear, v.CategoryID, v.NomineeID); err != nil {
		s.log.Warn("Ceremony vote rejected", "user_id", uid, "category_id", v.CategoryID, "error", err)
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	confirmed, err := stream.First(waitCtx, s.votes.CategoryVote(uid, v.CeremonyYear, v.Event, v.CategoryID),
		func(vote *models.Vote) bool {
			return vote != nil && vote.NomineeID == v.NomineeID
		})
	if err != nil {
		if stream.IsCanceled(err) {
			s.log.Debug("Ceremony vote not confirmed in time", "user_id", uid, "category_id", v.CategoryID, "timeout", s.timeout)
		} else {
			s.log.Warn("Ceremony vote confirmation failed", "user_id", uid, "category_id", v.CategoryID, "error", err)
		}
		return &CeremonyVoteResult{}, nil
	}

	s.log.Info("Ceremony vote confirmed", "user_id", uid, "category_id", v.CategoryID, "competition_id", confirmed.CompetitionID)
	return &CeremonyVoteResult{Confirmed: true, Vote: confirmed}, nil
}

// CastVote casts a vote in a single competition
func (s *VotingService) CastVote(ctx context.Context, competitionID, categoryID, nomineeID string) error {
	if competitionID == "" || categoryID == "" {
		return errors.Validation("competition and category are required")
	}
	if nomineeID == "" {
		return ErrNoNomineeSelected
	}
	return s.client.CastVote(ctx, competitionID, categoryID, nomineeID)
}

// CastCategoryVote checks the category state before casting a vote
func (s *VotingService) CastCategoryVote(ctx context.Context, competitionID string, cat *models.Category, nomineeID string) error {
	if cat == nil {
		return errors.NotFound("category not found")
	}
	if cat.IsVotingLocked() {
		return ErrVotingLocked
	}
	if nomineeID == "" {
		return ErrNoNomineeSelected
	}
	if cat.Nominee(nomineeID) == nil {
		return ErrNomineeNotFound
	}
	return s.CastVote(ctx, competitionID, cat.ID, nomineeID)
}
