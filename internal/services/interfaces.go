package services

import (
	"context"

	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/stream"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

// MembershipServicer defines the interface for competition membership
type MembershipServicer interface {
	CompetitionsForUser(uid string) stream.Source[[]models.Competition]
}

// CategoryVoteServicer defines the interface for observing a single vote
type CategoryVoteServicer interface {
	CategoryVote(uid, year, event, categoryID string) stream.Source[*models.Vote]
}

// VoteAggregatorServicer defines the interface for cross-competition votes
type VoteAggregatorServicer interface {
	CategoryVoteServicer
	CeremonyVotes(uid, year, event string) stream.Source[map[string]models.Vote]
}

// CatalogServicer defines the interface for category lookups
type CatalogServicer interface {
	Categories(scope CategoryScope) stream.Source[[]models.Category]
	Category(scope CategoryScope, categoryID string) stream.Source[*models.Category]
}

// CountServicer defines the interface for category count estimation
type CountServicer interface {
	Track(ceremonies stream.Source[[]models.Ceremony]) stream.Source[map[string]int]
}

// VotingServicer defines the interface for voting operations
type VotingServicer interface {
	CastCeremonyVote(ctx context.Context, uid string, v CeremonyVote) (*CeremonyVoteResult, error)
	CastVote(ctx context.Context, competitionID, categoryID, nomineeID string) error
	CastCategoryVote(ctx context.Context, competitionID string, cat *models.Category, nomineeID string) error
}

// CompetitionServicer defines the interface for competition commands
type CompetitionServicer interface {
	Create(ctx context.Context, req NewCompetition) (*functions.CreateCompetitionResult, error)
	Join(ctx context.Context, code string) (*functions.JoinCompetitionResult, error)
	Leave(ctx context.Context, competitionID string) error
	Delete(ctx context.Context, competitionID string) error
	SetInactive(ctx context.Context, competitionID string, inactive bool) error
	ToggleInactive(ctx context.Context, c models.Competition) error
	InviteLink(code string) string
	InviteQR(code string) ([]byte, error)
	ShareMessage(c models.Competition) string
}

// AccountServicer defines the interface for account operations
type AccountServicer interface {
	Profile(uid string) stream.Source[*models.User]
	UpdatePushToken(ctx context.Context, uid, token string) error
	SyncPushToken(ctx context.Context, uid string) (bool, error)
	DeleteAccount(ctx context.Context, uid string) error
	Preference(ctx context.Context, uid, key, def string) (string, error)
	SetPreference(ctx context.Context, uid, key, value string) error
	Preferences(ctx context.Context, uid string) (map[string]string, error)
	NotificationsEnabled(ctx context.Context, uid string) (bool, error)
	SetNotificationsEnabled(ctx context.Context, uid string, enabled bool) error
}

// FeatureServicer defines the interface for feature flags
type FeatureServicer interface {
	RequiresPayment() stream.Source[bool]
	CanAccessCompetitions(uid string) stream.Source[bool]
	HasCompetitionsAccess(uid string) bool
}

// Ensure services implement their interfaces
var (
	_ MembershipServicer     = (*MembershipResolver)(nil)
	_ VoteAggregatorServicer = (*VoteAggregator)(nil)
	_ CatalogServicer        = (*CategoryCatalog)(nil)
	_ CountServicer          = (*CategoryCountEstimator)(nil)
	_ VotingServicer         = (*VotingService)(nil)
	_ CompetitionServicer    = (*CompetitionService)(nil)
	_ AccountServicer        = (*AccountService)(nil)
	_ FeatureServicer        = (*FeatureService)(nil)
	_ Entitlements           = (*StaticEntitlements)(nil)
)
