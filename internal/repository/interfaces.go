package repository

import (
	"context"
	"time"

	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// UserQueries defines live queries on user documents
type UserQueries interface {
	User(uid string) stream.Source[*models.User]
}

// CompetitionQueries defines live queries on competitions and their members
type CompetitionQueries interface {
	// Competition emits nil while the document does not exist
	Competition(id string) stream.Source[*models.Competition]
	// ParticipantRecordsForUser watches every participant document of uid
	// across all competitions
	ParticipantRecordsForUser(uid string) stream.Source[[]models.ParticipantRecord]
	// Participants returns every participant row, blocked ones included
	Participants(competitionID string) stream.Source[[]models.Participant]
}

// CeremonyQueries defines live queries on ceremonies and categories
type CeremonyQueries interface {
	Ceremonies() stream.Source[[]models.Ceremony]
	Ceremony(id string) stream.Source[*models.Ceremony]
	// Categories returns the top-level categories of a year, ordered by
	// display order. Event filtering is left to the caller.
	Categories(year string) stream.Source[[]models.Category]
	LegacyCategories(ceremonyID string) stream.Source[[]models.Category]
	LegacyNominees(ceremonyID, categoryID string) stream.Source[[]models.Nominee]
	EventTypes() stream.Source[[]models.EventType]
}

// VoteQueries defines live queries on votes within a competition
type VoteQueries interface {
	UserVotes(competitionID, uid string) stream.Source[[]models.Vote]
	AllVotes(competitionID string) stream.Source[[]models.Vote]
	// Vote emits nil while the document does not exist
	Vote(competitionID, voteID string) stream.Source[*models.Vote]
}

// ConfigQueries defines live queries on global configuration
type ConfigQueries interface {
	// Features emits nil while the config document does not exist
	Features() stream.Source[*models.Features]
}

// LiveQueries combines all live query interfaces
type LiveQueries interface {
	UserQueries
	CompetitionQueries
	CeremonyQueries
	VoteQueries
	ConfigQueries
}

// PushToken is the locally recorded push notification token of a user
type PushToken struct {
	UserID    string
	Token     string
	UpdatedAt time.Time
	Synced    bool
}

// PreferencesRepository defines local per-user preference storage
type PreferencesRepository interface {
	GetPreference(ctx context.Context, userID, key string) (string, error)
	SetPreference(ctx context.Context, userID, key, value string) error
	ListPreferences(ctx context.Context, userID string) (map[string]string, error)
	SavePushToken(ctx context.Context, userID, token string) error
	MarkPushTokenSynced(ctx context.Context, userID, token string) error
	GetPushToken(ctx context.Context, userID string) (*PushToken, error)
	DeleteUserData(ctx context.Context, userID string) error
}

// Ensure implementations satisfy the interfaces
var (
	_ PreferencesRepository = (*Repository)(nil)
	_ LiveQueries           = (*Firestore)(nil)
)
