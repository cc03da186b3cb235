package models

import (
	"strings"
	"time"
)

// CeremonyStatus is the normalized lifecycle state of a ceremony
type CeremonyStatus string

const (
	CeremonyUpcoming  CeremonyStatus = "upcoming"
	CeremonyLive      CeremonyStatus = "live"
	CeremonyCompleted CeremonyStatus = "completed"
)

// ParseCeremonyStatus normalizes a stored status string.
// Both "complete" and "completed" map to CeremonyCompleted; anything
// unrecognized is treated as upcoming.
func ParseCeremonyStatus(s string) CeremonyStatus {
	switch s {
	case "complete", "completed":
		return CeremonyCompleted
	case "live":
		return CeremonyLive
	default:
		return CeremonyUpcoming
	}
}

// CompetitionStatus is the lifecycle state of a competition
type CompetitionStatus string

const (
	CompetitionOpen      CompetitionStatus = "open"
	CompetitionLocked    CompetitionStatus = "locked"
	CompetitionCompleted CompetitionStatus = "completed"
	CompetitionInactive  CompetitionStatus = "inactive"
)

// ParseCompetitionStatus normalizes a stored status string, defaulting to open
func ParseCompetitionStatus(s string) CompetitionStatus {
	switch CompetitionStatus(s) {
	case CompetitionLocked, CompetitionCompleted, CompetitionInactive:
		return CompetitionStatus(s)
	default:
		return CompetitionOpen
	}
}

// EventCompatible reports whether an item tagged with actual belongs to a
// scope that requested the given event. An empty string means no event tag
// on either side and matches everything.
func EventCompatible(requested, actual string) bool {
	return requested == "" || actual == "" || requested == actual
}

// Ceremony is a single award show instance
type Ceremony struct {
	ID            string     `firestore:"-" json:"id"`
	Name          string     `firestore:"name" json:"name"`
	Year          string     `firestore:"year" json:"year"`
	Event         string     `firestore:"event" json:"event,omitempty"`
	Date          *time.Time `firestore:"date" json:"date,omitempty"`
	Status        string     `firestore:"status" json:"status"`
	Hidden        bool       `firestore:"hidden" json:"hidden"`
	CategoryCount *int       `firestore:"categoryCount" json:"categoryCount,omitempty"`
}

// CeremonyStatus returns the normalized status
func (c Ceremony) CeremonyStatus() CeremonyStatus {
	return ParseCeremonyStatus(c.Status)
}

// IsCompleted reports whether the stored status means the ceremony is over
func (c Ceremony) IsCompleted() bool {
	return c.CeremonyStatus() == CeremonyCompleted
}

// Nominee is one choice within a category
type Nominee struct {
	ID       string `firestore:"id" json:"id"`
	Title    string `firestore:"title" json:"title"`
	Subtitle string `firestore:"subtitle" json:"subtitle,omitempty"`
	ImageURL string `firestore:"imageUrl" json:"imageUrl"`
	TmdbID   string `firestore:"tmdbId" json:"tmdbId,omitempty"`
}

// Category is an award category and its nominees
type Category struct {
	ID                string     `firestore:"-" json:"id"`
	CeremonyYear      string     `firestore:"ceremonyYear" json:"ceremonyYear"`
	Event             string     `firestore:"event" json:"event,omitempty"`
	Name              string     `firestore:"name" json:"name"`
	DisplayOrder      int        `firestore:"displayOrder" json:"displayOrder"`
	WinnerID          string     `firestore:"winnerId" json:"winnerId,omitempty"`
	WinnerAnnouncedAt *time.Time `firestore:"winnerAnnouncedAt" json:"winnerAnnouncedAt,omitempty"`
	VotingLocked      *bool      `firestore:"votingLocked" json:"votingLocked,omitempty"`
	VotingLockedAt    *time.Time `firestore:"votingLockedAt" json:"votingLockedAt,omitempty"`
	Hidden            *bool      `firestore:"hidden" json:"hidden,omitempty"`
	Nominees          []Nominee  `firestore:"nominees" json:"nominees"`
	CreatedAt         *time.Time `firestore:"createdAt" json:"createdAt,omitempty"`
	UpdatedAt         *time.Time `firestore:"updatedAt" json:"updatedAt,omitempty"`
}

// IsVotingLocked treats an absent flag as unlocked
func (c Category) IsVotingLocked() bool {
	return c.VotingLocked != nil && *c.VotingLocked
}

// IsHidden treats an absent flag as visible
func (c Category) IsHidden() bool {
	return c.Hidden != nil && *c.Hidden
}

// HasWinner reports whether a winner id has been recorded
func (c Category) HasWinner() bool {
	return c.WinnerID != ""
}

// Winner returns the nominee matching WinnerID, or nil when there is no
// winner or the id does not match any nominee.
func (c Category) Winner() *Nominee {
	if c.WinnerID == "" {
		return nil
	}
	for i := range c.Nominees {
		if c.Nominees[i].ID == c.WinnerID {
			return &c.Nominees[i]
		}
	}
	return nil
}

// Nominee looks up a nominee by id
func (c Category) Nominee(id string) *Nominee {
	for i := range c.Nominees {
		if c.Nominees[i].ID == id {
			return &c.Nominees[i]
		}
	}
	return nil
}

// Competition is a private group of users predicting one ceremony
type Competition struct {
	ID               string     `firestore:"-" json:"id"`
	Name             string     `firestore:"name" json:"name"`
	CeremonyID       string     `firestore:"ceremonyId" json:"ceremonyId"`
	CeremonyYear     string     `firestore:"ceremonyYear" json:"ceremonyYear"`
	Event            string     `firestore:"event" json:"event,omitempty"`
	InviteCode       string     `firestore:"inviteCode" json:"inviteCode"`
	CreatedBy        string     `firestore:"createdBy" json:"createdBy"`
	CreatedAt        *time.Time `firestore:"createdAt" json:"createdAt,omitempty"`
	Status           string     `firestore:"status" json:"status"`
	ParticipantCount int        `firestore:"participantCount" json:"participantCount"`
	ParticipantIDs   []string   `firestore:"participantIds" json:"participantIds,omitempty"`
	CeremonyName     string     `firestore:"ceremonyName" json:"ceremonyName"`
	EventType        string     `firestore:"eventType" json:"eventType,omitempty"`
}

// CompetitionStatus returns the normalized status
func (c Competition) CompetitionStatus() CompetitionStatus {
	return ParseCompetitionStatus(c.Status)
}

// IsInactive reports whether the owner has deactivated the competition
func (c Competition) IsInactive() bool {
	return c.CompetitionStatus() == CompetitionInactive
}

// IsOwnedBy reports whether userID created the competition. This is a
// display hint only; the remote commands enforce ownership.
func (c Competition) IsOwnedBy(userID string) bool {
	return userID != "" && c.CreatedBy == userID
}

// EventDisplayName returns the denormalized ceremony name
func (c Competition) EventDisplayName() string {
	if c.CeremonyName == "" {
		return "Unknown Event"
	}
	return c.CeremonyName
}

// Participant is a user's membership record within a competition
type Participant struct {
	ID            string     `firestore:"-" json:"id"`
	CompetitionID string     `firestore:"odCompetitionId" json:"competitionId"`
	UserID        string     `firestore:"odUserId" json:"userId"`
	DisplayName   string     `firestore:"displayName" json:"displayName"`
	PhotoURL      string     `firestore:"photoURL" json:"photoURL,omitempty"`
	Score         int        `firestore:"score" json:"score"`
	TotalVotes    int        `firestore:"totalVotes" json:"totalVotes"`
	JoinedAt      *time.Time `firestore:"joinedAt" json:"joinedAt,omitempty"`
	Blocked       bool       `firestore:"blocked" json:"blocked"`
}

// ParticipantRecord is a participant document found through the collection
// group index, with the id of the competition that owns it.
type ParticipantRecord struct {
	CompetitionID string
	Participant   Participant
}

// VoteID returns the deterministic vote document id for a user and category
func VoteID(userID, categoryID string) string {
	return userID + "_" + categoryID
}

// Vote is a user's pick for one category within one competition
type Vote struct {
	ID         string     `firestore:"-" json:"id"`
	UserID     string     `firestore:"odUserId" json:"userId"`
	CategoryID string     `firestore:"categoryId" json:"categoryId"`
	NomineeID  string     `firestore:"nomineeId" json:"nomineeId"`
	VotedAt    *time.Time `firestore:"votedAt" json:"votedAt,omitempty"`
	IsCorrect  *bool      `firestore:"isCorrect" json:"isCorrect,omitempty"`

	// CompetitionID is filled in by the client from the document path
	CompetitionID string `firestore:"-" json:"competitionId,omitempty"`
}

// VotedAtOrZero returns the vote timestamp, or the zero time when absent
func (v Vote) VotedAtOrZero() time.Time {
	if v.VotedAt == nil {
		return time.Time{}
	}
	return *v.VotedAt
}

// User is the signed-in user's profile document
type User struct {
	UID         string     `firestore:"-" json:"uid"`
	Email       string     `firestore:"email" json:"email"`
	DisplayName string     `firestore:"displayName" json:"displayName"`
	PhotoURL    string     `firestore:"photoURL" json:"photoURL,omitempty"`
	FcmToken    string     `firestore:"fcmToken" json:"-"`
	CreatedAt   *time.Time `firestore:"createdAt" json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `firestore:"updatedAt" json:"updatedAt,omitempty"`
}

// EventType describes an award show family, such as the Oscars
type EventType struct {
	ID          string     `firestore:"-" json:"id"`
	Slug        string     `firestore:"slug" json:"slug"`
	DisplayName string     `firestore:"displayName" json:"displayName"`
	Color       string     `firestore:"color" json:"color,omitempty"`
	CreatedAt   *time.Time `firestore:"createdAt" json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `firestore:"updatedAt" json:"updatedAt,omitempty"`
}

// EventTypesBySlug indexes event types by slug
func EventTypesBySlug(types []EventType) map[string]EventType {
	out := make(map[string]EventType, len(types))
	for _, t := range types {
		out[t.Slug] = t
	}
	return out
}

// EventTypesBySlugAndID indexes event types by both slug and document id,
// since ceremonies may reference either.
func EventTypesBySlugAndID(types []EventType) map[string]EventType {
	out := make(map[string]EventType, len(types)*2)
	for _, t := range types {
		out[t.Slug] = t
		out[t.ID] = t
	}
	return out
}

// Features is the global feature-flag document
type Features struct {
	RequiresPaymentForCompetitions *bool `firestore:"requiresPaymentForCompetitions" json:"requiresPaymentForCompetitions,omitempty"`
}

// RequiresPayment defaults to true when the flag is absent
func (f *Features) RequiresPayment() bool {
	if f == nil || f.RequiresPaymentForCompetitions == nil {
		return true
	}
	return *f.RequiresPaymentForCompetitions
}

// NormalizeInviteCode upper-cases an invite code and trims surrounding space
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSAction is an inbound WebSocket message asking a view to act
type WSAction struct {
	Action     string `json:"action"`
	CategoryID string `json:"categoryId,omitempty"`
	NomineeID  string `json:"nomineeId,omitempty"`
	Filter     string `json:"filter,omitempty"`
	Event      string `json:"event,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
}
