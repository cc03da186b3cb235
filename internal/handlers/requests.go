package handlers

// CreateCompetitionRequest represents a request to create a competition
type CreateCompetitionRequest struct {
	Name         string `json:"name"`
	CeremonyYear string `json:"ceremonyYear"`
	Event        string `json:"event,omitempty"`
}

// JoinCompetitionRequest represents a request to join by invite code
type JoinCompetitionRequest struct {
	InviteCode string `json:"inviteCode"`
}

// SetInactiveRequest represents a request to (de)activate a competition
type SetInactiveRequest struct {
	Inactive *bool `json:"inactive"`
}

// VoteRequest represents a vote within one competition
type VoteRequest struct {
	CategoryID string `json:"categoryId"`
	NomineeID  string `json:"nomineeId"`
}

// CeremonyVoteRequest represents a vote cast for every competition of a
// ceremony
type CeremonyVoteRequest struct {
	CeremonyYear string `json:"ceremonyYear"`
	Event        string `json:"event,omitempty"`
	CategoryID   string `json:"categoryId"`
	NomineeID    string `json:"nomineeId"`
}

// PushTokenRequest represents a push notification token update
type PushTokenRequest struct {
	Token string `json:"token"`
}

// PreferenceRequest represents a preference update
type PreferenceRequest struct {
	Value string `json:"value"`
}
