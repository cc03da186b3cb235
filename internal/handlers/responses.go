package handlers

import "github.com/aamsco/awardswithfriends/internal/models"

// CompetitionCreatedResponse is the response for competition creation
type CompetitionCreatedResponse struct {
	CompetitionID string `json:"competitionId"`
	InviteCode    string `json:"inviteCode"`
	InviteLink    string `json:"inviteLink"`
}

// JoinedResponse is the response for joining a competition
type JoinedResponse struct {
	CompetitionID   string `json:"competitionId"`
	CompetitionName string `json:"competitionName"`
}

// ShareResponse is the response for the share endpoint
type ShareResponse struct {
	InviteCode string `json:"inviteCode"`
	InviteLink string `json:"inviteLink"`
	Message    string `json:"message"`
}

// CeremonyVoteResponse is the response for a ceremony vote
type CeremonyVoteResponse struct {
	Success   bool         `json:"success"`
	Confirmed bool         `json:"confirmed"`
	Vote      *models.Vote `json:"vote,omitempty"`
}

// CeremonyVotesResponse maps category id to the effective vote
type CeremonyVotesResponse struct {
	Votes map[string]models.Vote `json:"votes"`
}

// PushTokenResponse reports whether the token reached the server
type PushTokenResponse struct {
	Synced bool `json:"synced"`
}

// HealthResponse is the response for the health check
type HealthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}
