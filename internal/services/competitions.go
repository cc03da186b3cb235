package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/skip2/go-qrcode"

	"github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

// InviteCodeLength is the fixed length of an invite code
const InviteCodeLength = 6

// CompetitionService handles competition commands
type CompetitionService struct {
	log           logger.Logger
	client        functions.Client
	inviteBaseURL string
	qrSize        int
}

// NewCompetitionService creates a new CompetitionService
func NewCompetitionService(log logger.Logger, client functions.Client, inviteBaseURL string, qrSize int) *CompetitionService {
	if qrSize <= 0 {
		qrSize = 256
	}
	return &CompetitionService{
		log:           log,
		client:        client,
		inviteBaseURL: inviteBaseURL,
		qrSize:        qrSize,
	}
}

// NewCompetition holds the fields of a competition to create
type NewCompetition struct {
	Name         string `json:"name"`
	CeremonyYear string `json:"ceremonyYear"`
	Event        string `json:"event,omitempty"`
}

// SanitizeInviteCode upper-cases code, drops everything but letters and
// digits, and keeps at most InviteCodeLength characters
func SanitizeInviteCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if b.Len() == InviteCodeLength {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ActiveCeremonies keeps the ceremonies a competition can still be created for
func ActiveCeremonies(ceremonies []models.Ceremony) []models.Ceremony {
	var out []models.Ceremony
	for _, c := range ceremonies {
		if !c.IsCompleted() {
			out = append(out, c)
		}
	}
	return out
}

// Create creates a competition owned by the caller
func (s *CompetitionService) Create(ctx context.Context, req NewCompetition) (*functions.CreateCompetitionResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("please enter a competition name")
	}
	if strings.TrimSpace(req.CeremonyYear) == "" {
		return nil, errors.Validation("please select a ceremony")
	}

	res, err := s.client.CreateCompetition(ctx, functions.CreateCompetitionRequest{
		Name:         name,
		CeremonyYear: req.CeremonyYear,
		Event:        req.Event,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Competition created", "competition_id", res.CompetitionID, "year", req.CeremonyYear, "event", req.Event)
	return res, nil
}

// Join joins the competition with the given invite code
func (s *CompetitionService) Join(ctx context.Context, code string) (*functions.JoinCompetitionResult, error) {
	sanitized := SanitizeInviteCode(code)
	if len(sanitized) != InviteCodeLength {
		return nil, errors.Validationf("please enter a %d-character invite code", InviteCodeLength)
	}

	res, err := s.client.JoinCompetition(ctx, sanitized)
	if err != nil {
		return nil, err
	}
	if res.CompetitionName == "" {
		res.CompetitionName = "Competition"
	}
	return res, nil
}

// Leave removes the caller from a competition
func (s *CompetitionService) Leave(ctx context.Context, competitionID string) error {
	if competitionID == "" {
		return errors.Validation("competition is required")
	}
	return s.client.LeaveCompetition(ctx, competitionID)
}

// Delete deletes a competition. Only its owner may do this; the command
// enforces it.
func (s *CompetitionService) Delete(ctx context.Context, competitionID string) error {
	if competitionID == "" {
		return errors.Validation("competition is required")
	}
	return s.client.DeleteCompetition(ctx, competitionID)
}

// SetInactive activates or deactivates a competition
func (s *CompetitionService) SetInactive(ctx context.Context, competitionID string, inactive bool) error {
	if competitionID == "" {
		return errors.Validation("competition is required")
	}
	return s.client.SetCompetitionInactive(ctx, competitionID, inactive)
}

// ToggleInactive flips the inactive state of c. The new state arrives
// through the competition's live query.
func (s *CompetitionService) ToggleInactive(ctx context.Context, c models.Competition) error {
	return s.SetInactive(ctx, c.ID, !c.IsInactive())
}

// InviteLink returns the link that joins with code
func (s *CompetitionService) InviteLink(code string) string {
	code = SanitizeInviteCode(code)
	if s.inviteBaseURL == "" {
		return code
	}
	return s.inviteBaseURL + "?code=" + url.QueryEscape(code)
}

// InviteQR renders the invite link of code as a PNG
func (s *CompetitionService) InviteQR(code string) ([]byte, error) {
	if len(SanitizeInviteCode(code)) != InviteCodeLength {
		return nil, errors.Validationf("invite code must be %d characters", InviteCodeLength)
	}
	return qrcode.Encode(s.InviteLink(code), qrcode.Medium, s.qrSize)
}

// ShareMessage is the text shared when inviting friends
func (s *CompetitionService) ShareMessage(c models.Competition) string {
	return fmt.Sprintf("Join my %s competition %q on Awards With Friends!\n\nInvite code: %s\n\n%s",
		c.EventDisplayName(), c.Name, c.InviteCode, s.InviteLink(c.InviteCode))
}
