package services_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/testutil"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

const inviteBase = "https://awardswithfriends.app/join"

func newCompetitionService(client functions.Client) *services.CompetitionService {
	return services.NewCompetitionService(logger.NewDiscard(), client, inviteBase, 128)
}

func TestSanitizeInviteCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ab12cd", "AB12CD"},
		{" ab-12 cd ", "AB12CD"},
		{"abcdefgh", "ABCDEF"},
		{"ÄBC123", "BC123"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, services.SanitizeInviteCode(tt.in))
		})
	}
}

func TestJoin_SendsUppercaseCode(t *testing.T) {
	client := functions.NewMockClient(functions.WithJoinResult(functions.JoinCompetitionResult{
		CompetitionID: "c1", CompetitionName: "Movie Night",
	}))
	svc := newCompetitionService(client)

	res, err := svc.Join(context.Background(), "ab12cd")
	require.NoError(t, err)
	assert.Equal(t, "c1", res.CompetitionID)
	assert.Equal(t, "Movie Night", res.CompetitionName)

	calls := client.CallsTo(functions.FnJoinCompetition)
	require.Len(t, calls, 1)
	assert.Equal(t, "AB12CD", calls[0].Data["inviteCode"])
}

func TestJoin_DefaultName(t *testing.T) {
	svc := newCompetitionService(functions.NewMockClient())

	res, err := svc.Join(context.Background(), "XYZ789")
	require.NoError(t, err)
	assert.Equal(t, "Competition", res.CompetitionName)
}

func TestJoin_ShortCodeRejected(t *testing.T) {
	client := functions.NewMockClient()
	svc := newCompetitionService(client)

	_, err := svc.Join(context.Background(), "ab-12")
	assert.True(t, apperrors.IsKind(err, apperrors.ErrValidation))
	assert.Empty(t, client.Calls())
}

func TestJoin_CommandError(t *testing.T) {
	notFound := &functions.Error{Function: functions.FnJoinCompetition, Status: functions.StatusNotFound, Message: "invalid invite code"}
	svc := newCompetitionService(functions.NewMockClient(functions.WithError(functions.FnJoinCompetition, notFound)))

	_, err := svc.Join(context.Background(), "AB12CD")
	assert.Equal(t, functions.StatusNotFound, functions.StatusOf(err))
}

func TestCreate(t *testing.T) {
	client := functions.NewMockClient()
	svc := newCompetitionService(client)

	_, err := svc.Create(context.Background(), services.NewCompetition{Name: "   ", CeremonyYear: "2025"})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrValidation))

	_, err = svc.Create(context.Background(), services.NewCompetition{Name: "Pool"})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrValidation))
	assert.Empty(t, client.Calls())

	res, err := svc.Create(context.Background(), services.NewCompetition{Name: "  Office Pool ", CeremonyYear: "2025", Event: "oscars"})
	require.NoError(t, err)
	assert.Equal(t, "comp-1", res.CompetitionID)

	calls := client.CallsTo(functions.FnCreateCompetition)
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"name": "Office Pool", "ceremonyYear": "2025", "event": "oscars"}, calls[0].Data)
}

func TestToggleInactive(t *testing.T) {
	client := functions.NewMockClient()
	svc := newCompetitionService(client)
	fx := testutil.NewFixtures(7)

	c := fx.Competition("c1", "owner", "2025", "")
	require.NoError(t, svc.ToggleInactive(context.Background(), c))

	c.Status = string(models.CompetitionInactive)
	require.NoError(t, svc.ToggleInactive(context.Background(), c))

	calls := client.CallsTo(functions.FnSetCompetitionInactive)
	require.Len(t, calls, 2)
	assert.Equal(t, true, calls[0].Data["inactive"])
	assert.Equal(t, false, calls[1].Data["inactive"])
}

func TestLeaveDelete_RequireID(t *testing.T) {
	client := functions.NewMockClient()
	svc := newCompetitionService(client)

	assert.Error(t, svc.Leave(context.Background(), ""))
	assert.Error(t, svc.Delete(context.Background(), ""))
	assert.Empty(t, client.Calls())

	require.NoError(t, svc.Leave(context.Background(), "c1"))
	require.NoError(t, svc.Delete(context.Background(), "c2"))
	assert.Len(t, client.CallsTo(functions.FnLeaveCompetition), 1)
	assert.Len(t, client.CallsTo(functions.FnDeleteCompetition), 1)
}

func TestInviteLinkAndQR(t *testing.T) {
	svc := newCompetitionService(functions.NewMockClient())

	assert.Equal(t, inviteBase+"?code=AB12CD", svc.InviteLink("ab12cd"))

	png, err := svc.InviteQR("ab12cd")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "expected PNG header")

	_, err = svc.InviteQR("abc")
	assert.True(t, apperrors.IsKind(err, apperrors.ErrValidation))
}

func TestShareMessage(t *testing.T) {
	svc := newCompetitionService(functions.NewMockClient())
	msg := svc.ShareMessage(models.Competition{Name: "Office Pool", InviteCode: "AB12CD"})

	assert.True(t, strings.Contains(msg, "Unknown Event"))
	assert.True(t, strings.Contains(msg, "Invite code: AB12CD"))
	assert.True(t, strings.HasSuffix(msg, inviteBase+"?code=AB12CD"))
}

func TestActiveCeremonies(t *testing.T) {
	ceremonies := []models.Ceremony{
		{ID: "a", Status: string(models.CeremonyUpcoming)},
		{ID: "b", Status: string(models.CeremonyCompleted)},
		{ID: "c"},
	}
	var ids []string
	for _, c := range services.ActiveCeremonies(ceremonies) {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}
