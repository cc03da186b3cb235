package services_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository/memory"
	"github.com/aamsco/awardswithfriends/internal/services"
)

func competitionIDs(comps []models.Competition) []string {
	ids := make([]string, len(comps))
	for i, c := range comps {
		ids[i] = c.ID
	}
	return ids
}

func hasCompetitions(want ...string) func([]models.Competition) bool {
	return func(comps []models.Competition) bool {
		got := competitionIDs(comps)
		if len(got) != len(want) {
			return false
		}
		for i := range want {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}
}

func TestCompetitionIDs(t *testing.T) {
	records := []models.ParticipantRecord{
		{CompetitionID: "b"},
		{CompetitionID: "a"},
		{CompetitionID: "b"},
		{CompetitionID: ""},
	}
	assert.Equal(t, []string{"b", "a"}, services.CompetitionIDs(records))
	assert.Empty(t, services.CompetitionIDs(nil))
}

func TestCompetitionsForUser(t *testing.T) {
	e := newEnv(t)
	e.join("u1", e.fx.Competition("c1", "owner", "2025", ""))
	e.join("u2", e.fx.Competition("c2", "owner", "2025", ""))

	out, _ := watch(t, e.membership.CompetitionsForUser("u1"))
	until(t, out, hasCompetitions("c1"))

	e.store.PutParticipant("c2", e.fx.Participant("u1", 0))
	until(t, out, hasCompetitions("c1", "c2"))

	renamed := e.fx.Competition("c2", "owner", "2025", "")
	renamed.Name = "Renamed"
	e.store.PutCompetition(renamed)
	got := until(t, out, func(comps []models.Competition) bool {
		return len(comps) == 2 && comps[1].Name == "Renamed"
	})
	assert.Equal(t, "c2", got[1].ID)

	e.store.RemoveParticipant("c1", "u1")
	until(t, out, hasCompetitions("c2"))
}

func TestCompetitionsForUser_MissingAndFailedCompetitions(t *testing.T) {
	e := newEnv(t)
	e.join("u1", e.fx.Competition("c1", "owner", "2025", ""))
	e.join("u1", e.fx.Competition("c3", "owner", "2025", ""))
	// Participant record without a competition document
	e.store.PutParticipant("c2", e.fx.Participant("u1", 0))
	e.store.Fail(memory.CompetitionTopic("c3"), errors.New("denied"))

	out, _ := watch(t, e.membership.CompetitionsForUser("u1"))
	until(t, out, hasCompetitions("c1"))

	// The missing document appears later
	e.store.PutCompetition(e.fx.Competition("c2", "owner", "2025", ""))
	until(t, out, hasCompetitions("c1", "c2"))
}

func TestCompetitionsForUser_NoMembership(t *testing.T) {
	e := newEnv(t)
	out, _ := watch(t, e.membership.CompetitionsForUser("lonely"))
	assert.Empty(t, first(t, out))
}
