package testutil

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
)

// NewTestRepository creates a new in-memory preferences repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// Fixtures generates plausible documents for tests. Values are reproducible
// for a given seed.
type Fixtures struct {
	faker *gofakeit.Faker
	base  time.Time
}

// NewFixtures creates a fixture generator seeded with seed
func NewFixtures(seed int64) *Fixtures {
	return &Fixtures{
		faker: gofakeit.New(uint64(seed)),
		base:  time.Date(2025, time.March, 2, 18, 0, 0, 0, time.UTC),
	}
}

// At returns the fixture base time shifted by d
func (f *Fixtures) At(d time.Duration) *time.Time {
	t := f.base.Add(d)
	return &t
}

// UserID returns a random user id
func (f *Fixtures) UserID() string {
	return f.faker.Numerify("user-##########")
}

// User builds a user profile document
func (f *Fixtures) User(uid string) models.User {
	return models.User{
		UID:         uid,
		Email:       f.faker.Email(),
		DisplayName: f.faker.Name(),
		CreatedAt:   f.At(-24 * time.Hour),
	}
}

// Nominees builds n nominees with ids "n1".."nN"
func (f *Fixtures) Nominees(n int) []models.Nominee {
	out := make([]models.Nominee, n)
	for i := range out {
		out[i] = models.Nominee{
			ID:       "n" + strconv.Itoa(i+1),
			Title:    f.faker.Sentence(f.faker.Number(1, 4)),
			Subtitle: f.faker.Name(),
			ImageURL: f.faker.URL(),
		}
	}
	return out
}

// Category builds a visible, unlocked category with three nominees
func (f *Fixtures) Category(id, year, event string, order int) models.Category {
	return models.Category{
		ID:           id,
		CeremonyYear: year,
		Event:        event,
		Name:         "Best " + f.faker.Noun(),
		DisplayOrder: order,
		Nominees:     f.Nominees(3),
	}
}

// Ceremony builds an upcoming ceremony
func (f *Fixtures) Ceremony(id, year, event string, date time.Duration) models.Ceremony {
	return models.Ceremony{
		ID:     id,
		Name:   fmt.Sprintf("%s %s", f.faker.Company(), year),
		Year:   year,
		Event:  event,
		Date:   f.At(date),
		Status: string(models.CeremonyUpcoming),
	}
}

// Competition builds an open competition owned by owner
func (f *Fixtures) Competition(id, owner, year, event string) models.Competition {
	return models.Competition{
		ID:           id,
		Name:         f.faker.Company() + " Pool",
		CeremonyYear: year,
		Event:        event,
		InviteCode:   f.faker.LetterN(6),
		CreatedBy:    owner,
		CreatedAt:    f.At(0),
		Status:       string(models.CompetitionOpen),
		CeremonyName: f.faker.Company(),
	}
}

// Participant builds a participant row for uid
func (f *Fixtures) Participant(uid string, score int) models.Participant {
	return models.Participant{
		UserID:      uid,
		DisplayName: f.faker.Name(),
		Score:       score,
		JoinedAt:    f.At(time.Hour),
	}
}

// Vote builds a vote cast at base+at
func (f *Fixtures) Vote(uid, categoryID, nomineeID string, at time.Duration) models.Vote {
	return models.Vote{
		UserID:     uid,
		CategoryID: categoryID,
		NomineeID:  nomineeID,
		VotedAt:    f.At(at),
	}
}
