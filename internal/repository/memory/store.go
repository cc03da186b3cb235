// Package memory provides an in-process implementation of the live queries.
// Every mutation notifies the listeners of the affected topic, which then
// re-read the current state. Failures can be injected per topic.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

var _ repository.LiveQueries = (*Store)(nil)

// Topic names, usable with Fail and Recover
func UserTopic(uid string) string            { return "user/" + uid }
func CompetitionTopic(id string) string      { return "competition/" + id }
func ParticipantsTopic(compID string) string { return "participants/" + compID }
func CeremonyTopic(id string) string         { return "ceremony/" + id }
func CategoriesTopic(year string) string     { return "categories/" + year }
func LegacyCategoriesTopic(ceremonyID string) string {
	return "legacy_categories/" + ceremonyID
}
func LegacyNomineesTopic(ceremonyID, categoryID string) string {
	return "legacy_nominees/" + ceremonyID + "/" + categoryID
}
func VotesTopic(compID string) string { return "votes/" + compID }

const (
	ParticipantRecordsTopic = "participant_records"
	CeremoniesTopic         = "ceremonies"
	EventTypesTopic         = "event_types"
	FeaturesTopic           = "features"
)

// Store is an in-memory document store with live queries
type Store struct {
	mu               sync.Mutex
	users            map[string]models.User
	competitions     map[string]models.Competition
	participants     map[string]map[string]models.Participant
	ceremonies       map[string]models.Ceremony
	categories       map[string]models.Category
	legacyCategories map[string]map[string]models.Category
	legacyNominees   map[string][]models.Nominee
	eventTypes       map[string]models.EventType
	votes            map[string]map[string]models.Vote
	features         *models.Features

	failures map[string]error
	watchers map[string]map[chan struct{}]struct{}
	active   atomic.Int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:            map[string]models.User{},
		competitions:     map[string]models.Competition{},
		participants:     map[string]map[string]models.Participant{},
		ceremonies:       map[string]models.Ceremony{},
		categories:       map[string]models.Category{},
		legacyCategories: map[string]map[string]models.Category{},
		legacyNominees:   map[string][]models.Nominee{},
		eventTypes:       map[string]models.EventType{},
		votes:            map[string]map[string]models.Vote{},
		failures:         map[string]error{},
		watchers:         map[string]map[chan struct{}]struct{}{},
	}
}

// ActiveSubscriptions returns the number of live listeners
func (s *Store) ActiveSubscriptions() int {
	return int(s.active.Load())
}

// Listeners returns the number of live listeners on topic
func (s *Store) Listeners(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[topic])
}

// notify must be called with s.mu held
func (s *Store) notify(topics ...string) {
	for _, topic := range topics {
		for ch := range s.watchers[topic] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

func (s *Store) mutate(fn func() []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify(fn()...)
}

// Fail makes current and future listeners of topic fail with err
func (s *Store) Fail(topic string, err error) {
	s.mutate(func() []string {
		s.failures[topic] = err
		return []string{topic}
	})
}

// Recover clears an injected failure
func (s *Store) Recover(topic string) {
	s.mu.Lock()
	delete(s.failures, topic)
	s.mu.Unlock()
}

func watch[T any](s *Store, topic string, read func() T) stream.Source[T] {
	return func(ctx context.Context, emit func(T)) error {
		ch := make(chan struct{}, 1)
		s.mu.Lock()
		if s.watchers[topic] == nil {
			s.watchers[topic] = map[chan struct{}]struct{}{}
		}
		s.watchers[topic][ch] = struct{}{}
		s.mu.Unlock()
		s.active.Add(1)

		defer func() {
			s.mu.Lock()
			delete(s.watchers[topic], ch)
			s.mu.Unlock()
			s.active.Add(-1)
		}()

		for {
			s.mu.Lock()
			if err := s.failures[topic]; err != nil {
				s.mu.Unlock()
				return err
			}
			v := read()
			s.mu.Unlock()

			emit(v)

			select {
			case <-ctx.Done():
				return nil
			case <-ch:
			}
		}
	}
}

func sortedValues[K comparable, V any](m map[K]V, less func(a, b V) int) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, less)
	return out
}

// ===== Mutators =====

func (s *Store) PutUser(u models.User) {
	s.mutate(func() []string {
		s.users[u.UID] = u
		return []string{UserTopic(u.UID)}
	})
}

func (s *Store) PutCompetition(c models.Competition) {
	s.mutate(func() []string {
		s.competitions[c.ID] = c
		return []string{CompetitionTopic(c.ID)}
	})
}

func (s *Store) DeleteCompetition(id string) {
	s.mutate(func() []string {
		delete(s.competitions, id)
		delete(s.participants, id)
		delete(s.votes, id)
		return []string{CompetitionTopic(id), ParticipantsTopic(id), ParticipantRecordsTopic, VotesTopic(id)}
	})
}

// PutParticipant stores a participant under a competition. The participant
// id defaults to the user id.
func (s *Store) PutParticipant(competitionID string, p models.Participant) {
	if p.ID == "" {
		p.ID = p.UserID
	}
	p.CompetitionID = competitionID
	s.mutate(func() []string {
		if s.participants[competitionID] == nil {
			s.participants[competitionID] = map[string]models.Participant{}
		}
		s.participants[competitionID][p.ID] = p
		return []string{ParticipantsTopic(competitionID), ParticipantRecordsTopic}
	})
}

func (s *Store) RemoveParticipant(competitionID, participantID string) {
	s.mutate(func() []string {
		delete(s.participants[competitionID], participantID)
		return []string{ParticipantsTopic(competitionID), ParticipantRecordsTopic}
	})
}

func (s *Store) PutCeremony(c models.Ceremony) {
	s.mutate(func() []string {
		s.ceremonies[c.ID] = c
		return []string{CeremonyTopic(c.ID), CeremoniesTopic}
	})
}

func (s *Store) PutCategory(c models.Category) {
	s.mutate(func() []string {
		topics := []string{CategoriesTopic(c.CeremonyYear)}
		if old, ok := s.categories[c.ID]; ok && old.CeremonyYear != c.CeremonyYear {
			topics = append(topics, CategoriesTopic(old.CeremonyYear))
		}
		s.categories[c.ID] = c
		return topics
	})
}

func (s *Store) PutLegacyCategory(ceremonyID string, c models.Category) {
	s.mutate(func() []string {
		if s.legacyCategories[ceremonyID] == nil {
			s.legacyCategories[ceremonyID] = map[string]models.Category{}
		}
		s.legacyCategories[ceremonyID][c.ID] = c
		return []string{LegacyCategoriesTopic(ceremonyID)}
	})
}

func (s *Store) PutLegacyNominees(ceremonyID, categoryID string, nominees []models.Nominee) {
	s.mutate(func() []string {
		s.legacyNominees[ceremonyID+"/"+categoryID] = slices.Clone(nominees)
		return []string{LegacyNomineesTopic(ceremonyID, categoryID)}
	})
}

func (s *Store) PutEventType(e models.EventType) {
	s.mutate(func() []string {
		s.eventTypes[e.ID] = e
		return []string{EventTypesTopic}
	})
}

// PutVote stores a vote. The vote id defaults to the deterministic
// "{user}_{category}" id.
func (s *Store) PutVote(competitionID string, v models.Vote) {
	if v.ID == "" {
		v.ID = models.VoteID(v.UserID, v.CategoryID)
	}
	v.CompetitionID = competitionID
	s.mutate(func() []string {
		if s.votes[competitionID] == nil {
			s.votes[competitionID] = map[string]models.Vote{}
		}
		s.votes[competitionID][v.ID] = v
		return []string{VotesTopic(competitionID)}
	})
}

func (s *Store) SetFeatures(f *models.Features) {
	s.mutate(func() []string {
		s.features = f
		return []string{FeaturesTopic}
	})
}

// ===== Live queries =====

func (s *Store) User(uid string) stream.Source[*models.User] {
	return watch(s, UserTopic(uid), func() *models.User {
		u, ok := s.users[uid]
		if !ok {
			return nil
		}
		return &u
	})
}

func (s *Store) Competition(id string) stream.Source[*models.Competition] {
	return watch(s, CompetitionTopic(id), func() *models.Competition {
		c, ok := s.competitions[id]
		if !ok {
			return nil
		}
		return &c
	})
}

func (s *Store) ParticipantRecordsForUser(uid string) stream.Source[[]models.ParticipantRecord] {
	return watch(s, ParticipantRecordsTopic, func() []models.ParticipantRecord {
		var out []models.ParticipantRecord
		for compID, members := range s.participants {
			for _, p := range members {
				if p.UserID == uid {
					out = append(out, models.ParticipantRecord{CompetitionID: compID, Participant: p})
				}
			}
		}
		slices.SortFunc(out, func(a, b models.ParticipantRecord) int {
			return cmp.Compare(a.CompetitionID, b.CompetitionID)
		})
		return out
	})
}

func (s *Store) Participants(competitionID string) stream.Source[[]models.Participant] {
	return watch(s, ParticipantsTopic(competitionID), func() []models.Participant {
		return sortedValues(s.participants[competitionID], func(a, b models.Participant) int {
			return cmp.Compare(a.ID, b.ID)
		})
	})
}

func (s *Store) Ceremonies() stream.Source[[]models.Ceremony] {
	return watch(s, CeremoniesTopic, func() []models.Ceremony {
		return sortedValues(s.ceremonies, func(a, b models.Ceremony) int {
			switch {
			case a.Date == nil && b.Date == nil:
				return cmp.Compare(a.ID, b.ID)
			case a.Date == nil:
				return -1
			case b.Date == nil:
				return 1
			}
			return a.Date.Compare(*b.Date)
		})
	})
}

func (s *Store) Ceremony(id string) stream.Source[*models.Ceremony] {
	return watch(s, CeremonyTopic(id), func() *models.Ceremony {
		c, ok := s.ceremonies[id]
		if !ok {
			return nil
		}
		return &c
	})
}

func byDisplayOrder(a, b models.Category) int {
	if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (s *Store) Categories(year string) stream.Source[[]models.Category] {
	return watch(s, CategoriesTopic(year), func() []models.Category {
		var out []models.Category
		for _, c := range s.categories {
			if c.CeremonyYear == year {
				out = append(out, c)
			}
		}
		slices.SortFunc(out, byDisplayOrder)
		return out
	})
}

func (s *Store) LegacyCategories(ceremonyID string) stream.Source[[]models.Category] {
	return watch(s, LegacyCategoriesTopic(ceremonyID), func() []models.Category {
		return sortedValues(s.legacyCategories[ceremonyID], byDisplayOrder)
	})
}

func (s *Store) LegacyNominees(ceremonyID, categoryID string) stream.Source[[]models.Nominee] {
	return watch(s, LegacyNomineesTopic(ceremonyID, categoryID), func() []models.Nominee {
		return slices.Clone(s.legacyNominees[ceremonyID+"/"+categoryID])
	})
}

func (s *Store) EventTypes() stream.Source[[]models.EventType] {
	return watch(s, EventTypesTopic, func() []models.EventType {
		return sortedValues(s.eventTypes, func(a, b models.EventType) int {
			return cmp.Compare(a.ID, b.ID)
		})
	})
}

func (s *Store) UserVotes(competitionID, uid string) stream.Source[[]models.Vote] {
	return watch(s, VotesTopic(competitionID), func() []models.Vote {
		var out []models.Vote
		for _, v := range s.votes[competitionID] {
			if v.UserID == uid {
				out = append(out, v)
			}
		}
		slices.SortFunc(out, func(a, b models.Vote) int { return cmp.Compare(a.ID, b.ID) })
		return out
	})
}

func (s *Store) AllVotes(competitionID string) stream.Source[[]models.Vote] {
	return watch(s, VotesTopic(competitionID), func() []models.Vote {
		return sortedValues(s.votes[competitionID], func(a, b models.Vote) int {
			return cmp.Compare(a.ID, b.ID)
		})
	})
}

func (s *Store) Vote(competitionID, voteID string) stream.Source[*models.Vote] {
	return watch(s, VotesTopic(competitionID), func() *models.Vote {
		v, ok := s.votes[competitionID][voteID]
		if !ok {
			return nil
		}
		return &v
	})
}

func (s *Store) Features() stream.Source[*models.Features] {
	return watch(s, FeaturesTopic, func() *models.Features {
		if s.features == nil {
			return nil
		}
		f := *s.features
		return &f
	})
}
