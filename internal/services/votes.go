package services

import (
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// VoteAggregator merges a user's votes across every competition of a ceremony
type VoteAggregator struct {
	log        logger.Logger
	membership MembershipServicer
	votes      repository.VoteQueries
	metrics    *metrics.Metrics
}

// NewVoteAggregator creates a new VoteAggregator
func NewVoteAggregator(log logger.Logger, membership MembershipServicer, votes repository.VoteQueries, m *metrics.Metrics) *VoteAggregator {
	return &VoteAggregator{
		log:        log,
		membership: membership,
		votes:      votes,
		metrics:    m,
	}
}

// MatchingCompetitions keeps the competitions of the given ceremony year that
// are not inactive and whose event is compatible with event
func MatchingCompetitions(comps []models.Competition, year, event string) []models.Competition {
	var out []models.Competition
	for _, c := range comps {
		if c.CeremonyYear != year || c.IsInactive() {
			continue
		}
		if !models.EventCompatible(event, c.Event) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// OpenCompetitionCount counts the matching competitions that are still open
func OpenCompetitionCount(comps []models.Competition, year, event string) int {
	n := 0
	for _, c := range MatchingCompetitions(comps, year, event) {
		if c.CompetitionStatus() == models.CompetitionOpen {
			n++
		}
	}
	return n
}

func (a *VoteAggregator) matchingIDs(uid, year, event string) stream.Source[[]string] {
	return stream.Map(a.membership.CompetitionsForUser(uid), func(comps []models.Competition) []string {
		matching := MatchingCompetitions(comps, year, event)
		ids := make([]string, len(matching))
		for i, c := range matching {
			ids[i] = c.ID
		}
		return ids
	})
}

func (a *VoteAggregator) memberFailed(uid string) func(string, error) {
	return func(competitionID string, err error) {
		a.log.Warn("Vote subscription failed", "competition_id", competitionID, "user_id", uid, "error", err)
		a.metrics.MemberFailed("votes")
	}
}

// CeremonyVotes watches uid's votes in every matching competition and
// reduces them to the latest vote per category. With no matching
// competition it emits an empty map and stays open.
func (a *VoteAggregator) CeremonyVotes(uid, year, event string) stream.Source[map[string]models.Vote] {
	lists := stream.Combine(a.matchingIDs(uid, year, event), func(competitionID string) stream.Source[[]models.Vote] {
		return a.votes.UserVotes(competitionID, uid)
	}, a.memberFailed(uid))
	return stream.Map(lists, LatestByCategory)
}

// CategoryVote watches the deterministic vote document of uid for one
// category in every matching competition and emits the most recent one, or
// nil when there is none.
func (a *VoteAggregator) CategoryVote(uid, year, event, categoryID string) stream.Source[*models.Vote] {
	voteID := models.VoteID(uid, categoryID)
	docs := stream.Combine(a.matchingIDs(uid, year, event), func(competitionID string) stream.Source[*models.Vote] {
		return a.votes.Vote(competitionID, voteID)
	}, a.memberFailed(uid))
	return stream.Map(docs, LatestVote)
}

// newer reports whether v should replace cur. The later votedAt wins; a
// missing timestamp counts as the zero time. On equal timestamps the vote
// from the lexicographically smaller competition id wins.
func newer(v, cur models.Vote) bool {
	if c := v.VotedAtOrZero().Compare(cur.VotedAtOrZero()); c != 0 {
		return c > 0
	}
	return v.CompetitionID < cur.CompetitionID
}

// LatestByCategory flattens per-competition vote lists into one vote per
// category
func LatestByCategory(lists [][]models.Vote) map[string]models.Vote {
	out := make(map[string]models.Vote)
	for _, votes := range lists {
		for _, v := range votes {
			cur, ok := out[v.CategoryID]
			if !ok || newer(v, cur) {
				out[v.CategoryID] = v
			}
		}
	}
	return out
}

// LatestVote returns the most recent non-nil vote
func LatestVote(votes []*models.Vote) *models.Vote {
	var best *models.Vote
	for _, v := range votes {
		if v == nil {
			continue
		}
		if best == nil || newer(*v, *best) {
			best = v
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// VotesByCategory indexes one competition's votes by category id
func VotesByCategory(votes []models.Vote) map[string]models.Vote {
	return LatestByCategory([][]models.Vote{votes})
}

// sameVotes reports whether two vote maps hold the same picks
func sameVotes(a, b map[string]models.Vote) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || v.ID != w.ID || v.NomineeID != w.NomineeID || v.CompetitionID != w.CompetitionID ||
			!v.VotedAtOrZero().Equal(w.VotedAtOrZero()) {
			return false
		}
	}
	return true
}

// DistinctVotes suppresses consecutive identical vote maps
func DistinctVotes(src stream.Source[map[string]models.Vote]) stream.Source[map[string]models.Vote] {
	return stream.Distinct(src, sameVotes)
}
