package services

import (
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// MembershipResolver resolves the competitions a user participates in
type MembershipResolver struct {
	log     logger.Logger
	queries repository.CompetitionQueries
	metrics *metrics.Metrics
}

// NewMembershipResolver creates a new MembershipResolver
func NewMembershipResolver(log logger.Logger, queries repository.CompetitionQueries, m *metrics.Metrics) *MembershipResolver {
	return &MembershipResolver{
		log:     log,
		queries: queries,
		metrics: m,
	}
}

// CompetitionsForUser watches every competition uid has a participant record
// in. The per-competition subscriptions follow the participant index: joined
// competitions are subscribed, left ones are dropped. Competitions that do
// not exist (yet) are omitted.
func (r *MembershipResolver) CompetitionsForUser(uid string) stream.Source[[]models.Competition] {
	ids := stream.Map(r.queries.ParticipantRecordsForUser(uid), CompetitionIDs)
	combined := stream.Combine(ids, r.queries.Competition, func(id string, err error) {
		r.log.Warn("Competition subscription failed", "competition_id", id, "user_id", uid, "error", err)
		r.metrics.MemberFailed("membership")
	})
	return stream.Map(combined, nonNilCompetitions)
}

// CompetitionIDs returns the distinct competition ids of records, in order
// of first appearance
func CompetitionIDs(records []models.ParticipantRecord) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.CompetitionID == "" {
			continue
		}
		if _, ok := seen[rec.CompetitionID]; ok {
			continue
		}
		seen[rec.CompetitionID] = struct{}{}
		ids = append(ids, rec.CompetitionID)
	}
	return ids
}

func nonNilCompetitions(comps []*models.Competition) []models.Competition {
	out := make([]models.Competition, 0, len(comps))
	for _, c := range comps {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}
