package services

import (
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// CategoryCountEstimator counts the visible categories of ceremonies that do
// not store a category count
type CategoryCountEstimator struct {
	log     logger.Logger
	queries repository.CeremonyQueries
	metrics *metrics.Metrics
}

// NewCategoryCountEstimator creates a new CategoryCountEstimator
func NewCategoryCountEstimator(log logger.Logger, queries repository.CeremonyQueries, m *metrics.Metrics) *CategoryCountEstimator {
	return &CategoryCountEstimator{
		log:     log,
		queries: queries,
		metrics: m,
	}
}

// countKey identifies one counting subscription. A ceremony whose year or
// event changes gets a fresh subscription.
type countKey struct {
	CeremonyID string
	Year       string
	Event      string
}

type countResult struct {
	ceremonyID string
	count      int
	resolved   bool
}

// CountVisible counts the categories that are compatible with event and
// not hidden
func CountVisible(cats []models.Category, event string) int {
	n := 0
	for _, c := range FilterByEvent(cats, event) {
		if !c.IsHidden() {
			n++
		}
	}
	return n
}

// NeedsCount lists the ceremonies that carry no stored category count
func NeedsCount(ceremonies []models.Ceremony) []models.Ceremony {
	var out []models.Ceremony
	for _, c := range ceremonies {
		if c.CategoryCount == nil {
			out = append(out, c)
		}
	}
	return out
}

// Track watches ceremonies and publishes ceremony id -> visible category
// count for every ceremony lacking a stored count. Counts appear one by one
// as they resolve. Each ceremony keeps a single subscription for as long as
// it lacks a count, however often the ceremony list changes.
func (e *CategoryCountEstimator) Track(ceremonies stream.Source[[]models.Ceremony]) stream.Source[map[string]int] {
	keys := stream.Map(ceremonies, func(cs []models.Ceremony) []countKey {
		need := NeedsCount(cs)
		out := make([]countKey, len(need))
		for i, c := range need {
			out[i] = countKey{CeremonyID: c.ID, Year: c.Year, Event: c.Event}
		}
		return out
	})

	open := func(k countKey) stream.Source[countResult] {
		counted := stream.Map(e.queries.Categories(k.Year), func(cats []models.Category) countResult {
			return countResult{ceremonyID: k.CeremonyID, count: CountVisible(cats, k.Event), resolved: true}
		})
		return stream.StartWith(countResult{ceremonyID: k.CeremonyID}, counted)
	}
	onErr := func(k countKey, err error) {
		e.log.Warn("Category count subscription failed", "ceremony_id", k.CeremonyID, "year", k.Year, "error", err)
		e.metrics.MemberFailed("category_counts")
	}

	return stream.Map(stream.Combine(keys, open, onErr), func(results []countResult) map[string]int {
		out := make(map[string]int, len(results))
		for _, r := range results {
			if r.resolved {
				out[r.ceremonyID] = r.count
			}
		}
		return out
	})
}
