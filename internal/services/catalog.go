package services

import (
	"slices"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// CategoryScope selects where the categories of a competition live. It is
// either a CurrentScope or a LegacyScope.
type CategoryScope interface {
	isCategoryScope()
}

// CurrentScope reads the top-level categories of a ceremony year, filtered
// by event
type CurrentScope struct {
	Year  string
	Event string
}

// LegacyScope reads the categories stored under a ceremony document
type LegacyScope struct {
	CeremonyID string
}

func (CurrentScope) isCategoryScope() {}
func (LegacyScope) isCategoryScope()  {}

// ScopeFor resolves the category scope of a competition. Competitions that
// predate the ceremony year field only carry a ceremony id.
func ScopeFor(c models.Competition) CategoryScope {
	if c.CeremonyYear != "" {
		return CurrentScope{Year: c.CeremonyYear, Event: c.Event}
	}
	return LegacyScope{CeremonyID: c.CeremonyID}
}

// CategoryCatalog serves the categories of a scope
type CategoryCatalog struct {
	log     logger.Logger
	queries repository.CeremonyQueries
	metrics *metrics.Metrics
}

// NewCategoryCatalog creates a new CategoryCatalog
func NewCategoryCatalog(log logger.Logger, queries repository.CeremonyQueries, m *metrics.Metrics) *CategoryCatalog {
	return &CategoryCatalog{
		log:     log,
		queries: queries,
		metrics: m,
	}
}

// FilterByEvent keeps categories compatible with event
func FilterByEvent(cats []models.Category, event string) []models.Category {
	if event == "" {
		return cats
	}
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		if models.EventCompatible(event, c.Event) {
			out = append(out, c)
		}
	}
	return out
}

// VisibleSorted drops hidden categories and orders the rest by display order
func VisibleSorted(cats []models.Category) []models.Category {
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		if !c.IsHidden() {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Category) int {
		return a.DisplayOrder - b.DisplayOrder
	})
	return out
}

// Categories watches every category of scope, hidden ones included
func (c *CategoryCatalog) Categories(scope CategoryScope) stream.Source[[]models.Category] {
	switch s := scope.(type) {
	case CurrentScope:
		return stream.Map(c.queries.Categories(s.Year), func(cats []models.Category) []models.Category {
			return FilterByEvent(cats, s.Event)
		})
	case LegacyScope:
		return c.legacyCategories(s.CeremonyID)
	default:
		return stream.Just[[]models.Category](nil)
	}
}

// Category watches a single category of scope. It emits nil while the
// category is absent.
func (c *CategoryCatalog) Category(scope CategoryScope, categoryID string) stream.Source[*models.Category] {
	return stream.Map(c.Categories(scope), func(cats []models.Category) *models.Category {
		for i := range cats {
			if cats[i].ID == categoryID {
				out := cats[i]
				return &out
			}
		}
		return nil
	})
}

type categoryNominees struct {
	categoryID string
	nominees   []models.Nominee
}

// legacyCategories fills nominees from the per-category sub-collection for
// categories that do not embed them
func (c *CategoryCatalog) legacyCategories(ceremonyID string) stream.Source[[]models.Category] {
	return stream.SwitchMap(c.queries.LegacyCategories(ceremonyID), func(cats []models.Category) stream.Source[[]models.Category] {
		var missing []string
		for _, cat := range cats {
			if len(cat.Nominees) == 0 {
				missing = append(missing, cat.ID)
			}
		}
		if len(missing) == 0 {
			return stream.Just(cats)
		}

		open := func(categoryID string) stream.Source[categoryNominees] {
			return stream.Map(c.queries.LegacyNominees(ceremonyID, categoryID), func(n []models.Nominee) categoryNominees {
				return categoryNominees{categoryID: categoryID, nominees: n}
			})
		}
		onErr := func(categoryID string, err error) {
			c.log.Warn("Nominee subscription failed", "ceremony_id", ceremonyID, "category_id", categoryID, "error", err)
			c.metrics.MemberFailed("nominees")
		}
		combined := stream.Combine(stream.Just(missing), open, onErr)
		return stream.Map(combined, func(found []categoryNominees) []models.Category {
			byID := make(map[string][]models.Nominee, len(found))
			for _, f := range found {
				byID[f.categoryID] = f.nominees
			}
			out := make([]models.Category, len(cats))
			for i, cat := range cats {
				if n, ok := byID[cat.ID]; ok && len(cat.Nominees) == 0 {
					cat.Nominees = n
				}
				out[i] = cat
			}
			return out
		})
	})
}
