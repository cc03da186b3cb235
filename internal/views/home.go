package views

import (
	"context"
	"slices"
	"strings"

	"github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/services"
)

// CompetitionFilter narrows the home list
type CompetitionFilter string

const (
	FilterAll    CompetitionFilter = "ALL"
	FilterMine   CompetitionFilter = "MINE"
	FilterJoined CompetitionFilter = "JOINED"
)

// ParseCompetitionFilter accepts a filter name in any case
func ParseCompetitionFilter(s string) (CompetitionFilter, error) {
	switch f := CompetitionFilter(strings.ToUpper(strings.TrimSpace(s))); f {
	case FilterAll, FilterMine, FilterJoined:
		return f, nil
	case "":
		return FilterAll, nil
	default:
		return FilterAll, errors.InvalidInputf("unknown competition filter %q", s)
	}
}

// HomeState is the state of the competition list
type HomeState struct {
	Competitions          []models.Competition        `json:"competitions"`
	EventTypes            map[string]models.EventType `json:"eventTypes"`
	Filter                CompetitionFilter           `json:"filter"`
	RequiresPayment       bool                        `json:"requiresPayment"`
	HasCompetitionsAccess bool                        `json:"hasCompetitionsAccess"`
	IsLoading             bool                        `json:"isLoading"`
	Error                 string                      `json:"error,omitempty"`
}

// HomeView lists the competitions of the user
type HomeView struct {
	*holder[HomeState]
	membership services.MembershipServicer
	queries    repository.CeremonyQueries
	features   services.FeatureServicer
	prefs      Preferences
}

// NewHomeView creates a new HomeView
func NewHomeView(
	log logger.Logger,
	membership services.MembershipServicer,
	queries repository.CeremonyQueries,
	features services.FeatureServicer,
	prefs Preferences,
) *HomeView {
	return &HomeView{
		holder:     newHolder(log.With("view", "home"), HomeState{IsLoading: true, Filter: FilterAll, RequiresPayment: true}),
		membership: membership,
		queries:    queries,
		features:   features,
		prefs:      prefs,
	}
}

// SortCompetitions puts inactive competitions last and orders the rest
// newest first
func SortCompetitions(comps []models.Competition) []models.Competition {
	out := slices.Clone(comps)
	slices.SortStableFunc(out, func(a, b models.Competition) int {
		if ai, bi := a.IsInactive(), b.IsInactive(); ai != bi {
			if ai {
				return 1
			}
			return -1
		}
		switch {
		case a.CreatedAt == nil && b.CreatedAt == nil:
			return 0
		case a.CreatedAt == nil:
			return 1
		case b.CreatedAt == nil:
			return -1
		}
		return b.CreatedAt.Compare(*a.CreatedAt)
	})
	return out
}

// FilterCompetitions applies filter for uid. Inactive competitions are only
// listed for their owner.
func FilterCompetitions(comps []models.Competition, uid string, filter CompetitionFilter) []models.Competition {
	var out []models.Competition
	for _, c := range comps {
		if c.IsInactive() && !c.IsOwnedBy(uid) {
			continue
		}
		switch filter {
		case FilterMine:
			if !c.IsOwnedBy(uid) {
				continue
			}
		case FilterJoined:
			if c.IsOwnedBy(uid) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// Initialize starts the subscriptions for uid
func (v *HomeView) Initialize(ctx context.Context, uid string) {
	life, ok := v.begin(uid)
	if !ok {
		return
	}

	filter := FilterAll
	if stored, err := v.prefs.Preference(ctx, uid, repository.PrefCompetitionFilter, string(FilterAll)); err != nil {
		v.log.Warn("Failed to load competition filter", "error", err)
	} else if f, err := ParseCompetitionFilter(stored); err == nil {
		filter = f
	}
	v.update(func(s *HomeState) {
		s.Filter = filter
		s.HasCompetitionsAccess = v.features.HasCompetitionsAccess(uid)
	})

	follow(life, v.holder, "competitions", v.membership.CompetitionsForUser(uid),
		func(s *HomeState, comps []models.Competition) {
			s.Competitions = SortCompetitions(comps)
			s.IsLoading = false
		},
		func(s *HomeState, err error) {
			s.Error = err.Error()
			s.IsLoading = false
		})

	follow(life, v.holder, "event_types", v.queries.EventTypes(),
		func(s *HomeState, types []models.EventType) {
			s.EventTypes = models.EventTypesBySlugAndID(types)
		}, nil)

	follow(life, v.holder, "requires_payment", v.features.RequiresPayment(),
		func(s *HomeState, required bool) { s.RequiresPayment = required },
		nil)
}

// SetFilter changes the filter and remembers it
func (v *HomeView) SetFilter(ctx context.Context, filter CompetitionFilter) error {
	v.update(func(s *HomeState) { s.Filter = filter })
	uid, _ := v.currentScope().(string)
	if uid == "" {
		return nil
	}
	return v.prefs.SetPreference(ctx, uid, repository.PrefCompetitionFilter, string(filter))
}

// Filtered returns the competitions to list
func (v *HomeView) Filtered() []models.Competition {
	uid, _ := v.currentScope().(string)
	s := v.State()
	if uid == "" {
		return s.Competitions
	}
	return FilterCompetitions(s.Competitions, uid, s.Filter)
}

// CanAccessCompetitions reports whether the user may open competitions
func (v *HomeView) CanAccessCompetitions() bool {
	s := v.State()
	return !s.RequiresPayment || s.HasCompetitionsAccess
}

// IsOwner reports whether the user created c
func (v *HomeView) IsOwner(c models.Competition) bool {
	uid, _ := v.currentScope().(string)
	return c.IsOwnedBy(uid)
}

// EventDisplayName resolves the event of c through the event types
func (v *HomeView) EventDisplayName(c models.Competition) string {
	if c.Event == "" {
		return "Unknown Event"
	}
	if et, ok := v.State().EventTypes[c.Event]; ok && et.DisplayName != "" {
		return et.DisplayName
	}
	return "Unknown Event"
}

// ClearError dismisses the current error
func (v *HomeView) ClearError() {
	v.update(func(s *HomeState) { s.Error = "" })
}
