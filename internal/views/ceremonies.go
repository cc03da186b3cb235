package views

import (
	"context"
	"slices"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/stream"
)

// Preferences stores per-user view settings
type Preferences interface {
	Preference(ctx context.Context, uid, key, def string) (string, error)
	SetPreference(ctx context.Context, uid, key, value string) error
}

// CeremoniesState is the state of the ceremony list
type CeremoniesState struct {
	Ceremonies     []models.Ceremony           `json:"ceremonies"`
	EventTypes     map[string]models.EventType `json:"eventTypes"`
	CategoryCounts map[string]int              `json:"categoryCounts"`
	SelectedEvent  string                      `json:"selectedEvent,omitempty"`
	IsLoading      bool                        `json:"isLoading"`
	Error          string                      `json:"error,omitempty"`
}

// CeremoniesView lists every ceremony, newest first
type CeremoniesView struct {
	*holder[CeremoniesState]
	queries repository.CeremonyQueries
	counts  services.CountServicer
	prefs   Preferences
}

// NewCeremoniesView creates a new CeremoniesView
func NewCeremoniesView(log logger.Logger, queries repository.CeremonyQueries, counts services.CountServicer, prefs Preferences) *CeremoniesView {
	return &CeremoniesView{
		holder:  newHolder(log.With("view", "ceremonies"), CeremoniesState{IsLoading: true}),
		queries: queries,
		counts:  counts,
		prefs:   prefs,
	}
}

// SortByDateDesc orders ceremonies newest first; undated ones go last
func SortByDateDesc(ceremonies []models.Ceremony) []models.Ceremony {
	out := slices.Clone(ceremonies)
	slices.SortStableFunc(out, func(a, b models.Ceremony) int {
		switch {
		case a.Date == nil && b.Date == nil:
			return 0
		case a.Date == nil:
			return 1
		case b.Date == nil:
			return -1
		}
		return b.Date.Compare(*a.Date)
	})
	return out
}

// Initialize starts the subscriptions for uid
func (v *CeremoniesView) Initialize(ctx context.Context, uid string) {
	life, ok := v.begin(uid)
	if !ok {
		return
	}

	if event, err := v.prefs.Preference(ctx, uid, repository.PrefEventFilter, ""); err != nil {
		v.log.Warn("Failed to load event filter", "error", err)
	} else {
		v.update(func(s *CeremoniesState) { s.SelectedEvent = event })
	}

	follow(life, v.holder, "event_types", v.queries.EventTypes(),
		func(s *CeremoniesState, types []models.EventType) {
			s.EventTypes = models.EventTypesBySlug(types)
		}, nil)

	// One ceremonies listener feeds both the list and the category counts
	shared := stream.NewRelay[[]models.Ceremony]()
	follow(life, v.holder, "ceremonies", v.queries.Ceremonies(),
		func(s *CeremoniesState, ceremonies []models.Ceremony) {
			s.Ceremonies = SortByDateDesc(ceremonies)
			s.IsLoading = false
			shared.Publish(ceremonies)
		},
		func(s *CeremoniesState, err error) {
			s.Error = err.Error()
			s.IsLoading = false
		})

	follow(life, v.holder, "category_counts", v.counts.Track(shared.Source()),
		func(s *CeremoniesState, counts map[string]int) {
			s.CategoryCounts = counts
		}, nil)
}

// SetEventFilter selects the event to list and remembers it. An empty
// event lists every ceremony.
func (v *CeremoniesView) SetEventFilter(ctx context.Context, event string) error {
	v.update(func(s *CeremoniesState) { s.SelectedEvent = event })
	uid, _ := v.currentScope().(string)
	if uid == "" {
		return nil
	}
	return v.prefs.SetPreference(ctx, uid, repository.PrefEventFilter, event)
}

// Visible returns the ceremonies matching the event filter, hidden ones
// excluded
func (v *CeremoniesView) Visible() []models.Ceremony {
	s := v.State()
	var out []models.Ceremony
	for _, c := range s.Ceremonies {
		if c.Hidden {
			continue
		}
		if s.SelectedEvent != "" && c.Event != s.SelectedEvent {
			continue
		}
		out = append(out, c)
	}
	return out
}

// CategoryCount returns the stored category count of c, falling back to the
// estimate. ok is false while neither is known.
func (v *CeremoniesView) CategoryCount(c models.Ceremony) (n int, ok bool) {
	if c.CategoryCount != nil {
		return *c.CategoryCount, true
	}
	n, ok = v.State().CategoryCounts[c.ID]
	return n, ok
}

// ClearError dismisses the current error
func (v *CeremoniesView) ClearError() {
	v.update(func(s *CeremoniesState) { s.Error = "" })
}
