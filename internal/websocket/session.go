package websocket

import (
	"context"

	"github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/views"
)

// Session is a view served to one connection. Its state is pushed as
// "<name>_state" messages and inbound actions are dispatched to Handle.
type Session interface {
	Name() string
	Watch(push func(models.WSMessage)) (unwatch func())
	Handle(ctx context.Context, action models.WSAction) error
	Close()
}

// Watchable is the part of a view a session needs
type Watchable[S any] interface {
	Watch(fn func(S)) (unwatch func())
	Close()
}

// ActionFunc performs one named action on a view
type ActionFunc func(ctx context.Context, a models.WSAction) error

type viewSession[S any] struct {
	name    string
	view    Watchable[S]
	actions map[string]ActionFunc
}

// Bind wraps view as a Session named name
func Bind[S any](name string, view Watchable[S], actions map[string]ActionFunc) Session {
	return &viewSession[S]{name: name, view: view, actions: actions}
}

func (s *viewSession[S]) Name() string { return s.name }

func (s *viewSession[S]) Watch(push func(models.WSMessage)) func() {
	msgType := s.name + "_state"
	return s.view.Watch(func(state S) {
		push(models.WSMessage{Type: msgType, Payload: state})
	})
}

func (s *viewSession[S]) Handle(ctx context.Context, a models.WSAction) error {
	fn, ok := s.actions[a.Action]
	if !ok {
		return errors.InvalidInputf("unknown action %q for %s", a.Action, s.name)
	}
	return fn(ctx, a)
}

func (s *viewSession[S]) Close() { s.view.Close() }

func do(fn func()) ActionFunc {
	return func(context.Context, models.WSAction) error {
		fn()
		return nil
	}
}

// HomeSession serves the competition list
func HomeSession(v *views.HomeView) Session {
	return Bind[views.HomeState]("home", v, map[string]ActionFunc{
		"set_filter": func(ctx context.Context, a models.WSAction) error {
			f, err := views.ParseCompetitionFilter(a.Filter)
			if err != nil {
				return err
			}
			return v.SetFilter(ctx, f)
		},
		"clear_error": do(v.ClearError),
	})
}

// CeremoniesSession serves the ceremony list
func CeremoniesSession(v *views.CeremoniesView) Session {
	return Bind[views.CeremoniesState]("ceremonies", v, map[string]ActionFunc{
		"set_event_filter": func(ctx context.Context, a models.WSAction) error {
			return v.SetEventFilter(ctx, a.Event)
		},
		"clear_error": do(v.ClearError),
	})
}

// CeremonyDetailSession serves one ceremony and its cross-competition votes
func CeremonyDetailSession(v *views.CeremonyDetailView) Session {
	return Bind[views.CeremonyDetailState]("ceremony", v, map[string]ActionFunc{
		"cast_ceremony_vote": func(ctx context.Context, a models.WSAction) error {
			return v.CastCeremonyVote(ctx, a.CategoryID, a.NomineeID)
		},
		"clear_vote_success": do(v.ClearVoteSuccess),
		"clear_error":        do(v.ClearError),
	})
}

// CompetitionSession serves one competition
func CompetitionSession(v *views.CompetitionView) Session {
	return Bind[views.CompetitionState]("competition", v, map[string]ActionFunc{
		"leave": func(ctx context.Context, _ models.WSAction) error {
			return v.Leave(ctx)
		},
		"toggle_inactive": func(ctx context.Context, _ models.WSAction) error {
			return v.ToggleInactive(ctx)
		},
		"clear_error": do(v.ClearError),
	})
}

// CategorySession serves one category of a competition
func CategorySession(v *views.CategoryView) Session {
	return Bind[views.CategoryState]("category", v, map[string]ActionFunc{
		"select_nominee": func(_ context.Context, a models.WSAction) error {
			v.SelectNominee(a.NomineeID)
			return nil
		},
		"cast_vote": func(ctx context.Context, _ models.WSAction) error {
			return v.CastVote(ctx)
		},
		"clear_vote_success": do(v.ClearVoteSuccess),
		"clear_error":        do(v.ClearError),
	})
}

// LeaderboardSession serves the ranking of a competition
func LeaderboardSession(v *views.LeaderboardView) Session {
	return Bind[views.LeaderboardState]("leaderboard", v, map[string]ActionFunc{
		"clear_error": do(v.ClearError),
	})
}

// ProfileSession serves the user's profile
func ProfileSession(v *views.ProfileView) Session {
	return Bind[views.ProfileState]("profile", v, map[string]ActionFunc{
		"set_notifications": func(ctx context.Context, a models.WSAction) error {
			if a.Enabled == nil {
				return errors.InvalidInput("enabled is required")
			}
			return v.SetNotificationsEnabled(ctx, *a.Enabled)
		},
		"clear_error": do(v.ClearError),
	})
}
