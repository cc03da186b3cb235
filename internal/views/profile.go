package views

import (
	"context"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/services"
)

// ProfileState is the signed-in user's profile
type ProfileState struct {
	User                 *models.User `json:"user"`
	NotificationsEnabled bool         `json:"notificationsEnabled"`
	IsLoading            bool         `json:"isLoading"`
	Error                string       `json:"error,omitempty"`
}

// ProfileView shows the profile and notification setting of the user
type ProfileView struct {
	*holder[ProfileState]
	account services.AccountServicer
}

// NewProfileView creates a new ProfileView
func NewProfileView(log logger.Logger, account services.AccountServicer) *ProfileView {
	return &ProfileView{
		holder:  newHolder(log.With("view", "profile"), ProfileState{IsLoading: true}),
		account: account,
	}
}

// Initialize starts the subscriptions for uid
func (v *ProfileView) Initialize(ctx context.Context, uid string) {
	life, ok := v.begin(uid)
	if !ok {
		return
	}

	enabled, err := v.account.NotificationsEnabled(ctx, uid)
	if err != nil {
		v.log.Warn("Failed to load notification setting", "error", err)
	}
	v.update(func(s *ProfileState) { s.NotificationsEnabled = enabled })

	follow(life, v.holder, "user", v.account.Profile(uid),
		func(s *ProfileState, u *models.User) {
			s.User = u
			s.IsLoading = false
		},
		func(s *ProfileState, err error) {
			s.Error = err.Error()
			s.IsLoading = false
		})
}

// SetNotificationsEnabled stores the notification setting
func (v *ProfileView) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	uid, _ := v.currentScope().(string)
	if uid == "" {
		return ErrNotInitialized
	}
	if err := v.account.SetNotificationsEnabled(ctx, uid, enabled); err != nil {
		v.update(func(s *ProfileState) { s.Error = err.Error() })
		return err
	}
	v.update(func(s *ProfileState) { s.NotificationsEnabled = enabled })
	return nil
}

// ClearError dismisses the current error
func (v *ProfileView) ClearError() {
	v.update(func(s *ProfileState) { s.Error = "" })
}
