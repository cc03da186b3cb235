package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aamsco/awardswithfriends/internal/errors"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/stream"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

// AccountService handles the signed-in user's profile, push token and
// local preferences
type AccountService struct {
	log    logger.Logger
	users  repository.UserQueries
	prefs  repository.PreferencesRepository
	client functions.Client
}

// NewAccountService creates a new AccountService
func NewAccountService(log logger.Logger, users repository.UserQueries, prefs repository.PreferencesRepository, client functions.Client) *AccountService {
	return &AccountService{
		log:    log,
		users:  users,
		prefs:  prefs,
		client: client,
	}
}

// Profile watches the user document of uid
func (s *AccountService) Profile(uid string) stream.Source[*models.User] {
	return s.users.User(uid)
}

// UpdatePushToken records token locally and sends it to the backend. The
// local row stays unsynced when the command fails.
func (s *AccountService) UpdatePushToken(ctx context.Context, uid, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.Validation("push token is required")
	}
	if err := s.prefs.SavePushToken(ctx, uid, token); err != nil {
		return fmt.Errorf("saving push token: %w", err)
	}
	if err := s.client.UpdateFcmToken(ctx, token); err != nil {
		s.log.Warn("Push token update failed", "user_id", uid, "error", err)
		return err
	}
	if err := s.prefs.MarkPushTokenSynced(ctx, uid, token); err != nil && !stderrors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("marking push token synced: %w", err)
	}
	return nil
}

// SyncPushToken resends a recorded token that the backend has not accepted
// yet. It reports whether a token was sent.
func (s *AccountService) SyncPushToken(ctx context.Context, uid string) (bool, error) {
	pt, err := s.prefs.GetPushToken(ctx, uid)
	if stderrors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if pt.Synced {
		return false, nil
	}
	if err := s.UpdatePushToken(ctx, uid, pt.Token); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAccount deletes the account remotely, then drops local data
func (s *AccountService) DeleteAccount(ctx context.Context, uid string) error {
	if err := s.client.DeleteAccount(ctx); err != nil {
		return err
	}
	if err := s.prefs.DeleteUserData(ctx, uid); err != nil {
		s.log.Error("Failed to remove local data after account deletion", "user_id", uid, "error", err)
		return fmt.Errorf("removing local data: %w", err)
	}
	s.log.Info("Account deleted", "user_id", uid)
	return nil
}

// Preference returns a stored preference, or def when none is stored
func (s *AccountService) Preference(ctx context.Context, uid, key, def string) (string, error) {
	v, err := s.prefs.GetPreference(ctx, uid, key)
	if stderrors.Is(err, repository.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

// SetPreference stores a preference
func (s *AccountService) SetPreference(ctx context.Context, uid, key, value string) error {
	if key == "" {
		return errors.Validation("preference key is required")
	}
	return s.prefs.SetPreference(ctx, uid, key, value)
}

// Preferences returns every stored preference of uid
func (s *AccountService) Preferences(ctx context.Context, uid string) (map[string]string, error) {
	return s.prefs.ListPreferences(ctx, uid)
}

// NotificationsEnabled defaults to true when never set
func (s *AccountService) NotificationsEnabled(ctx context.Context, uid string) (bool, error) {
	v, err := s.Preference(ctx, uid, repository.PrefNotificationsEnabled, "true")
	if err != nil {
		return true, err
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true, nil
	}
	return enabled, nil
}

// SetNotificationsEnabled stores the notifications preference
func (s *AccountService) SetNotificationsEnabled(ctx context.Context, uid string, enabled bool) error {
	return s.SetPreference(ctx, uid, repository.PrefNotificationsEnabled, strconv.FormatBool(enabled))
}
