package mock

import (
	"context"

	"github.com/aamsco/awardswithfriends/internal/repository"
)

// Repository wraps a real preferences repository and allows injecting errors for testing.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.SavePushTokenError = errors.New("database error")
//	svc := services.NewAccountService(log, queries, mockRepo, client)
//	err := svc.UpdatePushToken(ctx, id, "token")
//	// err will now contain the injected error
type Repository struct {
	repository.PreferencesRepository

	// ===== Preference Errors =====
	GetPreferenceError   error
	SetPreferenceError   error
	ListPreferencesError error

	// ===== Push Token Errors =====
	SavePushTokenError       error
	MarkPushTokenSyncedError error
	GetPushTokenError        error

	DeleteUserDataError error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.PreferencesRepository) *Repository {
	return &Repository{
		PreferencesRepository: real,
	}
}

// ===== Preference Methods =====

func (m *Repository) GetPreference(ctx context.Context, userID, key string) (string, error) {
	if m.GetPreferenceError != nil {
		return "", m.GetPreferenceError
	}
	return m.PreferencesRepository.GetPreference(ctx, userID, key)
}

func (m *Repository) SetPreference(ctx context.Context, userID, key, value string) error {
	if m.SetPreferenceError != nil {
		return m.SetPreferenceError
	}
	return m.PreferencesRepository.SetPreference(ctx, userID, key, value)
}

func (m *Repository) ListPreferences(ctx context.Context, userID string) (map[string]string, error) {
	if m.ListPreferencesError != nil {
		return nil, m.ListPreferencesError
	}
	return m.PreferencesRepository.ListPreferences(ctx, userID)
}

// ===== Push Token Methods =====

func (m *Repository) SavePushToken(ctx context.Context, userID, token string) error {
	if m.SavePushTokenError != nil {
		return m.SavePushTokenError
	}
	return m.PreferencesRepository.SavePushToken(ctx, userID, token)
}

func (m *Repository) MarkPushTokenSynced(ctx context.Context, userID, token string) error {
	if m.MarkPushTokenSyncedError != nil {
		return m.MarkPushTokenSyncedError
	}
	return m.PreferencesRepository.MarkPushTokenSynced(ctx, userID, token)
}

func (m *Repository) GetPushToken(ctx context.Context, userID string) (*repository.PushToken, error) {
	if m.GetPushTokenError != nil {
		return nil, m.GetPushTokenError
	}
	return m.PreferencesRepository.GetPushToken(ctx, userID)
}

func (m *Repository) DeleteUserData(ctx context.Context, userID string) error {
	if m.DeleteUserDataError != nil {
		return m.DeleteUserDataError
	}
	return m.PreferencesRepository.DeleteUserData(ctx, userID)
}

var _ repository.PreferencesRepository = (*Repository)(nil)
