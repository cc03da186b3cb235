package functions

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call is one recorded invocation of the mock client
type Call struct {
	Function string
	Data     map[string]any
}

// MockClient is a mock functions client for testing
type MockClient struct {
	mu           sync.Mutex
	calls        []Call
	errs         map[string]error
	hooks        map[string]func(Call) error
	createResult *CreateCompetitionResult
	joinResult   *JoinCompetitionResult
	nextID       int
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithError makes every call to fn fail with err
func WithError(fn string, err error) MockOption {
	return func(m *MockClient) {
		m.errs[fn] = err
	}
}

// WithHook runs hook on every call to fn after it is recorded. A non-nil
// return fails the call.
func WithHook(fn string, hook func(Call) error) MockOption {
	return func(m *MockClient) {
		m.hooks[fn] = hook
	}
}

// WithCreateResult sets the createCompetition reply
func WithCreateResult(res CreateCompetitionResult) MockOption {
	return func(m *MockClient) {
		m.createResult = &res
	}
}

// WithJoinResult sets the joinCompetition reply
func WithJoinResult(res JoinCompetitionResult) MockOption {
	return func(m *MockClient) {
		m.joinResult = &res
	}
}

// NewMockClient creates a new mock client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		errs:  make(map[string]error),
		hooks: make(map[string]func(Call) error),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetError changes the injected error for fn; nil clears it
func (m *MockClient) SetError(fn string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, fn)
		return
	}
	m.errs[fn] = err
}

// Calls returns every recorded call
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns the recorded calls of one function
func (m *MockClient) CallsTo(fn string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Function == fn {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockClient) record(fn string, data map[string]any) error {
	c := Call{Function: fn, Data: data}
	m.mu.Lock()
	m.calls = append(m.calls, c)
	err := m.errs[fn]
	hook := m.hooks[fn]
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		return hook(c)
	}
	return nil
}

func (m *MockClient) CreateCompetition(ctx context.Context, req CreateCompetitionRequest) (*CreateCompetitionResult, error) {
	data := map[string]any{"name": req.Name, "ceremonyYear": req.CeremonyYear}
	if req.Event != "" {
		data["event"] = req.Event
	}
	if err := m.record(FnCreateCompetition, data); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createResult != nil {
		res := *m.createResult
		return &res, nil
	}
	m.nextID++
	return &CreateCompetitionResult{
		CompetitionID: fmt.Sprintf("comp-%d", m.nextID),
		InviteCode:    fmt.Sprintf("MOCK%02d", m.nextID%100),
	}, nil
}

func (m *MockClient) JoinCompetition(ctx context.Context, inviteCode string) (*JoinCompetitionResult, error) {
	if err := m.record(FnJoinCompetition, map[string]any{"inviteCode": strings.ToUpper(inviteCode)}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinResult != nil {
		res := *m.joinResult
		return &res, nil
	}
	return &JoinCompetitionResult{}, nil
}

func (m *MockClient) LeaveCompetition(ctx context.Context, competitionID string) error {
	return m.record(FnLeaveCompetition, map[string]any{"competitionId": competitionID})
}

func (m *MockClient) DeleteCompetition(ctx context.Context, competitionID string) error {
	return m.record(FnDeleteCompetition, map[string]any{"competitionId": competitionID})
}

func (m *MockClient) SetCompetitionInactive(ctx context.Context, competitionID string, inactive bool) error {
	return m.record(FnSetCompetitionInactive, map[string]any{"competitionId": competitionID, "inactive": inactive})
}

func (m *MockClient) CastVote(ctx context.Context, competitionID, categoryID, nomineeID string) error {
	return m.record(FnCastVote, map[string]any{
		"competitionId": competitionID,
		"categoryId":    categoryID,
		"nomineeId":     nomineeID,
	})
}

func (m *MockClient) CastCeremonyVote(ctx context.Context, ceremonyYear, categoryID, nomineeID string) error {
	return m.record(FnCastCeremonyVote, map[string]any{
		"ceremonyYear": ceremonyYear,
		"categoryId":   categoryID,
		"nomineeId":    nomineeID,
	})
}

func (m *MockClient) UpdateFcmToken(ctx context.Context, token string) error {
	return m.record(FnUpdateFcmToken, map[string]any{"token": token})
}

func (m *MockClient) DeleteAccount(ctx context.Context) error {
	return m.record(FnDeleteAccount, nil)
}

var _ Client = (*MockClient)(nil)
