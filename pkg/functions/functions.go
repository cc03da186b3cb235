// Package functions provides a client for the callable cloud functions that
// mutate competition, vote and account state.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
)

// Callable function names
const (
	FnCreateCompetition      = "createCompetition"
	FnJoinCompetition        = "joinCompetition"
	FnLeaveCompetition       = "leaveCompetition"
	FnDeleteCompetition      = "deleteCompetition"
	FnSetCompetitionInactive = "setCompetitionInactive"
	FnCastVote               = "castVote"
	FnCastCeremonyVote       = "castCeremonyVote"
	FnUpdateFcmToken         = "updateFcmToken"
	FnDeleteAccount          = "deleteAccount"
)

// Canonical error statuses returned by callable functions
const (
	StatusInvalidArgument    = "INVALID_ARGUMENT"
	StatusFailedPrecondition = "FAILED_PRECONDITION"
	StatusNotFound           = "NOT_FOUND"
	StatusAlreadyExists      = "ALREADY_EXISTS"
	StatusPermissionDenied   = "PERMISSION_DENIED"
	StatusUnauthenticated    = "UNAUTHENTICATED"
	StatusResourceExhausted  = "RESOURCE_EXHAUSTED"
	StatusUnavailable        = "UNAVAILABLE"
	StatusInternal           = "INTERNAL"
)

// Error is a failed callable function invocation
type Error struct {
	Function string
	Status   string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Function, e.Status, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf returns the canonical status of a function error, or "" when err
// is not one.
func StatusOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return ""
}

// CreateCompetitionRequest holds the createCompetition arguments
type CreateCompetitionRequest struct {
	Name         string `json:"name"`
	CeremonyYear string `json:"ceremonyYear"`
	Event        string `json:"event,omitempty"`
}

// CreateCompetitionResult is the createCompetition reply
type CreateCompetitionResult struct {
	CompetitionID string `json:"competitionId"`
	InviteCode    string `json:"inviteCode"`
}

// JoinCompetitionResult is the joinCompetition reply
type JoinCompetitionResult struct {
	CompetitionID   string `json:"competitionId"`
	CompetitionName string `json:"competitionName"`
}

// Client defines the remote commands
type Client interface {
	// CreateCompetition creates a competition owned by the caller
	CreateCompetition(ctx context.Context, req CreateCompetitionRequest) (*CreateCompetitionResult, error)
	// JoinCompetition joins by invite code. The code is always sent upper-cased.
	JoinCompetition(ctx context.Context, inviteCode string) (*JoinCompetitionResult, error)
	LeaveCompetition(ctx context.Context, competitionID string) error
	DeleteCompetition(ctx context.Context, competitionID string) error
	SetCompetitionInactive(ctx context.Context, competitionID string, inactive bool) error
	CastVote(ctx context.Context, competitionID, categoryID, nomineeID string) error
	CastCeremonyVote(ctx context.Context, ceremonyYear, categoryID, nomineeID string) error
	UpdateFcmToken(ctx context.Context, token string) error
	DeleteAccount(ctx context.Context) error
}

type tokenSourceKey struct{}

// WithTokenSource attaches the caller's ID token source to ctx. Commands
// invoked with ctx are authorized as that caller.
func WithTokenSource(ctx context.Context, ts oauth2.TokenSource) context.Context {
	return context.WithValue(ctx, tokenSourceKey{}, ts)
}

// TokenSourceFrom returns the token source attached to ctx, if any
func TokenSourceFrom(ctx context.Context) oauth2.TokenSource {
	ts, _ := ctx.Value(tokenSourceKey{}).(oauth2.TokenSource)
	return ts
}

// HTTPClient invokes callable functions over HTTPS
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
	tokens     oauth2.TokenSource
	metrics    *metrics.Metrics
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithDefaultTokenSource sets the token source used when the context carries none
func WithDefaultTokenSource(ts oauth2.TokenSource) Option {
	return func(c *HTTPClient) {
		c.tokens = ts
	}
}

// WithMetrics records call latency and outcome
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// NewHTTPClient creates a client for the functions deployed at baseURL
func NewHTTPClient(baseURL string, log logger.Logger, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured functions base URL
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type callRequest struct {
	Data any `json:"data"`
}

type callResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// call invokes a callable function and decodes its result into result,
// which may be nil when the reply carries nothing of interest.
func (c *HTTPClient) call(ctx context.Context, name string, data any, result any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveCommand(name, err, time.Since(start))
	}()

	body, err := json.Marshal(callRequest{Data: data})
	if err != nil {
		return &Error{Function: name, Status: StatusInvalidArgument, Err: err}
	}

	apiURL := fmt.Sprintf("%s/%s", c.baseURL, name)
	c.log.Debug("Function request", "function", name, "url", apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return &Error{Function: name, Status: StatusInternal, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	ts := TokenSourceFrom(ctx)
	if ts == nil {
		ts = c.tokens
	}
	if ts != nil {
		tok, err := ts.Token()
		if err != nil {
			return &Error{Function: name, Status: StatusUnauthenticated, Message: "failed to obtain ID token", Err: err}
		}
		tok.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Function: name, Status: StatusUnavailable, Message: "failed to reach functions endpoint", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Function: name, Status: StatusUnavailable, Message: "failed to read response", Err: err}
	}

	c.log.Debug("Function response", "function", name, "status", resp.StatusCode)

	var reply callResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &Error{Function: name, Status: statusFromHTTP(resp.StatusCode), Message: strings.TrimSpace(string(raw))}
		}
		return &Error{Function: name, Status: StatusInternal, Message: "malformed response", Err: err}
	}

	if reply.Error != nil {
		status := reply.Error.Status
		if status == "" {
			status = statusFromHTTP(resp.StatusCode)
		}
		return &Error{Function: name, Status: status, Message: reply.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{Function: name, Status: statusFromHTTP(resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
	}

	if result != nil && len(reply.Result) > 0 && string(reply.Result) != "null" {
		if err := json.Unmarshal(reply.Result, result); err != nil {
			return &Error{Function: name, Status: StatusInternal, Message: "failed to parse result", Err: err}
		}
	}
	return nil
}

func statusFromHTTP(code int) string {
	switch code {
	case http.StatusBadRequest:
		return StatusInvalidArgument
	case http.StatusUnauthorized:
		return StatusUnauthenticated
	case http.StatusForbidden:
		return StatusPermissionDenied
	case http.StatusNotFound:
		return StatusNotFound
	case http.StatusConflict:
		return StatusAlreadyExists
	case http.StatusTooManyRequests:
		return StatusResourceExhausted
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return StatusUnavailable
	default:
		return StatusInternal
	}
}

// CreateCompetition creates a competition owned by the caller
func (c *HTTPClient) CreateCompetition(ctx context.Context, req CreateCompetitionRequest) (*CreateCompetitionResult, error) {
	var result CreateCompetitionResult
	if err := c.call(ctx, FnCreateCompetition, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// JoinCompetition joins the competition identified by inviteCode
func (c *HTTPClient) JoinCompetition(ctx context.Context, inviteCode string) (*JoinCompetitionResult, error) {
	data := map[string]any{"inviteCode": strings.ToUpper(inviteCode)}
	var result JoinCompetitionResult
	if err := c.call(ctx, FnJoinCompetition, data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LeaveCompetition removes the caller from a competition
func (c *HTTPClient) LeaveCompetition(ctx context.Context, competitionID string) error {
	return c.call(ctx, FnLeaveCompetition, map[string]any{"competitionId": competitionID}, nil)
}

// DeleteCompetition deletes a competition the caller owns
func (c *HTTPClient) DeleteCompetition(ctx context.Context, competitionID string) error {
	return c.call(ctx, FnDeleteCompetition, map[string]any{"competitionId": competitionID}, nil)
}

// SetCompetitionInactive marks a competition inactive or active again
func (c *HTTPClient) SetCompetitionInactive(ctx context.Context, competitionID string, inactive bool) error {
	return c.call(ctx, FnSetCompetitionInactive, map[string]any{
		"competitionId": competitionID,
		"inactive":      inactive,
	}, nil)
}

// CastVote records the caller's pick in one competition
func (c *HTTPClient) CastVote(ctx context.Context, competitionID, categoryID, nomineeID string) error {
	return c.call(ctx, FnCastVote, map[string]any{
		"competitionId": competitionID,
		"categoryId":    categoryID,
		"nomineeId":     nomineeID,
	}, nil)
}

// CastCeremonyVote records the caller's pick in every competition of the ceremony year
func (c *HTTPClient) CastCeremonyVote(ctx context.Context, ceremonyYear, categoryID, nomineeID string) error {
	return c.call(ctx, FnCastCeremonyVote, map[string]any{
		"ceremonyYear": ceremonyYear,
		"categoryId":   categoryID,
		"nomineeId":    nomineeID,
	}, nil)
}

// UpdateFcmToken registers the device push token for the caller
func (c *HTTPClient) UpdateFcmToken(ctx context.Context, token string) error {
	return c.call(ctx, FnUpdateFcmToken, map[string]any{"token": token}, nil)
}

// DeleteAccount deletes the caller's account and remote data
func (c *HTTPClient) DeleteAccount(ctx context.Context) error {
	return c.call(ctx, FnDeleteAccount, nil, nil)
}

var _ Client = (*HTTPClient)(nil)
