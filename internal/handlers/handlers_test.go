package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aamsco/awardswithfriends/internal/auth"
	"github.com/aamsco/awardswithfriends/internal/handlers"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/repository/memory"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/testutil"
	"github.com/aamsco/awardswithfriends/internal/websocket"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

type testEnv struct {
	store  *memory.Store
	fx     *testutil.Fixtures
	client *functions.MockClient
	prefs  *repository.Repository
	hub    *websocket.Hub
	h      *handlers.Handlers
	srv    *httptest.Server
}

type envOption func(*handlers.Deps)

func withRateLimit(limit float64, burst int) envOption {
	return func(d *handlers.Deps) {
		d.RateLimit = limit
		d.RateBurst = burst
	}
}

func withEntitlements(e services.Entitlements) envOption {
	return func(d *handlers.Deps) {
		d.Features = services.NewFeatureService(d.Log, d.Queries, e)
	}
}

func newTestEnv(t *testing.T, clientOpts []functions.MockOption, opts ...envOption) *testEnv {
	t.Helper()
	log := logger.NewDiscard()
	store := memory.New()
	client := functions.NewMockClient(clientOpts...)
	prefs := testutil.NewTestRepository(t)
	m := metrics.New()

	members := services.NewMembershipResolver(log, store, m)
	votes := services.NewVoteAggregator(log, members, store, m)
	hub := websocket.New(log, m)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	deps := handlers.Deps{
		Queries:      store,
		Membership:   members,
		Votes:        votes,
		Catalog:      services.NewCategoryCatalog(log, store, m),
		Counts:       services.NewCategoryCountEstimator(log, store, m),
		Voting:       services.NewVotingService(log, client, votes, 100*time.Millisecond),
		Competitions: services.NewCompetitionService(log, client, "https://example.test/join", 0),
		Account:      services.NewAccountService(log, store, prefs, client),
		Features:     services.NewFeatureService(log, store, services.NewStaticEntitlements(true, nil)),
		Auth:         auth.New(""),
		Hub:          hub,
		Metrics:      m,
		Log:          log,
		RateLimit:    1000,
		RateBurst:    1000,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	h := handlers.New(deps)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &testEnv{
		store:  store,
		fx:     testutil.NewFixtures(5),
		client: client,
		prefs:  prefs,
		hub:    hub,
		h:      h,
		srv:    srv,
	}
}

// token mints an ID token for uid. Signatures are not checked.
func token(t *testing.T, uid string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return raw
}

// do sends a request as uid (anonymous when empty) and decodes a JSON reply
// into out when out is non-nil
func (e *testEnv) do(t *testing.T, method, path, uid string, body interface{}, out interface{}) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, uid))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) join(uid string, c models.Competition) {
	e.store.PutCompetition(c)
	e.store.PutParticipant(c.ID, e.fx.Participant(uid, 0))
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)

	var body handlers.HealthResponse
	status := e.do(t, http.MethodGet, "/healthz", "", nil, &body)

	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %q", body.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, nil)

	resp, err := http.Get(e.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !bytes.Contains(b, []byte("go_goroutines")) {
		t.Error("expected Go runtime metrics in exposition")
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	e := newTestEnv(t, nil)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/competitions"},
		{http.MethodPost, "/api/competitions/join"},
		{http.MethodPost, "/api/competitions/c1/leave"},
		{http.MethodDelete, "/api/competitions/c1"},
		{http.MethodPost, "/api/ceremony-votes"},
		{http.MethodGet, "/api/account/preferences"},
		{http.MethodGet, "/ws/home"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			var body handlers.APIError
			status := e.do(t, rt.method, rt.path, "", nil, &body)
			if status != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", status)
			}
			if body.Code != handlers.ErrCodeUnauthorized {
				t.Errorf("expected code %s, got %s", handlers.ErrCodeUnauthorized, body.Code)
			}
		})
	}
	if len(e.client.Calls()) != 0 {
		t.Error("no command may run without a token")
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, nil, withRateLimit(0.001, 2))

	for i := 0; i < 2; i++ {
		if status := e.do(t, http.MethodGet, "/api/account/preferences", "u1", nil, nil); status != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, status)
		}
	}

	var body handlers.APIError
	if status := e.do(t, http.MethodGet, "/api/account/preferences", "u1", nil, &body); status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if body.Code != handlers.ErrCodeTooManyRequests {
		t.Errorf("expected code %s, got %s", handlers.ErrCodeTooManyRequests, body.Code)
	}

	// Buckets are per user
	if status := e.do(t, http.MethodGet, "/api/account/preferences", "u2", nil, nil); status != http.StatusOK {
		t.Errorf("expected another user to pass, got %d", status)
	}
}

func TestUserRateLimiter_SameLimiterPerKey(t *testing.T) {
	l := handlers.NewUserRateLimiter(1, 1)
	if l.GetLimiter("a") != l.GetLimiter("a") {
		t.Error("expected the same limiter for the same key")
	}
	if l.GetLimiter("a") == l.GetLimiter("b") {
		t.Error("expected different limiters for different keys")
	}
}
