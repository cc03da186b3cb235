package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aamsco/awardswithfriends/internal/auth"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

func TestForwardToken(t *testing.T) {
	h := New(Deps{})

	var forwarded string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := functions.TokenSourceFrom(r.Context())
		if ts == nil {
			t.Fatal("expected a token source in the request context")
		}
		tok, err := ts.Token()
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		forwarded = tok.AccessToken
	})

	req := httptest.NewRequest(http.MethodPost, "/api/competitions/join", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		UserID: "u1",
		Token:  "raw-id-token",
		Expiry: time.Now().Add(time.Hour),
	}))
	rec := httptest.NewRecorder()
	h.forwardToken(next).ServeHTTP(rec, req)

	if forwarded != "raw-id-token" {
		t.Errorf("expected the caller's token forwarded, got %q", forwarded)
	}
}

func TestForwardToken_NoIdentity(t *testing.T) {
	h := New(Deps{})
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rec := httptest.NewRecorder()
	h.forwardToken(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/home", nil))

	if called {
		t.Error("expected the request to stop without an identity")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRateLimit_FallsBackToRemoteAddr(t *testing.T) {
	h := New(Deps{RateLimit: 0.001, RateBurst: 1})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.rateLimit(next).ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("expected [200 429], got %v", codes)
	}
}
