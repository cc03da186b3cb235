package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/aamsco/awardswithfriends/internal/logger"
)

type captured struct {
	path string
	auth string
	data map[string]any
}

// newServer replies to every call with reply and records the last request
func newServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		var body struct {
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		got.data = body.Data
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server, got
}

func staticToken(tok string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok})
}

func TestHTTPClient_CreateCompetition_Success(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"result":{"competitionId":"c1","inviteCode":"AB12CD"}}`)

	client := NewHTTPClient(server.URL, logger.NewDiscard())
	ctx := WithTokenSource(context.Background(), staticToken("id-token"))

	res, err := client.CreateCompetition(ctx, CreateCompetitionRequest{Name: "Office Pool", CeremonyYear: "2025"})
	if err != nil {
		t.Fatalf("CreateCompetition failed: %v", err)
	}
	if res.CompetitionID != "c1" || res.InviteCode != "AB12CD" {
		t.Errorf("unexpected result %+v", res)
	}
	if got.path != "/createCompetition" {
		t.Errorf("expected path /createCompetition, got %s", got.path)
	}
	if got.auth != "Bearer id-token" {
		t.Errorf("expected bearer token, got %q", got.auth)
	}
	if _, ok := got.data["event"]; ok {
		t.Error("expected absent event to be omitted")
	}
}

func TestHTTPClient_JoinCompetition_UppercasesCode(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"result":{"competitionName":"Office Pool"}}`)

	client := NewHTTPClient(server.URL, logger.NewDiscard())
	res, err := client.JoinCompetition(context.Background(), "ab12cd")
	if err != nil {
		t.Fatalf("JoinCompetition failed: %v", err)
	}
	if got.data["inviteCode"] != "AB12CD" {
		t.Errorf("expected inviteCode AB12CD, got %v", got.data["inviteCode"])
	}
	if res.CompetitionName != "Office Pool" {
		t.Errorf("expected competition name, got %q", res.CompetitionName)
	}
}

func TestHTTPClient_DefaultTokenSource(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"result":null}`)

	client := NewHTTPClient(server.URL, logger.NewDiscard(), WithDefaultTokenSource(staticToken("service")))
	if err := client.LeaveCompetition(context.Background(), "c1"); err != nil {
		t.Fatalf("LeaveCompetition failed: %v", err)
	}
	if got.auth != "Bearer service" {
		t.Errorf("expected default token, got %q", got.auth)
	}

	ctx := WithTokenSource(context.Background(), staticToken("caller"))
	client.LeaveCompetition(ctx, "c1")
	if got.auth != "Bearer caller" {
		t.Errorf("expected context token to win, got %q", got.auth)
	}
}

func TestHTTPClient_CallableError(t *testing.T) {
	server, _ := newServer(t, http.StatusForbidden,
		`{"error":{"status":"PERMISSION_DENIED","message":"Only the owner can delete"}}`)

	client := NewHTTPClient(server.URL, logger.NewDiscard())
	err := client.DeleteCompetition(context.Background(), "c1")
	if err == nil {
		t.Fatal("expected error")
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if fe.Function != FnDeleteCompetition {
		t.Errorf("expected function %s, got %s", FnDeleteCompetition, fe.Function)
	}
	if fe.Status != StatusPermissionDenied {
		t.Errorf("expected PERMISSION_DENIED, got %s", fe.Status)
	}
	if fe.Message != "Only the owner can delete" {
		t.Errorf("unexpected message %q", fe.Message)
	}
}

func TestHTTPClient_NonJSONErrorStatus(t *testing.T) {
	server, _ := newServer(t, http.StatusServiceUnavailable, "upstream down")

	client := NewHTTPClient(server.URL, logger.NewDiscard())
	err := client.CastVote(context.Background(), "c1", "cat", "n1")
	if StatusOf(err) != StatusUnavailable {
		t.Errorf("expected UNAVAILABLE, got %v", err)
	}
}

func TestHTTPClient_ConnectionError(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", logger.NewDiscard())
	err := client.UpdateFcmToken(context.Background(), "tok")
	if StatusOf(err) != StatusUnavailable {
		t.Errorf("expected UNAVAILABLE for connection failure, got %v", err)
	}
}

func TestHTTPClient_CastCeremonyVote_Payload(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"result":{}}`)

	client := NewHTTPClient(server.URL, logger.NewDiscard())
	if err := client.CastCeremonyVote(context.Background(), "2025", "best-picture", "n2"); err != nil {
		t.Fatalf("CastCeremonyVote failed: %v", err)
	}
	want := map[string]any{"ceremonyYear": "2025", "categoryId": "best-picture", "nomineeId": "n2"}
	for k, v := range want {
		if got.data[k] != v {
			t.Errorf("expected %s=%v, got %v", k, v, got.data[k])
		}
	}
}

func TestHTTPClient_SetCompetitionInactive_Payload(t *testing.T) {
	server, got := newServer(t, http.StatusOK, `{"result":null}`)

	client := NewHTTPClient(server.URL, logger.NewDiscard())
	if err := client.SetCompetitionInactive(context.Background(), "c1", true); err != nil {
		t.Fatalf("SetCompetitionInactive failed: %v", err)
	}
	if got.data["inactive"] != true {
		t.Errorf("expected inactive=true, got %v", got.data["inactive"])
	}
}

func TestHTTPClient_CommandPayloads(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		call func(*HTTPClient) error
		want map[string]any
	}{
		{"leave", FnLeaveCompetition, func(c *HTTPClient) error { return c.LeaveCompetition(context.Background(), "c1") },
			map[string]any{"competitionId": "c1"}},
		{"delete", FnDeleteCompetition, func(c *HTTPClient) error { return c.DeleteCompetition(context.Background(), "c1") },
			map[string]any{"competitionId": "c1"}},
		{"cast vote", FnCastVote, func(c *HTTPClient) error { return c.CastVote(context.Background(), "c1", "k", "n1") },
			map[string]any{"competitionId": "c1", "categoryId": "k", "nomineeId": "n1"}},
		{"push token", FnUpdateFcmToken, func(c *HTTPClient) error { return c.UpdateFcmToken(context.Background(), "fcm-1") },
			map[string]any{"token": "fcm-1"}},
		{"delete account", FnDeleteAccount, func(c *HTTPClient) error { return c.DeleteAccount(context.Background()) },
			map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, got := newServer(t, http.StatusOK, `{"result":null}`)
			client := NewHTTPClient(server.URL, logger.NewDiscard())

			if err := tt.call(client); err != nil {
				t.Fatalf("%s failed: %v", tt.fn, err)
			}
			if got.path != "/"+tt.fn {
				t.Errorf("expected path /%s, got %s", tt.fn, got.path)
			}
			for k, v := range tt.want {
				if got.data[k] != v {
					t.Errorf("expected %s=%v, got %v", k, v, got.data[k])
				}
			}
		})
	}
}

// ==================== Mock Client Tests ====================

func TestMockClient_RecordsCalls(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	m.JoinCompetition(ctx, "xy98zw")
	m.CastVote(ctx, "c1", "cat", "n1")

	joins := m.CallsTo(FnJoinCompetition)
	if len(joins) != 1 {
		t.Fatalf("expected 1 join call, got %d", len(joins))
	}
	if joins[0].Data["inviteCode"] != "XY98ZW" {
		t.Errorf("expected upper-cased code, got %v", joins[0].Data["inviteCode"])
	}
	if len(m.Calls()) != 2 {
		t.Errorf("expected 2 calls, got %d", len(m.Calls()))
	}
}

func TestMockClient_InjectedErrorAndHook(t *testing.T) {
	boom := errors.New("boom")
	hooked := false
	m := NewMockClient(
		WithError(FnLeaveCompetition, boom),
		WithHook(FnCastVote, func(c Call) error {
			hooked = c.Data["nomineeId"] == "n1"
			return nil
		}),
	)

	if err := m.LeaveCompetition(context.Background(), "c1"); err != boom {
		t.Errorf("expected injected error, got %v", err)
	}
	m.CastVote(context.Background(), "c1", "cat", "n1")
	if !hooked {
		t.Error("expected hook to run")
	}

	m.SetError(FnLeaveCompetition, nil)
	if err := m.LeaveCompetition(context.Background(), "c1"); err != nil {
		t.Errorf("expected cleared error, got %v", err)
	}
}
