package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/config"
	"github.com/susu3304/debitbot/internal/engine"
	"github.com/susu3304/debitbot/internal/ledger"
	"github.com/susu3304/debitbot/internal/memstore"
)

type fakeDiscord struct {
	guilds []DiscordGuild
	err    error
}

func (f *fakeDiscord) User(context.Context, string) (*DiscordUser, error) {
	return &DiscordUser{ID: "u1", Username: "ana"}, nil
}

func (f *fakeDiscord) Guilds(context.Context, string) ([]DiscordGuild, error) {
	return f.guilds, f.err
}

type testServer struct {
	api     *API
	handler http.Handler
	token   string
	discord *fakeDiscord
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	ctx := context.Background()
	for _, c := range []ledger.Chat{
		{ID: "c1", Title: "flat", GuildID: "g1"},
		{ID: "c2", Title: "office", GuildID: "g2"},
	} {
		if err := store.SaveChat(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	discord := &fakeDiscord{guilds: []DiscordGuild{{ID: "g1", Name: "Home"}}}
	cfg := &config.Config{JWTSecret: "test-secret", WebBind: "127.0.0.1:0"}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("debitbot_commands_total 0\n"))
	})
	a := New(cfg, engine.New(store, store), zap.NewNop(), WithDiscord(discord), WithMetrics(metrics))

	token, err := a.issueToken(&DiscordUser{ID: "u1", Username: "ana"}, "discord-token", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{api: a, handler: a.Handler(), token: token, discord: discord}
}

func (s *testServer) do(t *testing.T, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/healthz", "", false)
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
	if _, err := uuid.Parse(w.Header().Get(requestIDHeader)); err != nil {
		t.Errorf("X-Request-ID = %q", w.Header().Get(requestIDHeader))
	}

	w = s.do(t, "GET", "/metrics", "", false)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "debitbot_commands_total") {
		t.Errorf("metrics = %d %q", w.Code, w.Body.String())
	}
}

func TestHealthReportsFailures(t *testing.T) {
	store := memstore.New()
	a := New(&config.Config{JWTSecret: "x"}, engine.New(store, store), zap.NewNop(),
		WithHealthCheck(func(context.Context) error { return errors.New("db down") }))

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Errorf("body leaks the storage error: %s", w.Body.String())
	}
	var body map[string]string
	decode(t, w, &body)
	if body["status"] != "unavailable" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestIDIsKept(t *testing.T) {
	s := newTestServer(t)
	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(requestIDHeader, id)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Token abc"},
		{"garbage", "Bearer abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/chats/c1/state", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.handler.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestChatAccess(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		path string
		want int
	}{
		{"/api/chats/c1/state", http.StatusOK},
		{"/api/chats/c2/state", http.StatusForbidden},
		{"/api/chats/c9/state", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if w := s.do(t, "GET", tt.path, "", true); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	s.discord.err = errors.New("discord down")
	if w := s.do(t, "GET", "/api/chats/c1/state", "", true); w.Code != http.StatusBadGateway {
		t.Errorf("status with discord down = %d, want 502", w.Code)
	}
}

func TestCommandsAndReads(t *testing.T) {
	s := newTestServer(t)

	for _, cmd := range []string{"na ana ivo luka", "td ana ivo luka 30", "ga FLAT ana ivo"} {
		w := s.do(t, "POST", "/api/chats/c1/commands", `{"command":"`+cmd+`"}`, true)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d %s", cmd, w.Code, w.Body.String())
		}
	}

	w := s.do(t, "POST", "/api/chats/c1/commands", `{"command":"t ana bob 5"}`, true)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad command status = %d", w.Code)
	}
	var failure map[string]string
	decode(t, w, &failure)
	if failure["error"] != "Name not on the list: Bob" || failure["kind"] != "unknown_member" {
		t.Errorf("failure = %v", failure)
	}

	if w := s.do(t, "POST", "/api/chats/c1/commands", `{"command":"  "}`, true); w.Code != http.StatusBadRequest {
		t.Errorf("empty command status = %d", w.Code)
	}
	if w := s.do(t, "POST", "/api/chats/c1/commands", `not json`, true); w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d", w.Code)
	}

	var state stateJSON
	decode(t, s.do(t, "GET", "/api/chats/c1/state", "", true), &state)
	if state.Title != "flat" || state.Sum != "0.00" || len(state.Balances) != 3 {
		t.Fatalf("state = %+v", state)
	}
	if state.Balances[0].Name != "Ana" || state.Balances[0].Balance != "20.00" {
		t.Errorf("balances = %+v", state.Balances)
	}

	var groups []ledger.Group
	decode(t, s.do(t, "GET", "/api/chats/c1/groups", "", true), &groups)
	if len(groups) != 1 || groups[0].Keyword != "FLAT" {
		t.Errorf("groups = %+v", groups)
	}

	var logs []ledger.LogEntry
	decode(t, s.do(t, "GET", "/api/chats/c1/logs?limit=2", "", true), &logs)
	if len(logs) != 2 || logs[0].Command != "td ana ivo luka 30" || logs[1].SenderID != "u1" {
		t.Errorf("logs = %+v", logs)
	}
	if w := s.do(t, "GET", "/api/chats/c1/logs?limit=-1", "", true); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d", w.Code)
	}

	var stat map[string]string
	decode(t, s.do(t, "GET", "/api/chats/c1/stats/count", "", true), &stat)
	if !strings.Contains(stat["text"], "Ana") {
		t.Errorf("stat = %v", stat)
	}
	if w := s.do(t, "GET", "/api/chats/c1/stats/nonsense", "", true); w.Code != http.StatusNotFound {
		t.Errorf("unknown stat status = %d", w.Code)
	}
}

func TestUserGuilds(t *testing.T) {
	s := newTestServer(t)
	var guilds []DiscordGuild
	decode(t, s.do(t, "GET", "/api/user/guilds", "", true), &guilds)
	if len(guilds) != 1 || guilds[0].ID != "g1" {
		t.Errorf("guilds = %+v", guilds)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	decode(t, s.do(t, "GET", "/api/auth/login", "", false), &body)
	if len(body["state"]) != 32 || !strings.Contains(body["auth_url"], "state="+body["state"]) {
		t.Errorf("login = %v", body)
	}
	if w := s.do(t, "GET", "/api/auth/callback", "", false); w.Code != http.StatusBadRequest {
		t.Errorf("callback without code = %d", w.Code)
	}
}
