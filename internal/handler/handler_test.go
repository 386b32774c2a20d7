package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/capitalize-ai/team-inbox/internal/apperr"
	"github.com/capitalize-ai/team-inbox/internal/authz"
	"github.com/capitalize-ai/team-inbox/internal/events"
	"github.com/capitalize-ai/team-inbox/internal/ingest"
	"github.com/capitalize-ai/team-inbox/internal/lock"
	"github.com/capitalize-ai/team-inbox/internal/middleware"
	"github.com/capitalize-ai/team-inbox/internal/model"
	"github.com/capitalize-ai/team-inbox/internal/service"
	"github.com/capitalize-ai/team-inbox/internal/store/memory"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
)

const (
	jwtSecret  = "handler-test-secret"
	authToken  = "twilio-token"
	publicBase = "https://inbox.example.com"
)

type testServer struct {
	t      *testing.T
	server *httptest.Server
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := memory.New()
	log := logger.NewNop()
	engine := authz.NewEngine(s, log)
	emitter := events.NewEmitter(&events.Recorder{}, log)

	router := NewRouter(RouterConfig{
		Health:        NewHealthHandler(s, nil),
		Teams:         NewTeamHandler(service.NewTeamService(s, engine, log), log),
		Channels:      NewChannelHandler(service.NewChannelService(s, engine, log), log),
		Conversations: NewConversationHandler(service.NewConversationService(s, engine, emitter, log), log),
		Webhook: NewWebhookHandler(
			ingest.NewService(s, lock.NewLocal(), emitter, log, ingest.Options{}),
			NewTwilioVerifier(authToken, publicBase),
			log,
		),
		JWTSecret:         jwtSecret,
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		Logger:            log,
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return &testServer{t: t, server: ts, store: s}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

// do sends a JSON request as userID and decodes the response into out.
func (ts *testServer) do(method, path, userID string, body any, out any) int {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	if err != nil {
		ts.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(ts.t, userID))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			ts.t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) webhook(form url.Values, signature string) (int, map[string]any) {
	ts.t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/webhooks/twilio", strings.NewReader(form.Encode()))
	if err != nil {
		ts.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, signature)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("webhook: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestTeamRoutes(t *testing.T) {
	ts := newTestServer(t)

	if code := ts.do(http.MethodGet, "/api/v1/teams", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: %d", code)
	}

	var listed struct {
		Teams []model.Team `json:"teams"`
	}
	if code := ts.do(http.MethodGet, "/api/v1/teams", "alice", nil, &listed); code != http.StatusOK {
		t.Fatalf("empty list: %d", code)
	}
	if listed.Teams == nil || len(listed.Teams) != 0 {
		t.Fatalf("expected an empty team list, got %+v", listed.Teams)
	}

	var team model.Team
	if code := ts.do(http.MethodPost, "/api/v1/teams", "alice", model.CreateTeamRequest{Name: "Support"}, &team); code != http.StatusCreated {
		t.Fatalf("create: %d", code)
	}
	if code := ts.do(http.MethodPost, "/api/v1/teams", "bob", model.CreateTeamRequest{Name: "Support"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate name: %d", code)
	}
	if code := ts.do(http.MethodPost, "/api/v1/teams", "bob", map[string]string{"name": "x"}, nil); code != http.StatusBadRequest {
		t.Fatalf("short name: %d", code)
	}

	base := "/api/v1/teams/" + team.ID
	if code := ts.do(http.MethodGet, base, "bob", nil, nil); code != http.StatusForbidden {
		t.Fatalf("non member get: %d", code)
	}
	if code := ts.do(http.MethodGet, "/api/v1/teams/missing", "alice", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing team: %d", code)
	}

	if code := ts.do(http.MethodPost, base+"/members", "alice", model.AddMemberRequest{UserID: "bob"}, nil); code != http.StatusCreated {
		t.Fatalf("add member: %d", code)
	}
	if code := ts.do(http.MethodPost, base+"/members", "alice", model.AddMemberRequest{UserID: "bob"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate member: %d", code)
	}
	if code := ts.do(http.MethodPost, base+"/channels", "bob",
		model.CreateChannelRequest{Type: model.ChannelSMS, Value: "+15551234567"}, nil); code != http.StatusForbidden {
		t.Fatalf("viewer channel create: %d", code)
	}
	if code := ts.do(http.MethodPatch, base+"/members/bob", "alice", model.UpdateMemberRequest{Role: model.RoleViewer}, nil); code != http.StatusConflict {
		t.Fatalf("same role: %d", code)
	}

	var members struct {
		Members []model.TeamMember `json:"members"`
	}
	if code := ts.do(http.MethodGet, base+"/members", "bob", nil, &members); code != http.StatusOK || len(members.Members) != 2 {
		t.Fatalf("list members: %d %+v", code, members)
	}

	if code := ts.do(http.MethodDelete, base, "alice", nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
}

func TestWebhookIngestsSignedMessage(t *testing.T) {
	ts := newTestServer(t)

	var team model.Team
	if code := ts.do(http.MethodPost, "/api/v1/teams", "alice", model.CreateTeamRequest{Name: "Support"}, &team); code != http.StatusCreated {
		t.Fatalf("create team: %d", code)
	}
	if code := ts.do(http.MethodPost, "/api/v1/teams/"+team.ID+"/channels", "alice",
		model.CreateChannelRequest{Type: model.ChannelSMS, Value: "+15551234567", IsPrimary: true}, nil); code != http.StatusCreated {
		t.Fatalf("create channel: %d", code)
	}

	form := url.Values{
		"MessageSid": {"SM1"},
		"From":       {"+15559876543"},
		"To":         {"+15551234567"},
		"Body":       {"Hi"},
		"NumMedia":   {"0"},
	}
	sig := twilioSignature(authToken, publicBase+"/webhooks/twilio", form)

	code, first := ts.webhook(form, sig)
	if code != http.StatusOK {
		t.Fatalf("first webhook: %d %v", code, first)
	}
	code, second := ts.webhook(form, sig)
	if code != http.StatusOK {
		t.Fatalf("second webhook: %d %v", code, second)
	}
	if first["conversation_id"] != second["conversation_id"] || first["contact_id"] != second["contact_id"] {
		t.Fatalf("expected reuse, got %v and %v", first, second)
	}
	if first["message_id"] == second["message_id"] {
		t.Fatal("expected two distinct messages")
	}

	convID, _ := first["conversation_id"].(string)
	var msgs struct {
		Messages []model.Message `json:"messages"`
	}
	if code := ts.do(http.MethodGet, "/api/v1/conversations/"+convID+"/messages", "alice", nil, &msgs); code != http.StatusOK {
		t.Fatalf("list messages: %d", code)
	}
	if len(msgs.Messages) != 2 || msgs.Messages[0].Body != "Hi" {
		t.Fatalf("unexpected messages %+v", msgs.Messages)
	}
}

func TestWebhookRejections(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{"From": {"+15559876543"}, "To": {"+15550000000"}, "Body": {"Hi"}}

	if code, _ := ts.webhook(form, "bogus"); code != http.StatusUnauthorized {
		t.Fatalf("bad signature: %d", code)
	}

	sig := twilioSignature(authToken, publicBase+"/webhooks/twilio", form)
	if code, _ := ts.webhook(form, sig); code != http.StatusNotFound {
		t.Fatalf("unroutable: %d", code)
	}
	if _, err := ts.store.FindContact(context.Background(), "any", "+15559876543"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatal("unroutable message must not create a contact")
	}

	missing := url.Values{"To": {"+15550000000"}}
	if code, _ := ts.webhook(missing, twilioSignature(authToken, publicBase+"/webhooks/twilio", missing)); code != http.StatusBadRequest {
		t.Fatalf("missing sender: %d", code)
	}
}

// twilioSignature signs a request the way the provider does: HMAC-SHA1 over
// the URL followed by each sorted parameter name and value.
func twilioSignature(token, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTwilioVerifier(t *testing.T) {
	params := url.Values{"From": {"+15559876543"}, "To": {"+15551234567"}, "Body": {"Hi"}}
	path := "/webhooks/twilio"

	tests := []struct {
		name      string
		verifier  *TwilioVerifier
		signature string
		want      bool
	}{
		{
			name:      "matching url",
			verifier:  NewTwilioVerifier(authToken, publicBase),
			signature: twilioSignature(authToken, publicBase+path, params),
			want:      true,
		},
		{
			name:      "provider signed the default port",
			verifier:  NewTwilioVerifier(authToken, publicBase),
			signature: twilioSignature(authToken, "https://inbox.example.com:443"+path, params),
			want:      true,
		},
		{
			name:      "trailing slash on base url",
			verifier:  NewTwilioVerifier(authToken, publicBase+"/"),
			signature: twilioSignature(authToken, publicBase+path, params),
			want:      true,
		},
		{
			name:      "wrong token",
			verifier:  NewTwilioVerifier(authToken, publicBase),
			signature: twilioSignature("other-token", publicBase+path, params),
			want:      false,
		},
		{
			name:      "missing header",
			verifier:  NewTwilioVerifier(authToken, publicBase),
			signature: "",
			want:      false,
		},
		{
			name:      "no auth token configured",
			verifier:  NewTwilioVerifier("", publicBase),
			signature: twilioSignature("", publicBase+path, params),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(params.Encode()))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			if got := tt.verifier.Verify(req, params); got != tt.want {
				t.Fatalf("Verify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[apperr.Kind]int{
		apperr.KindValidation:   http.StatusBadRequest,
		apperr.KindUnroutable:   http.StatusNotFound,
		apperr.KindNotFound:     http.StatusNotFound,
		apperr.KindForbidden:    http.StatusForbidden,
		apperr.KindConflict:     http.StatusConflict,
		apperr.KindUnauthorized: http.StatusUnauthorized,
		apperr.KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusFor(kind); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(ts.server.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: %d", path, resp.StatusCode)
		}
	}
}
