package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ABHI-11949/avatar/internal/config"
	"github.com/ABHI-11949/avatar/internal/events"
	"github.com/ABHI-11949/avatar/internal/gateway"
	"github.com/ABHI-11949/avatar/internal/heygen"
	"github.com/ABHI-11949/avatar/internal/journal"
	"github.com/ABHI-11949/avatar/internal/observability"
	"github.com/ABHI-11949/avatar/internal/session"
)

// fakeHeyGen imitates the provider's HTTP API.
type fakeHeyGen struct {
	mu          sync.Mutex
	createReply string
	stopStatus  int
	lastCreate  map[string]any
	apiKeys     []string
}

func (f *fakeHeyGen) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("X-Api-Key"))

	switch {
	case strings.HasSuffix(r.URL.Path, "/streaming.create"):
		_ = json.NewDecoder(r.Body).Decode(&f.lastCreate)
		reply := f.createReply
		if reply == "" {
			reply = `{"code":100,"message":"success","data":{"session_id":"S1","url":"u","streaming_url":"su"}}`
		}
		_, _ = io.WriteString(w, reply)
	case strings.HasSuffix(r.URL.Path, "/streaming.task"):
		_, _ = io.WriteString(w, `{"code":100,"message":"success","data":{"task_id":"T1"}}`)
	case strings.HasSuffix(r.URL.Path, "/streaming.stop"):
		if f.stopStatus != 0 {
			w.WriteHeader(f.stopStatus)
			_, _ = io.WriteString(w, `{"message":"stop failed"}`)
			return
		}
		_, _ = io.WriteString(w, `{"code":100,"message":"success"}`)
	case strings.HasSuffix(r.URL.Path, "/avatars.list"):
		_, _ = io.WriteString(w, `{"code":100,"data":{"avatars":[{"avatar_id":"A1"}]}}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeHeyGen) setCreateReply(reply string) {
	f.mu.Lock()
	f.createReply = reply
	f.mu.Unlock()
}

func (f *fakeHeyGen) setStopStatus(status int) {
	f.mu.Lock()
	f.stopStatus = status
	f.mu.Unlock()
}

func (f *fakeHeyGen) createBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCreate
}

func (f *fakeHeyGen) seenKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.apiKeys...)
}

type testEnv struct {
	srv      *Server
	hub      *events.Hub
	api      *httptest.Server
	provider *fakeHeyGen
	upstream *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider := &fakeHeyGen{}
	upstream := httptest.NewServer(provider)
	t.Cleanup(upstream.Close)

	cfg := config.Config{
		AllowedOrigins:  []string{"http://localhost:3000"},
		DefaultAvatarID: "A1",
		DefaultVoiceID:  "V1",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsWith("test", prometheus.NewRegistry())
	client := heygen.NewClient(heygen.Config{BaseURL: upstream.URL + "/v1", APIKey: "secret"}, metrics)
	hub := events.NewHub(8, nil)
	store := journal.NewInMemoryStore()
	gw := gateway.NewService(client, session.NewRegistry(), gateway.Defaults{AvatarID: "A1", VoiceID: "V1"}, events.Fanout{hub, store}, metrics, logger)

	srv, err := New(cfg, gw, hub, store, metrics, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	api := httptest.NewServer(srv.Router())
	t.Cleanup(api.Close)
	return &testEnv{srv: srv, hub: hub, api: api, provider: provider, upstream: upstream}
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	res, err := http.Post(e.api.URL+path, "application/json", reader)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	return res, decodeBody(t, res)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Get(e.api.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	return res, decodeBody(t, res)
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	res, created := env.post(t, "/api/avatar/create-session", map[string]string{"quality": "high"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, want %d (%v)", res.StatusCode, http.StatusOK, created)
	}
	if created["session_id"] != "S1" || created["url"] != "u" || created["streaming_url"] != "su" {
		t.Fatalf("create response = %v", created)
	}
	if env.provider.createBody()["avatar_id"] != "A1" {
		t.Fatalf("upstream avatar_id = %v, want default A1", env.provider.createBody()["avatar_id"])
	}

	res, status := env.get(t, "/api/avatar/sessions/S1")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want %d", res.StatusCode, http.StatusOK)
	}
	data, _ := status["data"].(map[string]any)
	if data["avatar_id"] != "A1" || data["voice_id"] != "V1" || data["status"] != "active" {
		t.Fatalf("status data = %v", data)
	}

	res, spoke := env.post(t, "/api/avatar/speak", map[string]string{"session_id": "S1", "text": "hi"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("speak status = %d, want %d (%v)", res.StatusCode, http.StatusOK, spoke)
	}
	if spoke["success"] != true || spoke["message"] != "Speaking task initiated" {
		t.Fatalf("speak response = %v", spoke)
	}

	res, stopped := env.post(t, "/api/avatar/stop?session_id=S1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d, want %d (%v)", res.StatusCode, http.StatusOK, stopped)
	}
	if stopped["message"] != "Session stopped successfully" {
		t.Fatalf("stop response = %v", stopped)
	}

	res, missing := env.get(t, "/api/avatar/sessions/S1")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status after stop = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	if missing["detail"] != "Session not found" {
		t.Fatalf("not found body = %v", missing)
	}

	res, history := env.get(t, "/api/avatar/sessions/S1/history")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	items, _ := history["data"].([]any)
	if len(items) != 3 {
		t.Fatalf("history items = %d, want 3", len(items))
	}

	for _, key := range env.provider.seenKeys() {
		if key != "secret" {
			t.Fatalf("upstream X-Api-Key = %q, want %q", key, "secret")
		}
	}
}

func TestStopAcceptsJSONBody(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/avatar/create-session", nil)

	res, body := env.post(t, "/api/avatar/stop", map[string]string{"session_id": "S1"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d, want %d (%v)", res.StatusCode, http.StatusOK, body)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	env := newTestEnv(t)

	res, _ := env.post(t, "/api/avatar/speak", map[string]string{"session_id": "ghost", "text": "hi"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("speak status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	res, _ = env.post(t, "/api/avatar/stop?session_id=ghost", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("stop status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestSpeakWithoutSessionIDIs400(t *testing.T) {
	env := newTestEnv(t)
	res, body := env.post(t, "/api/avatar/speak", map[string]string{"text": "hi"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	if body["code"] != "validation_error" {
		t.Fatalf("code = %v, want validation_error", body["code"])
	}
}

func TestCreateSessionLogicalFailureIs400(t *testing.T) {
	env := newTestEnv(t)
	env.provider.setCreateReply(`{"code":500,"message":"Avatar not found","data":null}`)

	res, body := env.post(t, "/api/avatar/create-session", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	if body["detail"] != "Avatar not found" {
		t.Fatalf("detail = %v, want provider message", body["detail"])
	}
}

func TestStopUpstreamFailureKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/avatar/create-session", nil)
	env.provider.setStopStatus(http.StatusBadGateway)

	res, body := env.post(t, "/api/avatar/stop?session_id=S1", nil)
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("stop status = %d, want %d", res.StatusCode, http.StatusBadGateway)
	}
	if !strings.HasPrefix(body["detail"].(string), "HeyGen API error: ") {
		t.Fatalf("detail = %v, want HeyGen API error prefix", body["detail"])
	}
	if res, _ := env.get(t, "/api/avatar/sessions/S1"); res.StatusCode != http.StatusOK {
		t.Fatalf("status after failed stop = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestUpstreamUnreachableIs500(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.Close()

	res, body := env.get(t, "/api/avatar/list-avatars")
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
	if body["code"] != "upstream_error" {
		t.Fatalf("code = %v, want upstream_error", body["code"])
	}
}

func TestListAvatarsPassthrough(t *testing.T) {
	env := newTestEnv(t)
	res, body := env.get(t, "/api/avatar/list-avatars")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	avatars, _ := body["avatars"].([]any)
	if len(avatars) != 1 {
		t.Fatalf("avatars = %v, want one entry", body)
	}
}

func TestProviderLatencyReportsCalls(t *testing.T) {
	env := newTestEnv(t)
	env.get(t, "/api/avatar/list-avatars")

	res, body := env.get(t, "/api/avatar/provider-latency")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	endpoints, _ := body["endpoints"].([]any)
	if len(endpoints) != 1 {
		t.Fatalf("endpoints = %v, want one entry", body["endpoints"])
	}
	first, _ := endpoints[0].(map[string]any)
	if first["endpoint"] != heygen.EndpointAvatarsList {
		t.Fatalf("endpoint = %v, want %q", first["endpoint"], heygen.EndpointAvatarsList)
	}
}

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t)

	res, root := env.get(t, "/")
	if res.StatusCode != http.StatusOK || root["status"] != "running" {
		t.Fatalf("GET / = %d %v", res.StatusCode, root)
	}
	if res.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing X-Request-Id header")
	}
	res, health := env.get(t, "/health")
	if res.StatusCode != http.StatusOK || health["status"] != "healthy" {
		t.Fatalf("GET /health = %d %v", res.StatusCode, health)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodOptions, env.api.URL+"/api/avatar/create-session", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Allow-Origin = %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, env.api.URL+"/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}
}

func TestSessionEventsWebSocket(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/avatar/create-session", nil)

	wsURL := "ws" + strings.TrimPrefix(env.api.URL, "http") + "/api/avatar/sessions/S1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	env.post(t, "/api/avatar/speak", map[string]string{"session_id": "S1", "text": "hi"})
	var e events.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read speak event: %v", err)
	}
	if e.Type != events.TypeSpeak {
		t.Fatalf("event type = %q, want %q", e.Type, events.TypeSpeak)
	}

	env.post(t, "/api/avatar/stop?session_id=S1", nil)
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read stop event: %v", err)
	}
	if e.Type != events.TypeStopped {
		t.Fatalf("event type = %q, want %q", e.Type, events.TypeStopped)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("after stop err = %v, want normal close", err)
	}
}

func TestSessionEventsUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.api.URL, "http") + "/api/avatar/sessions/ghost/events"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial succeeded for unknown session")
	}
	if res == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("handshake response = %v, want 404", res)
	}
}

func TestSubscribeAfterStopIsRejected(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/avatar/create-session", nil)
	env.post(t, "/api/avatar/stop?session_id=S1", nil)

	if _, _, ok := env.srv.subscribe("S1"); ok {
		t.Fatalf("subscribe() after stop ok = true, want false")
	}
	if got := env.hub.Subscribers("S1"); got != 0 {
		t.Fatalf("hub subscribers = %d, want 0", got)
	}
}

func TestSubscribeBeforeStopIsClosedByStop(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/avatar/create-session", nil)

	feed, cancel, ok := env.srv.subscribe("S1")
	if !ok {
		t.Fatalf("subscribe() ok = false, want true")
	}
	defer cancel()

	env.post(t, "/api/avatar/stop?session_id=S1", nil)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-feed:
			if !open {
				if got := env.hub.Subscribers("S1"); got != 0 {
					t.Fatalf("hub subscribers = %d, want 0", got)
				}
				return
			}
		case <-timeout:
			t.Fatalf("feed still open after stop")
		}
	}
}
