package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jonwraymond/uibridge/auth"
	"github.com/jonwraymond/uibridge/cache"
	"github.com/jonwraymond/uibridge/catalog"
	"github.com/jonwraymond/uibridge/executor"
)

// stubDirectory is a map-backed user directory for tests.
type stubDirectory struct {
	records map[string]*auth.Record
}

func (d *stubDirectory) LookupToken(_ context.Context, token string) (*auth.Record, error) {
	return d.records[token], nil
}

func newTestServer(t *testing.T, exec executor.Func, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()

	if exec == nil {
		exec = func(_ context.Context, cmd executor.Command, _ *auth.Identity) (*executor.Result, error) {
			return &executor.Result{Value: map[string]any{"echo": cmd.Key}}, nil
		}
	}
	pool, err := executor.NewPool(exec, executor.PoolConfig{MaxConcurrent: 4})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	cfg := Config{
		Version:  "1.0.0-test",
		Features: []string{"cache", "broadcast"},
		Cache:    cache.NewManager(cache.Config{}),
		Pool:     pool,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, ts
}

func wsURL(ts *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts, query), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	if err := ws.ReadJSON(&m); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return m
}

// readHello consumes and returns the connection_info frame every accepted
// connection receives first.
func readHello(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	m := readFrame(t, ws)
	if m["event"] != EventConnectionInfo {
		t.Fatalf("first frame event = %v, want %s", m["event"], EventConnectionInfo)
	}
	return m
}

func TestHelloPayload(t *testing.T) {
	cat := catalog.NewStatic(
		catalog.Model{Name: "users", Operations: []catalog.Operation{catalog.OpRead}},
	)
	_, ts := newTestServer(t, nil, func(c *Config) { c.Catalog = cat })

	ws := dial(t, ts, "")
	hello := readHello(t, ws)

	data, ok := hello["data"].(map[string]any)
	if !ok {
		t.Fatalf("hello data missing: %v", hello)
	}
	if data["server_version"] != "1.0.0-test" {
		t.Errorf("server_version = %v", data["server_version"])
	}
	session, _ := data["session"].(map[string]any)
	if session["user_id"] != auth.AnonymousUser || session["auth_kind"] != string(auth.KindNone) {
		t.Errorf("session = %v, want anonymous", session)
	}
	models, _ := data["available_models"].([]any)
	if len(models) != 1 {
		t.Errorf("available_models = %v, want one entry", data["available_models"])
	}
	if _, ok := data["cache_stats"]; !ok {
		t.Error("hello missing cache_stats")
	}
}

func TestHelloOmitsModelsWithoutCatalog(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	ws := dial(t, ts, "")
	hello := readHello(t, ws)

	data := hello["data"].(map[string]any)
	if _, ok := data["available_models"]; ok {
		t.Error("available_models present without a catalog")
	}
}

func TestDispatchAndCacheHit(t *testing.T) {
	calls := 0
	exec := func(_ context.Context, _ executor.Command, _ *auth.Identity) (*executor.Result, error) {
		calls++
		return &executor.Result{Value: []any{"u1", "u2"}}, nil
	}
	_, ts := newTestServer(t, exec, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)

	send := `{"zKey": "^ListUsers", "action": "read", "_requestId": "r1"}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(send)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	first := readFrame(t, ws)
	if first["_cached"] != nil {
		t.Errorf("first response _cached = %v, want absent", first["_cached"])
	}
	if first["_requestId"] != "r1" {
		t.Errorf("first response _requestId = %v, want r1", first["_requestId"])
	}

	send = `{"zKey": "^ListUsers", "action": "read", "_requestId": "r2"}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(send)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	second := readFrame(t, ws)
	if second["_cached"] != true {
		t.Errorf("second response _cached = %v, want true", second["_cached"])
	}
	if calls != 1 {
		t.Errorf("executor called %d times, want 1", calls)
	}
}

func TestNoCacheBypassesCache(t *testing.T) {
	calls := 0
	exec := func(_ context.Context, _ executor.Command, _ *auth.Identity) (*executor.Result, error) {
		calls++
		return &executor.Result{Value: calls}, nil
	}
	_, ts := newTestServer(t, exec, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)

	for i := 0; i < 2; i++ {
		msg := `{"zKey": "^ListUsers", "action": "read", "no_cache": true}`
		if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		readFrame(t, ws)
	}
	if calls != 2 {
		t.Errorf("executor called %d times, want 2", calls)
	}
}

func TestInvalidTokenRejectedBeforeRegistry(t *testing.T) {
	dir := &stubDirectory{records: map[string]*auth.Record{
		"good-token": {UserID: "u1", AppName: "shop", Role: "admin"},
	}}
	srv, ts := newTestServer(t, nil, func(c *Config) {
		c.Auth = auth.NewManager(auth.Config{Enabled: true, Directory: dir})
	})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "token=bad-token"), nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("Dial() error = %v, want ErrBadHandshake", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if n := srv.ConnectionCount(); n != 0 {
		t.Errorf("ConnectionCount() = %d after rejection, want 0", n)
	}

	// A valid token on the same server still connects and gets its hello.
	ws := dial(t, ts, "token=good-token")
	hello := readHello(t, ws)
	session := hello["data"].(map[string]any)["session"].(map[string]any)
	if session["user_id"] != "u1" || session["auth_kind"] != string(auth.KindSession) {
		t.Errorf("session = %v, want u1/session", session)
	}
}

func TestOriginRejectedWith403(t *testing.T) {
	_, ts := newTestServer(t, nil, func(c *Config) {
		c.Auth = auth.NewManager(auth.Config{AllowedOrigins: []string{"https://app.example.com"}})
	})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), header)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("Dial() error = %v, want ErrBadHandshake", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestErrorsNotBroadcast(t *testing.T) {
	exec := func(_ context.Context, cmd executor.Command, _ *auth.Identity) (*executor.Result, error) {
		if cmd.Key == "Explode" {
			return nil, errors.New("backend exploded")
		}
		return &executor.Result{Value: "ok"}, nil
	}
	_, ts := newTestServer(t, exec, nil)

	requester := dial(t, ts, "")
	readHello(t, requester)
	peer := dial(t, ts, "")
	readHello(t, peer)

	msg := `{"cmd": "Explode", "_requestId": "r1"}`
	if err := requester.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	got := readFrame(t, requester)
	if got["error"] != "backend exploded" || got["_requestId"] != "r1" {
		t.Errorf("requester frame = %v, want error response", got)
	}

	// The peer must see nothing for the failed command.
	peer.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var extra map[string]any
	err := peer.ReadJSON(&extra)
	if err == nil {
		t.Fatalf("peer received %v, want nothing", extra)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("peer read error = %v, want timeout", err)
	}
}

func TestResultsBroadcastToPeers(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	requester := dial(t, ts, "")
	readHello(t, requester)
	peer := dial(t, ts, "")
	readHello(t, peer)

	msg := `{"cmd": "CreateOrder", "action": "create", "_requestId": "r1"}`
	if err := requester.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	own := readFrame(t, requester)
	if own["_requestId"] != "r1" || own["result"] == nil {
		t.Errorf("requester frame = %v, want own result", own)
	}

	mirrored := readFrame(t, peer)
	if mirrored["result"] == nil {
		t.Errorf("peer frame = %v, want mirrored result", mirrored)
	}
	if _, ok := mirrored["_requestId"]; ok {
		t.Error("mirrored frame carries the requester's request id")
	}
}

func TestDisableReadBroadcast(t *testing.T) {
	_, ts := newTestServer(t, nil, func(c *Config) { c.DisableReadBroadcast = true })

	requester := dial(t, ts, "")
	readHello(t, requester)
	peer := dial(t, ts, "")
	readHello(t, peer)

	msg := `{"zKey": "^ListUsers", "action": "read"}`
	if err := requester.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	readFrame(t, requester)

	peer.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var extra map[string]any
	if err := peer.ReadJSON(&extra); err == nil {
		t.Fatalf("peer received %v with read broadcast disabled", extra)
	}
}

func TestDisplayEventsFollowResponseInOrder(t *testing.T) {
	exec := func(_ context.Context, _ executor.Command, _ *auth.Identity) (*executor.Result, error) {
		return &executor.Result{
			Value: "done",
			Display: []executor.DisplayEvent{
				{Data: map[string]any{"seq": float64(1)}},
				{Data: map[string]any{"seq": float64(2)}},
			},
		}, nil
	}
	_, ts := newTestServer(t, exec, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)

	msg := `{"cmd": "RunReport", "_requestId": "r1"}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	resp := readFrame(t, ws)
	if resp["result"] != "done" {
		t.Fatalf("first frame = %v, want primary response", resp)
	}
	for want := 1; want <= 2; want++ {
		ev := readFrame(t, ws)
		if ev["event"] != EventDisplay {
			t.Fatalf("frame %d event = %v, want display", want, ev["event"])
		}
		data := ev["data"].(map[string]any)
		if data["seq"] != float64(want) {
			t.Errorf("display event seq = %v, want %d", data["seq"], want)
		}
	}
}

func TestInputRequestRoundTrip(t *testing.T) {
	exec := func(ctx context.Context, _ executor.Command, _ *auth.Identity) (*executor.Result, error) {
		requester := executor.InputRequesterFromContext(ctx)
		if requester == nil {
			return nil, errors.New("no input requester in context")
		}
		answer, err := requester.RequestInput(ctx, executor.InputPrompt{Type: "confirm", Prompt: "proceed?"})
		if err != nil {
			return nil, err
		}
		return &executor.Result{Value: answer}, nil
	}
	_, ts := newTestServer(t, exec, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)

	msg := `{"cmd": "Provision", "_requestId": "r1"}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	prompt := readFrame(t, ws)
	if prompt["event"] != EventInputRequest || prompt["prompt"] != "proceed?" {
		t.Fatalf("prompt frame = %v, want input_request", prompt)
	}

	reply := fmt.Sprintf(`{"event": "input_response", "requestId": %q, "value": "yes"}`, prompt["requestId"])
	if err := ws.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	resp := readFrame(t, ws)
	if resp["result"] != "yes" || resp["_requestId"] != "r1" {
		t.Errorf("final frame = %v, want result yes", resp)
	}
}

func TestAdminMessages(t *testing.T) {
	cat := catalog.NewStatic(
		catalog.Model{Name: "users", Schema: map[string]any{"id": "int"}},
	)
	srv, ts := newTestServer(t, nil, func(c *Config) { c.Catalog = cat })

	ws := dial(t, ts, "")
	readHello(t, ws)

	write := func(msg string) {
		t.Helper()
		if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("WriteMessage(%s) error = %v", msg, err)
		}
	}

	write(`{"action": "get_schema", "model": "users"}`)
	got := readFrame(t, ws)
	schema, _ := got["result"].(map[string]any)
	if schema["id"] != "int" {
		t.Errorf("get_schema result = %v, want users schema", got["result"])
	}

	write(`{"action": "get_schema", "model": "missing"}`)
	got = readFrame(t, ws)
	if got["result"] != nil {
		t.Errorf("get_schema(missing) result = %v, want nil", got["result"])
	}

	write(`{"action": "cache_stats"}`)
	got = readFrame(t, ws)
	stats, _ := got["result"].(map[string]any)
	if _, ok := stats["schema"]; !ok {
		t.Errorf("cache_stats result = %v, want stats object", got["result"])
	}

	write(`{"action": "set_query_cache_ttl", "ttl": 60}`)
	got = readFrame(t, ws)
	if got["error"] != nil {
		t.Fatalf("set_query_cache_ttl error = %v", got["error"])
	}
	if ttl := srv.cache.DefaultTTL(); ttl != 60*time.Second {
		t.Errorf("DefaultTTL() = %v, want 60s", ttl)
	}

	write(`{"action": "set_query_cache_ttl", "ttl": -5}`)
	got = readFrame(t, ws)
	if got["error"] == nil {
		t.Error("negative ttl accepted, want error response")
	}

	write(`{"action": "clear_cache"}`)
	got = readFrame(t, ws)
	result, _ := got["result"].(map[string]any)
	if _, ok := result["cleared"]; !ok {
		t.Errorf("clear_cache result = %v, want cleared count", got["result"])
	}
}

// A runtime TTL update must govern entries cached afterwards by the dispatch
// path, not just entries stored through the cache manager directly.
func TestSetQueryCacheTTLAppliesToDispatch(t *testing.T) {
	calls := 0
	exec := func(_ context.Context, _ executor.Command, _ *auth.Identity) (*executor.Result, error) {
		calls++
		return &executor.Result{Value: calls}, nil
	}
	_, ts := newTestServer(t, exec, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"action": "set_query_cache_ttl", "ttl": 0.05}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	readFrame(t, ws)

	// No cache_ttl on the command: the updated default must apply.
	msg := `{"cmd": "ListThings"}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	readFrame(t, ws)

	time.Sleep(200 * time.Millisecond)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	second := readFrame(t, ws)
	if second["_cached"] == true {
		t.Errorf("second response = %v, want executor re-run after TTL expiry", second)
	}
	if calls != 2 {
		t.Errorf("executor called %d times, want 2", calls)
	}
}

// A client that drops while its command is waiting on input must leave the
// registry promptly, not at the next failed keepalive write.
func TestDisconnectDuringInputDeregisters(t *testing.T) {
	exec := func(ctx context.Context, _ executor.Command, _ *auth.Identity) (*executor.Result, error) {
		requester := executor.InputRequesterFromContext(ctx)
		answer, err := requester.RequestInput(ctx, executor.InputPrompt{Type: "confirm", Prompt: "proceed?"})
		if err != nil {
			return nil, err
		}
		return &executor.Result{Value: answer}, nil
	}
	srv, ts := newTestServer(t, exec, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"cmd": "Provision"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	prompt := readFrame(t, ws)
	if prompt["event"] != EventInputRequest {
		t.Fatalf("frame = %v, want input_request", prompt)
	}

	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection still registered while blocked on input")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnrecognizedFrameGetsError(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"text": "hello everyone"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	got := readFrame(t, ws)
	if got["error"] == nil {
		t.Errorf("frame = %v, want error response", got)
	}
}

func TestDisconnectDeregisters(t *testing.T) {
	srv, ts := newTestServer(t, nil, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)
	if n := srv.ConnectionCount(); n != 1 {
		t.Fatalf("ConnectionCount() = %d, want 1", n)
	}

	ws.Close()
	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnectionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never deregistered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthHandler(t *testing.T) {
	srv, ts := newTestServer(t, nil, nil)

	ws := dial(t, ts, "")
	readHello(t, ws)

	hs := httptest.NewServer(srv.HealthHandler())
	defer hs.Close()

	resp, err := http.Get(hs.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	h := srv.Health()
	if h.Status != "ok" || h.Connections != 1 {
		t.Errorf("Health() = %+v, want ok with 1 connection", h)
	}
}
