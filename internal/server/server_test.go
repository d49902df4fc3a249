package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thiagokokada/gitrelay/internal/credentials"
	"github.com/thiagokokada/gitrelay/internal/git"
	"github.com/thiagokokada/gitrelay/internal/git/queue"
	"github.com/thiagokokada/gitrelay/internal/hub"
	"github.com/thiagokokada/gitrelay/internal/repopath"
	"github.com/thiagokokada/gitrelay/internal/watch"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type testEnv struct {
	srv *Server
	ts  *httptest.Server
	hub *hub.Registry
}

func newTestServer(t *testing.T) testEnv {
	t.Helper()
	h := hub.New(0)
	watches := watch.New(h, 20*time.Millisecond)
	relay := credentials.New(h)
	svc := git.New(git.WithNotifier(watches))
	s := New(Options{}, svc, h, watches, relay)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(watches.Close)
	t.Cleanup(h.Close)
	return testEnv{srv: s, ts: ts, hub: h}
}

func (e testEnv) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/api/socket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	msg := readFrame(t, conn)
	if msg.Event != "connected" {
		t.Fatalf("first event = %q, want connected", msg.Event)
	}
	var data struct {
		ConnectionID string `json:"connectionId"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.ConnectionID == "" {
		t.Fatalf("connected payload = %s (%v)", msg.Data, err)
	}
	return conn, data.ConnectionID
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg frame
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func decodeAPIError(t *testing.T, resp *http.Response) apiError {
	t.Helper()
	var body struct {
		Error apiError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func fakeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".git", "refs", "heads"), 0o755); err != nil {
		t.Fatal(err)
	}
	key, err := repopath.Key(dir)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestSocketConnectedRegistersConnection(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	_, id := env.dial(t)
	if !env.hub.Connected(id) {
		t.Fatalf("connection %s not registered", id)
	}
}

func TestSocketWatchEmitsChanges(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	conn, _ := env.dial(t)
	repo := fakeRepo(t)

	send(t, conn, "watch", map[string]string{"path": repo})
	msg := readFrame(t, conn)
	var ack watchAck
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		t.Fatal(err)
	}
	if msg.Event != "watch-ack" || ack.Repository != repo || ack.Error != nil {
		t.Fatalf("ack = %s %s", msg.Event, msg.Data)
	}

	if err := os.WriteFile(filepath.Join(repo, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	msg = readFrame(t, conn)
	if msg.Event != "working-tree-changed" {
		t.Fatalf("event = %q, want working-tree-changed", msg.Event)
	}
	var change watch.Change
	if err := json.Unmarshal(msg.Data, &change); err != nil || change.Repository != repo {
		t.Fatalf("change = %s (%v)", msg.Data, err)
	}
}

func TestSocketWatchMissingPath(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	conn, _ := env.dial(t)

	send(t, conn, "watch", map[string]string{"path": filepath.Join(t.TempDir(), "missing")})
	msg := readFrame(t, conn)
	var ack watchAck
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Error == nil || ack.Error.Code != "no-such-path" {
		t.Fatalf("ack = %s, want no-such-path error", msg.Data)
	}
}

func TestSocketInvalidMessage(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	conn, _ := env.dial(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not valid json {{{")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	msg := readFrame(t, conn)
	var e apiError
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		t.Fatal(err)
	}
	if msg.Event != "error" || e.Code != "invalid-argument" {
		t.Fatalf("frame = %s %s", msg.Event, msg.Data)
	}

	send(t, conn, "dance", nil)
	if msg := readFrame(t, conn); msg.Event != "error" {
		t.Fatalf("event = %q, want error", msg.Event)
	}
}

type credentialsResponse struct {
	status int
	creds  credentials.Credentials
	err    apiError
}

func getCredentials(t *testing.T, baseURL, connID string) <-chan credentialsResponse {
	t.Helper()
	done := make(chan credentialsResponse, 1)
	go func() {
		resp, err := http.Get(baseURL + "/api/credentials?connectionId=" + connID)
		if err != nil {
			done <- credentialsResponse{status: -1, err: apiError{Message: err.Error()}}
			return
		}
		defer resp.Body.Close()
		res := credentialsResponse{status: resp.StatusCode}
		if resp.StatusCode == http.StatusOK {
			_ = json.NewDecoder(resp.Body).Decode(&res.creds)
		} else {
			var body struct {
				Error apiError `json:"error"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&body)
			res.err = body.Error
		}
		done <- res
	}()
	return done
}

func waitCredentials(t *testing.T, done <-chan credentialsResponse) credentialsResponse {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("credentials request did not return")
		return credentialsResponse{}
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	conn, id := env.dial(t)

	done := getCredentials(t, env.ts.URL, id)
	if msg := readFrame(t, conn); msg.Event != credentials.RequestEvent {
		t.Fatalf("event = %q, want %s", msg.Event, credentials.RequestEvent)
	}
	send(t, conn, "credentials", credentials.Credentials{Username: "alice", Password: "s3cret"})

	res := waitCredentials(t, done)
	if res.status != http.StatusOK || res.creds.Username != "alice" || res.creds.Password != "s3cret" {
		t.Fatalf("response = %+v", res)
	}
}

func TestCredentialsUnknownConnection(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	res := waitCredentials(t, getCredentials(t, env.ts.URL, "nope"))
	if res.status != http.StatusNotFound || res.err.Code != "no-such-connection" {
		t.Fatalf("response = %+v", res)
	}
}

func TestCredentialsConnectionClosed(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	conn, id := env.dial(t)

	done := getCredentials(t, env.ts.URL, id)
	if msg := readFrame(t, conn); msg.Event != credentials.RequestEvent {
		t.Fatalf("event = %q", msg.Event)
	}
	conn.Close()

	res := waitCredentials(t, done)
	if res.status != http.StatusGone || res.err.Code != "credentials-disconnected" {
		t.Fatalf("response = %+v", res)
	}
}

func TestCredentialsSupplyWithoutRequest(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	conn, _ := env.dial(t)

	send(t, conn, "credentials", credentials.Credentials{Username: "u"})
	msg := readFrame(t, conn)
	var e apiError
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		t.Fatal(err)
	}
	if msg.Event != "error" || e.Code != "no-pending-credentials" {
		t.Fatalf("frame = %s %s", msg.Event, msg.Data)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	env.dial(t)

	resp, err := http.Get(env.ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Connections != 1 {
		t.Fatalf("health = %+v", body)
	}
}

func TestQueryEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	dir := t.TempDir()

	resp, err := http.Get(env.ts.URL + "/api/query/quick-status?path=" + dir)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body.Result != string(git.RepoUninited) {
		t.Fatalf("quick-status = %d %+v", resp.StatusCode, body)
	}
}

func TestQueryEndpointErrors(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	tests := []struct {
		name     string
		url      string
		status   int
		wantCode string
	}{
		{"unknown kind", "/api/query/blame?path=" + t.TempDir(), http.StatusBadRequest, "invalid-argument"},
		{"missing path", "/api/query/log", http.StatusBadRequest, "invalid-argument"},
		{"bad limit", "/api/query/log?path=/tmp&limit=x", http.StatusBadRequest, "invalid-argument"},
		{"bad numstat", "/api/query/log?path=/tmp&numstat=maybe", http.StatusBadRequest, "invalid-argument"},
		{"no such path", "/api/query/branches?path=" + filepath.Join(t.TempDir(), "missing"), http.StatusNotFound, "no-such-path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(env.ts.URL + tt.url)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			e := decodeAPIError(t, resp)
			if resp.StatusCode != tt.status || e.Code != tt.wantCode {
				t.Fatalf("GET %s = %d %+v, want %d %s", tt.url, resp.StatusCode, e, tt.status, tt.wantCode)
			}
		})
	}
}

func TestMutationRejectsBadBody(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	resp, err := http.Post(env.ts.URL+"/api/reset", "application/json", strings.NewReader(`{"path": 1}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if e := decodeAPIError(t, resp); resp.StatusCode != http.StatusBadRequest || e.Code != "invalid-argument" {
		t.Fatalf("POST /api/reset = %d %+v", resp.StatusCode, e)
	}
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{credentials.ErrNoConnection, "no-such-connection"},
		{credentials.ErrRequestPending, "credentials-pending"},
		{fmt.Errorf("wait: %w", credentials.ErrDisconnected), "credentials-disconnected"},
		{credentials.ErrNoPendingRequest, "no-pending-credentials"},
		{git.ErrNoSuchPath, "no-such-path"},
		{queue.ErrTimeout, "timeout"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	h := hub.New(0)
	watches := watch.New(h, 0)
	s := New(Options{}, git.New(), h, watches, credentials.New(h))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/socket", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	_ = readFrame(t, conn)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return in time")
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still open after shutdown")
	}
}
