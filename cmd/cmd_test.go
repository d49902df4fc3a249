package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thiagokokada/gitrelay/internal/buildinfo"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	args = append([]string{"--config", filepath.Join(t.TempDir(), "none.toml")}, args...)
	err := run(args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := runCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if strings.TrimSpace(out) != buildinfo.VersionWithTags() {
		t.Fatalf("version output = %q", out)
	}
}

func TestQueryCommandQuickStatus(t *testing.T) {
	t.Parallel()

	out, err := runCmd(t, "", "query", "quick-status", t.TempDir())
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	if strings.TrimSpace(out) != `"uninited"` {
		t.Fatalf("query output = %q", out)
	}
}

func TestQueryCommandUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := runCmd(t, "", "query", "blame", t.TempDir())
	if err == nil || !strings.HasPrefix(err.Error(), "invalid-argument") {
		t.Fatalf("query error = %v, want invalid-argument", err)
	}
}

func TestCredentialHelperGet(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/credentials" || r.URL.Query().Get("connectionId") != "conn-1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"username": "alice", "password": "s3cret"})
	}))
	defer ts.Close()

	addr := strings.TrimPrefix(ts.URL, "http://")
	out, err := runCmd(t, "protocol=https\nhost=example.com\n\n", "credential-helper", "--server", addr, "conn-1", "get")
	if err != nil {
		t.Fatalf("credential-helper error = %v", err)
	}
	if out != "username=alice\npassword=s3cret\n" {
		t.Fatalf("credential-helper output = %q", out)
	}
}

func TestCredentialHelperIgnoresOtherActions(t *testing.T) {
	t.Parallel()

	out, err := runCmd(t, "protocol=https\n\n", "credential-helper", "--server", "127.0.0.1:1", "conn-1", "store")
	if err != nil || out != "" {
		t.Fatalf("credential-helper store = %q, %v", out, err)
	}
}

func TestCredentialHelperServerError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"no-such-connection","message":"no such connection"}}`))
	}))
	defer ts.Close()

	_, err := runCmd(t, "", "credential-helper", "--server", strings.TrimPrefix(ts.URL, "http://"), "gone", "get")
	if err == nil || !strings.Contains(err.Error(), "no-such-connection") {
		t.Fatalf("credential-helper error = %v", err)
	}
}

func TestCredentialHelperValue(t *testing.T) {
	t.Parallel()

	helper := credentialHelper("/opt/git relay/gitrelay", "127.0.0.1:8880")
	want := `!'/opt/git relay/gitrelay' credential-helper --server '127.0.0.1:8880' 'abc'`
	if got := helper("abc"); got != want {
		t.Fatalf("helper = %q, want %q", got, want)
	}
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Fatalf("shellQuote = %q", got)
	}
}

func TestDialAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		":8880":          "127.0.0.1:8880",
		"0.0.0.0:80":     "127.0.0.1:80",
		"localhost:9000": "localhost:9000",
		"[::]:1":         "127.0.0.1:1",
		"garbage":        "garbage",
	}
	for in, want := range tests {
		if got := dialAddr(in); got != want {
			t.Fatalf("dialAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
