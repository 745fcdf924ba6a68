package errortracking

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseDSN(t *testing.T) {
	got, err := ParseDSN("https://PUBLICKEY@host.example/42")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := DSN{Protocol: "https", PublicKey: "PUBLICKEY", Host: "host.example", ProjectID: "42"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected dsn (-want +got):\n%s", diff)
	}
	if got.StoreURL() != "https://host.example/api/42/store/" {
		t.Fatalf("unexpected store url %s", got.StoreURL())
	}
	if got.String() != "https://PUBLICKEY@host.example/42" {
		t.Fatalf("unexpected string form %s", got.String())
	}
}

func TestParseDSNKeepsPort(t *testing.T) {
	got, err := ParseDSN("http://key@localhost:3000/7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Host != "localhost:3000" || got.EnvelopeURL() != "http://localhost:3000/api/7/envelope/" {
		t.Fatalf("unexpected dsn %+v", got)
	}
}

func TestParseDSNRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not a dsn",
		"https://host.example/42",
		"ftp://key@host.example/42",
		"https://key@/42",
		"https://key@host.example/",
		"https://key@host.example/project",
		"https://key@host.example/42/extra",
		"://key@host.example/42",
	}
	for _, raw := range cases {
		if _, err := ParseDSN(raw); !errors.Is(err, ErrInvalidDSN) {
			t.Errorf("ParseDSN(%q): expected ErrInvalidDSN, got %v", raw, err)
		}
	}
}

func TestSendPostsEventWithAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/42/store/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth := r.Header.Get("X-Sentry-Auth")
		if !strings.HasPrefix(auth, "Sentry sentry_key=PUBKEY,sentry_version=7") {
			t.Errorf("unexpected auth header %q", auth)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["message"] != "boom" || payload["level"] != "error" || payload["environment"] != "staging" {
			t.Errorf("unexpected payload %v", payload)
		}
		if id, _ := payload["event_id"].(string); len(id) != 32 {
			t.Errorf("expected 32 char event id, got %q", id)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"abc123"}`))
	}))
	defer srv.Close()

	dsn := strings.Replace(srv.URL, "http://", "http://PUBKEY@", 1) + "/42"
	transport, err := NewTransport(dsn, WithDefaults("staging", "", ""))
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	id, err := transport.Send(context.Background(), Event{Message: "boom"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected server id, got %s", id)
	}
}

func TestSendEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/9/envelope/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		scanner := bufio.NewScanner(r.Body)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if len(lines) != 3 {
			t.Errorf("expected 3 envelope lines, got %d", len(lines))
		}
		if !strings.Contains(lines[1], `"type":"event"`) {
			t.Errorf("unexpected item header %s", lines[1])
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dsn := strings.Replace(srv.URL, "http://", "http://key@", 1) + "/9"
	transport, err := NewTransport(dsn)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	id, err := transport.SendEnvelope(context.Background(), Event{EventID: "fixed", Message: "hi"})
	if err != nil {
		t.Fatalf("send envelope: %v", err)
	}
	if id != "fixed" {
		t.Fatalf("expected event id to be echoed, got %s", id)
	}
}

func TestSendMapsStatusErrors(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized:    ErrUnauthorized,
		http.StatusForbidden:       ErrUnauthorized,
		http.StatusBadRequest:      ErrInvalidArgument,
		http.StatusNotFound:        ErrNotFound,
		http.StatusTooManyRequests: ErrRateLimited,
	}
	for status, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}))
		dsn := strings.Replace(srv.URL, "http://", "http://key@", 1) + "/1"
		transport, err := NewTransport(dsn)
		if err != nil {
			t.Fatalf("new transport: %v", err)
		}
		_, err = transport.Send(context.Background(), Event{Message: "x"})
		srv.Close()
		if !errors.Is(err, want) {
			t.Fatalf("status %d: expected %v, got %v", status, want, err)
		}
	}
}

func TestSendAbortsAfterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	dsn := strings.Replace(srv.URL, "http://", "http://key@", 1) + "/1"
	transport, err := NewTransport(dsn, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	start := time.Now()
	_, err = transport.Send(context.Background(), Event{Message: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("send took %s, expected abort near 50ms", elapsed)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN") != LevelWarning || ParseLevel("info") != LevelInfo || ParseLevel("weird") != LevelError {
		t.Fatal("unexpected level mapping")
	}
}
