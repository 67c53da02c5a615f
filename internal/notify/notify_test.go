package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/teammeeting/internal/application"
)

var notice = application.MeetingNotice{
	Organiser:    application.UserProfile{ID: 10, FullName: "Tina Teacher", Email: "tina@example.com"},
	ActivityName: "Weekly sync",
	CourseName:   "Introduction to Computing",
	JoinURL:      "https://teams.example/join/1",
}

func TestSendGridNotifierSendsMail(t *testing.T) {
	var gotPath, gotAuth string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewSendGridNotifier("sg-key", "Team meeting", "noreply@example.com", slog.New(slog.NewTextHandler(io.Discard, nil))).WithHost(srv.URL)
	if err := n.MeetingCreated(context.Background(), notice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v3/mail/send" {
		t.Fatalf("expected /v3/mail/send, got %s", gotPath)
	}
	if gotAuth != "Bearer sg-key" {
		t.Fatalf("expected bearer key, got %q", gotAuth)
	}
	personalizations, _ := payload["personalizations"].([]any)
	if len(personalizations) != 1 {
		t.Fatalf("expected one personalization, got %v", payload["personalizations"])
	}
	p := personalizations[0].(map[string]any)
	if p["subject"] != "Online meeting created: Weekly sync" {
		t.Fatalf("unexpected subject %v", p["subject"])
	}
	content := payload["content"].([]any)[0].(map[string]any)
	if !strings.Contains(content["value"].(string), notice.JoinURL) {
		t.Fatalf("expected join url in body, got %v", content["value"])
	}
}

func TestSendGridNotifierReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	n := NewSendGridNotifier("bad", "Team meeting", "noreply@example.com", slog.Default()).WithHost(srv.URL)
	err := n.MeetingCreated(context.Background(), notice)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSendGridNotifierSkipsMissingEmail(t *testing.T) {
	n := NewSendGridNotifier("key", "Team meeting", "noreply@example.com", slog.Default()).WithHost("http://127.0.0.1:1")
	withoutEmail := notice
	withoutEmail.Organiser.Email = ""
	if err := n.MeetingCreated(context.Background(), withoutEmail); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := n.MeetingCreated(context.Background(), notice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "join_url=https://teams.example/join/1") {
		t.Fatalf("expected join url in log, got %q", buf.String())
	}
}
