package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "abc" {
			t.Errorf("missing custom header")
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Headers: map[string]string{"X-Token": "abc"}})
	err := n.Send(context.Background(), Message{
		Title:  "Populate run",
		Body:   "1 topic failed",
		Level:  LevelError,
		Fields: map[string]string{"technology": "timeout", "health": "ok"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "[error] Populate run\n1 topic failed\nhealth: ok\ntechnology: timeout"
	if got.Text != want {
		t.Fatalf("unexpected text:\n%s", got.Text)
	}
	if got.Level != LevelError {
		t.Fatalf("unexpected level %q", got.Level)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	if err := n.Send(context.Background(), Message{Title: "x"}); err == nil {
		t.Fatal("expected error for 502")
	}
}
