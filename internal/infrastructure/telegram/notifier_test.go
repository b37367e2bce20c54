package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(Config{BotToken: "tok", ChatID: "42", APIBase: srv.URL})
	if err := n.PublishDigest(context.Background(), "weekly digest"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if gotPath != "/bottok/sendMessage" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotChat != "42" || gotText != "weekly digest" {
		t.Errorf("unexpected form: chat=%s text=%s", gotChat, gotText)
	}
}

func TestPublishDigestServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewNotifier(Config{BotToken: "tok", ChatID: "42", APIBase: srv.URL})
	if err := n.PublishDigest(context.Background(), "digest"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestDisabledNotifier(t *testing.T) {
	t.Parallel()

	n := NewNotifier(Config{})
	if n.Enabled() {
		t.Fatal("empty credentials must disable the notifier")
	}
	if err := n.PublishDigest(context.Background(), "digest"); err == nil {
		t.Fatal("publishing while disabled must fail")
	}
}
