package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func sampleNotification() Notification {
	return Notification{
		RunDate:         time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC),
		StrategyName:    "exp_smoothing",
		StrategyVersion: "v1",
		RunID:           "2f0a7a4e-68b4-4f74-8cfc-0f6f2e3a9a11",
		Inserted:        42,
		TopUndervalued: []GapLine{
			{AssetID: "ptcg:base1-4", Name: "Charizard", GapPct: 0.42},
			{AssetID: "ptcg:neo4-9", GapPct: 0.15},
		},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	text := received["text"]
	if text == "" {
		t.Fatal("text should not be empty")
	}
	if !strings.Contains(text, "exp_smoothing:v1") {
		t.Fatalf("text should name the strategy, got %q", text)
	}
	if !strings.Contains(text, "2026-08-25") {
		t.Fatalf("text should carry the run date, got %q", text)
	}
	if !strings.Contains(text, "Charizard") || !strings.Contains(text, "42.0%") {
		t.Fatalf("text should list top gaps, got %q", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("ok=false should error")
	}
}

func TestTelegramNotifierBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("non-2xx status should error")
	}
}

func TestRenderMessageOmitsEmptySections(t *testing.T) {
	text := renderMessage(Notification{
		RunDate:         time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC),
		StrategyName:    "baseline_spread",
		StrategyVersion: "v1",
		Inserted:        0,
	})

	if strings.Contains(text, "Run:") {
		t.Fatalf("empty run id should be omitted, got %q", text)
	}
	if strings.Contains(text, "Top undervalued") {
		t.Fatalf("empty gap list should be omitted, got %q", text)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
