package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/agentname"
	"github.com/dennisdiepolder/monti/frontdesk/internal/aggregator"
	"github.com/dennisdiepolder/monti/frontdesk/internal/api"
	"github.com/dennisdiepolder/monti/frontdesk/internal/auth"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cache"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdr"
	"github.com/dennisdiepolder/monti/frontdesk/internal/config"
	"github.com/dennisdiepolder/monti/frontdesk/internal/event"
	"github.com/dennisdiepolder/monti/frontdesk/internal/ingestion"
	"github.com/dennisdiepolder/monti/frontdesk/internal/storage"
	"github.com/dennisdiepolder/monti/frontdesk/internal/websocket"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	// Check status code
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Check content type
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	// Parse response body
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	// Check response fields
	if response["status"] != "ok" {
		t.Errorf("expected status ok, got %s", response["status"])
	}
	if response["service"] != "frontdesk" {
		t.Errorf("expected service frontdesk, got %s", response["service"])
	}
}

func TestHealthHandlerMethods(t *testing.T) {
	tests := []struct {
		method         string
		expectedStatus int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusOK},    // Handler doesn't check method
		{http.MethodPut, http.StatusOK},     // Handler doesn't check method
		{http.MethodDelete, http.StatusOK},  // Handler doesn't check method
		{http.MethodOptions, http.StatusOK}, // Handler doesn't check method
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			rec := httptest.NewRecorder()

			healthHandler(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func newTestServer(t *testing.T, skipAuth bool) http.Handler {
	t.Helper()
	logger := zerolog.New(&bytes.Buffer{})
	cfg := &config.Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		PongWait:       time.Minute,
		PingPeriod:     54 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 64 * 1024,
		Location:       time.UTC,
		OutboundMarker: cdr.DefaultOutboundMarker,
		SkipAuth:       skipAuth,
	}

	store := weekly.NewStore(storage.NewMemoryStore(), 4, logger)
	hub := websocket.NewHub(logger)
	resolver := agentname.NewResolver([]string{"Jane Doe"}, agentname.DefaultDenylist)
	records := cache.NewRecordCache()
	processor := ingestion.NewDefaultProcessor(cdr.NewParser(resolver, cfg.OutboundMarker, logger), records, store, time.UTC, logger)
	service := aggregator.NewService(records, store, hub, aggregator.Options{Location: time.UTC}, logger)

	return newRouter(cfg, routes{
		auth:      auth.NewAuthenticator(auth.Options{SkipAuth: skipAuth}, logger),
		receiver:  event.NewReceiver(processor, processor, logger),
		feed:      websocket.NewFeedHandler(processor, cfg, logger),
		dashboard: api.NewDashboardHandler(service, store, logger),
		admin:     api.NewAdminHandler("", service, store, logger),
		ws:        websocket.NewHandler(hub, cfg, logger),
	})
}

func TestRouterFeedIngestion(t *testing.T) {
	router := newTestServer(t, true)

	body := strings.Join([]string{
		"CDR:1;IN;00:01:00;2025/03/03 09:00:00;;;ANSWERED;0612345678;Front Office;Jane Doe",
		"garbage",
	}, "\n")
	req := httptest.NewRequest(http.MethodPost, "/internal/cdr", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var result map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if result["received"] != 2 || result["accepted"] != 1 {
		t.Errorf("unexpected batch result: %v", result)
	}
}

func TestRouterDashboardPending(t *testing.T) {
	router := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var dash map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if dash["state"] != "pending" {
		t.Errorf("expected pending state, got %v", dash["state"])
	}
}

func TestRouterRequiresToken(t *testing.T) {
	router := newTestServer(t, false)

	for _, path := range []string{"/api/dashboard", "/api/weekly", "/api/admin/sim/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status 401, got %d", path, rec.Code)
		}
	}

	// Feed routes stay open for the telephony system
	req := httptest.NewRequest(http.MethodGet, "/internal/cdr/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestRouterSimulatorNotConfigured(t *testing.T) {
	router := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/sim/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}

func TestRouterFeedWebSocket(t *testing.T) {
	server := httptest.NewServer(newTestServer(t, false))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/internal/feed"
	conn, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial feed: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("expected status 101, got %d", resp.StatusCode)
	}

	line := "CDR:1;IN;00:01:00;2025/03/03 09:00:00;;;ANSWERED;0612345678;Front Office;Jane Doe"
	if err := conn.WriteMessage(gorillaws.TextMessage, []byte(line)); err != nil {
		t.Fatalf("failed to write line: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		res, err := http.Get(server.URL + "/internal/cdr/stats")
		if err != nil {
			t.Fatalf("failed to read stats: %v", err)
		}
		var stats struct {
			Processor ingestion.Stats `json:"processor"`
		}
		err = json.NewDecoder(res.Body).Decode(&stats)
		res.Body.Close()
		if err != nil {
			t.Fatalf("failed to parse stats: %v", err)
		}
		if stats.Processor.Accepted == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("feed line not ingested, stats %+v", stats.Processor)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
