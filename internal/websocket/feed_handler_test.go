package websocket

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/config"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type countingProcessor struct {
	mu    sync.Mutex
	lines []string
}

func (p *countingProcessor) ProcessLine(_ context.Context, line string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
	return true
}

func (p *countingProcessor) ProcessDelta(context.Context, types.RecordDelta) bool {
	return false
}

func (p *countingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lines)
}

func TestFeedHandlerSplitsLines(t *testing.T) {
	cfg := &config.Config{PongWait: 5 * time.Second, WriteWait: time.Second}
	processor := &countingProcessor{}
	handler := NewFeedHandler(processor, cfg, zerolog.New(&bytes.Buffer{}))

	server := httptest.NewServer(handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("CDR:1;a\n\nCDR:2;b\n")); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("CDR:3;c")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for processor.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := processor.count(); got != 3 {
		t.Errorf("processed %d lines, want 3", got)
	}
}

func TestUpgraderOriginCheck(t *testing.T) {
	up := newUpgrader([]string{"http://dashboard.local"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://dashboard.local", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := up.CheckOrigin(req); got != tt.want {
			t.Errorf("CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
