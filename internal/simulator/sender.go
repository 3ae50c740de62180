package simulator

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sender delivers generated lines to the dashboard backend
type Sender interface {
	Send(ctx context.Context, lines []string) error
}

// HTTPSender posts lines to the backend feed endpoint
type HTTPSender struct {
	backendURL string
	httpClient *http.Client
}

// NewHTTPSender creates a sender pointing at the given backend base URL
// (e.g. "http://localhost:8080").
func NewHTTPSender(backendURL string) *HTTPSender {
	return &HTTPSender{
		backendURL: strings.TrimRight(backendURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Send posts lines to /internal/cdr, one per row
func (s *HTTPSender) Send(ctx context.Context, lines []string) error {
	body := strings.Join(lines, "\n") + "\n"

	url := s.backendURL + "/internal/cdr"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s returned status %d", url, resp.StatusCode)
	}

	return nil
}
