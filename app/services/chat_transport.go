// Package services provides external service integrations: chat transport, provider adapters, vault, events and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/iptv-reseller-automation/utils"
)

// Chat transport error constants
var (
	ErrTransportTimeout  = errors.New("chat transport timed out")
	ErrTransportRejected = errors.New("chat transport rejected the message")
)

// ChatTransport sends a text message to an address through a named session
type ChatTransport interface {
	SendText(ctx context.Context, sessionName, to, text string) error
}

// HTTPChatTransport talks to the session-manager gateway over HTTP
type HTTPChatTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPChatTransport creates a gateway client; timeout bounds every send
func NewHTTPChatTransport(baseURL, apiKey string, timeout time.Duration) *HTTPChatTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPChatTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendTextRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendTextResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (t *HTTPChatTransport) SendText(ctx context.Context, sessionName, to, text string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: empty destination", ErrTransportRejected)
	}

	body, err := json.Marshal(sendTextRequest{To: to, Text: text})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/sessions/%s/messages", t.baseURL, url.PathEscape(sessionName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		req.Header.Set("X-API-Key", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
		}
		return fmt.Errorf("chat transport request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http status %d: %s", ErrTransportRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out sendTextResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("failed to decode chat transport response: %w", err)
		}
		if !out.Success {
			return fmt.Errorf("%w: %s", ErrTransportRejected, out.Message)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// MockChatTransport implements ChatTransport for testing
type MockChatTransport struct {
	mu           sync.Mutex
	SentMessages []MockChatMessage
	Attempts     int
	// FailFirst makes the first N sends fail with FailErr
	FailFirst int
	FailErr   error
	// FailAll makes every send fail
	FailAll bool
}

// MockChatMessage represents a mock chat message
type MockChatMessage struct {
	Session string
	To      string
	Text    string
	SentAt  time.Time
}

// NewMockChatTransport creates a new mock chat transport
func NewMockChatTransport() *MockChatTransport {
	return &MockChatTransport{
		SentMessages: make([]MockChatMessage, 0),
	}
}

func (m *MockChatTransport) SendText(_ context.Context, sessionName, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Attempts++
	if m.FailAll || m.Attempts <= m.FailFirst {
		if m.FailErr != nil {
			return m.FailErr
		}
		return ErrTransportTimeout
	}

	m.SentMessages = append(m.SentMessages, MockChatMessage{
		Session: sessionName,
		To:      to,
		Text:    text,
		SentAt:  utils.UTCNow(),
	})
	return nil
}

// GetSentMessages returns a copy of all sent messages
func (m *MockChatTransport) GetSentMessages() []MockChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockChatMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// AttemptCount returns the number of SendText calls, including failed ones
func (m *MockChatTransport) AttemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Attempts
}
