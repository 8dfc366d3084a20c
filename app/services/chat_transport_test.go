package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChatTransportSendText(t *testing.T) {
	var gotPath, gotKey string
	var gotBody sendTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(sendTextResponse{Success: true, ID: "m1"})
	}))
	defer srv.Close()

	transport := NewHTTPChatTransport(srv.URL+"/", "secret", time.Second)
	err := transport.SendText(context.Background(), "tenant 1", "5511999990000", "hello")
	require.NoError(t, err)

	assert.Equal(t, "/sessions/tenant 1/messages", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "5511999990000", gotBody.To)
	assert.Equal(t, "hello", gotBody.Text)
}

func TestHTTPChatTransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "non-2xx status",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			wantErr: ErrTransportRejected,
		},
		{
			name: "gateway reports failure",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(sendTextResponse{Success: false, Message: "session disconnected"})
			},
			wantErr: ErrTransportRejected,
		},
		{
			name:    "slow gateway",
			handler: func(_ http.ResponseWriter, _ *http.Request) { time.Sleep(200 * time.Millisecond) },
			wantErr: ErrTransportTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			transport := NewHTTPChatTransport(srv.URL, "", 50*time.Millisecond)
			err := transport.SendText(context.Background(), "s", "55", "hi")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPChatTransportRejectsEmptyDestination(t *testing.T) {
	transport := NewHTTPChatTransport("http://127.0.0.1:1", "", time.Second)
	assert.ErrorIs(t, transport.SendText(context.Background(), "s", " ", "hi"), ErrTransportRejected)
}

func TestMockChatTransportFailFirst(t *testing.T) {
	mock := NewMockChatTransport()
	mock.FailFirst = 2

	ctx := context.Background()
	assert.Error(t, mock.SendText(ctx, "s", "1", "a"))
	assert.Error(t, mock.SendText(ctx, "s", "1", "a"))
	assert.NoError(t, mock.SendText(ctx, "s", "1", "a"))

	assert.Equal(t, 3, mock.AttemptCount())
	assert.Len(t, mock.GetSentMessages(), 1)
}
