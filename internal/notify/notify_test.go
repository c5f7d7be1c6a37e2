package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPostsEvent(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), Event{
		Type:    EventRetrainSucceeded,
		Message: "model improved",
		RunID:   "run-1",
		Details: map[string]any{"accuracy": 0.91},
	})
	require.NoError(t, err)

	assert.Equal(t, EventRetrainSucceeded, got.Type)
	assert.Equal(t, "run-1", got.RunID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, 0.91, got.Details["accuracy"])
}

func TestSendWebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), Event{Type: EventRetrainFailed, Message: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSendDisabledWebhook(t *testing.T) {
	n := New("")
	assert.NoError(t, n.Send(context.Background(), Event{Type: EventRetrainSkipped}))
}
