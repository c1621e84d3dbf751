package comfy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialerStreamsUntilCompletion(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotClient := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClient <- r.URL.Query().Get("clientId")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"status","data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"executing","data":{"node":null,"prompt_id":"job-7"}}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	d := NewDialer("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", time.Second)
	stream, err := d.Dial(context.Background(), "abc-123")
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "abc-123", <-gotClient)
	require.NoError(t, WaitForCompletion(context.Background(), stream, "job-7"))
}

func TestDialerRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := NewDialer("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", time.Second)
	_, err := d.Dial(context.Background(), "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestStreamNextHonorsCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	stream, err := NewDialer("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", time.Second).Dial(context.Background(), "c")
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialerURL(t *testing.T) {
	u, err := NewDialer("ws://127.0.0.1:8188/ws", 0).URL("id-1")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8188/ws?clientId=id-1", u)
}
