package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T, received chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"agents_ready","data":{}}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(received)
				return
			}
			received <- string(data)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebsocketDialer_RoundTrip(t *testing.T) {
	received := make(chan string, 4)
	srv := echoServer(t, received)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/s1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := WebsocketDialer{Logger: zerolog.Nop()}.Dial(ctx, url)
	require.NoError(t, err)

	frame, err := conn.ReadFrame()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"agents_ready","data":{}}`, string(frame))

	require.NoError(t, conn.Send([]byte(`{"type":"stop"}`)))
	require.NoError(t, conn.Send([]byte(`{"type":"end_session"}`)))
	require.NoError(t, conn.Close())

	var got []string
	for msg := range received {
		got = append(got, msg)
	}
	require.Equal(t, []string{`{"type":"stop"}`, `{"type":"end_session"}`}, got)

	require.True(t, errors.Is(conn.Send([]byte("x")), ErrClosed))
	require.NoError(t, conn.Close())
}

func TestWebsocketDialer_ReadAfterServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)

	conn, err := WebsocketDialer{}.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.ReadFrame()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrClosed))
}

func TestWebsocketDialer_HandshakeFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	_, err := WebsocketDialer{}.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}
