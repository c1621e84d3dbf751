package comfy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer opens progress channels to the engine's websocket endpoint.
type Dialer struct {
	wsURL  string
	dialer *websocket.Dialer
}

// NewDialer targets wsURL (for example ws://127.0.0.1:8188/ws). A zero
// handshake timeout falls back to 10 seconds.
func NewDialer(wsURL string, handshakeTimeout time.Duration) *Dialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &Dialer{
		wsURL: wsURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// URL returns the channel address for clientID.
func (d *Dialer) URL(clientID string) (string, error) {
	u, err := url.Parse(d.wsURL)
	if err != nil {
		return "", fmt.Errorf("comfy: invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("clientId", clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial opens one progress channel identified by clientID.
func (d *Dialer) Dial(ctx context.Context, clientID string) (Stream, error) {
	target, err := d.URL(clientID)
	if err != nil {
		return nil, err
	}
	conn, resp, err := d.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("comfy: dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("comfy: dial %s: %w", target, err)
	}
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

// Next blocks on the connection. Cancelling ctx unblocks the read by
// expiring the read deadline.
func (s *wsStream) Next(ctx context.Context) (Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	kind, data, err := s.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Frame{}, ctxErr
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Frame{}, errors.Join(ErrStreamEnded, err)
		}
		return Frame{}, fmt.Errorf("comfy: read progress: %w", err)
	}
	return Frame{Text: kind == websocket.TextMessage, Data: data}, nil
}

func (s *wsStream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
