package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aipsych-founder/AIPsych/internal/logging"
	"github.com/aipsych-founder/AIPsych/internal/voice"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ConnectParams describe one room join.
type ConnectParams struct {
	URL       string // media platform endpoint (http/https or ws/wss)
	Token     string // signed access token
	Room      string // room name, used for labeling only; the grant binds the room
	Subscribe SubscribeMode
}

// Client dials the media platform's signaling endpoint. It treats the
// platform as a connect/subscribe black box: binary frames in both
// directions carry Int16LE PCM audio.
type Client struct {
	dialer *websocket.Dialer
}

// NewClient creates a media client with default dial settings.
func NewClient() *Client {
	return &Client{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
}

// Connect joins a room with the given access token and subscription
// mode. The returned Room stays live until Close or a read failure.
func (c *Client) Connect(ctx context.Context, params ConnectParams) (Room, error) {
	wsURL, err := signalURL(params)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to room: %w", err)
	}

	r := &wsRoom{
		name:   params.Room,
		conn:   conn,
		frames: make(chan []int16, 100),
		done:   make(chan struct{}),
	}

	go r.readPump()
	go r.pingLoop()

	logging.Infof("connected to room %q (subscribe=%s)", params.Room, params.Subscribe)
	return r, nil
}

// signalURL converts the configured endpoint into the websocket
// signaling URL carrying the token and subscription mode.
func signalURL(params ConnectParams) (string, error) {
	u, err := url.Parse(params.URL)
	if err != nil {
		return "", fmt.Errorf("invalid media URL %q: %w", params.URL, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported media URL scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/rtc"
	q := u.Query()
	q.Set("access_token", params.Token)
	q.Set("auto_subscribe", params.Subscribe.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// wsRoom is the websocket-backed Room implementation.
type wsRoom struct {
	name   string
	conn   *websocket.Conn
	frames chan []int16

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (r *wsRoom) Name() string { return r.name }

func (r *wsRoom) AudioFrames() <-chan []int16 { return r.frames }

// PublishAudio writes one binary PCM frame to the room.
func (r *wsRoom) PublishAudio(ctx context.Context, pcm []byte) error {
	select {
	case <-r.done:
		return fmt.Errorf("room connection closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return r.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// Close tears down the connection and is safe to call repeatedly.
func (r *wsRoom) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)

		r.writeMu.Lock()
		r.conn.SetWriteDeadline(time.Now().Add(writeWait))
		r.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		r.writeMu.Unlock()

		r.conn.Close()
	})
	return nil
}

// readPump delivers incoming binary frames as PCM until the connection
// drops, then closes the frame channel.
func (r *wsRoom) readPump() {
	defer func() {
		r.Close()
		close(r.frames)
	}()

	r.conn.SetReadDeadline(time.Now().Add(pongWait))
	r.conn.SetPongHandler(func(string) error {
		r.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		select {
		case r.frames <- voice.DecodePCM(data):
		case <-r.done:
			return
		}
	}
}

// pingLoop keeps the connection alive.
func (r *wsRoom) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.writeMu.Lock()
			r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := r.conn.WriteMessage(websocket.PingMessage, nil)
			r.writeMu.Unlock()
			if err != nil {
				r.Close()
				return
			}
		case <-r.done:
			return
		}
	}
}
