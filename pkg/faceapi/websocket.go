package faceapi

import (
	"FaceOverlay/internal/entity"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type WebSocketOption func(*webSocketRuntime)

func WithPingInterval(d time.Duration) WebSocketOption {
	return func(c *webSocketRuntime) { c.pingInterval = d }
}

func WithReadTimeout(d time.Duration) WebSocketOption {
	return func(c *webSocketRuntime) { c.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(c *webSocketRuntime) { c.writeTimeout = d }
}

func WithLogger(log *logrus.Logger) WebSocketOption {
	return func(c *webSocketRuntime) { c.log = log }
}

type webSocketRuntime struct {
	url          string
	conn         *websocket.Conn
	mu           sync.Mutex
	reqMu        sync.Mutex
	seq          atomic.Uint64
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *logrus.Logger
}

// NewWebSocketRuntime returns a Runtime backed by a face-api sidecar that
// speaks JSON over a single WebSocket. Requests are serialised.
func NewWebSocketRuntime(url string, opts ...WebSocketOption) Runtime {
	c := &webSocketRuntime{
		url:          url,
		pingInterval: 30 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *webSocketRuntime) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	return c.dialLocked(ctx)
}

func (c *webSocketRuntime) dialLocked(ctx context.Context) error {
	if c.url == "" {
		return errors.New("face-api runtime URL not configured")
	}

	c.log.WithField("url", c.url).Info("Connecting to face-api runtime")

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout)); err != nil {
			c.log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *webSocketRuntime) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *webSocketRuntime) keepAlive(conn *websocket.Conn) {
	if c.pingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout)); err != nil {
			c.log.Warnf("Ping to face-api runtime failed, dropping connection: %v", err)
			c.dropLocked(conn)
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *webSocketRuntime) dropLocked(conn *websocket.Conn) {
	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

func (c *webSocketRuntime) connection(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			return nil, err
		}
	}
	return c.conn, nil
}

func (c *webSocketRuntime) LoadNet(ctx context.Context, net Net, uri string) error {
	_, err := c.roundTrip(ctx, request{Op: "load", Net: net, URI: uri})
	return err
}

func (c *webSocketRuntime) Detect(ctx context.Context, image []byte) ([]entity.FaceDetection, error) {
	resp, err := c.roundTrip(ctx, request{
		Op:              "detect",
		Image:           base64.StdEncoding.EncodeToString(image),
		WithLandmarks:   true,
		WithExpressions: true,
	})
	if err != nil {
		return nil, err
	}

	detections := make([]entity.FaceDetection, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		detections = append(detections, d.toEntity())
	}
	return detections, nil
}

func (c *webSocketRuntime) roundTrip(ctx context.Context, req request) (*response, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	conn, err := c.connection(ctx)
	if err != nil {
		return nil, err
	}

	req.ID = strconv.FormatUint(c.seq.Add(1), 10)
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error encoding %s request: %w", req.Op, err)
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
		conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.drop(conn)
		return nil, c.ctxErr(ctx, fmt.Errorf("error sending %s request: %w", req.Op, err))
	}

	conn.SetReadDeadline(c.deadline(ctx, c.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.drop(conn)
		return nil, c.ctxErr(ctx, fmt.Errorf("error reading %s response: %w", req.Op, err))
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var resp response
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("error decoding %s response: %w", req.Op, err)
	}
	if resp.ID != req.ID {
		c.drop(conn)
		return nil, fmt.Errorf("out of order %s response: want id %s, got %s", req.Op, req.ID, resp.ID)
	}
	if !resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown runtime error"
		}
		if req.Net != "" {
			return nil, fmt.Errorf("%s %s: %s", req.Op, req.Net, resp.Error)
		}
		return nil, fmt.Errorf("%s: %s", req.Op, resp.Error)
	}

	c.log.WithFields(logrus.Fields{
		"op":         req.Op,
		"net":        req.Net,
		"request_id": req.ID,
		"detections": len(resp.Detections),
	}).Debug("face-api runtime replied")

	return &resp, nil
}

func (c *webSocketRuntime) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(conn)
}

func (c *webSocketRuntime) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

func (c *webSocketRuntime) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
