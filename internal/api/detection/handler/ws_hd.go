package detectionHandler

import (
	"FaceOverlay/internal/entity"
	contextPkg "FaceOverlay/pkg/context"
	"FaceOverlay/pkg/handlerUtil"
	"FaceOverlay/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 60 * time.Second
)

// upgradeStatusStream only lets websocket upgrades for known sessions through.
func (h *DetectionHandler) upgradeStatusStream(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	if _, err := h.detectionService.GetSession(c, ctx.Params("id")); err != nil {
		return handlerUtil.New(h.log).Handle(ctx, requestID, err, ctx.Path(), "upgrade_status_stream")
	}

	ctx.Locals("stream_request_id", requestID)
	return ctx.Next()
}

// handleStatusStream sends the session's current status, then every status
// change until the client goes away.
func (h *DetectionHandler) handleStatusStream(c *websocket.Conn) {
	sessionID := c.Params("id")
	h.log.WithField("session_id", sessionID).Info("Status stream client connected")
	defer h.log.WithField("session_id", sessionID).Info("Status stream client disconnected")

	// subscribe before reading the snapshot so no commit falls between them
	events, unsubscribe := h.detectionService.Subscribe(sessionID)
	defer unsubscribe()

	requestID, _ := c.Locals("stream_request_id").(string)
	snapshotCtx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), 5*time.Second)
	state, err := h.detectionService.GetSession(snapshotCtx, sessionID)
	cancel()
	if err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Status stream snapshot failed")
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(wsWriteTimeout))
		return
	}

	if err := h.writeEvent(c, entity.StatusEvent{
		SessionID: state.SessionID,
		ImageID:   state.ImageID,
		Phase:     state.Phase,
		Status:    state.Status,
		Faces:     len(state.Faces),
		At:        state.UpdatedAt,
	}); err != nil {
		return
	}

	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
				return
			}
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Errorf("Status stream error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			if err := h.writeEvent(c, event); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				h.log.Errorf("Error sending ping: %v", err)
				return
			}
		}
	}
}

func (h *DetectionHandler) writeEvent(c *websocket.Conn, event entity.StatusEvent) error {
	if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		h.log.Errorf("Error setting write deadline: %v", err)
		return err
	}

	if err := c.WriteJSON(event); err != nil {
		h.log.Errorf("Error writing status event: %v", err)
		return err
	}

	return nil
}
