package gateway

import (
	"slices"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/live"
)

// wsEnvelope is one push frame. Invalidation frames carry the event
// kind so clients know which queries to re-fetch; live query frames
// carry the fresh result in Data.
type wsEnvelope struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Timestamp      int64  `json:"timestamp"`
	ConversationID int64  `json:"conversationId,omitempty"`
	MessageID      int64  `json:"messageId,omitempty"`
	Data           any    `json:"data,omitempty"`
}

func (g *Gateway) wsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"success": false,
			"error":   "websocket upgrade required",
		})
	}
	return c.Next()
}

// handleWS streams change events to one client session. Events are
// filtered by the caller's email so a session only hears about rows it
// can see; presence updates fan out to everyone. The unread
// notification badge is kept fresh server-side as a live query.
func (g *Gateway) handleWS(conn *websocket.Conn) {
	id, _ := conn.Locals("identity").(identity.Identity)
	logger := g.logger.With(zap.String("email", id.Email))
	logger.Info("websocket session opened")
	defer logger.Info("websocket session closed")

	events, unsubscribe := g.bus.Subscribe("", 64)
	defer unsubscribe()

	badge := g.hub.Subscribe(live.Query{
		Namespaces: []string{"notification."},
		Run: func() (any, error) {
			count, err := g.svc.UnreadNotificationCount(id)
			if err != nil {
				return nil, err
			}
			return count, nil
		},
	})
	defer badge.Stop()

	// Read pump: we never expect frames from the client, but reading is
	// what surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case result := <-badge.Results:
			if result.Err != nil {
				logger.Warn("unread badge query failed", zap.Error(result.Err))
				continue
			}
			frame := wsEnvelope{
				ID:        uuid.NewString(),
				Kind:      "notifications.unread",
				Timestamp: time.Now().UnixMilli(),
				Data:      result.Value,
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case evt, ok := <-events:
			if !ok {
				return
			}
			if !eventVisibleTo(evt, id.Email) {
				continue
			}
			frame := wsEnvelope{
				ID:        uuid.NewString(),
				Kind:      evt.Kind,
				Timestamp: evt.Timestamp.UnixMilli(),
			}
			if change, ok := evt.Payload.(bus.Change); ok {
				frame.ConversationID = change.ConversationID
				frame.MessageID = change.MessageID
			}
			if err := conn.WriteJSON(frame); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

func eventVisibleTo(evt bus.Event, email string) bool {
	if strings.HasPrefix(evt.Kind, "user.") {
		return true
	}
	change, ok := evt.Payload.(bus.Change)
	if !ok {
		return false
	}
	return slices.Contains(change.Emails, email)
}
