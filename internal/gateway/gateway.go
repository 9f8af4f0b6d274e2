// Package gateway exposes the chat service to web clients: a JSON HTTP
// API plus a WebSocket stream of change events that tells clients which
// queries to re-fetch. Identity arrives as a signed assertion from the
// external identity provider; the gateway only verifies it.
package gateway

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/chat"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/live"
)

// Gateway wires the HTTP surface.
type Gateway struct {
	svc    *chat.Service
	signer *identity.Signer
	bus    *bus.Bus
	hub    *live.Hub
	logger *zap.Logger
}

func New(svc *chat.Service, signer *identity.Signer, b *bus.Bus, hub *live.Hub, logger *zap.Logger) *Gateway {
	return &Gateway{svc: svc, signer: signer, bus: b, hub: hub, logger: logger.Named("gateway")}
}

// Register mounts all routes on the app.
func (g *Gateway) Register(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authed := api.Group("", g.authMiddleware)

	users := authed.Group("/users")
	users.Post("/ping", g.handleStoreUser)
	users.Post("/offline", g.handleSetOffline)
	users.Get("/", g.handleListUsers)
	users.Get("/search", g.handleSearchUsers)

	friends := authed.Group("/friends")
	friends.Get("/", g.handleFriends)
	friends.Delete("/:email", g.handleRemoveFriend)
	friends.Get("/requests", g.handlePendingRequests)
	friends.Get("/requests/sent", g.handleSentRequests)
	friends.Post("/requests", g.handleSendFriendRequest)
	friends.Post("/requests/:id/accept", g.handleAcceptFriendRequest)
	friends.Post("/requests/:id/reject", g.handleRejectFriendRequest)

	convs := authed.Group("/conversations")
	convs.Get("/", g.handleConversations)
	convs.Post("/", g.handleGetOrCreateConversation)
	convs.Get("/:id", g.handleConversation)
	convs.Post("/:id/accept", g.handleAcceptConversation)
	convs.Post("/:id/read", g.handleMarkRead)
	convs.Get("/:id/messages", g.handleMessages)
	convs.Post("/:id/messages", g.handleSendMessage)
	convs.Get("/:id/messages/pinned", g.handlePinnedMessages)
	convs.Post("/:id/typing", g.handleSetTyping)
	convs.Get("/:id/typing", g.handleTyping)
	convs.Get("/:id/signals", g.handlePendingSignals)
	convs.Post("/:id/signals", g.handleSendSignal)
	convs.Delete("/:id/signals", g.handleClearConversationSignals)

	messages := authed.Group("/messages")
	messages.Patch("/:id", g.handleEditMessage)
	messages.Delete("/:id", g.handleUnsendMessage)
	messages.Post("/:id/reactions", g.handleToggleReaction)
	messages.Post("/:id/pin", g.handleTogglePin)
	messages.Post("/:id/report", g.handleReportMessage)

	notifs := authed.Group("/notifications")
	notifs.Get("/", g.handleNotifications)
	notifs.Get("/unread-count", g.handleUnreadCount)
	notifs.Post("/:id/read", g.handleMarkNotificationRead)
	notifs.Delete("/:id", g.handleDeleteNotification)

	signals := authed.Group("/signals")
	signals.Delete("/:id", g.handleClearSignal)

	api.Get("/ws", g.authMiddleware, g.wsUpgrade, websocket.New(g.handleWS))
}

// authMiddleware verifies the bearer token (or cookie) and stashes the
// caller identity in locals.
func (g *Gateway) authMiddleware(c *fiber.Ctx) error {
	token := c.Cookies("token")
	if auth := c.Get(fiber.HeaderAuthorization); len(auth) > 7 && auth[:7] == "Bearer " {
		token = auth[7:]
	}
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "no token provided",
		})
	}
	id, err := g.signer.Verify(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "invalid token",
		})
	}
	c.Locals("identity", *id)
	return c.Next()
}

func callerFrom(c *fiber.Ctx) identity.Identity {
	id, _ := c.Locals("identity").(identity.Identity)
	return id
}

// httpStatus maps the service error taxonomy onto HTTP.
func httpStatus(err error) int {
	switch grpcstatus.Code(err) {
	case codes.Unauthenticated:
		return fiber.StatusUnauthorized
	case codes.PermissionDenied:
		return fiber.StatusForbidden
	case codes.NotFound:
		return fiber.StatusNotFound
	case codes.FailedPrecondition:
		return fiber.StatusConflict
	case codes.InvalidArgument:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (g *Gateway) fail(c *fiber.Ctx, err error) error {
	code := httpStatus(err)
	if code == fiber.StatusInternalServerError {
		g.logger.Error("request failed",
			zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   grpcstatus.Convert(err).Message(),
	})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}
