package gateway

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func pathID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// --- users ---

func (g *Gateway) handleStoreUser(c *fiber.Ctx) error {
	if err := g.svc.StoreUser(callerFrom(c)); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleSetOffline(c *fiber.Ctx) error {
	if err := g.svc.SetUserOffline(callerFrom(c)); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleListUsers(c *fiber.Ctx) error {
	users, err := g.svc.ListUsers(callerFrom(c))
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, users)
}

func (g *Gateway) handleSearchUsers(c *fiber.Ctx) error {
	users, err := g.svc.SearchUsers(callerFrom(c), c.Query("term"))
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, users)
}

// --- friends ---

func (g *Gateway) handleSendFriendRequest(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := g.svc.SendFriendRequest(callerFrom(c), req.Email); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleAcceptFriendRequest(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	if err := g.svc.AcceptFriendRequest(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleRejectFriendRequest(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid request id")
	}
	if err := g.svc.RejectFriendRequest(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleRemoveFriend(c *fiber.Ctx) error {
	if err := g.svc.RemoveFriend(callerFrom(c), c.Params("email")); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleFriends(c *fiber.Ctx) error {
	friends, err := g.svc.Friends(callerFrom(c))
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, friends)
}

func (g *Gateway) handlePendingRequests(c *fiber.Ctx) error {
	reqs, err := g.svc.PendingRequests(callerFrom(c))
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, reqs)
}

func (g *Gateway) handleSentRequests(c *fiber.Ctx) error {
	reqs, err := g.svc.SentRequests(callerFrom(c))
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, reqs)
}

// --- conversations ---

func (g *Gateway) handleGetOrCreateConversation(c *fiber.Ctx) error {
	var req struct {
		OtherEmail string `json:"otherEmail"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	id, err := g.svc.GetOrCreateConversation(callerFrom(c), req.OtherEmail)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, fiber.Map{"conversationId": id})
}

func (g *Gateway) handleConversations(c *fiber.Ctx) error {
	convs, err := g.svc.Conversations(callerFrom(c))
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, convs)
}

func (g *Gateway) handleConversation(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	header, err := g.svc.Conversation(callerFrom(c), id)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, header)
}

func (g *Gateway) handleAcceptConversation(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	if err := g.svc.AcceptConversation(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleMarkRead(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	if err := g.svc.MarkConversationRead(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

// --- messages ---

func (g *Gateway) handleSendMessage(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	var req struct {
		Body      string   `json:"body"`
		Images    []string `json:"images"`
		ReplyToID int64    `json:"replyToId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	msgID, err := g.svc.SendMessage(callerFrom(c), id, req.Body, req.Images, req.ReplyToID)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, fiber.Map{"messageId": msgID})
}

func (g *Gateway) handleMessages(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := g.svc.Messages(callerFrom(c), id, before, limit)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, msgs)
}

func (g *Gateway) handlePinnedMessages(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	msgs, err := g.svc.PinnedMessages(callerFrom(c), id)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, msgs)
}

func (g *Gateway) handleEditMessage(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid message id")
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := g.svc.EditMessage(callerFrom(c), id, req.Body); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleUnsendMessage(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid message id")
	}
	if err := g.svc.UnsendMessage(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleToggleReaction(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid message id")
	}
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	added, err := g.svc.ToggleReaction(callerFrom(c), id, req.Emoji)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, fiber.Map{"added": added})
}

func (g *Gateway) handleTogglePin(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid message id")
	}
	pinned, err := g.svc.TogglePin(callerFrom(c), id)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, fiber.Map{"pinned": pinned})
}

func (g *Gateway) handleReportMessage(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid message id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := g.svc.ReportMessage(callerFrom(c), id, req.Reason); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

// --- typing ---

func (g *Gateway) handleSetTyping(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	var req struct {
		Typing bool `json:"typing"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := g.svc.SetTyping(callerFrom(c), id, req.Typing); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleTyping(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	typing, err := g.svc.IsOtherUserTyping(callerFrom(c), id)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, fiber.Map{"typing": typing})
}

// --- notifications ---

func (g *Gateway) handleNotifications(c *fiber.Ctx) error {
	notifs, err := g.svc.Notifications(callerFrom(c))
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, notifs)
}

func (g *Gateway) handleUnreadCount(c *fiber.Ctx) error {
	count, err := g.svc.UnreadNotificationCount(callerFrom(c))
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, fiber.Map{"count": count})
}

func (g *Gateway) handleMarkNotificationRead(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid notification id")
	}
	if err := g.svc.MarkNotificationRead(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleDeleteNotification(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid notification id")
	}
	if err := g.svc.DeleteNotification(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

// --- call signals ---

func (g *Gateway) handleSendSignal(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	var req struct {
		Type   string `json:"type"`
		Signal string `json:"signal"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	sigID, err := g.svc.SendSignal(callerFrom(c), id, req.Type, req.Signal)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, fiber.Map{"signalId": sigID})
}

func (g *Gateway) handlePendingSignals(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	sigs, err := g.svc.PendingSignals(callerFrom(c), id)
	if err != nil {
		return g.fail(c, err)
	}
	return ok(c, sigs)
}

func (g *Gateway) handleClearSignal(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid signal id")
	}
	if err := g.svc.ClearSignal(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}

func (g *Gateway) handleClearConversationSignals(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}
	if err := g.svc.ClearConversationSignals(callerFrom(c), id); err != nil {
		return g.fail(c, err)
	}
	return ok(c, nil)
}
