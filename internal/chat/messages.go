package chat

import (
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

// SendMessage appends a message to a conversation the caller is part
// of. When the pair is not yet mutual friends, at most one open
// message-request notification is kept for the recipient no matter how
// many messages arrive before they respond.
func (s *Service) SendMessage(caller identity.Identity, conversationID int64, body string, images []string, replyToID int64) (int64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	if strings.TrimSpace(body) == "" && len(images) == 0 {
		return 0, grpcstatus.Error(codes.InvalidArgument, "message needs text or images")
	}
	conv, err := s.loadConversationFor(caller, conversationID)
	if err != nil {
		return 0, err
	}
	if replyToID != 0 {
		target, err := s.db.GetMessage(replyToID)
		if err != nil {
			return 0, grpcstatus.Errorf(codes.Internal, "get reply target: %v", err)
		}
		if target == nil || target.ConversationID != conversationID {
			return 0, grpcstatus.Error(codes.InvalidArgument, "reply target not in conversation")
		}
	}

	now := s.nowMilli()
	id, err := s.db.InsertMessage(&store.Message{
		ConversationID: conversationID,
		SenderEmail:    caller.Email,
		Body:           body,
		Images:         images,
		CreatedAt:      now,
		ReplyToID:      replyToID,
	})
	if err != nil {
		return 0, grpcstatus.Errorf(codes.Internal, "insert message: %v", err)
	}
	if err := s.db.TouchConversation(conversationID, now); err != nil {
		return 0, grpcstatus.Errorf(codes.Internal, "touch conversation: %v", err)
	}

	otherEmail := conv.Other(caller.Email)
	friends, err := s.db.AreFriends(caller.Email, otherEmail)
	if err != nil {
		return 0, grpcstatus.Errorf(codes.Internal, "check friendship: %v", err)
	}
	if !friends {
		created, err := s.db.InsertNotification(&store.Notification{
			RecipientEmail: otherEmail,
			SenderEmail:    caller.Email,
			Type:           store.NotificationMessageRequest,
			Message:        caller.Name + " wants to send you a message",
			CreatedAt:      now,
		})
		if err != nil {
			return 0, grpcstatus.Errorf(codes.Internal, "insert notification: %v", err)
		}
		if created != 0 {
			s.publish(bus.KindNotificationCreated, bus.Change{Emails: []string{otherEmail}})
		}
	}

	change := bus.Change{
		Emails:         []string{conv.User1Email, conv.User2Email},
		ConversationID: conversationID,
		MessageID:      id,
	}
	s.publish(bus.KindMessageCreated, change)
	s.publish(bus.KindConversationUpdated, change)
	return id, nil
}

// EditMessage replaces a message's body. Only the sender may edit, and
// the pre-first-edit body is kept.
func (s *Service) EditMessage(caller identity.Identity, messageID int64, newBody string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if strings.TrimSpace(newBody) == "" {
		return grpcstatus.Error(codes.InvalidArgument, "new body required")
	}
	m, err := s.loadMessageFromSender(caller, messageID)
	if err != nil {
		return err
	}
	if err := s.db.EditMessage(messageID, newBody); err != nil {
		return grpcstatus.Errorf(codes.Internal, "edit message: %v", err)
	}
	s.publishMessageUpdated(m)
	return nil
}

// UnsendMessage soft-deletes the caller's own message. The row stays so
// replies keep an anchor; projections blank the content.
func (s *Service) UnsendMessage(caller identity.Identity, messageID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	m, err := s.loadMessageFromSender(caller, messageID)
	if err != nil {
		return err
	}
	if err := s.db.UnsendMessage(messageID); err != nil {
		return grpcstatus.Errorf(codes.Internal, "unsend message: %v", err)
	}
	s.publishMessageUpdated(m)
	return nil
}

// ToggleReaction toggles the caller's (emoji) reaction on a message.
func (s *Service) ToggleReaction(caller identity.Identity, messageID int64, emoji string) (bool, error) {
	if err := requireCaller(caller); err != nil {
		return false, err
	}
	if emoji == "" {
		return false, grpcstatus.Error(codes.InvalidArgument, "emoji required")
	}
	m, err := s.loadMessageForParticipant(caller, messageID)
	if err != nil {
		return false, err
	}
	set, err := s.db.ToggleReaction(messageID, caller.Email, emoji, s.nowMilli())
	if err != nil {
		return false, grpcstatus.Errorf(codes.Internal, "toggle reaction: %v", err)
	}
	s.publishMessageUpdated(m)
	return set, nil
}

// TogglePin flips the pinned flag. Any participant may pin, not just
// the sender.
func (s *Service) TogglePin(caller identity.Identity, messageID int64) (bool, error) {
	if err := requireCaller(caller); err != nil {
		return false, err
	}
	m, err := s.loadMessageForParticipant(caller, messageID)
	if err != nil {
		return false, err
	}
	pinned, err := s.db.TogglePin(messageID)
	if err != nil {
		return false, grpcstatus.Errorf(codes.Internal, "toggle pin: %v", err)
	}
	s.publishMessageUpdated(m)
	return pinned, nil
}

// ReportMessage files a moderation report. Any participant may report.
func (s *Service) ReportMessage(caller identity.Identity, messageID int64, reason string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return grpcstatus.Error(codes.InvalidArgument, "reason required")
	}
	if _, err := s.loadMessageForParticipant(caller, messageID); err != nil {
		return err
	}
	if _, err := s.db.InsertReport(messageID, caller.Email, reason, s.nowMilli()); err != nil {
		return grpcstatus.Errorf(codes.Internal, "insert report: %v", err)
	}
	return nil
}

// Messages returns one page of the conversation ending at the tail (or
// before the given message id), oldest first, enriched with reply
// previews, reactions and the read-by-other flag.
func (s *Service) Messages(caller identity.Identity, conversationID int64, before int64, limit int) ([]store.MessageView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	conv, err := s.loadConversationFor(caller, conversationID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	otherRead := conv.LastReadAt(conv.Other(caller.Email))
	views, err := s.db.ListMessages(conversationID, before, limit, otherRead)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}
	// ReadByOther only means anything on the caller's own messages.
	for i := range views {
		if views[i].SenderEmail != caller.Email {
			views[i].ReadByOther = false
		}
	}
	return views, nil
}

// PinnedMessages returns the conversation's pinned set, newest first.
func (s *Service) PinnedMessages(caller identity.Identity, conversationID int64) ([]store.Message, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if _, err := s.loadConversationFor(caller, conversationID); err != nil {
		return nil, err
	}
	pinned, err := s.db.ListPinnedMessages(conversationID)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list pinned: %v", err)
	}
	return pinned, nil
}

func (s *Service) loadMessage(messageID int64) (*store.Message, error) {
	m, err := s.db.GetMessage(messageID)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get message: %v", err)
	}
	if m == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "message %d not found", messageID)
	}
	return m, nil
}

func (s *Service) loadMessageFromSender(caller identity.Identity, messageID int64) (*store.Message, error) {
	m, err := s.loadMessage(messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderEmail != caller.Email {
		return nil, grpcstatus.Error(codes.PermissionDenied, "not the message sender")
	}
	return m, nil
}

func (s *Service) loadMessageForParticipant(caller identity.Identity, messageID int64) (*store.Message, error) {
	m, err := s.loadMessage(messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadConversationFor(caller, m.ConversationID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) publishMessageUpdated(m *store.Message) {
	conv, err := s.db.GetConversation(m.ConversationID)
	if err != nil || conv == nil {
		s.logger.Warn("message update event without conversation",
			zap.Int64("message_id", m.ID), zap.Error(err))
		return
	}
	s.publish(bus.KindMessageUpdated, bus.Change{
		Emails:         []string{conv.User1Email, conv.User2Email},
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
	})
}
