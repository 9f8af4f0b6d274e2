package chat

import (
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

// ConversationHeader is the single-conversation projection used above a
// message list: the other party's display fields plus consent state.
type ConversationHeader struct {
	ID              int64  `json:"id"`
	OtherEmail      string `json:"otherEmail"`
	OtherName       string `json:"otherName"`
	OtherAvatar     string `json:"otherAvatar"`
	OtherLastActive int64  `json:"otherLastActive"`
	OtherOnline     bool   `json:"otherOnline"`
	AcceptedByMe    bool   `json:"acceptedByMe"`
	AcceptedByOther bool   `json:"acceptedByOther"`
}

// ConversationView is one conversation-list entry with presence.
type ConversationView struct {
	store.ConversationSummary
	OtherOnline bool `json:"otherOnline"`
}

// GetOrCreateConversation returns the id of the single conversation for
// the caller and the other user, creating it on first contact. On
// create, the caller's acceptance is seeded; the other side is
// pre-accepted only when the pair is already friends, which decides
// whether they see the thread gated as a message request.
func (s *Service) GetOrCreateConversation(caller identity.Identity, otherEmail string) (int64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	if otherEmail == "" || otherEmail == caller.Email {
		return 0, grpcstatus.Error(codes.InvalidArgument, "other email required")
	}

	existing, err := s.db.GetConversationByPair(caller.Email, otherEmail)
	if err != nil {
		return 0, grpcstatus.Errorf(codes.Internal, "get conversation: %v", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	friends, err := s.db.AreFriends(caller.Email, otherEmail)
	if err != nil {
		return 0, grpcstatus.Errorf(codes.Internal, "check friendship: %v", err)
	}

	now := s.nowMilli()
	conv := &store.Conversation{
		User1Email:    caller.Email,
		User2Email:    otherEmail,
		CreatedAt:     now,
		LastMessageAt: now,
		User1Accepted: true,
		User2Accepted: friends,
	}
	id, err := s.db.InsertConversation(conv)
	if err == store.ErrDuplicatePair {
		// Lost the create race; the winner's row is the conversation.
		winner, err := s.db.GetConversationByPair(caller.Email, otherEmail)
		if err != nil {
			return 0, grpcstatus.Errorf(codes.Internal, "get conversation: %v", err)
		}
		return winner.ID, nil
	}
	if err != nil {
		return 0, grpcstatus.Errorf(codes.Internal, "insert conversation: %v", err)
	}

	s.publish(bus.KindConversationUpdated, bus.Change{
		Emails:         []string{caller.Email, otherEmail},
		ConversationID: id,
	})
	return id, nil
}

// AcceptConversation records the caller's explicit consent to an
// incoming message-request thread. Idempotent.
func (s *Service) AcceptConversation(caller identity.Identity, conversationID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	conv, err := s.loadConversationFor(caller, conversationID)
	if err != nil {
		return err
	}
	if err := s.db.AcceptConversationBy(conversationID, caller.Email); err != nil {
		return grpcstatus.Errorf(codes.Internal, "accept conversation: %v", err)
	}
	s.publish(bus.KindConversationUpdated, bus.Change{
		Emails:         []string{conv.User1Email, conv.User2Email},
		ConversationID: conversationID,
	})
	return nil
}

// MarkConversationRead advances the caller's read watermark to now.
// Fired on every message-list render, so it is mark-visible-as-read,
// not per-message acknowledgement.
func (s *Service) MarkConversationRead(caller identity.Identity, conversationID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	conv, err := s.loadConversationFor(caller, conversationID)
	if err != nil {
		return err
	}
	if err := s.db.MarkConversationRead(conversationID, caller.Email, s.nowMilli()); err != nil {
		return grpcstatus.Errorf(codes.Internal, "mark read: %v", err)
	}
	s.publish(bus.KindConversationUpdated, bus.Change{
		Emails:         []string{conv.User1Email, conv.User2Email},
		ConversationID: conversationID,
	})
	return nil
}

// Conversations returns the caller's conversation list, newest activity
// first, capped at the most recent entries.
func (s *Service) Conversations(caller identity.Identity) ([]ConversationView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	summaries, err := s.db.ListConversations(caller.Email, MaxConversations)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list conversations: %v", err)
	}
	views := make([]ConversationView, 0, len(summaries))
	for _, sum := range summaries {
		views = append(views, ConversationView{
			ConversationSummary: sum,
			OtherOnline:         s.IsOnline(sum.OtherLastActive),
		})
	}
	return views, nil
}

// Conversation returns the header projection for one conversation.
func (s *Service) Conversation(caller identity.Identity, conversationID int64) (*ConversationHeader, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	conv, err := s.loadConversationFor(caller, conversationID)
	if err != nil {
		return nil, err
	}
	otherEmail := conv.Other(caller.Email)
	h := &ConversationHeader{
		ID:              conv.ID,
		OtherEmail:      otherEmail,
		OtherName:       otherEmail,
		AcceptedByMe:    conv.AcceptedBy(caller.Email),
		AcceptedByOther: conv.AcceptedBy(otherEmail),
	}
	other, err := s.db.GetUser(otherEmail)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get user: %v", err)
	}
	if other != nil {
		h.OtherName = other.DisplayName()
		h.OtherAvatar = other.AvatarURL
		h.OtherLastActive = other.LastActive
		h.OtherOnline = s.IsOnline(other.LastActive)
	}
	return h, nil
}
