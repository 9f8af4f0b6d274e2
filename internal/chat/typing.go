package chat

import (
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
)

// SetTyping refreshes or clears the caller's typing indicator. The
// client debounces: true once per burst, false on idle, submit or
// leaving the thread.
func (s *Service) SetTyping(caller identity.Identity, conversationID int64, typing bool) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	conv, err := s.loadConversationFor(caller, conversationID)
	if err != nil {
		return err
	}
	if err := s.db.SetTyping(conversationID, caller.Email, typing, s.nowMilli()); err != nil {
		return grpcstatus.Errorf(codes.Internal, "set typing: %v", err)
	}
	s.publish(bus.KindTypingChanged, bus.Change{
		Emails:         []string{conv.Other(caller.Email)},
		ConversationID: conversationID,
	})
	return nil
}

// IsOtherUserTyping reports whether the counterparty's indicator is
// fresh. Stale rows read as not-typing; no cleanup job exists, silence
// is the expiry mechanism.
func (s *Service) IsOtherUserTyping(caller identity.Identity, conversationID int64) (bool, error) {
	if err := requireCaller(caller); err != nil {
		return false, err
	}
	conv, err := s.loadConversationFor(caller, conversationID)
	if err != nil {
		return false, err
	}
	at, err := s.db.TypingUpdatedAt(conversationID, conv.Other(caller.Email))
	if err != nil {
		return false, grpcstatus.Errorf(codes.Internal, "typing lookup: %v", err)
	}
	if at == 0 {
		return false, nil
	}
	return s.nowMilli()-at < TypingFreshness.Milliseconds(), nil
}
