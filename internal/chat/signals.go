package chat

import (
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

var signalTypes = map[string]bool{
	"offer": true, "answer": true, "candidate": true,
	"call-request": true, "call-accepted": true,
	"call-rejected": true, "call-ended": true,
}

// SendSignal drops a signaling envelope into the counterparty's
// mailbox. The payload is opaque here; only the type is checked.
func (s *Service) SendSignal(caller identity.Identity, conversationID int64, signalType, payload string) (int64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	if !signalTypes[signalType] {
		return 0, grpcstatus.Errorf(codes.InvalidArgument, "unknown signal type %q", signalType)
	}
	conv, err := s.loadConversationFor(caller, conversationID)
	if err != nil {
		return 0, err
	}
	to := conv.Other(caller.Email)
	id, err := s.db.InsertSignal(&store.CallSignal{
		ConversationID: conversationID,
		FromEmail:      caller.Email,
		ToEmail:        to,
		Type:           signalType,
		Signal:         payload,
		CreatedAt:      s.nowMilli(),
	})
	if err != nil {
		return 0, grpcstatus.Errorf(codes.Internal, "insert signal: %v", err)
	}
	s.publish(bus.KindSignalCreated, bus.Change{
		Emails:         []string{to},
		ConversationID: conversationID,
	})
	return id, nil
}

// PendingSignals returns the caller's unconsumed mailbox entries for a
// conversation, newest first.
func (s *Service) PendingSignals(caller identity.Identity, conversationID int64) ([]store.CallSignal, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if _, err := s.loadConversationFor(caller, conversationID); err != nil {
		return nil, err
	}
	signals, err := s.db.ListPendingSignals(conversationID, caller.Email)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list signals: %v", err)
	}
	return signals, nil
}

// ClearSignal consumes one envelope. Only the addressee may clear it.
func (s *Service) ClearSignal(caller identity.Identity, signalID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	sig, err := s.db.GetSignal(signalID)
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "get signal: %v", err)
	}
	if sig == nil {
		return grpcstatus.Errorf(codes.NotFound, "signal %d not found", signalID)
	}
	if sig.ToEmail != caller.Email {
		return grpcstatus.Error(codes.PermissionDenied, "not the signal recipient")
	}
	if err := s.db.DeleteSignal(signalID); err != nil {
		return grpcstatus.Errorf(codes.Internal, "delete signal: %v", err)
	}
	s.publish(bus.KindSignalCleared, bus.Change{
		Emails:         []string{caller.Email},
		ConversationID: sig.ConversationID,
	})
	return nil
}

// ClearConversationSignals purges the caller's inbox for a conversation
// on call teardown so stale entries cannot resurrect a future call. An
// envelope still in flight to the counterparty is theirs to consume.
func (s *Service) ClearConversationSignals(caller identity.Identity, conversationID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if _, err := s.loadConversationFor(caller, conversationID); err != nil {
		return err
	}
	if _, err := s.db.DeleteConversationSignals(conversationID, caller.Email); err != nil {
		return grpcstatus.Errorf(codes.Internal, "clear signals: %v", err)
	}
	s.publish(bus.KindSignalCleared, bus.Change{
		Emails:         []string{caller.Email},
		ConversationID: conversationID,
	})
	return nil
}
