// Package chat implements the messaging operations on top of the store:
// directory and presence, friendships, conversations, the message log,
// typing, notifications, and the call-signaling mailbox. Every mutation
// publishes a bus event so live queries re-run.
package chat

import (
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

const (
	// PresenceWindow bounds how old a last-active ping may be for a
	// user to still count as online.
	PresenceWindow = 5 * time.Minute

	// TypingFreshness is the read-side staleness bound on typing
	// indicators. Writers clear on a 2s idle timer; readers tolerate
	// up to one extra second of lag instead of running a cleanup job.
	TypingFreshness = 3 * time.Second

	// DefaultPageSize is the message page size.
	DefaultPageSize = 20

	// MaxConversations caps the conversation list projection.
	MaxConversations = 50
)

// Service executes chat operations for authenticated callers.
type Service struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger

	// now is replaceable in tests.
	now func() time.Time
}

func NewService(db *store.DB, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{db: db, bus: b, logger: logger.Named("chat"), now: time.Now}
}

func (s *Service) nowMilli() int64 {
	return s.now().UnixMilli()
}

func (s *Service) publish(kind string, change bus.Change) {
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: s.now(), Payload: change})
}

// requireCaller guards every operation. The gateway verifies the token;
// this catches a zero identity slipping through an internal caller.
func requireCaller(caller identity.Identity) error {
	if caller.Email == "" {
		return grpcstatus.Error(codes.Unauthenticated, "no identity")
	}
	return nil
}

// loadConversationFor fetches a conversation and checks the caller is a
// participant.
func (s *Service) loadConversationFor(caller identity.Identity, conversationID int64) (*store.Conversation, error) {
	conv, err := s.db.GetConversation(conversationID)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get conversation: %v", err)
	}
	if conv == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "conversation %d not found", conversationID)
	}
	if !conv.HasParticipant(caller.Email) {
		return nil, grpcstatus.Error(codes.PermissionDenied, "not a participant")
	}
	return conv, nil
}

// IsOnline derives presence from the last-active timestamp. Zero means
// explicitly offline.
func (s *Service) IsOnline(lastActive int64) bool {
	return lastActive != 0 && s.nowMilli()-lastActive < PresenceWindow.Milliseconds()
}
