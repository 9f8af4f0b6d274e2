package call

import (
	"context"

	"github.com/Mayores-04/my-messaging-app/internal/chat"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
)

// ServiceSignaler runs a Machine against the daemon's signaling
// mailbox, bound to one caller and one conversation.
type ServiceSignaler struct {
	svc            *chat.Service
	caller         identity.Identity
	conversationID int64
}

var _ Signaler = (*ServiceSignaler)(nil)

func NewServiceSignaler(svc *chat.Service, caller identity.Identity, conversationID int64) *ServiceSignaler {
	return &ServiceSignaler{svc: svc, caller: caller, conversationID: conversationID}
}

func (s *ServiceSignaler) Send(_ context.Context, signalType, payload string) error {
	_, err := s.svc.SendSignal(s.caller, s.conversationID, signalType, payload)
	return err
}

func (s *ServiceSignaler) Pending(_ context.Context) ([]Envelope, error) {
	signals, err := s.svc.PendingSignals(s.caller, s.conversationID)
	if err != nil {
		return nil, err
	}
	batch := make([]Envelope, 0, len(signals))
	for _, sig := range signals {
		batch = append(batch, Envelope{
			ID:      sig.ID,
			From:    sig.FromEmail,
			Type:    sig.Type,
			Payload: sig.Signal,
		})
	}
	return batch, nil
}

func (s *ServiceSignaler) Clear(_ context.Context, id int64) error {
	return s.svc.ClearSignal(s.caller, id)
}

func (s *ServiceSignaler) ClearConversation(_ context.Context) error {
	return s.svc.ClearConversationSignals(s.caller, s.conversationID)
}
