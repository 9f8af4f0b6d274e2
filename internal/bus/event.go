package bus

import "time"

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the chat service. Live queries subscribe to
// the namespace prefixes ("message.", "friendship.", ...).
const (
	KindUserUpdated         = "user.updated"
	KindFriendshipUpdated   = "friendship.updated"
	KindConversationUpdated = "conversation.updated"
	KindMessageCreated      = "message.created"
	KindMessageUpdated      = "message.updated"
	KindTypingChanged       = "typing.changed"
	KindNotificationCreated = "notification.created"
	KindNotificationUpdated = "notification.updated"
	KindSignalCreated       = "signal.created"
	KindSignalCleared       = "signal.cleared"
)

// Change is the payload carried by chat events. Emails names the users
// whose live queries depend on the changed rows; the gateway uses it to
// route push notifications to the right WebSocket sessions.
type Change struct {
	Emails         []string
	ConversationID int64
	MessageID      int64
}
