package store

import "strings"

// Friendship statuses.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// Notification types.
const (
	NotificationFriendRequest  = "friend_request"
	NotificationFriendAccepted = "friend_accepted"
	NotificationMessageRequest = "message_request"
)

// User is a directory profile, keyed by email.
type User struct {
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	FirstName  string `json:"firstName"`
	AvatarURL  string `json:"avatarUrl"`
	LastActive int64  `json:"lastActive"`
}

// DisplayName resolves the name shown for a user, falling back to the
// email when no name is known.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

// Friendship is a directed pending/accepted edge; user1 is always the
// requester.
type Friendship struct {
	ID         int64  `json:"id"`
	User1Email string `json:"user1Email"`
	User2Email string `json:"user2Email"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`
	AcceptedAt int64  `json:"acceptedAt"`
}

// FriendEntry is a friendship joined with the other party's profile.
type FriendEntry struct {
	FriendshipID int64  `json:"friendshipId"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	FirstName    string `json:"firstName"`
	AvatarURL    string `json:"avatarUrl"`
	LastActive   int64  `json:"lastActive"`
	CreatedAt    int64  `json:"createdAt"`
}

// Conversation is the single record for an unordered user pair.
type Conversation struct {
	ID              int64  `json:"id"`
	User1Email      string `json:"user1Email"`
	User2Email      string `json:"user2Email"`
	CreatedAt       int64  `json:"createdAt"`
	LastMessageAt   int64  `json:"lastMessageAt"`
	User1LastReadAt int64  `json:"user1LastReadAt"`
	User2LastReadAt int64  `json:"user2LastReadAt"`
	User1Accepted   bool   `json:"user1Accepted"`
	User2Accepted   bool   `json:"user2Accepted"`
}

// HasParticipant reports whether email is one of the two parties.
func (c *Conversation) HasParticipant(email string) bool {
	return c.User1Email == email || c.User2Email == email
}

// Other returns the counterparty email for a participant.
func (c *Conversation) Other(email string) string {
	if c.User1Email == email {
		return c.User2Email
	}
	return c.User1Email
}

// AcceptedBy reports whether the participant has unlocked full
// visibility of the conversation.
func (c *Conversation) AcceptedBy(email string) bool {
	if c.User1Email == email {
		return c.User1Accepted
	}
	if c.User2Email == email {
		return c.User2Accepted
	}
	return false
}

// LastReadAt returns the participant's read watermark.
func (c *Conversation) LastReadAt(email string) int64 {
	if c.User1Email == email {
		return c.User1LastReadAt
	}
	return c.User2LastReadAt
}

// ConversationSummary is the list projection for the conversations
// sidebar: counterparty display fields, preview text and unread count.
type ConversationSummary struct {
	ID              int64  `json:"id"`
	OtherEmail      string `json:"otherEmail"`
	OtherName       string `json:"otherName"`
	OtherAvatar     string `json:"otherAvatar"`
	OtherLastActive int64  `json:"otherLastActive"`
	LastMessage     string `json:"lastMessage"`
	LastMessageAt   int64  `json:"lastMessageAt"`
	UnreadCount     int    `json:"unreadCount"`
	Accepted        bool   `json:"accepted"`
}

// Message is one entry in a conversation's log. Rows are never removed;
// unsend sets IsDeleted and projections blank the content.
type Message struct {
	ID             int64    `json:"id"`
	ConversationID int64    `json:"conversationId"`
	SenderEmail    string   `json:"senderEmail"`
	Body           string   `json:"body"`
	Images         []string `json:"images,omitempty"`
	CreatedAt      int64    `json:"createdAt"`
	IsEdited       bool     `json:"isEdited"`
	OriginalBody   string   `json:"originalBody,omitempty"`
	IsDeleted      bool     `json:"isDeleted"`
	IsPinned       bool     `json:"isPinned"`
	ReplyToID      int64    `json:"replyToId,omitempty"`
}

// Reaction is one (user, emoji) pair on a message.
type Reaction struct {
	UserEmail string `json:"userEmail"`
	Emoji     string `json:"emoji"`
}

// ReplySnapshot is the resolved preview of a reply target. Nil when the
// target is missing or soft-deleted.
type ReplySnapshot struct {
	ID          int64    `json:"id"`
	Body        string   `json:"body"`
	Images      []string `json:"images,omitempty"`
	SenderEmail string   `json:"senderEmail"`
}

// MessageView is a message enriched for display: reply preview,
// reactions, and whether the counterparty has read it.
type MessageView struct {
	Message
	ReplyTo     *ReplySnapshot `json:"replyTo,omitempty"`
	Reactions   []Reaction     `json:"reactions,omitempty"`
	ReadByOther bool           `json:"readByOther"`
}

// Notification is one feed entry for a recipient, enriched with live
// sender display fields at read time.
type Notification struct {
	ID             int64  `json:"id"`
	RecipientEmail string `json:"recipientEmail"`
	SenderEmail    string `json:"senderEmail"`
	Type           string `json:"type"`
	Message        string `json:"message"`
	Read           bool   `json:"read"`
	FriendshipID   int64  `json:"friendshipId,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
	SenderName     string `json:"senderName"`
	SenderAvatar   string `json:"senderAvatar"`
}

// CallSignal is one store-and-forward envelope in the signaling mailbox.
type CallSignal struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	FromEmail      string `json:"fromEmail"`
	ToEmail        string `json:"toEmail"`
	Type           string `json:"type"`
	Signal         string `json:"signal"`
	CreatedAt      int64  `json:"createdAt"`
}

// PairKey returns the canonical sorted "a|b" key for an unordered email
// pair. Both friendships and conversations are unique on it.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
