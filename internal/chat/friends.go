package chat

import (
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

// SendFriendRequest creates a pending edge toward the target and files
// a friend_request notification for them.
func (s *Service) SendFriendRequest(caller identity.Identity, targetEmail string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if targetEmail == caller.Email {
		return grpcstatus.Error(codes.FailedPrecondition, "cannot friend yourself")
	}
	if targetEmail == "" {
		return grpcstatus.Error(codes.InvalidArgument, "target email required")
	}

	existing, err := s.db.GetFriendshipBetween(caller.Email, targetEmail)
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "get friendship: %v", err)
	}
	if existing != nil {
		if existing.Status == store.FriendshipAccepted {
			return grpcstatus.Error(codes.FailedPrecondition, "already friends")
		}
		return grpcstatus.Error(codes.FailedPrecondition, "request already sent")
	}

	now := s.nowMilli()
	id, err := s.db.InsertFriendship(caller.Email, targetEmail, now)
	if err == store.ErrDuplicatePair {
		// Lost a race to the reverse-direction request.
		return grpcstatus.Error(codes.FailedPrecondition, "request already sent")
	}
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "insert friendship: %v", err)
	}

	if _, err := s.db.InsertNotification(&store.Notification{
		RecipientEmail: targetEmail,
		SenderEmail:    caller.Email,
		Type:           store.NotificationFriendRequest,
		Message:        caller.Name + " sent you a friend request",
		FriendshipID:   id,
		CreatedAt:      now,
	}); err != nil {
		return grpcstatus.Errorf(codes.Internal, "insert notification: %v", err)
	}

	s.publish(bus.KindFriendshipUpdated, bus.Change{Emails: []string{caller.Email, targetEmail}})
	s.publish(bus.KindNotificationCreated, bus.Change{Emails: []string{targetEmail}})
	return nil
}

// AcceptFriendRequest transitions a pending edge to accepted. Only the
// stored recipient may accept.
func (s *Service) AcceptFriendRequest(caller identity.Identity, friendshipID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	f, err := s.loadFriendship(friendshipID)
	if err != nil {
		return err
	}
	if f.User2Email != caller.Email {
		return grpcstatus.Error(codes.PermissionDenied, "not the request recipient")
	}
	if f.Status != store.FriendshipPending {
		return grpcstatus.Error(codes.FailedPrecondition, "request is not pending")
	}

	now := s.nowMilli()
	if err := s.db.AcceptFriendship(friendshipID, now); err != nil {
		return grpcstatus.Errorf(codes.Internal, "accept friendship: %v", err)
	}
	if _, err := s.db.InsertNotification(&store.Notification{
		RecipientEmail: f.User1Email,
		SenderEmail:    caller.Email,
		Type:           store.NotificationFriendAccepted,
		Message:        caller.Name + " accepted your friend request",
		FriendshipID:   friendshipID,
		CreatedAt:      now,
	}); err != nil {
		return grpcstatus.Errorf(codes.Internal, "insert notification: %v", err)
	}

	s.publish(bus.KindFriendshipUpdated, bus.Change{Emails: []string{f.User1Email, f.User2Email}})
	s.publish(bus.KindNotificationCreated, bus.Change{Emails: []string{f.User1Email}})
	return nil
}

// RejectFriendRequest deletes a pending edge outright so a fresh
// request can follow immediately.
func (s *Service) RejectFriendRequest(caller identity.Identity, friendshipID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	f, err := s.loadFriendship(friendshipID)
	if err != nil {
		return err
	}
	if f.User2Email != caller.Email {
		return grpcstatus.Error(codes.PermissionDenied, "not the request recipient")
	}
	if err := s.db.DeleteFriendship(friendshipID); err != nil {
		return grpcstatus.Errorf(codes.Internal, "delete friendship: %v", err)
	}
	s.publish(bus.KindFriendshipUpdated, bus.Change{Emails: []string{f.User1Email, f.User2Email}})
	return nil
}

// RemoveFriend deletes the edge between the caller and another user in
// whichever direction it was stored.
func (s *Service) RemoveFriend(caller identity.Identity, otherEmail string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	f, err := s.db.GetFriendshipBetween(caller.Email, otherEmail)
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "get friendship: %v", err)
	}
	if f == nil {
		return grpcstatus.Error(codes.NotFound, "friendship not found")
	}
	if err := s.db.DeleteFriendship(f.ID); err != nil {
		return grpcstatus.Errorf(codes.Internal, "delete friendship: %v", err)
	}
	s.publish(bus.KindFriendshipUpdated, bus.Change{Emails: []string{caller.Email, otherEmail}})
	return nil
}

// FriendView is a friend-list entry with derived presence.
type FriendView struct {
	store.FriendEntry
	IsOnline bool `json:"isOnline"`
}

// Friends returns the caller's accepted friends.
func (s *Service) Friends(caller identity.Identity) ([]FriendView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	entries, err := s.db.ListFriends(caller.Email)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list friends: %v", err)
	}
	return s.friendViews(entries), nil
}

// PendingRequests returns incoming pending requests.
func (s *Service) PendingRequests(caller identity.Identity) ([]FriendView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	entries, err := s.db.ListPendingRequests(caller.Email)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list pending requests: %v", err)
	}
	return s.friendViews(entries), nil
}

// SentRequests returns outgoing pending requests.
func (s *Service) SentRequests(caller identity.Identity) ([]FriendView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	entries, err := s.db.ListSentRequests(caller.Email)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list sent requests: %v", err)
	}
	return s.friendViews(entries), nil
}

func (s *Service) friendViews(entries []store.FriendEntry) []FriendView {
	views := make([]FriendView, 0, len(entries))
	for _, e := range entries {
		views = append(views, FriendView{FriendEntry: e, IsOnline: s.IsOnline(e.LastActive)})
	}
	return views
}

func (s *Service) loadFriendship(id int64) (*store.Friendship, error) {
	f, err := s.db.GetFriendship(id)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get friendship: %v", err)
	}
	if f == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "friendship %d not found", id)
	}
	return f, nil
}
