package chat

import (
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

// UserView is a directory entry with derived presence.
type UserView struct {
	store.User
	IsOnline bool `json:"isOnline"`
}

// StoreUser upserts the caller's profile and refreshes last-active.
// Called on page mount and every couple of minutes while a session is
// open, so it must be idempotent.
func (s *Service) StoreUser(caller identity.Identity) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	u := &store.User{
		Email:     caller.Email,
		FullName:  caller.Name,
		FirstName: firstWord(caller.Name),
		AvatarURL: caller.AvatarURL,
	}
	if err := s.db.UpsertUser(u, s.nowMilli()); err != nil {
		return grpcstatus.Errorf(codes.Internal, "store user: %v", err)
	}
	s.publish(bus.KindUserUpdated, bus.Change{Emails: []string{caller.Email}})
	return nil
}

// SetUserOffline zeroes last-active. Fired on tab close, so a missed
// call just leaves presence to age out of the window.
func (s *Service) SetUserOffline(caller identity.Identity) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if err := s.db.SetLastActive(caller.Email, 0); err != nil {
		return grpcstatus.Errorf(codes.Internal, "set offline: %v", err)
	}
	s.publish(bus.KindUserUpdated, bus.Change{Emails: []string{caller.Email}})
	return nil
}

// SearchUsers matches name and email substrings, excluding the caller.
// Short terms fall back to a wider directory listing.
func (s *Service) SearchUsers(caller identity.Identity, term string) ([]UserView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	limit := 10
	if len(term) < 2 {
		term = ""
		limit = 20
	}
	users, err := s.db.SearchUsers(term, caller.Email, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search users: %v", err)
	}
	return s.withPresence(users), nil
}

// ListUsers returns the whole directory with presence.
func (s *Service) ListUsers(caller identity.Identity) ([]UserView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	users, err := s.db.ListUsers()
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list users: %v", err)
	}
	return s.withPresence(users), nil
}

func (s *Service) withPresence(users []store.User) []UserView {
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, UserView{User: u, IsOnline: s.IsOnline(u.LastActive)})
	}
	return views
}

func firstWord(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == ' ' {
			return name[:i]
		}
	}
	return name
}
