package chat

import (
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/Mayores-04/my-messaging-app/internal/bus"
	"github.com/Mayores-04/my-messaging-app/internal/identity"
	"github.com/Mayores-04/my-messaging-app/internal/store"
)

// Notifications returns the caller's feed, newest first, with sender
// display fields resolved from the directory at read time.
func (s *Service) Notifications(caller identity.Identity) ([]store.Notification, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	feed, err := s.db.ListNotifications(caller.Email)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list notifications: %v", err)
	}
	return feed, nil
}

// UnreadNotificationCount returns the caller's badge count.
func (s *Service) UnreadNotificationCount(caller identity.Identity) (int, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	n, err := s.db.UnreadNotificationCount(caller.Email)
	if err != nil {
		return 0, grpcstatus.Errorf(codes.Internal, "unread count: %v", err)
	}
	return n, nil
}

// MarkNotificationRead marks one feed entry read. Recipient only.
func (s *Service) MarkNotificationRead(caller identity.Identity, notificationID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	n, err := s.loadNotificationFor(caller, notificationID)
	if err != nil {
		return err
	}
	if err := s.db.MarkNotificationRead(notificationID); err != nil {
		return grpcstatus.Errorf(codes.Internal, "mark notification read: %v", err)
	}
	s.publish(bus.KindNotificationUpdated, bus.Change{Emails: []string{n.RecipientEmail}})
	return nil
}

// DeleteNotification removes one feed entry. Recipient only.
func (s *Service) DeleteNotification(caller identity.Identity, notificationID int64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	n, err := s.loadNotificationFor(caller, notificationID)
	if err != nil {
		return err
	}
	if err := s.db.DeleteNotification(notificationID); err != nil {
		return grpcstatus.Errorf(codes.Internal, "delete notification: %v", err)
	}
	s.publish(bus.KindNotificationUpdated, bus.Change{Emails: []string{n.RecipientEmail}})
	return nil
}

func (s *Service) loadNotificationFor(caller identity.Identity, id int64) (*store.Notification, error) {
	n, err := s.db.GetNotification(id)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "get notification: %v", err)
	}
	if n == nil {
		return nil, grpcstatus.Errorf(codes.NotFound, "notification %d not found", id)
	}
	if n.RecipientEmail != caller.Email {
		return nil, grpcstatus.Error(codes.PermissionDenied, "not the notification recipient")
	}
	return n, nil
}
