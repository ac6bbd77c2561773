package services

import (
	"context"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// PresenceService reconciles stored status with live connections.
//
// The stored status is the user's manual choice and survives reconnects;
// "online" is otherwise derived from having at least one connection.
// "offline" doubles as invisible mode: the user is hidden from online lists
// and others see them as offline while they keep receiving events.
type PresenceService struct {
	users repository.UserRepository
	hub   ws.EventPublisher

	invisible interface{ SetInvisible(userID string, invisible bool) }
}

func NewPresenceService(
	users repository.UserRepository,
	hub ws.EventPublisher,
	invisible interface{ SetInvisible(userID string, invisible bool) },
) *PresenceService {
	return &PresenceService{users: users, hub: hub, invisible: invisible}
}

// SetStatus records a manual presence choice and announces it.
func (s *PresenceService) SetStatus(ctx context.Context, userID string, status models.UserStatus) error {
	if err := s.users.UpdateStatus(ctx, userID, status); err != nil {
		return err
	}
	s.invisible.SetInvisible(userID, status == models.UserStatusOffline)

	// An invisible user looks offline to everyone else.
	s.hub.BroadcastToAllExcept(userID, ws.Event{
		Op:   ws.OpPresence,
		Data: ws.PresenceData{UserID: userID, Status: string(status)},
	})
	s.hub.BroadcastToUser(userID, ws.Event{
		Op:   ws.OpPresence,
		Data: ws.PresenceData{UserID: userID, Status: string(status)},
	})
	return nil
}

// OnFirstConnect announces the user's arrival when their first connection
// lands. A stored "offline" keeps them invisible and silent.
func (s *PresenceService) OnFirstConnect(userID string) {
	user, err := s.users.GetByID(context.Background(), userID)
	if err != nil {
		return
	}
	if user.Status == models.UserStatusOffline {
		s.invisible.SetInvisible(userID, true)
		return
	}
	s.hub.BroadcastToAllExcept(userID, ws.Event{
		Op:   ws.OpPresence,
		Data: ws.PresenceData{UserID: userID, Status: string(user.Status)},
	})
}

// OnLastDisconnect announces the user going offline after their final
// connection drops. Invisible users already looked offline.
func (s *PresenceService) OnLastDisconnect(userID string) {
	s.hub.BroadcastToAllExcept(userID, ws.Event{
		Op:   ws.OpPresence,
		Data: ws.PresenceData{UserID: userID, Status: string(models.UserStatusOffline)},
	})
}
