package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// FriendshipService manages friend requests and the friends list. Every
// mutation pushes a directed event to both sides so their lists stay in sync.
type FriendshipService struct {
	friends repository.FriendshipRepository
	users   repository.UserRepository
	hub     ws.EventPublisher
}

func NewFriendshipService(
	friends repository.FriendshipRepository,
	users repository.UserRepository,
	hub ws.EventPublisher,
) *FriendshipService {
	return &FriendshipService{friends: friends, users: users, hub: hub}
}

// notifyBoth sends the friendship row to both participants.
func (s *FriendshipService) notifyBoth(f *models.Friendship, op string) {
	event := ws.Event{Op: op, Data: f}
	s.hub.BroadcastToUser(f.UserID, event)
	s.hub.BroadcastToUser(f.FriendID, event)
}

// SendRequest sends a friend request by username. Two users requesting each
// other concurrently collapse to an accepted friendship: the second request
// accepts the first instead of erroring.
func (s *FriendshipService) SendRequest(ctx context.Context, userID string, req *models.SendFriendRequestRequest) (*models.Friendship, error) {
	target, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: user not found", pkg.ErrNotFound)
	}
	if target.ID == userID {
		return nil, fmt.Errorf("%w: cannot friend yourself", pkg.ErrInvalidInput)
	}

	existing, err := s.friends.GetByPair(ctx, userID, target.ID)
	switch {
	case err == nil && existing.Status == models.FriendshipStatusAccepted:
		return nil, fmt.Errorf("%w: already friends", pkg.ErrAlreadyExists)
	case err == nil && existing.UserID == userID:
		return nil, fmt.Errorf("%w: request already sent", pkg.ErrAlreadyExists)
	case err == nil:
		// The target already asked us; treat the mutual request as an accept.
		if err := s.friends.UpdateStatus(ctx, existing.ID, models.FriendshipStatusAccepted); err != nil {
			return nil, err
		}
		existing.Status = models.FriendshipStatusAccepted
		s.notifyBoth(existing, ws.OpFriendRequestAccept)
		return existing, nil
	case !errors.Is(err, pkg.ErrNotFound):
		return nil, err
	}

	friendship := &models.Friendship{
		UserID:   userID,
		FriendID: target.ID,
		Status:   models.FriendshipStatusPending,
	}
	if err := s.friends.Create(ctx, friendship); err != nil {
		return nil, err
	}
	s.notifyBoth(friendship, ws.OpFriendRequestCreate)
	return friendship, nil
}

// Accept accepts an incoming request. Only the target may accept.
func (s *FriendshipService) Accept(ctx context.Context, userID, friendshipID string) error {
	friendship, err := s.friends.GetByID(ctx, friendshipID)
	if err != nil {
		return err
	}
	if friendship.FriendID != userID {
		return fmt.Errorf("%w: only the recipient can accept", pkg.ErrForbidden)
	}
	if friendship.Status != models.FriendshipStatusPending {
		return fmt.Errorf("%w: request is not pending", pkg.ErrWrongState)
	}
	if err := s.friends.UpdateStatus(ctx, friendshipID, models.FriendshipStatusAccepted); err != nil {
		return err
	}
	friendship.Status = models.FriendshipStatusAccepted
	s.notifyBoth(friendship, ws.OpFriendRequestAccept)
	return nil
}

// Decline removes a pending request. The target declines, the sender cancels;
// both delete the row.
func (s *FriendshipService) Decline(ctx context.Context, userID, friendshipID string) error {
	friendship, err := s.friends.GetByID(ctx, friendshipID)
	if err != nil {
		return err
	}
	if friendship.UserID != userID && friendship.FriendID != userID {
		return fmt.Errorf("%w: not your request", pkg.ErrForbidden)
	}
	if friendship.Status != models.FriendshipStatusPending {
		return fmt.Errorf("%w: request is not pending", pkg.ErrWrongState)
	}
	if err := s.friends.Delete(ctx, friendshipID); err != nil {
		return err
	}
	s.notifyBoth(friendship, ws.OpFriendRequestDecline)
	return nil
}

// Remove unfriends. Either side may remove an accepted friendship.
func (s *FriendshipService) Remove(ctx context.Context, userID, friendshipID string) error {
	friendship, err := s.friends.GetByID(ctx, friendshipID)
	if err != nil {
		return err
	}
	if friendship.UserID != userID && friendship.FriendID != userID {
		return fmt.Errorf("%w: not your friendship", pkg.ErrForbidden)
	}
	if err := s.friends.Delete(ctx, friendshipID); err != nil {
		return err
	}
	s.notifyBoth(friendship, ws.OpFriendRemove)
	return nil
}

// ListFriends returns accepted friendships with peer profiles.
func (s *FriendshipService) ListFriends(ctx context.Context, userID string) ([]models.FriendshipWithUser, error) {
	friends, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if friends == nil {
		friends = []models.FriendshipWithUser{}
	}
	return friends, nil
}

// ListPending returns pending requests in both directions.
func (s *FriendshipService) ListPending(ctx context.Context, userID string) ([]models.FriendshipWithUser, error) {
	pending, err := s.friends.ListPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []models.FriendshipWithUser{}
	}
	return pending, nil
}
