package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// FriendshipRepository stores directional friendship rows with symmetric
// semantics once accepted. Pair lookups try both orientations.
type FriendshipRepository interface {
	Create(ctx context.Context, f *models.Friendship) error
	GetByID(ctx context.Context, id string) (*models.Friendship, error)
	// GetByPair finds the row for two users regardless of who sent it.
	GetByPair(ctx context.Context, userA, userB string) (*models.Friendship, error)
	UpdateStatus(ctx context.Context, id string, status models.FriendshipStatus) error
	Delete(ctx context.Context, id string) error

	// ListFriends returns accepted friendships with the peer profile.
	ListFriends(ctx context.Context, userID string) ([]models.FriendshipWithUser, error)
	// ListPending returns pending requests in both directions, Incoming set
	// for rows where the user is the target.
	ListPending(ctx context.Context, userID string) ([]models.FriendshipWithUser, error)
}
