package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/ws"
)

type friendFixture struct {
	svc     *FriendshipService
	hub     *fakeHub
	friends *fakeFriendshipRepo
	users   *fakeUserRepo

	alice *models.User
	bob   *models.User
}

func newFriendFixture(t *testing.T) *friendFixture {
	t.Helper()

	f := &friendFixture{
		hub:     newFakeHub(),
		friends: newFakeFriendshipRepo(),
		users:   newFakeUserRepo(),
	}
	f.svc = NewFriendshipService(f.friends, f.users, f.hub)
	f.alice = f.users.add(&models.User{Username: "alice"})
	f.bob = f.users.add(&models.User{Username: "bob"})
	return f
}

func TestFriendRequestCreatesPendingRow(t *testing.T) {
	f := newFriendFixture(t)

	friendship, err := f.svc.SendRequest(context.Background(), f.alice.ID,
		&models.SendFriendRequestRequest{Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusPending, friendship.Status)
	assert.Equal(t, f.alice.ID, friendship.UserID)
	assert.Equal(t, f.bob.ID, friendship.FriendID)

	events := f.hub.eventsWithOp(ws.OpFriendRequestCreate)
	require.Len(t, events, 2)
	targets := []string{events[0].target, events[1].target}
	assert.ElementsMatch(t, []string{f.alice.ID, f.bob.ID}, targets)
}

func TestFriendRequestUnknownUser(t *testing.T) {
	f := newFriendFixture(t)

	_, err := f.svc.SendRequest(context.Background(), f.alice.ID,
		&models.SendFriendRequestRequest{Username: "nobody"})
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestFriendRequestSelf(t *testing.T) {
	f := newFriendFixture(t)

	_, err := f.svc.SendRequest(context.Background(), f.alice.ID,
		&models.SendFriendRequestRequest{Username: "alice"})
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)
}

func TestFriendRequestDuplicate(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendRequest(ctx, f.alice.ID, &models.SendFriendRequestRequest{Username: "bob"})
	require.NoError(t, err)

	_, err = f.svc.SendRequest(ctx, f.alice.ID, &models.SendFriendRequestRequest{Username: "bob"})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
}

func TestFriendRequestMutualAutoAccepts(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendRequest(ctx, f.alice.ID, &models.SendFriendRequestRequest{Username: "bob"})
	require.NoError(t, err)
	f.hub.reset()

	// Bob asking back collapses to an accepted friendship.
	friendship, err := f.svc.SendRequest(ctx, f.bob.ID, &models.SendFriendRequestRequest{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusAccepted, friendship.Status)

	assert.Len(t, f.hub.eventsWithOp(ws.OpFriendRequestAccept), 2)
	assert.Empty(t, f.hub.eventsWithOp(ws.OpFriendRequestCreate))
}

func TestFriendRequestAlreadyFriends(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	require.NoError(t, f.friends.Create(ctx, &models.Friendship{
		UserID:   f.alice.ID,
		FriendID: f.bob.ID,
		Status:   models.FriendshipStatusAccepted,
	}))

	_, err := f.svc.SendRequest(ctx, f.bob.ID, &models.SendFriendRequestRequest{Username: "alice"})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
}

func TestFriendAcceptOnlyRecipient(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	friendship, err := f.svc.SendRequest(ctx, f.alice.ID, &models.SendFriendRequestRequest{Username: "bob"})
	require.NoError(t, err)

	err = f.svc.Accept(ctx, f.alice.ID, friendship.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	require.NoError(t, f.svc.Accept(ctx, f.bob.ID, friendship.ID))

	stored, err := f.friends.GetByID(ctx, friendship.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusAccepted, stored.Status)
}

func TestFriendAcceptNonPendingWrongState(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	friendship, err := f.svc.SendRequest(ctx, f.alice.ID, &models.SendFriendRequestRequest{Username: "bob"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Accept(ctx, f.bob.ID, friendship.ID))

	err = f.svc.Accept(ctx, f.bob.ID, friendship.ID)
	assert.ErrorIs(t, err, pkg.ErrWrongState)
}

func TestFriendDeclineDeletesRow(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	friendship, err := f.svc.SendRequest(ctx, f.alice.ID, &models.SendFriendRequestRequest{Username: "bob"})
	require.NoError(t, err)
	f.hub.reset()

	require.NoError(t, f.svc.Decline(ctx, f.bob.ID, friendship.ID))
	assert.Len(t, f.hub.eventsWithOp(ws.OpFriendRequestDecline), 2)

	_, err = f.friends.GetByID(ctx, friendship.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestFriendDeclineByOutsiderForbidden(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	friendship, err := f.svc.SendRequest(ctx, f.alice.ID, &models.SendFriendRequestRequest{Username: "bob"})
	require.NoError(t, err)

	err = f.svc.Decline(ctx, "stranger", friendship.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestFriendRemoveEitherSide(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	friendship, err := f.svc.SendRequest(ctx, f.alice.ID, &models.SendFriendRequestRequest{Username: "bob"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Accept(ctx, f.bob.ID, friendship.ID))
	f.hub.reset()

	require.NoError(t, f.svc.Remove(ctx, f.alice.ID, friendship.ID))
	assert.Len(t, f.hub.eventsWithOp(ws.OpFriendRemove), 2)

	_, err = f.friends.GetByID(ctx, friendship.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}
