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

// callFixture wires a P2PCallService with two online friends.
type callFixture struct {
	svc     *P2PCallService
	hub     *fakeHub
	friends *fakeFriendshipRepo
	users   *fakeUserRepo

	caller   *models.User
	receiver *models.User
}

func newCallFixture(t *testing.T) *callFixture {
	t.Helper()

	f := &callFixture{
		hub:     newFakeHub(),
		friends: newFakeFriendshipRepo(),
		users:   newFakeUserRepo(),
	}
	f.svc = NewP2PCallService(f.friends, f.users, f.hub)

	f.caller = f.users.add(&models.User{Username: "caller"})
	f.receiver = f.users.add(&models.User{Username: "receiver"})
	require.NoError(t, f.friends.Create(context.Background(), &models.Friendship{
		UserID:   f.caller.ID,
		FriendID: f.receiver.ID,
		Status:   models.FriendshipStatusAccepted,
	}))
	f.hub.setOnline(f.caller.ID, true)
	f.hub.setOnline(f.receiver.ID, true)
	return f
}

// ring initiates a call and returns its id from the broadcast payload.
func (f *callFixture) ring(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.svc.Initiate(context.Background(), f.caller.ID,
		&models.InitiateCallRequest{ReceiverID: f.receiver.ID, Type: models.CallTypeVoice}))

	events := f.hub.eventsWithOp(ws.OpP2PCallInitiate)
	require.NotEmpty(t, events)
	payload, ok := events[len(events)-1].event.Data.(*models.P2PCallBroadcast)
	require.True(t, ok)
	return payload.ID
}

func TestCallInitiateRingsBothSides(t *testing.T) {
	f := newCallFixture(t)

	callID := f.ring(t)
	assert.NotEmpty(t, callID)

	events := f.hub.eventsWithOp(ws.OpP2PCallInitiate)
	require.Len(t, events, 2)
	targets := []string{events[0].target, events[1].target}
	assert.ElementsMatch(t, []string{f.caller.ID, f.receiver.ID}, targets)

	payload := events[0].event.Data.(*models.P2PCallBroadcast)
	assert.Equal(t, models.CallStateRinging, payload.State)
	assert.Equal(t, "caller", payload.CallerUsername)
	assert.Equal(t, "receiver", payload.ReceiverUsername)
}

func TestCallInitiateRejectsSelf(t *testing.T) {
	f := newCallFixture(t)

	err := f.svc.Initiate(context.Background(), f.caller.ID,
		&models.InitiateCallRequest{ReceiverID: f.caller.ID, Type: models.CallTypeVoice})
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)
}

func TestCallInitiateRequiresFriendship(t *testing.T) {
	f := newCallFixture(t)

	stranger := f.users.add(&models.User{Username: "stranger"})
	f.hub.setOnline(stranger.ID, true)

	err := f.svc.Initiate(context.Background(), f.caller.ID,
		&models.InitiateCallRequest{ReceiverID: stranger.ID, Type: models.CallTypeVoice})
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestCallInitiateRequiresOnlineReceiver(t *testing.T) {
	f := newCallFixture(t)
	f.hub.setOnline(f.receiver.ID, false)

	err := f.svc.Initiate(context.Background(), f.caller.ID,
		&models.InitiateCallRequest{ReceiverID: f.receiver.ID, Type: models.CallTypeVoice})
	assert.ErrorIs(t, err, pkg.ErrWrongState)
}

func TestCallInitiateBusyReceiver(t *testing.T) {
	f := newCallFixture(t)
	ctx := context.Background()

	f.ring(t)

	// A third friend calls the already-ringing receiver.
	third := f.users.add(&models.User{Username: "third"})
	f.hub.setOnline(third.ID, true)
	require.NoError(t, f.friends.Create(ctx, &models.Friendship{
		UserID:   third.ID,
		FriendID: f.receiver.ID,
		Status:   models.FriendshipStatusAccepted,
	}))

	require.NoError(t, f.svc.Initiate(ctx, third.ID,
		&models.InitiateCallRequest{ReceiverID: f.receiver.ID, Type: models.CallTypeVoice}))

	busy := f.hub.eventsWithOp(ws.OpP2PCallBusy)
	require.Len(t, busy, 1)
	assert.Equal(t, third.ID, busy[0].target)
}

func TestCallInitiateWhileInCallIsBusyError(t *testing.T) {
	f := newCallFixture(t)
	ctx := context.Background()

	f.ring(t)

	third := f.users.add(&models.User{Username: "third"})
	f.hub.setOnline(third.ID, true)
	require.NoError(t, f.friends.Create(ctx, &models.Friendship{
		UserID:   f.caller.ID,
		FriendID: third.ID,
		Status:   models.FriendshipStatusAccepted,
	}))

	err := f.svc.Initiate(ctx, f.caller.ID,
		&models.InitiateCallRequest{ReceiverID: third.ID, Type: models.CallTypeVoice})
	assert.ErrorIs(t, err, pkg.ErrBusy)
}

func TestCallAcceptOnlyReceiver(t *testing.T) {
	f := newCallFixture(t)
	callID := f.ring(t)

	err := f.svc.Accept(context.Background(), f.caller.ID, callID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	require.NoError(t, f.svc.Accept(context.Background(), f.receiver.ID, callID))

	accepts := f.hub.eventsWithOp(ws.OpP2PCallAccept)
	require.Len(t, accepts, 2)
	payload := accepts[0].event.Data.(*models.P2PCallBroadcast)
	assert.Equal(t, models.CallStateAccepted, payload.State)
	assert.NotNil(t, payload.AcceptedAt)
}

func TestCallAcceptTwiceWrongState(t *testing.T) {
	f := newCallFixture(t)
	callID := f.ring(t)

	require.NoError(t, f.svc.Accept(context.Background(), f.receiver.ID, callID))
	err := f.svc.Accept(context.Background(), f.receiver.ID, callID)
	assert.ErrorIs(t, err, pkg.ErrWrongState)
}

func TestCallDeclineByEitherSide(t *testing.T) {
	f := newCallFixture(t)
	callID := f.ring(t)

	// The caller declining is a cancel.
	require.NoError(t, f.svc.Decline(context.Background(), f.caller.ID, callID))

	declines := f.hub.eventsWithOp(ws.OpP2PCallDecline)
	require.Len(t, declines, 2)
	ref := declines[0].event.Data.(ws.P2PCallRefData)
	assert.Equal(t, callID, ref.CallID)

	// The registry slot is free again.
	err := f.svc.Accept(context.Background(), f.receiver.ID, callID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestCallEndAfterAccept(t *testing.T) {
	f := newCallFixture(t)
	callID := f.ring(t)
	require.NoError(t, f.svc.Accept(context.Background(), f.receiver.ID, callID))

	require.NoError(t, f.svc.End(context.Background(), f.receiver.ID, callID))

	ends := f.hub.eventsWithOp(ws.OpP2PCallEnd)
	require.Len(t, ends, 2)
	targets := []string{ends[0].target, ends[1].target}
	assert.ElementsMatch(t, []string{f.caller.ID, f.receiver.ID}, targets)
}

func TestCallSignalRelaysToPeerOnly(t *testing.T) {
	f := newCallFixture(t)
	callID := f.ring(t)
	f.hub.reset()

	require.NoError(t, f.svc.Signal(context.Background(), f.caller.ID, &models.P2PSignalPayload{
		CallID: callID,
		Type:   "offer",
	}))

	signals := f.hub.eventsWithOp(ws.OpP2PSignal)
	require.Len(t, signals, 1)
	assert.Equal(t, f.receiver.ID, signals[0].target)
}

func TestCallSignalRejectsOutsiders(t *testing.T) {
	f := newCallFixture(t)
	callID := f.ring(t)

	err := f.svc.Signal(context.Background(), "stranger", &models.P2PSignalPayload{
		CallID: callID,
		Type:   "offer",
	})
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestCallHandleDisconnectEndsAndNotifiesPeer(t *testing.T) {
	f := newCallFixture(t)
	callID := f.ring(t)
	require.NoError(t, f.svc.Accept(context.Background(), f.receiver.ID, callID))
	f.hub.reset()

	f.svc.HandleDisconnect(f.caller.ID)

	ends := f.hub.eventsWithOp(ws.OpP2PCallEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, f.receiver.ID, ends[0].target)

	// Both slots are free for a fresh call.
	require.NoError(t, f.svc.Initiate(context.Background(), f.caller.ID,
		&models.InitiateCallRequest{ReceiverID: f.receiver.ID, Type: models.CallTypeVoice}))
}

func TestCallHandleDisconnectWithoutCallIsNoop(t *testing.T) {
	f := newCallFixture(t)

	f.svc.HandleDisconnect(f.caller.ID)
	assert.Empty(t, f.hub.eventsWithOp(ws.OpP2PCallEnd))
}
