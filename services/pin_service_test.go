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

// pinFixture layers a PinService over the real permission engine; the owner
// holds ManageMessages, the plain member does not.
type pinFixture struct {
	*permFixture

	svc      *PinService
	pins     *fakePinRepo
	messages *fakeMessageRepo
}

func newPinFixture(t *testing.T, maxPins int) *pinFixture {
	t.Helper()

	f := &pinFixture{
		permFixture: newPermFixture(t),
		pins:        newFakePinRepo(),
		messages:    newFakeMessageRepo(),
	}
	f.svc = NewPinService(f.pins, f.messages, f.permFixture.svc, f.hub, maxPins)
	return f
}

func (f *pinFixture) message(t *testing.T, channelID string) *models.Message {
	t.Helper()
	m := &models.Message{ChannelID: channelID, UserID: f.ownerID}
	require.NoError(t, f.messages.Create(context.Background(), m))
	return m
}

func TestPinRequiresManageMessages(t *testing.T) {
	f := newPinFixture(t, 50)
	msg := f.message(t, f.channel.ID)

	err := f.svc.Pin(context.Background(), f.channel.ID, msg.ID, f.memberID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestPinAndUnpinBroadcast(t *testing.T) {
	f := newPinFixture(t, 50)
	ctx := context.Background()
	msg := f.message(t, f.channel.ID)

	require.NoError(t, f.svc.Pin(ctx, f.channel.ID, msg.ID, f.ownerID))

	pinned, err := f.pins.IsPinned(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, pinned)

	events := f.hub.eventsWithOp(ws.OpMessagePin)
	require.Len(t, events, 1)
	assert.Equal(t, "channel", events[0].scope)
	data := events[0].event.Data.(map[string]string)
	assert.Equal(t, msg.ID, data["message_id"])
	assert.Equal(t, f.channel.ID, data["channel_id"])

	require.NoError(t, f.svc.Unpin(ctx, f.channel.ID, msg.ID, f.ownerID))
	pinned, err = f.pins.IsPinned(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, pinned)
	assert.Len(t, f.hub.eventsWithOp(ws.OpMessageUnpin), 1)
}

func TestPinCapEnforced(t *testing.T) {
	f := newPinFixture(t, 1)
	ctx := context.Background()

	first := f.message(t, f.channel.ID)
	second := f.message(t, f.channel.ID)

	require.NoError(t, f.svc.Pin(ctx, f.channel.ID, first.ID, f.ownerID))
	err := f.svc.Pin(ctx, f.channel.ID, second.ID, f.ownerID)
	assert.ErrorIs(t, err, pkg.ErrCapacityExceeded)
}

func TestPinRejectsForeignMessage(t *testing.T) {
	f := newPinFixture(t, 50)

	other := f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "other",
		Type:     models.ChannelTypeText,
	})
	foreign := f.message(t, other.ID)

	err := f.svc.Pin(context.Background(), f.channel.ID, foreign.ID, f.ownerID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}
