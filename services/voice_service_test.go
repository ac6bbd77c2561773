package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/config"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/sfu"
	"github.com/chorushq/chorus/ws"
)

// voiceFixture wires a VoiceService over fakes: one server with a voice
// channel and two users who may connect and speak.
type voiceFixture struct {
	svc      *VoiceService
	hub      *fakeHub
	perms    *fakePermResolver
	channels *fakeChannelRepo
	users    *fakeUserRepo

	server  *models.Server
	channel *models.Channel
	alice   *models.User
	bob     *models.User
}

const voiceMemberMask = models.PermViewChannel | models.PermConnectVoice | models.PermSpeak

func newVoiceFixture(t *testing.T) *voiceFixture {
	t.Helper()

	f := &voiceFixture{
		hub:      newFakeHub(),
		perms:    newFakePermResolver(),
		channels: newFakeChannelRepo(),
		users:    newFakeUserRepo(),
	}

	cfg := config.SFUConfig{
		URL:         "ws://127.0.0.1:1",
		APIKey:      "testkey",
		APISecret:   "testsecret-testsecret-testsecret",
		MintTimeout: time.Second,
	}
	f.svc = NewVoiceService(
		f.perms, f.channels, f.users, newFakeSFUInstanceRepo(), sfu.NewAdmin(), cfg, f.hub)

	f.server = &models.Server{ID: "srv-1", Name: "general", OwnerID: "owner"}
	f.channel = f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "voice-lounge",
		Type:     models.ChannelTypeVoice,
	})
	f.alice = f.users.add(&models.User{Username: "alice"})
	f.bob = f.users.add(&models.User{Username: "bob"})
	f.perms.grantChannel(f.alice.ID, f.channel.ID, voiceMemberMask)
	f.perms.grantChannel(f.bob.ID, f.channel.ID, voiceMemberMask)
	return f
}

func (f *voiceFixture) join(t *testing.T, userID string) *models.VoiceTokenResponse {
	t.Helper()
	resp, err := f.svc.Join(context.Background(), userID, f.channel.ID)
	require.NoError(t, err)
	return resp
}

func TestVoiceJoinMintsTokenAndBroadcasts(t *testing.T) {
	f := newVoiceFixture(t)

	resp := f.join(t, f.alice.ID)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, f.channel.ID, resp.ChannelID)
	assert.Equal(t, "ws://127.0.0.1:1", resp.URL)

	events := f.hub.eventsWithOp(ws.OpVoiceStateUpdate)
	require.Len(t, events, 1)
	assert.Equal(t, "server", events[0].scope)
	assert.Equal(t, f.server.ID, events[0].target)

	payload, ok := events[0].event.Data.(models.VoiceStatePayload)
	require.True(t, ok)
	assert.Equal(t, models.VoiceActionJoin, payload.Action)
	assert.Equal(t, f.alice.ID, payload.UserID)
	assert.Equal(t, "alice", payload.Username)

	assert.Equal(t, 1, f.svc.ChannelParticipantCount(f.channel.ID))
}

func TestVoiceJoinRejectsTextChannel(t *testing.T) {
	f := newVoiceFixture(t)

	text := f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "chat",
		Type:     models.ChannelTypeText,
	})
	f.perms.grantChannel(f.alice.ID, text.ID, voiceMemberMask)

	_, err := f.svc.Join(context.Background(), f.alice.ID, text.ID)
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)
}

func TestVoiceJoinRequiresConnectPermission(t *testing.T) {
	f := newVoiceFixture(t)

	f.perms.grantChannel(f.alice.ID, f.channel.ID, models.PermViewChannel)

	_, err := f.svc.Join(context.Background(), f.alice.ID, f.channel.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestVoiceJoinEnforcesUserLimit(t *testing.T) {
	f := newVoiceFixture(t)
	f.channel.UserLimit = 1
	_ = f.channels.Update(context.Background(), f.channel)

	f.join(t, f.alice.ID)

	_, err := f.svc.Join(context.Background(), f.bob.ID, f.channel.ID)
	assert.ErrorIs(t, err, pkg.ErrCapacityExceeded)

	// A moderator with MoveMembers bypasses the cap.
	f.perms.grantChannel(f.bob.ID, f.channel.ID, voiceMemberMask|models.PermMoveMembers)
	_, err = f.svc.Join(context.Background(), f.bob.ID, f.channel.ID)
	assert.NoError(t, err)
}

func TestVoiceJoinSameChannelIsNoop(t *testing.T) {
	f := newVoiceFixture(t)
	f.channel.UserLimit = 1
	_ = f.channels.Update(context.Background(), f.channel)

	f.join(t, f.alice.ID)
	f.hub.reset()

	// Rejoining the occupied channel must not trip the capacity gate on the
	// user's own slot, must not broadcast, and still hands back dial info.
	resp, err := f.svc.Join(context.Background(), f.alice.ID, f.channel.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, f.channel.ID, resp.ChannelID)

	assert.Empty(t, f.hub.eventsWithOp(ws.OpVoiceStateUpdate))
	assert.Equal(t, 1, f.svc.ChannelParticipantCount(f.channel.ID))
}

func TestVoiceJoinLeavesPreviousChannel(t *testing.T) {
	f := newVoiceFixture(t)

	second := f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "voice-2",
		Type:     models.ChannelTypeVoice,
	})
	f.perms.grantChannel(f.alice.ID, second.ID, voiceMemberMask)

	f.join(t, f.alice.ID)
	f.hub.reset()

	_, err := f.svc.Join(context.Background(), f.alice.ID, second.ID)
	require.NoError(t, err)

	events := f.hub.eventsWithOp(ws.OpVoiceStateUpdate)
	require.Len(t, events, 2)
	leave := events[0].event.Data.(models.VoiceStatePayload)
	join := events[1].event.Data.(models.VoiceStatePayload)
	assert.Equal(t, models.VoiceActionLeave, leave.Action)
	assert.Equal(t, f.channel.ID, leave.ChannelID)
	assert.Equal(t, models.VoiceActionJoin, join.Action)
	assert.Equal(t, second.ID, join.ChannelID)

	assert.Equal(t, 0, f.svc.ChannelParticipantCount(f.channel.ID))
	assert.Equal(t, 1, f.svc.ChannelParticipantCount(second.ID))
}

func TestVoiceLeaveWhenAbsentIsNoop(t *testing.T) {
	f := newVoiceFixture(t)

	f.svc.Leave(context.Background(), f.alice.ID)
	assert.Empty(t, f.hub.eventsWithOp(ws.OpVoiceStateUpdate))
}

func TestVoiceUpdateStateRequiresPresence(t *testing.T) {
	f := newVoiceFixture(t)

	muted := true
	err := f.svc.UpdateState(context.Background(), f.alice.ID, &models.VoiceStateUpdateRequest{IsMuted: &muted})
	assert.ErrorIs(t, err, pkg.ErrWrongState)
}

func TestVoiceUpdateStatePartial(t *testing.T) {
	f := newVoiceFixture(t)
	f.join(t, f.alice.ID)
	f.hub.reset()

	muted := true
	require.NoError(t, f.svc.UpdateState(context.Background(), f.alice.ID,
		&models.VoiceStateUpdateRequest{IsMuted: &muted}))

	events := f.hub.eventsWithOp(ws.OpVoiceStateUpdate)
	require.Len(t, events, 1)
	payload := events[0].event.Data.(models.VoiceStatePayload)
	assert.Equal(t, models.VoiceActionUpdate, payload.Action)
	assert.True(t, payload.IsMuted)
	assert.False(t, payload.IsDeafened)
}

func TestVoiceStreamCapPerChannel(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	carol := f.users.add(&models.User{Username: "carol"})
	f.perms.grantChannel(carol.ID, f.channel.ID, voiceMemberMask)

	on := true
	for _, u := range []*models.User{f.alice, f.bob} {
		f.join(t, u.ID)
		require.NoError(t, f.svc.UpdateState(ctx, u.ID, &models.VoiceStateUpdateRequest{IsStreaming: &on}))
	}

	f.join(t, carol.ID)
	err := f.svc.UpdateState(ctx, carol.ID, &models.VoiceStateUpdateRequest{IsStreaming: &on})
	assert.ErrorIs(t, err, pkg.ErrCapacityExceeded)

	// Stopping one stream frees a slot.
	off := false
	require.NoError(t, f.svc.UpdateState(ctx, f.alice.ID, &models.VoiceStateUpdateRequest{IsStreaming: &off}))
	assert.NoError(t, f.svc.UpdateState(ctx, carol.ID, &models.VoiceStateUpdateRequest{IsStreaming: &on}))
}

func TestVoiceAdminUpdateNeedsMuteMembers(t *testing.T) {
	f := newVoiceFixture(t)
	f.join(t, f.alice.ID)

	muted := true
	err := f.svc.AdminUpdateState(context.Background(), f.bob.ID, &models.VoiceAdminStateRequest{
		TargetUserID:  f.alice.ID,
		IsServerMuted: &muted,
	})
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	f.perms.grantChannel(f.bob.ID, f.channel.ID, voiceMemberMask|models.PermMuteMembers)
	require.NoError(t, f.svc.AdminUpdateState(context.Background(), f.bob.ID, &models.VoiceAdminStateRequest{
		TargetUserID:  f.alice.ID,
		IsServerMuted: &muted,
	}))

	states := f.svc.SyncFor(context.Background(), f.bob.ID)
	require.Len(t, states, 1)
	assert.True(t, states[0].IsServerMuted)
}

func TestVoiceAdminDeafenNeedsDeafenMembers(t *testing.T) {
	f := newVoiceFixture(t)
	f.join(t, f.alice.ID)

	deafened := true
	// MuteMembers alone does not cover server-deafen.
	f.perms.grantChannel(f.bob.ID, f.channel.ID, voiceMemberMask|models.PermMuteMembers)
	err := f.svc.AdminUpdateState(context.Background(), f.bob.ID, &models.VoiceAdminStateRequest{
		TargetUserID:     f.alice.ID,
		IsServerDeafened: &deafened,
	})
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	f.perms.grantChannel(f.bob.ID, f.channel.ID,
		voiceMemberMask|models.PermMuteMembers|models.PermDeafenMembers)
	require.NoError(t, f.svc.AdminUpdateState(context.Background(), f.bob.ID, &models.VoiceAdminStateRequest{
		TargetUserID:     f.alice.ID,
		IsServerDeafened: &deafened,
	}))

	states := f.svc.SyncFor(context.Background(), f.bob.ID)
	require.Len(t, states, 1)
	assert.True(t, states[0].IsServerDeafened)
}

func TestVoiceMoveUserCrossChannel(t *testing.T) {
	f := newVoiceFixture(t)
	ctx := context.Background()

	dst := f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "voice-2",
		Type:     models.ChannelTypeVoice,
	})
	mod := f.users.add(&models.User{Username: "mod"})
	f.perms.grantChannel(mod.ID, f.channel.ID, voiceMemberMask|models.PermMoveMembers)
	f.perms.grantChannel(mod.ID, dst.ID, voiceMemberMask|models.PermMoveMembers)
	f.perms.grantChannel(f.alice.ID, dst.ID, voiceMemberMask)

	f.join(t, f.alice.ID)
	f.hub.reset()

	require.NoError(t, f.svc.MoveUser(ctx, mod.ID, &models.VoiceMoveRequest{
		TargetUserID: f.alice.ID,
		ChannelID:    dst.ID,
	}))

	forceMoves := f.hub.eventsWithOp(ws.OpVoiceForceMove)
	require.Len(t, forceMoves, 1)
	assert.Equal(t, "user", forceMoves[0].scope)
	assert.Equal(t, f.alice.ID, forceMoves[0].target)
	ref := forceMoves[0].event.Data.(models.VoiceTokenRequest)
	assert.Equal(t, dst.ID, ref.ChannelID)

	assert.Equal(t, 1, f.svc.ChannelParticipantCount(dst.ID))
	assert.Equal(t, 0, f.svc.ChannelParticipantCount(f.channel.ID))
}

func TestVoiceMoveUserRejectsCrossServer(t *testing.T) {
	f := newVoiceFixture(t)

	foreign := f.channels.add(&models.Channel{
		ServerID: "other-server",
		Name:     "elsewhere",
		Type:     models.ChannelTypeVoice,
	})
	mod := f.users.add(&models.User{Username: "mod"})
	f.perms.grantChannel(mod.ID, f.channel.ID, voiceMemberMask|models.PermMoveMembers)
	f.perms.grantChannel(mod.ID, foreign.ID, voiceMemberMask|models.PermMoveMembers)

	f.join(t, f.alice.ID)

	err := f.svc.MoveUser(context.Background(), mod.ID, &models.VoiceMoveRequest{
		TargetUserID: f.alice.ID,
		ChannelID:    foreign.ID,
	})
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)
}

func TestVoiceDisconnectUser(t *testing.T) {
	f := newVoiceFixture(t)

	mod := f.users.add(&models.User{Username: "mod"})
	f.perms.grantChannel(mod.ID, f.channel.ID, voiceMemberMask|models.PermMoveMembers)

	f.join(t, f.alice.ID)
	f.hub.reset()

	require.NoError(t, f.svc.DisconnectUser(context.Background(), mod.ID,
		&models.VoiceDisconnectRequest{TargetUserID: f.alice.ID}))

	forced := f.hub.eventsWithOp(ws.OpVoiceForceDisconnect)
	require.Len(t, forced, 1)
	assert.Equal(t, f.alice.ID, forced[0].target)
	assert.Equal(t, 0, f.svc.ChannelParticipantCount(f.channel.ID))
}

func TestVoiceSyncForFiltersInvisibleChannels(t *testing.T) {
	f := newVoiceFixture(t)

	hidden := f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "staff-voice",
		Type:     models.ChannelTypeVoice,
	})
	f.perms.grantChannel(f.bob.ID, hidden.ID, voiceMemberMask)

	f.join(t, f.alice.ID)
	_, err := f.svc.Join(context.Background(), f.bob.ID, hidden.ID)
	require.NoError(t, err)

	// Alice cannot see the staff channel, so only her own state comes back.
	states := f.svc.SyncFor(context.Background(), f.alice.ID)
	require.Len(t, states, 1)
	assert.Equal(t, f.alice.ID, states[0].UserID)

	// Bob sees both.
	states = f.svc.SyncFor(context.Background(), f.bob.ID)
	assert.Len(t, states, 2)
}

func TestVoiceOnUserOfflineLeaves(t *testing.T) {
	f := newVoiceFixture(t)
	f.join(t, f.alice.ID)
	f.hub.reset()

	f.svc.OnUserOffline(f.alice.ID)

	events := f.hub.eventsWithOp(ws.OpVoiceStateUpdate)
	require.Len(t, events, 1)
	payload := events[0].event.Data.(models.VoiceStatePayload)
	assert.Equal(t, models.VoiceActionLeave, payload.Action)
	assert.Equal(t, 0, f.svc.ChannelParticipantCount(f.channel.ID))
}
