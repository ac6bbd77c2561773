package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/cache"
	"github.com/chorushq/chorus/ws"
)

// permFixture wires a ChannelPermissionService over in-memory stores with
// one server, its owner, one member and a default role.
type permFixture struct {
	svc      *ChannelPermissionService
	hub      *fakeHub
	servers  *fakeServerRepo
	members  *fakeMemberRepo
	roles    *fakeRoleRepo
	channels *fakeChannelRepo
	perms    *fakeOverrideRepo

	server      *models.Server
	channel     *models.Channel
	defaultRole *models.Role
	ownerID     string
	memberID    string
}

func newPermFixture(t *testing.T) *permFixture {
	t.Helper()

	f := &permFixture{
		hub:      newFakeHub(),
		servers:  newFakeServerRepo(),
		members:  newFakeMemberRepo(),
		roles:    newFakeRoleRepo(),
		channels: newFakeChannelRepo(),
		perms:    newFakeOverrideRepo(),
		ownerID:  "owner-1",
		memberID: "member-1",
	}

	permCache := cache.New[string, models.Permission](time.Minute, time.Minute)
	t.Cleanup(permCache.Close)

	f.svc = NewChannelPermissionService(
		f.channels, f.roles, f.members, f.servers, f.perms, permCache, f.hub)

	f.server = f.servers.add(&models.Server{Name: "general", OwnerID: f.ownerID})
	f.channel = f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "lobby",
		Type:     models.ChannelTypeText,
	})
	f.defaultRole = f.roles.add(&models.Role{
		ServerID:    f.server.ID,
		Name:        "everyone",
		Permissions: models.PermDefault,
		IsDefault:   true,
	})
	f.members.add(f.server.ID, f.ownerID)
	f.members.add(f.server.ID, f.memberID)
	return f
}

func TestResolveServerOwnerGetsEverything(t *testing.T) {
	f := newPermFixture(t)

	mask, err := f.svc.ResolveServer(context.Background(), f.server.ID, f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.PermAll, mask)
}

func TestResolveServerNonMemberUnauthorized(t *testing.T) {
	f := newPermFixture(t)

	_, err := f.svc.ResolveServer(context.Background(), f.server.ID, "stranger")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
}

func TestResolveServerFoldsRoleMasks(t *testing.T) {
	f := newPermFixture(t)

	mod := f.roles.add(&models.Role{
		ServerID:    f.server.ID,
		Name:        "mod",
		Permissions: models.PermKickMembers | models.PermManageMessages,
		Position:    1,
	})
	f.roles.assign(f.server.ID, f.memberID, mod.ID)

	mask, err := f.svc.ResolveServer(context.Background(), f.server.ID, f.memberID)
	require.NoError(t, err)
	assert.True(t, mask.Has(models.PermKickMembers))
	assert.True(t, mask.Has(models.PermSendMessages)) // from the default role
	assert.False(t, mask.Has(models.PermBanMembers))
}

func TestResolveServerAdminBitWidensToAll(t *testing.T) {
	f := newPermFixture(t)

	admin := f.roles.add(&models.Role{
		ServerID:    f.server.ID,
		Name:        "admin",
		Permissions: models.PermAdmin,
		Position:    5,
	})
	f.roles.assign(f.server.ID, f.memberID, admin.ID)

	mask, err := f.svc.ResolveServer(context.Background(), f.server.ID, f.memberID)
	require.NoError(t, err)
	assert.Equal(t, models.PermAll, mask)
}

func TestResolveChannelAppliesDenyOverride(t *testing.T) {
	f := newPermFixture(t)

	require.NoError(t, f.perms.Set(context.Background(), &models.ChannelPermissionOverride{
		ChannelID: f.channel.ID,
		RoleID:    f.defaultRole.ID,
		Deny:      models.PermSendMessages,
	}))

	mask, err := f.svc.ResolveChannel(context.Background(), f.channel.ID, f.memberID)
	require.NoError(t, err)
	assert.False(t, mask.Has(models.PermSendMessages))
	assert.True(t, mask.Has(models.PermViewChannel))
}

func TestResolveChannelAllowOverrideGrantsMissingBit(t *testing.T) {
	f := newPermFixture(t)

	require.NoError(t, f.perms.Set(context.Background(), &models.ChannelPermissionOverride{
		ChannelID: f.channel.ID,
		RoleID:    f.defaultRole.ID,
		Allow:     models.PermManageMessages,
	}))

	mask, err := f.svc.ResolveChannel(context.Background(), f.channel.ID, f.memberID)
	require.NoError(t, err)
	assert.True(t, mask.Has(models.PermManageMessages))
}

func TestResolveChannelCachesUntilInvalidated(t *testing.T) {
	f := newPermFixture(t)
	ctx := context.Background()

	mask, err := f.svc.ResolveChannel(ctx, f.channel.ID, f.memberID)
	require.NoError(t, err)
	assert.True(t, mask.Has(models.PermSendMessages))

	// A new deny override is invisible until the cache entry is dropped.
	require.NoError(t, f.perms.Set(ctx, &models.ChannelPermissionOverride{
		ChannelID: f.channel.ID,
		RoleID:    f.defaultRole.ID,
		Deny:      models.PermSendMessages,
	}))
	mask, err = f.svc.ResolveChannel(ctx, f.channel.ID, f.memberID)
	require.NoError(t, err)
	assert.True(t, mask.Has(models.PermSendMessages), "stale cache entry expected")

	f.svc.InvalidateChannel(f.channel.ID)
	mask, err = f.svc.ResolveChannel(ctx, f.channel.ID, f.memberID)
	require.NoError(t, err)
	assert.False(t, mask.Has(models.PermSendMessages))
}

func TestInvalidateUserDropsOnlyThatUser(t *testing.T) {
	f := newPermFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResolveChannel(ctx, f.channel.ID, f.memberID)
	require.NoError(t, err)
	_, err = f.svc.ResolveChannel(ctx, f.channel.ID, f.ownerID)
	require.NoError(t, err)

	require.NoError(t, f.perms.Set(ctx, &models.ChannelPermissionOverride{
		ChannelID: f.channel.ID,
		RoleID:    f.defaultRole.ID,
		Deny:      models.PermSendMessages,
	}))
	f.svc.InvalidateUser(f.memberID)

	mask, err := f.svc.ResolveChannel(ctx, f.channel.ID, f.memberID)
	require.NoError(t, err)
	assert.False(t, mask.Has(models.PermSendMessages))

	// The owner entry survived; owners resolve to PermAll anyway.
	mask, err = f.svc.ResolveChannel(ctx, f.channel.ID, f.ownerID)
	require.NoError(t, err)
	assert.True(t, mask.Has(models.PermSendMessages))
}

func TestRequireChannelForbiddenWithoutBit(t *testing.T) {
	f := newPermFixture(t)

	err := f.svc.RequireChannel(context.Background(), f.channel.ID, f.memberID, models.PermManageChannels)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	err = f.svc.RequireChannel(context.Background(), f.channel.ID, f.memberID, models.PermSendMessages)
	assert.NoError(t, err)
}

func TestChannelViewerIDsFiltersHiddenMembers(t *testing.T) {
	f := newPermFixture(t)
	ctx := context.Background()

	require.NoError(t, f.perms.Set(ctx, &models.ChannelPermissionOverride{
		ChannelID: f.channel.ID,
		RoleID:    f.defaultRole.ID,
		Deny:      models.PermViewChannel,
	}))

	viewers, err := f.svc.ChannelViewerIDs(f.channel.ID)
	require.NoError(t, err)
	// Only the owner still sees the channel.
	assert.Equal(t, []string{f.ownerID}, viewers)
}

func TestSetOverrideRequiresManageChannels(t *testing.T) {
	f := newPermFixture(t)

	_, err := f.svc.SetOverride(context.Background(), f.channel.ID, f.defaultRole.ID, f.memberID,
		&models.SetOverrideRequest{Deny: models.PermSendMessages})
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestSetOverrideRejectsForeignRole(t *testing.T) {
	f := newPermFixture(t)

	other := f.servers.add(&models.Server{Name: "other", OwnerID: "someone"})
	foreign := f.roles.add(&models.Role{ServerID: other.ID, Name: "outsider"})

	_, err := f.svc.SetOverride(context.Background(), f.channel.ID, foreign.ID, f.ownerID,
		&models.SetOverrideRequest{Allow: models.PermSendMessages})
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)
}

func TestSetOverrideBroadcastsAndInvalidates(t *testing.T) {
	f := newPermFixture(t)
	ctx := context.Background()

	// Warm the member's cache entry first.
	mask, err := f.svc.ResolveChannel(ctx, f.channel.ID, f.memberID)
	require.NoError(t, err)
	require.True(t, mask.Has(models.PermSendMessages))

	override, err := f.svc.SetOverride(ctx, f.channel.ID, f.defaultRole.ID, f.ownerID,
		&models.SetOverrideRequest{Deny: models.PermSendMessages})
	require.NoError(t, err)
	assert.Equal(t, models.PermSendMessages, override.Deny)

	events := f.hub.eventsWithOp(ws.OpChannelPermissionUpdate)
	require.Len(t, events, 1)
	assert.Equal(t, "server", events[0].scope)
	assert.Equal(t, f.server.ID, events[0].target)

	// Invalidation took effect: the stale grant is gone.
	mask, err = f.svc.ResolveChannel(ctx, f.channel.ID, f.memberID)
	require.NoError(t, err)
	assert.False(t, mask.Has(models.PermSendMessages))
}

func TestDeleteOverrideBroadcastsReference(t *testing.T) {
	f := newPermFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetOverride(ctx, f.channel.ID, f.defaultRole.ID, f.ownerID,
		&models.SetOverrideRequest{Deny: models.PermSendMessages})
	require.NoError(t, err)
	f.hub.reset()

	require.NoError(t, f.svc.DeleteOverride(ctx, f.channel.ID, f.defaultRole.ID, f.ownerID))

	events := f.hub.eventsWithOp(ws.OpChannelPermissionDelete)
	require.Len(t, events, 1)
	ref, ok := events[0].event.Data.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, f.channel.ID, ref["channel_id"])
	assert.Equal(t, f.defaultRole.ID, ref["role_id"])

	mask, err := f.svc.ResolveChannel(ctx, f.channel.ID, f.memberID)
	require.NoError(t, err)
	assert.True(t, mask.Has(models.PermSendMessages))
}
