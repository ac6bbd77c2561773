// Package services holds the domain orchestrators. Each service owns one
// concern, talks to repositories for state, and publishes websocket events
// through the hub's EventPublisher interface. Services never touch HTTP.
package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/cache"
	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// ChannelPermResolver is the read side of the permission engine, consumed by
// middleware and by the hub's channel-scoped fan-out.
type ChannelPermResolver interface {
	// ResolveChannel computes the user's effective mask inside a channel:
	// server-level OR of role masks, then channel overrides applied in
	// ascending role position order.
	ResolveChannel(ctx context.Context, channelID, userID string) (models.Permission, error)
	// ResolveServer computes the server-level mask only.
	ResolveServer(ctx context.Context, serverID, userID string) (models.Permission, error)
	// RequireChannel fails closed: unauthorized for non-members, forbidden
	// for members lacking the bit.
	RequireChannel(ctx context.Context, channelID, userID string, perm models.Permission) error
	RequireServer(ctx context.Context, serverID, userID string, perm models.Permission) error
}

// ChannelPermissionService resolves effective permissions and manages
// per-channel overrides. Resolution results are cached per userID:channelID
// and invalidated whenever roles, overrides or membership change.
type ChannelPermissionService struct {
	channels  repository.ChannelRepository
	roles     repository.RoleRepository
	members   repository.MemberRepository
	servers   repository.ServerRepository
	overrides repository.ChannelPermissionRepository

	cache *cache.TTLCache[string, models.Permission]
	hub   ws.EventPublisher
}

func NewChannelPermissionService(
	channels repository.ChannelRepository,
	roles repository.RoleRepository,
	members repository.MemberRepository,
	servers repository.ServerRepository,
	overrides repository.ChannelPermissionRepository,
	permCache *cache.TTLCache[string, models.Permission],
	hub ws.EventPublisher,
) *ChannelPermissionService {
	return &ChannelPermissionService{
		channels:  channels,
		roles:     roles,
		members:   members,
		servers:   servers,
		overrides: overrides,
		cache:     permCache,
		hub:       hub,
	}
}

func cacheKey(userID, channelID string) string {
	return userID + ":" + channelID
}

// ResolveServer folds the user's roles into the server-level mask. The server
// owner always resolves to PermAll; non-members get unauthorized.
func (s *ChannelPermissionService) ResolveServer(ctx context.Context, serverID, userID string) (models.Permission, error) {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return 0, err
	}
	if server.OwnerID == userID {
		return models.PermAll, nil
	}

	isMember, err := s.members.IsMember(ctx, serverID, userID)
	if err != nil {
		return 0, err
	}
	if !isMember {
		return 0, fmt.Errorf("%w: not a member of this server", pkg.ErrUnauthorized)
	}

	roles, err := s.roles.GetByUser(ctx, serverID, userID)
	if err != nil {
		return 0, err
	}
	return models.EffectivePermissions(roles), nil
}

func (s *ChannelPermissionService) ResolveChannel(ctx context.Context, channelID, userID string) (models.Permission, error) {
	if mask, ok := s.cache.Get(cacheKey(userID, channelID)); ok {
		return mask, nil
	}

	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return 0, err
	}

	base, err := s.ResolveServer(ctx, channel.ServerID, userID)
	if err != nil {
		return 0, err
	}

	roles, err := s.roles.GetByUser(ctx, channel.ServerID, userID)
	if err != nil {
		return 0, err
	}
	roleIDs := make([]string, len(roles))
	for i, r := range roles {
		roleIDs[i] = r.ID
	}

	overrides, err := s.overrides.GetByChannelAndRoles(ctx, channelID, roleIDs)
	if err != nil {
		return 0, err
	}

	mask := models.EffectiveChannelPermissions(base, roles, overrides)
	s.cache.Set(cacheKey(userID, channelID), mask)
	return mask, nil
}

func (s *ChannelPermissionService) RequireChannel(ctx context.Context, channelID, userID string, perm models.Permission) error {
	mask, err := s.ResolveChannel(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if !mask.Has(perm) {
		return fmt.Errorf("%w: missing required permission", pkg.ErrForbidden)
	}
	return nil
}

func (s *ChannelPermissionService) RequireServer(ctx context.Context, serverID, userID string, perm models.Permission) error {
	mask, err := s.ResolveServer(ctx, serverID, userID)
	if err != nil {
		return err
	}
	if !mask.Has(perm) {
		return fmt.Errorf("%w: missing required permission", pkg.ErrForbidden)
	}
	return nil
}

// ChannelViewerIDs lists the members whose effective channel mask includes
// ViewChannel. Backs the hub's channel-scoped fan-out.
func (s *ChannelPermissionService) ChannelViewerIDs(channelID string) ([]string, error) {
	ctx := context.Background()

	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	memberIDs, err := s.members.ListUserIDs(ctx, channel.ServerID)
	if err != nil {
		return nil, err
	}

	viewers := make([]string, 0, len(memberIDs))
	for _, userID := range memberIDs {
		mask, err := s.ResolveChannel(ctx, channelID, userID)
		if err != nil {
			logger.L().Warn("viewer resolution failed",
				zap.String("channel_id", channelID),
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		if mask.Has(models.PermViewChannel) {
			viewers = append(viewers, userID)
		}
	}
	return viewers, nil
}

// ListOverrides returns every override on a channel.
func (s *ChannelPermissionService) ListOverrides(ctx context.Context, channelID, userID string) ([]models.ChannelPermissionOverride, error) {
	if err := s.RequireChannel(ctx, channelID, userID, models.PermManageChannels); err != nil {
		return nil, err
	}
	overrides, err := s.overrides.GetByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = []models.ChannelPermissionOverride{}
	}
	return overrides, nil
}

// SetOverride upserts one role's override and broadcasts the change to the
// server. The whole channel's cache entries are invalidated: any member's
// effective mask may have changed.
func (s *ChannelPermissionService) SetOverride(ctx context.Context, channelID, roleID, userID string, req *models.SetOverrideRequest) (*models.ChannelPermissionOverride, error) {
	if err := s.RequireChannel(ctx, channelID, userID, models.PermManageChannels); err != nil {
		return nil, err
	}

	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.ServerID != channel.ServerID {
		return nil, fmt.Errorf("%w: role belongs to a different server", pkg.ErrInvalidInput)
	}

	override := &models.ChannelPermissionOverride{
		ChannelID: channelID,
		RoleID:    roleID,
		Allow:     req.Allow,
		Deny:      req.Deny,
	}
	if err := s.overrides.Set(ctx, override); err != nil {
		return nil, err
	}

	s.InvalidateChannel(channelID)
	s.hub.BroadcastToServer(channel.ServerID, ws.Event{
		Op:   ws.OpChannelPermissionUpdate,
		Data: override,
	})
	return override, nil
}

// DeleteOverride removes one role's override.
func (s *ChannelPermissionService) DeleteOverride(ctx context.Context, channelID, roleID, userID string) error {
	if err := s.RequireChannel(ctx, channelID, userID, models.PermManageChannels); err != nil {
		return err
	}
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.overrides.Delete(ctx, channelID, roleID); err != nil {
		return err
	}

	s.InvalidateChannel(channelID)
	s.hub.BroadcastToServer(channel.ServerID, ws.Event{
		Op: ws.OpChannelPermissionDelete,
		Data: map[string]string{
			"channel_id": channelID,
			"role_id":    roleID,
		},
	})
	return nil
}

// InvalidateChannel drops every cached mask for one channel.
func (s *ChannelPermissionService) InvalidateChannel(channelID string) {
	s.cache.DeleteFunc(func(key string) bool {
		return strings.HasSuffix(key, ":"+channelID)
	})
}

// InvalidateUser drops every cached mask of one user (role assignment,
// kick, ban).
func (s *ChannelPermissionService) InvalidateUser(userID string) {
	s.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, userID+":")
	})
}

// InvalidateServer drops the whole cache. Role mask or hierarchy edits touch
// an unbounded set of (user, channel) pairs; clearing is the safe move.
func (s *ChannelPermissionService) InvalidateServer(serverID string) {
	s.cache.Clear()
}
