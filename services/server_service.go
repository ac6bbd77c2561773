package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// ServerService manages server lifecycle and the per-user sidebar ordering.
type ServerService struct {
	servers  repository.ServerRepository
	members  repository.MemberRepository
	roles    repository.RoleRepository
	channels repository.ChannelRepository
	sfuRepo  repository.SFUInstanceRepository
	perms    *ChannelPermissionService
	hub      ws.EventPublisher
}

func NewServerService(
	servers repository.ServerRepository,
	members repository.MemberRepository,
	roles repository.RoleRepository,
	channels repository.ChannelRepository,
	sfuRepo repository.SFUInstanceRepository,
	perms *ChannelPermissionService,
	hub ws.EventPublisher,
) *ServerService {
	return &ServerService{
		servers:  servers,
		members:  members,
		roles:    roles,
		channels: channels,
		sfuRepo:  sfuRepo,
		perms:    perms,
		hub:      hub,
	}
}

// Create builds a new server: owner membership, the default @everyone role,
// and a "general" text channel, then assigns the least-loaded platform SFU
// when one exists.
func (s *ServerService) Create(ctx context.Context, ownerID string, req *models.CreateServerRequest) (*models.Server, error) {
	server := &models.Server{
		Name:           req.Name,
		OwnerID:        ownerID,
		InviteRequired: true,
	}
	if err := s.servers.Create(ctx, server); err != nil {
		return nil, err
	}

	pos, err := s.members.MaxPosition(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.members.Add(ctx, &models.ServerMember{
		ServerID: server.ID,
		UserID:   ownerID,
		Position: pos + 1,
	}); err != nil {
		return nil, err
	}

	if err := s.roles.Create(ctx, &models.Role{
		ServerID:    server.ID,
		Name:        "everyone",
		Color:       "#99AAB5",
		Position:    0,
		Permissions: models.PermDefault,
		IsDefault:   true,
	}); err != nil {
		return nil, err
	}

	if err := s.channels.Create(ctx, &models.Channel{
		ServerID: server.ID,
		Name:     "general",
		Type:     models.ChannelTypeText,
	}); err != nil {
		return nil, err
	}

	// Voice assignment is best effort: a server without an SFU still chats.
	if inst, err := s.sfuRepo.LeastLoadedPlatformInstance(ctx); err == nil {
		if err := s.sfuRepo.AssignServer(ctx, server.ID, &inst.ID); err != nil {
			logger.L().Warn("sfu assignment failed",
				zap.String("server_id", server.ID), zap.Error(err))
		} else {
			server.SFUInstanceID = &inst.ID
		}
	}

	s.hub.BroadcastToUser(ownerID, ws.Event{Op: ws.OpServerCreate, Data: server})
	return server, nil
}

// Get returns one server to a member.
func (s *ServerService) Get(ctx context.Context, serverID, userID string) (*models.Server, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}
	return s.servers.GetByID(ctx, serverID)
}

// ListForUser returns the user's servers in sidebar order.
func (s *ServerService) ListForUser(ctx context.Context, userID string) ([]models.UserServer, error) {
	servers, err := s.servers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if servers == nil {
		servers = []models.UserServer{}
	}
	return servers, nil
}

// Update edits name or invite policy and broadcasts server_update.
func (s *ServerService) Update(ctx context.Context, serverID, userID string, req *models.UpdateServerRequest) (*models.Server, error) {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if server.OwnerID != userID {
		if err := s.perms.RequireServer(ctx, serverID, userID, models.PermAdmin); err != nil {
			return nil, err
		}
	}

	if req.Name != nil {
		server.Name = *req.Name
	}
	if req.InviteRequired != nil {
		server.InviteRequired = *req.InviteRequired
	}
	if err := s.servers.Update(ctx, server); err != nil {
		return nil, err
	}

	s.hub.BroadcastToServer(serverID, ws.Event{Op: ws.OpServerUpdate, Data: server})
	return server, nil
}

// UpdateIcon stores a new icon URL (the upload handler wrote the file).
func (s *ServerService) UpdateIcon(ctx context.Context, serverID, userID, iconURL string) (*models.Server, error) {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if server.OwnerID != userID {
		if err := s.perms.RequireServer(ctx, serverID, userID, models.PermAdmin); err != nil {
			return nil, err
		}
	}
	if err := s.servers.UpdateIcon(ctx, serverID, iconURL); err != nil {
		return nil, err
	}
	server.IconURL = &iconURL

	s.hub.BroadcastToServer(serverID, ws.Event{Op: ws.OpServerUpdate, Data: server})
	return server, nil
}

// Delete removes the server. Owner only; the broadcast goes out before the
// member rows cascade away so everyone still receives it.
func (s *ServerService) Delete(ctx context.Context, serverID, userID string) error {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID != userID {
		return fmt.Errorf("%w: only the owner can delete a server", pkg.ErrForbidden)
	}

	s.hub.BroadcastToServer(serverID, ws.Event{
		Op:   ws.OpServerDelete,
		Data: map[string]string{"id": serverID},
	})

	if server.SFUInstanceID != nil {
		if err := s.sfuRepo.AssignServer(ctx, serverID, nil); err != nil {
			logger.L().Warn("sfu unassignment failed",
				zap.String("server_id", serverID), zap.Error(err))
		}
	}
	if err := s.servers.Delete(ctx, serverID); err != nil {
		return err
	}
	s.perms.InvalidateServer(serverID)
	return nil
}

// Reorder updates the user's own sidebar ordering. Per-user state: nothing
// is broadcast.
func (s *ServerService) Reorder(ctx context.Context, userID string, req *models.ReorderServersRequest) error {
	return s.members.UpdatePositions(ctx, userID, req.Positions)
}

// Stats aggregates the settings-page counters.
func (s *ServerService) Stats(ctx context.Context, serverID, userID string) (*models.ServerStats, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}
	return s.servers.Stats(ctx, serverID)
}
