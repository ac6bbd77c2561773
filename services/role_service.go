package services

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// RoleService manages the role hierarchy and member role assignment.
//
// Hierarchy rule: a member may only touch roles strictly below their own
// highest role. The server owner bypasses position checks.
type RoleService struct {
	roles   repository.RoleRepository
	servers repository.ServerRepository
	members repository.MemberRepository
	users   repository.UserRepository
	perms   *ChannelPermissionService
	hub     ws.EventPublisher
}

func NewRoleService(
	roles repository.RoleRepository,
	servers repository.ServerRepository,
	members repository.MemberRepository,
	users repository.UserRepository,
	perms *ChannelPermissionService,
	hub ws.EventPublisher,
) *RoleService {
	return &RoleService{
		roles:   roles,
		servers: servers,
		members: members,
		users:   users,
		perms:   perms,
		hub:     hub,
	}
}

// outranks reports whether the actor may manage something at the given
// hierarchy position.
func (s *RoleService) outranks(ctx context.Context, serverID, actorID string, position int) (bool, error) {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return false, err
	}
	if server.OwnerID == actorID {
		return true, nil
	}
	actorRoles, err := s.roles.GetByUser(ctx, serverID, actorID)
	if err != nil {
		return false, err
	}
	return models.HighestPosition(actorRoles) > position, nil
}

func (s *RoleService) requireOutranks(ctx context.Context, serverID, actorID string, position int) error {
	ok, err := s.outranks(ctx, serverID, actorID, position)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: role hierarchy does not permit this", pkg.ErrForbidden)
	}
	return nil
}

func (s *RoleService) ListByServer(ctx context.Context, serverID, userID string) ([]models.Role, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}
	roles, err := s.roles.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

// Create appends a new role at the top of the hierarchy.
func (s *RoleService) Create(ctx context.Context, serverID, userID string, req *models.CreateRoleRequest) (*models.Role, error) {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageRoles); err != nil {
		return nil, err
	}

	pos, err := s.roles.MaxPosition(ctx, serverID)
	if err != nil {
		return nil, err
	}
	role := &models.Role{
		ServerID:    serverID,
		Name:        req.Name,
		Color:       req.Color,
		Position:    pos + 1,
		Permissions: req.Permissions,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}

	s.hub.BroadcastToServer(serverID, ws.Event{Op: ws.OpRoleCreate, Data: role})
	return role, nil
}

func (s *RoleService) Update(ctx context.Context, serverID, roleID, userID string, req *models.UpdateRoleRequest) (*models.Role, error) {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageRoles); err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.ServerID != serverID {
		return nil, fmt.Errorf("%w: role not found", pkg.ErrNotFound)
	}
	if !role.IsDefault {
		if err := s.requireOutranks(ctx, serverID, userID, role.Position); err != nil {
			return nil, err
		}
	}

	if req.Name != nil {
		if role.IsDefault {
			return nil, fmt.Errorf("%w: the default role cannot be renamed", pkg.ErrForbidden)
		}
		role.Name = *req.Name
	}
	if req.Color != nil {
		role.Color = *req.Color
	}
	if req.Permissions != nil {
		role.Permissions = *req.Permissions
	}
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, err
	}

	// Permission masks changed for everyone holding the role.
	s.perms.InvalidateServer(serverID)
	s.hub.BroadcastToServer(serverID, ws.Event{Op: ws.OpRoleUpdate, Data: role})
	return role, nil
}

func (s *RoleService) Delete(ctx context.Context, serverID, roleID, userID string) error {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageRoles); err != nil {
		return err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.ServerID != serverID {
		return fmt.Errorf("%w: role not found", pkg.ErrNotFound)
	}
	if err := s.requireOutranks(ctx, serverID, userID, role.Position); err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, roleID); err != nil {
		return err
	}

	s.perms.InvalidateServer(serverID)
	s.hub.BroadcastToServer(serverID, ws.Event{
		Op:   ws.OpRoleDelete,
		Data: map[string]string{"id": roleID, "server_id": serverID},
	})
	return nil
}

// Reorder applies a full hierarchy ordering. Every moved role must be below
// the actor's own highest role.
func (s *RoleService) Reorder(ctx context.Context, serverID, userID string, req *models.ReorderRolesRequest) error {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageRoles); err != nil {
		return err
	}

	current, err := s.roles.ListByServer(ctx, serverID)
	if err != nil {
		return err
	}
	byID := make(map[string]*models.Role, len(current))
	for i := range current {
		byID[current[i].ID] = &current[i]
	}
	for _, item := range req.Positions {
		role, ok := byID[item.ID]
		if !ok {
			return fmt.Errorf("%w: role not found", pkg.ErrNotFound)
		}
		if role.IsDefault && item.Position != 0 {
			return fmt.Errorf("%w: the default role stays at the bottom", pkg.ErrInvalidInput)
		}
		if role.Position == item.Position {
			continue
		}
		if err := s.requireOutranks(ctx, serverID, userID, role.Position); err != nil {
			return err
		}
	}

	if err := s.roles.UpdatePositions(ctx, serverID, req.Positions); err != nil {
		return err
	}

	s.perms.InvalidateServer(serverID)
	s.hub.BroadcastToServer(serverID, ws.Event{
		Op: ws.OpRolesReorder,
		Data: map[string]any{
			"server_id": serverID,
			"positions": req.Positions,
		},
	})
	return nil
}

// SetMemberRoles replaces a member's role set declaratively: roles missing
// from the request are removed, new ones are assigned. The default role is
// implicit and never listed.
func (s *RoleService) SetMemberRoles(ctx context.Context, serverID, targetID, actorID string, req *models.RoleModifyRequest) (*models.MemberWithRoles, error) {
	if err := s.perms.RequireServer(ctx, serverID, actorID, models.PermManageRoles); err != nil {
		return nil, err
	}
	member, err := s.members.Get(ctx, serverID, targetID)
	if err != nil {
		return nil, err
	}

	current, err := s.roles.GetByUser(ctx, serverID, targetID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]models.Role, len(current))
	for _, r := range current {
		if !r.IsDefault {
			have[r.ID] = r
		}
	}
	want := make(map[string]bool, len(req.RoleIDs))
	for _, id := range req.RoleIDs {
		want[id] = true
	}

	for id := range want {
		if _, ok := have[id]; ok {
			continue
		}
		role, err := s.roles.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if role.ServerID != serverID || role.IsDefault {
			return nil, fmt.Errorf("%w: role not found", pkg.ErrNotFound)
		}
		if err := s.requireOutranks(ctx, serverID, actorID, role.Position); err != nil {
			return nil, err
		}
		if err := s.roles.AssignToUser(ctx, serverID, targetID, id); err != nil {
			return nil, err
		}
	}
	for id, role := range have {
		if want[id] {
			continue
		}
		if err := s.requireOutranks(ctx, serverID, actorID, role.Position); err != nil {
			return nil, err
		}
		if err := s.roles.RemoveFromUser(ctx, targetID, id); err != nil {
			return nil, err
		}
	}

	s.perms.InvalidateUser(targetID)

	user, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	updated, err := s.roles.GetByUser(ctx, serverID, targetID)
	if err != nil {
		return nil, err
	}
	view := models.ToMemberWithRoles(user, member, updated)

	s.hub.BroadcastToServer(serverID, ws.Event{
		Op: ws.OpMemberUpdate,
		Data: map[string]any{
			"server_id": serverID,
			"member":    view,
		},
	})
	return &view, nil
}
