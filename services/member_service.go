package services

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// MemberService handles the member list, voluntary leaves, kicks and bans.
type MemberService struct {
	members repository.MemberRepository
	servers repository.ServerRepository
	roles   repository.RoleRepository
	users   repository.UserRepository
	bans    repository.BanRepository
	perms   *ChannelPermissionService
	hub     ws.EventPublisher
}

func NewMemberService(
	members repository.MemberRepository,
	servers repository.ServerRepository,
	roles repository.RoleRepository,
	users repository.UserRepository,
	bans repository.BanRepository,
	perms *ChannelPermissionService,
	hub ws.EventPublisher,
) *MemberService {
	return &MemberService{
		members: members,
		servers: servers,
		roles:   roles,
		users:   users,
		bans:    bans,
		perms:   perms,
		hub:     hub,
	}
}

// List returns the member list with each member's roles and folded mask.
func (s *MemberService) List(ctx context.Context, serverID, userID string) ([]models.MemberWithRoles, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}

	rows, users, err := s.members.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.UserID)
	}
	roleSets, err := s.roles.GetByUsers(ctx, serverID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.MemberWithRoles, 0, len(rows))
	for i := range rows {
		user := users[rows[i].UserID]
		if user == nil {
			continue
		}
		out = append(out, models.ToMemberWithRoles(user, &rows[i], roleSets[rows[i].UserID]))
	}
	return out, nil
}

// hierarchyAllows reports whether the actor outranks the target member.
// The owner outranks everyone; nobody outranks the owner.
func (s *MemberService) hierarchyAllows(ctx context.Context, server *models.Server, actorID, targetID string) (bool, error) {
	if targetID == server.OwnerID {
		return false, nil
	}
	if actorID == server.OwnerID {
		return true, nil
	}
	actorRoles, err := s.roles.GetByUser(ctx, server.ID, actorID)
	if err != nil {
		return false, err
	}
	targetRoles, err := s.roles.GetByUser(ctx, server.ID, targetID)
	if err != nil {
		return false, err
	}
	return models.HighestPosition(actorRoles) > models.HighestPosition(targetRoles), nil
}

// remove deletes the membership and emits the two departure events: the
// server sees member_leave, the removed user sees the server disappear.
func (s *MemberService) remove(ctx context.Context, serverID, userID string) error {
	if err := s.members.Remove(ctx, serverID, userID); err != nil {
		return err
	}
	s.perms.InvalidateUser(userID)

	s.hub.BroadcastToServer(serverID, ws.Event{
		Op:   ws.OpMemberLeave,
		Data: map[string]string{"server_id": serverID, "user_id": userID},
	})
	s.hub.BroadcastToUser(userID, ws.Event{
		Op:   ws.OpServerDelete,
		Data: map[string]string{"id": serverID},
	})
	return nil
}

// Leave removes the caller's own membership. The owner must delete or
// transfer the server instead.
func (s *MemberService) Leave(ctx context.Context, serverID, userID string) error {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID == userID {
		return fmt.Errorf("%w: the owner cannot leave their own server", pkg.ErrForbidden)
	}
	if _, err := s.members.Get(ctx, serverID, userID); err != nil {
		return err
	}
	return s.remove(ctx, serverID, userID)
}

// Kick removes another member. Hierarchy applies: the actor must outrank the
// target.
func (s *MemberService) Kick(ctx context.Context, serverID, targetID, actorID string) error {
	if err := s.perms.RequireServer(ctx, serverID, actorID, models.PermKickMembers); err != nil {
		return err
	}
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	ok, err := s.hierarchyAllows(ctx, server, actorID, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: role hierarchy does not permit this", pkg.ErrForbidden)
	}
	if _, err := s.members.Get(ctx, serverID, targetID); err != nil {
		return err
	}
	return s.remove(ctx, serverID, targetID)
}

// Ban records the ban, kicks the member when present, and force-closes their
// live connections.
func (s *MemberService) Ban(ctx context.Context, serverID, targetID, actorID string, req *models.BanRequest) error {
	if err := s.perms.RequireServer(ctx, serverID, actorID, models.PermBanMembers); err != nil {
		return err
	}
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	ok, err := s.hierarchyAllows(ctx, server, actorID, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: role hierarchy does not permit this", pkg.ErrForbidden)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	ban := &models.Ban{
		ServerID: serverID,
		UserID:   targetID,
		Username: target.Username,
		BannedBy: actorID,
	}
	if req != nil && req.Reason != "" {
		ban.Reason = &req.Reason
	}
	if err := s.bans.Create(ctx, ban); err != nil {
		return err
	}

	if isMember, err := s.members.IsMember(ctx, serverID, targetID); err == nil && isMember {
		if err := s.remove(ctx, serverID, targetID); err != nil {
			return err
		}
	}
	s.hub.DisconnectUser(targetID)
	return nil
}

// Unban lifts a ban so the user can be invited again.
func (s *MemberService) Unban(ctx context.Context, serverID, targetID, actorID string) error {
	if err := s.perms.RequireServer(ctx, serverID, actorID, models.PermBanMembers); err != nil {
		return err
	}
	return s.bans.Delete(ctx, serverID, targetID)
}

// ListBans returns the server's ban list.
func (s *MemberService) ListBans(ctx context.Context, serverID, actorID string) ([]models.Ban, error) {
	if err := s.perms.RequireServer(ctx, serverID, actorID, models.PermBanMembers); err != nil {
		return nil, err
	}
	bans, err := s.bans.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if bans == nil {
		bans = []models.Ban{}
	}
	return bans, nil
}
