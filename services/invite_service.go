package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// inviteCodeLength is the length of generated invite codes.
const inviteCodeLength = 8

// inviteCodeAlphabet avoids ambiguous characters (0/O, 1/l/I).
const inviteCodeAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// InviteService manages invite codes and the join flow.
type InviteService struct {
	invites repository.InviteRepository
	servers repository.ServerRepository
	members repository.MemberRepository
	roles   repository.RoleRepository
	users   repository.UserRepository
	bans    repository.BanRepository
	perms   *ChannelPermissionService
	hub     ws.EventPublisher
}

func NewInviteService(
	invites repository.InviteRepository,
	servers repository.ServerRepository,
	members repository.MemberRepository,
	roles repository.RoleRepository,
	users repository.UserRepository,
	bans repository.BanRepository,
	perms *ChannelPermissionService,
	hub ws.EventPublisher,
) *InviteService {
	return &InviteService{
		invites: invites,
		servers: servers,
		members: members,
		roles:   roles,
		users:   users,
		bans:    bans,
		perms:   perms,
		hub:     hub,
	}
}

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("invite code generation: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

// Create mints a new invite code for a server.
func (s *InviteService) Create(ctx context.Context, serverID, userID string, req *models.CreateInviteRequest) (*models.Invite, error) {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageInvites); err != nil {
		return nil, err
	}

	code, err := generateInviteCode()
	if err != nil {
		return nil, err
	}
	invite := &models.Invite{
		Code:      code,
		ServerID:  serverID,
		CreatedBy: &userID,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ParseExpiresAt(time.Now()),
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

// List returns the server's invites for the management panel.
func (s *InviteService) List(ctx context.Context, serverID, userID string) ([]models.InviteWithCreator, error) {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageInvites); err != nil {
		return nil, err
	}
	invites, err := s.invites.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []models.InviteWithCreator{}
	}
	return invites, nil
}

// Delete revokes an invite code.
func (s *InviteService) Delete(ctx context.Context, serverID, code, userID string) error {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageInvites); err != nil {
		return err
	}
	invite, err := s.invites.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if invite.ServerID != serverID {
		return fmt.Errorf("%w: invite not found", pkg.ErrNotFound)
	}
	return s.invites.Delete(ctx, code)
}

// Preview returns the invite card data. No authentication required, so it
// exposes only the server name, icon and member count.
func (s *InviteService) Preview(ctx context.Context, code string) (*models.InvitePreview, error) {
	invite, err := s.invites.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !invite.Usable(time.Now()) {
		return nil, fmt.Errorf("%w: invite is expired or exhausted", pkg.ErrNotFound)
	}
	server, err := s.servers.GetByID(ctx, invite.ServerID)
	if err != nil {
		return nil, err
	}
	count, err := s.members.Count(ctx, invite.ServerID)
	if err != nil {
		return nil, err
	}
	return &models.InvitePreview{
		ServerID:      server.ID,
		ServerName:    server.Name,
		ServerIconURL: server.IconURL,
		MemberCount:   count,
	}, nil
}

// Redeem joins the caller to the invite's server. Bans win over invites.
func (s *InviteService) Redeem(ctx context.Context, code, userID string) (*models.Server, error) {
	invite, err := s.invites.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid invite code", pkg.ErrNotFound)
	}
	if !invite.Usable(time.Now()) {
		return nil, fmt.Errorf("%w: invite is expired or exhausted", pkg.ErrNotFound)
	}

	banned, err := s.bans.Exists(ctx, invite.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, fmt.Errorf("%w: you are banned from this server", pkg.ErrForbidden)
	}
	if isMember, err := s.members.IsMember(ctx, invite.ServerID, userID); err != nil {
		return nil, err
	} else if isMember {
		return nil, fmt.Errorf("%w: already a member", pkg.ErrAlreadyExists)
	}

	pos, err := s.members.MaxPosition(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.members.Add(ctx, &models.ServerMember{
		ServerID: invite.ServerID,
		UserID:   userID,
		Position: pos + 1,
	}); err != nil {
		return nil, err
	}
	if err := s.invites.IncrementUses(ctx, code); err != nil {
		return nil, err
	}

	server, err := s.servers.GetByID(ctx, invite.ServerID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	member, err := s.members.Get(ctx, invite.ServerID, userID)
	if err != nil {
		return nil, err
	}
	defaultRole, err := s.roles.GetDefault(ctx, invite.ServerID)
	if err != nil {
		return nil, err
	}
	view := models.ToMemberWithRoles(user, member, []models.Role{*defaultRole})

	s.hub.BroadcastToServer(invite.ServerID, ws.Event{
		Op: ws.OpMemberJoin,
		Data: map[string]any{
			"server_id": invite.ServerID,
			"member":    view,
		},
	})
	s.hub.BroadcastToUser(userID, ws.Event{Op: ws.OpServerCreate, Data: server})
	return server, nil
}
