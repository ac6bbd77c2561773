package services

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// ChannelService manages channels: create, edit, delete and the atomic
// position reorder. Voice-channel deletion also tears the SFU room down via
// the voice service.
type ChannelService struct {
	channels   repository.ChannelRepository
	categories repository.CategoryRepository
	perms      *ChannelPermissionService
	voice      *VoiceService
	hub        ws.EventPublisher
}

func NewChannelService(
	channels repository.ChannelRepository,
	categories repository.CategoryRepository,
	perms *ChannelPermissionService,
	voice *VoiceService,
	hub ws.EventPublisher,
) *ChannelService {
	return &ChannelService{
		channels:   channels,
		categories: categories,
		perms:      perms,
		voice:      voice,
		hub:        hub,
	}
}

// Create appends a channel at the bottom of its category scope.
func (s *ChannelService) Create(ctx context.Context, serverID, userID string, req *models.CreateChannelRequest) (*models.Channel, error) {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageChannels); err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		category, err := s.categories.GetByID(ctx, *req.CategoryID)
		if err != nil {
			return nil, err
		}
		if category.ServerID != serverID {
			return nil, fmt.Errorf("%w: category belongs to a different server", pkg.ErrInvalidInput)
		}
	}

	pos, err := s.channels.MaxPosition(ctx, serverID, req.CategoryID)
	if err != nil {
		return nil, err
	}

	channel := &models.Channel{
		ServerID:   serverID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Type:       req.Type,
		Topic:      req.Topic,
		Position:   pos + 1,
		UserLimit:  req.UserLimit,
		Bitrate:    req.Bitrate,
	}
	if channel.Type == models.ChannelTypeVoice && channel.Bitrate == 0 {
		channel.Bitrate = 64000
	}
	if err := s.channels.Create(ctx, channel); err != nil {
		return nil, err
	}

	s.hub.BroadcastToServer(serverID, ws.Event{Op: ws.OpChannelCreate, Data: channel})
	return channel, nil
}

// Get returns one channel to a user who can view it.
func (s *ChannelService) Get(ctx context.Context, channelID, userID string) (*models.Channel, error) {
	if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermViewChannel); err != nil {
		return nil, err
	}
	return s.channels.GetByID(ctx, channelID)
}

// ListByServer returns every channel of a server the user can view, in
// position order. Channels hidden by overrides are filtered out.
func (s *ChannelService) ListByServer(ctx context.Context, serverID, userID string) ([]models.Channel, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}
	channels, err := s.channels.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	visible := make([]models.Channel, 0, len(channels))
	for _, ch := range channels {
		mask, err := s.perms.ResolveChannel(ctx, ch.ID, userID)
		if err != nil {
			continue
		}
		if mask.Has(models.PermViewChannel) {
			visible = append(visible, ch)
		}
	}
	return visible, nil
}

// Update edits channel settings. Moving between categories keeps the
// position; the client reorders explicitly afterwards.
func (s *ChannelService) Update(ctx context.Context, channelID, userID string, req *models.UpdateChannelRequest) (*models.Channel, error) {
	if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermManageChannels); err != nil {
		return nil, err
	}
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		channel.Name = *req.Name
	}
	if req.CategoryID != nil {
		category, err := s.categories.GetByID(ctx, *req.CategoryID)
		if err != nil {
			return nil, err
		}
		if category.ServerID != channel.ServerID {
			return nil, fmt.Errorf("%w: category belongs to a different server", pkg.ErrInvalidInput)
		}
		channel.CategoryID = req.CategoryID
	}
	if req.Topic != nil {
		channel.Topic = req.Topic
	}
	if req.UserLimit != nil {
		channel.UserLimit = *req.UserLimit
	}
	if req.Bitrate != nil {
		channel.Bitrate = *req.Bitrate
	}
	if err := s.channels.Update(ctx, channel); err != nil {
		return nil, err
	}

	s.hub.BroadcastToServer(channel.ServerID, ws.Event{Op: ws.OpChannelUpdate, Data: channel})
	return channel, nil
}

// Delete removes a channel and, for voice channels, evicts its occupants and
// deletes the SFU room.
func (s *ChannelService) Delete(ctx context.Context, channelID, userID string) error {
	if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermManageChannels); err != nil {
		return err
	}
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.channels.Delete(ctx, channelID); err != nil {
		return err
	}

	s.perms.InvalidateChannel(channelID)
	if channel.Type == models.ChannelTypeVoice {
		s.voice.OnChannelDeleted(ctx, channelID, channel.ServerID)
	}
	s.hub.BroadcastToServer(channel.ServerID, ws.Event{
		Op:   ws.OpChannelDelete,
		Data: map[string]string{"id": channelID, "server_id": channel.ServerID},
	})
	return nil
}

// Reorder applies a full channel ordering atomically and broadcasts the new
// order once.
func (s *ChannelService) Reorder(ctx context.Context, serverID, userID string, req *models.ReorderChannelsRequest) error {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageChannels); err != nil {
		return err
	}
	if err := s.channels.UpdatePositions(ctx, serverID, req.Positions); err != nil {
		return err
	}

	s.hub.BroadcastToServer(serverID, ws.Event{
		Op: ws.OpChannelReorder,
		Data: map[string]any{
			"server_id": serverID,
			"positions": req.Positions,
		},
	})
	return nil
}
