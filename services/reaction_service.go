package services

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// ReactionService toggles emoji reactions. The broadcast always carries the
// full post-toggle group list for the message, so clients replace state
// instead of patching it.
type ReactionService struct {
	reactions repository.ReactionRepository
	messages  repository.MessageRepository
	perms     *ChannelPermissionService
	hub       ws.EventPublisher
}

func NewReactionService(
	reactions repository.ReactionRepository,
	messages repository.MessageRepository,
	perms *ChannelPermissionService,
	hub ws.EventPublisher,
) *ReactionService {
	return &ReactionService{reactions: reactions, messages: messages, perms: perms, hub: hub}
}

// Toggle adds the user's reaction when absent, removes it when present.
func (s *ReactionService) Toggle(ctx context.Context, channelID, messageID, userID string, req *models.ToggleReactionRequest) ([]models.ReactionGroup, error) {
	if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermReadMessages); err != nil {
		return nil, err
	}
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.ChannelID != channelID {
		return nil, fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}

	if _, err := s.reactions.Toggle(ctx, messageID, userID, req.Emoji); err != nil {
		return nil, err
	}
	groups, err := s.reactions.GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToChannelViewers(channelID, ws.Event{
		Op: ws.OpReactionUpdate,
		Data: map[string]any{
			"message_id": messageID,
			"channel_id": channelID,
			"reactions":  groups,
		},
	})
	return groups, nil
}
