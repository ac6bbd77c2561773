package services

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// PinService manages the per-channel pin board.
type PinService struct {
	pins     repository.PinRepository
	messages repository.MessageRepository
	perms    *ChannelPermissionService
	hub      ws.EventPublisher
	maxPins  int
}

func NewPinService(
	pins repository.PinRepository,
	messages repository.MessageRepository,
	perms *ChannelPermissionService,
	hub ws.EventPublisher,
	maxPins int,
) *PinService {
	return &PinService{pins: pins, messages: messages, perms: perms, hub: hub, maxPins: maxPins}
}

// Pin pins a message, capped per channel.
func (s *PinService) Pin(ctx context.Context, channelID, messageID, userID string) error {
	if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermManageMessages); err != nil {
		return err
	}
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.ChannelID != channelID {
		return fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}

	count, err := s.pins.CountByChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if count >= s.maxPins {
		return fmt.Errorf("%w: this channel already has %d pins", pkg.ErrCapacityExceeded, s.maxPins)
	}
	pin := &models.PinnedMessage{
		MessageID: messageID,
		ChannelID: channelID,
		PinnedBy:  userID,
	}
	if err := s.pins.Pin(ctx, pin); err != nil {
		return err
	}

	s.hub.BroadcastToChannelViewers(channelID, ws.Event{
		Op:   ws.OpMessagePin,
		Data: map[string]string{"message_id": messageID, "channel_id": channelID, "pinned_by": userID},
	})
	return nil
}

// Unpin removes a pin.
func (s *PinService) Unpin(ctx context.Context, channelID, messageID, userID string) error {
	if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermManageMessages); err != nil {
		return err
	}
	if err := s.pins.Unpin(ctx, messageID); err != nil {
		return err
	}

	s.hub.BroadcastToChannelViewers(channelID, ws.Event{
		Op:   ws.OpMessageUnpin,
		Data: map[string]string{"message_id": messageID, "channel_id": channelID},
	})
	return nil
}

// List returns the channel's pins, newest pin first.
func (s *PinService) List(ctx context.Context, channelID, userID string) ([]models.PinnedMessageWithDetails, error) {
	if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermReadMessages); err != nil {
		return nil, err
	}
	pins, err := s.pins.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if pins == nil {
		pins = []models.PinnedMessageWithDetails{}
	}
	return pins, nil
}
