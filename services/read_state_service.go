package services

import (
	"context"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/repository"
)

// ReadStateService maintains per-user read watermarks for the sidebar unread
// badges. Acking is idempotent: re-acking the same message changes nothing.
type ReadStateService struct {
	readStates repository.ReadStateRepository
	channels   repository.ChannelRepository
	perms      *ChannelPermissionService
}

func NewReadStateService(
	readStates repository.ReadStateRepository,
	channels repository.ChannelRepository,
	perms *ChannelPermissionService,
) *ReadStateService {
	return &ReadStateService{readStates: readStates, channels: channels, perms: perms}
}

// MarkRead advances the channel watermark to the given message.
func (s *ReadStateService) MarkRead(ctx context.Context, channelID, userID string, req *models.MarkReadRequest) error {
	if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermViewChannel); err != nil {
		return err
	}
	var messageID *string
	if req.MessageID != "" {
		messageID = &req.MessageID
	}
	return s.readStates.Upsert(ctx, userID, channelID, messageID)
}

// visibleTextChannelIDs lists the server's text channels the user can read.
func (s *ReadStateService) visibleTextChannelIDs(ctx context.Context, serverID, userID string) ([]string, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}
	channels, err := s.channels.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch.Type != models.ChannelTypeText {
			continue
		}
		mask, err := s.perms.ResolveChannel(ctx, ch.ID, userID)
		if err != nil {
			continue
		}
		if mask.Has(models.PermViewChannel) {
			ids = append(ids, ch.ID)
		}
	}
	return ids, nil
}

// UnreadCounts returns the unread badge data for one server's channels.
func (s *ReadStateService) UnreadCounts(ctx context.Context, serverID, userID string) (map[string]models.UnreadInfo, error) {
	ids, err := s.visibleTextChannelIDs(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.readStates.UnreadCounts(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[string]models.UnreadInfo{}
	}
	return counts, nil
}

// MarkServerRead acks every visible text channel of a server at once.
func (s *ReadStateService) MarkServerRead(ctx context.Context, serverID, userID string) error {
	ids, err := s.visibleTextChannelIDs(ctx, serverID, userID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.readStates.MarkAllRead(ctx, userID, ids)
}
