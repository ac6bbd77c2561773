package services

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/ratelimit"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// DMService mirrors channel messaging for one-to-one conversations: channel
// bootstrap, messages, reactions and pins. Every broadcast targets exactly the
// two participants.
type DMService struct {
	dms     repository.DMRepository
	users   repository.UserRepository
	limiter *ratelimit.MessageRateLimiter
	hub     ws.EventPublisher
}

func NewDMService(
	dms repository.DMRepository,
	users repository.UserRepository,
	limiter *ratelimit.MessageRateLimiter,
	hub ws.EventPublisher,
) *DMService {
	return &DMService{dms: dms, users: users, limiter: limiter, hub: hub}
}

// channelFor loads the channel and verifies the caller participates.
func (s *DMService) channelFor(ctx context.Context, channelID, userID string) (*models.DMChannel, error) {
	channel, err := s.dms.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !channel.Includes(userID) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
	}
	return channel, nil
}

// participants returns both sides of a channel.
func participants(channel *models.DMChannel) []string {
	return []string{channel.User1ID, channel.User2ID}
}

// OpenChannel returns the conversation with another user, creating it on
// first contact. Both sides learn about a brand-new channel immediately.
func (s *DMService) OpenChannel(ctx context.Context, userID string, req *models.CreateDMChannelRequest) (*models.DMChannelWithUser, error) {
	other, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	channel, err := s.dms.GetOrCreateChannel(ctx, userID, req.UserID)
	if err != nil {
		return nil, err
	}

	view := &models.DMChannelWithUser{
		ID:            channel.ID,
		OtherUser:     other.Public(),
		CreatedAt:     channel.CreatedAt,
		LastMessageAt: channel.LastMessageAt,
	}

	if self, err := s.users.GetByID(ctx, userID); err == nil {
		s.hub.BroadcastToUser(req.UserID, ws.Event{
			Op: ws.OpDMChannelCreate,
			Data: &models.DMChannelWithUser{
				ID:            channel.ID,
				OtherUser:     self.Public(),
				CreatedAt:     channel.CreatedAt,
				LastMessageAt: channel.LastMessageAt,
			},
		})
	}
	return view, nil
}

// ListChannels returns the DM sidebar, most recent activity first.
func (s *DMService) ListChannels(ctx context.Context, userID string) ([]models.DMChannelWithUser, error) {
	channels, err := s.dms.ListChannels(ctx, userID)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []models.DMChannelWithUser{}
	}
	return channels, nil
}

// CreateMessage sends a DM and delivers it to both participants.
func (s *DMService) CreateMessage(ctx context.Context, channelID, userID string, req *models.CreateDMMessageRequest, attachments []models.DMAttachment) (*models.DMMessage, error) {
	channel, err := s.channelFor(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if !s.limiter.Allow(userID) {
		return nil, fmt.Errorf("%w: slow down, try again in %d seconds",
			pkg.ErrRateLimited, s.limiter.CooldownSeconds(userID))
	}
	if req.ReplyToID != nil {
		ref, err := s.dms.GetMessage(ctx, *req.ReplyToID)
		if err != nil || ref.DMChannelID != channelID {
			return nil, fmt.Errorf("%w: replied-to message not found", pkg.ErrInvalidInput)
		}
	}

	message := &models.DMMessage{
		DMChannelID: channelID,
		UserID:      userID,
		ReplyToID:   req.ReplyToID,
	}
	if req.Content != "" {
		message.Content = &req.Content
	}
	if err := s.dms.CreateMessage(ctx, message); err != nil {
		return nil, err
	}
	for i := range attachments {
		attachments[i].DMMessageID = message.ID
		if err := s.dms.CreateAttachment(ctx, &attachments[i]); err != nil {
			return nil, err
		}
	}

	if err := s.enrich(ctx, message); err != nil {
		return nil, err
	}
	s.hub.BroadcastToUsers(participants(channel), ws.Event{Op: ws.OpDMMessageCreate, Data: message})
	return message, nil
}

// enrich loads the render extras for one DM message.
func (s *DMService) enrich(ctx context.Context, message *models.DMMessage) error {
	page := []models.DMMessage{*message}
	if err := s.enrichPage(ctx, page); err != nil {
		return err
	}
	*message = page[0]
	return nil
}

func (s *DMService) enrichPage(ctx context.Context, messages []models.DMMessage) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]string, 0, len(messages))
	authorIDs := make([]string, 0, len(messages))
	for i := range messages {
		ids = append(ids, messages[i].ID)
		authorIDs = append(authorIDs, messages[i].UserID)
	}

	authors, err := s.users.GetByIDs(ctx, authorIDs)
	if err != nil {
		return err
	}
	attachmentsByID, err := s.dms.GetAttachmentsByMessageIDs(ctx, ids)
	if err != nil {
		return err
	}
	reactionsByID, err := s.dms.GetReactionsByMessageIDs(ctx, ids)
	if err != nil {
		return err
	}

	for i := range messages {
		m := &messages[i]
		if u := authors[m.UserID]; u != nil {
			m.Author = u.Public()
		}
		m.Attachments = attachmentsByID[m.ID]
		if m.Attachments == nil {
			m.Attachments = []models.DMAttachment{}
		}
		m.Reactions = reactionsByID[m.ID]
		if m.Reactions == nil {
			m.Reactions = []models.ReactionGroup{}
		}
		if m.ReplyToID != nil {
			if ref, err := s.dms.GetMessage(ctx, *m.ReplyToID); err == nil {
				var author *models.PublicUser
				if u, err := s.users.GetByID(ctx, ref.UserID); err == nil {
					author = u.Public()
				}
				m.ReferencedMessage = &models.MessageReference{ID: ref.ID, Author: author, Content: ref.Content}
			}
		}
	}
	return nil
}

// ListMessages pages DM history backwards from the cursor.
func (s *DMService) ListMessages(ctx context.Context, channelID, userID, before string, limit int) (*models.DMMessagePage, error) {
	if _, err := s.channelFor(ctx, channelID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistoryPageSize {
		limit = 50
	}
	messages, err := s.dms.ListMessages(ctx, channelID, before, limit+1)
	if err != nil {
		return nil, err
	}
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[1:]
	}
	if err := s.enrichPage(ctx, messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.DMMessage{}
	}
	return &models.DMMessagePage{Messages: messages, HasMore: hasMore}, nil
}

// UpdateMessage edits a DM. Author only.
func (s *DMService) UpdateMessage(ctx context.Context, channelID, messageID, userID string, req *models.UpdateDMMessageRequest) (*models.DMMessage, error) {
	channel, err := s.channelFor(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	message, err := s.dms.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.DMChannelID != channelID {
		return nil, fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}
	if message.UserID != userID {
		return nil, fmt.Errorf("%w: only the author can edit a message", pkg.ErrForbidden)
	}

	updated, err := s.dms.UpdateMessageContent(ctx, messageID, req.Content)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, updated); err != nil {
		return nil, err
	}

	s.hub.BroadcastToUsers(participants(channel), ws.Event{Op: ws.OpDMMessageUpdate, Data: updated})
	return updated, nil
}

// DeleteMessage removes a DM. Author only; there is no moderator in a DM.
func (s *DMService) DeleteMessage(ctx context.Context, channelID, messageID, userID string) error {
	channel, err := s.channelFor(ctx, channelID, userID)
	if err != nil {
		return err
	}
	message, err := s.dms.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.DMChannelID != channelID {
		return fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}
	if message.UserID != userID {
		return fmt.Errorf("%w: only the author can delete a message", pkg.ErrForbidden)
	}
	if err := s.dms.DeleteMessage(ctx, messageID); err != nil {
		return err
	}

	s.hub.BroadcastToUsers(participants(channel), ws.Event{
		Op:   ws.OpDMMessageDelete,
		Data: map[string]string{"id": messageID, "dm_channel_id": channelID},
	})
	return nil
}

// ToggleReaction flips the caller's reaction and broadcasts the full
// post-toggle group list.
func (s *DMService) ToggleReaction(ctx context.Context, channelID, messageID, userID string, req *models.ToggleDMReactionRequest) ([]models.ReactionGroup, error) {
	channel, err := s.channelFor(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	message, err := s.dms.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.DMChannelID != channelID {
		return nil, fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}

	if _, err := s.dms.ToggleReaction(ctx, messageID, userID, req.Emoji); err != nil {
		return nil, err
	}
	groups, err := s.dms.GetReactionsByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToUsers(participants(channel), ws.Event{
		Op: ws.OpDMReactionUpdate,
		Data: map[string]any{
			"message_id":    messageID,
			"dm_channel_id": channelID,
			"reactions":     groups,
		},
	})
	return groups, nil
}

// PinMessage pins a DM message. Either participant may pin.
func (s *DMService) PinMessage(ctx context.Context, channelID, messageID, userID string) error {
	channel, err := s.channelFor(ctx, channelID, userID)
	if err != nil {
		return err
	}
	message, err := s.dms.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.DMChannelID != channelID {
		return fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}
	if err := s.dms.PinMessage(ctx, messageID); err != nil {
		return err
	}

	s.hub.BroadcastToUsers(participants(channel), ws.Event{
		Op:   ws.OpDMMessagePin,
		Data: map[string]string{"message_id": messageID, "dm_channel_id": channelID},
	})
	return nil
}

// UnpinMessage removes a DM pin.
func (s *DMService) UnpinMessage(ctx context.Context, channelID, messageID, userID string) error {
	channel, err := s.channelFor(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if err := s.dms.UnpinMessage(ctx, messageID); err != nil {
		return err
	}

	s.hub.BroadcastToUsers(participants(channel), ws.Event{
		Op:   ws.OpDMMessageUnpin,
		Data: map[string]string{"message_id": messageID, "dm_channel_id": channelID},
	})
	return nil
}

// ListPinnedMessages returns the conversation's pins.
func (s *DMService) ListPinnedMessages(ctx context.Context, channelID, userID string) ([]models.DMMessage, error) {
	if _, err := s.channelFor(ctx, channelID, userID); err != nil {
		return nil, err
	}
	pins, err := s.dms.ListPinnedMessages(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.enrichPage(ctx, pins); err != nil {
		return nil, err
	}
	if pins == nil {
		pins = []models.DMMessage{}
	}
	return pins, nil
}
