package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/ratelimit"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// maxHistoryPageSize caps one history fetch.
const maxHistoryPageSize = 100

// mentionPattern matches @username tokens. Username charset mirrors the
// registration validator.
var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9_]{3,32})`)

// MessageService handles channel message lifecycle: create with mention
// resolution and attachment linking, history paging, edit and delete.
type MessageService struct {
	messages    repository.MessageRepository
	attachments repository.AttachmentRepository
	reactions   repository.ReactionRepository
	mentions    repository.MentionRepository
	channels    repository.ChannelRepository
	members     repository.MemberRepository
	users       repository.UserRepository
	perms       *ChannelPermissionService
	limiter     *ratelimit.MessageRateLimiter
	hub         ws.EventPublisher
}

func NewMessageService(
	messages repository.MessageRepository,
	attachments repository.AttachmentRepository,
	reactions repository.ReactionRepository,
	mentions repository.MentionRepository,
	channels repository.ChannelRepository,
	members repository.MemberRepository,
	users repository.UserRepository,
	perms *ChannelPermissionService,
	limiter *ratelimit.MessageRateLimiter,
	hub ws.EventPublisher,
) *MessageService {
	return &MessageService{
		messages:    messages,
		attachments: attachments,
		reactions:   reactions,
		mentions:    mentions,
		channels:    channels,
		members:     members,
		users:       users,
		perms:       perms,
		limiter:     limiter,
		hub:         hub,
	}
}

// Create persists a message, resolves mentions, links pre-uploaded
// attachments, and broadcasts message_create to users who can see the channel.
func (s *MessageService) Create(ctx context.Context, channelID, userID string, req *models.CreateMessageRequest, attachments []models.Attachment) (*models.Message, error) {
	mask, err := s.perms.ResolveChannel(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if !mask.Has(models.PermViewChannel) || !mask.Has(models.PermSendMessages) {
		return nil, fmt.Errorf("%w: missing required permission", pkg.ErrForbidden)
	}
	if !s.limiter.Allow(userID) {
		return nil, fmt.Errorf("%w: slow down, try again in %d seconds",
			pkg.ErrRateLimited, s.limiter.CooldownSeconds(userID))
	}

	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != models.ChannelTypeText {
		return nil, fmt.Errorf("%w: messages belong in text channels", pkg.ErrInvalidInput)
	}
	if req.ReplyToID != nil {
		ref, err := s.messages.GetByID(ctx, *req.ReplyToID)
		if err != nil {
			return nil, fmt.Errorf("%w: replied-to message not found", pkg.ErrInvalidInput)
		}
		if ref.ChannelID != channelID {
			return nil, fmt.Errorf("%w: reply must stay in the same channel", pkg.ErrInvalidInput)
		}
	}

	message := &models.Message{
		ChannelID: channelID,
		UserID:    userID,
		ReplyToID: req.ReplyToID,
	}
	if req.Content != "" {
		message.Content = &req.Content
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	for i := range attachments {
		attachments[i].MessageID = message.ID
		if err := s.attachments.Create(ctx, &attachments[i]); err != nil {
			return nil, err
		}
	}

	mentioned, err := s.resolveMentions(ctx, channel.ServerID, req.Content, mask)
	if err != nil {
		return nil, err
	}
	if err := s.mentions.Save(ctx, message.ID, mentioned); err != nil {
		return nil, err
	}
	message.Mentions = mentioned

	if err := s.enrich(ctx, message); err != nil {
		return nil, err
	}

	s.hub.BroadcastToChannelViewers(channelID, ws.Event{Op: ws.OpMessageCreate, Data: message})
	return message, nil
}

// resolveMentions maps @username tokens to user ids. @everyone expands to the
// whole member list, but only when the author holds the permission; without
// it the token is plain text.
func (s *MessageService) resolveMentions(ctx context.Context, serverID, content string, mask models.Permission) ([]string, error) {
	if content == "" {
		return nil, nil
	}
	if strings.Contains(content, "@everyone") && mask.Has(models.PermMentionEveryone) {
		return s.members.ListUserIDs(ctx, serverID)
	}

	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	users, err := s.users.GetByUsernames(ctx, names)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// enrich loads the author, attachments, reactions and reply reference for one
// message.
func (s *MessageService) enrich(ctx context.Context, message *models.Message) error {
	page := []models.Message{*message}
	if err := s.enrichPage(ctx, page); err != nil {
		return err
	}
	*message = page[0]
	return nil
}

// enrichPage batch-loads the render extras for a page of messages.
func (s *MessageService) enrichPage(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]string, 0, len(messages))
	authorIDs := make([]string, 0, len(messages))
	refIDs := make([]string, 0)
	for i := range messages {
		ids = append(ids, messages[i].ID)
		authorIDs = append(authorIDs, messages[i].UserID)
		if messages[i].ReplyToID != nil {
			refIDs = append(refIDs, *messages[i].ReplyToID)
		}
	}

	authors, err := s.users.GetByIDs(ctx, authorIDs)
	if err != nil {
		return err
	}
	attachmentsByID, err := s.attachments.GetByMessageIDs(ctx, ids)
	if err != nil {
		return err
	}
	reactionsByID, err := s.reactions.GetByMessageIDs(ctx, ids)
	if err != nil {
		return err
	}
	mentionsByID, err := s.mentions.GetByMessageIDs(ctx, ids)
	if err != nil {
		return err
	}

	refs := make(map[string]*models.MessageReference, len(refIDs))
	for _, id := range refIDs {
		ref, err := s.messages.GetByID(ctx, id)
		if err != nil {
			continue // deleted reply target renders as a tombstone
		}
		var author *models.PublicUser
		if u, err := s.users.GetByID(ctx, ref.UserID); err == nil {
			author = u.Public()
		}
		refs[id] = &models.MessageReference{ID: ref.ID, Author: author, Content: ref.Content}
	}

	for i := range messages {
		m := &messages[i]
		if u := authors[m.UserID]; u != nil {
			m.Author = u.Public()
		}
		m.Attachments = attachmentsByID[m.ID]
		if m.Attachments == nil {
			m.Attachments = []models.Attachment{}
		}
		m.Reactions = reactionsByID[m.ID]
		if m.Reactions == nil {
			m.Reactions = []models.ReactionGroup{}
		}
		m.Mentions = mentionsByID[m.ID]
		if m.Mentions == nil {
			m.Mentions = []string{}
		}
		if m.ReplyToID != nil {
			m.ReferencedMessage = refs[*m.ReplyToID]
		}
	}
	return nil
}

// List pages channel history backwards from the cursor.
func (s *MessageService) List(ctx context.Context, channelID, userID, before string, limit int) (*models.MessagePage, error) {
	mask, err := s.perms.ResolveChannel(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if !mask.Has(models.PermViewChannel) || !mask.Has(models.PermReadMessages) {
		return nil, fmt.Errorf("%w: missing required permission", pkg.ErrForbidden)
	}

	if limit <= 0 || limit > maxHistoryPageSize {
		limit = 50
	}
	// Fetch one extra row to learn whether older history exists.
	messages, err := s.messages.ListByChannel(ctx, channelID, before, limit+1)
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
		messages = []models.Message{}
	}
	return &models.MessagePage{Messages: messages, HasMore: hasMore}, nil
}

// Get returns one enriched message.
func (s *MessageService) Get(ctx context.Context, channelID, messageID, userID string) (*models.Message, error) {
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
	if err := s.enrich(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// Update edits message content. Author only; moderators delete, they do not
// edit.
func (s *MessageService) Update(ctx context.Context, channelID, messageID, userID string, req *models.UpdateMessageRequest) (*models.Message, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.ChannelID != channelID {
		return nil, fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}
	if message.UserID != userID {
		return nil, fmt.Errorf("%w: only the author can edit a message", pkg.ErrForbidden)
	}

	updated, err := s.messages.UpdateContent(ctx, messageID, req.Content)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, updated); err != nil {
		return nil, err
	}

	s.hub.BroadcastToChannelViewers(channelID, ws.Event{Op: ws.OpMessageUpdate, Data: updated})
	return updated, nil
}

// Delete removes a message. Allowed for the author or anyone with
// manage-messages in the channel.
func (s *MessageService) Delete(ctx context.Context, channelID, messageID, userID string) error {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.ChannelID != channelID {
		return fmt.Errorf("%w: message not found", pkg.ErrNotFound)
	}
	if message.UserID != userID {
		if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermManageMessages); err != nil {
			return err
		}
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}

	s.hub.BroadcastToChannelViewers(channelID, ws.Event{
		Op:   ws.OpMessageDelete,
		Data: map[string]string{"id": messageID, "channel_id": channelID},
	})
	return nil
}
