package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/ratelimit"
	"github.com/chorushq/chorus/ws"
)

// messageFixture layers a MessageService over a real permission engine and
// in-memory stores. The rate limiter is generous unless a test swaps it.
type messageFixture struct {
	*permFixture

	svc      *MessageService
	messages *fakeMessageRepo
	atts     *fakeAttachmentRepo
	mentions *fakeMentionRepo
	users    *fakeUserRepo

	author *models.User
}

func newMessageFixture(t *testing.T, perMinute int) *messageFixture {
	t.Helper()

	f := &messageFixture{
		permFixture: newPermFixture(t),
		messages:    newFakeMessageRepo(),
		atts:        newFakeAttachmentRepo(),
		mentions:    newFakeMentionRepo(),
		users:       newFakeUserRepo(),
	}

	limiter := ratelimit.NewMessageRateLimiter(perMinute, time.Minute, time.Minute)
	t.Cleanup(limiter.Close)

	f.svc = NewMessageService(
		f.messages, f.atts, newFakeReactionRepo(), f.mentions,
		f.channels, f.members, f.users, f.permFixture.svc, limiter, f.hub)

	f.author = f.users.add(&models.User{ID: f.memberID, Username: "alice"})
	return f
}

func (f *messageFixture) send(t *testing.T, content string) *models.Message {
	t.Helper()
	msg, err := f.svc.Create(context.Background(), f.channel.ID, f.memberID,
		&models.CreateMessageRequest{Content: content}, nil)
	require.NoError(t, err)
	return msg
}

func TestMessageCreateBroadcastsEnriched(t *testing.T) {
	f := newMessageFixture(t, 100)

	msg := f.send(t, "hello there")
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hello there", *msg.Content)
	require.NotNil(t, msg.Author)
	assert.Equal(t, "alice", msg.Author.Username)
	assert.NotNil(t, msg.Attachments)
	assert.NotNil(t, msg.Reactions)

	events := f.hub.eventsWithOp(ws.OpMessageCreate)
	require.Len(t, events, 1)
	assert.Equal(t, "channel", events[0].scope)
	assert.Equal(t, f.channel.ID, events[0].target)
}

func TestMessageCreateRequiresSendPermission(t *testing.T) {
	f := newMessageFixture(t, 100)

	require.NoError(t, f.perms.Set(context.Background(), &models.ChannelPermissionOverride{
		ChannelID: f.channel.ID,
		RoleID:    f.defaultRole.ID,
		Deny:      models.PermSendMessages,
	}))

	_, err := f.svc.Create(context.Background(), f.channel.ID, f.memberID,
		&models.CreateMessageRequest{Content: "nope"}, nil)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestMessageCreateRejectsVoiceChannel(t *testing.T) {
	f := newMessageFixture(t, 100)

	voice := f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "voice",
		Type:     models.ChannelTypeVoice,
	})

	_, err := f.svc.Create(context.Background(), voice.ID, f.memberID,
		&models.CreateMessageRequest{Content: "hello"}, nil)
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)
}

func TestMessageCreateReplyMustStayInChannel(t *testing.T) {
	f := newMessageFixture(t, 100)
	ctx := context.Background()

	other := f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "other",
		Type:     models.ChannelTypeText,
	})
	foreign := &models.Message{ChannelID: other.ID, UserID: f.ownerID}
	require.NoError(t, f.messages.Create(ctx, foreign))

	_, err := f.svc.Create(ctx, f.channel.ID, f.memberID,
		&models.CreateMessageRequest{Content: "re", ReplyToID: &foreign.ID}, nil)
	assert.ErrorIs(t, err, pkg.ErrInvalidInput)
}

func TestMessageCreateRateLimited(t *testing.T) {
	f := newMessageFixture(t, 2)

	f.send(t, "one")
	f.send(t, "two")

	_, err := f.svc.Create(context.Background(), f.channel.ID, f.memberID,
		&models.CreateMessageRequest{Content: "three"}, nil)
	assert.ErrorIs(t, err, pkg.ErrRateLimited)
}

func TestMessageCreateResolvesMentions(t *testing.T) {
	f := newMessageFixture(t, 100)

	bob := f.users.add(&models.User{Username: "bobby"})

	msg := f.send(t, "ping @bobby and @ghost")
	assert.Equal(t, []string{bob.ID}, msg.Mentions)
}

func TestMessageCreateEveryoneNeedsPermission(t *testing.T) {
	f := newMessageFixture(t, 100)

	// Without the bit @everyone stays plain text.
	msg := f.send(t, "hey @everyone")
	assert.Empty(t, msg.Mentions)

	// The owner holds every bit, so it expands to the member list.
	f.users.add(&models.User{ID: f.ownerID, Username: "owner"})
	ownerMsg, err := f.svc.Create(context.Background(), f.channel.ID, f.ownerID,
		&models.CreateMessageRequest{Content: "hi @everyone"}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{f.ownerID, f.memberID}, ownerMsg.Mentions)
}

func TestMessageCreateLinksAttachments(t *testing.T) {
	f := newMessageFixture(t, 100)

	atts := []models.Attachment{{Filename: "cat.png", FileURL: "/uploads/cat.png"}}
	msg, err := f.svc.Create(context.Background(), f.channel.ID, f.memberID,
		&models.CreateMessageRequest{Content: "", HasFiles: true}, atts)
	require.NoError(t, err)

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "cat.png", msg.Attachments[0].Filename)
	assert.Equal(t, msg.ID, msg.Attachments[0].MessageID)
	assert.Nil(t, msg.Content)
}

func TestMessageListPagesBackwards(t *testing.T) {
	f := newMessageFixture(t, 100)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.send(t, fmt.Sprintf("msg %d", i)).ID)
	}

	page, err := f.svc.List(ctx, f.channel.ID, f.memberID, "", 2)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, ids[3], page.Messages[0].ID)
	assert.Equal(t, ids[4], page.Messages[1].ID)

	page, err = f.svc.List(ctx, f.channel.ID, f.memberID, ids[3], 10)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, ids[0], page.Messages[0].ID)
}

func TestMessageListRequiresReadPermission(t *testing.T) {
	f := newMessageFixture(t, 100)

	require.NoError(t, f.perms.Set(context.Background(), &models.ChannelPermissionOverride{
		ChannelID: f.channel.ID,
		RoleID:    f.defaultRole.ID,
		Deny:      models.PermReadMessages,
	}))

	_, err := f.svc.List(context.Background(), f.channel.ID, f.memberID, "", 10)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestMessageUpdateAuthorOnly(t *testing.T) {
	f := newMessageFixture(t, 100)
	ctx := context.Background()

	msg := f.send(t, "tpyo")

	_, err := f.svc.Update(ctx, f.channel.ID, msg.ID, f.ownerID,
		&models.UpdateMessageRequest{Content: "typo"})
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	updated, err := f.svc.Update(ctx, f.channel.ID, msg.ID, f.memberID,
		&models.UpdateMessageRequest{Content: "typo"})
	require.NoError(t, err)
	assert.Equal(t, "typo", *updated.Content)
	assert.Len(t, f.hub.eventsWithOp(ws.OpMessageUpdate), 1)
}

func TestMessageDeleteByAuthorOrModerator(t *testing.T) {
	f := newMessageFixture(t, 100)
	ctx := context.Background()

	f.users.add(&models.User{ID: f.ownerID, Username: "owner"})
	msg := f.send(t, "delete me")

	// A plain member who is not the author cannot delete.
	outsider := f.users.add(&models.User{Username: "carol"})
	f.members.add(f.server.ID, outsider.ID)
	err := f.svc.Delete(ctx, f.channel.ID, msg.ID, outsider.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	// The owner holds ManageMessages.
	require.NoError(t, f.svc.Delete(ctx, f.channel.ID, msg.ID, f.ownerID))

	events := f.hub.eventsWithOp(ws.OpMessageDelete)
	require.Len(t, events, 1)
	ref := events[0].event.Data.(map[string]string)
	assert.Equal(t, msg.ID, ref["id"])

	_, err = f.messages.GetByID(ctx, msg.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestMessageGetScopedToChannel(t *testing.T) {
	f := newMessageFixture(t, 100)
	ctx := context.Background()

	other := f.channels.add(&models.Channel{
		ServerID: f.server.ID,
		Name:     "other",
		Type:     models.ChannelTypeText,
	})
	msg := f.send(t, "here")

	_, err := f.svc.Get(ctx, other.ID, msg.ID, f.memberID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	got, err := f.svc.Get(ctx, f.channel.ID, msg.ID, f.memberID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
}
