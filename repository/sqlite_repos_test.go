package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
)

// openTestDB migrates a fresh SQLite file in a temp dir. Real migrations,
// real driver; only the file location is synthetic.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestUser(t *testing.T, db *database.DB, username string) *models.User {
	t.Helper()
	users := NewSQLiteUserRepo(db.Conn)
	u := &models.User{
		Username:     username,
		PasswordHash: "x",
		Status:       models.UserStatusOffline,
		Language:     "en",
	}
	require.NoError(t, users.Create(context.Background(), u))
	require.NotEmpty(t, u.ID)
	return u
}

func createTestServer(t *testing.T, db *database.DB, ownerID string) *models.Server {
	t.Helper()
	servers := NewSQLiteServerRepo(db.Conn)
	s := &models.Server{Name: "test server", OwnerID: ownerID}
	require.NoError(t, servers.Create(context.Background(), s))
	return s
}

func createTestChannel(t *testing.T, db *database.DB, serverID string) *models.Channel {
	t.Helper()
	channels := NewSQLiteChannelRepo(db.Conn)
	c := &models.Channel{ServerID: serverID, Name: "general", Type: models.ChannelTypeText}
	require.NoError(t, channels.Create(context.Background(), c))
	return c
}

func TestUserRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	ctx := context.Background()

	created := createTestUser(t, db, "alice")

	got, err := users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.False(t, got.CreatedAt.IsZero())

	got, err = users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestUserRepoUsernameUniqueCaseInsensitive(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	ctx := context.Background()

	createTestUser(t, db, "alice")

	dup := &models.User{
		Username:     "ALICE",
		PasswordHash: "x",
		Status:       models.UserStatusOffline,
		Language:     "en",
	}
	err := users.Create(ctx, dup)
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
}

func TestMemberRepoMembership(t *testing.T) {
	db := openTestDB(t)
	members := NewSQLiteMemberRepo(db.Conn)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	joiner := createTestUser(t, db, "joiner")
	server := createTestServer(t, db, owner.ID)

	require.NoError(t, members.Add(ctx, &models.ServerMember{ServerID: server.ID, UserID: owner.ID}))
	require.NoError(t, members.Add(ctx, &models.ServerMember{ServerID: server.ID, UserID: joiner.ID, Position: 1}))

	ok, err := members.IsMember(ctx, server.ID, joiner.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := members.ListUserIDs(ctx, server.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{owner.ID, joiner.ID}, ids)

	count, err := members.Count(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, members.Remove(ctx, server.ID, joiner.ID))
	ok, err = members.IsMember(ctx, server.ID, joiner.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageRepoCursorPaging(t *testing.T) {
	db := openTestDB(t)
	messages := NewSQLiteMessageRepo(db.Conn)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	server := createTestServer(t, db, owner.ID)
	channel := createTestChannel(t, db, server.ID)

	all := make(map[string]bool)
	for i := 0; i < 5; i++ {
		content := "hello"
		m := &models.Message{ChannelID: channel.ID, UserID: owner.ID, Content: &content}
		require.NoError(t, messages.Create(ctx, m))
		all[m.ID] = true
	}

	page, err := messages.ListByChannel(ctx, channel.ID, "", 10)
	require.NoError(t, err)
	require.Len(t, page, 5)

	// Everything strictly before the cursor, cursor excluded.
	cursor := page[2].ID
	older, err := messages.ListByChannel(ctx, channel.ID, cursor, 10)
	require.NoError(t, err)
	require.Len(t, older, 2)
	for _, m := range older {
		assert.True(t, all[m.ID])
		assert.NotEqual(t, cursor, m.ID)
	}

	// The limit caps the page.
	capped, err := messages.ListByChannel(ctx, channel.ID, "", 3)
	require.NoError(t, err)
	assert.Len(t, capped, 3)
}

func TestMessageRepoUpdateSetsEditedAt(t *testing.T) {
	db := openTestDB(t)
	messages := NewSQLiteMessageRepo(db.Conn)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	server := createTestServer(t, db, owner.ID)
	channel := createTestChannel(t, db, server.ID)

	content := "tpyo"
	m := &models.Message{ChannelID: channel.ID, UserID: owner.ID, Content: &content}
	require.NoError(t, messages.Create(ctx, m))
	require.Nil(t, m.EditedAt)

	updated, err := messages.UpdateContent(ctx, m.ID, "typo")
	require.NoError(t, err)
	assert.Equal(t, "typo", *updated.Content)
	assert.NotNil(t, updated.EditedAt)

	require.NoError(t, messages.Delete(ctx, m.ID))
	_, err = messages.GetByID(ctx, m.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestFriendshipRepoPairIsOrientationBlind(t *testing.T) {
	db := openTestDB(t)
	friends := NewSQLiteFriendshipRepo(db.Conn)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	f := &models.Friendship{UserID: alice.ID, FriendID: bob.ID, Status: models.FriendshipStatusPending}
	require.NoError(t, friends.Create(ctx, f))

	got, err := friends.GetByPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	got, err = friends.GetByPair(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	require.NoError(t, friends.UpdateStatus(ctx, f.ID, models.FriendshipStatusAccepted))
	got, err = friends.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusAccepted, got.Status)
}

func TestReactionRepoToggle(t *testing.T) {
	db := openTestDB(t)
	reactions := NewSQLiteReactionRepo(db.Conn)
	messages := NewSQLiteMessageRepo(db.Conn)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	server := createTestServer(t, db, owner.ID)
	channel := createTestChannel(t, db, server.ID)

	content := "react to me"
	m := &models.Message{ChannelID: channel.ID, UserID: owner.ID, Content: &content}
	require.NoError(t, messages.Create(ctx, m))

	added, err := reactions.Toggle(ctx, m.ID, owner.ID, "👍")
	require.NoError(t, err)
	assert.True(t, added)

	groups, err := reactions.GetByMessageID(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "👍", groups[0].Emoji)
	assert.Equal(t, 1, groups[0].Count)

	// Reacting again removes it.
	added, err = reactions.Toggle(ctx, m.ID, owner.ID, "👍")
	require.NoError(t, err)
	assert.False(t, added)

	groups, err = reactions.GetByMessageID(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestBanRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	bans := NewSQLiteBanRepo(db.Conn)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	outcast := createTestUser(t, db, "outcast")
	server := createTestServer(t, db, owner.ID)

	reason := "spam"
	ban := &models.Ban{
		ServerID: server.ID,
		UserID:   outcast.ID,
		Username: outcast.Username,
		BannedBy: owner.ID,
		Reason:   &reason,
	}
	require.NoError(t, bans.Create(ctx, ban))
	assert.False(t, ban.CreatedAt.IsZero())

	// (server_id, user_id) is the primary key.
	err := bans.Create(ctx, &models.Ban{
		ServerID: server.ID,
		UserID:   outcast.ID,
		Username: outcast.Username,
		BannedBy: owner.ID,
	})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)

	banned, err := bans.Exists(ctx, server.ID, outcast.ID)
	require.NoError(t, err)
	assert.True(t, banned)

	list, err := bans.ListByServer(ctx, server.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, outcast.ID, list[0].UserID)
	assert.Equal(t, "outcast", list[0].Username)
	require.NotNil(t, list[0].Reason)
	assert.Equal(t, "spam", *list[0].Reason)

	require.NoError(t, bans.Delete(ctx, server.ID, outcast.ID))
	banned, err = bans.Exists(ctx, server.ID, outcast.ID)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestReadStateMarkAllRead(t *testing.T) {
	db := openTestDB(t)
	reads := NewSQLiteReadStateRepo(db.Conn)
	messages := NewSQLiteMessageRepo(db.Conn)
	channels := NewSQLiteChannelRepo(db.Conn)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	reader := createTestUser(t, db, "reader")
	server := createTestServer(t, db, owner.ID)

	first := createTestChannel(t, db, server.ID)
	second := &models.Channel{ServerID: server.ID, Name: "random", Type: models.ChannelTypeText}
	require.NoError(t, channels.Create(ctx, second))

	for _, ch := range []string{first.ID, second.ID} {
		content := "unread"
		m := &models.Message{ChannelID: ch, UserID: owner.ID, Content: &content}
		require.NoError(t, messages.Create(ctx, m))
	}

	ids := []string{first.ID, second.ID}
	counts, err := reads.UnreadCounts(ctx, reader.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[first.ID].UnreadCount)
	assert.Equal(t, 1, counts[second.ID].UnreadCount)

	// One statement acks both channels at their newest message.
	require.NoError(t, reads.MarkAllRead(ctx, reader.ID, ids))

	counts, err = reads.UnreadCounts(ctx, reader.ID, ids)
	require.NoError(t, err)
	assert.Empty(t, counts)

	require.NoError(t, reads.MarkAllRead(ctx, reader.ID, nil))
}

func TestChannelPermRepoUpsert(t *testing.T) {
	db := openTestDB(t)
	overrides := NewSQLiteChannelPermRepo(db.Conn)
	roles := NewSQLiteRoleRepo(db.Conn)
	ctx := context.Background()

	owner := createTestUser(t, db, "owner")
	server := createTestServer(t, db, owner.ID)
	channel := createTestChannel(t, db, server.ID)

	role := &models.Role{ServerID: server.ID, Name: "muted", Color: "#888888"}
	require.NoError(t, roles.Create(ctx, role))

	require.NoError(t, overrides.Set(ctx, &models.ChannelPermissionOverride{
		ChannelID: channel.ID,
		RoleID:    role.ID,
		Deny:      models.PermSendMessages,
	}))
	// Upsert replaces, never duplicates.
	require.NoError(t, overrides.Set(ctx, &models.ChannelPermissionOverride{
		ChannelID: channel.ID,
		RoleID:    role.ID,
		Allow:     models.PermManageMessages,
	}))

	got, err := overrides.GetByChannelAndRoles(ctx, channel.ID, []string{role.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.PermManageMessages, got[0].Allow)
	assert.Equal(t, models.Permission(0), got[0].Deny)

	require.NoError(t, overrides.Delete(ctx, channel.ID, role.ID))
	got, err = overrides.GetByChannel(ctx, channel.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
