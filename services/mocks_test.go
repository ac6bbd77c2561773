package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/ws"
)

// published is one recorded fan-out: the event plus the scope it targeted.
type published struct {
	scope   string // all, all_except, user, users, server, channel
	target  string
	targets []string
	event   ws.Event
}

// fakeHub records every publish instead of delivering it.
type fakeHub struct {
	mu           sync.Mutex
	events       []published
	online       map[string]bool
	disconnected []string
}

func newFakeHub() *fakeHub {
	return &fakeHub{online: make(map[string]bool)}
}

func (h *fakeHub) record(p published) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, p)
}

func (h *fakeHub) BroadcastToAll(event ws.Event) {
	h.record(published{scope: "all", event: event})
}

func (h *fakeHub) BroadcastToAllExcept(excludeUserID string, event ws.Event) {
	h.record(published{scope: "all_except", target: excludeUserID, event: event})
}

func (h *fakeHub) BroadcastToUser(userID string, event ws.Event) {
	h.record(published{scope: "user", target: userID, event: event})
}

func (h *fakeHub) BroadcastToUsers(userIDs []string, event ws.Event) {
	h.record(published{scope: "users", targets: userIDs, event: event})
}

func (h *fakeHub) BroadcastToServer(serverID string, event ws.Event) {
	h.record(published{scope: "server", target: serverID, event: event})
}

func (h *fakeHub) BroadcastToChannelViewers(channelID string, event ws.Event) {
	h.record(published{scope: "channel", target: channelID, event: event})
}

func (h *fakeHub) GetOnlineUserIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.online))
	for id, on := range h.online {
		if on {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *fakeHub) IsUserOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online[userID]
}

func (h *fakeHub) DisconnectUser(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, userID)
}

func (h *fakeHub) setOnline(userID string, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.online[userID] = on
}

// eventsWithOp returns every recorded publish carrying the given op.
func (h *fakeHub) eventsWithOp(op string) []published {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []published
	for _, p := range h.events {
		if p.event.Op == op {
			out = append(out, p)
		}
	}
	return out
}

func (h *fakeHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) add(u *models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.add(user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: user", pkg.ErrNotFound)
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user", pkg.ErrNotFound)
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email != nil && *u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user", pkg.ErrNotFound)
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, name := range usernames {
		for _, u := range r.users {
			if u.Username == name {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pkg.ErrNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return pkg.ErrNotFound
	}
	u.Status = status
	return nil
}

func (r *fakeUserRepo) UpdateAvatar(ctx context.Context, userID string, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return pkg.ErrNotFound
	}
	u.AvatarURL = &avatarURL
	return nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userID string, newPasswordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return pkg.ErrNotFound
	}
	u.PasswordHash = newPasswordHash
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) ListForAdmin(ctx context.Context, limit, offset int) ([]models.AdminUserListItem, error) {
	return nil, nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

// fakeServerRepo is an in-memory ServerRepository.
type fakeServerRepo struct {
	mu      sync.Mutex
	servers map[string]*models.Server
}

func newFakeServerRepo() *fakeServerRepo {
	return &fakeServerRepo{servers: make(map[string]*models.Server)}
}

func (r *fakeServerRepo) add(s *models.Server) *models.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	r.servers[s.ID] = s
	return s
}

func (r *fakeServerRepo) Create(ctx context.Context, server *models.Server) error {
	r.add(server)
	return nil
}

func (r *fakeServerRepo) GetByID(ctx context.Context, id string) (*models.Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.servers[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: server", pkg.ErrNotFound)
}

func (r *fakeServerRepo) ListByUser(ctx context.Context, userID string) ([]models.UserServer, error) {
	return nil, nil
}

func (r *fakeServerRepo) Update(ctx context.Context, server *models.Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[server.ID] = server
	return nil
}

func (r *fakeServerRepo) UpdateIcon(ctx context.Context, serverID string, iconURL string) error {
	return nil
}

func (r *fakeServerRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.servers, id)
	return nil
}

func (r *fakeServerRepo) Stats(ctx context.Context, serverID string) (*models.ServerStats, error) {
	return &models.ServerStats{}, nil
}

func (r *fakeServerRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.servers), nil
}

func (r *fakeServerRepo) ListForAdmin(ctx context.Context, limit, offset int) ([]models.AdminServerListItem, error) {
	return nil, nil
}

// fakeMemberRepo is an in-memory MemberRepository.
type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[string]map[string]*models.ServerMember // serverID -> userID
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[string]map[string]*models.ServerMember)}
}

func (r *fakeMemberRepo) add(serverID, userID string) {
	_ = r.Add(context.Background(), &models.ServerMember{ServerID: serverID, UserID: userID})
}

func (r *fakeMemberRepo) Add(ctx context.Context, member *models.ServerMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[member.ServerID] == nil {
		r.members[member.ServerID] = make(map[string]*models.ServerMember)
	}
	r.members[member.ServerID][member.UserID] = member
	return nil
}

func (r *fakeMemberRepo) Get(ctx context.Context, serverID, userID string) (*models.ServerMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[serverID][userID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: member", pkg.ErrNotFound)
}

func (r *fakeMemberRepo) IsMember(ctx context.Context, serverID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[serverID][userID]
	return ok, nil
}

func (r *fakeMemberRepo) ListUserIDs(ctx context.Context, serverID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.members[serverID]))
	for id := range r.members[serverID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeMemberRepo) ListByServer(ctx context.Context, serverID string) ([]models.ServerMember, map[string]*models.User, error) {
	return nil, nil, nil
}

func (r *fakeMemberRepo) Count(ctx context.Context, serverID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members[serverID]), nil
}

func (r *fakeMemberRepo) MaxPosition(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (r *fakeMemberRepo) UpdatePositions(ctx context.Context, userID string, items []models.PositionUpdate) error {
	return nil
}

func (r *fakeMemberRepo) Remove(ctx context.Context, serverID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[serverID], userID)
	return nil
}

// fakeRoleRepo is an in-memory RoleRepository. Assignments live in byUser,
// keyed serverID -> userID.
type fakeRoleRepo struct {
	mu     sync.Mutex
	roles  map[string]*models.Role
	byUser map[string]map[string][]string // serverID -> userID -> roleIDs
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		roles:  make(map[string]*models.Role),
		byUser: make(map[string]map[string][]string),
	}
}

func (r *fakeRoleRepo) add(role *models.Role) *models.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	r.roles[role.ID] = role
	return role
}

func (r *fakeRoleRepo) assign(serverID, userID, roleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[serverID] == nil {
		r.byUser[serverID] = make(map[string][]string)
	}
	r.byUser[serverID][userID] = append(r.byUser[serverID][userID], roleID)
}

func (r *fakeRoleRepo) GetByID(ctx context.Context, id string) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roles[id]; ok {
		cp := *role
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: role", pkg.ErrNotFound)
}

func (r *fakeRoleRepo) ListByServer(ctx context.Context, serverID string) ([]models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Role
	for _, role := range r.roles {
		if role.ServerID == serverID {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) GetDefault(ctx context.Context, serverID string) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.ServerID == serverID && role.IsDefault {
			cp := *role
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: default role", pkg.ErrNotFound)
}

func (r *fakeRoleRepo) GetByUser(ctx context.Context, serverID, userID string) ([]models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Role
	for _, role := range r.roles {
		if role.ServerID == serverID && role.IsDefault {
			out = append(out, *role)
		}
	}
	for _, roleID := range r.byUser[serverID][userID] {
		if role, ok := r.roles[roleID]; ok {
			out = append(out, *role)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) GetByUsers(ctx context.Context, serverID string, userIDs []string) (map[string][]models.Role, error) {
	out := make(map[string][]models.Role, len(userIDs))
	for _, id := range userIDs {
		roles, _ := r.GetByUser(ctx, serverID, id)
		out[id] = roles
	}
	return out, nil
}

func (r *fakeRoleRepo) MaxPosition(ctx context.Context, serverID string) (int, error) {
	return 0, nil
}

func (r *fakeRoleRepo) Create(ctx context.Context, role *models.Role) error {
	r.add(role)
	return nil
}

func (r *fakeRoleRepo) Update(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.ID] = role
	return nil
}

func (r *fakeRoleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, id)
	return nil
}

func (r *fakeRoleRepo) UpdatePositions(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	return nil
}

func (r *fakeRoleRepo) AssignToUser(ctx context.Context, serverID, userID, roleID string) error {
	r.assign(serverID, userID, roleID)
	return nil
}

func (r *fakeRoleRepo) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	return nil
}

// fakeChannelRepo is an in-memory ChannelRepository.
type fakeChannelRepo struct {
	mu       sync.Mutex
	channels map[string]*models.Channel
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{channels: make(map[string]*models.Channel)}
}

func (r *fakeChannelRepo) add(c *models.Channel) *models.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.channels[c.ID] = c
	return c
}

func (r *fakeChannelRepo) Create(ctx context.Context, channel *models.Channel) error {
	r.add(channel)
	return nil
}

func (r *fakeChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.channels[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: channel", pkg.ErrNotFound)
}

func (r *fakeChannelRepo) ListByServer(ctx context.Context, serverID string) ([]models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Channel
	for _, c := range r.channels {
		if c.ServerID == serverID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeChannelRepo) Update(ctx context.Context, channel *models.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel.ID] = channel
	return nil
}

func (r *fakeChannelRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, id)
	return nil
}

func (r *fakeChannelRepo) MaxPosition(ctx context.Context, serverID string, categoryID *string) (int, error) {
	return 0, nil
}

func (r *fakeChannelRepo) UpdatePositions(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	return nil
}

// fakeOverrideRepo is an in-memory ChannelPermissionRepository.
type fakeOverrideRepo struct {
	mu        sync.Mutex
	overrides map[string]map[string]models.ChannelPermissionOverride // channelID -> roleID
}

func newFakeOverrideRepo() *fakeOverrideRepo {
	return &fakeOverrideRepo{overrides: make(map[string]map[string]models.ChannelPermissionOverride)}
}

func (r *fakeOverrideRepo) GetByChannel(ctx context.Context, channelID string) ([]models.ChannelPermissionOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChannelPermissionOverride
	for _, o := range r.overrides[channelID] {
		out = append(out, o)
	}
	return out, nil
}

func (r *fakeOverrideRepo) GetByChannelAndRoles(ctx context.Context, channelID string, roleIDs []string) ([]models.ChannelPermissionOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChannelPermissionOverride
	for _, roleID := range roleIDs {
		if o, ok := r.overrides[channelID][roleID]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeOverrideRepo) Set(ctx context.Context, override *models.ChannelPermissionOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overrides[override.ChannelID] == nil {
		r.overrides[override.ChannelID] = make(map[string]models.ChannelPermissionOverride)
	}
	r.overrides[override.ChannelID][override.RoleID] = *override
	return nil
}

func (r *fakeOverrideRepo) Delete(ctx context.Context, channelID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides[channelID], roleID)
	return nil
}

// fakeFriendshipRepo is an in-memory FriendshipRepository.
type fakeFriendshipRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Friendship
}

func newFakeFriendshipRepo() *fakeFriendshipRepo {
	return &fakeFriendshipRepo{rows: make(map[string]*models.Friendship)}
}

func (r *fakeFriendshipRepo) Create(ctx context.Context, f *models.Friendship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	r.rows[f.ID] = f
	return nil
}

func (r *fakeFriendshipRepo) GetByID(ctx context.Context, id string) (*models.Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.rows[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: friendship", pkg.ErrNotFound)
}

func (r *fakeFriendshipRepo) GetByPair(ctx context.Context, userA, userB string) (*models.Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.rows {
		if (f.UserID == userA && f.FriendID == userB) || (f.UserID == userB && f.FriendID == userA) {
			cp := *f
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: friendship", pkg.ErrNotFound)
}

func (r *fakeFriendshipRepo) UpdateStatus(ctx context.Context, id string, status models.FriendshipStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.rows[id]
	if !ok {
		return pkg.ErrNotFound
	}
	f.Status = status
	return nil
}

func (r *fakeFriendshipRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *fakeFriendshipRepo) ListFriends(ctx context.Context, userID string) ([]models.FriendshipWithUser, error) {
	return nil, nil
}

func (r *fakeFriendshipRepo) ListPending(ctx context.Context, userID string) ([]models.FriendshipWithUser, error) {
	return nil, nil
}

// fakeSFUInstanceRepo is an in-memory SFUInstanceRepository. Tests only
// exercise the per-server lookup path.
type fakeSFUInstanceRepo struct {
	mu       sync.Mutex
	byServer map[string]*models.SFUInstance
}

func newFakeSFUInstanceRepo() *fakeSFUInstanceRepo {
	return &fakeSFUInstanceRepo{byServer: make(map[string]*models.SFUInstance)}
}

func (r *fakeSFUInstanceRepo) Create(ctx context.Context, inst *models.SFUInstance) error {
	return nil
}

func (r *fakeSFUInstanceRepo) GetByID(ctx context.Context, id string) (*models.SFUInstance, error) {
	return nil, pkg.ErrNotFound
}

func (r *fakeSFUInstanceRepo) GetByServerID(ctx context.Context, serverID string) (*models.SFUInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.byServer[serverID]; ok {
		cp := *inst
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: sfu instance", pkg.ErrNotFound)
}

func (r *fakeSFUInstanceRepo) List(ctx context.Context) ([]models.SFUInstance, error) {
	return nil, nil
}

func (r *fakeSFUInstanceRepo) LeastLoadedPlatformInstance(ctx context.Context) (*models.SFUInstance, error) {
	return nil, pkg.ErrNotFound
}

func (r *fakeSFUInstanceRepo) Update(ctx context.Context, inst *models.SFUInstance) error {
	return nil
}

func (r *fakeSFUInstanceRepo) Delete(ctx context.Context, id, dstInstanceID string) error {
	return nil
}

func (r *fakeSFUInstanceRepo) AssignServer(ctx context.Context, serverID string, instanceID *string) error {
	return nil
}

// fakeMessageRepo is an in-memory MessageRepository. Messages keep insert
// order; ListByChannel pages backwards like the SQL implementation.
type fakeMessageRepo struct {
	mu       sync.Mutex
	order    []string
	messages map[string]*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*models.Message)}
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	r.messages[msg.ID] = msg
	r.order = append(r.order, msg.ID)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: message", pkg.ErrNotFound)
}

func (r *fakeMessageRepo) ListByChannel(ctx context.Context, channelID, beforeID string, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var inChannel []string
	for _, id := range r.order {
		if m := r.messages[id]; m != nil && m.ChannelID == channelID {
			inChannel = append(inChannel, id)
		}
	}
	end := len(inChannel)
	if beforeID != "" {
		for i, id := range inChannel {
			if id == beforeID {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, 0, end-start)
	for _, id := range inChannel[start:end] {
		out = append(out, *r.messages[id])
	}
	return out, nil
}

func (r *fakeMessageRepo) UpdateContent(ctx context.Context, id, content string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	m.Content = &content
	cp := *m
	return &cp, nil
}

func (r *fakeMessageRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	return nil
}

// fakeAttachmentRepo is an in-memory AttachmentRepository.
type fakeAttachmentRepo struct {
	mu        sync.Mutex
	byMessage map[string][]models.Attachment
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{byMessage: make(map[string][]models.Attachment)}
}

func (r *fakeAttachmentRepo) Create(ctx context.Context, att *models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	r.byMessage[att.MessageID] = append(r.byMessage[att.MessageID], *att)
	return nil
}

func (r *fakeAttachmentRepo) GetByMessageID(ctx context.Context, messageID string) ([]models.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byMessage[messageID], nil
}

func (r *fakeAttachmentRepo) GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]models.Attachment)
	for _, id := range messageIDs {
		if atts := r.byMessage[id]; atts != nil {
			out[id] = atts
		}
	}
	return out, nil
}

// fakeReactionRepo is an in-memory ReactionRepository.
type fakeReactionRepo struct {
	mu        sync.Mutex
	byMessage map[string]map[string]map[string]bool // messageID -> emoji -> userID
}

func newFakeReactionRepo() *fakeReactionRepo {
	return &fakeReactionRepo{byMessage: make(map[string]map[string]map[string]bool)}
}

func (r *fakeReactionRepo) Toggle(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byMessage[messageID] == nil {
		r.byMessage[messageID] = make(map[string]map[string]bool)
	}
	if r.byMessage[messageID][emoji] == nil {
		r.byMessage[messageID][emoji] = make(map[string]bool)
	}
	users := r.byMessage[messageID][emoji]
	if users[userID] {
		delete(users, userID)
		return false, nil
	}
	users[userID] = true
	return true, nil
}

func (r *fakeReactionRepo) GetByMessageID(ctx context.Context, messageID string) ([]models.ReactionGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groupsLocked(messageID), nil
}

func (r *fakeReactionRepo) GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.ReactionGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]models.ReactionGroup)
	for _, id := range messageIDs {
		if groups := r.groupsLocked(id); groups != nil {
			out[id] = groups
		}
	}
	return out, nil
}

func (r *fakeReactionRepo) groupsLocked(messageID string) []models.ReactionGroup {
	var out []models.ReactionGroup
	for emoji, users := range r.byMessage[messageID] {
		if len(users) == 0 {
			continue
		}
		group := models.ReactionGroup{Emoji: emoji, Count: len(users)}
		for userID := range users {
			group.Users = append(group.Users, userID)
		}
		out = append(out, group)
	}
	return out
}

// fakeMentionRepo is an in-memory MentionRepository.
type fakeMentionRepo struct {
	mu        sync.Mutex
	byMessage map[string][]string
}

func newFakeMentionRepo() *fakeMentionRepo {
	return &fakeMentionRepo{byMessage: make(map[string][]string)}
}

func (r *fakeMentionRepo) Save(ctx context.Context, messageID string, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMessage[messageID] = userIDs
	return nil
}

func (r *fakeMentionRepo) GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string)
	for _, id := range messageIDs {
		if ids := r.byMessage[id]; ids != nil {
			out[id] = ids
		}
	}
	return out, nil
}

// fakePermResolver is a canned ChannelPermResolver for services that only
// consume resolution results.
type fakePermResolver struct {
	mu      sync.Mutex
	channel map[string]models.Permission // userID:channelID
	server  map[string]models.Permission // userID:serverID
	err     error
}

func newFakePermResolver() *fakePermResolver {
	return &fakePermResolver{
		channel: make(map[string]models.Permission),
		server:  make(map[string]models.Permission),
	}
}

func (f *fakePermResolver) grantChannel(userID, channelID string, mask models.Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel[userID+":"+channelID] = mask
}

func (f *fakePermResolver) grantServer(userID, serverID string, mask models.Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.server[userID+":"+serverID] = mask
}

func (f *fakePermResolver) ResolveChannel(ctx context.Context, channelID, userID string) (models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.channel[userID+":"+channelID], nil
}

func (f *fakePermResolver) ResolveServer(ctx context.Context, serverID, userID string) (models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.server[userID+":"+serverID], nil
}

func (f *fakePermResolver) RequireChannel(ctx context.Context, channelID, userID string, perm models.Permission) error {
	mask, err := f.ResolveChannel(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if !mask.Has(perm) {
		return fmt.Errorf("%w: missing required permission", pkg.ErrForbidden)
	}
	return nil
}

func (f *fakePermResolver) RequireServer(ctx context.Context, serverID, userID string, perm models.Permission) error {
	mask, err := f.ResolveServer(ctx, serverID, userID)
	if err != nil {
		return err
	}
	if !mask.Has(perm) {
		return fmt.Errorf("%w: missing required permission", pkg.ErrForbidden)
	}
	return nil
}

// fakePinRepo is an in-memory PinRepository.
type fakePinRepo struct {
	mu   sync.Mutex
	pins map[string]*models.PinnedMessage // messageID -> pin
}

func newFakePinRepo() *fakePinRepo {
	return &fakePinRepo{pins: make(map[string]*models.PinnedMessage)}
}

func (r *fakePinRepo) Pin(ctx context.Context, pin *models.PinnedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pins[pin.MessageID]; ok {
		return pkg.ErrAlreadyExists
	}
	if pin.ID == "" {
		pin.ID = uuid.NewString()
	}
	cp := *pin
	r.pins[pin.MessageID] = &cp
	return nil
}

func (r *fakePinRepo) Unpin(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pins[messageID]; !ok {
		return pkg.ErrNotFound
	}
	delete(r.pins, messageID)
	return nil
}

func (r *fakePinRepo) IsPinned(ctx context.Context, messageID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pins[messageID]
	return ok, nil
}

func (r *fakePinRepo) CountByChannel(ctx context.Context, channelID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, pin := range r.pins {
		if pin.ChannelID == channelID {
			count++
		}
	}
	return count, nil
}

func (r *fakePinRepo) ListByChannel(ctx context.Context, channelID string) ([]models.PinnedMessageWithDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PinnedMessageWithDetails
	for _, pin := range r.pins {
		if pin.ChannelID == channelID {
			out = append(out, models.PinnedMessageWithDetails{PinnedMessage: *pin})
		}
	}
	return out, nil
}
