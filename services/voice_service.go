package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chorushq/chorus/config"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/pkg/sfu"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// maxStreamsPerChannel caps simultaneous screen shares in one voice channel.
const maxStreamsPerChannel = 2

// voiceBroadcast is one planned fan-out: an event plus its target scope.
// Mutations build plans under the store lock and the caller publishes them
// after the lock is released, so a slow socket can never hold the lock.
type voiceBroadcast struct {
	event    ws.Event
	serverID string // non-empty: broadcast to server members
	userID   string // non-empty: directed to one user
}

// VoiceService is the in-memory voice state store.
//
// State is ephemeral: a restart drops every websocket and the voice sessions
// with them, so rebuilding from empty is correct recovery. All mutations
// validate permissions first, mutate under the exclusive lock, and return a
// broadcast plan.
type VoiceService struct {
	mu      sync.RWMutex
	states  map[string]*models.VoiceState      // userID -> state
	channel map[string]map[string]bool         // channelID -> userIDs

	perms    ChannelPermResolver
	channels repository.ChannelRepository
	users    repository.UserRepository
	sfuRepo  repository.SFUInstanceRepository
	admin    *sfu.Admin
	cfg      config.SFUConfig
	hub      ws.EventPublisher
}

func NewVoiceService(
	perms ChannelPermResolver,
	channels repository.ChannelRepository,
	users repository.UserRepository,
	sfuRepo repository.SFUInstanceRepository,
	admin *sfu.Admin,
	cfg config.SFUConfig,
	hub ws.EventPublisher,
) *VoiceService {
	return &VoiceService{
		states:   make(map[string]*models.VoiceState),
		channel:  make(map[string]map[string]bool),
		perms:    perms,
		channels: channels,
		users:    users,
		sfuRepo:  sfuRepo,
		admin:    admin,
		cfg:      cfg,
		hub:      hub,
	}
}

// publish fans a plan out. Always called with no lock held.
func (s *VoiceService) publish(plans []voiceBroadcast) {
	for _, p := range plans {
		switch {
		case p.userID != "":
			s.hub.BroadcastToUser(p.userID, p.event)
		case p.serverID != "":
			s.hub.BroadcastToServer(p.serverID, p.event)
		default:
			s.hub.BroadcastToAll(p.event)
		}
	}
}

func statePayload(state models.VoiceState, action models.VoiceAction) ws.Event {
	return ws.Event{
		Op:   ws.OpVoiceStateUpdate,
		Data: models.VoiceStatePayload{VoiceState: state, Action: action},
	}
}

// credentials resolves the SFU serving a chat server, falling back to the
// process-wide platform credentials when no instance row is assigned.
func (s *VoiceService) credentials(ctx context.Context, serverID string) (sfu.Credentials, error) {
	inst, err := s.sfuRepo.GetByServerID(ctx, serverID)
	if err == nil {
		return sfu.Credentials{URL: inst.URL, APIKey: inst.APIKey, APISecret: inst.APISecret}, nil
	}
	if s.cfg.APIKey == "" || s.cfg.APISecret == "" {
		return sfu.Credentials{}, fmt.Errorf("%w: no voice backend configured", pkg.ErrWrongState)
	}
	return sfu.Credentials{URL: s.cfg.URL, APIKey: s.cfg.APIKey, APISecret: s.cfg.APISecret}, nil
}

// Join places the user in a voice channel, implicitly leaving any previous
// one, and returns the SFU dial info. Capacity is bypassed for MoveMembers
// holders (a moderator can always enter to moderate).
func (s *VoiceService) Join(ctx context.Context, userID, channelID string) (*models.VoiceTokenResponse, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != models.ChannelTypeVoice {
		return nil, fmt.Errorf("%w: not a voice channel", pkg.ErrInvalidInput)
	}

	mask, err := s.perms.ResolveChannel(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if !mask.Has(models.PermViewChannel) || !mask.Has(models.PermConnectVoice) {
		return nil, fmt.Errorf("%w: cannot connect to this channel", pkg.ErrForbidden)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	mintCtx, cancel := context.WithTimeout(ctx, s.cfg.MintTimeout)
	defer cancel()
	creds, err := s.credentials(mintCtx, channel.ServerID)
	if err != nil {
		return nil, err
	}
	token, err := sfu.MintToken(creds, channelID, sfu.TokenOptions{
		Identity:       userID,
		Name:           user.Name(),
		CanPublish:     mask.Has(models.PermSpeak),
		CanSubscribe:   true,
		CanPublishData: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: voice token mint failed", pkg.ErrInternal)
	}

	avatar := ""
	if user.AvatarURL != nil {
		avatar = *user.AvatarURL
	}
	display := ""
	if user.DisplayName != nil {
		display = *user.DisplayName
	}

	s.mu.Lock()
	if prev, ok := s.states[userID]; ok && prev.ChannelID == channelID {
		// Already in this channel: hand back fresh dial info, state and
		// listeners untouched.
		s.mu.Unlock()
		return &models.VoiceTokenResponse{Token: token, URL: creds.URL, ChannelID: channelID}, nil
	}
	if channel.UserLimit > 0 && len(s.channel[channelID]) >= channel.UserLimit && !mask.Has(models.PermMoveMembers) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: voice channel is full", pkg.ErrCapacityExceeded)
	}

	var plans []voiceBroadcast
	if prev, ok := s.states[userID]; ok {
		plans = append(plans, s.removeLocked(prev))
	}

	state := &models.VoiceState{
		UserID:      userID,
		ChannelID:   channelID,
		ServerID:    channel.ServerID,
		Username:    user.Username,
		DisplayName: display,
		AvatarURL:   avatar,
		JoinedAt:    time.Now(),
	}
	s.states[userID] = state
	if s.channel[channelID] == nil {
		s.channel[channelID] = make(map[string]bool)
	}
	s.channel[channelID][userID] = true
	plans = append(plans, voiceBroadcast{
		event:    statePayload(*state, models.VoiceActionJoin),
		serverID: channel.ServerID,
	})
	s.mu.Unlock()

	s.publish(plans)
	return &models.VoiceTokenResponse{Token: token, URL: creds.URL, ChannelID: channelID}, nil
}

// removeLocked drops the user's state and returns the leave broadcast.
// Caller holds the write lock.
func (s *VoiceService) removeLocked(state *models.VoiceState) voiceBroadcast {
	delete(s.states, state.UserID)
	if users := s.channel[state.ChannelID]; users != nil {
		delete(users, state.UserID)
		if len(users) == 0 {
			delete(s.channel, state.ChannelID)
		}
	}
	return voiceBroadcast{
		event:    statePayload(*state, models.VoiceActionLeave),
		serverID: state.ServerID,
	}
}

// Leave removes the user from their current voice channel. Not being in one
// is a no-op, not an error: leave intents race with disconnects.
func (s *VoiceService) Leave(ctx context.Context, userID string) {
	s.mu.Lock()
	state, ok := s.states[userID]
	var plans []voiceBroadcast
	if ok {
		plans = append(plans, s.removeLocked(state))
	}
	s.mu.Unlock()
	s.publish(plans)
}

// UpdateState applies a partial self-update (mute, deafen, stream). Nil
// fields keep their value. Streaming is capped per channel.
func (s *VoiceService) UpdateState(ctx context.Context, userID string, req *models.VoiceStateUpdateRequest) error {
	s.mu.Lock()
	state, ok := s.states[userID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: not in a voice channel", pkg.ErrWrongState)
	}

	if req.IsStreaming != nil && *req.IsStreaming && !state.IsStreaming {
		streams := 0
		for peerID := range s.channel[state.ChannelID] {
			if peer := s.states[peerID]; peer != nil && peer.IsStreaming {
				streams++
			}
		}
		if streams >= maxStreamsPerChannel {
			s.mu.Unlock()
			return fmt.Errorf("%w: stream limit reached for this channel", pkg.ErrCapacityExceeded)
		}
	}

	if req.IsMuted != nil {
		state.IsMuted = *req.IsMuted
	}
	if req.IsDeafened != nil {
		state.IsDeafened = *req.IsDeafened
	}
	if req.IsStreaming != nil {
		state.IsStreaming = *req.IsStreaming
	}
	plan := voiceBroadcast{
		event:    statePayload(*state, models.VoiceActionUpdate),
		serverID: state.ServerID,
	}
	s.mu.Unlock()

	s.publish([]voiceBroadcast{plan})
	return nil
}

// AdminUpdateState lets a moderator server-mute or server-deafen a target in
// the same channel's server. Each flag has its own permission bit: MuteMembers
// for server_muted, DeafenMembers for server_deafened.
func (s *VoiceService) AdminUpdateState(ctx context.Context, actorID string, req *models.VoiceAdminStateRequest) error {
	s.mu.RLock()
	target, ok := s.states[req.TargetUserID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: user is not in a voice channel", pkg.ErrWrongState)
	}

	if req.IsServerMuted != nil {
		if err := s.perms.RequireChannel(ctx, target.ChannelID, actorID, models.PermMuteMembers); err != nil {
			return err
		}
	}
	if req.IsServerDeafened != nil {
		if err := s.perms.RequireChannel(ctx, target.ChannelID, actorID, models.PermDeafenMembers); err != nil {
			return err
		}
	}

	s.mu.Lock()
	target, ok = s.states[req.TargetUserID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: user is not in a voice channel", pkg.ErrWrongState)
	}
	if req.IsServerMuted != nil {
		target.IsServerMuted = *req.IsServerMuted
	}
	if req.IsServerDeafened != nil {
		target.IsServerDeafened = *req.IsServerDeafened
	}
	plan := voiceBroadcast{
		event:    statePayload(*target, models.VoiceActionUpdate),
		serverID: target.ServerID,
	}
	s.mu.Unlock()

	s.publish([]voiceBroadcast{plan})
	return nil
}

// MoveUser transfers a target into another voice channel on the same server.
// The actor needs MoveMembers on both channels. The target gets a directed
// voice_force_move so their client re-dials the new room.
func (s *VoiceService) MoveUser(ctx context.Context, actorID string, req *models.VoiceMoveRequest) error {
	s.mu.RLock()
	target, ok := s.states[req.TargetUserID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: user is not in a voice channel", pkg.ErrWrongState)
	}

	dst, err := s.channels.GetByID(ctx, req.ChannelID)
	if err != nil {
		return err
	}
	if dst.Type != models.ChannelTypeVoice {
		return fmt.Errorf("%w: not a voice channel", pkg.ErrInvalidInput)
	}
	if dst.ServerID != target.ServerID {
		return fmt.Errorf("%w: cannot move across servers", pkg.ErrInvalidInput)
	}
	if err := s.perms.RequireChannel(ctx, target.ChannelID, actorID, models.PermMoveMembers); err != nil {
		return err
	}
	if err := s.perms.RequireChannel(ctx, req.ChannelID, actorID, models.PermMoveMembers); err != nil {
		return err
	}

	s.mu.Lock()
	target, ok = s.states[req.TargetUserID]
	if !ok || target.ChannelID == req.ChannelID {
		s.mu.Unlock()
		return nil
	}
	plans := []voiceBroadcast{s.removeLocked(target)}

	moved := *target
	moved.ChannelID = req.ChannelID
	moved.JoinedAt = time.Now()
	s.states[req.TargetUserID] = &moved
	if s.channel[req.ChannelID] == nil {
		s.channel[req.ChannelID] = make(map[string]bool)
	}
	s.channel[req.ChannelID][req.TargetUserID] = true

	plans = append(plans,
		voiceBroadcast{
			event:    statePayload(moved, models.VoiceActionJoin),
			serverID: moved.ServerID,
		},
		voiceBroadcast{
			event: ws.Event{
				Op:   ws.OpVoiceForceMove,
				Data: models.VoiceTokenRequest{ChannelID: req.ChannelID},
			},
			userID: req.TargetUserID,
		},
	)
	s.mu.Unlock()

	s.publish(plans)
	return nil
}

// DisconnectUser forcibly removes a target from voice: leave broadcast,
// directed voice_force_disconnect, and a best-effort SFU evict.
func (s *VoiceService) DisconnectUser(ctx context.Context, actorID string, req *models.VoiceDisconnectRequest) error {
	s.mu.RLock()
	target, ok := s.states[req.TargetUserID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: user is not in a voice channel", pkg.ErrWrongState)
	}

	if err := s.perms.RequireChannel(ctx, target.ChannelID, actorID, models.PermMoveMembers); err != nil {
		return err
	}

	s.mu.Lock()
	target, ok = s.states[req.TargetUserID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	channelID, serverID := target.ChannelID, target.ServerID
	plans := []voiceBroadcast{
		s.removeLocked(target),
		{event: ws.Event{Op: ws.OpVoiceForceDisconnect}, userID: req.TargetUserID},
	}
	s.mu.Unlock()

	s.publish(plans)

	evictCtx, cancel := context.WithTimeout(context.Background(), s.cfg.MintTimeout)
	defer cancel()
	creds, err := s.credentials(evictCtx, serverID)
	if err == nil {
		if err := s.admin.Evict(evictCtx, creds, channelID, req.TargetUserID); err != nil {
			logger.L().Warn("sfu evict failed",
				zap.String("channel_id", channelID),
				zap.String("user_id", req.TargetUserID),
				zap.Error(err))
		}
	}
	return nil
}

// SyncFor returns the voice states visible to one user: every state in a
// channel whose effective mask includes ViewChannel.
func (s *VoiceService) SyncFor(ctx context.Context, userID string) []models.VoiceState {
	s.mu.RLock()
	snapshot := make([]models.VoiceState, 0, len(s.states))
	for _, state := range s.states {
		snapshot = append(snapshot, *state)
	}
	s.mu.RUnlock()

	// Visibility is resolved outside the lock; one cache-backed check per
	// distinct channel.
	visible := make(map[string]bool)
	out := make([]models.VoiceState, 0, len(snapshot))
	for _, state := range snapshot {
		allowed, checked := visible[state.ChannelID]
		if !checked {
			mask, err := s.perms.ResolveChannel(ctx, state.ChannelID, userID)
			allowed = err == nil && mask.Has(models.PermViewChannel)
			visible[state.ChannelID] = allowed
		}
		if allowed {
			out = append(out, state)
		}
	}
	return out
}

// OnUserOffline auto-leaves voice when a user's last connection drops.
func (s *VoiceService) OnUserOffline(userID string) {
	s.Leave(context.Background(), userID)
}

// ChannelParticipantCount reports how many users occupy a voice channel.
func (s *VoiceService) ChannelParticipantCount(channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channel[channelID])
}

// OnChannelDeleted drops every state in a deleted channel and tears down the
// SFU room. Called by the channel service after the delete commits.
func (s *VoiceService) OnChannelDeleted(ctx context.Context, channelID, serverID string) {
	s.mu.Lock()
	var plans []voiceBroadcast
	for userID := range s.channel[channelID] {
		if state := s.states[userID]; state != nil {
			plans = append(plans, s.removeLocked(state))
			plans = append(plans, voiceBroadcast{
				event:  ws.Event{Op: ws.OpVoiceForceDisconnect},
				userID: userID,
			})
		}
	}
	s.mu.Unlock()
	s.publish(plans)

	creds, err := s.credentials(ctx, serverID)
	if err != nil {
		return
	}
	if err := s.admin.DeleteRoom(ctx, creds, channelID); err != nil {
		logger.L().Warn("sfu room delete failed",
			zap.String("channel_id", channelID), zap.Error(err))
	}
}
