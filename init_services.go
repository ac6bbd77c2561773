package main

import (
	"time"

	"github.com/chorushq/chorus/config"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg/cache"
	"github.com/chorushq/chorus/pkg/email"
	"github.com/chorushq/chorus/pkg/ratelimit"
	"github.com/chorushq/chorus/pkg/sfu"
	"github.com/chorushq/chorus/services"
	"github.com/chorushq/chorus/ws"
)

// Resolved permission masks stay cached briefly; every mutation path also
// invalidates explicitly, so the TTL only bounds staleness across restarts of
// unrelated state.
const (
	permCacheTTL     = 30 * time.Second
	permCacheCleanup = time.Minute
)

// Services bundles the domain layer plus the shared infrastructure pieces
// (limiters, caches) that need closing on shutdown.
type Services struct {
	Auth              *services.AuthService
	User              *services.UserService
	Presence          *services.PresenceService
	Server            *services.ServerService
	Member            *services.MemberService
	Role              *services.RoleService
	Channel           *services.ChannelService
	Category          *services.CategoryService
	ChannelPermission *services.ChannelPermissionService
	Message           *services.MessageService
	Reaction          *services.ReactionService
	Pin               *services.PinService
	ReadState         *services.ReadStateService
	Search            *services.SearchService
	Invite            *services.InviteService
	ServerMute        *services.ServerMuteService
	DM                *services.DMService
	Friendship        *services.FriendshipService
	Upload            *services.UploadService
	DMUpload          *services.DMUploadService
	Voice             *services.VoiceService
	P2PCall           *services.P2PCallService
	SFUAdmin          *services.SFUAdminService
	MetricsHistory    *services.MetricsHistoryService
	MetricsCollector  *services.MetricsCollector

	loginLimiter   *ratelimit.LoginRateLimiter
	messageLimiter *ratelimit.MessageRateLimiter
	permCache      *cache.TTLCache[string, models.Permission]
}

// Close releases the background goroutines owned by the service layer.
func (s *Services) Close() {
	s.loginLimiter.Close()
	s.messageLimiter.Close()
	s.permCache.Close()
}

func initServices(cfg *config.Config, repos *Repositories, hub *ws.Hub) *Services {
	permCache := cache.New[string, models.Permission](permCacheTTL, permCacheCleanup)
	loginLimiter := ratelimit.NewLoginRateLimiter(cfg.Limits.LoginAttempts, cfg.Limits.LoginWindow)
	messageLimiter := ratelimit.NewMessageRateLimiter(
		cfg.Limits.MessagesPerUnit, cfg.Limits.MessageWindow, cfg.Limits.MessageWindow)
	mailer := email.NewResendSender(cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.AppURL)
	sfuAdmin := sfu.NewAdmin()

	perms := services.NewChannelPermissionService(
		repos.Channel, repos.Role, repos.Member, repos.Server,
		repos.ChannelPermission, permCache, hub)
	voice := services.NewVoiceService(
		perms, repos.Channel, repos.User, repos.SFUInstance, sfuAdmin, cfg.SFU, hub)

	uploads := services.NewUploadService(cfg.Upload)

	return &Services{
		Auth: services.NewAuthService(
			repos.User, repos.Session, repos.ResetToken, mailer, loginLimiter, cfg.JWT),
		User:     services.NewUserService(repos.User, hub),
		Presence: services.NewPresenceService(repos.User, hub, hub),
		Server: services.NewServerService(
			repos.Server, repos.Member, repos.Role, repos.Channel,
			repos.SFUInstance, perms, hub),
		Member: services.NewMemberService(
			repos.Member, repos.Server, repos.Role, repos.User, repos.Ban, perms, hub),
		Role: services.NewRoleService(
			repos.Role, repos.Server, repos.Member, repos.User, perms, hub),
		Channel:           services.NewChannelService(repos.Channel, repos.Category, perms, voice, hub),
		Category:          services.NewCategoryService(repos.Category, perms, hub),
		ChannelPermission: perms,
		Message: services.NewMessageService(
			repos.Message, repos.Attachment, repos.Reaction, repos.Mention,
			repos.Channel, repos.Member, repos.User, perms, messageLimiter, hub),
		Reaction:  services.NewReactionService(repos.Reaction, repos.Message, perms, hub),
		Pin:       services.NewPinService(repos.Pin, repos.Message, perms, hub, cfg.Limits.PinsPerChannel),
		ReadState: services.NewReadStateService(repos.ReadState, repos.Channel, perms),
		Search:    services.NewSearchService(repos.Search, repos.DM, repos.User, perms),
		Invite: services.NewInviteService(
			repos.Invite, repos.Server, repos.Member, repos.Role,
			repos.User, repos.Ban, perms, hub),
		ServerMute:       services.NewServerMuteService(repos.ServerMute, perms),
		DM:               services.NewDMService(repos.DM, repos.User, messageLimiter, hub),
		Friendship:       services.NewFriendshipService(repos.Friendship, repos.User, hub),
		Upload:           uploads,
		DMUpload:         services.NewDMUploadService(uploads),
		Voice:            voice,
		P2PCall:          services.NewP2PCallService(repos.Friendship, repos.User, hub),
		SFUAdmin:         services.NewSFUAdminService(repos.SFUInstance, repos.Server, repos.User, sfuAdmin),
		MetricsHistory:   services.NewMetricsHistoryService(repos.MetricsHistory, repos.SFUInstance),
		MetricsCollector: services.NewMetricsCollector(repos.SFUInstance, repos.MetricsHistory, sfuAdmin),

		loginLimiter:   loginLimiter,
		messageLimiter: messageLimiter,
		permCache:      permCache,
	}
}
