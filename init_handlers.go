package main

import (
	"github.com/chorushq/chorus/handlers"
	"github.com/chorushq/chorus/ws"
)

// Handlers bundles the HTTP layer, websocket upgrade handler included.
type Handlers struct {
	Auth              *handlers.AuthHandler
	User              *handlers.UserHandler
	Avatar            *handlers.AvatarHandler
	Server            *handlers.ServerHandler
	Stats             *handlers.StatsHandler
	Member            *handlers.MemberHandler
	Role              *handlers.RoleHandler
	Channel           *handlers.ChannelHandler
	Category          *handlers.CategoryHandler
	ChannelPermission *handlers.ChannelPermissionHandler
	Message           *handlers.MessageHandler
	Reaction          *handlers.ReactionHandler
	Pin               *handlers.PinHandler
	ReadState         *handlers.ReadStateHandler
	Search            *handlers.SearchHandler
	Invite            *handlers.InviteHandler
	ServerMute        *handlers.ServerMuteHandler
	DM                *handlers.DMHandler
	Friendship        *handlers.FriendshipHandler
	Voice             *handlers.VoiceHandler
	Admin             *handlers.AdminHandler
	WS                *ws.Handler
}

func initHandlers(svcs *Services, hub *ws.Hub, ready ws.ReadyProvider) *Handlers {
	return &Handlers{
		Auth:              handlers.NewAuthHandler(svcs.Auth, svcs.User, svcs.Presence),
		User:              handlers.NewUserHandler(svcs.User),
		Avatar:            handlers.NewAvatarHandler(svcs.User, svcs.Upload),
		Server:            handlers.NewServerHandler(svcs.Server, svcs.Upload),
		Stats:             handlers.NewStatsHandler(svcs.Server),
		Member:            handlers.NewMemberHandler(svcs.Member),
		Role:              handlers.NewRoleHandler(svcs.Role),
		Channel:           handlers.NewChannelHandler(svcs.Channel),
		Category:          handlers.NewCategoryHandler(svcs.Category),
		ChannelPermission: handlers.NewChannelPermissionHandler(svcs.ChannelPermission),
		Message:           handlers.NewMessageHandler(svcs.Message, svcs.Upload),
		Reaction:          handlers.NewReactionHandler(svcs.Reaction),
		Pin:               handlers.NewPinHandler(svcs.Pin),
		ReadState:         handlers.NewReadStateHandler(svcs.ReadState),
		Search:            handlers.NewSearchHandler(svcs.Search),
		Invite:            handlers.NewInviteHandler(svcs.Invite),
		ServerMute:        handlers.NewServerMuteHandler(svcs.ServerMute),
		DM:                handlers.NewDMHandler(svcs.DM, svcs.DMUpload),
		Friendship:        handlers.NewFriendshipHandler(svcs.Friendship),
		Voice:             handlers.NewVoiceHandler(svcs.Voice),
		Admin:             handlers.NewAdminHandler(svcs.SFUAdmin, svcs.MetricsHistory),
		WS:                ws.NewHandler(hub, svcs.Auth, ready),
	}
}
