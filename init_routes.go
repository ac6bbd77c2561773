package main

import (
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/chorushq/chorus/config"
	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/static"
)

// initRoutes builds the full HTTP surface: public auth endpoints, the
// authenticated API, the websocket upgrade, uploads, Prometheus metrics and
// the embedded SPA fallback.
func initRoutes(cfg *config.Config, repos *Repositories, svcs *Services, h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Email.AppURL, cfg.Server.PublicURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/auth", func(r chi.Router) {
		// Credential endpoints get a per-IP budget on top of the login
		// lockout inside the auth service.
		limited := r.With(httprate.LimitByIP(20, time.Minute))
		limited.Post("/register", h.Auth.Register)
		limited.Post("/login", h.Auth.Login)
		limited.Post("/forgot-password", h.Auth.ForgotPassword)
		limited.Post("/reset-password", h.Auth.ResetPassword)
		r.Post("/refresh", h.Auth.Refresh)
		r.Post("/logout", h.Auth.Logout)
	})

	r.Get("/ws", h.WS.HandleConnection)

	// Invite previews work logged out so a join page can render.
	r.Get("/api/invites/{code}", h.Invite.Preview)

	// Uploaded files. Flat names only; the upload service never creates
	// subdirectories, so any path separator is hostile.
	r.Get("/uploads/*", func(w http.ResponseWriter, req *http.Request) {
		name := strings.TrimPrefix(req.URL.Path, "/uploads/")
		if name == "" || strings.ContainsAny(name, "/\\") {
			http.NotFound(w, req)
			return
		}
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Upload.Dir))).ServeHTTP(w, req)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(svcs.Auth))

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", h.Auth.Me)
			r.Patch("/me", h.Auth.UpdateProfile)
			r.Patch("/me/status", h.Auth.UpdateStatus)
			r.Post("/me/password", h.Auth.ChangePassword)
			r.Post("/me/avatar", h.Avatar.Upload)
			r.Get("/{userId}", h.User.Get)
		})

		r.Post("/api/invites/{code}/join", h.Invite.Redeem)
		r.Get("/api/mutes", h.ServerMute.List)

		r.Route("/api/servers", func(r chi.Router) {
			r.Post("/", h.Server.Create)
			r.Get("/", h.Server.List)
			r.Patch("/reorder", h.Server.Reorder)

			r.Route("/{serverId}", func(r chi.Router) {
				r.Use(middleware.RequireServerMembership(svcs.ChannelPermission))

				r.Get("/", h.Server.Get)
				r.Patch("/", h.Server.Update)
				r.Delete("/", h.Server.Delete)
				r.Post("/icon", h.Server.UploadIcon)
				r.Get("/stats", h.Stats.ServerStats)

				r.Get("/channels", h.Channel.List)
				r.Post("/channels", h.Channel.Create)
				r.Patch("/channels/reorder", h.Channel.Reorder)

				r.Get("/categories", h.Category.List)
				r.Post("/categories", h.Category.Create)
				r.Patch("/categories/reorder", h.Category.Reorder)

				r.Get("/members", h.Member.List)
				r.Post("/leave", h.Member.Leave)
				r.Delete("/members/{userId}", h.Member.Kick)
				r.Put("/members/{userId}/roles", h.Role.SetMemberRoles)

				r.Get("/bans", h.Member.ListBans)
				r.Post("/bans/{userId}", h.Member.Ban)
				r.Delete("/bans/{userId}", h.Member.Unban)

				r.Get("/roles", h.Role.List)
				r.Post("/roles", h.Role.Create)
				r.Patch("/roles/reorder", h.Role.Reorder)
				r.Patch("/roles/{roleId}", h.Role.Update)
				r.Delete("/roles/{roleId}", h.Role.Delete)

				r.Get("/invites", h.Invite.List)
				r.Post("/invites", h.Invite.Create)
				r.Delete("/invites/{code}", h.Invite.Delete)

				r.Post("/mute", h.ServerMute.Mute)
				r.Delete("/mute", h.ServerMute.Unmute)

				r.Get("/unreads", h.ReadState.UnreadCounts)
				r.Post("/read", h.ReadState.MarkServerRead)

				r.Get("/search", h.Search.Server)
			})
		})

		r.Route("/api/categories/{categoryId}", func(r chi.Router) {
			r.Patch("/", h.Category.Update)
			r.Delete("/", h.Category.Delete)
		})

		r.Route("/api/channels/{channelId}", func(r chi.Router) {
			r.Use(middleware.RequireChannelPermission(svcs.ChannelPermission, models.PermViewChannel))

			r.Get("/", h.Channel.Get)
			r.Patch("/", h.Channel.Update)
			r.Delete("/", h.Channel.Delete)

			r.Get("/permissions", h.ChannelPermission.List)
			r.Put("/permissions/{roleId}", h.ChannelPermission.Set)
			r.Delete("/permissions/{roleId}", h.ChannelPermission.Delete)

			r.Get("/messages", h.Message.List)
			r.Post("/messages", h.Message.Create)
			r.Get("/messages/{messageId}", h.Message.Get)
			r.Patch("/messages/{messageId}", h.Message.Update)
			r.Delete("/messages/{messageId}", h.Message.Delete)
			r.Put("/messages/{messageId}/reactions", h.Reaction.Toggle)
			r.Put("/messages/{messageId}/pin", h.Pin.Pin)
			r.Delete("/messages/{messageId}/pin", h.Pin.Unpin)
			r.Get("/pins", h.Pin.List)
			r.Post("/read", h.ReadState.MarkRead)
		})

		r.Post("/api/voice/token", h.Voice.Token)

		r.Route("/api/dm/channels", func(r chi.Router) {
			r.Post("/", h.DM.OpenChannel)
			r.Get("/", h.DM.ListChannels)

			r.Route("/{channelId}", func(r chi.Router) {
				r.Get("/messages", h.DM.ListMessages)
				r.Post("/messages", h.DM.CreateMessage)
				r.Patch("/messages/{messageId}", h.DM.UpdateMessage)
				r.Delete("/messages/{messageId}", h.DM.DeleteMessage)
				r.Put("/messages/{messageId}/reactions", h.DM.ToggleReaction)
				r.Put("/messages/{messageId}/pin", h.DM.PinMessage)
				r.Delete("/messages/{messageId}/pin", h.DM.UnpinMessage)
				r.Get("/pins", h.DM.ListPinnedMessages)
				r.Get("/search", h.Search.DM)
			})
		})

		r.Route("/api/friends", func(r chi.Router) {
			r.Get("/", h.Friendship.ListFriends)
			r.Get("/pending", h.Friendship.ListPending)
			r.Post("/requests", h.Friendship.SendRequest)
			r.Post("/requests/{friendshipId}/accept", h.Friendship.Accept)
			r.Post("/requests/{friendshipId}/decline", h.Friendship.Decline)
			r.Delete("/{friendshipId}", h.Friendship.Remove)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequirePlatformAdmin(repos.User))

			r.Get("/sfu-instances", h.Admin.ListInstances)
			r.Post("/sfu-instances", h.Admin.CreateInstance)
			r.Patch("/sfu-instances/{instanceId}", h.Admin.UpdateInstance)
			r.Delete("/sfu-instances/{instanceId}", h.Admin.DeleteInstance)
			r.Get("/sfu-instances/{instanceId}/metrics", h.Admin.LiveMetrics)
			r.Get("/sfu-instances/{instanceId}/metrics/history", h.Admin.MetricsHistory)
			r.Get("/sfu-instances/{instanceId}/metrics/summary", h.Admin.MetricsSummary)
			r.Post("/servers/{serverId}/migrate", h.Admin.MigrateServer)
			r.Get("/servers", h.Admin.ListServers)
			r.Get("/users", h.Admin.ListUsers)
		})
	})

	r.NotFound(spaHandler())

	return r
}

// spaHandler serves the embedded frontend build, falling back to index.html
// for client-side routes. API and websocket paths never reach it because chi
// matches those first.
func spaHandler() http.HandlerFunc {
	dist, err := fs.Sub(static.FrontendFS, "dist")
	if err != nil {
		return http.NotFound
	}
	fileServer := http.FileServer(http.FS(dist))

	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path != "" {
			if f, err := dist.Open(path); err == nil {
				_ = f.Close()
				fileServer.ServeHTTP(w, r)
				return
			}
		}
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	}
}
