package main

import (
	"database/sql"

	"github.com/chorushq/chorus/repository"
)

// Repositories bundles every store implementation so the wire-up functions
// pass one value around instead of two dozen.
type Repositories struct {
	User              repository.UserRepository
	Session           repository.SessionRepository
	ResetToken        repository.PasswordResetRepository
	Server            repository.ServerRepository
	Member            repository.MemberRepository
	Role              repository.RoleRepository
	Channel           repository.ChannelRepository
	Category          repository.CategoryRepository
	ChannelPermission repository.ChannelPermissionRepository
	Message           repository.MessageRepository
	Attachment        repository.AttachmentRepository
	Reaction          repository.ReactionRepository
	Mention           repository.MentionRepository
	Pin               repository.PinRepository
	ReadState         repository.ReadStateRepository
	Search            repository.SearchRepository
	Ban               repository.BanRepository
	Invite            repository.InviteRepository
	ServerMute        repository.ServerMuteRepository
	DM                repository.DMRepository
	Friendship        repository.FriendshipRepository
	SFUInstance       repository.SFUInstanceRepository
	MetricsHistory    repository.MetricsHistoryRepository
}

// initRepositories builds every repository on the shared connection pool.
// aesKey encrypts SFU credentials at rest in the instance store.
func initRepositories(conn *sql.DB, aesKey []byte) *Repositories {
	return &Repositories{
		User:              repository.NewSQLiteUserRepo(conn),
		Session:           repository.NewSQLiteSessionRepo(conn),
		ResetToken:        repository.NewSQLiteResetTokenRepo(conn),
		Server:            repository.NewSQLiteServerRepo(conn),
		Member:            repository.NewSQLiteMemberRepo(conn),
		Role:              repository.NewSQLiteRoleRepo(conn),
		Channel:           repository.NewSQLiteChannelRepo(conn),
		Category:          repository.NewSQLiteCategoryRepo(conn),
		ChannelPermission: repository.NewSQLiteChannelPermRepo(conn),
		Message:           repository.NewSQLiteMessageRepo(conn),
		Attachment:        repository.NewSQLiteAttachmentRepo(conn),
		Reaction:          repository.NewSQLiteReactionRepo(conn),
		Mention:           repository.NewSQLiteMentionRepo(conn),
		Pin:               repository.NewSQLitePinRepo(conn),
		ReadState:         repository.NewSQLiteReadStateRepo(conn),
		Search:            repository.NewSQLiteSearchRepo(conn),
		Ban:               repository.NewSQLiteBanRepo(conn),
		Invite:            repository.NewSQLiteInviteRepo(conn),
		ServerMute:        repository.NewSQLiteServerMuteRepo(conn),
		DM:                repository.NewSQLiteDMRepo(conn),
		Friendship:        repository.NewSQLiteFriendshipRepo(conn),
		SFUInstance:       repository.NewSQLiteSFUInstanceRepo(conn, aesKey),
		MetricsHistory:    repository.NewSQLiteMetricsHistoryRepo(conn),
	}
}
