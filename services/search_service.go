package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
)

// maxSearchPageSize caps one search page.
const maxSearchPageSize = 50

// SearchService runs full-text search over server channels and DM
// conversations.
type SearchService struct {
	search  repository.SearchRepository
	dms     repository.DMRepository
	users   repository.UserRepository
	perms   *ChannelPermissionService
	snippet *bluemonday.Policy
}

func NewSearchService(
	search repository.SearchRepository,
	dms repository.DMRepository,
	users repository.UserRepository,
	perms *ChannelPermissionService,
) *SearchService {
	// Snippets reach the client as HTML; everything but the highlight marks
	// is stripped.
	policy := bluemonday.NewPolicy()
	policy.AllowElements("mark")
	return &SearchService{search: search, dms: dms, users: users, perms: perms, snippet: policy}
}

// buildFTSQuery turns raw user input into a safe FTS5 match expression: each
// whitespace token is quote-wrapped (neutralizing FTS operators) and starred
// for prefix matching.
func buildFTSQuery(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		tokens = append(tokens, `"`+f+`"*`)
	}
	return strings.Join(tokens, " ")
}

func clampSearchPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxSearchPageSize {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// SearchServer searches a server's channels, narrowed to one channel when
// channelID is non-empty. Results from channels the caller cannot view are
// dropped after the query.
func (s *SearchService) SearchServer(ctx context.Context, serverID, channelID, userID, query string, limit, offset int) (*models.SearchResult, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}
	if channelID != "" {
		if err := s.perms.RequireChannel(ctx, channelID, userID, models.PermReadMessages); err != nil {
			return nil, err
		}
	}

	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, fmt.Errorf("%w: empty search query", pkg.ErrInvalidInput)
	}
	limit, offset = clampSearchPage(limit, offset)

	messages, total, err := s.search.SearchServer(ctx, serverID, channelID, ftsQuery, limit, offset)
	if err != nil {
		return nil, err
	}

	visible := make([]models.Message, 0, len(messages))
	channelOK := make(map[string]bool)
	for _, m := range messages {
		ok, seen := channelOK[m.ChannelID]
		if !seen {
			mask, err := s.perms.ResolveChannel(ctx, m.ChannelID, userID)
			ok = err == nil && mask.Has(models.PermReadMessages)
			channelOK[m.ChannelID] = ok
		}
		if !ok {
			continue
		}
		m.Snippet = s.snippet.Sanitize(m.Snippet)
		visible = append(visible, m)
	}
	if err := s.attachAuthors(ctx, visible); err != nil {
		return nil, err
	}
	return &models.SearchResult{Messages: visible, TotalCount: total}, nil
}

// SearchDM searches one DM conversation.
func (s *SearchService) SearchDM(ctx context.Context, dmChannelID, userID, query string, limit, offset int) (*models.DMSearchResult, error) {
	channel, err := s.dms.GetChannel(ctx, dmChannelID)
	if err != nil {
		return nil, err
	}
	if !channel.Includes(userID) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", pkg.ErrForbidden)
	}

	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, fmt.Errorf("%w: empty search query", pkg.ErrInvalidInput)
	}
	limit, offset = clampSearchPage(limit, offset)

	messages, total, err := s.search.SearchDM(ctx, dmChannelID, ftsQuery, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Snippet = s.snippet.Sanitize(messages[i].Snippet)
	}
	if err := s.attachDMAuthors(ctx, messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.DMMessage{}
	}
	return &models.DMSearchResult{Messages: messages, TotalCount: total}, nil
}

func (s *SearchService) attachAuthors(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.UserID)
	}
	authors, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range messages {
		if u := authors[messages[i].UserID]; u != nil {
			messages[i].Author = u.Public()
		}
	}
	return nil
}

func (s *SearchService) attachDMAuthors(ctx context.Context, messages []models.DMMessage) error {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.UserID)
	}
	authors, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range messages {
		if u := authors[messages[i].UserID]; u != nil {
			messages[i].Author = u.Public()
		}
	}
	return nil
}
