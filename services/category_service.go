package services

import (
	"context"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// CategoryService manages sidebar categories. Deleting a category uncategorizes
// its channels (FK SET NULL) instead of deleting them.
type CategoryService struct {
	categories repository.CategoryRepository
	perms      *ChannelPermissionService
	hub        ws.EventPublisher
}

func NewCategoryService(
	categories repository.CategoryRepository,
	perms *ChannelPermissionService,
	hub ws.EventPublisher,
) *CategoryService {
	return &CategoryService{categories: categories, perms: perms, hub: hub}
}

func (s *CategoryService) Create(ctx context.Context, serverID, userID string, req *models.CreateCategoryRequest) (*models.Category, error) {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageChannels); err != nil {
		return nil, err
	}

	pos, err := s.categories.MaxPosition(ctx, serverID)
	if err != nil {
		return nil, err
	}
	category := &models.Category{
		ServerID: serverID,
		Name:     req.Name,
		Position: pos + 1,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}

	s.hub.BroadcastToServer(serverID, ws.Event{Op: ws.OpCategoryCreate, Data: category})
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, categoryID, userID string, req *models.UpdateCategoryRequest) (*models.Category, error) {
	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireServer(ctx, category.ServerID, userID, models.PermManageChannels); err != nil {
		return nil, err
	}

	if req.Name != nil {
		category.Name = *req.Name
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}

	s.hub.BroadcastToServer(category.ServerID, ws.Event{Op: ws.OpCategoryUpdate, Data: category})
	return category, nil
}

func (s *CategoryService) Delete(ctx context.Context, categoryID, userID string) error {
	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireServer(ctx, category.ServerID, userID, models.PermManageChannels); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, categoryID); err != nil {
		return err
	}

	s.hub.BroadcastToServer(category.ServerID, ws.Event{
		Op:   ws.OpCategoryDelete,
		Data: map[string]string{"id": categoryID, "server_id": category.ServerID},
	})
	return nil
}

func (s *CategoryService) ListByServer(ctx context.Context, serverID, userID string) ([]models.Category, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}
	categories, err := s.categories.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}

func (s *CategoryService) Reorder(ctx context.Context, serverID, userID string, req *models.ReorderCategoriesRequest) error {
	if err := s.perms.RequireServer(ctx, serverID, userID, models.PermManageChannels); err != nil {
		return err
	}
	if err := s.categories.UpdatePositions(ctx, serverID, req.Positions); err != nil {
		return err
	}

	s.hub.BroadcastToServer(serverID, ws.Event{
		Op: ws.OpChannelReorder,
		Data: map[string]any{
			"server_id": serverID,
			"positions": req.Positions,
		},
	})
	return nil
}
