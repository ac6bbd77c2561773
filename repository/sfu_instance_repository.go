package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// SFUInstanceRepository stores voice media server registrations. Credentials
// are encrypted at rest; callers always see plaintext.
type SFUInstanceRepository interface {
	Create(ctx context.Context, inst *models.SFUInstance) error
	GetByID(ctx context.Context, id string) (*models.SFUInstance, error)
	// GetByServerID resolves the instance assigned to a chat server.
	GetByServerID(ctx context.Context, serverID string) (*models.SFUInstance, error)
	List(ctx context.Context) ([]models.SFUInstance, error)
	// LeastLoadedPlatformInstance picks the platform-managed instance with
	// free capacity and the fewest assigned servers.
	LeastLoadedPlatformInstance(ctx context.Context) (*models.SFUInstance, error)
	Update(ctx context.Context, inst *models.SFUInstance) error
	// Delete reassigns the instance's servers to dst (empty = unassigned)
	// and removes the instance, atomically.
	Delete(ctx context.Context, id, dstInstanceID string) error

	// AssignServer points a chat server at an instance and maintains the
	// server_count bookkeeping on both sides.
	AssignServer(ctx context.Context, serverID string, instanceID *string) error
}
