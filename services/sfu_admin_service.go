package services

import (
	"context"
	"fmt"
	"time"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/promparse"
	"github.com/chorushq/chorus/pkg/sfu"
	"github.com/chorushq/chorus/repository"
)

// sfuScrapeTimeout bounds one live metrics fetch.
const sfuScrapeTimeout = 5 * time.Second

// SFUAdminService is the platform admin plane: SFU instance CRUD, server
// migration between instances, and the admin listings. Callers are gated by
// the platform-admin middleware; the service itself trusts them.
type SFUAdminService struct {
	instances repository.SFUInstanceRepository
	servers   repository.ServerRepository
	users     repository.UserRepository
	admin     *sfu.Admin
}

func NewSFUAdminService(
	instances repository.SFUInstanceRepository,
	servers repository.ServerRepository,
	users repository.UserRepository,
	admin *sfu.Admin,
) *SFUAdminService {
	return &SFUAdminService{instances: instances, servers: servers, users: users, admin: admin}
}

// ListInstances returns every registered instance, credentials omitted.
func (s *SFUAdminService) ListInstances(ctx context.Context) ([]models.SFUInstanceAdminView, error) {
	instances, err := s.instances.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.SFUInstanceAdminView, 0, len(instances))
	for _, inst := range instances {
		views = append(views, inst.AdminView())
	}
	return views, nil
}

// CreateInstance registers a new platform-managed SFU instance.
func (s *SFUAdminService) CreateInstance(ctx context.Context, req *models.CreateSFUInstanceRequest) (*models.SFUInstanceAdminView, error) {
	inst := &models.SFUInstance{
		URL:               req.URL,
		APIKey:            req.APIKey,
		APISecret:         req.APISecret,
		IsPlatformManaged: true,
		MaxServers:        req.MaxServers,
	}
	if err := s.instances.Create(ctx, inst); err != nil {
		return nil, err
	}
	view := inst.AdminView()
	return &view, nil
}

// UpdateInstance edits an instance; nil fields keep their current values,
// credentials included.
func (s *SFUAdminService) UpdateInstance(ctx context.Context, id string, req *models.UpdateSFUInstanceRequest) (*models.SFUInstanceAdminView, error) {
	inst, err := s.instances.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.URL != nil {
		inst.URL = *req.URL
	}
	if req.APIKey != nil {
		inst.APIKey = *req.APIKey
	}
	if req.APISecret != nil {
		inst.APISecret = *req.APISecret
	}
	if req.MaxServers != nil {
		inst.MaxServers = *req.MaxServers
	}
	if err := s.instances.Update(ctx, inst); err != nil {
		return nil, err
	}
	view := inst.AdminView()
	return &view, nil
}

// DeleteInstance removes an instance, reassigning its servers to dst when
// given. The destination must have room for every displaced server.
func (s *SFUAdminService) DeleteInstance(ctx context.Context, id, dstInstanceID string) error {
	inst, err := s.instances.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if dstInstanceID != "" {
		if dstInstanceID == id {
			return fmt.Errorf("%w: cannot reassign to the instance being deleted", pkg.ErrInvalidInput)
		}
		dst, err := s.instances.GetByID(ctx, dstInstanceID)
		if err != nil {
			return err
		}
		if dst.MaxServers > 0 && dst.ServerCount+inst.ServerCount > dst.MaxServers {
			return fmt.Errorf("%w: destination instance cannot absorb %d servers",
				pkg.ErrCapacityExceeded, inst.ServerCount)
		}
	}
	return s.instances.Delete(ctx, id, dstInstanceID)
}

// MigrateServer moves one chat server onto a different SFU instance.
func (s *SFUAdminService) MigrateServer(ctx context.Context, serverID string, req *models.MigrateServerRequest) error {
	if _, err := s.servers.GetByID(ctx, serverID); err != nil {
		return err
	}
	dst, err := s.instances.GetByID(ctx, req.SFUInstanceID)
	if err != nil {
		return err
	}
	if !dst.HasCapacity() {
		return fmt.Errorf("%w: instance is at capacity", pkg.ErrCapacityExceeded)
	}
	return s.instances.AssignServer(ctx, serverID, &dst.ID)
}

// LiveMetrics scrapes one instance's Prometheus endpoint right now.
// A failed scrape (breaker open included) returns Available=false, not an
// error: the admin panel renders the instance as unreachable.
func (s *SFUAdminService) LiveMetrics(ctx context.Context, instanceID string) (*models.SFUInstanceMetrics, error) {
	inst, err := s.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	scrapeCtx, cancel := context.WithTimeout(ctx, sfuScrapeTimeout)
	defer cancel()
	body, err := s.admin.ScrapeMetrics(scrapeCtx, inst.URL)
	if err != nil {
		return &models.SFUInstanceMetrics{FetchedAt: time.Now()}, nil
	}
	m := parseSFUMetrics(body)
	return &m, nil
}

// parseSFUMetrics maps the SFU's Prometheus exposition onto the live view.
func parseSFUMetrics(body string) models.SFUInstanceMetrics {
	p := promparse.Parse(body)
	return models.SFUInstanceMetrics{
		CPULoad:          p.Float64("livekit_node_cpu_load"),
		NumCPUs:          p.Int("livekit_node_num_cpus"),
		MemoryUsed:       p.Uint64("process_resident_memory_bytes"),
		RoomCount:        p.SumInt("livekit_room_active"),
		ParticipantCount: p.SumInt("livekit_participant_active"),
		Goroutines:       p.Int("go_goroutines"),
		BytesIn:          p.SumUint64("livekit_bytes_in_total"),
		BytesOut:         p.SumUint64("livekit_bytes_out_total"),
		FetchedAt:        time.Now(),
		Available:        true,
	}
}

// ListServers pages the admin server console.
func (s *SFUAdminService) ListServers(ctx context.Context, limit, offset int) ([]models.AdminServerListItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.servers.ListForAdmin(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.AdminServerListItem{}
	}
	return items, nil
}

// ListUsers pages the admin user console.
func (s *SFUAdminService) ListUsers(ctx context.Context, limit, offset int) ([]models.AdminUserListItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.users.ListForAdmin(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.AdminUserListItem{}
	}
	return items, nil
}
