package models

import "time"

// SFUInstance is one row of the "sfu_instances" table: a voice media server
// that hosts rooms for one or more chat servers.
//
// Platform-managed instances are operated by the deployment and assigned to
// new servers by load; self-hosted instances belong to a single server owner
// who brings their own SFU. APIKey and APISecret are AES-256-GCM encrypted
// at rest and decrypted only inside the repository; they are never
// serialized.
type SFUInstance struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	APIKey            string    `json:"-"`
	APISecret         string    `json:"-"`
	IsPlatformManaged bool      `json:"is_platform_managed"`
	ServerCount       int       `json:"server_count"`
	MaxServers        int       `json:"max_servers"` // 0 = unlimited
	CreatedAt         time.Time `json:"created_at"`
}

// HasCapacity reports whether the instance can take another server.
func (i *SFUInstance) HasCapacity() bool {
	return i.MaxServers == 0 || i.ServerCount < i.MaxServers
}

// SFUInstanceAdminView is the admin-panel projection. Credentials are
// omitted by construction, not by tag, so a future marshaling change cannot
// leak them.
type SFUInstanceAdminView struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	IsPlatformManaged bool      `json:"is_platform_managed"`
	ServerCount       int       `json:"server_count"`
	MaxServers        int       `json:"max_servers"`
	CreatedAt         time.Time `json:"created_at"`
}

// AdminView converts the instance into its credential-free projection.
func (i *SFUInstance) AdminView() SFUInstanceAdminView {
	return SFUInstanceAdminView{
		ID:                i.ID,
		URL:               i.URL,
		IsPlatformManaged: i.IsPlatformManaged,
		ServerCount:       i.ServerCount,
		MaxServers:        i.MaxServers,
		CreatedAt:         i.CreatedAt,
	}
}

// CreateSFUInstanceRequest is the body of POST /admin/sfu-instances.
type CreateSFUInstanceRequest struct {
	URL        string `json:"url" validate:"required,url|startswith=ws://|startswith=wss://"`
	APIKey     string `json:"api_key" validate:"required"`
	APISecret  string `json:"api_secret" validate:"required"`
	MaxServers int    `json:"max_servers" validate:"gte=0"`
}

// Normalize trims every field.
func (r *CreateSFUInstanceRequest) Normalize() {
	r.URL = trimmed(r.URL)
	r.APIKey = trimmed(r.APIKey)
	r.APISecret = trimmed(r.APISecret)
}

// UpdateSFUInstanceRequest is the body of PATCH /admin/sfu-instances/{id}.
// Nil fields keep their current values, including credentials.
type UpdateSFUInstanceRequest struct {
	URL        *string `json:"url" validate:"omitempty,min=1"`
	APIKey     *string `json:"api_key" validate:"omitempty,min=1"`
	APISecret  *string `json:"api_secret" validate:"omitempty,min=1"`
	MaxServers *int    `json:"max_servers" validate:"omitempty,gte=0"`
}

// Normalize trims the fields that are present.
func (r *UpdateSFUInstanceRequest) Normalize() {
	if r.URL != nil {
		*r.URL = trimmed(*r.URL)
	}
	if r.APIKey != nil {
		*r.APIKey = trimmed(*r.APIKey)
	}
	if r.APISecret != nil {
		*r.APISecret = trimmed(*r.APISecret)
	}
}

// MigrateServerRequest moves one chat server onto a different SFU instance.
type MigrateServerRequest struct {
	SFUInstanceID string `json:"sfu_instance_id" validate:"required"`
}

// SFUInstanceMetrics is the live resource view of one instance, parsed from
// its Prometheus text exposition. Available is false when the scrape failed;
// the other fields are then zero.
type SFUInstanceMetrics struct {
	CPULoad          float64   `json:"cpu_load"` // 0..1
	NumCPUs          int       `json:"num_cpus"`
	MemoryUsed       uint64    `json:"memory_used"`
	RoomCount        int       `json:"room_count"`
	ParticipantCount int       `json:"participant_count"`
	Goroutines       int       `json:"goroutines"`
	BytesIn          uint64    `json:"bytes_in"`
	BytesOut         uint64    `json:"bytes_out"`
	FetchedAt        time.Time `json:"fetched_at"`
	Available        bool      `json:"available"`
}

// MetricsSnapshot is one historical sample written by the metrics collector.
// The derived fields (CPUPercent, bandwidth) are computed at collection time
// from counter deltas between consecutive scrapes.
type MetricsSnapshot struct {
	ID               int64     `json:"id"`
	InstanceID       string    `json:"instance_id"`
	RoomCount        int       `json:"room_count"`
	ParticipantCount int       `json:"participant_count"`
	MemoryBytes      uint64    `json:"memory_bytes"`
	Goroutines       int       `json:"goroutines"`
	BytesIn          uint64    `json:"bytes_in"`
	BytesOut         uint64    `json:"bytes_out"`
	CPUPercent       float64   `json:"cpu_pct"`
	BandwidthInBps   float64   `json:"bandwidth_in_bps"`
	BandwidthOutBps  float64   `json:"bandwidth_out_bps"`
	Available        bool      `json:"available"`
	CollectedAt      time.Time `json:"collected_at"`
}

// MetricsHistorySummary is the aggregate (peak/average) view over a period,
// computed in SQL. The admin panel uses it for capacity planning.
type MetricsHistorySummary struct {
	Period      string `json:"period"` // "24h", "7d" or "30d"
	SampleCount int    `json:"sample_count"`

	PeakParticipants int     `json:"peak_participants"`
	AvgParticipants  float64 `json:"avg_participants"`
	PeakRooms        int     `json:"peak_rooms"`
	AvgRooms         float64 `json:"avg_rooms"`

	PeakMemoryBytes uint64 `json:"peak_memory_bytes"`
	AvgMemoryBytes  uint64 `json:"avg_memory_bytes"`

	PeakCPUPercent float64 `json:"peak_cpu_pct"`
	AvgCPUPercent  float64 `json:"avg_cpu_pct"`

	PeakBandwidthIn  float64 `json:"peak_bandwidth_in_bps"`
	AvgBandwidthIn   float64 `json:"avg_bandwidth_in_bps"`
	PeakBandwidthOut float64 `json:"peak_bandwidth_out_bps"`
	AvgBandwidthOut  float64 `json:"avg_bandwidth_out_bps"`
}

// AdminServerListItem is the admin panel's server row: the server plus usage
// aggregates gathered in one query.
type AdminServerListItem struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	IconURL           *string    `json:"icon_url"`
	OwnerID           string     `json:"owner_id"`
	OwnerUsername     string     `json:"owner_username"`
	SFUInstanceID     *string    `json:"sfu_instance_id"`
	IsPlatformManaged bool       `json:"is_platform_managed"`
	MemberCount       int        `json:"member_count"`
	ChannelCount      int        `json:"channel_count"`
	MessageCount      int        `json:"message_count"`
	CreatedAt         time.Time  `json:"created_at"`
	LastActivity      *time.Time `json:"last_activity"`
}

// AdminUserListItem is the admin panel's user row.
type AdminUserListItem struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	DisplayName     *string   `json:"display_name"`
	AvatarURL       *string   `json:"avatar_url"`
	Status          string    `json:"status"`
	IsPlatformAdmin bool      `json:"is_platform_admin"`
	MessageCount    int       `json:"message_count"`
	ServerCount     int       `json:"server_count"`
	OwnedServers    int       `json:"owned_servers"`
	BanCount        int       `json:"ban_count"`
	CreatedAt       time.Time `json:"created_at"`
}
