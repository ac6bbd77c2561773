package models

import "time"

// ChannelType distinguishes text chat from voice rooms.
type ChannelType string

const (
	ChannelTypeText  ChannelType = "text"
	ChannelTypeVoice ChannelType = "voice"
)

// Channel is one row of the "channels" table.
//
// CategoryID is nullable: uncategorized channels are rendered above the first
// category. UserLimit and Bitrate only matter for voice channels; a
// UserLimit of 0 means unlimited.
type Channel struct {
	ID         string      `json:"id"`
	ServerID   string      `json:"server_id"`
	CategoryID *string     `json:"category_id"`
	Name       string      `json:"name"`
	Type       ChannelType `json:"type"`
	Topic      *string     `json:"topic"`
	Position   int         `json:"position"`
	UserLimit  int         `json:"user_limit"`
	Bitrate    int         `json:"bitrate"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Category is one row of the "categories" table.
type Category struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"server_id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryWithChannels is the sidebar projection: a category and its
// channels, both ordered by position.
type CategoryWithChannels struct {
	Category
	Channels []Channel `json:"channels"`
}

// CreateChannelRequest is the body of POST /servers/{id}/channels.
type CreateChannelRequest struct {
	Name       string      `json:"name" validate:"required,min=1,max=100,channelname"`
	Type       ChannelType `json:"type" validate:"required,oneof=text voice"`
	CategoryID *string     `json:"category_id"`
	Topic      *string     `json:"topic" validate:"omitempty,max=1024"`
	UserLimit  int         `json:"user_limit" validate:"gte=0,lte=99"`
	Bitrate    int         `json:"bitrate" validate:"gte=0,lte=384000"`
}

// Normalize trims the name and topic.
func (r *CreateChannelRequest) Normalize() {
	r.Name = trimmed(r.Name)
	if r.Topic != nil {
		*r.Topic = trimmed(*r.Topic)
	}
}

// UpdateChannelRequest is the body of PATCH /channels/{id}.
// Nil fields are left unchanged. Type is immutable after creation.
type UpdateChannelRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=100,channelname"`
	CategoryID *string `json:"category_id"`
	Topic      *string `json:"topic" validate:"omitempty,max=1024"`
	UserLimit  *int    `json:"user_limit" validate:"omitempty,gte=0,lte=99"`
	Bitrate    *int    `json:"bitrate" validate:"omitempty,gte=0,lte=384000"`
}

// Normalize trims the fields that are present.
func (r *UpdateChannelRequest) Normalize() {
	if r.Name != nil {
		*r.Name = trimmed(*r.Name)
	}
	if r.Topic != nil {
		*r.Topic = trimmed(*r.Topic)
	}
}

// CreateCategoryRequest is the body of POST /servers/{id}/categories.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// Normalize trims the name.
func (r *CreateCategoryRequest) Normalize() { r.Name = trimmed(r.Name) }

// UpdateCategoryRequest is the body of PATCH /categories/{id}.
type UpdateCategoryRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
}

// Normalize trims the name if present.
func (r *UpdateCategoryRequest) Normalize() {
	if r.Name != nil {
		*r.Name = trimmed(*r.Name)
	}
}

// ReorderChannelsRequest is the body of PUT /servers/{id}/channels/reorder.
// Positions carries the full new ordering within one category scope and is
// applied in a single transaction so a failure leaves the old order intact.
type ReorderChannelsRequest struct {
	Positions []PositionUpdate `json:"positions" validate:"required,min=1,dive"`
}

// Validate rejects duplicate ids and positions.
func (r *ReorderChannelsRequest) Validate() error {
	return validatePositions(r.Positions)
}

// ReorderCategoriesRequest is the body of PUT /servers/{id}/categories/reorder.
type ReorderCategoriesRequest struct {
	Positions []PositionUpdate `json:"positions" validate:"required,min=1,dive"`
}

// Validate rejects duplicate ids and positions.
func (r *ReorderCategoriesRequest) Validate() error {
	return validatePositions(r.Positions)
}
