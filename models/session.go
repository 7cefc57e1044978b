package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session status values. Transitions are one-directional:
// awaiting_image1 -> awaiting_image2 -> processing -> completed,
// with failed reachable from any non-terminal state.
const (
	SessionAwaitingImage1 = "awaiting_image1"
	SessionAwaitingImage2 = "awaiting_image2"
	SessionProcessing     = "processing"
	SessionCompleted      = "completed"
	SessionFailed         = "failed"
)

// ActiveSessionStatuses are the states a user can still act on.
var ActiveSessionStatuses = []string{
	SessionAwaitingImage1,
	SessionAwaitingImage2,
	SessionProcessing,
}

type CollageSession struct {
	JsonModel
	SlackUserID    string  `gorm:"index" json:"slack_user_id"`
	SlackChannelID string  `json:"slack_channel_id"`
	SlackThreadTS  *string `json:"slack_thread_ts"`
	Status         string  `gorm:"index" json:"status"`

	// local paths of the uploaded sources, relative to the storage root
	Image1Path *string `json:"image1_path"`
	Image2Path *string `json:"image2_path"`
	// background template name; empty means the worker picks one
	BackgroundName *string `json:"background_name"`

	// storage key of the finished collage, set on completion
	OutputKey    *string `json:"output_key"`
	OverlayColor *string `json:"overlay_color"`

	ErrorMessage      *string `json:"error_message"`
	ProcessRetryTimes uint    `json:"-"`
}

// IsTerminal reports whether no further transitions are allowed.
func (s *CollageSession) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionFailed
}

// HasBothImages reports whether processing can start.
func (s *CollageSession) HasBothImages() bool {
	return s.Image1Path != nil && s.Image2Path != nil
}
