package models

type SessionCreateIn struct {
	SlackUserID    string  `json:"slack_user_id" validate:"required"`
	SlackChannelID string  `json:"slack_channel_id" validate:"required"`
	SlackThreadTS  *string `json:"slack_thread_ts"`
}

type SessionOut struct {
	ID             uint    `json:"id"`
	SlackUserID    string  `json:"slack_user_id"`
	SlackChannelID string  `json:"slack_channel_id"`
	SlackThreadTS  *string `json:"slack_thread_ts"`
	Status         string  `json:"status"`
	Image1Uploaded bool    `json:"image1_uploaded"`
	Image2Uploaded bool    `json:"image2_uploaded"`
	BackgroundName *string `json:"background_name"`
	OverlayColor   *string `json:"overlay_color"`
	OutputURL      *string `json:"output_url"`
	ErrorMessage   *string `json:"error_message"`
	CreatedAt      int64   `json:"created_at"`
}

type UploadOut struct {
	SessionID uint   `json:"session_id"`
	ImageNum  int    `json:"image_num"`
	Status    string `json:"status"`
	Path      string `json:"path"`
}

type ProcessIn struct {
	SessionID      uint    `json:"session_id" validate:"required"`
	BackgroundName *string `json:"background_name"`
}

type ProcessOut struct {
	SessionID uint   `json:"session_id"`
	Status    string `json:"status"`
}

type BackgroundOut struct {
	Name string `json:"name"`
	File string `json:"file"`
}

type PaletteColorOut struct {
	Name string `json:"name"`
	R    uint8  `json:"r"`
	G    uint8  `json:"g"`
	B    uint8  `json:"b"`
}

type BackgroundsOut struct {
	Backgrounds []BackgroundOut   `json:"backgrounds"`
	Palette     []PaletteColorOut `json:"palette"`
}
