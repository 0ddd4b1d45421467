package model

import "time"

// MediaTask represents a single user-initiated conversion job.
// The settings snapshot is taken at submission time; later settings
// changes must not affect a task already in flight.
type MediaTask struct {
	ID              string
	SourceURL       string
	OutputDirectory string
	Settings        Settings
	Stage           Stage
	Progress        int    // 0 to 100, within the current stage
	LastError       string // last error message if any
	Title           string
	Thumbnail       string
	OutputFiles     []string
	SubmittedAt     time.Time
	FinishedAt      time.Time
}

// Settings is the immutable per-task configuration snapshot.
type Settings struct {
	VideoPosition    VideoPosition
	TextLayers       []TextLayer
	PartTextTemplate string
}

// VideoPosition is the vertical anchor of the source frame on the canvas
type VideoPosition string

const (
	PositionTop    VideoPosition = "top"
	PositionCenter VideoPosition = "center"
	PositionBottom VideoPosition = "bottom"
)

// Segment is one fixed-duration slice of the vertical video. Part number
// 0 is reserved for a whole video that was short enough to skip splitting.
type Segment struct {
	Path       string
	PartNumber int
	Duration   float64 // seconds
}

// VideoInfo holds the resolved metadata of a source video
type VideoInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	Uploader    string  `json:"uploader"`
	Description string  `json:"description"`
}
