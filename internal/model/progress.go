package model

// ProgressFunc receives percentage updates (0..100) from a single
// external invocation. Implementations must not block.
type ProgressFunc func(percent int)

// StageProgressFunc receives stage-scoped progress from a pipeline stage.
type StageProgressFunc func(stage Stage, percent int, message string)

// Event is one progress or terminal notification for a task, consumed by
// the UI layer outside this module.
type Event struct {
	TaskID       string
	Stage        Stage
	Progress     int
	Message      string
	Title        string
	Thumbnail    string
	OutputFiles  []string
	ErrorDetails string
}
