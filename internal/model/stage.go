package model

// Stage is a task's position in the pipeline. The string values are the
// wire names emitted in progress events.
type Stage string

const (
	StageQueued      Stage = "queued"
	StageInfo        Stage = "info"
	StageDownloading Stage = "downloading"
	StageConverting  Stage = "converting"
	StageSplitting   Stage = "splitting"
	StageAddingText  Stage = "adding-text"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
)

func (s Stage) String() string { return string(s) }

// IsTerminal reports whether no further stage transitions can occur.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageError
}
