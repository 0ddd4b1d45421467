package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for conditions that carry no extra context.
var (
	// ErrInvalidInput marks a malformed source URL. Never retried.
	ErrInvalidInput = errors.New("invalid source URL")

	// ErrNoVideoStream marks a file without a playable video stream.
	ErrNoVideoStream = errors.New("no video stream found")
)

// ToolUnavailableError reports a missing external binary together with
// the remedy the user should apply.
type ToolUnavailableError struct {
	Tool   string
	Remedy string
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("%s not found in PATH: %s", e.Tool, e.Remedy)
}

// AudioIntegrityError reports audio missing after a stage that should
// have preserved or produced it.
type AudioIntegrityError struct {
	Stage    Stage
	VideoID  string
	Path     string
	Attempts int
	// AudioCandidates is how many separate audio files were observed
	// during acquisition; zero means no merge was even possible.
	AudioCandidates int
}

func (e *AudioIntegrityError) Error() string {
	if e.Stage == StageDownloading {
		return fmt.Sprintf(
			"downloaded file has no audio stream after %d attempts (video %s, path %s, %d audio candidates)",
			e.Attempts, e.VideoID, e.Path, e.AudioCandidates)
	}
	return fmt.Sprintf("audio stream lost during %s stage (path %s)", e.Stage, e.Path)
}

// TimeoutError reports an external process killed for exceeding its
// allotted time.
type TimeoutError struct {
	Key     string
	Limit   time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s (limit %s)",
		e.Key, e.Elapsed.Round(time.Second), e.Limit)
}

// MissingArtifactError reports an intermediate file that vanished
// between stages.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("expected intermediate file is missing: %s", e.Path)
}

// ToolError reports a nonzero exit or stream-level failure from an
// external process. Output is capped by the caller before construction.
type ToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed: %v\n%s", e.Tool, e.Err, e.Output)
}

func (e *ToolError) Unwrap() error { return e.Err }

// IsTransientSpawn reports whether captured tool output looks like a
// resource-busy spawn race worth retrying.
func IsTransientSpawn(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "ebusy") ||
		strings.Contains(lower, "resource busy") ||
		strings.Contains(lower, "text file busy")
}
