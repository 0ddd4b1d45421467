package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestOutputState_IngestProgress(t *testing.T) {
	state := newOutputState(t.TempDir())
	var percents []int
	progress := func(p int) { percents = append(percents, p) }

	state.ingest("[download]   0.5% of 10.00MiB at 1.00MiB/s", progress)
	state.ingest("[download]  42.3% of 10.00MiB at 1.00MiB/s", progress)
	state.ingest("[download] 100.0% of 10.00MiB", progress)
	state.ingest("no percent here", progress)

	assert.Equal(t, []int{1, 42, 100}, percents)
}

func TestOutputState_IngestDestination(t *testing.T) {
	dir := t.TempDir()
	state := newOutputState(dir)

	videoPath := filepath.Join(dir, "dQw4w9WgXcQ.mp4")
	state.ingest("[download] Destination: "+videoPath, nil)

	assert.Equal(t, videoPath, state.downloadPath)
	assert.Equal(t, "dQw4w9WgXcQ", state.videoID)
	assert.Contains(t, state.videoCandidates, videoPath)

	audioPath := filepath.Join(dir, "dQw4w9WgXcQ.m4a")
	state.ingest("[download] Destination: "+audioPath, nil)
	assert.Contains(t, state.audioCandidates, audioPath)
}

func TestOutputState_IngestMergeWins(t *testing.T) {
	dir := t.TempDir()
	state := newOutputState(dir)
	merged := filepath.Join(dir, "dQw4w9WgXcQ.mp4")

	state.ingest("[download] Destination: "+filepath.Join(dir, "dQw4w9WgXcQ.f137.mp4"), nil)
	state.ingest(`[Merger] Merging formats into "`+merged+`"`, nil)

	assert.Equal(t, merged, state.mergedPath)
	assert.Equal(t, merged, state.downloadPath)
}

func TestOutputState_IngestAlreadyDownloaded(t *testing.T) {
	dir := t.TempDir()
	state := newOutputState(dir)
	path := filepath.Join(dir, "abcdefghijk.mp4")

	state.ingest("[download] "+path+" has already been downloaded", nil)
	assert.Equal(t, path, state.downloadPath)
}

func TestOutputState_ResolvePrefersMerged(t *testing.T) {
	dir := t.TempDir()
	state := newOutputState(dir)

	merged := filepath.Join(dir, "merged.mp4")
	loose := filepath.Join(dir, "loose.webm")
	touch(t, merged)
	touch(t, loose)
	state.mergedPath = merged
	state.videoCandidates[loose] = struct{}{}

	assert.Equal(t, merged, state.resolve())
}

func TestOutputState_ResolveByExtensionOrder(t *testing.T) {
	dir := t.TempDir()
	state := newOutputState(dir)

	webm := filepath.Join(dir, "clip.webm")
	mkv := filepath.Join(dir, "clip.mkv")
	touch(t, webm)
	touch(t, mkv)
	state.videoCandidates[webm] = struct{}{}
	state.videoCandidates[mkv] = struct{}{}

	assert.Equal(t, mkv, state.resolve(), "mkv outranks webm")
}

func TestOutputState_ResolveSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	state := newOutputState(dir)

	gone := filepath.Join(dir, "gone.mp4")
	present := filepath.Join(dir, "here.webm")
	touch(t, present)
	state.mergedPath = gone
	state.videoCandidates[present] = struct{}{}

	assert.Equal(t, present, state.resolve())
}

func TestOutputState_ResolveScansByVideoID(t *testing.T) {
	dir := t.TempDir()
	state := newOutputState(dir)
	state.videoID = "dQw4w9WgXcQ"

	onDisk := filepath.Join(dir, "dQw4w9WgXcQ.mp4")
	touch(t, onDisk)
	touch(t, filepath.Join(dir, "unrelated.mp4"))

	assert.Equal(t, onDisk, state.resolve())
}

func TestOutputState_ResolveEmpty(t *testing.T) {
	state := newOutputState(t.TempDir())
	assert.Empty(t, state.resolve())
}

func TestOutputState_BestAudioCandidate(t *testing.T) {
	dir := t.TempDir()
	state := newOutputState(dir)

	m4a := filepath.Join(dir, "a.m4a")
	opus := filepath.Join(dir, "a.opus")
	touch(t, m4a)
	touch(t, opus)
	state.audioCandidates[m4a] = struct{}{}
	state.audioCandidates[opus] = struct{}{}

	assert.Equal(t, m4a, state.bestAudioCandidate(), "m4a outranks opus")

	require.NoError(t, os.Remove(m4a))
	assert.Equal(t, opus, state.bestAudioCandidate(), "missing files are skipped")
}

func TestOutputState_BestAudioCandidateNone(t *testing.T) {
	state := newOutputState(t.TempDir())
	assert.Empty(t, state.bestAudioCandidate())
}
