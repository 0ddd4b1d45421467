// Package download resolves and fetches source videos through the yt-dlp
// binary, guaranteeing the returned file carries an audio stream.
package download

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/yt2tiktok/internal/config"
	"github.com/clipforge/yt2tiktok/internal/ffmpegx"
	"github.com/clipforge/yt2tiktok/internal/media"
	"github.com/clipforge/yt2tiktok/internal/model"
	"github.com/clipforge/yt2tiktok/internal/proc"
)

// Info retry policy
const (
	maxInfoAttempts  = 3
	infoBackoffStart = 1 * time.Second
)

const mergeTimeout = 10 * time.Minute

var youtubeURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://(www\.)?(youtube\.com|youtu\.be)/.+`),
	regexp.MustCompile(`(?i)^https?://.*youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`(?i)^https?://youtu\.be/[\w-]+`),
}

// Service is the acquisition stage.
type Service struct {
	cfg      *config.Config
	bin      string
	tempDir  string
	cache    *media.Cache
	audio    *media.Checker
	runner   ffmpegx.Invoker
	registry *proc.Registry
	log      zerolog.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewService verifies the yt-dlp binary and builds the acquisition stage.
func NewService(cfg *config.Config, cache *media.Cache, audio *media.Checker,
	runner ffmpegx.Invoker, registry *proc.Registry, log zerolog.Logger) (*Service, error) {

	if _, err := exec.LookPath(cfg.YtDlpBin); err != nil {
		return nil, &model.ToolUnavailableError{
			Tool:   cfg.YtDlpBin,
			Remedy: "install yt-dlp or set YT2TIKTOK_YTDLP_BIN",
		}
	}
	return &Service{
		cfg:      cfg,
		bin:      cfg.YtDlpBin,
		tempDir:  cfg.TempDir,
		cache:    cache,
		audio:    audio,
		runner:   runner,
		registry: registry,
		log:      log.With().Str("component", "download").Logger(),
		sleep:    sleepCtx,
	}, nil
}

// Validate checks the URL against the known video-host shapes.
func (s *Service) Validate(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return model.ErrInvalidInput
	}
	for _, p := range youtubeURLPatterns {
		if p.MatchString(url) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", model.ErrInvalidInput, url)
}

// Info resolves title, duration, thumbnail and uploader via yt-dlp's
// JSON dump, retrying transient parse and resource-busy failures with a
// doubling backoff starting at one second.
func (s *Service) Info(ctx context.Context, url, taskKey string) (*model.VideoInfo, error) {
	var lastErr error
	backoff := infoBackoffStart

	for attempt := 0; attempt < maxInfoAttempts; attempt++ {
		if attempt > 0 {
			s.log.Info().Int("attempt", attempt+1).Str("url", url).Msg("retrying video info")
			if err := s.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		info, retryable, err := s.infoAttempt(ctx, url, taskKey)
		if err == nil {
			return info, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("video info failed after %d attempts: %w", maxInfoAttempts, lastErr)
}

func (s *Service) infoAttempt(ctx context.Context, url, taskKey string) (*model.VideoInfo, bool, error) {
	args := append([]string{"--dump-json", "--no-playlist"}, s.cfg.YtDlpExtra...)
	args = append(args, url)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmd := exec.CommandContext(runCtx, s.bin, args...)
	var stdout strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = newBoundedWriter(s.cfg.MaxErrorOutput)

	// Cancelling the context kills the process; CommandContext owns it.
	key := taskKey + "_info"
	s.registry.Track(key, cancel)
	defer s.registry.Untrack(key)

	bw := cmd.Stderr.(*boundedWriter)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		toolErr := &model.ToolError{Tool: "yt-dlp", Output: bw.String(), Err: err}
		return nil, model.IsTransientSpawn(bw.String()) || model.IsTransientSpawn(err.Error()), toolErr
	}

	var info model.VideoInfo
	if err := json.Unmarshal([]byte(stdout.String()), &info); err != nil {
		// Transient: yt-dlp occasionally interleaves warnings into stdout.
		return nil, true, fmt.Errorf("parse video info: %w", err)
	}
	return &info, false, nil
}

// Download fetches the video behind url into the temp dir and returns
// the path of a file that is guaranteed to contain an audio stream.
// Attempts walk the format tiers; a video-only result is remuxed with an
// observed audio candidate when possible, otherwise deleted and retried.
func (s *Service) Download(ctx context.Context, url, taskKey string, progress model.ProgressFunc) (string, error) {
	if err := s.Validate(url); err != nil {
		return "", err
	}

	var lastState *outputState
	var lastPath string
	for attempt := 0; attempt <= MaxDownloadRetries; attempt++ {
		if attempt > 0 {
			s.log.Warn().Int("attempt", attempt+1).Str("url", url).
				Msg("retrying download on next format tier")
		}

		state, err := s.downloadAttempt(ctx, url, taskKey, attempt, progress)
		if err != nil {
			if model.IsTransientSpawn(err.Error()) && attempt < MaxDownloadRetries {
				continue
			}
			return "", err
		}
		lastState = state

		finalPath := state.resolve()
		if finalPath == "" {
			return "", &model.MissingArtifactError{Path: filepath.Join(s.tempDir, state.videoID)}
		}
		lastPath = finalPath

		if s.audio.HasAudio(ctx, finalPath).Present {
			return finalPath, nil
		}

		if merged, ok := s.tryAudioMerge(ctx, state, finalPath, taskKey); ok {
			s.removeFile(finalPath)
			return merged, nil
		}

		s.log.Error().Str("path", finalPath).Int("attempt", attempt+1).
			Int("audio_candidates", len(state.audioCandidates)).
			Msg("downloaded file has no audio stream")
		s.removeFile(finalPath)
	}

	err := &model.AudioIntegrityError{
		Stage:    model.StageDownloading,
		Attempts: MaxDownloadRetries + 1,
		Path:     lastPath,
	}
	if lastState != nil {
		err.VideoID = lastState.videoID
		err.AudioCandidates = len(lastState.audioCandidates)
	}
	if err.VideoID == "" {
		err.VideoID = "UNKNOWN"
	}
	return "", err
}

func (s *Service) downloadAttempt(ctx context.Context, url, taskKey string, attempt int,
	progress model.ProgressFunc) (*outputState, error) {

	args := []string{
		"-f", FormatSelector(attempt),
		"--merge-output-format", "mp4",
		"--postprocessor-args", "ffmpeg:-c:a copy",
		"--no-playlist",
		"--extractor-args", "youtube:player_client=android",
		"-o", filepath.Join(s.tempDir, "%(id)s.%(ext)s"),
		"--newline",
	}
	args = append(args, s.cfg.YtDlpExtra...)
	args = append(args, url)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmd := exec.CommandContext(runCtx, s.bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &model.ToolError{Tool: "yt-dlp", Err: err}
	}
	errBuf := newBoundedWriter(s.cfg.MaxErrorOutput)
	cmd.Stderr = errBuf

	s.registry.Track(taskKey, cancel)
	defer s.registry.Untrack(taskKey)

	s.log.Info().Str("url", url).Int("attempt", attempt+1).Msg("starting download")
	if err := cmd.Start(); err != nil {
		return nil, &model.ToolError{Tool: "yt-dlp", Err: err}
	}

	state := newOutputState(s.tempDir)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		state.ingest(scanner.Text(), progress)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.ToolError{
			Tool:   "yt-dlp",
			Output: s.diagnostics(url, state, errBuf.String()),
			Err:    err,
		}
	}
	return state, nil
}

// tryAudioMerge remuxes a video-only download with the best observed
// audio candidate. Recovered audio is always re-encoded to AAC so the
// resulting MP4 is valid regardless of the candidate's codec.
func (s *Service) tryAudioMerge(ctx context.Context, state *outputState, videoPath, taskKey string) (string, bool) {
	candidate := state.bestAudioCandidate()
	if candidate == "" {
		return "", false
	}

	base := state.videoID
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	}
	merged := filepath.Join(s.tempDir, base+"_merged.mp4")

	job := ffmpegx.Job{
		Key: taskKey + "_merge",
		Args: []string{
			"-i", videoPath,
			"-i", candidate,
			"-c:v", "copy",
			"-c:a", "aac",
			"-b:a", "128k",
			"-ar", "44100",
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-shortest",
			"-movflags", "+faststart",
		},
		Output:  merged,
		Timeout: mergeTimeout,
	}
	if err := s.runner.Run(ctx, job); err != nil {
		s.log.Error().Err(err).Str("audio", candidate).Msg("audio merge failed")
		return "", false
	}

	s.cache.Invalidate(merged)
	if !s.audio.HasAudio(ctx, merged).Present {
		s.log.Error().Str("path", merged).Msg("merged file still has no audio")
		s.removeFile(merged)
		return "", false
	}
	s.log.Info().Str("audio", candidate).Str("path", merged).Msg("audio merged from separate stream")
	return merged, true
}

func (s *Service) diagnostics(url string, state *outputState, stderr string) string {
	var names []string
	if entries, err := os.ReadDir(s.tempDir); err == nil {
		for _, e := range entries {
			names = append(names, e.Name())
		}
	}
	return fmt.Sprintf("URL: %s\nVideo ID: %s\nDownload path: %s\nAudio candidates: %d\nstderr: %s\nTemp files: %s",
		url, orUnknown(state.videoID), orUnknown(state.downloadPath),
		len(state.audioCandidates), stderr, strings.Join(names, ", "))
}

func (s *Service) removeFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
	s.cache.Invalidate(path)
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// boundedWriter caps captured process output to avoid unbounded memory
// retention on chatty failures.
type boundedWriter struct {
	max int64
	b   strings.Builder
}

func newBoundedWriter(max int64) *boundedWriter {
	if max <= 0 {
		max = 10 * 1024
	}
	return &boundedWriter{max: max}
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if remaining := w.max - int64(w.b.Len()); remaining > 0 {
		if int64(len(p)) > remaining {
			w.b.Write(p[:remaining])
		} else {
			w.b.Write(p)
		}
	}
	return len(p), nil
}

func (w *boundedWriter) String() string { return w.b.String() }
