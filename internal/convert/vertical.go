// Package convert letterboxes source video onto the fixed 1080x1920
// vertical canvas.
package convert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/yt2tiktok/internal/ffmpegx"
	"github.com/clipforge/yt2tiktok/internal/media"
	"github.com/clipforge/yt2tiktok/internal/model"
)

// Canvas geometry
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920
)

// Dynamic timeout bounds
const (
	TimeoutMin = 10 * time.Minute
	TimeoutMax = 120 * time.Minute
)

// Service is the vertical conversion stage.
type Service struct {
	cache  *media.Cache
	audio  *media.Checker
	runner ffmpegx.Invoker
	log    zerolog.Logger

	timeoutMin time.Duration
	timeoutMax time.Duration
}

// NewService builds the conversion stage. Zero timeout bounds fall back
// to the package defaults.
func NewService(cache *media.Cache, audio *media.Checker, runner ffmpegx.Invoker,
	timeoutMin, timeoutMax time.Duration, log zerolog.Logger) *Service {

	if timeoutMin <= 0 {
		timeoutMin = TimeoutMin
	}
	if timeoutMax <= 0 {
		timeoutMax = TimeoutMax
	}
	return &Service{
		cache:      cache,
		audio:      audio,
		runner:     runner,
		log:        log.With().Str("component", "convert").Logger(),
		timeoutMin: timeoutMin,
		timeoutMax: timeoutMax,
	}
}

// Convert letterboxes inputPath onto the vertical canvas at outputPath.
// If the input carries audio it is re-encoded and mapped explicitly, and
// losing it is a hard failure; a silent input proceeds video-only with a
// loud diagnostic.
func (s *Service) Convert(ctx context.Context, inputPath, outputPath string,
	position model.VideoPosition, taskKey string, progress model.ProgressFunc) error {

	info, err := s.cache.Get(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("probe %s: %w", inputPath, err)
	}
	if info.VideoStream() == nil {
		return fmt.Errorf("%s: %w", inputPath, model.ErrNoVideoStream)
	}

	hasAudio := s.audio.HasAudio(ctx, inputPath).Present
	if !hasAudio {
		s.log.Error().Str("path", inputPath).
			Msg("input has no audio stream, output will be silent")
	}

	timeout := s.Timeout(info.Duration)
	job := ffmpegx.Job{
		Key:      taskKey,
		Args:     buildArgs(inputPath, position, hasAudio),
		Output:   outputPath,
		Timeout:  timeout,
		Duration: info.Duration,
		Progress: progress,
	}

	s.log.Info().Str("input", inputPath).Str("position", string(position)).
		Dur("timeout", timeout).Bool("audio", hasAudio).Msg("converting to vertical")

	if err := s.runner.Run(ctx, job); err != nil {
		var te *model.TimeoutError
		if errors.As(err, &te) {
			return fmt.Errorf(
				"vertical conversion timed out after %s (source is %s long); try a shorter video: %w",
				te.Elapsed.Round(time.Second), secondsToMinutes(info.Duration), err)
		}
		return err
	}

	s.cache.Invalidate(outputPath)
	if hasAudio && !s.audio.HasAudio(ctx, outputPath).Present {
		return &model.AudioIntegrityError{Stage: model.StageConverting, Path: outputPath}
	}
	return nil
}

// Timeout computes the dynamic transcode deadline: twice the source
// duration plus ten minutes of headroom, clamped to the configured
// bounds so long videos are not falsely killed and runaway jobs still
// die.
func (s *Service) Timeout(durationSeconds float64) time.Duration {
	if durationSeconds <= 0 {
		return s.timeoutMin
	}
	calculated := time.Duration(durationSeconds*2*float64(time.Second)) + 10*time.Minute
	if calculated < s.timeoutMin {
		return s.timeoutMin
	}
	if calculated > s.timeoutMax {
		return s.timeoutMax
	}
	return calculated
}

// padY returns the pad filter's vertical offset expression for an anchor.
func padY(position model.VideoPosition) string {
	switch position {
	case model.PositionTop:
		return "0"
	case model.PositionBottom:
		return "(oh-ih)"
	default:
		return "(oh-ih)/2"
	}
}

func buildArgs(inputPath string, position model.VideoPosition, hasAudio bool) []string {
	filter := fmt.Sprintf("scale=%d:-2:flags=lanczos,pad=%d:%d:(ow-iw)/2:%s:black",
		CanvasWidth, CanvasWidth, CanvasHeight, padY(position))

	args := ffmpegx.InputArgs()
	args = append(args, "-i", inputPath, "-vf", filter)
	args = append(args, ffmpegx.EncodeArgs()...)
	args = append(args,
		"-map", "0:v:0",
		"-avoid_negative_ts", "make_zero",
		"-fflags", "+genpts",
	)
	if hasAudio {
		args = append(args, ffmpegx.AudioEncodeArgs()...)
	}
	return args
}

func secondsToMinutes(d float64) string {
	return fmt.Sprintf("%d minutes", int(d/60+0.5))
}
