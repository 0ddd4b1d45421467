package overlay

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/yt2tiktok/internal/ffmpegx"
	"github.com/clipforge/yt2tiktok/internal/media"
	"github.com/clipforge/yt2tiktok/internal/model"
)

// Service is the text overlay stage.
type Service struct {
	audio   *media.Checker
	runner  ffmpegx.Invoker
	timeout time.Duration
	log     zerolog.Logger
}

// NewService builds the overlay stage. A zero timeout falls back to
// five minutes, which covers a 60 second segment with wide margin.
func NewService(audio *media.Checker, runner ffmpegx.Invoker,
	timeout time.Duration, log zerolog.Logger) *Service {

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Service{
		audio:   audio,
		runner:  runner,
		timeout: timeout,
		log:     log.With().Str("component", "overlay").Logger(),
	}
}

// Apply renders the enabled layers onto inputPath and writes the result
// to outputPath. With no enabled layers the segment is copied through
// byte for byte, skipping the re-encode entirely. Audio is never
// re-encoded here; losing it is fatal.
func (s *Service) Apply(ctx context.Context, inputPath, outputPath string,
	layers []model.TextLayer, taskKey string) error {

	filter := BuildFilter(layers)
	if filter == "" {
		s.log.Debug().Str("input", inputPath).Msg("no enabled layers, copying segment")
		return copyFile(inputPath, outputPath)
	}

	hasAudio := s.audio.HasAudio(ctx, inputPath).Present

	args := []string{"-i", inputPath, "-vf", filter}
	args = append(args, ffmpegx.EncodeArgs()...)
	args = append(args, "-map", "0:v:0")
	if hasAudio {
		args = append(args, "-c:a", "copy", "-map", "0:a:0")
	}

	job := ffmpegx.Job{
		Key:     taskKey,
		Args:    args,
		Output:  outputPath,
		Timeout: s.timeout,
	}
	if err := s.runner.Run(ctx, job); err != nil {
		return fmt.Errorf("text overlay: %w", err)
	}

	if hasAudio && !s.audio.HasAudio(ctx, outputPath).Present {
		return &model.AudioIntegrityError{Stage: model.StageAddingText, Path: outputPath}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy segment: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("copy segment: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy segment: %w", err)
	}
	return out.Close()
}
