// Package split cuts a vertical video into fixed-duration parts using
// stream copy, in CPU-bounded parallel batches.
package split

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/clipforge/yt2tiktok/internal/ffmpegx"
	"github.com/clipforge/yt2tiktok/internal/media"
	"github.com/clipforge/yt2tiktok/internal/model"
)

// Segment length in seconds. Sources at or under this length are
// returned whole with part number 0 and no transcode invoked.
const SegmentSeconds = 60

// Parallelism bounds for stream-copy extraction. Copy is I/O-bound, so
// the batch size runs above the core count but stays capped.
const (
	minParallel = 6
	maxParallel = 12
)

// PlannedSegment is one extraction window
type PlannedSegment struct {
	Index    int // zero-based
	Start    float64
	Duration float64
}

// PlanSegments computes the contiguous, non-overlapping extraction
// windows covering a source of the given duration. Returns nil when the
// source fits in a single segment.
func PlanSegments(duration float64) []PlannedSegment {
	if duration <= SegmentSeconds {
		return nil
	}
	count := int(math.Ceil(duration / SegmentSeconds))
	segments := make([]PlannedSegment, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i * SegmentSeconds)
		segments = append(segments, PlannedSegment{
			Index:    i,
			Start:    start,
			Duration: math.Min(SegmentSeconds, duration-start),
		})
	}
	return segments
}

// BatchSize clamps cpuCount*1.5 into the extraction parallelism bounds.
func BatchSize(cpuCount int) int {
	size := int(math.Ceil(float64(cpuCount) * 1.5))
	if size < minParallel {
		size = minParallel
	}
	if size > maxParallel {
		size = maxParallel
	}
	return size
}

// Service is the segmentation stage.
type Service struct {
	cache    *media.Cache
	audio    *media.Checker
	runner   ffmpegx.Invoker
	timeout  time.Duration
	log      zerolog.Logger
	cpuCount func() int
}

// NewService builds the segmentation stage.
func NewService(cache *media.Cache, audio *media.Checker, runner ffmpegx.Invoker,
	timeout time.Duration, log zerolog.Logger) *Service {

	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Service{
		cache:   cache,
		audio:   audio,
		runner:  runner,
		timeout: timeout,
		log:     log.With().Str("component", "split").Logger(),
		cpuCount: func() int {
			n, err := cpu.Counts(true)
			if err != nil || n < 1 {
				return 1
			}
			return n
		},
	}
}

// Split cuts inputPath into SegmentSeconds-long parts written to
// outputDir. Results are sorted by part number; batch completion order
// is not. Per-segment audio loss is logged but not fatal here, unlike
// the conversion stage.
func (s *Service) Split(ctx context.Context, inputPath, outputDir, baseName, taskKey string,
	progress model.StageProgressFunc) ([]model.Segment, error) {

	var info *media.StreamInfo
	var hasAudio bool
	g, probeCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = s.cache.Get(probeCtx, inputPath)
		return err
	})
	g.Go(func() error {
		hasAudio = s.audio.HasAudio(probeCtx, inputPath).Present
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probe %s: %w", inputPath, err)
	}

	duration := info.Duration
	planned := PlanSegments(duration)
	if planned == nil {
		return []model.Segment{{Path: inputPath, PartNumber: 0, Duration: duration}}, nil
	}

	batchSize := BatchSize(s.cpuCount())
	s.log.Info().Float64("duration", duration).Int("segments", len(planned)).
		Int("batch_size", batchSize).Bool("audio", hasAudio).Msg("splitting video")

	results := make([]model.Segment, 0, len(planned))
	var mu sync.Mutex
	completed := 0

	for start := 0; start < len(planned); start += batchSize {
		end := start + batchSize
		if end > len(planned) {
			end = len(planned)
		}

		bg, batchCtx := errgroup.WithContext(ctx)
		for _, seg := range planned[start:end] {
			seg := seg
			bg.Go(func() error {
				segPath := filepath.Join(outputDir,
					fmt.Sprintf("%s_temp_%03d.mp4", baseName, seg.Index))
				if err := s.extract(batchCtx, inputPath, segPath, seg, hasAudio, taskKey); err != nil {
					return fmt.Errorf("segment %d: %w", seg.Index+1, err)
				}

				mu.Lock()
				results = append(results, model.Segment{
					Path:       segPath,
					PartNumber: seg.Index + 1,
					Duration:   seg.Duration,
				})
				completed++
				done := completed
				mu.Unlock()

				if progress != nil {
					progress(model.StageSplitting,
						ffmpegx.PercentOf(float64(done), float64(len(planned))),
						fmt.Sprintf("segment %d/%d done", done, len(planned)))
				}
				return nil
			})
		}
		if err := bg.Wait(); err != nil {
			return nil, err
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PartNumber < results[j].PartNumber
	})
	return results, nil
}

func (s *Service) extract(ctx context.Context, inputPath, segPath string, seg PlannedSegment,
	hasAudio bool, taskKey string) error {

	args := []string{
		"-ss", fmt.Sprintf("%.3f", seg.Start),
		"-i", inputPath,
		"-t", fmt.Sprintf("%.3f", seg.Duration),
		"-c:v", "copy",
		"-avoid_negative_ts", "make_zero",
		"-movflags", "+faststart",
		"-map", "0:v:0",
	}
	if hasAudio {
		args = append(args, "-c:a", "copy", "-map", "0:a:0")
	}

	job := ffmpegx.Job{
		Key:     fmt.Sprintf("%s_segment_%d", taskKey, seg.Index),
		Args:    args,
		Output:  segPath,
		Timeout: s.timeout,
	}
	if err := s.runner.Run(ctx, job); err != nil {
		return err
	}

	s.cache.Invalidate(segPath)
	if hasAudio && !s.audio.HasAudio(ctx, segPath).Present {
		// Deliberately non-fatal: a hard stop here would abort
		// otherwise-good parts over a rare stream-copy failure.
		s.log.Error().Str("path", segPath).Int("part", seg.Index+1).
			Msg("segment lost its audio stream")
	}
	return nil
}
