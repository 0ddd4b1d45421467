package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/yt2tiktok/internal/download"
	"github.com/clipforge/yt2tiktok/internal/ffmpegx"
	"github.com/clipforge/yt2tiktok/internal/model"
)

// run drives one task through every stage and always ends with exactly
// one terminal event. Intermediate files are removed on every exit path.
func (m *Manager) run(ctx context.Context, taskID string, req Request, events chan<- model.Event) {
	log := m.log.With().Str("task", taskID).Logger()

	var intermediates []string
	defer func() {
		m.cleanup(intermediates)
	}()

	fail := func(stage model.Stage, err error) {
		log.Error().Err(err).Str("stage", stage.String()).Msg("task failed")
		m.publishTerminal(ctx, events, model.Event{
			TaskID:       taskID,
			Stage:        model.StageError,
			Message:      err.Error(),
			ErrorDetails: fmt.Sprintf("failed during %s: %v", stage, err),
		})
	}

	m.publish(events, model.Event{TaskID: taskID, Stage: model.StageInfo, Message: "resolving video info"})

	if err := checkResources(m.cfg.TempDir, m.cfg.MinFreeDisk, m.cfg.MinFreeMem); err != nil {
		fail(model.StageInfo, err)
		return
	}

	info, err := m.downloader.Info(ctx, req.URL, taskID)
	if err != nil {
		fail(model.StageInfo, err)
		return
	}
	log.Info().Str("title", info.Title).Float64("duration", info.Duration).Msg("video resolved")
	m.publish(events, model.Event{
		TaskID: taskID, Stage: model.StageInfo, Progress: 100,
		Title: info.Title, Thumbnail: info.Thumbnail,
	})

	m.publish(events, model.Event{TaskID: taskID, Stage: model.StageDownloading})
	downloadPath, err := m.downloader.Download(ctx, req.URL, taskID, func(percent int) {
		m.publish(events, model.Event{TaskID: taskID, Stage: model.StageDownloading, Progress: percent})
	})
	if err != nil {
		fail(model.StageDownloading, err)
		return
	}
	intermediates = append(intermediates, downloadPath)

	if err := m.validateDownload(ctx, downloadPath); err != nil {
		fail(model.StageDownloading, err)
		return
	}

	m.publish(events, model.Event{TaskID: taskID, Stage: model.StageConverting})
	base := info.ID
	if base == "" {
		base = taskID
	}
	verticalPath := filepath.Join(m.cfg.TempDir, base+"_vertical.mp4")
	err = m.converter.Convert(ctx, downloadPath, verticalPath,
		req.Settings.VideoPosition, taskID, func(percent int) {
			m.publish(events, model.Event{TaskID: taskID, Stage: model.StageConverting, Progress: percent})
		})
	if err != nil {
		fail(model.StageConverting, err)
		return
	}
	intermediates = append(intermediates, verticalPath)

	m.publish(events, model.Event{TaskID: taskID, Stage: model.StageSplitting})
	segments, err := m.splitter.Split(ctx, verticalPath, m.cfg.TempDir, base, taskID,
		func(stage model.Stage, percent int, message string) {
			m.publish(events, model.Event{TaskID: taskID, Stage: stage, Progress: percent, Message: message})
		})
	if err != nil {
		fail(model.StageSplitting, err)
		return
	}
	for _, seg := range segments {
		if seg.Path != verticalPath {
			intermediates = append(intermediates, seg.Path)
		}
		if _, statErr := os.Stat(seg.Path); statErr != nil {
			fail(model.StageSplitting, &model.MissingArtifactError{Path: seg.Path})
			return
		}
	}

	m.publish(events, model.Event{TaskID: taskID, Stage: model.StageAddingText})
	outputs, err := m.overlayStage(ctx, taskID, req, info.Title, segments, events)
	if err != nil {
		fail(model.StageAddingText, err)
		return
	}

	log.Info().Int("parts", len(outputs)).Msg("task completed")
	m.publishTerminal(ctx, events, model.Event{
		TaskID:      taskID,
		Stage:       model.StageCompleted,
		Progress:    100,
		Title:       info.Title,
		OutputFiles: outputs,
	})
}

// validateDownload confirms the acquired file is non-empty and carries
// both streams before committing to the transcode.
func (m *Manager) validateDownload(ctx context.Context, path string) error {
	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		return &model.MissingArtifactError{Path: path}
	}
	info, err := m.cache.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("validate download: %w", err)
	}
	if info.VideoStream() == nil {
		return fmt.Errorf("%s: %w", path, model.ErrNoVideoStream)
	}
	if info.AudioStream() == nil {
		return &model.AudioIntegrityError{Stage: model.StageDownloading, Path: path, Attempts: 1}
	}
	return nil
}

// overlayStage renders the text layers onto every segment in parallel
// batches and writes the final files into the output directory. A task
// that produced a single whole-video part skips the overlay entirely.
func (m *Manager) overlayStage(ctx context.Context, taskID string, req Request, title string,
	segments []model.Segment, events chan<- model.Event) ([]string, error) {

	if err := os.MkdirAll(req.OutputDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	cleanTitle := download.SanitizeFilename(title)
	single := len(segments) == 1 && segments[0].PartNumber == 0
	batchSize := overlayBatchSize(m.cpuCount())

	type part struct {
		number int
		path   string
	}
	results := make([]part, 0, len(segments))
	var mu sync.Mutex
	completed := 0

	for start := 0; start < len(segments); start += batchSize {
		end := start + batchSize
		if end > len(segments) {
			end = len(segments)
		}

		bg, batchCtx := errgroup.WithContext(ctx)
		for _, seg := range segments[start:end] {
			seg := seg
			bg.Go(func() error {
				outPath := filepath.Join(req.OutputDirectory,
					outputName(cleanTitle, seg.PartNumber, single))

				var layers []model.TextLayer
				if !single {
					layers = resolveLayers(req.Settings, seg.PartNumber)
				}
				key := fmt.Sprintf("%s_text_%d", taskID, seg.PartNumber)
				if err := m.overlayer.Apply(batchCtx, seg.Path, outPath, layers, key); err != nil {
					return fmt.Errorf("part %d: %w", seg.PartNumber, err)
				}

				mu.Lock()
				results = append(results, part{number: seg.PartNumber, path: outPath})
				completed++
				done := completed
				mu.Unlock()

				m.publish(events, model.Event{
					TaskID:   taskID,
					Stage:    model.StageAddingText,
					Progress: ffmpegx.PercentOf(float64(done), float64(len(segments))),
					Message:  fmt.Sprintf("part %d/%d done", done, len(segments)),
				})
				return nil
			})
		}
		if err := bg.Wait(); err != nil {
			return nil, err
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].number < results[j].number })
	outputs := make([]string, 0, len(results))
	for _, p := range results {
		outputs = append(outputs, p.path)
	}
	return outputs, nil
}

// outputName builds the final file name: the sanitized title alone for a
// whole video, with a part suffix otherwise.
func outputName(cleanTitle string, partNumber int, single bool) string {
	if single || partNumber == 0 {
		return cleanTitle + ".mp4"
	}
	return fmt.Sprintf("%s_part%d.mp4", cleanTitle, partNumber)
}

// resolveLayers snapshots the enabled layers with the part number
// substituted into each label template. A task with no enabled layers
// resolves to none; those parts are copied through untouched.
func resolveLayers(settings model.Settings, partNumber int) []model.TextLayer {
	layers := model.EnabledLayers(settings.TextLayers)
	out := make([]model.TextLayer, len(layers))
	for i, layer := range layers {
		template := layer.Template
		if template == "" {
			template = settings.PartTextTemplate
		}
		if template == "" {
			template = "Part {N}"
		}
		layer.Text = strings.ReplaceAll(template, "{N}", strconv.Itoa(partNumber))
		out[i] = layer
	}
	return out
}

// cleanup removes intermediate files in parallel, best effort, and drops
// their cache entries.
func (m *Manager) cleanup(paths []string) {
	var wg sync.WaitGroup
	for _, path := range paths {
		if path == "" {
			continue
		}
		path := path
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				m.log.Warn().Err(err).Str("path", path).Msg("cleanup failed")
			}
			m.cache.Invalidate(path)
		}()
	}
	wg.Wait()
}

// publish records the event on the task snapshot and delivers it
// without ever blocking the pipeline; a full channel drops the update.
func (m *Manager) publish(events chan<- model.Event, ev model.Event) {
	m.record(ev)
	select {
	case events <- ev:
	default:
	}
}

// publishTerminal records and delivers the final event. A cancelled
// task still gets its terminal event as long as the buffer has room.
func (m *Manager) publishTerminal(ctx context.Context, events chan<- model.Event, ev model.Event) {
	m.record(ev)
	select {
	case events <- ev:
	case <-ctx.Done():
		select {
		case events <- ev:
		default:
		}
	}
}
