// Package pipeline orchestrates the full conversion: resolve metadata,
// download, letterbox, split, overlay and clean up, emitting progress
// events along the way.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/clipforge/yt2tiktok/internal/config"
	"github.com/clipforge/yt2tiktok/internal/convert"
	"github.com/clipforge/yt2tiktok/internal/download"
	"github.com/clipforge/yt2tiktok/internal/ffmpegx"
	"github.com/clipforge/yt2tiktok/internal/media"
	"github.com/clipforge/yt2tiktok/internal/model"
	"github.com/clipforge/yt2tiktok/internal/overlay"
	"github.com/clipforge/yt2tiktok/internal/proc"
	"github.com/clipforge/yt2tiktok/internal/split"
)

// Overlay parallelism bounds. Overlay re-encodes, so it runs at the core
// count instead of above it like stream-copy splitting.
const (
	minOverlayParallel = 4
	maxOverlayParallel = 8
)

// Request describes one conversion to run.
type Request struct {
	URL             string
	OutputDirectory string
	Settings        model.Settings
	TaskID          string // optional, generated when empty
}

// Result is the terminal outcome of one request.
type Result struct {
	TaskID      string
	OutputFiles []string
	Err         error
}

// Manager owns the shared infrastructure and runs conversion tasks.
type Manager struct {
	cfg        *config.Config
	log        zerolog.Logger
	registry   *proc.Registry
	cache      *media.Cache
	audio      *media.Checker
	downloader *download.Service
	converter  *convert.Service
	splitter   *split.Service
	overlayer  *overlay.Service
	cpuCount   func() int

	// Notify, when set before the first Submit, observes every event of
	// tasks driven through ProcessBatch.
	Notify func(model.Event)

	mu     sync.Mutex
	active map[string]context.CancelFunc
	tasks  map[string]*model.MediaTask
}

// NewManager wires up every stage, verifying the external binaries and
// creating the working directory.
func NewManager(cfg *config.Config, log zerolog.Logger) (*Manager, error) {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	prober, err := media.NewFFProbe(cfg.FFprobeBin, log)
	if err != nil {
		return nil, err
	}
	cache := media.NewCache(prober.Probe, cfg.MetadataTTL, log)
	audio := media.NewChecker(cache, log)
	registry := proc.NewRegistry(log)

	runner, err := ffmpegx.NewRunner(cfg, registry, log)
	if err != nil {
		return nil, err
	}
	downloader, err := download.NewService(cfg, cache, audio, runner, registry, log)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:        cfg,
		log:        log.With().Str("component", "pipeline").Logger(),
		registry:   registry,
		cache:      cache,
		audio:      audio,
		downloader: downloader,
		converter: convert.NewService(cache, audio, runner,
			cfg.ConvertTimeoutMin, cfg.ConvertTimeoutMax, log),
		splitter:  split.NewService(cache, audio, runner, cfg.SegmentTimeout, log),
		overlayer: overlay.NewService(audio, runner, cfg.TextTimeout, log),
		cpuCount: func() int {
			n, err := cpu.Counts(true)
			if err != nil || n < 1 {
				return 1
			}
			return n
		},
		active: make(map[string]context.CancelFunc),
		tasks:  make(map[string]*model.MediaTask),
	}, nil
}

// Start launches the background cache sweeper. It returns immediately;
// the sweeper stops when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.cache.StartSweep(ctx, m.cfg.CacheSweepInterval)
}

// Submit starts a conversion and returns its event stream. The channel
// closes after the terminal event. The returned task ID is the request's
// own when set, otherwise freshly generated.
func (m *Manager) Submit(ctx context.Context, req Request) (string, <-chan model.Event) {
	taskID := req.TaskID
	if taskID == "" {
		taskID = newTaskID()
	}

	taskCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.active[taskID] = cancel
	m.tasks[taskID] = &model.MediaTask{
		ID:              taskID,
		SourceURL:       req.URL,
		OutputDirectory: req.OutputDirectory,
		Settings:        req.Settings,
		Stage:           model.StageQueued,
		SubmittedAt:     time.Now(),
	}
	m.mu.Unlock()

	events := make(chan model.Event, 64)
	go func() {
		defer close(events)
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.active, taskID)
			m.mu.Unlock()
		}()
		m.run(taskCtx, taskID, req, events)
	}()
	return taskID, events
}

// Cancel aborts a running task, force-killing whatever external process
// it is currently driving. Returns whether the task was found.
func (m *Manager) Cancel(taskID string) bool {
	m.mu.Lock()
	cancel, ok := m.active[taskID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	m.log.Info().Str("task", taskID).Msg("task cancelled")
	return true
}

// CancelAll aborts every running task and kills every tracked process.
// Returns how many tasks were cancelled.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.active))
	for _, c := range m.active {
		cancels = append(cancels, c)
	}
	count := len(cancels)
	m.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	m.registry.CancelAll()
	return count
}

// record folds one event into the task's status snapshot.
func (m *Manager) record(ev model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[ev.TaskID]
	if !ok {
		return
	}
	task.Stage = ev.Stage
	task.Progress = ev.Progress
	if ev.Title != "" {
		task.Title = ev.Title
	}
	if ev.Thumbnail != "" {
		task.Thumbnail = ev.Thumbnail
	}
	if ev.Stage == model.StageError {
		task.LastError = ev.Message
	}
	if ev.Stage.IsTerminal() {
		task.OutputFiles = ev.OutputFiles
		task.FinishedAt = time.Now()
	}
}

// Task returns a copy of one task's current status.
func (m *Manager) Task(taskID string) (model.MediaTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return model.MediaTask{}, false
	}
	return *task, true
}

// Tasks returns status copies of every submitted task, newest first.
func (m *Manager) Tasks() []model.MediaTask {
	m.mu.Lock()
	out := make([]model.MediaTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		out = append(out, *task)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

// ActiveProcesses lists the keys of external invocations in flight.
func (m *Manager) ActiveProcesses() []string {
	return m.registry.Active()
}

// ProcessBatch runs requests in batches of maxConcurrent, letting each
// batch settle completely before the next starts. Individual failures
// do not stop the batch; every request gets a Result in input order.
func (m *Manager) ProcessBatch(ctx context.Context, reqs []Request, maxConcurrent int) []Result {
	if maxConcurrent <= 0 {
		maxConcurrent = m.cfg.MaxConcurrentTasks
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	results := make([]Result, len(reqs))
	for start := 0; start < len(reqs); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(reqs) {
			end = len(reqs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = m.runToCompletion(ctx, reqs[i])
			}()
		}
		wg.Wait()
	}
	return results
}

func (m *Manager) runToCompletion(ctx context.Context, req Request) Result {
	taskID, events := m.Submit(ctx, req)
	res := Result{TaskID: taskID}
	for ev := range events {
		if m.Notify != nil {
			m.Notify(ev)
		}
		switch ev.Stage {
		case model.StageCompleted:
			res.OutputFiles = ev.OutputFiles
		case model.StageError:
			res.Err = fmt.Errorf("%s", ev.Message)
		}
	}
	return res
}

// overlayBatchSize clamps the core count into the overlay parallelism
// bounds.
func overlayBatchSize(cpuCount int) int {
	size := cpuCount
	if size < minOverlayParallel {
		size = minOverlayParallel
	}
	if size > maxOverlayParallel {
		size = maxOverlayParallel
	}
	return size
}

// newTaskID returns a time-ordered UUID, falling back to a random one.
func newTaskID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
