// Package ffmpegx runs single ffmpeg invocations with progress parsing,
// registry tracking, timeout enforcement and bounded stderr capture.
package ffmpegx

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/yt2tiktok/internal/config"
	"github.com/clipforge/yt2tiktok/internal/model"
	"github.com/clipforge/yt2tiktok/internal/proc"
)

// Progress output constants
const (
	progressPipeTarget = "pipe:2"
	progressTimePrefix = "out_time_us="
)

// Job describes one ffmpeg invocation. Args holds everything between the
// global flags and the output path; the runner appends progress flags and
// the output itself.
type Job struct {
	Key      string // registry key
	Args     []string
	Output   string
	Timeout  time.Duration
	Duration float64 // media duration in seconds, 0 disables percent reporting
	Progress model.ProgressFunc
}

// Invoker runs one ffmpeg job to completion. Stage services depend on
// this instead of the concrete Runner so tests can substitute a fake.
type Invoker interface {
	Run(ctx context.Context, job Job) error
}

// Runner executes ffmpeg jobs against a shared process registry.
type Runner struct {
	bin        string
	extraArgs  []string
	maxCapture int64
	registry   *proc.Registry
	log        zerolog.Logger
}

// NewRunner verifies the ffmpeg binary and builds a runner.
func NewRunner(cfg *config.Config, registry *proc.Registry, log zerolog.Logger) (*Runner, error) {
	if _, err := exec.LookPath(cfg.FFmpegBin); err != nil {
		return nil, &model.ToolUnavailableError{
			Tool:   cfg.FFmpegBin,
			Remedy: "install ffmpeg or set YT2TIKTOK_FFMPEG_BIN",
		}
	}
	return &Runner{
		bin:        cfg.FFmpegBin,
		extraArgs:  cfg.FFmpegExtra,
		maxCapture: cfg.MaxErrorOutput,
		registry:   registry,
		log:        log.With().Str("component", "ffmpeg").Logger(),
	}, nil
}

// Run executes one invocation to completion. The job is tracked in the
// registry for its whole lifetime; cancellation through the registry or
// the parent context force-kills the process. A partial output file is
// removed on any failure.
func (r *Runner) Run(ctx context.Context, job Job) error {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if job.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	args := make([]string, 0, len(r.extraArgs)+len(job.Args)+6)
	args = append(args, "-y")
	args = append(args, r.extraArgs...)
	args = append(args, job.Args...)
	args = append(args, "-progress", progressPipeTarget, "-nostats")
	args = append(args, job.Output)

	cmd := exec.CommandContext(runCtx, r.bin, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &model.ToolError{Tool: "ffmpeg", Err: err}
	}

	// Register before starting so an early external cancel cannot race
	// past an untracked process. Cancelling the context is the kill:
	// CommandContext force-terminates the process, and touching
	// cmd.Process here would race cmd.Start.
	r.registry.Track(job.Key, cancel)
	defer r.registry.Untrack(job.Key)

	start := time.Now()
	r.log.Debug().Str("key", job.Key).Strs("args", args).Msg("starting ffmpeg")
	if err := cmd.Start(); err != nil {
		// A registry cancel can land between Track and Start.
		if runCtx.Err() == context.Canceled && ctx.Err() == nil {
			return context.Canceled
		}
		return &model.ToolError{Tool: "ffmpeg", Err: err}
	}

	tail := r.consumeStderr(stderr, job)
	waitErr := cmd.Wait()

	if waitErr == nil {
		return nil
	}
	if job.Output != "" {
		_ = os.Remove(job.Output)
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		return &model.TimeoutError{Key: job.Key, Limit: job.Timeout, Elapsed: time.Since(start)}
	case ctx.Err() != nil:
		return ctx.Err()
	case runCtx.Err() == context.Canceled:
		// Killed through the registry.
		return context.Canceled
	default:
		return &model.ToolError{Tool: "ffmpeg", Output: tail, Err: waitErr}
	}
}

// consumeStderr reads progress lines and keeps a bounded tail of
// everything else for error reporting.
func (r *Runner) consumeStderr(pipe io.Reader, job Job) string {
	var tail strings.Builder
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	lastPercent := -1

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, progressTimePrefix) {
			if job.Progress == nil || job.Duration <= 0 {
				continue
			}
			us, err := strconv.ParseInt(strings.TrimPrefix(line, progressTimePrefix), 10, 64)
			if err != nil {
				continue
			}
			percent := PercentOf(float64(us)/1e6, job.Duration)
			if percent != lastPercent {
				lastPercent = percent
				job.Progress(percent)
			}
			continue
		}
		if strings.Contains(line, "=") && !strings.Contains(line, " ") {
			// Other -progress key=value noise.
			continue
		}
		if int64(tail.Len()) < r.maxCapture && line != "" {
			tail.WriteString(line)
			tail.WriteByte('\n')
		}
	}
	return tail.String()
}

// PercentOf converts an elapsed/total pair to a clamped 0..100 percent.
func PercentOf(elapsed, total float64) int {
	if total <= 0 {
		return 0
	}
	p := int(elapsed / total * 100)
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}
