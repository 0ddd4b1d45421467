package ffmpegx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/yt2tiktok/internal/model"
	"github.com/clipforge/yt2tiktok/internal/proc"
)

// stubFFmpeg writes a shell script that hangs like a long transcode.
// exec replaces the shell so a kill reaches the hanging process itself.
func stubFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub binary needs sh")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexec sleep 10\n"), 0o755))
	return path
}

func stubRunner(t *testing.T, reg *proc.Registry) *Runner {
	return &Runner{
		bin:        stubFFmpeg(t),
		maxCapture: 10 * 1024,
		registry:   reg,
		log:        zerolog.Nop(),
	}
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	reg := proc.NewRegistry(zerolog.Nop())
	runner := stubRunner(t, reg)

	start := time.Now()
	err := runner.Run(context.Background(), Job{
		Key:     "task1",
		Output:  filepath.Join(t.TempDir(), "out.mp4"),
		Timeout: 200 * time.Millisecond,
	})

	var timeout *model.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "task1", timeout.Key)
	assert.Less(t, time.Since(start), 5*time.Second, "kill must not wait out the full sleep")
	assert.Empty(t, reg.Active(), "finished jobs must untrack themselves")
}

func TestRun_RegistryCancelStopsProcess(t *testing.T) {
	reg := proc.NewRegistry(zerolog.Nop())
	runner := stubRunner(t, reg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runner.Run(context.Background(), Job{
			Key:    "task1",
			Output: filepath.Join(t.TempDir(), "out.mp4"),
		})
	}()

	cancelled := false
	for i := 0; i < 200; i++ {
		if reg.Cancel("task1") {
			cancelled = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cancelled, "job never appeared in the registry")

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled job did not return")
	}
}


func TestPercentOf(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  float64
		total    float64
		expected int
	}{
		{"zero total", 10, 0, 0},
		{"halfway", 30, 60, 50},
		{"complete", 60, 60, 100},
		{"overshoot clamps", 90, 60, 100},
		{"negative clamps", -5, 60, 0},
		{"start", 0, 60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PercentOf(tt.elapsed, tt.total))
		})
	}
}

func TestConsumeStderr_ProgressAndTail(t *testing.T) {
	stderr := strings.Join([]string{
		"out_time_us=30000000",
		"speed=2.5x",
		"out_time_us=60000000",
		"[libx264] frame I:12",
		"out_time_us=not-a-number",
		"Error while decoding stream",
	}, "\n")

	var percents []int
	runner := &Runner{maxCapture: 10 * 1024, log: zerolog.Nop()}
	job := Job{
		Duration: 120,
		Progress: func(p int) { percents = append(percents, p) },
	}

	tail := runner.consumeStderr(strings.NewReader(stderr), job)

	assert.Equal(t, []int{25, 50}, percents)
	assert.Contains(t, tail, "frame I:12")
	assert.Contains(t, tail, "Error while decoding")
	assert.NotContains(t, tail, "speed=2.5x", "progress key=value noise must be dropped")
	assert.NotContains(t, tail, "out_time_us")
}

func TestConsumeStderr_NoDurationSkipsProgress(t *testing.T) {
	called := false
	runner := &Runner{maxCapture: 1024, log: zerolog.Nop()}
	job := Job{Progress: func(int) { called = true }}

	runner.consumeStderr(strings.NewReader("out_time_us=1000000\n"), job)
	assert.False(t, called)
}

func TestConsumeStderr_TailBounded(t *testing.T) {
	line := strings.Repeat("x", 100)
	input := strings.Repeat(line+" err\n", 50)

	runner := &Runner{maxCapture: 256, log: zerolog.Nop()}
	tail := runner.consumeStderr(strings.NewReader(input), Job{})

	// One full line may straddle the cap, never more.
	assert.LessOrEqual(t, len(tail), 256+len(line)+6)
}

func TestEncodeArgs_Profile(t *testing.T) {
	args := strings.Join(EncodeArgs(), " ")
	assert.Contains(t, args, "-c:v libx264")
	assert.Contains(t, args, "-preset veryfast")
	assert.Contains(t, args, "-crf 21")
	assert.Contains(t, args, "-pix_fmt yuv420p")
	assert.Contains(t, args, "-movflags +faststart")
	assert.Contains(t, args, "-profile:v high")
	assert.Contains(t, args, "-level 4.2")

	audio := strings.Join(AudioEncodeArgs(), " ")
	assert.Contains(t, audio, "-c:a aac")
	assert.Contains(t, audio, "-b:a 128k")
	assert.Contains(t, audio, "-ar 44100")
	assert.Contains(t, audio, "-ac 2")
	assert.Contains(t, audio, "-map 0:a:0")
}
