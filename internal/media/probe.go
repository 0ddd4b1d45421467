// Package media wraps ffprobe stream inspection behind a TTL cache and
// exposes the audio-presence predicate the pipeline stages gate on.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/clipforge/yt2tiktok/internal/model"
)

// Stream describes one elementary stream of a media file
type Stream struct {
	CodecType  string
	CodecName  string
	Width      int
	Height     int
	SampleRate string
	BitRate    string
}

// StreamInfo is the probed description of a media file
type StreamInfo struct {
	Streams  []Stream
	Duration float64 // container duration in seconds
}

// VideoStream returns the first video stream, or nil
func (si *StreamInfo) VideoStream() *Stream {
	return si.firstOfType("video")
}

// AudioStream returns the first audio stream, or nil
func (si *StreamInfo) AudioStream() *Stream {
	return si.firstOfType("audio")
}

func (si *StreamInfo) firstOfType(codecType string) *Stream {
	for i := range si.Streams {
		if si.Streams[i].CodecType == codecType {
			return &si.Streams[i]
		}
	}
	return nil
}

// ProbeFunc resolves the stream layout of a file. The cache and the audio
// checker accept it so tests can substitute a fake prober.
type ProbeFunc func(ctx context.Context, path string) (*StreamInfo, error)

// FFProbe invokes the ffprobe binary
type FFProbe struct {
	bin string
	log zerolog.Logger
}

// NewFFProbe creates a prober, verifying the binary is reachable.
func NewFFProbe(bin string, log zerolog.Logger) (*FFProbe, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return nil, &model.ToolUnavailableError{
			Tool:   bin,
			Remedy: "install ffprobe (part of ffmpeg) or set YT2TIKTOK_FFPROBE_BIN",
		}
	}
	return &FFProbe{bin: bin, log: log.With().Str("component", "ffprobe").Logger()}, nil
}

// Probe runs ffprobe and parses its JSON output. Probe failures
// propagate; there is no stale fallback.
func (p *FFProbe) Probe(ctx context.Context, path string) (*StreamInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	}
	out, err := exec.CommandContext(ctx, p.bin, args...).Output()
	if err != nil {
		p.log.Debug().Err(err).Str("path", path).Msg("probe failed")
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (*StreamInfo, error) {
	var raw struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			SampleRate string `json:"sample_rate"`
			BitRate    string `json:"bit_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &StreamInfo{Streams: make([]Stream, 0, len(raw.Streams))}
	for _, s := range raw.Streams {
		info.Streams = append(info.Streams, Stream{
			CodecType:  s.CodecType,
			CodecName:  s.CodecName,
			Width:      s.Width,
			Height:     s.Height,
			SampleRate: s.SampleRate,
			BitRate:    s.BitRate,
		})
	}
	if raw.Format.Duration != "" {
		d, err := strconv.ParseFloat(raw.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", raw.Format.Duration, err)
		}
		info.Duration = d
	}
	return info, nil
}
