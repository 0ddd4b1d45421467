package media

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AudioCheck is the result of an audio-presence probe
type AudioCheck struct {
	Present bool
	Stream  *Stream
	Info    *StreamInfo
}

// Checker answers "does this file have a playable audio stream" on top of
// the metadata cache.
type Checker struct {
	cache *Cache
	log   zerolog.Logger
}

// NewChecker creates an audio checker over the given cache.
func NewChecker(cache *Cache, log zerolog.Logger) *Checker {
	return &Checker{cache: cache, log: log.With().Str("component", "audio-check").Logger()}
}

// HasAudio reports audio presence. A failed probe is treated as "no
// audio" rather than an error: this predicate gates retry logic and must
// never itself be a hard failure point.
func (c *Checker) HasAudio(ctx context.Context, path string) AudioCheck {
	info, err := c.cache.Get(ctx, path)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("audio probe failed, assuming no audio")
		return AudioCheck{Present: false}
	}
	stream := info.AudioStream()
	return AudioCheck{Present: stream != nil, Stream: stream, Info: info}
}

// FormatAudioInfo renders an audio stream for log output.
func FormatAudioInfo(s *Stream) string {
	if s == nil {
		return "none"
	}
	sampleRate := s.SampleRate
	if sampleRate == "" {
		sampleRate = "N/A"
	}
	bitRate := s.BitRate
	if bitRate == "" {
		bitRate = "N/A"
	}
	return fmt.Sprintf("%s (%sHz, %sbps)", s.CodecName, sampleRate, bitRate)
}
