// Package config loads pipeline configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/google/shlex"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the process-wide pipeline configuration. Per-task settings
// (text layers, video position, label template) live in model.Settings
// and are snapshotted at submission instead.
type Config struct {
	FFmpegBin  string `mapstructure:"FFMPEG_BIN"`
	FFprobeBin string `mapstructure:"FFPROBE_BIN"`
	YtDlpBin   string `mapstructure:"YTDLP_BIN"`

	TempDir string `mapstructure:"TEMP_DIR"`

	MetadataTTL        time.Duration `mapstructure:"METADATA_TTL"`
	CacheSweepInterval time.Duration `mapstructure:"CACHE_SWEEP_INTERVAL"`

	ConvertTimeoutMin time.Duration `mapstructure:"CONVERT_TIMEOUT_MIN"`
	ConvertTimeoutMax time.Duration `mapstructure:"CONVERT_TIMEOUT_MAX"`
	SegmentTimeout    time.Duration `mapstructure:"SEGMENT_TIMEOUT"`
	TextTimeout       time.Duration `mapstructure:"TEXT_TIMEOUT"`

	MaxErrorOutput int64 `mapstructure:"MAX_ERROR_OUTPUT"`
	MinFreeDisk    int64 `mapstructure:"MIN_FREE_DISK"`
	MinFreeMem     int64 `mapstructure:"MIN_FREE_MEM"`

	MaxConcurrentTasks int `mapstructure:"MAX_CONCURRENT_TASKS"`

	FFmpegExtraArgs string `mapstructure:"FFMPEG_EXTRA_ARGS"`
	YtDlpExtraArgs  string `mapstructure:"YTDLP_EXTRA_ARGS"`

	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Parsed forms of the extra-args strings.
	FFmpegExtra []string `mapstructure:"-"`
	YtDlpExtra  []string `mapstructure:"-"`
}

// stringToDurationHookFunc parses Go duration strings during unmarshal.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc parses human-readable size strings ("10KB")
// into int64 byte counts.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a size string, let other parsers handle it.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

// Load reads yt2tiktok_config.yaml (working dir or /etc/yt2tiktok) and
// the YT2TIKTOK_* environment, applying defaults for everything unset.
func Load() (*Config, error) {
	vp := viper.New()

	vp.SetDefault("FFMPEG_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("YTDLP_BIN", "yt-dlp")
	vp.SetDefault("TEMP_DIR", filepath.Join(os.TempDir(), "youtube-to-tiktok"))
	vp.SetDefault("METADATA_TTL", "5m")
	vp.SetDefault("CACHE_SWEEP_INTERVAL", "10m")
	vp.SetDefault("CONVERT_TIMEOUT_MIN", "10m")
	vp.SetDefault("CONVERT_TIMEOUT_MAX", "120m")
	vp.SetDefault("SEGMENT_TIMEOUT", "10m")
	vp.SetDefault("TEXT_TIMEOUT", "5m")
	vp.SetDefault("MAX_ERROR_OUTPUT", "10KB")
	vp.SetDefault("MIN_FREE_DISK", "500MB")
	vp.SetDefault("MIN_FREE_MEM", "200MB")
	vp.SetDefault("MAX_CONCURRENT_TASKS", 3)
	vp.SetDefault("FFMPEG_EXTRA_ARGS", "")
	vp.SetDefault("YTDLP_EXTRA_ARGS", "")
	vp.SetDefault("LOG_LEVEL", "info")

	vp.SetConfigName("yt2tiktok_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/yt2tiktok/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("YT2TIKTOK")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	if cfg.FFmpegExtra, err = splitArgs(cfg.FFmpegExtraArgs); err != nil {
		return nil, fmt.Errorf("FFMPEG_EXTRA_ARGS: %w", err)
	}
	if cfg.YtDlpExtra, err = splitArgs(cfg.YtDlpExtraArgs); err != nil {
		return nil, fmt.Errorf("YTDLP_EXTRA_ARGS: %w", err)
	}

	return &cfg, nil
}

func splitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return shlex.Split(s)
}
