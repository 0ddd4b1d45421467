package ffmpegx

// Encoding profile shared by the conversion and overlay stages: fast
// H.264 with the pixel format and faststart flags the target platform
// requires.
const (
	VideoCodec   = "libx264"
	VideoPreset  = "veryfast"
	VideoCRF     = "21"
	PixelFormat  = "yuv420p"
	H264Profile  = "high"
	H264Level    = "4.2"
	AudioCodec   = "aac"
	AudioBitrate = "128k"
	AudioRate    = "44100"
)

// InputArgs returns the input-side flags used before -i.
func InputArgs() []string {
	return []string{"-hwaccel", "auto", "-threads", "0"}
}

// EncodeArgs returns the output-side video encoding flags.
func EncodeArgs() []string {
	return []string{
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", VideoCRF,
		"-pix_fmt", PixelFormat,
		"-movflags", "+faststart",
		"-profile:v", H264Profile,
		"-level", H264Level,
		"-threads", "0",
		"-tune", "fastdecode",
	}
}

// AudioEncodeArgs returns the flags that re-encode the mapped audio
// stream to stereo AAC.
func AudioEncodeArgs() []string {
	return []string{
		"-c:a", AudioCodec,
		"-map", "0:a:0",
		"-b:a", AudioBitrate,
		"-ar", AudioRate,
		"-ac", "2",
	}
}
