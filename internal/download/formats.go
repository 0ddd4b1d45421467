package download

import "strings"

// Initial download attempt plus two retries.
const MaxDownloadRetries = 2

// FormatSelector returns the tiered yt-dlp format expression for a given
// attempt. Attempt 0 prefers combined audio+video single-file formats at
// decreasing resolution ceilings, because split formats are the ones that
// silently lose audio during muxing. Retries cascade through lower
// resolutions and split video+audio pairs, ending in a last-resort "any
// combined format" selector.
func FormatSelector(attempt int) string {
	if attempt == 0 {
		return strings.Join([]string{
			"best[height<=1080][acodec!=none][vcodec!=none][ext=mp4]",
			"best[height<=1080][acodec!=none][vcodec!=none]",
			"bestvideo[height<=1080]+bestaudio[ext=m4a]",
			"bestvideo[height<=1080]+bestaudio",
			"best[height<=720][acodec!=none][vcodec!=none]",
			"best[height<=480][acodec!=none][vcodec!=none]",
		}, "/")
	}
	return strings.Join([]string{
		"best[height<=720][acodec!=none][vcodec!=none]",
		"best[height<=480][acodec!=none][vcodec!=none]",
		"best[height<=360][acodec!=none][vcodec!=none]",
		"bestvideo[height<=720]+bestaudio[ext=m4a]",
		"bestvideo[height<=480]+bestaudio[ext=m4a]",
		"bestvideo+bestaudio[ext=m4a]",
		"bestvideo+bestaudio",
		"best[acodec!=none][vcodec!=none]",
	}, "/")
}
