package download

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/clipforge/yt2tiktok/internal/model"
)

// yt-dlp output line patterns
var (
	progressRe = regexp.MustCompile(`(\d+\.\d+)%`)
	destRe     = regexp.MustCompile(`\[download\] Destination: (.+)`)
	mergeRe    = regexp.MustCompile(`\[Merger\] Merging formats into "(.+)"`)
	alreadyRe  = regexp.MustCompile(`\[download\] (.+) has already been downloaded`)
	anyVideoRe = regexp.MustCompile(`(?i)([\w:._\\/-]+\.(mp4|mkv|webm))`)
	videoIDRe  = regexp.MustCompile(`([a-zA-Z0-9_-]{11})`)
)

// Container extension preferences for resolving the final output.
var (
	preferredVideoExts = []string{".mp4", ".mov", ".mkv", ".webm"}
	audioExts          = []string{".m4a", ".aac", ".webm", ".opus", ".mp3"}
	audioExtPriority   = []string{".m4a", ".aac", ".opus", ".webm", ".mp3", ".wav"}
)

// outputState accumulates everything observed on yt-dlp's stdout: the
// announced destination, the merge target, and every candidate media
// path, so the final file can be resolved by priority search afterwards.
type outputState struct {
	tempDir         string
	downloadPath    string
	mergedPath      string
	videoID         string
	videoCandidates map[string]struct{}
	audioCandidates map[string]struct{}
}

func newOutputState(tempDir string) *outputState {
	return &outputState{
		tempDir:         tempDir,
		videoCandidates: make(map[string]struct{}),
		audioCandidates: make(map[string]struct{}),
	}
}

// ingest processes one stdout line, forwarding percentages to progress.
func (s *outputState) ingest(line string, progress model.ProgressFunc) {
	if m := progressRe.FindStringSubmatch(line); m != nil && progress != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			progress(int(pct + 0.5))
		}
	}

	if m := destRe.FindStringSubmatch(line); m != nil {
		path := strings.TrimSpace(m[1])
		s.downloadPath = path
		if id := videoIDRe.FindStringSubmatch(filepath.Base(path)); id != nil {
			s.videoID = id[1]
		}
		switch ext := strings.ToLower(filepath.Ext(path)); {
		case containsExt(preferredVideoExts, ext):
			s.videoCandidates[path] = struct{}{}
		case containsExt(audioExts, ext):
			s.audioCandidates[path] = struct{}{}
		}
	}

	if m := mergeRe.FindStringSubmatch(line); m != nil {
		s.mergedPath = strings.TrimSpace(m[1])
		s.downloadPath = s.mergedPath
	}

	if m := alreadyRe.FindStringSubmatch(line); m != nil {
		s.downloadPath = strings.TrimSpace(m[1])
	}

	// Any path-looking token under our temp dir counts as a candidate.
	if m := anyVideoRe.FindStringSubmatch(line); m != nil {
		if strings.Contains(m[1], s.tempDir) {
			s.videoCandidates[m[1]] = struct{}{}
		}
	}
}

// resolve finds the downloaded file among all observed candidates,
// preferring container extensions in order, then any existing candidate,
// then a directory scan by the 11-character video ID.
func (s *outputState) resolve() string {
	candidates := make([]string, 0, 2+len(s.videoCandidates)+len(s.audioCandidates))
	if s.mergedPath != "" {
		candidates = append(candidates, s.mergedPath)
	}
	for c := range s.videoCandidates {
		candidates = append(candidates, c)
	}
	if s.downloadPath != "" {
		candidates = append(candidates, s.downloadPath)
	}
	for c := range s.audioCandidates {
		candidates = append(candidates, c)
	}

	for _, ext := range preferredVideoExts {
		for _, c := range candidates {
			if strings.ToLower(filepath.Ext(c)) == ext && fileExists(c) {
				return c
			}
		}
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}

	if s.videoID != "" {
		entries, err := os.ReadDir(s.tempDir)
		if err == nil {
			for _, ext := range preferredVideoExts {
				for _, e := range entries {
					if e.IsDir() || !strings.Contains(e.Name(), s.videoID) {
						continue
					}
					if strings.ToLower(filepath.Ext(e.Name())) == ext {
						return filepath.Join(s.tempDir, e.Name())
					}
				}
			}
		}
	}
	return ""
}

// bestAudioCandidate picks the most mergeable audio file observed during
// the run, by extension priority.
func (s *outputState) bestAudioCandidate() string {
	best := ""
	bestRank := len(audioExtPriority) + 1
	for c := range s.audioCandidates {
		if !fileExists(c) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(c))
		if ext == "" {
			ext = ".m4a"
		}
		rank := len(audioExtPriority)
		for i, p := range audioExtPriority {
			if p == ext {
				rank = i
				break
			}
		}
		if rank < bestRank || (rank == bestRank && c < best) {
			best, bestRank = c, rank
		}
	}
	return best
}

func containsExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
