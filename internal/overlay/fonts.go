package overlay

import "runtime"

// Known font families mapped to platform font files. Paths are written
// in filtergraph form, so the Windows drive colon is pre-escaped.
var fontFiles = map[string]map[string]string{
	"windows": {
		"Arial Bold":           `C\:/Windows/Fonts/arialbd.ttf`,
		"Arial":                `C\:/Windows/Fonts/arial.ttf`,
		"Impact":               `C\:/Windows/Fonts/impact.ttf`,
		"Comic Sans MS Bold":   `C\:/Windows/Fonts/comicbd.ttf`,
		"Times New Roman Bold": `C\:/Windows/Fonts/timesbd.ttf`,
		"Verdana Bold":         `C\:/Windows/Fonts/verdanab.ttf`,
	},
	"darwin": {
		"Arial Bold":           "/System/Library/Fonts/Supplemental/Arial Bold.ttf",
		"Arial":                "/System/Library/Fonts/Supplemental/Arial.ttf",
		"Impact":               "/System/Library/Fonts/Supplemental/Impact.ttf",
		"Comic Sans MS Bold":   "/System/Library/Fonts/Supplemental/Comic Sans MS Bold.ttf",
		"Times New Roman Bold": "/System/Library/Fonts/Supplemental/Times New Roman Bold.ttf",
		"Verdana Bold":         "/System/Library/Fonts/Supplemental/Verdana Bold.ttf",
	},
	"linux": {
		"Arial Bold":           "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"Arial":                "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"Impact":               "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"Comic Sans MS Bold":   "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"Times New Roman Bold": "/usr/share/fonts/truetype/dejavu/DejaVuSerif-Bold.ttf",
		"Verdana Bold":         "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	},
}

// FontFile resolves a font family to a file path for the running
// platform. Unknown families fall back to the platform's Arial Bold
// mapping; an unknown platform returns the empty string and lets
// drawtext use its built-in default.
func FontFile(family string) string {
	return fontFileFor(runtime.GOOS, family)
}

func fontFileFor(goos, family string) string {
	files, ok := fontFiles[goos]
	if !ok {
		return ""
	}
	if path, ok := files[family]; ok {
		return path
	}
	return files["Arial Bold"]
}
