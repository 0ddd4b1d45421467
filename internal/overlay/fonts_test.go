package overlay

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFontFileFor(t *testing.T) {
	assert.Equal(t, `C\:/Windows/Fonts/impact.ttf`, fontFileFor("windows", "Impact"))
	assert.Equal(t, "/System/Library/Fonts/Supplemental/Arial Bold.ttf",
		fontFileFor("darwin", "Arial Bold"))
	assert.Equal(t, "/usr/share/fonts/truetype/dejavu/DejaVuSerif-Bold.ttf",
		fontFileFor("linux", "Times New Roman Bold"))
}

func TestFontFileFor_UnknownFamilyFallsBack(t *testing.T) {
	for _, goos := range []string{"windows", "darwin", "linux"} {
		got := fontFileFor(goos, "Wingdings")
		assert.Equal(t, fontFileFor(goos, "Arial Bold"), got, "goos=%s", goos)
		assert.NotEmpty(t, got)
	}
}

func TestFontFileFor_UnknownPlatform(t *testing.T) {
	assert.Empty(t, fontFileFor("plan9", "Arial Bold"))
}

func TestFontFile_CurrentPlatform(t *testing.T) {
	switch runtime.GOOS {
	case "windows", "darwin", "linux":
		assert.NotEmpty(t, FontFile("Arial Bold"))
	default:
		assert.Empty(t, FontFile("Arial Bold"))
	}
}
