package overlay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/yt2tiktok/internal/model"
)

func TestEscapeDrawtext(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Part 1", "Part 1"},
		{"apostrophe", "it's here", `it\'s here`},
		{"colon", "12:30", `12\:30`},
		{"brackets", "[intro]", `\[intro\]`},
		{"backslash", `a\b`, `a\\b`},
		{"everything", `\ ' : [ ]`, `\\ \' \: \[ \]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeDrawtext(tt.input))
		})
	}
}

func TestFilterColor(t *testing.T) {
	assert.Equal(t, "0xFFFFFF", filterColor("#FFFFFF"))
	assert.Equal(t, "0x000000", filterColor("#000000"))
	assert.Equal(t, "white", filterColor("white"))
}

func TestXExpr(t *testing.T) {
	tests := []struct {
		align    model.XAlign
		offset   int
		expected string
	}{
		{model.AlignLeft, 40, "40"},
		{model.AlignLeft, 0, "0"},
		{model.AlignRight, 40, "(w-text_w-40)"},
		{model.AlignRight, -40, "(w-text_w-40)"},
		{model.AlignCenter, 0, "(w-text_w)/2"},
		{model.AlignCenter, 25, "(w-text_w)/2+25"},
		{model.AlignCenter, -25, "(w-text_w)/2-25"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, xExpr(tt.align, tt.offset), "%s/%d", tt.align, tt.offset)
	}
}

func TestYExpr(t *testing.T) {
	assert.Equal(t, "80", yExpr(model.PositionTop, 80))
	assert.Equal(t, "(h-120-text_h)", yExpr(model.PositionBottom, 120))
	assert.Equal(t, "0", yExpr(model.PositionCenter, 0))
}

func TestBuildFilter_Empty(t *testing.T) {
	assert.Empty(t, BuildFilter(nil))
	assert.Empty(t, BuildFilter([]model.TextLayer{{Enabled: false, Text: "hidden"}}))
}

func TestBuildFilter_SingleLayer(t *testing.T) {
	layer := model.DefaultTextLayer()
	layer.Text = "Part 3"

	filter := BuildFilter([]model.TextLayer{layer})

	assert.True(t, strings.HasPrefix(filter, "drawtext=text='Part 3'"))
	assert.Contains(t, filter, ":fontsize=70")
	assert.Contains(t, filter, ":fontcolor=0xFFFFFF")
	assert.Contains(t, filter, ":borderw=4:bordercolor=0x000000")
	assert.Contains(t, filter, ":shadowcolor=black@0.5:shadowx=2:shadowy=2")
	assert.Contains(t, filter, ":x=(w-text_w)/2")
	assert.Contains(t, filter, ":y=80")
}

func TestBuildFilter_TogglesOff(t *testing.T) {
	layer := model.DefaultTextLayer()
	layer.Text = "x"
	layer.BorderWidth = 0
	layer.ShadowEnabled = false

	filter := BuildFilter([]model.TextLayer{layer})
	assert.NotContains(t, filter, "borderw")
	assert.NotContains(t, filter, "shadowcolor")
}

func TestBuildFilter_LayerOrder(t *testing.T) {
	first := model.DefaultTextLayer()
	first.Text = "under"
	second := model.DefaultTextLayer()
	second.Text = "over"
	second.Position = model.PositionBottom
	disabled := model.DefaultTextLayer()
	disabled.Enabled = false
	disabled.Text = "never"

	filter := BuildFilter([]model.TextLayer{first, disabled, second})

	parts := strings.Split(filter, ",")
	require.Len(t, parts, 2, "disabled layers must not render")
	assert.Contains(t, parts[0], "under")
	assert.Contains(t, parts[1], "over")
}

func TestBuildFilter_EscapesUserText(t *testing.T) {
	layer := model.DefaultTextLayer()
	layer.Text = "DJ's [live] set: part 1"

	filter := BuildFilter([]model.TextLayer{layer})
	assert.Contains(t, filter, `text='DJ\'s \[live\] set\: part 1'`)
}
