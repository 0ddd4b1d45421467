// Package overlay burns configurable text layers onto finished segments
// with ffmpeg's drawtext filter.
package overlay

import (
	"fmt"
	"strings"

	"github.com/clipforge/yt2tiktok/internal/model"
)

// escapeDrawtext escapes the characters that terminate or corrupt a
// drawtext text value inside a filtergraph string.
var drawtextEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`:`, `\:`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeDrawtext(text string) string {
	return drawtextEscaper.Replace(text)
}

// filterColor converts a #rrggbb color into drawtext's 0xrrggbb form.
// Anything else passes through untouched so named colors keep working.
func filterColor(c string) string {
	if strings.HasPrefix(c, "#") {
		return "0x" + c[1:]
	}
	return c
}

// xExpr returns the drawtext x expression for a layer's horizontal
// alignment and offset.
func xExpr(align model.XAlign, offset int) string {
	switch align {
	case model.AlignLeft:
		return fmt.Sprintf("%d", offset)
	case model.AlignRight:
		return fmt.Sprintf("(w-text_w-%d)", abs(offset))
	default:
		if offset == 0 {
			return "(w-text_w)/2"
		}
		return fmt.Sprintf("(w-text_w)/2%+d", offset)
	}
}

// yExpr returns the drawtext y expression for a layer's vertical anchor
// and offset.
func yExpr(position model.VideoPosition, offset int) string {
	if position == model.PositionBottom {
		return fmt.Sprintf("(h-%d-text_h)", offset)
	}
	return fmt.Sprintf("%d", offset)
}

// layerFilter renders a single layer as one drawtext filter.
func layerFilter(layer model.TextLayer, fontFile string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "drawtext=text='%s'", escapeDrawtext(layer.Text))
	if fontFile != "" {
		fmt.Fprintf(&b, ":fontfile=%s", fontFile)
	}
	fmt.Fprintf(&b, ":fontsize=%d", layer.FontSize)
	fmt.Fprintf(&b, ":fontcolor=%s", filterColor(layer.FontColor))
	if layer.BorderWidth > 0 {
		fmt.Fprintf(&b, ":borderw=%d:bordercolor=%s",
			layer.BorderWidth, filterColor(layer.BorderColor))
	}
	if layer.ShadowEnabled {
		b.WriteString(":shadowcolor=black@0.5:shadowx=2:shadowy=2")
	}
	fmt.Fprintf(&b, ":x=%s", xExpr(layer.XAlign, layer.XOffset))
	fmt.Fprintf(&b, ":y=%s", yExpr(layer.Position, layer.YOffset))
	return b.String()
}

// BuildFilter composes the full filtergraph for a layer set. Layers
// chain in order, so later layers draw on top of earlier ones. Returns
// the empty string when no layer is enabled.
func BuildFilter(layers []model.TextLayer) string {
	enabled := model.EnabledLayers(layers)
	if len(enabled) == 0 {
		return ""
	}
	parts := make([]string, 0, len(enabled))
	for _, layer := range enabled {
		parts = append(parts, layerFilter(layer, FontFile(layer.FontFamily)))
	}
	return strings.Join(parts, ",")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
