package model

// Horizontal alignment of a text layer
type XAlign string

const (
	AlignLeft   XAlign = "left"
	AlignCenter XAlign = "center"
	AlignRight  XAlign = "right"
)

// TextLayer is one configurable overlay specification. Layers render in
// list order; later layers stack above earlier ones.
type TextLayer struct {
	Enabled       bool
	Template      string // label template with a {N} placeholder
	Text          string // resolved text, filled in per segment
	FontFamily    string
	FontSize      int
	FontColor     string // #rrggbb
	BorderWidth   int
	BorderColor   string // #rrggbb
	ShadowEnabled bool
	Position      VideoPosition // top or bottom anchor
	XAlign        XAlign
	YOffset       int
	XOffset       int
}

// DefaultTextLayer returns the layer the original preset ships with.
func DefaultTextLayer() TextLayer {
	return TextLayer{
		Enabled:       true,
		Template:      "Part {N}",
		FontFamily:    "Arial Bold",
		FontSize:      70,
		FontColor:     "#FFFFFF",
		BorderWidth:   4,
		BorderColor:   "#000000",
		ShadowEnabled: true,
		Position:      PositionTop,
		XAlign:        AlignCenter,
		YOffset:       80,
		XOffset:       0,
	}
}

// EnabledLayers filters a layer set down to the enabled ones, preserving order.
func EnabledLayers(layers []TextLayer) []TextLayer {
	out := make([]TextLayer, 0, len(layers))
	for _, l := range layers {
		if l.Enabled {
			out = append(out, l)
		}
	}
	return out
}
