package render

import (
	"github.com/BurntSushi/toml"

	"github.com/clusterkit/topoviz/pkg/errors"
)

// Style controls the visual appearance of a rendered topology graph.
// The zero value is not useful; start from DefaultStyle or LoadStyle.
type Style struct {
	// Graph-level layout attributes.
	RankDir     string `toml:"rankdir"`
	Splines     string `toml:"splines"`
	NodeSep     string `toml:"nodesep"`
	RankSep     string `toml:"ranksep"`
	Concentrate bool   `toml:"concentrate"`
	Background  string `toml:"bgcolor"`
	FontName    string `toml:"fontname"`

	// Colors maps an element tag to its node fill color.
	// Tags without an entry fall back to DefaultColor.
	Colors map[string]string `toml:"colors"`

	// DefaultColor fills nodes of unknown element types.
	DefaultColor string `toml:"default_color"`

	// EdgeColor draws parent-child edges.
	EdgeColor string `toml:"edge_color"`
}

// DefaultStyle returns the built-in palette: soft per-device-type pastels on
// a white background, orthogonal edges, top-to-bottom rank flow.
func DefaultStyle() Style {
	return Style{
		RankDir:     "TB",
		Splines:     "ortho",
		NodeSep:     "0.5",
		RankSep:     "0.7",
		Concentrate: true,
		Background:  "white",
		FontName:    "Helvetica",
		Colors: map[string]string{
			"graphs":  "#F8F9FA",
			"graph":   "#E3F2FD",
			"channel": "#E0F2F1",
			"gpu":     "#E8F5E9",
			"cpu":     "#F3E5F5",
			"pci":     "#FFEBEE",
			"nvlink":  "#FFF3E0",
			"net":     "#FFE0B2",
			"nic":     "#FFE0B2",
		},
		DefaultColor: "white",
		EdgeColor:    "#666666",
	}
}

// Color returns the fill color for an element tag.
func (s Style) Color(tag string) string {
	if c, ok := s.Colors[tag]; ok {
		return c
	}
	return s.DefaultColor
}

// LoadStyle reads a style sheet from a TOML file. Fields absent from the
// file keep their DefaultStyle values; colors are merged over the built-in
// palette so a sheet can override a single device type.
func LoadStyle(path string) (Style, error) {
	var overlay Style
	md, err := toml.DecodeFile(path, &overlay)
	if err != nil {
		return Style{}, errors.Wrap(errors.ErrCodeInvalidStyle, err, "load style sheet %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Style{}, errors.New(errors.ErrCodeInvalidStyle, "unknown style key %q in %s", undecoded[0].String(), path)
	}

	s := DefaultStyle()
	if overlay.RankDir != "" {
		s.RankDir = overlay.RankDir
	}
	if overlay.Splines != "" {
		s.Splines = overlay.Splines
	}
	if overlay.NodeSep != "" {
		s.NodeSep = overlay.NodeSep
	}
	if overlay.RankSep != "" {
		s.RankSep = overlay.RankSep
	}
	if md.IsDefined("concentrate") {
		s.Concentrate = overlay.Concentrate
	}
	if overlay.Background != "" {
		s.Background = overlay.Background
	}
	if overlay.FontName != "" {
		s.FontName = overlay.FontName
	}
	if overlay.DefaultColor != "" {
		s.DefaultColor = overlay.DefaultColor
	}
	if overlay.EdgeColor != "" {
		s.EdgeColor = overlay.EdgeColor
	}
	for tag, color := range overlay.Colors {
		s.Colors[tag] = color
	}
	return s, nil
}
