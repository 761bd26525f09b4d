package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/clusterkit/topoviz/pkg/errors"
)

// Output formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
	FormatDOT = "dot"
)

var formats = map[string]graphviz.Format{
	FormatPNG: graphviz.PNG,
	FormatSVG: graphviz.SVG,
}

// ValidateFormat checks that format is one of png, svg, or dot.
func ValidateFormat(format string) error {
	if _, ok := formats[format]; !ok && format != FormatDOT {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %s (must be 'png', 'svg', or 'dot')", format)
	}
	return nil
}

// Render lays out the DOT document with graphviz and returns the bytes of
// the requested format. The "dot" format skips layout and returns the
// source as-is.
func Render(ctx context.Context, dot string, format string) ([]byte, error) {
	if format == FormatDOT {
		return []byte(dot), nil
	}
	gvFormat, ok := formats[format]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "invalid format: %s", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
