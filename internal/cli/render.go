package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clusterkit/topoviz/pkg/cache"
	"github.com/clusterkit/topoviz/pkg/errors"
	"github.com/clusterkit/topoviz/pkg/render"
	"github.com/clusterkit/topoviz/pkg/topology"
)

// artifactTTL bounds how long rendered artifacts stay in the cache.
const artifactTTL = 7 * 24 * time.Hour

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	input     string // topology XML input path
	output    string // output base path; the format extension is appended
	format    string // png, svg, or dot
	styleFile string // optional TOML style sheet
	noCache   bool   // disable the artifact cache
}

// newRenderCmd creates the render command for turning a topology dump into
// a diagram.
func newRenderCmd() *cobra.Command {
	opts := renderOpts{format: render.FormatPNG}

	cmd := &cobra.Command{
		Use:   "render -i <topology.xml> -o <output>",
		Short: "Render a topology XML document to an image",
		Long: `Render a topology XML document to an image.

Every element of the document becomes one node of a directed graph, labeled
with a table of its attributes and colored by device type; every
parent-child relation becomes an edge. The diagram is written to
<output>.<format> (<output>.png by default).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.input == "" || opts.output == "" {
				_ = cmd.Usage()
				return fmt.Errorf("both --input and --output are required")
			}
			if err := render.ValidateFormat(opts.format); err != nil {
				return err
			}
			return runRender(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "topology XML input file (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path without extension (required)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: png (default), svg, dot")
	cmd.Flags().StringVar(&opts.styleFile, "style-file", "", "TOML style sheet overriding the built-in palette")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")

	return cmd
}

// runRender parses the document, builds the DOT graph, renders it (or takes
// a cache hit), and writes the output file.
func runRender(ctx context.Context, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	logger.Infof("Rendering %s", opts.input)

	data, err := os.ReadFile(opts.input)
	if os.IsNotExist(err) {
		return errors.New(errors.ErrCodeFileNotFound, "topology file not found: %s", opts.input)
	}
	if err != nil {
		return err
	}

	root, err := topology.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}
	logger.Infof("Loaded topology: %d nodes, %d edges", root.Count(), root.Count()-1)

	style := render.DefaultStyle()
	if opts.styleFile != "" {
		if style, err = render.LoadStyle(opts.styleFile); err != nil {
			return err
		}
		logger.Debugf("Loaded style sheet %s", opts.styleFile)
	}

	dot := render.ToDOT(root, style)
	outputPath := opts.output + "." + opts.format

	c := newRenderCache(opts.noCache)
	defer c.Close()

	// The DOT source captures both input document and style, so it is the
	// whole cache key.
	key := cache.Key("render", cache.Hash([]byte(dot)), opts.format)

	artifact, hit, err := c.Get(ctx, key)
	if err != nil {
		logger.Warnf("cache lookup failed: %v", err)
		hit = false
	}
	if hit {
		logger.Debugf("cache hit for %s", outputPath)
	} else {
		spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", opts.format))
		spinner.Start()

		artifact, err = render.Render(ctx, dot, opts.format)
		if err != nil {
			spinner.StopWithError("Rendering failed")
			return err
		}
		spinner.Stop()
		logger.Debugf("Generated %s: %d bytes", opts.format, len(artifact))

		if err := c.Set(ctx, key, artifact, artifactTTL); err != nil {
			logger.Warnf("cache store failed: %v", err)
		}
	}

	if err := os.WriteFile(outputPath, artifact, 0644); err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Created visualization at: %s", outputPath))
	printSuccess("Created visualization")
	printFile(outputPath)
	return nil
}
