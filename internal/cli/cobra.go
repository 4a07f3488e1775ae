package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/slide-tools-mcp/internal/converter"
	"github.com/ironsheep/slide-tools-mcp/internal/httpapi"
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/ocr"
	"github.com/ironsheep/slide-tools-mcp/internal/server"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDriversCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the available format drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range root.cache.Registry().IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newInfoCmd(root *Root) *cobra.Command {
	var (
		asJSON   bool
		metadata bool
	)

	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Describe the scenes and auxiliary images of a slide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := imaging.LoadSlideInfo(root.cache, args[0], root.cfg.Engine.DefaultDriver)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, info)
			}

			fmt.Fprintf(out, "Path:   %s\n", info.Path)
			fmt.Fprintf(out, "Driver: %s\n", info.Driver)
			if info.SizeBytes > 0 {
				fmt.Fprintf(out, "Size:   %d bytes\n", info.SizeBytes)
			}
			for _, sc := range info.Scenes {
				fmt.Fprintf(out, "Scene %d %q: %dx%d, %d x %s, Z=%d T=%d, %d levels, %s",
					sc.Index, sc.Name, sc.Width, sc.Height, sc.Channels, sc.DataType,
					sc.NumZSlices, sc.NumTFrames, sc.Levels, sc.Compression)
				if sc.Magnification > 0 {
					fmt.Fprintf(out, ", %gx", sc.Magnification)
				}
				fmt.Fprintln(out)
			}
			if len(info.AuxImages) > 0 {
				fmt.Fprintf(out, "Auxiliary images: %s\n", strings.Join(info.AuxImages, ", "))
			}
			if metadata {
				s, err := root.openSlide(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s\n", s.RawMetadata())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "print the raw format metadata")
	return cmd
}

func newReadCmd(root *Root) *cobra.Command {
	var (
		scene           int
		aux             string
		x, y, w, h      int
		width, height   int
		maxSize         int
		channels        []int
		z, t            int
		quality         int
		gridSpacing     int
		showCoordinates bool
	)

	cmd := &cobra.Command{
		Use:   "read <path> <output>",
		Short: "Read a region of a scene into a PNG, JPEG or BMP file",
		Long: `Read a rectangle of a scene, resample it and write it as an image. The output
format follows the file extension. Coordinates are full-resolution scene
pixels; a zero width or height extends to the scene edge.

Examples:
  # Whole scene, fitted into 2048 pixels
  slidetool read slide.svs overview.png --max-size 2048

  # A 1000x1000 region at half size with a 100 pixel grid
  slidetool read slide.svs region.jpg --x 5000 --y 3000 --w 1000 --h 1000 --width 500 --grid 100`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sc, err := root.openScene(args[0], scene, aux)
			if err != nil {
				return err
			}

			sr := sc.Rect()
			rect := slide.Rect{X: x, Y: y, Width: w, Height: h}
			if rect.Width == 0 {
				rect.Width = sr.Width - rect.X
			}
			if rect.Height == 0 {
				rect.Height = sr.Height - rect.Y
			}
			size := slide.Size{Width: width, Height: height}
			if size.Width == 0 && size.Height == 0 && maxSize > 0 {
				if rect, err = imaging.VisibleRect(sc, rect); err != nil {
					return err
				}
				size = imaging.FitSize(rect.Width, rect.Height, maxSize)
			}

			start := time.Now()
			block, err := sc.ReadBlock(slide.BlockRequest{
				Rect:     rect,
				Size:     size,
				Channels: channels,
				ZRange:   slide.Range{First: z, Last: z + 1},
				TRange:   slide.Range{First: t, Last: t + 1},
			})
			if err != nil {
				return err
			}
			root.log.Debug("block read", "rect", rect, "size", size, "elapsed", time.Since(start))

			if gridSpacing > 0 {
				if block, err = imaging.GridOverlay(block, rect, gridSpacing, showCoordinates, "#FF000080"); err != nil {
					return err
				}
			}
			if err := imaging.SaveBlock(args[1], block, quality); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %dx%d %s block to %s\n", block.Width, block.Height, block.Type, args[1])
			return nil
		},
	}

	cmd.Flags().IntVar(&scene, "scene", 0, "scene index")
	cmd.Flags().StringVar(&aux, "aux", "", "read an auxiliary image (Label, Macro, Thumbnail) instead of a scene")
	cmd.Flags().IntVar(&x, "x", 0, "region left edge")
	cmd.Flags().IntVar(&y, "y", 0, "region top edge")
	cmd.Flags().IntVar(&w, "w", 0, "region width (0 = to the scene edge)")
	cmd.Flags().IntVar(&h, "h", 0, "region height (0 = to the scene edge)")
	cmd.Flags().IntVar(&width, "width", 0, "output width (0 = keep aspect ratio)")
	cmd.Flags().IntVar(&height, "height", 0, "output height (0 = keep aspect ratio)")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "fit the output into a square of this size when no output size is given")
	cmd.Flags().IntSliceVar(&channels, "channels", nil, "channel indices in output order (default all)")
	cmd.Flags().IntVar(&z, "z", 0, "Z slice")
	cmd.Flags().IntVar(&t, "t", 0, "T frame")
	cmd.Flags().IntVar(&quality, "quality", 90, "JPEG quality")
	cmd.Flags().IntVar(&gridSpacing, "grid", 0, "draw a grid every N scene pixels")
	cmd.Flags().BoolVar(&showCoordinates, "show-coordinates", false, "label grid intersections")
	return cmd
}

func newCompareCmd(root *Root) *cobra.Command {
	var (
		sceneA, sceneB int
		size           int
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "compare <path-a> <path-b>",
		Short: "Compare two scenes and print a similarity score in [0,1]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := root.openScene(args[0], sceneA, "")
			if err != nil {
				return err
			}
			_, b, err := root.openScene(args[1], sceneB, "")
			if err != nil {
				return err
			}
			c, err := imaging.CompareScenes(a, b, slide.Rect{}, size)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, c)
			}
			fmt.Fprintf(out, "score:              %.4f\n", c.Score)
			fmt.Fprintf(out, "squared difference: %.6f\n", c.SquaredDifference)
			if c.ColorDistance >= 0 {
				fmt.Fprintf(out, "color distance:     %.4f\n", c.ColorDistance)
			}
			fmt.Fprintf(out, "compared at:        %dx%d\n", c.Width, c.Height)
			return nil
		},
	}

	cmd.Flags().IntVar(&sceneA, "scene-a", 0, "scene index in the first slide")
	cmd.Flags().IntVar(&sceneB, "scene-b", 0, "scene index in the second slide")
	cmd.Flags().IntVar(&size, "size", 512, "largest side of the compared rasters")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newConvertCmd(root *Root) *cobra.Command {
	var (
		scene       int
		compression string
		quality     int
		tileSize    int
		levels      int
		z, t        int
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "convert <path> <output.svs>",
		Short: "Write a scene as a pyramidal SVS file",
		Long: `Write a scene as a tiled, pyramidal SVS file. Label and macro images are
copied when the source has them. Defaults come from the convert section of
the configuration.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := root.cfg.ConvertParams()
			if err != nil {
				return err
			}
			if compression != "" {
				if p.Compression, err = slide.ParseCompression(compression); err != nil {
					return err
				}
			}
			if quality > 0 {
				p.Quality = quality
			}
			if tileSize > 0 {
				p.TileWidth, p.TileHeight = tileSize, tileSize
			}
			p.NumZoomLevels = levels
			p.Z, p.T = z, t

			s, sc, err := root.openScene(args[0], scene, "")
			if err != nil {
				return err
			}
			aux, err := converter.AssociatedImages(s)
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			var tiles int
			p.Progress = func(done, total int) {
				tiles = total
				if !quiet && (done == total || done%64 == 0) {
					fmt.Fprintf(stderr, "\rtiles %d/%d", done, total)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			start := time.Now()
			if err := converter.ConvertFile(ctx, sc, args[1], p, aux...); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintln(stderr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d tiles, %s, %d associated images in %s\n",
				args[1], tiles, p.Compression, len(aux), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&scene, "scene", 0, "scene index")
	cmd.Flags().StringVar(&compression, "compression", "", "tile compression (Jpeg|Jpeg2000|Zlib|Uncompressed)")
	cmd.Flags().IntVar(&quality, "quality", 0, "lossy codec quality 1-100 (100 = lossless JPEG 2000)")
	cmd.Flags().IntVar(&tileSize, "tile-size", 0, "tile edge, a multiple of 16")
	cmd.Flags().IntVar(&levels, "levels", 0, "number of pyramid levels (0 = down to one tile)")
	cmd.Flags().IntVar(&z, "z", 0, "Z slice to export")
	cmd.Flags().IntVar(&t, "t", 0, "T frame to export")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress output")
	return cmd
}

func newOCRCmd(root *Root) *cobra.Command {
	var (
		language      string
		rotate        int
		upscale       float64
		blocks        bool
		minConfidence float64
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "ocr <path>",
		Short: "Read the text printed on the slide label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.openSlide(args[0])
			if err != nil {
				return err
			}
			if language == "" {
				language = root.cfg.OCR.Language
			}
			opts := ocr.Options{
				Language:       language,
				TessdataPrefix: root.cfg.OCR.TessdataPrefix,
				Rotate:         rotate,
				Upscale:        upscale,
			}
			if blocks {
				res, err := ocr.DetectLabelRegions(s, minConfidence, opts)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), res)
				}
				for _, r := range res.Regions {
					b := r.Bounds
					fmt.Fprintf(cmd.OutOrStdout(), "%d,%d %d,%d %.2f\n", b.X1, b.Y1, b.X2, b.Y2, r.Confidence)
				}
				return nil
			}
			res, err := ocr.ExtractLabelText(s, opts)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.FullText)
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "tesseract language (default from config)")
	cmd.Flags().IntVar(&rotate, "rotate", 0, "clockwise rotation before recognition (0|90|180|270)")
	cmd.Flags().Float64Var(&upscale, "upscale", 2, "enlargement factor for small labels")
	cmd.Flags().BoolVar(&blocks, "blocks", false, "list text block boxes instead of recognizing text")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "with --blocks, drop blocks below this confidence (0-1)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON with word boxes")
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP region API",
		Long: `Start an HTTP server exposing drivers, slide and scene descriptions and
region reads as PNG or JPEG.

Examples:
  slidetool serve --addr :8095
  curl 'http://localhost:8095/api/slide/scenes/0/block?path=/data/a.svs&max_size=1024'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = root.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := httpapi.NewServer(addr, root.cache, root.cfg.Engine.DefaultDriver, root.log)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func newMCPCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server.Version = root.version
			srv := server.New(root.cfg, root.log)
			return srv.Serve(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("slidetool %s\n", root.version)
			cmd.Printf("Built with Go %s\n", runtime.Version())
			cmd.Printf("Drivers: %s\n", strings.Join(root.cache.Registry().IDs(), ", "))
			info := ocr.GetOCRInfo(ocr.Options{Language: root.cfg.OCR.Language, TessdataPrefix: root.cfg.OCR.TessdataPrefix})
			if info.Available {
				cmd.Printf("OCR: tesseract %s (%s)\n", info.Version, info.Languages)
			} else {
				cmd.Printf("OCR: unavailable\n")
			}
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, version string, args []string) int {
	cmd := NewRootCmd(version)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
