// Package cli implements the slidetool command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ironsheep/slide-tools-mcp/internal/config"
	"github.com/ironsheep/slide-tools-mcp/internal/drivers"
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/logging"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// Root holds state shared by every command. It is populated before a
// command runs, from the persistent flags.
type Root struct {
	version string

	configPath string
	logLevel   string
	driver     string

	cfg   *config.Config
	log   *slog.Logger
	cache *imaging.SlideCache
}

// setup loads the configuration and builds the logger and slide cache.
func (r *Root) setup(stderr io.Writer) error {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		return err
	}
	if r.logLevel != "" {
		cfg.Logging.Level = r.logLevel
	}
	if r.driver != "" {
		cfg.Engine.DefaultDriver = r.driver
	}
	r.cfg = cfg
	r.log = logging.NewWithWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)
	r.cache = imaging.NewSlideCache(drivers.Default(r.log, cfg.SlideOptions()...), cfg.Cache.MaxSlides)
	return nil
}

func (r *Root) close() {
	if r.cache != nil {
		r.cache.Clear()
	}
}

func (r *Root) openSlide(path string) (*slide.Slide, error) {
	return r.cache.Open(path, r.cfg.Engine.DefaultDriver)
}

// openScene opens scene index of path, or the named auxiliary image when aux
// is set.
func (r *Root) openScene(path string, index int, aux string) (*slide.Slide, *slide.Scene, error) {
	s, err := r.openSlide(path)
	if err != nil {
		return nil, nil, err
	}
	var sc *slide.Scene
	if aux != "" {
		sc, err = s.AuxImage(aux)
	} else {
		sc, err = s.Scene(index)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, sc, nil
}

// NewRootCmd creates the root Cobra command
func NewRootCmd(version string) *cobra.Command {
	root := &Root{version: version}

	rootCmd := &cobra.Command{
		Use:   "slidetool",
		Short: "slidetool reads whole-slide and scientific images",
		Long: `slidetool opens pyramidal slide files (SVS), chunked arrays (Zarr) and plain
raster images through one scene model. It reads and resamples regions, compares
images, converts scenes to SVS and serves the engine over HTTP or MCP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return root.setup(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			root.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&root.configPath, "config", "", "YAML configuration file (default $"+config.EnvConfig+" or "+config.DefaultPath+")")
	flags.StringVar(&root.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVarP(&root.driver, "driver", "d", "", "driver ID (GDAL|SVS|ZARR) or AUTO")

	rootCmd.AddCommand(newDriversCmd(root))
	rootCmd.AddCommand(newInfoCmd(root))
	rootCmd.AddCommand(newReadCmd(root))
	rootCmd.AddCommand(newCompareCmd(root))
	rootCmd.AddCommand(newConvertCmd(root))
	rootCmd.AddCommand(newOCRCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newMCPCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}
