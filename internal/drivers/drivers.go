// Package drivers assembles the registry of built-in slide drivers.
package drivers

import (
	"log/slog"

	"github.com/ironsheep/slide-tools-mcp/internal/drivers/gdal"
	"github.com/ironsheep/slide-tools-mcp/internal/drivers/svs"
	"github.com/ironsheep/slide-tools-mcp/internal/drivers/zarr"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// Default returns a registry with every built-in driver. Drivers are
// registered, and therefore probed for AUTO, from the most to the least
// specific: SVS before the generic image decoders, which also accept TIFF.
func Default(logger *slog.Logger, opts ...slide.Option) *slide.Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := slide.NewRegistry(append([]slide.Option{slide.WithLogger(logger)}, opts...)...)
	for _, d := range []slide.Driver{
		svs.NewDriver(logger),
		zarr.NewDriver(logger),
		gdal.NewDriver(logger),
	} {
		// IDs are distinct constants.
		_ = r.Register(d)
	}
	return r
}
