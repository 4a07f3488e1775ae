package slide

import (
	"log/slog"
	"runtime"
)

type options struct {
	workers int
	logger  *slog.Logger
}

func defaultOptions() options {
	return options{
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
}

// Option customizes slides opened through a Registry.
type Option func(*options)

// WithWorkers bounds the number of tiles decoded concurrently by one
// ReadBlock call. Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		o.workers = n
	}
}

// WithLogger routes engine diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
