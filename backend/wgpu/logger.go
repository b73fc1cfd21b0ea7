package wgpu

import (
	"log/slog"

	"github.com/gogpu/rendergraph"
)

// slogger returns the render graph logger, so rendergraph.SetLogger
// configures this package too.
func slogger() *slog.Logger { return rendergraph.Logger() }
