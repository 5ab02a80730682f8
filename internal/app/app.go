// Package app assembles the kernel binding, ingestion pipelines and DWG
// converters from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Faultbox/cadview/internal/config"
	"github.com/Faultbox/cadview/internal/dwg"
	"github.com/Faultbox/cadview/internal/ingest"
	"github.com/Faultbox/cadview/internal/kernel"
	"github.com/Faultbox/cadview/internal/viewer"
)

// Stack is everything a viewer process needs besides its surface.
type Stack struct {
	Kernel    *kernel.Binding
	Pipelines viewer.Pipelines
	Options   viewer.Options
}

// Build wires the stack described by cfg. The kernel is not loaded until
// the first STEP file or an explicit Initialize.
func Build(cfg *config.Config, log *zap.Logger) *Stack {
	if log == nil {
		log = zap.NewNop()
	}
	k := kernel.NewBinding(Loader(cfg.Kernel, log), kernel.Config{
		LoadTimeout:   cfg.Kernel.LoadTimeout,
		BinaryTimeout: cfg.Kernel.BinaryTimeout,
		RawTimeout:    cfg.Kernel.RawTimeout,
		Options: kernel.Options{
			LinearDeflection:  cfg.Kernel.LinearDeflection,
			AngularDeflection: cfg.Kernel.AngularDeflection,
		},
	}, log.Named("kernel"))

	pal := k.Palette()
	return &Stack{
		Kernel: k,
		Pipelines: viewer.Pipelines{
			Step: &ingest.StepPipeline{
				Kernel:       k,
				Log:          log.Named("step"),
				TargetSize:   cfg.Ingest.TargetSize,
				MinSize:      cfg.Ingest.MinReasonableSize,
				MaxSize:      cfg.Ingest.MaxReasonableSize,
				InflateLimit: 4 * cfg.Viewer.MaxFileSize(),
			},
			DXF:  &ingest.DXFPipeline{Palette: pal, Log: log.Named("dxf")},
			Mesh: &ingest.MeshLoader{Palette: pal, Log: log.Named("mesh")},
			DWG:  Converter(cfg.DWG, log.Named("dwg")),
		},
		Options: viewer.Options{
			MaxFileSize:      cfg.Viewer.MaxFileSize(),
			ProgressInterval: cfg.Ingest.ProgressInterval,
		},
	}
}

// Loader returns the kernel loader for cfg. Without a module path the
// binding runs degraded and STEP files get placeholder geometry.
func Loader(cfg config.KernelConfig, log *zap.Logger) kernel.Loader {
	if cfg.WASMPath == "" {
		return kernel.LoaderFunc(func(context.Context) (kernel.Module, error) {
			return nil, fmt.Errorf("%w: no kernel module configured", kernel.ErrUnavailable)
		})
	}
	return kernel.WASMLoader{Path: cfg.WASMPath, Log: log.Named("wasm")}
}

// Converter returns the DWG conversion chain: the HTTP endpoint when set,
// then local command-line tools.
func Converter(cfg config.DWGConfig, log *zap.Logger) dwg.Converter {
	var chain dwg.Chain
	if cfg.Endpoint != "" {
		chain = append(chain, dwg.NewHTTPConverter(cfg.Endpoint, &http.Client{Timeout: cfg.Timeout}))
	}
	chain = append(chain, &dwg.ExecConverter{Commands: cfg.Commands, Log: log})
	return dwg.WithTimeout(chain, cfg.Timeout)
}

// Close tears down the kernel.
func (s *Stack) Close(ctx context.Context) error {
	return s.Kernel.Close(ctx)
}
