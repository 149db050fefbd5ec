package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Nakildias/sc0710/internal/config"
	"github.com/Nakildias/sc0710/internal/logging"
)

// RuntimeOptions is the live-tunable state exposed over the API.
type RuntimeOptions struct {
	Verbose           bool   `json:"verbose" doc:"Debug logging everywhere"`
	StatusImages      bool   `json:"status_images" doc:"Status graphics instead of plain color bars"`
	ForceEOTF         string `json:"force_eotf" enum:"auto,sdr,pq,hlg"`
	ForceQuantization string `json:"force_quantization" enum:"auto,limited,full"`
}

type optionsOutput struct {
	Body RuntimeOptions
}

type optionsInput struct {
	Body RuntimeOptions
}

func (s *Server) registerOptionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "Runtime Options",
		Tags:        []string{"configuration"},
	}, func(_ context.Context, _ *struct{}) (*optionsOutput, error) {
		rt := s.options.Runtime.Load()
		return &optionsOutput{Body: runtimeToWire(rt)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "put-options",
		Method:      http.MethodPut,
		Path:        "/api/options",
		Summary:     "Update Runtime Options",
		Description: "Applies immediately; independent of any signal or format state",
		Tags:        []string{"configuration"},
		Errors:      []int{422},
	}, func(_ context.Context, in *optionsInput) (*optionsOutput, error) {
		rt := config.Runtime{
			Verbose:      in.Body.Verbose,
			StatusImages: in.Body.StatusImages,
			ForceEOTF:    config.ParseEOTFOverride(in.Body.ForceEOTF),
			ForceQuant:   config.ParseQuantOverride(in.Body.ForceQuantization),
		}
		s.applyRuntime(rt)
		return &optionsOutput{Body: runtimeToWire(rt)}, nil
	})
}

// applyRuntime publishes the snapshot and flips logging levels for the
// verbose toggle.
func (s *Server) applyRuntime(rt config.Runtime) {
	prev := s.options.Runtime.Load()
	s.options.Runtime.Store(rt)

	if rt.Verbose != prev.Verbose {
		if rt.Verbose {
			logging.SetAllLevels("debug")
		} else {
			logging.SetAllLevels("info")
		}
		s.logger.Info("verbose logging toggled", "verbose", rt.Verbose)
	}
}

func runtimeToWire(rt config.Runtime) RuntimeOptions {
	return RuntimeOptions{
		Verbose:           rt.Verbose,
		StatusImages:      rt.StatusImages,
		ForceEOTF:         eotfWire(rt.ForceEOTF),
		ForceQuantization: quantWire(rt.ForceQuant),
	}
}

func eotfWire(v config.EOTFOverride) string {
	switch v {
	case config.EOTFForceSDR:
		return "sdr"
	case config.EOTFForcePQ:
		return "pq"
	case config.EOTFForceHLG:
		return "hlg"
	default:
		return "auto"
	}
}

func quantWire(v config.QuantOverride) string {
	switch v {
	case config.QuantForceLimited:
		return "limited"
	case config.QuantForceFull:
		return "full"
	default:
		return "auto"
	}
}
