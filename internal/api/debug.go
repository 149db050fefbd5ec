package api

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// mcuBlocks are the status blocks dumped by the debug endpoint: the main
// HDMI block plus the two secondary blocks the MCU answers next to it.
var mcuBlocks = []struct {
	sub byte
	len int
}{
	{0x00, 0x1a},
	{0x1a, 0x10},
	{0x2a, 0x10},
}

type procampOutput struct {
	Body struct {
		Brightness uint8 `json:"brightness"`
		Contrast   uint8 `json:"contrast"`
		Saturation uint8 `json:"saturation"`
		Hue        int8  `json:"hue"`
	}
}

type debugBlocksOutput struct {
	Body struct {
		Blocks map[string]string `json:"blocks" doc:"Raw MCU status blocks, hex encoded, keyed by subaddress"`
	}
}

func (s *Server) registerDebugRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-procamp",
		Method:      http.MethodGet,
		Path:        "/api/procamp",
		Summary:     "Picture Controls",
		Description: "Brightness, contrast, saturation and hue as the MCU reports them",
		Tags:        []string{"device"},
		Errors:      []int{503},
	}, func(_ context.Context, _ *struct{}) (*procampOutput, error) {
		if s.options.Monitor == nil {
			return nil, huma.Error503ServiceUnavailable("no device attached")
		}
		p, err := s.options.Monitor.ReadProcamp()
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("procamp read failed", err)
		}
		out := &procampOutput{}
		out.Body.Brightness = p.Brightness
		out.Body.Contrast = p.Contrast
		out.Body.Saturation = p.Saturation
		out.Body.Hue = p.Hue
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-debug-blocks",
		Method:      http.MethodGet,
		Path:        "/api/debug/blocks",
		Summary:     "Raw MCU Status Blocks",
		Tags:        []string{"debug"},
		Errors:      []int{503},
	}, func(_ context.Context, _ *struct{}) (*debugBlocksOutput, error) {
		if s.options.Monitor == nil {
			return nil, huma.Error503ServiceUnavailable("no device attached")
		}
		out := &debugBlocksOutput{}
		out.Body.Blocks = make(map[string]string, len(mcuBlocks))
		for _, blk := range mcuBlocks {
			b, err := s.options.Monitor.ReadRawBlock(blk.sub, blk.len)
			if err != nil {
				return nil, huma.Error503ServiceUnavailable("block read failed", err)
			}
			out.Body.Blocks[hexByte(blk.sub)] = hex.EncodeToString(b)
		}
		return out, nil
	})
}

func hexByte(b byte) string {
	return "0x" + hex.EncodeToString([]byte{b})
}
