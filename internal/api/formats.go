package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Nakildias/sc0710/internal/format"
)

// FormatInfo is one catalog entry on the wire.
type FormatInfo struct {
	Name       string `json:"name" example:"1920x1080p60"`
	Width      uint32 `json:"width"`
	Height     uint32 `json:"height"`
	TimingH    uint32 `json:"timing_h"`
	TimingV    uint32 `json:"timing_v"`
	Interlaced bool   `json:"interlaced"`
	FPSNum     uint32 `json:"fps_num"`
	FPSDen     uint32 `json:"fps_den"`
	FrameSize  int    `json:"frame_size" doc:"Packed YUYV bytes per frame"`
}

type formatsOutput struct {
	Body struct {
		Formats []FormatInfo `json:"formats"`
	}
}

type frameSizesOutput struct {
	Body struct {
		Sizes []capFrameSize `json:"sizes"`
	}
}

type capFrameSize struct {
	Width     uint32   `json:"width"`
	Height    uint32   `json:"height"`
	Intervals []string `json:"intervals" doc:"Frame periods as num/den"`
}

func (s *Server) registerFormatRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-formats",
		Method:      http.MethodGet,
		Path:        "/api/formats",
		Summary:     "Format Catalog",
		Description: "Every video mode the capture chip can deliver",
		Tags:        []string{"formats"},
	}, func(_ context.Context, _ *struct{}) (*formatsOutput, error) {
		out := &formatsOutput{}
		for _, f := range format.All() {
			out.Body.Formats = append(out.Body.Formats, FormatInfo{
				Name:       f.Name,
				Width:      f.Width,
				Height:     f.Height,
				TimingH:    f.TimingH,
				TimingV:    f.TimingV,
				Interlaced: f.Interlaced,
				FPSNum:     f.FPSNum,
				FPSDen:     f.FPSDen,
				FrameSize:  f.FrameSize,
			})
		}
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-frame-sizes",
		Method:      http.MethodGet,
		Path:        "/api/formats/sizes",
		Summary:     "Frame Sizes",
		Description: "Discrete frame sizes with their supported intervals",
		Tags:        []string{"formats"},
	}, func(_ context.Context, _ *struct{}) (*frameSizesOutput, error) {
		out := &frameSizesOutput{}
		for _, fs := range s.options.Device.FrameSizes() {
			entry := capFrameSize{Width: fs.Width, Height: fs.Height}
			for _, iv := range s.options.Device.FrameIntervals(fs.Width, fs.Height) {
				entry.Intervals = append(entry.Intervals,
					ratio(iv.Numerator, iv.Denominator))
			}
			out.Body.Sizes = append(out.Body.Sizes, entry)
		}
		return out, nil
	})
}

func ratio(num, den uint32) string {
	return strconv.FormatUint(uint64(num), 10) + "/" + strconv.FormatUint(uint64(den), 10)
}
