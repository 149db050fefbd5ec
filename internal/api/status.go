package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Nakildias/sc0710/internal/version"
)

// StatusBody is the device state snapshot served by /api/status.
type StatusBody struct {
	State            string `json:"state" enum:"no_device,no_signal,locked" doc:"Signal state"`
	Locked           bool   `json:"locked"`
	CableConnected   bool   `json:"cable_connected"`
	Mode             string `json:"mode,omitempty" example:"1920x1080p60" doc:"Catalog name of the detected mode"`
	Width            uint32 `json:"width,omitempty"`
	Height           uint32 `json:"height,omitempty"`
	TimingH          uint32 `json:"timing_h,omitempty" doc:"Total pixels per line including blanking"`
	TimingV          uint32 `json:"timing_v,omitempty" doc:"Total lines including blanking"`
	Interlaced       bool   `json:"interlaced,omitempty"`
	Colorimetry      string `json:"colorimetry,omitempty"`
	EOTF             string `json:"eotf,omitempty"`
	StreamingClients int    `json:"streaming_clients"`
}

type statusOutput struct {
	Body StatusBody
}

type healthOutput struct {
	Body struct {
		Status  string `json:"status" example:"ok"`
		Version string `json:"version"`
	}
}

type capabilityOutput struct {
	Body struct {
		Driver   string   `json:"driver"`
		Card     string   `json:"card"`
		Channels int      `json:"channels"`
		Caps     []string `json:"caps"`
		Version  string   `json:"version"`
	}
}

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Device Status",
		Description: "Current signal state, detected mode and streaming client count",
		Tags:        []string{"device"},
	}, func(_ context.Context, _ *struct{}) (*statusOutput, error) {
		snap := s.options.Snapshot()
		out := &statusOutput{
			Body: StatusBody{
				State:            snap.State.String(),
				Locked:           snap.Locked,
				CableConnected:   snap.CableConnected,
				Width:            snap.Width,
				Height:           snap.Height,
				TimingH:          snap.TimingH,
				TimingV:          snap.TimingV,
				Interlaced:       snap.Interlaced,
				Colorimetry:      snap.Colorimetry.String(),
				EOTF:             snap.EOTF.String(),
				StreamingClients: s.options.Mux.StreamingClients(),
			},
		}
		if snap.Format != nil {
			out.Body.Mode = snap.Format.Name
		}
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-capability",
		Method:      http.MethodGet,
		Path:        "/api/capability",
		Summary:     "Device Capability",
		Tags:        []string{"device"},
	}, func(_ context.Context, _ *struct{}) (*capabilityOutput, error) {
		cap := s.options.Device.Capability()
		out := &capabilityOutput{}
		out.Body.Driver = cap.Driver
		out.Body.Card = cap.Card
		out.Body.Channels = cap.Channels
		out.Body.Caps = cap.Caps
		out.Body.Version = version.String()
		return out, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health Check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		out.Body.Version = version.String()
		return out, nil
	})
}
