package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Nakildias/sc0710/internal/events"
)

type eventsOutput struct {
	Body struct {
		Events []events.Record `json:"events"`
	}
}

func (s *Server) registerEventRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-events",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Recent Events",
		Description: "Signal and DMA lifecycle events, oldest first",
		Tags:        []string{"events"},
	}, func(_ context.Context, _ *struct{}) (*eventsOutput, error) {
		out := &eventsOutput{}
		if s.options.Events != nil {
			out.Body.Events = s.options.Events.Recent()
		}
		return out, nil
	})
}
