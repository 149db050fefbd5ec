package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Nakildias/sc0710/internal/logging"
)

type logsOutput struct {
	Body struct {
		Entries []logging.LogEntry `json:"entries"`
	}
}

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "The in-memory log ring buffer, oldest first",
		Tags:        []string{"logs"},
	}, func(_ context.Context, _ *struct{}) (*logsOutput, error) {
		out := &logsOutput{}
		if buf := logging.History(); buf != nil {
			out.Body.Entries = buf.ReadAll()
		}
		return out, nil
	})
}
