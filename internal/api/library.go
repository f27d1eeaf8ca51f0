package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/fakecam/internal/api/models"
	"github.com/smazurov/fakecam/internal/library"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-library",
		Method:      http.MethodGet,
		Path:        "/api/library",
		Summary:     "Media Library",
		Description: "Video and audio sources accepted by the start endpoints",
		Tags:        []string{"library"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LibraryResponse, error) {
		return &models.LibraryResponse{
			Body: models.LibraryData{Videos: library.Videos(), Audios: library.Audios()},
		}, nil
	})
}

func (s *Server) registerMonitorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-monitor",
		Method:      http.MethodGet,
		Path:        "/api/monitor",
		Summary:     "Monitor",
		Description: "Device formats, sink state, uptimes and estimated bitrates",
		Tags:        []string{"monitor"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.MonitorResponse, error) {
		return &models.MonitorResponse{Body: s.options.Monitor.All(ctx)}, nil
	})
}
