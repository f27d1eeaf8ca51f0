package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/fakecam/internal/api/models"
	"github.com/smazurov/fakecam/internal/process"
)

func (s *Server) registerProcessRoutes() {
	procs := s.options.Processes

	huma.Register(s.api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/api/processes",
		Summary:     "List Processes",
		Description: "Snapshot of every supervised process, polled for exits",
		Tags:        []string{"processes"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ProcessListResponse, error) {
		snapshot := procs.Snapshot()
		rows := make([]models.ProcessData, 0, len(snapshot))
		running := 0
		for _, st := range snapshot {
			rows = append(rows, models.ProcessFromStatus(st))
			if st.State == process.StateRunning {
				running++
			}
		}
		return &models.ProcessListResponse{
			Body: models.ProcessListData{Processes: rows, Running: running},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-all-processes",
		Method:      http.MethodPost,
		Path:        "/api/processes/stop-all",
		Summary:     "Stop All Processes",
		Description: "Stop every supervised process concurrently. A false result means the kill was not confirmed.",
		Tags:        []string{"processes"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StopAllResponse, error) {
		results := procs.StopAll(s.options.StopTimeout)
		s.logger.Info("Stopped all processes", "results", results)
		return &models.StopAllResponse{Body: models.StopAllData{Results: results}}, nil
	})
}
