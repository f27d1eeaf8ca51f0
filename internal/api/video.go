package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/fakecam/internal/api/models"
)

func (s *Server) videoStatus() *models.VideoStatusResponse {
	st := s.options.Video.Status()
	return &models.VideoStatusResponse{
		Body: models.VideoStatusData{Status: st, Process: models.ProcessFromStatus(st.Process)},
	}
}

func (s *Server) registerVideoRoutes() {
	v := s.options.Video

	huma.Register(s.api, huma.Operation{
		OperationID: "get-video",
		Method:      http.MethodGet,
		Path:        "/api/video",
		Summary:     "Video Status",
		Description: "Current video source, output mode and pipeline process",
		Tags:        []string{"video"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.VideoStatusResponse, error) {
		return s.videoStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-video",
		Method:      http.MethodPost,
		Path:        "/api/video/start",
		Summary:     "Start Video",
		Description: "Stream a library source to the virtual camera. Missing sample files are downloaded first; " +
			"a pipeline that dies during the grace period is replaced by a blue screen.",
		Tags:     []string{"video"},
		Security: withAuth(),
		Errors:   []int{401, 404, 409, 500},
	}, func(ctx context.Context, input *models.SourceRequest) (*models.VideoStatusResponse, error) {
		if err := v.Start(ctx, input.Body.Source); err != nil {
			return nil, toHumaError("Failed to start video", err)
		}
		return s.videoStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-video",
		Method:      http.MethodPost,
		Path:        "/api/video/stop",
		Summary:     "Stop Video",
		Description: "Stop the video pipeline. stopped=false means the kill could not be confirmed.",
		Tags:        []string{"video"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StopResponse, error) {
		ok := v.Stop()
		msg := "video stopped"
		if !ok {
			msg = "video kill unconfirmed"
		}
		return &models.StopResponse{Body: models.StopData{Stopped: ok, Message: msg}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-vm-mode",
		Method:      http.MethodPut,
		Path:        "/api/video/vm-mode",
		Summary:     "Set VM Mode",
		Description: "Switch between normal and reduced output. A running pipeline restarts with the new mode.",
		Tags:        []string{"video"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *models.VMModeRequest) (*models.VideoStatusResponse, error) {
		if err := v.SetVMMode(ctx, input.Body.Enabled); err != nil {
			return nil, toHumaError("Failed to apply VM mode", err)
		}
		if p := s.options.Prefs; p != nil {
			if err := p.SetVMMode(input.Body.Enabled); err != nil {
				s.logger.Warn("Failed to save VM mode preference", "error", err)
			}
		}
		return s.videoStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "download-video",
		Method:      http.MethodPost,
		Path:        "/api/video/download",
		Summary:     "Download Video",
		Description: "Fetch a sample file without starting playback. Progress is published on /api/events.",
		Tags:        []string{"video"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *models.SourceRequest) (*models.GenerateResponse, error) {
		if err := v.Download(ctx, input.Body.Source); err != nil {
			return nil, toHumaError("Failed to download video", err)
		}
		return &models.GenerateResponse{
			Body: models.GenerateData{Source: input.Body.Source, Message: "video ready"},
		}, nil
	})
}
