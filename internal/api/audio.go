package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/fakecam/internal/api/models"
)

func (s *Server) audioStatus() *models.AudioStatusResponse {
	st := s.options.Audio.Status()
	return &models.AudioStatusResponse{
		Body: models.AudioStatusData{Status: st, Process: models.ProcessFromStatus(st.Process)},
	}
}

func (s *Server) registerAudioRoutes() {
	a := s.options.Audio

	huma.Register(s.api, huma.Operation{
		OperationID: "get-audio",
		Method:      http.MethodGet,
		Path:        "/api/audio",
		Summary:     "Audio Status",
		Tags:        []string{"audio"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.AudioStatusResponse, error) {
		return s.audioStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-audio",
		Method:      http.MethodPost,
		Path:        "/api/audio/start",
		Summary:     "Start Audio",
		Description: "Play a library source into the virtual microphone, generating it first when needed. " +
			"The silence source starts no process.",
		Tags:     []string{"audio"},
		Security: withAuth(),
		Errors:   []int{401, 404, 409, 500},
	}, func(ctx context.Context, input *models.SourceRequest) (*models.AudioStatusResponse, error) {
		if err := a.Start(ctx, input.Body.Source); err != nil {
			return nil, toHumaError("Failed to start audio", err)
		}
		return s.audioStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-audio",
		Method:      http.MethodPost,
		Path:        "/api/audio/stop",
		Summary:     "Stop Audio",
		Tags:        []string{"audio"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StopResponse, error) {
		ok := a.Stop()
		msg := "audio stopped"
		if !ok {
			msg = "audio kill unconfirmed"
		}
		return &models.StopResponse{Body: models.StopData{Stopped: ok, Message: msg}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "generate-audio",
		Method:      http.MethodPost,
		Path:        "/api/audio/generate",
		Summary:     "Generate Audio",
		Description: "Synthesize a voice or tone source into the cache without playing it",
		Tags:        []string{"audio"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *models.SourceRequest) (*models.GenerateResponse, error) {
		if err := a.Generate(ctx, input.Body.Source); err != nil {
			return nil, toHumaError("Failed to generate audio", err)
		}
		return &models.GenerateResponse{
			Body: models.GenerateData{Source: input.Body.Source, Message: "audio ready"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-audio-cache",
		Method:      http.MethodDelete,
		Path:        "/api/audio/cache",
		Summary:     "Clear Audio Cache",
		Tags:        []string{"audio"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.ClearCacheResponse, error) {
		n, err := a.ClearCache()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to clear audio cache", err)
		}
		return &models.ClearCacheResponse{Body: models.ClearCacheData{Deleted: n}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-tts-engines",
		Method:      http.MethodGet,
		Path:        "/api/tts/engines",
		Summary:     "TTS Engines",
		Description: "Installed text-to-speech engines in priority order",
		Tags:        []string{"audio"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.EnginesResponse, error) {
		engines := a.Engines()
		if engines == nil {
			engines = []string{}
		}
		return &models.EnginesResponse{Body: models.EnginesData{Engines: engines}}, nil
	})
}
