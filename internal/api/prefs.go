package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/fakecam/internal/api/models"
)

func (s *Server) registerPrefsRoutes() {
	p := s.options.Prefs

	huma.Register(s.api, huma.Operation{
		OperationID: "get-prefs",
		Method:      http.MethodGet,
		Path:        "/api/prefs",
		Summary:     "Preferences",
		Tags:        []string{"preferences"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.PrefsResponse, error) {
		return &models.PrefsResponse{Body: p.Get()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-prefs",
		Method:      http.MethodPut,
		Path:        "/api/prefs",
		Summary:     "Update Preferences",
		Description: "Change the saved selections. Omitted fields keep their value. " +
			"vm_mode is stored only; use /api/video/vm-mode to apply it to a running pipeline.",
		Tags:     []string{"preferences"},
		Security: withAuth(),
		Errors:   []int{401, 404, 500},
	}, func(_ context.Context, input *models.PrefsUpdateRequest) (*models.PrefsResponse, error) {
		if v := input.Body.VideoSelection; v != nil {
			if err := p.SetVideoSelection(*v); err != nil {
				return nil, toHumaError("Failed to set video selection", err)
			}
		}
		if a := input.Body.AudioSelection; a != nil {
			if err := p.SetAudioSelection(*a); err != nil {
				return nil, toHumaError("Failed to set audio selection", err)
			}
		}
		if vm := input.Body.VMMode; vm != nil {
			if err := p.SetVMMode(*vm); err != nil {
				return nil, toHumaError("Failed to set VM mode", err)
			}
		}
		return &models.PrefsResponse{Body: p.Get()}, nil
	})
}
