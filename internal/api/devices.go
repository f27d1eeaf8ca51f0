package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/fakecam/internal/api/models"
)

func (s *Server) registerDeviceRoutes() {
	d := s.options.Devices

	huma.Register(s.api, huma.Operation{
		OperationID: "get-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "Device Status",
		Description: "State of the v4l2loopback camera and the null-sink microphone",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		return &models.DevicesResponse{Body: d.Status(ctx)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "setup-devices",
		Method:      http.MethodPost,
		Path:        "/api/devices/setup",
		Summary:     "Setup Devices",
		Description: "Stop the pipelines, reload the loopback module and recreate the null sink. Both devices are attempted even if one fails.",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.DeviceSetupResponse, error) {
		s.stopPipelines()
		videoOK, audioOK := d.SetupAll(ctx)
		return &models.DeviceSetupResponse{
			Body: models.DeviceSetupData{Video: videoOK, Audio: audioOK},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "teardown-devices",
		Method:      http.MethodPost,
		Path:        "/api/devices/teardown",
		Summary:     "Teardown Devices",
		Description: "Stop the pipelines, unload the loopback module and remove the null sink",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.DeviceTeardownResponse, error) {
		s.stopPipelines()
		return &models.DeviceTeardownResponse{
			Body: models.DeviceTeardownData{OK: d.TeardownAll(ctx)},
		}, nil
	})
}

// stopPipelines stops every supervised process through its owner before the
// devices are touched. Device cleanup kills leftover writers by pattern and
// modprobe -r fails while the node is open.
func (s *Server) stopPipelines() {
	if v := s.options.Video; v != nil {
		v.Stop()
	}
	if a := s.options.Audio; a != nil {
		a.Stop()
	}
	if p := s.options.Processes; p != nil {
		p.StopAll(s.options.StopTimeout)
	}
}
