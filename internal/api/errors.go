package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/fakecam/internal/audio"
	"github.com/smazurov/fakecam/internal/prefs"
	"github.com/smazurov/fakecam/internal/video"
)

// toHumaError maps domain errors onto HTTP status codes.
func toHumaError(msg string, err error) error {
	switch {
	case errors.Is(err, video.ErrUnknownSource),
		errors.Is(err, audio.ErrUnknownSource),
		errors.Is(err, prefs.ErrUnknownSelection):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, video.ErrAlreadyRunning),
		errors.Is(err, audio.ErrAlreadyRunning):
		return huma.Error409Conflict(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
