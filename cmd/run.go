package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/instance"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command: devices and pipelines without the API.
func NewRunCmd(settings func() config.Settings) *cobra.Command {
	var videoSource, audioSource string
	var keepDevices bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the virtual camera and microphone without the HTTP API",
		Long: `Sets up both virtual devices, starts the selected video and audio sources ` +
			`and supervises them until interrupted. Sources default to the saved preferences.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s := settings()
			logger := logging.GetLogger("main")

			lock, err := instance.Acquire(s.LockFile)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := NewApp(ctx, s)
			defer app.Close()

			videoOK, audioOK := app.Devices.SetupAll(ctx)

			p := app.Prefs.Get()
			if videoSource == "" {
				videoSource = p.VideoSelection
			}
			if audioSource == "" {
				audioSource = p.AudioSelection
			}

			if videoOK {
				if startErr := app.Video.Start(ctx, videoSource); startErr != nil {
					logger.Error("Video failed to start", "source", videoSource, "error", startErr)
				}
			}
			if audioOK {
				if startErr := app.Audio.Start(ctx, audioSource); startErr != nil {
					logger.Error("Audio failed to start", "source", audioSource, "error", startErr)
				}
			}

			logger.Info("Running, press Ctrl+C to stop", "video", app.Video.Status().Running, "audio", app.Audio.Status().Running)
			<-ctx.Done()

			shutdownCtx, cancel := commandContext(s.CommandTimeout * 3)
			defer cancel()
			return app.Shutdown(shutdownCtx, !keepDevices)
		},
	}

	cmd.Flags().StringVar(&videoSource, "video", "", "Video source name (default: saved selection)")
	cmd.Flags().StringVar(&audioSource, "audio", "", "Audio source name (default: saved selection)")
	cmd.Flags().BoolVar(&keepDevices, "keep-devices", false, "Leave the virtual devices in place on exit")

	return cmd
}
