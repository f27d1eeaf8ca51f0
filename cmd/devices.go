package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/devices"
	"github.com/smazurov/fakecam/internal/systemd"
	"github.com/spf13/cobra"
)

// NewDevicesCmd creates the devices command group.
func NewDevicesCmd(settings func() config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage the virtual camera and microphone",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "setup",
			Short: "Load v4l2loopback and create the null sink",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				s := settings()
				ctx, cancel := commandContext(s.CommandTimeout * 3)
				defer cancel()

				m, closeFn := newDeviceManager(ctx, s)
				defer closeFn()

				videoOK, audioOK := m.SetupAll(ctx)
				printStatus(c.OutOrStdout(), m.Status(ctx))
				if !videoOK || !audioOK {
					return errors.New("device setup incomplete")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "teardown",
			Short: "Remove the virtual devices",
			Long:  `Kills any writer still holding the devices, then unloads the kernel module and the sink.`,
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				s := settings()
				ctx, cancel := commandContext(s.CommandTimeout * 3)
				defer cancel()

				m, closeFn := newDeviceManager(ctx, s)
				defer closeFn()

				if !m.TeardownAll(ctx) {
					return errors.New("device teardown incomplete")
				}
				fmt.Fprintln(c.OutOrStdout(), "Devices removed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show device state",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				s := settings()
				ctx, cancel := commandContext(s.CommandTimeout)
				defer cancel()

				m, closeFn := newDeviceManager(ctx, s)
				defer closeFn()

				printStatus(c.OutOrStdout(), m.Status(ctx))
				return nil
			},
		},
	)

	return cmd
}

// newDeviceManager builds a devices.Manager without the rest of the app.
func newDeviceManager(ctx context.Context, s config.Settings) (*devices.Manager, func()) {
	runner := command.Exec{Sudo: s.UseSudo}

	var services devices.ServiceManager
	closeFn := func() {}
	if m, err := systemd.NewManager(ctx); err == nil {
		services = m
		closeFn = m.Close
	}

	return devices.NewManager(
		devices.NewVideoDevice(runner, s),
		devices.NewAudioSink(runner, s, services),
		nil,
	), closeFn
}

func printStatus(w io.Writer, st devices.Status) {
	fmt.Fprintf(w, "Video device:  %s (exists=%t module=%t ready=%t)\n",
		st.VideoDevice, st.VideoDeviceExists, st.VideoModuleLoaded, st.VideoSetup)
	if st.VideoCard != "" {
		fmt.Fprintf(w, "  card:        %s [%s]\n", st.VideoCard, st.VideoDriver)
	}
	fmt.Fprintf(w, "Audio sink:    %s (loaded=%t ready=%t)\n", st.AudioSink, st.AudioSinkLoaded, st.AudioSetup)
	fmt.Fprintf(w, "  monitor:     %s\n", st.AudioMonitor)
	if st.AudioServer != "" {
		fmt.Fprintf(w, "  server:      %s\n", st.AudioServer)
	}
}
