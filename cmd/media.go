package cmd

import (
	"fmt"
	"io"

	"github.com/smazurov/fakecam/internal/audio"
	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/download"
	"github.com/smazurov/fakecam/internal/events"
	"github.com/smazurov/fakecam/internal/process"
	"github.com/smazurov/fakecam/internal/tts"
	"github.com/smazurov/fakecam/internal/video"
	"github.com/spf13/cobra"
)

// progressPrinter writes download progress to a terminal.
type progressPrinter struct {
	w io.Writer
}

func (p progressPrinter) Publish(ev events.Event) {
	e, ok := ev.(events.DownloadProgressEvent)
	if !ok {
		return
	}
	switch {
	case e.Error != "":
		fmt.Fprintf(p.w, "\r%s: failed: %s\n", e.Source, e.Error)
	case e.Done:
		fmt.Fprintf(p.w, "\r%s: done\n", e.Source)
	case e.Total > 0:
		fmt.Fprintf(p.w, "\r%s: %3d%%", e.Source, e.Downloaded*100/e.Total)
	default:
		fmt.Fprintf(p.w, "\r%s: %d bytes", e.Source, e.Downloaded)
	}
}

func newTTS(s config.Settings, runner command.Runner) *tts.Manager {
	return tts.NewManager(runner, s.TTSEngines, tts.Params{
		Speed:     s.TTSSpeed,
		Pitch:     s.TTSPitch,
		Amplitude: s.TTSAmplitude,
	}, s.FFmpegPath)
}

// NewVideoCmd creates the video command group.
func NewVideoCmd(settings func() config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Video library operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "download <source>",
		Short: "Fetch a sample video into the video directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			s := settings()
			m := video.NewManager(process.NewRegistry(), download.New(), progressPrinter{w: c.OutOrStdout()}, s, false)
			return m.Download(c.Context(), args[0])
		},
	})

	return cmd
}

// NewAudioCmd creates the audio command group.
func NewAudioCmd(settings func() config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Audio library operations",
	}

	newManager := func(s config.Settings) *audio.Manager {
		runner := command.Exec{Sudo: s.UseSudo}
		return audio.NewManager(process.NewRegistry(), runner, newTTS(s, runner), nil, s)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "generate <source>",
			Short: "Synthesize a voice clip or tone into the audio directory",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				s := settings()
				if err := newManager(s).Generate(c.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "Generated %s in %s\n", args[0], s.AudioDir)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear-cache",
			Short: "Delete generated audio clips",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				n, err := newManager(settings()).ClearCache()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "Removed %d files\n", n)
				return nil
			},
		},
	)

	return cmd
}

// NewTTSCmd creates the tts command group.
func NewTTSCmd(settings func() config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tts",
		Short: "Text to speech engines",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "engines",
		Short: "List installed engines in priority order",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			s := settings()
			engines := newTTS(s, command.Exec{Sudo: s.UseSudo}).AvailableEngines()
			if len(engines) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "No TTS engine installed, voice clips cannot be generated")
				return
			}
			for i, name := range engines {
				fmt.Fprintf(c.OutOrStdout(), "%d. %s\n", i+1, name)
			}
		},
	})

	return cmd
}
