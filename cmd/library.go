package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/fakecam/internal/library"
	"github.com/spf13/cobra"
)

// NewLibraryCmd lists the built-in video and audio sources.
func NewLibraryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "library",
		Short: "List available video and audio sources",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			writeLibrary(c.OutOrStdout())
		},
	}
}

func writeLibrary(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO\tKIND\tSIZE\tDESCRIPTION")
	for _, v := range library.Videos() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Name, v.Kind, v.Size, v.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "AUDIO\tKIND\t\tDESCRIPTION")
	for _, a := range library.Audios() {
		fmt.Fprintf(w, "%s\t%s\t\t%s\n", a.Name, a.Kind, a.Description)
	}
	_ = w.Flush()
}
