package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/smazurov/fakecam/internal/api/models"
	"github.com/smazurov/fakecam/internal/version"
	"github.com/spf13/cobra"
)

// NewStatusCmd queries a running fakecam over its HTTP API.
func NewStatusCmd() *cobra.Command {
	var addr, username, password string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the processes of a running fakecam",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(10 * time.Second)
			defer cancel()

			var list models.ProcessListData
			if err := getJSON(ctx, baseURL(addr)+"/api/processes", username, password, &list); err != nil {
				return err
			}
			writeProcesses(c.OutOrStdout(), list, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8091", "Address of the running instance")
	cmd.Flags().StringVar(&username, "username", "", "Basic auth username")
	cmd.Flags().StringVar(&password, "password", "", "Basic auth password")

	return cmd
}

func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}
	return "http://" + addr
}

func getJSON(ctx context.Context, url, username, password string, out any) error {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = nil

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is fakecam running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func writeProcesses(out io.Writer, list models.ProcessListData, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tPID\tUPTIME\tERROR")
	for _, p := range list.Processes {
		pid, uptime := "-", "-"
		if p.PID > 0 {
			pid = fmt.Sprint(p.PID)
		}
		if p.State == "running" && p.StartedAt != nil {
			uptime = now.Sub(*p.StartedAt).Truncate(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.State, pid, uptime, p.Error)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "%d running\n", list.Running)
}
