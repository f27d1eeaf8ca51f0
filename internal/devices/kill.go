package devices

import (
	"context"
	"strings"
	"time"

	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/logging"
)

// KillByPattern terminates every process whose command line matches pattern
// (pgrep -f semantics). Survivors of SIGTERM are killed after delay. It
// returns how many processes matched.
func KillByPattern(ctx context.Context, runner command.Runner, pattern string, delay time.Duration) (int, error) {
	pids, err := pgrep(ctx, runner, pattern)
	if err != nil || len(pids) == 0 {
		return 0, err
	}

	logger := logging.GetLogger("devices")
	logger.Info("Stopping leftover processes", "pattern", pattern, "pids", pids)

	if res, err := runner.Run(ctx, command.Cmd{Name: "pkill", Args: []string{"-f", pattern}}); err != nil && !noMatch(res) {
		return len(pids), err
	}
	if err := sleep(ctx, delay); err != nil {
		return len(pids), err
	}

	left, err := pgrep(ctx, runner, pattern)
	if err != nil || len(left) == 0 {
		return len(pids), err
	}

	logger.Warn("Processes ignored SIGTERM, sending SIGKILL", "pattern", pattern, "pids", left)
	if res, err := runner.Run(ctx, command.Cmd{Name: "pkill", Args: []string{"-9", "-f", pattern}}); err != nil && !noMatch(res) {
		return len(pids), err
	}
	return len(pids), sleep(ctx, delay)
}

func pgrep(ctx context.Context, runner command.Runner, pattern string) ([]string, error) {
	res, err := runner.Run(ctx, command.Cmd{Name: "pgrep", Args: []string{"-f", pattern}})
	if err != nil {
		if noMatch(res) {
			return nil, nil
		}
		return nil, err
	}
	return strings.Fields(res.Stdout), nil
}

// noMatch reports whether res carries the exit status pgrep and pkill use
// when nothing matched.
func noMatch(res command.Result) bool {
	return res.ExitCode == 1
}
