package devices

import (
	"context"
	"strings"
	"time"

	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/logging"
)

var vmMarkers = []string{"qemu", "kvm", "virtualbox", "oracle", "vmware", "xen"}

var vmProbes = []command.Cmd{
	{Name: "systemd-detect-virt", Timeout: time.Second},
	{Name: "dmidecode", Args: []string{"-s", "system-product-name"}, Timeout: time.Second},
}

// DetectVM reports whether fakecam runs inside a virtual machine, where the
// reduced output mode is used by default.
func DetectVM(ctx context.Context, runner command.Runner) bool {
	for _, probe := range vmProbes {
		if !command.Available(runner, probe.Name) {
			continue
		}
		// systemd-detect-virt exits 1 on bare metal; only the output matters
		res, _ := runner.Run(ctx, probe)
		out := strings.ToLower(res.Stdout)
		for _, marker := range vmMarkers {
			if strings.Contains(out, marker) {
				logging.GetLogger("devices").Info("Virtual machine detected", "probe", probe.Name, "result", strings.TrimSpace(res.Stdout))
				return true
			}
		}
	}
	return false
}
