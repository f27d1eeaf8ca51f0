// Package process supervises the long-lived subprocesses that feed the
// virtual devices.
//
// The package offers two levels of abstraction:
//
// ManagedProcess wraps os/exec for a single named subprocess slot:
//   - Argument lists only, never a shell command string
//   - Startup grace period to tell "started" from "crashed immediately"
//   - Graceful stop with SIGTERM, escalation to SIGKILL after a timeout
//   - Output streaming with pluggable log parsing
//   - Non-blocking Poll for status display
//
// Registry maps logical names to ManagedProcess instances:
//   - Get-or-create by name, one instance per name for the registry lifetime
//   - Start/Stop delegation without holding the registry lock
//   - StopAll for shutdown, every entry gets a stop attempt
//   - Snapshot for status display and metrics
//
// Failures never cross the Start/Stop boundary as errors. Callers get a
// bool and read the recorded state and last error afterwards.
//
// Example usage with Registry:
//
//	reg := process.NewRegistry(
//	    process.WithLogger(logging.GetLogger("process")),
//	    process.WithStateChange(func(name string, old, new process.State, err error) {
//	        log.Printf("process %s: %s -> %s", name, old, new)
//	    }),
//	)
//	defer reg.StopAll(2 * time.Second)
//
//	if !reg.Start("video", []string{"ffmpeg", "-re", "-f", "lavfi", "-i", "testsrc2"}, 2*time.Second) {
//	    st := reg.Get("video").Status()
//	    log.Printf("video failed: %s", st.Error)
//	}
package process
