package process

import (
	"sync"
	"testing"
	"time"
)

func newTestRegistry(opts ...RegistryOption) *Registry {
	opts = append([]RegistryOption{
		WithLogger(testLogger()),
		WithKillTimeout(500 * time.Millisecond),
	}, opts...)
	return NewRegistry(opts...)
}

func TestRegistryGetReturnsSameInstance(t *testing.T) {
	reg := newTestRegistry()

	const workers = 16
	results := make([]*ManagedProcess, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = reg.Get("video")
		}(i)
	}
	wg.Wait()

	for i, p := range results {
		if p != results[0] {
			t.Fatalf("Get() call %d returned a different instance", i)
		}
	}
	if names := reg.Names(); len(names) != 1 {
		t.Errorf("Names() = %v, want one entry", names)
	}
	if got := results[0].State(); got != StateStopped {
		t.Errorf("new entry state = %s, want %s", got, StateStopped)
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := newTestRegistry()

	if _, ok := reg.Lookup("audio"); ok {
		t.Error("Lookup() found an entry that was never created")
	}
	created := reg.Get("audio")
	got, ok := reg.Lookup("audio")
	if !ok || got != created {
		t.Error("Lookup() did not return the created entry")
	}
}

func TestRegistryStartStop(t *testing.T) {
	reg := newTestRegistry()

	if !reg.Start("video", []string{"sleep", "10"}, 50*time.Millisecond) {
		t.Fatalf("Start() failed: %v", reg.Get("video").LastError())
	}
	if got := reg.RunningCount(); got != 1 {
		t.Errorf("RunningCount() = %d, want 1", got)
	}
	if !reg.Stop("video", time.Second) {
		t.Error("Stop() = false")
	}
	if got := reg.Get("video").Poll(); got != StateStopped {
		t.Errorf("state = %s, want %s", got, StateStopped)
	}
}

func TestRegistryStopAllMixedStates(t *testing.T) {
	reg := newTestRegistry()

	if !reg.Start("running", []string{"sleep", "10"}, 50*time.Millisecond) {
		t.Fatal("failed to start running entry")
	}
	if !reg.Start("stubborn", []string{"sh", "-c", "trap '' TERM; sleep 10"}, 200*time.Millisecond) {
		t.Fatal("failed to start stubborn entry")
	}
	if reg.Start("crashed", []string{"sh", "-c", "exit 1"}, 500*time.Millisecond) {
		t.Fatal("crashed entry started")
	}
	reg.Get("idle")

	results := reg.StopAll(100 * time.Millisecond)

	if len(results) != 4 {
		t.Errorf("StopAll() returned %d results, want 4: %v", len(results), results)
	}
	for _, name := range []string{"running", "stubborn", "crashed", "idle"} {
		ok, exists := results[name]
		if !exists {
			t.Errorf("no result for %q", name)
			continue
		}
		if !ok {
			t.Errorf("StopAll() result for %q = false", name)
		}
		if got := reg.Get(name).State(); got != StateStopped {
			t.Errorf("%q state = %s, want %s", name, got, StateStopped)
		}
	}
}

func TestRegistryStopAllContinuesPastFailure(t *testing.T) {
	reg := NewRegistry(WithLogger(testLogger()), WithKillTimeout(50*time.Millisecond))

	if !reg.Start("wedged", []string{"sleep", "10"}, 50*time.Millisecond) {
		t.Fatal("failed to start wedged entry")
	}
	if !reg.Start("healthy", []string{"sleep", "10"}, 50*time.Millisecond) {
		t.Fatal("failed to start healthy entry")
	}

	wedged := reg.Get("wedged")
	wedged.mu.Lock()
	wedged.run = &run{cmd: wedged.run.cmd, done: make(chan struct{})}
	wedged.mu.Unlock()

	results := reg.StopAll(50 * time.Millisecond)

	if results["wedged"] {
		t.Error("wedged result = true, want false")
	}
	if !results["healthy"] {
		t.Error("healthy result = false, want true")
	}
	for _, st := range reg.Snapshot() {
		if st.State != StateStopped {
			t.Errorf("%q state = %s, want %s", st.Name, st.State, StateStopped)
		}
	}
}

func TestRegistrySnapshot(t *testing.T) {
	reg := newTestRegistry()
	defer reg.StopAll(time.Second)

	if !reg.Start("video", []string{"sleep", "10"}, 50*time.Millisecond) {
		t.Fatal("failed to start video")
	}
	reg.Start("audio", []string{"sh", "-c", "exit 4"}, 500*time.Millisecond)
	reg.Get("extra")

	snap := reg.Snapshot()
	wantNames := []string{"audio", "extra", "video"}
	if len(snap) != len(wantNames) {
		t.Fatalf("Snapshot() len = %d, want %d", len(snap), len(wantNames))
	}
	for i, name := range wantNames {
		if snap[i].Name != name {
			t.Errorf("Snapshot()[%d].Name = %q, want %q", i, snap[i].Name, name)
		}
	}

	audio, extra, video := snap[0], snap[1], snap[2]
	if audio.State != StateError || audio.Error == "" || audio.PID <= 0 {
		t.Errorf("audio = %+v, want error state with message and pid", audio)
	}
	if extra.State != StateStopped || extra.PID != 0 {
		t.Errorf("extra = %+v, want stopped with no pid", extra)
	}
	if video.State != StateRunning || video.PID <= 0 {
		t.Errorf("video = %+v, want running with pid", video)
	}
	if video.CommandLine() != "sleep 10" {
		t.Errorf("video command = %q", video.CommandLine())
	}
}

func TestRegistryNamesAreIndependent(t *testing.T) {
	reg := newTestRegistry()
	defer reg.StopAll(100 * time.Millisecond)

	if !reg.Start("slow", []string{"sh", "-c", "trap '' TERM; sleep 10"}, 200*time.Millisecond) {
		t.Fatal("failed to start slow entry")
	}

	stopping := make(chan struct{})
	go func() {
		defer close(stopping)
		reg.Stop("slow", 400*time.Millisecond)
	}()
	time.Sleep(50 * time.Millisecond)

	begin := time.Now()
	if !reg.Start("fast", []string{"sleep", "10"}, 20*time.Millisecond) {
		t.Fatal("failed to start fast entry")
	}
	if elapsed := time.Since(begin); elapsed > 200*time.Millisecond {
		t.Errorf("Start() on an unrelated name took %v while another entry was stopping", elapsed)
	}
	if got := reg.Get("slow").Poll(); got != StateStopping {
		t.Errorf("slow state = %s, want %s", got, StateStopping)
	}
	<-stopping
}

func TestRegistryStateChangeCallback(t *testing.T) {
	var (
		mu    sync.Mutex
		names = map[string]int{}
	)
	reg := newTestRegistry(WithStateChange(func(name string, _, _ State, _ error) {
		mu.Lock()
		names[name]++
		mu.Unlock()
	}))

	reg.Start("a", []string{"sleep", "10"}, 20*time.Millisecond)
	reg.Start("b", []string{"sleep", "10"}, 20*time.Millisecond)
	reg.StopAll(time.Second)

	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"a", "b"} {
		if names[name] != 4 {
			t.Errorf("%q transitions = %d, want 4", name, names[name])
		}
	}
}
