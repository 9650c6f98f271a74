package boot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

func interactive() ExecContext { return ContextInteractive }

func newTestCoordinator(res *mockResolver, scene *mockScene, ec ExecContext) *Coordinator {
	return NewCoordinator(res, scene, Options{
		Context: func() ExecContext { return ec },
	})
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initialization")
	}
}

func TestCoordinatorInteractiveInitializeBlocks(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	c := newTestCoordinator(res, scene, ContextInteractive)

	done := c.Initialize(ctx)
	if !c.IsInitialized() {
		t.Fatalf("Phase() = %s after interactive Initialize, want initialized", c.Phase())
	}
	select {
	case <-done:
	default:
		t.Error("done channel not closed after interactive Initialize")
	}

	// Editor container + Gizmos, runtime container + Audio + Input.
	if got := scene.Count(); got != 5 {
		t.Errorf("scene Count() = %d, want 5", got)
	}
	states := c.Snapshot()
	if len(states) != 2 || states[0].Key != InteractiveKey || states[1].Key != ProductionKey {
		t.Fatalf("Snapshot() = %+v", states)
	}
	if states[1].Instances != 2 {
		t.Errorf("runtime instances = %d, want 2", states[1].Instances)
	}
}

func TestCoordinatorProductionInitializeIsAsync(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	res.gate = make(chan struct{})
	c := newTestCoordinator(res, scene, ContextProduction)

	done := c.Initialize(ctx)
	if got := c.Phase(); got != PhaseInitializing {
		t.Fatalf("Phase() = %s, want initializing", got)
	}
	select {
	case <-done:
		t.Fatal("done closed before resolution finished")
	default:
	}

	close(res.gate)
	waitDone(t, done)
	if !c.IsInitialized() {
		t.Fatalf("Phase() = %s, want initialized", c.Phase())
	}

	// Production resolves only the runtime key.
	if log := res.Log(); len(log) != 1 || log[0] != "resolve:"+ProductionKey {
		t.Errorf("resolver log = %v", log)
	}
}

func TestCoordinatorInitializeIdempotent(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	c := newTestCoordinator(res, scene, ContextInteractive)

	c.Initialize(ctx)
	done := c.Initialize(ctx)
	select {
	case <-done:
	default:
		t.Error("dropped Initialize returned an open channel")
	}

	if got := count(res.Log(), "resolve:"+ProductionKey); got != 1 {
		t.Errorf("resolved %s %d times, want 1", ProductionKey, got)
	}
	if got := scene.Count(); got != 5 {
		t.Errorf("scene Count() = %d, want 5", got)
	}
}

func TestCoordinatorDeinitializeIdempotent(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	c := newTestCoordinator(res, scene, ContextInteractive)

	// Before any Initialize.
	c.Deinitialize(ctx)
	if got := c.Phase(); got != PhaseUninitialized {
		t.Fatalf("Phase() = %s", got)
	}

	c.Initialize(ctx)
	c.Deinitialize(ctx)
	c.Deinitialize(ctx)

	if got := count(res.Log(), "release:"+ProductionKey); got != 1 {
		t.Errorf("released %s %d times, want 1", ProductionKey, got)
	}
}

func TestCoordinatorMutualExclusion(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	res.gate = make(chan struct{})
	c := newTestCoordinator(res, scene, ContextProduction)

	first := c.Initialize(ctx)

	// Both requests arrive while the flow is in flight and are dropped.
	second := c.Initialize(ctx)
	c.Deinitialize(ctx)
	if got := c.Phase(); got != PhaseInitializing {
		t.Fatalf("Phase() = %s, want initializing", got)
	}
	if first != second {
		t.Error("Initialize during an in-flight flow should return that flow's channel")
	}

	close(res.gate)
	waitDone(t, first)

	if !c.IsInitialized() {
		t.Errorf("Phase() = %s, want initialized", c.Phase())
	}
	if got := count(res.Log(), "resolve:"+ProductionKey); got != 1 {
		t.Errorf("resolved %d times, want 1", got)
	}
	if got := count(res.Log(), "release:"+ProductionKey); got != 0 {
		t.Errorf("released %d times during init, want 0", got)
	}
}

func TestCoordinatorConcurrentInitialize(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	c := newTestCoordinator(res, scene, ContextProduction)

	var wg sync.WaitGroup
	dones := make([]<-chan struct{}, 16)
	for i := range dones {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dones[i] = c.Initialize(ctx)
		}(i)
	}
	wg.Wait()
	for _, d := range dones {
		waitDone(t, d)
	}
	if err := c.WaitInitialized(ctx); err != nil {
		t.Fatalf("WaitInitialized() error = %v", err)
	}

	if got := count(res.Log(), "resolve:"+ProductionKey); got != 1 {
		t.Errorf("resolved %d times, want 1", got)
	}
	if got := scene.Count(); got != 3 {
		t.Errorf("scene Count() = %d, want 3", got)
	}
}

func TestCoordinatorSymmetry(t *testing.T) {
	ctx := context.Background()
	for _, ec := range []ExecContext{ContextInteractive, ContextProduction} {
		t.Run(string(ec), func(t *testing.T) {
			res, scene := newMockResolver(), newMockScene()
			c := newTestCoordinator(res, scene, ec)

			for i := 0; i < 3; i++ {
				waitDone(t, c.Initialize(ctx))
				c.Deinitialize(ctx)

				if scene.Count() != 0 {
					t.Fatalf("cycle %d: scene Count() = %d, want 0", i, scene.Count())
				}
				if res.Refs() != 0 {
					t.Fatalf("cycle %d: live refs = %d, want 0", i, res.Refs())
				}
				if len(c.Snapshot()) != 0 {
					t.Fatalf("cycle %d: Snapshot() not empty", i)
				}
				if c.Phase() != PhaseUninitialized {
					t.Fatalf("cycle %d: Phase() = %s", i, c.Phase())
				}
			}
		})
	}
}

func TestCoordinatorOrdering(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	c := newTestCoordinator(res, scene, ContextInteractive)

	c.Initialize(ctx)
	c.Deinitialize(ctx)

	wantRes := []string{
		"resolve:" + InteractiveKey,
		"resolve:" + ProductionKey,
		"release:" + ProductionKey,
		"release:" + InteractiveKey,
	}
	assertLog(t, "resolver", res.Log(), wantRes)

	wantScene := []string{
		"create:" + InteractiveKey + "_Container",
		"instantiate:Gizmos",
		"create:" + ProductionKey + "_Container",
		"instantiate:Audio",
		"instantiate:Input",
		"destroy:Audio",
		"destroy:Input",
		"destroy:" + ProductionKey + "_Container",
		"destroy:Gizmos",
		"destroy:" + InteractiveKey + "_Container",
	}
	assertLog(t, "scene", scene.Log(), wantScene)
}

func assertLog(t *testing.T, name string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s log = %v, want %v", name, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s log[%d] = %q, want %q\nfull: %v", name, i, got[i], want[i], got)
		}
	}
}

func TestCoordinatorResolutionFailurePartialSuccess(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	delete(res.templates, InteractiveKey)
	res.panicOn["Broken"] = true

	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewEventPublisher() error = %v", err)
	}
	var failed []string
	events.Subscribe(func(e telemetry.Event) {
		failed = append(failed, e.Key)
	}, telemetry.FilterByType(telemetry.EventTypeResolutionFailed))

	c := NewCoordinator(res, scene, Options{
		Context: interactive,
		Keys: func(ExecContext) []string {
			return []string{InteractiveKey, "Broken", ProductionKey}
		},
		Events: events,
	})

	c.Initialize(ctx)

	if !c.IsInitialized() {
		t.Fatalf("Phase() = %s, want initialized", c.Phase())
	}
	states := c.Snapshot()
	if len(states) != 1 || states[0].Key != ProductionKey {
		t.Errorf("Snapshot() = %+v, want only %s", states, ProductionKey)
	}
	if len(failed) != 2 || failed[0] != InteractiveKey || failed[1] != "Broken" {
		t.Errorf("resolution failures = %v", failed)
	}

	c.Deinitialize(ctx)
	if res.Refs() != 0 || scene.Count() != 0 {
		t.Errorf("after Deinitialize: refs = %d, nodes = %d", res.Refs(), scene.Count())
	}
}

func TestCoordinatorNoKeys(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(newMockResolver(), newMockScene(), Options{
		Context: interactive,
		Keys:    func(ExecContext) []string { return nil },
	})

	c.Initialize(ctx)
	if !c.IsInitialized() {
		t.Errorf("Phase() = %s, want initialized", c.Phase())
	}
	c.Deinitialize(ctx)
	if c.Phase() != PhaseUninitialized {
		t.Errorf("Phase() = %s, want uninitialized", c.Phase())
	}
}

func TestCoordinatorPhaseObservers(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(newMockResolver(), newMockScene(), ContextInteractive)

	var changes []PhaseChange
	c.OnPhaseChange(func(pc PhaseChange) { changes = append(changes, pc) })
	c.OnPhaseChange(func(PhaseChange) { panic("observer") })

	c.Initialize(ctx)
	c.Deinitialize(ctx)

	want := []Phase{PhaseInitializing, PhaseInitialized, PhaseDeInitializing, PhaseUninitialized}
	if len(changes) != len(want) {
		t.Fatalf("changes = %+v", changes)
	}
	from := PhaseUninitialized
	for i, to := range want {
		if changes[i].From != from || changes[i].To != to {
			t.Errorf("change %d = %s -> %s, want %s -> %s", i, changes[i].From, changes[i].To, from, to)
		}
		if changes[i].Context != ContextInteractive {
			t.Errorf("change %d context = %s", i, changes[i].Context)
		}
		from = to
	}
}

func TestCoordinatorWaitInitialized(t *testing.T) {
	ctx := context.Background()
	res := newMockResolver()
	res.gate = make(chan struct{})
	c := newTestCoordinator(res, newMockScene(), ContextProduction)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := c.WaitInitialized(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitInitialized() error = %v, want deadline exceeded", err)
	}

	c.Initialize(ctx)
	errc := make(chan error, 1)
	go func() { errc <- c.WaitInitialized(ctx) }()

	close(res.gate)
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("WaitInitialized() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitInitialized did not return")
	}
}

func TestCoordinatorInitializeOutlivesRequestContext(t *testing.T) {
	res := newMockResolver()
	res.gate = make(chan struct{})
	c := newTestCoordinator(res, newMockScene(), ContextProduction)

	ctx, cancel := context.WithCancel(context.Background())
	done := c.Initialize(ctx)
	cancel()
	close(res.gate)
	waitDone(t, done)

	if len(c.Snapshot()) != 1 {
		t.Errorf("Snapshot() = %+v, want the runtime resource", c.Snapshot())
	}
}

func TestCoordinatorExecContextPerFlow(t *testing.T) {
	ctx := context.Background()
	res, scene := newMockResolver(), newMockScene()
	ec := ContextInteractive
	c := NewCoordinator(res, scene, Options{Context: func() ExecContext { return ec }})

	c.Initialize(ctx)
	c.Deinitialize(ctx)

	ec = ContextProduction
	waitDone(t, c.Initialize(ctx))
	states := c.Snapshot()
	if len(states) != 1 || states[0].Key != ProductionKey {
		t.Errorf("production Snapshot() = %+v", states)
	}
}

func TestCoordinatorMetrics(t *testing.T) {
	ctx := context.Background()
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	c := NewCoordinator(newMockResolver(), newMockScene(), Options{Context: interactive, Metrics: metrics})

	c.Initialize(ctx)
	c.Initialize(ctx)

	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"test_boot_phase", "test_boot_initializations_total", "test_boot_dropped_requests_total", "test_boot_live_instances"} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}
