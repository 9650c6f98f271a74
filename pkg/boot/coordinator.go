package boot

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfroyo/bootcoord/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Options configures a Coordinator.
type Options struct {
	// Context reports the current execution context. Defaults to production.
	Context func() ExecContext

	// Keys returns the keys to resolve for a context, in declaration order.
	// Defaults to DefaultKeys.
	Keys func(ExecContext) []string

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Events  *telemetry.EventPublisher
}

// PhaseChange describes a single coordinator transition.
type PhaseChange struct {
	From    Phase
	To      Phase
	Context ExecContext
}

// ResourceState is a read-only view of one owned resource.
type ResourceState struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Instances int    `json:"instances"`
}

type entry struct {
	key    string
	handle *Handle
}

// Coordinator is the bootstrap lifecycle state machine. Construct one per process
// (or per test) and hand it to whatever drives host events.
type Coordinator struct {
	resolver Resolver
	scene    SceneGraph

	contextFn func() ExecContext
	keysFn    func(ExecContext) []string

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	events  *telemetry.EventPublisher

	// mu protects everything below.
	mu        sync.Mutex
	phase     Phase
	mode      ExecContext
	resolved  []entry
	inflight  chan struct{}
	changed   chan struct{}
	observers []func(PhaseChange)
}

// NewCoordinator creates an Uninitialized coordinator.
func NewCoordinator(resolver Resolver, scene SceneGraph, opts Options) *Coordinator {
	c := &Coordinator{
		resolver:  resolver,
		scene:     scene,
		contextFn: opts.Context,
		keysFn:    opts.Keys,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		events:    opts.Events,
		phase:     PhaseUninitialized,
		changed:   make(chan struct{}),
	}

	if c.contextFn == nil {
		c.contextFn = func() ExecContext { return ContextProduction }
	}
	if c.keysFn == nil {
		c.keysFn = DefaultKeys
	}
	if c.logger == nil {
		c.logger = telemetry.NopLogger()
	}
	c.logger = c.logger.NewComponentLogger("coordinator")
	if c.metrics == nil {
		c.metrics = telemetry.NopMetrics()
	}
	if c.tracer == nil {
		c.tracer = telemetry.NopTracer()
	}
	if c.events == nil {
		c.events = telemetry.NopEventPublisher()
	}

	return c
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// IsInitialized reports whether the coordinator is in PhaseInitialized.
func (c *Coordinator) IsInitialized() bool {
	return c.Phase() == PhaseInitialized
}

// OnPhaseChange registers fn to be called after every transition.
// Observers run synchronously on the goroutine that made the transition.
func (c *Coordinator) OnPhaseChange(fn func(PhaseChange)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns the owned resources in declaration order.
func (c *Coordinator) Snapshot() []ResourceState {
	c.mu.Lock()
	entries := append([]entry(nil), c.resolved...)
	c.mu.Unlock()

	states := make([]ResourceState, 0, len(entries))
	for _, e := range entries {
		r := e.handle.Resource()
		states = append(states, ResourceState{
			Key:       e.key,
			Name:      r.Name,
			Active:    r.Active(),
			Instances: r.InstanceCount(),
		})
	}
	return states
}

// WaitInitialized blocks until the coordinator is Initialized or ctx is done.
func (c *Coordinator) WaitInitialized(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.phase == PhaseInitialized {
			c.mu.Unlock()
			return nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Initialize starts bootstrapping unless the coordinator is already past
// Uninitialized, in which case the request is dropped.
//
// In the interactive context every key is resolved and activated before Initialize
// returns. In the production context the flow runs on its own goroutine and
// Initialize returns at once. Either way the returned channel is closed when the
// flow has reached Initialized. A dropped request during an in-flight flow gets
// that flow's channel; any other dropped request gets a closed channel.
func (c *Coordinator) Initialize(ctx context.Context) <-chan struct{} {
	c.mu.Lock()
	if c.phase != PhaseUninitialized {
		done, phase := c.inflight, c.phase
		c.mu.Unlock()

		c.metrics.RecordDroppedRequest("initialize")
		c.logger.WithField("phase", string(phase)).Debug("Initialize dropped")
		if done != nil {
			return done
		}
		return closedChan()
	}

	mode := c.contextFn()
	keys := c.keysFn(mode)
	done := make(chan struct{})
	c.inflight = done
	c.mode = mode
	change := c.transitionLocked(PhaseInitializing)
	c.mu.Unlock()
	c.notify(change)

	// The flow outlives the request that started it.
	flowCtx := c.logger.WithContext(context.WithoutCancel(ctx))

	if mode == ContextInteractive {
		c.runInitialize(flowCtx, mode, keys, done)
		return done
	}
	go c.runInitialize(flowCtx, mode, keys, done)
	return done
}

func (c *Coordinator) runInitialize(ctx context.Context, mode ExecContext, keys []string, done chan struct{}) {
	defer close(done)

	op := telemetry.StartOperation(ctx, c.tracer, telemetry.SpanInitialize,
		telemetry.AttrMode.String(string(mode)),
		attribute.StringSlice("boot.keys", keys),
	)
	op.Logger.WithField("keys", keys).Info("Bootstrap started")

	entries := c.bootstrap(op.Ctx, mode, keys)

	c.mu.Lock()
	c.resolved = entries
	c.inflight = nil
	change := c.transitionLocked(PhaseInitialized)
	c.mu.Unlock()

	c.metrics.RecordInitialization(string(mode), op.Timer.Duration())
	c.metrics.SetLiveInstances(float64(c.liveInstances(entries)))
	op.Logger.WithField("resolved", len(entries)).Info("Bootstrap complete")
	op.End(nil)

	c.notify(change)
}

// bootstrap resolves and activates keys strictly in order. It is the single
// implementation behind both contexts: the interactive path runs it to completion
// on the caller's goroutine, the production path on a background goroutine.
func (c *Coordinator) bootstrap(ctx context.Context, mode ExecContext, keys []string) []entry {
	entries := make([]entry, 0, len(keys))

	for _, key := range keys {
		logger := c.logger.WithKey(key)

		resolveCtx, span := c.tracer.StartKeySpan(ctx, telemetry.SpanResolve, key)
		h, err := ResolveAsync(resolveCtx, c.resolver, key).Wait()
		if err == nil && h == nil {
			err = fmt.Errorf("%w: resolver returned no handle", ErrNotFound)
		}
		if err != nil {
			telemetry.EndSpan(span, NewResolutionError(key, err))

			logger.WithError(err).Error("Boot resource resolution failed, skipping")
			c.metrics.RecordResolutionFailure(key)
			_ = c.events.PublishResolutionFailed(key, err.Error())
			continue
		}
		telemetry.EndSpan(span, nil)

		activateCtx, span := c.tracer.StartKeySpan(ctx, telemetry.SpanActivate, key)
		timer := telemetry.NewTimer()
		_, err = h.Resource().ActivateAsync(activateCtx, c.scene).Wait()
		if err != nil {
			logger.WithError(err).Warn("Boot resource activated with errors")
		}
		telemetry.EndSpan(span, err)
		c.metrics.RecordActivation(key, string(mode), timer.Duration())

		entries = append(entries, entry{key: key, handle: h})
	}

	return entries
}

// Deinitialize deactivates every owned resource in reverse declaration order and
// releases its handle. Dropped unless the coordinator is Initialized, so it never
// races an in-flight Initialize.
func (c *Coordinator) Deinitialize(ctx context.Context) {
	c.mu.Lock()
	if c.phase != PhaseInitialized {
		phase := c.phase
		c.mu.Unlock()

		c.metrics.RecordDroppedRequest("deinitialize")
		c.logger.WithField("phase", string(phase)).Debug("Deinitialize dropped")
		return
	}
	entries := c.resolved
	change := c.transitionLocked(PhaseDeInitializing)
	c.mu.Unlock()
	c.notify(change)

	op := telemetry.StartOperation(c.logger.WithContext(ctx), c.tracer, telemetry.SpanDeinitialize)

	var failures int
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		logger := c.logger.WithKey(e.key)

		if err := protectErr(func() error { return e.handle.Resource().Deactivate(op.Ctx) }); err != nil {
			failures++
			logger.WithError(NewTeardownError(e.key, "deactivate", err)).Error("Deactivate failed")
		}
		if err := protectErr(func() error { return c.resolver.Release(op.Ctx, e.handle) }); err != nil {
			failures++
			logger.WithError(NewTeardownError(e.key, "release", err)).Error("Release failed")
		}
	}

	c.mu.Lock()
	c.resolved = nil
	change = c.transitionLocked(PhaseUninitialized)
	c.mu.Unlock()

	c.metrics.RecordDeinitialization(op.Timer.Duration())
	c.metrics.SetLiveInstances(0)
	op.Logger.WithField("released", len(entries)).WithField("failures", failures).Info("Teardown complete")
	op.End(nil)

	c.notify(change)
}

// transitionLocked moves to phase and wakes WaitInitialized callers.
// The caller must hold c.mu and pass the result to notify after unlocking.
func (c *Coordinator) transitionLocked(to Phase) PhaseChange {
	change := PhaseChange{From: c.phase, To: to, Context: c.mode}
	c.phase = to
	close(c.changed)
	c.changed = make(chan struct{})
	return change
}

func (c *Coordinator) notify(change PhaseChange) {
	c.mu.Lock()
	observers := make([]func(PhaseChange), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	c.metrics.SetPhase(float64(change.To.Ordinal()))
	_ = c.events.PublishPhaseChanged(string(change.From), string(change.To), string(change.Context))
	c.logger.WithFields(map[string]interface{}{
		"from":    string(change.From),
		"to":      string(change.To),
		"context": string(change.Context),
	}).Debug("Phase changed")

	for _, fn := range observers {
		if err := protectErr(func() error { fn(change); return nil }); err != nil {
			c.logger.WithError(err).Warn("Phase observer failed")
		}
	}
}

func (c *Coordinator) liveInstances(entries []entry) int {
	n := 0
	for _, e := range entries {
		n += e.handle.Resource().InstanceCount()
	}
	return n
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
