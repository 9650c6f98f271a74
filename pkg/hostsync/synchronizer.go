package hostsync

import (
	"context"
	"sync"

	"github.com/openfroyo/bootcoord/pkg/boot"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// Coordinator is the part of boot.Coordinator the synchronizer drives.
type Coordinator interface {
	Initialize(ctx context.Context) <-chan struct{}
	Deinitialize(ctx context.Context)
	IsInitialized() bool
	Phase() boot.Phase
	WaitInitialized(ctx context.Context) error
}

// Preferences supplies the editor init preference.
type Preferences interface {
	EditorInit(ctx context.Context) bool
}

// PreferenceFunc adapts a function to Preferences.
type PreferenceFunc func(ctx context.Context) bool

// EditorInit implements Preferences.
func (f PreferenceFunc) EditorInit(ctx context.Context) bool { return f(ctx) }

// DefaultQueueSize is the number of events Post can buffer.
const DefaultQueueSize = 64

// Options configures a Synchronizer.
type Options struct {
	QueueSize int
	Logger    *telemetry.Logger
	Metrics   *telemetry.Metrics
	Events    *telemetry.EventPublisher
}

// Synchronizer maps host events to coordinator calls.
type Synchronizer struct {
	coord Coordinator
	host  Host
	prefs Preferences

	// mu serializes Handle and guards subs.
	mu   sync.Mutex
	subs *SubscriptionSet

	queue chan request

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	events  *telemetry.EventPublisher
}

type request struct {
	ev    Event
	reply chan Action
}

// New creates a synchronizer. Run must be started before Dispatch or Post.
func New(coord Coordinator, host Host, prefs Preferences, opts Options) *Synchronizer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.NopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NopMetrics()
	}
	if opts.Events == nil {
		opts.Events = telemetry.NopEventPublisher()
	}

	return &Synchronizer{
		coord:   coord,
		host:    host,
		prefs:   prefs,
		subs:    NewSubscriptionSet(),
		queue:   make(chan request, opts.QueueSize),
		logger:  opts.Logger.NewComponentLogger("hostsync"),
		metrics: opts.Metrics,
		events:  opts.Events,
	}
}

// Run handles queued events one at a time until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.logger.Debug("Synchronizer started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Synchronizer stopped")
			return ctx.Err()
		case req := <-s.queue:
			action := s.Handle(ctx, req.ev)
			if req.reply != nil {
				req.reply <- action
			}
		}
	}
}

// Dispatch queues ev and waits for the action taken.
func (s *Synchronizer) Dispatch(ctx context.Context, ev Event) (Action, error) {
	reply := make(chan Action, 1)
	select {
	case s.queue <- request{ev: ev, reply: reply}:
	case <-ctx.Done():
		return ActionNone, ctx.Err()
	}

	select {
	case action := <-reply:
		return action, nil
	case <-ctx.Done():
		return ActionNone, ctx.Err()
	}
}

// Post queues ev without waiting. It returns false if the queue is full.
func (s *Synchronizer) Post(ev Event) bool {
	select {
	case s.queue <- request{ev: ev}:
		return true
	default:
		s.logger.WithEvent(string(ev)).Warn("Event queue full, dropping event")
		return false
	}
}

// Armed returns the events with an armed listener.
func (s *Synchronizer) Armed() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs.Armed()
}

// Handle applies the policy for ev on the caller's goroutine and returns the
// action taken. Use it directly only when Run is not running.
func (s *Synchronizer) Handle(ctx context.Context, ev Event) Action {
	s.mu.Lock()
	action := s.handle(ctx, ev)
	s.mu.Unlock()

	s.metrics.RecordHostEvent(string(ev), string(action))
	_ = s.events.PublishHostEvent(string(ev), string(action))
	s.logger.WithEvent(string(ev)).WithField("action", string(action)).Debug("Host event handled")
	return action
}

func (s *Synchronizer) handle(ctx context.Context, ev Event) Action {
	switch ev {
	case ProcessStart:
		if !s.host.Interactive() {
			return s.initialize(ctx)
		}
		for _, e := range []Event{ExitingEditMode, EnteredEditMode, EnteredRunMode, ExitingRunMode, DocumentSaving} {
			s.subs.Add(e, false)
		}
		if s.host.InRunMode() {
			return ActionNone
		}
		if s.prefs.EditorInit(ctx) && !s.host.AboutToEnterRunMode() {
			return s.doInit(ctx)
		}
		return ActionNone

	case ExitingEditMode:
		if s.subs.Fire(ev) && s.coord.IsInitialized() {
			return s.doDeinit(ctx)
		}
		return ActionNone

	case EnteredEditMode:
		if s.subs.Fire(ev) {
			return s.checkInit(ctx)
		}
		return ActionNone

	case EnteredRunMode:
		if s.subs.Fire(ev) {
			return s.initialize(ctx)
		}
		return ActionNone

	case ExitingRunMode:
		if s.subs.Fire(ev) {
			return s.shutdown(ctx)
		}
		return ActionNone

	case DocumentSaving:
		if s.subs.Fire(ev) && s.coord.IsInitialized() {
			action := s.doDeinit(ctx)
			s.subs.Add(DocumentSaved, true)
			return action
		}
		return ActionNone

	case DocumentSaved:
		if s.subs.Fire(ev) {
			return s.checkInit(ctx)
		}
		return ActionNone

	case DocumentClosing:
		if s.subs.Has(ev) && !s.host.InRunMode() && s.coord.IsInitialized() {
			action := s.doDeinit(ctx)
			s.subs.Add(ActiveDocumentChanged, true)
			return action
		}
		return ActionNone

	case ActiveDocumentChanged:
		// The listener stays armed until it fires outside run mode.
		if !s.host.InRunMode() && s.subs.Fire(ev) {
			return s.checkInit(ctx)
		}
		return ActionNone

	case Quitting:
		return s.shutdown(ctx)

	case PreferenceToggled:
		if !s.host.Interactive() {
			return ActionNone
		}
		return s.checkInit(ctx)

	default:
		s.logger.WithEvent(string(ev)).Warn("Unknown host event")
		return ActionNone
	}
}

// checkInit applies Decide to the current state.
func (s *Synchronizer) checkInit(ctx context.Context) Action {
	switch Decide(s.prefs.EditorInit(ctx), s.coord.Phase(), s.host.InRunMode()) {
	case ActionInitialize:
		return s.doInit(ctx)
	case ActionDeinitialize:
		return s.doDeinit(ctx)
	default:
		return ActionNone
	}
}

// doInit starts the interactive bootstrap and arms the document close listener.
func (s *Synchronizer) doInit(ctx context.Context) Action {
	if s.coord.Phase() != boot.PhaseUninitialized {
		return ActionNone
	}
	s.subs.Add(DocumentClosing, false)
	s.coord.Initialize(ctx)
	return ActionInitialize
}

// doDeinit tears down and disarms the document close listener.
func (s *Synchronizer) doDeinit(ctx context.Context) Action {
	s.coord.Deinitialize(ctx)
	s.subs.Remove(DocumentClosing)
	return ActionDeinitialize
}

func (s *Synchronizer) initialize(ctx context.Context) Action {
	if s.coord.Phase() != boot.PhaseUninitialized {
		return ActionNone
	}
	s.coord.Initialize(ctx)
	return ActionInitialize
}

// shutdown waits out an in-flight bootstrap, then tears it down.
func (s *Synchronizer) shutdown(ctx context.Context) Action {
	if s.coord.Phase() == boot.PhaseInitializing {
		if err := s.coord.WaitInitialized(ctx); err != nil {
			s.logger.WithError(err).Warn("Gave up waiting for bootstrap before shutdown")
			return ActionNone
		}
	}
	if !s.coord.IsInitialized() {
		return ActionNone
	}
	return s.doDeinit(ctx)
}
