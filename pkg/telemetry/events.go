package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types.
const (
	EventTypePhaseChanged     = "boot.phase_changed"
	EventTypeResolutionFailed = "boot.resolution_failed"
	EventTypeHostEvent        = "boot.host_event"
)

// Event severities, in ascending order.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

var levelRank = map[string]int{
	EventLevelInfo:    0,
	EventLevelWarning: 1,
	EventLevelError:   2,
}

var (
	// ErrPublisherStopped is returned by Publish after Shutdown.
	ErrPublisherStopped = errors.New("event publisher stopped")
	// ErrBufferFull is returned when the async queue cannot take another event.
	ErrBufferFull = errors.New("event buffer full")
)

// Event is one record in the lifecycle stream: a phase change, a failed
// resolution, or a host event with the action the synchronizer took.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Key       string                 `json:"key,omitempty"`
	Message   string                 `json:"message"`
	Level     string                 `json:"level"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventSubscriber receives delivered events.
type EventSubscriber func(event Event)

// EventFilter reports whether an event should be delivered.
type EventFilter func(event Event) bool

type subscription struct {
	fn     EventSubscriber
	filter EventFilter
}

func (s subscription) accepts(e Event) bool {
	return s.filter == nil || s.filter(e)
}

// EventPublisher fans lifecycle events out to subscribers. In synchronous mode
// delivery happens on the publishing goroutine, so subscribers observe events
// in publish order. Async mode hands events to a single worker through a
// bounded queue.
type EventPublisher struct {
	enabled bool
	queue   chan Event
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	mu      sync.RWMutex
	subs    []subscription
	filters []EventFilter
}

// NewEventPublisher creates a publisher. A disabled config yields
// NopEventPublisher.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return NopEventPublisher(), nil
	}

	ep := &EventPublisher{enabled: true, stop: make(chan struct{})}
	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.queue = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.worker()
	}
	return ep, nil
}

// NopEventPublisher drops every event.
func NopEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

// Subscribe registers fn. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(fn EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	ep.subs = append(ep.subs, subscription{fn: fn, filter: filter})
	ep.mu.Unlock()
}

// AddFilter registers a filter applied before any subscriber sees the event.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	ep.filters = append(ep.filters, filter)
	ep.mu.Unlock()
}

// Publish stamps missing ID, timestamp, and level, then delivers or enqueues
// the event.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.enabled {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}
	if !ep.admit(event) {
		return nil
	}

	if ep.queue == nil {
		ep.deliver(event)
		return nil
	}
	select {
	case <-ep.stop:
		return ErrPublisherStopped
	default:
	}
	select {
	case ep.queue <- event:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrBufferFull, event.Type)
	}
}

// PublishPhaseChanged records a coordinator phase transition.
func (ep *EventPublisher) PublishPhaseChanged(from, to, execContext string) error {
	return ep.Publish(Event{
		Type:    EventTypePhaseChanged,
		Source:  "coordinator",
		Message: fmt.Sprintf("phase %s -> %s", from, to),
		Data:    map[string]interface{}{"from": from, "to": to, "context": execContext},
	})
}

// PublishResolutionFailed records a boot key that could not be resolved.
func (ep *EventPublisher) PublishResolutionFailed(key, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeResolutionFailed,
		Source:  "coordinator",
		Key:     key,
		Message: fmt.Sprintf("failed to resolve %s: %s", key, reason),
		Level:   EventLevelError,
		Data:    map[string]interface{}{"reason": reason},
	})
}

// PublishHostEvent records a host event and the action taken for it.
func (ep *EventPublisher) PublishHostEvent(event, action string) error {
	return ep.Publish(Event{
		Type:    EventTypeHostEvent,
		Source:  "synchronizer",
		Message: fmt.Sprintf("%s -> %s", event, action),
		Data:    map[string]interface{}{"event": event, "action": action},
	})
}

func (ep *EventPublisher) admit(e Event) bool {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	for _, f := range ep.filters {
		if !f(e) {
			return false
		}
	}
	return true
}

func (ep *EventPublisher) deliver(e Event) {
	ep.mu.RLock()
	subs := append([]subscription(nil), ep.subs...)
	ep.mu.RUnlock()

	for _, s := range subs {
		if s.accepts(e) {
			s.fn(e)
		}
	}
}

func (ep *EventPublisher) worker() {
	defer ep.wg.Done()
	for {
		select {
		case e := <-ep.queue:
			ep.deliver(e)
		case <-ep.stop:
			for {
				select {
				case e := <-ep.queue:
					ep.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.enabled {
		return nil
	}
	ep.once.Do(func() { close(ep.stop) })

	drained := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown: %w", ctx.Err())
	}
}

// FilterByLevel accepts events at minLevel or more severe.
func FilterByLevel(minLevel string) EventFilter {
	floor := levelRank[minLevel]
	return func(e Event) bool { return levelRank[e.Level] >= floor }
}

// FilterByType accepts events whose type is one of types.
func FilterByType(types ...string) EventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := set[e.Type]
		return ok
	}
}

// FilterByKey accepts events about one boot key.
func FilterByKey(key string) EventFilter {
	return func(e Event) bool { return e.Key == key }
}
