package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chinmay4o/superlinks/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Upload coordinator events
	EventTransferQueued    EventType = "transfer_queued"    // Task accepted, waiting for a slot
	EventTransferStarted   EventType = "transfer_started"   // Slot acquired, task is active
	EventTransferProgress  EventType = "transfer_progress"  // Progress update
	EventTransferCompleted EventType = "transfer_completed" // Successfully completed
	EventTransferFailed    EventType = "transfer_failed"    // Failed with error
	EventTransferCancelled EventType = "transfer_cancelled" // Cancelled by user

	// Optimistic mutation events
	EventMutationApplied    EventType = "mutation_applied"     // Speculative change visible locally
	EventMutationCommitted  EventType = "mutation_committed"   // Server accepted the change
	EventMutationRolledBack EventType = "mutation_rolled_back" // Change discarded or refetched

	// EventNotification carries a user-visible message (failure toast, etc.)
	EventNotification EventType = "notification"

	// EventCacheInvalidated is published when keys are dropped from the response cache
	EventCacheInvalidated EventType = "cache_invalidated"
)

// Severity of a user-visible notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// TransferEvent is one observation of a transfer task.
// Events for a given task are published in order, with BytesSent non-decreasing.
type TransferEvent struct {
	BaseEvent
	TaskID        string        // Unique task ID
	Name          string        // Original filename
	Status        string        // queued, active, completed, failed, cancelled
	BytesSent     int64         // Bytes handed to the transport so far
	ByteSize      int64         // Total file size in bytes
	Percentage    float64       // 0 to 100, clamped
	Speed         float64       // bytes/sec, average since start
	RemainingTime time.Duration // math.MaxInt64 when unknown
	Error         error         // Error if failed or cancelled
}

// MutationEvent reports a state transition of an optimistic mutation.
type MutationEvent struct {
	BaseEvent
	MutationID string
	Target     string // Entity or collection reference, e.g. "blocks/blk-987"
	Status     string // speculative-applied, committed, rolled-back
	Error      error
}

// NotificationEvent is a message meant for the user, not the log.
type NotificationEvent struct {
	BaseEvent
	Severity Severity
	Title    string
	Message  string
	Error    error
}

// CacheInvalidatedEvent lists the keys removed by a delete or pattern delete.
type CacheInvalidatedEvent struct {
	BaseEvent
	Pattern string
	Keys    []string
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to one or more event types.
// The returned channel is closed when the bus is closed.
func (eb *EventBus) Subscribe(eventTypes ...EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	for _, eventType := range eventTypes {
		eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	}
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events that do not fit in a subscriber's buffer are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	// A channel subscribed to several types appears in several lists.
	closed := make(map[chan Event]bool)
	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			if !closed[ch] {
				close(ch)
				closed[ch] = true
			}
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishNotification is a convenience method for user-visible messages.
func (eb *EventBus) PublishNotification(severity Severity, title, message string, err error) {
	eb.Publish(&NotificationEvent{
		BaseEvent: BaseEvent{
			EventType: EventNotification,
			Time:      time.Now(),
		},
		Severity: severity,
		Title:    title,
		Message:  message,
		Error:    err,
	})
}

// Unsubscribe removes a subscription channel from every event type and
// closes it. This prevents memory leaks from abandoned subscriptions.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	var found chan Event
	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				found = subCh
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			found = subCh
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}

	if found != nil {
		close(found)
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
