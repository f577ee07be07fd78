// internal/events/event_bus.go
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"register-terminal/internal/model"
)

// EventLogEntry is published for every front-end result
const EventLogEntry = "log_entry"

// DefaultBufferSize is the capacity of the bus queue
const DefaultBufferSize = 1000

const subscriberBufferSize = 100

// Event represents a system event
type Event struct {
	Type      string        `json:"type"`
	Result    *model.Result `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
}

// EventBus manages event distribution. Slow subscribers miss events rather
// than blocking publishers.
type EventBus struct {
	subscribers map[string][]chan Event
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger
	done        chan struct{}
	stopOnce    sync.Once
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		events:      make(chan Event, DefaultBufferSize),
		logger:      logger.With(zap.String("component", "event-bus")),
		done:        make(chan struct{}),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Stop ends distribution and closes all subscriber channels
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.done)

		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		for eventType, subs := range eb.subscribers {
			for _, sub := range subs {
				close(sub)
			}
			delete(eb.subscribers, eventType)
		}
	})
}

// Publish publishes an event
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.Type),
		)
	}
}

// PublishResult publishes a log entry event for result
func (eb *EventBus) PublishResult(result *model.Result) {
	eb.Publish(Event{Type: EventLogEntry, Result: result})
}

// Subscribe subscribes to events of a specific type. The returned cancel
// function unsubscribes and closes the channel.
func (eb *EventBus) Subscribe(eventType string) (<-chan Event, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, subscriberBufferSize)
	select {
	case <-eb.done:
		close(subscriber)
		return subscriber, func() {}
	default:
	}
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)

	var once sync.Once
	cancel := func() {
		once.Do(func() { eb.unsubscribe(eventType, subscriber) })
	}
	return subscriber, cancel
}

func (eb *EventBus) unsubscribe(eventType string, subscriber chan Event) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subs := eb.subscribers[eventType]
	for i, sub := range subs {
		if sub == subscriber {
			eb.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// SubscriberCount returns the number of subscribers for eventType
func (eb *EventBus) SubscriberCount(eventType string) int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers[eventType])
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, subscriber := range eb.subscribers[event.Type] {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
