// Package events provides the in-process event bus feeding the websocket
// hub and the audit trail.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated     EventType = "SIGNAL_GENERATED"
	EventClusterRunStarted   EventType = "CLUSTER_RUN_STARTED"
	EventClusterRunCompleted EventType = "CLUSTER_RUN_COMPLETED"
	EventEngineError         EventType = "ENGINE_ERROR"
	EventServerStarted       EventType = "SERVER_STARTED"
	EventServerStopping      EventType = "SERVER_STOPPING"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignalGenerated publishes a signal generated event
func (eb *EventBus) PublishSignalGenerated(id, symbol, direction string, confidence, weightedScore float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"id":             id,
			"symbol":         symbol,
			"direction":      direction,
			"confidence":     confidence,
			"weighted_score": weightedScore,
		},
	})
}

// PublishClusterRunStarted publishes a cluster run started event
func (eb *EventBus) PublishClusterRunStarted(runID, symbol string, k int) {
	eb.Publish(Event{
		Type: EventClusterRunStarted,
		Data: map[string]interface{}{
			"run_id": runID,
			"symbol": symbol,
			"k":      k,
		},
	})
}

// PublishClusterRunCompleted publishes a cluster run completed event
func (eb *EventBus) PublishClusterRunCompleted(runID, symbol string, iterations int, converged bool) {
	eb.Publish(Event{
		Type: EventClusterRunCompleted,
		Data: map[string]interface{}{
			"run_id":     runID,
			"symbol":     symbol,
			"iterations": iterations,
			"converged":  converged,
		},
	})
}

// PublishEngineError publishes an engine error event
func (eb *EventBus) PublishEngineError(operation, message string) {
	eb.Publish(Event{
		Type: EventEngineError,
		Data: map[string]interface{}{
			"operation": operation,
			"message":   message,
		},
	})
}
