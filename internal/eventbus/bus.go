package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType classifies events published by the controller and its
// collaborators.
type EventType string

const (
	EventTypeSensor       EventType = "sensor"
	EventTypeSensorStatus EventType = "sensor_status"
	EventTypeWindowState  EventType = "window_state"
	EventTypeSetpoint     EventType = "setpoint"
	EventTypeMode         EventType = "mode"
	EventTypeIntent       EventType = "intent"
	EventTypeDeviceResult EventType = "device_result"
)

// Default configuration
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

// Event is a single state-change notification.
type Event struct {
	Type EventType
	Data map[string]interface{}
}

// Handler is a function that handles events.
type Handler func(Event)

type task struct {
	event   Event
	handler Handler
}

// Bus routes events to subscribers through a bounded worker pool.
// Publishing never blocks; events are dropped when the queue is full
// or the bus is closing.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	queue chan task
	wg    sync.WaitGroup

	// Closing this channel signals publishers to stop. A channel in a
	// select is race-free, unlike a mutex-guarded bool.
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates an event bus with default settings.
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates an event bus with a custom worker count and
// queue size.
func NewWithConfig(workerCount, queueSize int) *Bus {
	b := &Bus{
		handlers: make(map[EventType][]Handler),
		queue:    make(chan task, queueSize),
		closing:  make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for t := range b.queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(t.event.Type)).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			t.handler(t.event)
		}()
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish sends an event to all subscribed handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		select {
		case <-b.closing:
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closing, dropping event")
			return
		case b.queue <- task{event: event, handler: handler}:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Close shuts down the worker pool gracefully. It first signals
// publishers to stop, then drains the queue and waits for workers
// until the context expires.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)
	})

	close(b.queue)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}
