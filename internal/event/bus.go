// Package event carries work-item lifecycle events from the platform webhook
// to in-process subscribers.
package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apanagidis/callback/internal/tasks"
	"github.com/apanagidis/callback/pkg/logger"
)

// Type identifies a work-item lifecycle event.
type Type string

const (
	// TaskAccepted fires when an agent accepts a work item.
	TaskAccepted Type = "task.accepted"
	// TaskWrapup fires when a work item enters wrap-up.
	TaskWrapup Type = "task.wrapup"
	// TaskCompleted fires when a work item is completed.
	TaskCompleted Type = "task.completed"
)

// TaskEvent is one lifecycle transition of a work item.
type TaskEvent struct {
	Type           Type
	TaskSid        string
	QueueSid       string
	ReservationSid string
	ChannelName    string
	Attributes     tasks.Attributes
	Timestamp      time.Time
}

// Handler consumes task events. Handlers for different events may run
// concurrently and must not assume mutual exclusion.
type Handler func(event *TaskEvent)

// Bus is a minimal in-process publish/subscribe fan-out. Publish dispatches
// each handler on its own goroutine with panic recovery, so a slow or broken
// subscriber cannot stall the webhook that emitted the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Handler
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewBus creates an event bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subscribers: make(map[Type][]Handler),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish dispatches the event to every subscriber of its type.
func (b *Bus) Publish(event *TaskEvent) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is closed")
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers[event.Type]))
	copy(handlers, b.subscribers[event.Type])
	b.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Base().Debug("no subscribers for event type", zap.String("type", string(event.Type)))
		return nil
	}

	for _, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Base().Error("event handler panic",
						zap.String("type", string(event.Type)),
						zap.String("task_sid", event.TaskSid),
						zap.Any("panic", r))
				}
			}()
			h(event)
		}(handler)
	}
	return nil
}

// Close stops accepting events and waits for in-flight handlers.
func (b *Bus) Close() {
	b.cancel()
	b.wg.Wait()
}
