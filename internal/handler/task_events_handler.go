package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/apanagidis/callback/internal/event"
	"github.com/apanagidis/callback/internal/tasks"
	"github.com/apanagidis/callback/pkg/logger"
)

// TaskEventsHandler receives TaskRouter event callbacks and republishes the
// lifecycle transitions the synchronizer cares about onto the bus.
type TaskEventsHandler struct {
	bus *event.Bus
}

// NewTaskEventsHandler builds the handler.
func NewTaskEventsHandler(bus *event.Bus) *TaskEventsHandler {
	return &TaskEventsHandler{bus: bus}
}

// eventTypeMap translates TaskRouter callback event types.
var eventTypeMap = map[string]event.Type{
	"reservation.accepted": event.TaskAccepted,
	"task.wrapup":          event.TaskWrapup,
	"task.completed":       event.TaskCompleted,
}

// HandleTaskEvents serves /task-events. Unrecognized event types are
// acknowledged and dropped; the subscription is broader than what we act on.
func (h *TaskEventsHandler) HandleTaskEvents(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	eventType, ok := eventTypeMap[r.FormValue("EventType")]
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	attrs, err := tasks.ParseAttributes(r.FormValue("TaskAttributes"))
	if err != nil {
		logger.Base().Warn("task event with unparsable attributes",
			zap.String("event_type", r.FormValue("EventType")),
			zap.String("task_sid", r.FormValue("TaskSid")),
			zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	taskEvent := &event.TaskEvent{
		Type:           eventType,
		TaskSid:        r.FormValue("TaskSid"),
		QueueSid:       r.FormValue("TaskQueueSid"),
		ReservationSid: r.FormValue("ReservationSid"),
		ChannelName:    r.FormValue("TaskChannelUniqueName"),
		Attributes:     attrs,
		Timestamp:      time.Now(),
	}
	if err := h.bus.Publish(taskEvent); err != nil {
		logger.Base().Error("failed to publish task event",
			zap.String("task_sid", taskEvent.TaskSid), zap.Error(err))
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}
