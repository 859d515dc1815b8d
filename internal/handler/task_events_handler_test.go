package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apanagidis/callback/internal/event"
)

func postForm(router http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTaskEventsPublishesLifecycleTransitions(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var received []*event.TaskEvent
	bus.Subscribe(event.TaskCompleted, func(ev *event.TaskEvent) {
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
	})

	h := NewTaskEventsHandler(bus)

	rec := postForm(http.HandlerFunc(h.HandleTaskEvents), "/task-events", url.Values{
		"EventType":             {"task.completed"},
		"TaskSid":               {"WTout"},
		"TaskQueueSid":          {"WQ1"},
		"TaskChannelUniqueName": {"voice"},
		"TaskAttributes":        {`{"direction": "outbound", "callbackReservationSid": "WTcb1"}`},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("event never published")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	ev := received[0]
	assert.Equal(t, "WTout", ev.TaskSid)
	assert.Equal(t, "WQ1", ev.QueueSid)
	assert.Equal(t, "outbound", ev.Attributes.Direction)
	assert.Equal(t, "WTcb1", ev.Attributes.CallbackReservationSid)
}

func TestTaskEventsIgnoresUnrelatedTypes(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	fired := make(chan struct{}, 1)
	bus.Subscribe(event.TaskAccepted, func(*event.TaskEvent) {
		fired <- struct{}{}
	})

	h := NewTaskEventsHandler(bus)
	rec := postForm(http.HandlerFunc(h.HandleTaskEvents), "/task-events", url.Values{
		"EventType": {"task.created"},
		"TaskSid":   {"WT1"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case <-fired:
		t.Fatal("unrelated event type was published")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTaskEventsBadAttributesAcknowledged(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	h := NewTaskEventsHandler(bus)
	rec := postForm(http.HandlerFunc(h.HandleTaskEvents), "/task-events", url.Values{
		"EventType":      {"task.wrapup"},
		"TaskSid":        {"WT1"},
		"TaskAttributes": {"{not json"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}
