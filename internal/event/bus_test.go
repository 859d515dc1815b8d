package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPublishReachesSubscribersOfMatchingType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var accepted, completed []string
	bus.Subscribe(TaskAccepted, func(ev *TaskEvent) {
		mu.Lock()
		accepted = append(accepted, ev.TaskSid)
		mu.Unlock()
	})
	bus.Subscribe(TaskCompleted, func(ev *TaskEvent) {
		mu.Lock()
		completed = append(completed, ev.TaskSid)
		mu.Unlock()
	})

	require.NoError(t, bus.Publish(&TaskEvent{Type: TaskAccepted, TaskSid: "WT1"}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(accepted) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"WT1"}, accepted)
	assert.Empty(t, completed)
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	hits := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(TaskWrapup, func(*TaskEvent) {
			mu.Lock()
			hits++
			mu.Unlock()
		})
	}

	require.NoError(t, bus.Publish(&TaskEvent{Type: TaskWrapup, TaskSid: "WT1"}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return hits == 3
	})
}

func TestPanickingHandlerDoesNotStarveOthers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	survived := false
	bus.Subscribe(TaskCompleted, func(*TaskEvent) {
		panic("handler bug")
	})
	bus.Subscribe(TaskCompleted, func(*TaskEvent) {
		mu.Lock()
		survived = true
		mu.Unlock()
	})

	require.NoError(t, bus.Publish(&TaskEvent{Type: TaskCompleted, TaskSid: "WT1"}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return survived
	})
}

func TestPublishAfterCloseFails(t *testing.T) {
	bus := NewBus()
	bus.Close()

	err := bus.Publish(&TaskEvent{Type: TaskAccepted, TaskSid: "WT1"})
	assert.Error(t, err)
}

func TestCloseWaitsForInFlightHandlers(t *testing.T) {
	bus := NewBus()

	started := make(chan struct{})
	var mu sync.Mutex
	done := false
	bus.Subscribe(TaskAccepted, func(*TaskEvent) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		done = true
		mu.Unlock()
	})

	require.NoError(t, bus.Publish(&TaskEvent{Type: TaskAccepted, TaskSid: "WT1"}))
	<-started
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, done)
}
