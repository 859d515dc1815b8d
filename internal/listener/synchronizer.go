// Package listener keeps a deferred work item (callback or voicemail) and
// the live outbound call it spawns in lockstep. One Synchronizer is
// constructed at the composition root and subscribed to the task event bus
// for the lifetime of the process.
package listener

import (
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/apanagidis/callback/internal/event"
	"github.com/apanagidis/callback/internal/tasks"
	"github.com/apanagidis/callback/pkg/logger"
)

// ErrAmbiguousReservation reports an outbound-call item carrying both
// reservation pointer types; at most one may be set.
var ErrAmbiguousReservation = errors.New("task carries both callback and voicemail reservation pointers")

// OutboundCallParams describes the outbound call placed when an agent
// accepts a callback item. QueueSid is the queue the deferred item was
// accepted from; the dispatcher stamps it on the outbound work item so the
// workflow routes the item back to that queue.
type OutboundCallParams struct {
	CallerID    string
	Destination string
	QueueSid    string
	Attributes  tasks.Attributes
}

// Dispatcher is the action layer the synchronizer drives. Implementations
// must be safe for concurrent use.
type Dispatcher interface {
	StartOutboundCall(params OutboundCallParams) error
	WrapupTask(taskSid string) error
	CompleteTask(taskSid string) error
}

// TaskResolver resolves a work item by sid. *tasks.Service satisfies it.
type TaskResolver interface {
	GetTask(idOrCallSid string) (*tasks.TaskInfo, error)
}

// Synchronizer mirrors outbound-call lifecycle transitions onto the paired
// deferred item. Its only mutable state is the in-flight completion table,
// keyed by target item sid, which guarantees a concurrent double-fire reaches
// the dispatcher at most once.
type Synchronizer struct {
	dispatcher  Dispatcher
	resolver    TaskResolver
	completions singleflight.Group
}

// New builds a synchronizer.
func New(dispatcher Dispatcher, resolver TaskResolver) *Synchronizer {
	return &Synchronizer{dispatcher: dispatcher, resolver: resolver}
}

// Register subscribes the synchronizer to the three lifecycle events.
func (s *Synchronizer) Register(bus *event.Bus) {
	bus.Subscribe(event.TaskAccepted, s.HandleAccepted)
	bus.Subscribe(event.TaskWrapup, s.HandleWrapup)
	bus.Subscribe(event.TaskCompleted, s.HandleCompleted)
}

// HandleAccepted places the outbound call for an accepted callback item,
// stamping the new item with a reservation pointer back to the accepted one.
// Voicemail acceptance surfaces the review panel instead; no call is placed.
func (s *Synchronizer) HandleAccepted(ev *event.TaskEvent) {
	if ev.Attributes.Type != tasks.TypeCallback {
		return
	}

	conversations := ev.Attributes.Conversations
	// The original inbound call is long gone; its call sid must not ride
	// along onto the outbound leg's reporting.
	conversations.ConversationAttribute6 = ""
	conversations.CommunicationChannel = tasks.ChannelCall

	params := OutboundCallParams{
		CallerID:    ev.Attributes.From,
		Destination: ev.Attributes.To,
		QueueSid:    ev.QueueSid,
		Attributes: tasks.Attributes{
			CallbackReservationSid: ev.TaskSid,
			Conversations:          conversations,
		},
	}
	if err := s.dispatcher.StartOutboundCall(params); err != nil {
		logger.Base().Error("failed to start outbound call for accepted callback",
			zap.String("task_sid", ev.TaskSid), zap.Error(err))
	}
}

// HandleWrapup propagates wrap-up from an outbound-call item onto its paired
// deferred item. No pair, no-op.
func (s *Synchronizer) HandleWrapup(ev *event.TaskEvent) {
	pairedSid, ok := s.resolvePaired(ev)
	if !ok {
		return
	}
	if err := s.dispatcher.WrapupTask(pairedSid); err != nil {
		logger.Base().Error("failed to wrap up paired task",
			zap.String("task_sid", ev.TaskSid), zap.String("paired_sid", pairedSid), zap.Error(err))
	}
}

// HandleCompleted propagates completion onto the paired deferred item. A
// completion already in flight for the same item absorbs concurrent
// duplicates: they await its settlement and share its outcome instead of
// issuing a second request. Redelivered events after settlement rely on the
// platform treating a repeat terminal transition as a no-op.
func (s *Synchronizer) HandleCompleted(ev *event.TaskEvent) {
	pairedSid, ok := s.resolvePaired(ev)
	if !ok {
		return
	}
	_, err, _ := s.completions.Do(pairedSid, func() (interface{}, error) {
		return nil, s.dispatcher.CompleteTask(pairedSid)
	})
	s.completions.Forget(pairedSid)
	if err != nil {
		logger.Base().Error("failed to complete paired task",
			zap.String("task_sid", ev.TaskSid), zap.String("paired_sid", pairedSid), zap.Error(err))
	}
}

// resolvePaired finds the deferred item an outbound-call event should mirror
// onto. Only outbound-call items participate; the callback pointer is
// consulted before the voicemail pointer, and an item carrying both is
// rejected as invalid input.
func (s *Synchronizer) resolvePaired(ev *event.TaskEvent) (string, bool) {
	if !isOutboundCall(ev.Attributes) {
		return "", false
	}

	callbackSid := ev.Attributes.CallbackReservationSid
	voicemailSid := ev.Attributes.VoicemailReservationSid
	if callbackSid != "" && voicemailSid != "" {
		logger.Base().Error("invalid outbound task",
			zap.String("task_sid", ev.TaskSid), zap.Error(ErrAmbiguousReservation))
		return "", false
	}

	pairedSid := callbackSid
	if pairedSid == "" {
		pairedSid = voicemailSid
	}
	if pairedSid == "" {
		return "", false
	}

	paired, err := s.resolver.GetTask(pairedSid)
	if err != nil {
		logger.Base().Warn("paired task not found",
			zap.String("task_sid", ev.TaskSid), zap.String("paired_sid", pairedSid), zap.Error(err))
		return "", false
	}
	return paired.TaskSid, true
}

func isOutboundCall(attrs tasks.Attributes) bool {
	return attrs.Direction == "outbound"
}
