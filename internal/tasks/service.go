package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	taskrouter "github.com/twilio/twilio-go/rest/taskrouter/v1"
	"go.uber.org/zap"

	"github.com/apanagidis/callback/pkg/logger"
)

// TaskRouterClient is the slice of the TaskRouter API this service uses.
// *taskrouter.ApiService satisfies it; tests substitute a fake.
type TaskRouterClient interface {
	FetchTask(WorkspaceSid string, Sid string) (*taskrouter.TaskrouterV1Task, error)
	ListTask(WorkspaceSid string, params *taskrouter.ListTaskParams) ([]taskrouter.TaskrouterV1Task, error)
	UpdateTask(WorkspaceSid string, Sid string, params *taskrouter.UpdateTaskParams) (*taskrouter.TaskrouterV1Task, error)
	CreateTask(WorkspaceSid string, params *taskrouter.CreateTaskParams) (*taskrouter.TaskrouterV1Task, error)
}

// CallUpdater redirects a live call leg. *api.ApiService satisfies it.
type CallUpdater interface {
	UpdateCall(Sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

// TaskInfo is the normalized descriptor for a resolved work item.
type TaskInfo struct {
	TaskSid       string
	TaskQueueSid  string
	TaskQueueName string
	WorkflowSid   string
	WorkspaceSid  string
	Attributes    Attributes
	RawAttributes string
}

// Service is the work item lifecycle manager.
type Service struct {
	taskrouter   TaskRouterClient
	calls        CallUpdater
	workspaceSid string
	timezone     string
	now          func() time.Time
}

// NewService builds the manager on a shared Twilio REST client.
func NewService(client *twilio.RestClient, workspaceSid, timezone string) *Service {
	return NewServiceWithClients(client.TaskrouterV1, client.Api, workspaceSid, timezone)
}

// NewServiceWithClients wires explicit API surfaces; used by tests.
func NewServiceWithClients(tr TaskRouterClient, calls CallUpdater, workspaceSid, timezone string) *Service {
	return &Service{
		taskrouter:   tr,
		calls:        calls,
		workspaceSid: workspaceSid,
		timezone:     timezone,
		now:          time.Now,
	}
}

// GetTask resolves a work item by task sid or, when given a call sid, by an
// attribute lookup on call_sid. Callers must branch on the returned error;
// the descriptor is only valid when it is nil.
func (s *Service) GetTask(idOrCallSid string) (*TaskInfo, error) {
	var task *taskrouter.TaskrouterV1Task

	if strings.HasPrefix(idOrCallSid, "CA") {
		params := &taskrouter.ListTaskParams{}
		params.SetEvaluateTaskAttributes(fmt.Sprintf("call_sid= '%s'", idOrCallSid))
		params.SetLimit(20)
		matches, err := s.taskrouter.ListTask(s.workspaceSid, params)
		if err != nil {
			return nil, fmt.Errorf("failed to look up task by call sid: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no task found for call %s", idOrCallSid)
		}
		task = &matches[0]
	} else {
		fetched, err := s.taskrouter.FetchTask(s.workspaceSid, idOrCallSid)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch task %s: %w", idOrCallSid, err)
		}
		task = fetched
	}

	raw := stringValue(task.Attributes)
	attrs, err := ParseAttributes(raw)
	if err != nil {
		return nil, err
	}

	info := &TaskInfo{
		TaskSid:       stringValue(task.Sid),
		TaskQueueSid:  stringValue(task.TaskQueueSid),
		TaskQueueName: stringValue(task.TaskQueueFriendlyName),
		WorkflowSid:   stringValue(task.WorkflowSid),
		WorkspaceSid:  stringValue(task.WorkspaceSid),
		Attributes:    attrs,
		RawAttributes: raw,
	}
	if info.WorkspaceSid == "" {
		info.WorkspaceSid = s.workspaceSid
	}
	return info, nil
}

// CancelTask cancels a work item with a human-readable reason, marking its
// conversation as not abandoned. The update deep-merges into the task's
// current attribute JSON so keys this service does not model survive the
// write. Best-effort: failures are logged, never returned, because stalling
// the caller is worse than a missed cancel.
func (s *Service) CancelTask(taskSid, reason, rawAttributes string) {
	bag, err := DecodeBag(rawAttributes)
	if err != nil {
		logger.Base().Error("cancelTask failed to parse attributes",
			zap.String("task_sid", taskSid), zap.Error(err))
		return
	}
	MergeBags(bag, map[string]interface{}{
		"conversations": map[string]interface{}{"abandoned": "No"},
	})
	data, err := json.Marshal(bag)
	if err != nil {
		logger.Base().Error("cancelTask failed to encode attributes",
			zap.String("task_sid", taskSid), zap.Error(err))
		return
	}
	encoded := string(data)

	params := &taskrouter.UpdateTaskParams{}
	params.SetAssignmentStatus("canceled")
	params.SetReason(reason)
	params.SetAttributes(encoded)
	if _, err := s.taskrouter.UpdateTask(s.workspaceSid, taskSid, params); err != nil {
		logger.Base().Error("cancelTask failed",
			zap.String("task_sid", taskSid), zap.String("reason", reason), zap.Error(err))
	}
}

// CreateCallbackTask creates the deferred callback work item. The destination
// defaults to the number typed by the caller when one was captured, else the
// original caller id. Best-effort: creation failures are logged, not
// returned; the caller has already heard the confirmation.
func (s *Service) CreateCallbackTask(phoneNumber string, info *TaskInfo, ringbackURL string) {
	to := phoneNumber
	if to == "" {
		to = info.Attributes.Caller
	}

	attrs := Attributes{
		Type:           TypeCallback,
		Ringback:       ringbackURL,
		To:             to,
		Direction:      "inbound",
		Name:           "Callback: " + to,
		From:           info.Attributes.Called,
		CallTime:       callTimePtr(NewCallTime(s.now(), s.timezone)),
		UIPlugin:       &UIPlugin{CbCallButtonAccessibility: boolPtr(false)},
		PlaceCallRetry: 1,
		Conversations: info.Attributes.Conversations.Merge(Conversations{
			ConversationID:       info.TaskSid,
			CommunicationChannel: ChannelCallback,
		}),
	}
	s.createTask(attrs, info, false)
}

// VoicemailEvent carries the recording webhook fields a voicemail item is
// built from.
type VoicemailEvent struct {
	Caller           string
	Called           string
	RecordingURL     string
	RecordingSid     string
	TranscriptionSid string
}

// CreateVoicemailTask creates the deferred voicemail work item. The abandoned
// marker is dropped so a later cancel before an agent reaches it is not
// reported as an abandoned conversation. Best-effort, as with callbacks.
func (s *Service) CreateVoicemailTask(event VoicemailEvent, info *TaskInfo, ringbackURL string) {
	conversations := info.Attributes.Conversations.Merge(Conversations{
		ConversationID:       info.TaskSid,
		CommunicationChannel: ChannelVoicemail,
	})
	conversations.Abandoned = ""

	attrs := Attributes{
		Type:              TypeVoicemail,
		Ringback:          ringbackURL,
		To:                event.Caller,
		Direction:         "inbound",
		Name:              "Voicemail: " + event.Caller,
		From:              event.Called,
		RecordingURL:      event.RecordingURL,
		RecordingSid:      event.RecordingSid,
		TranscriptionSid:  event.TranscriptionSid,
		TranscriptionText: "Use custom function + API to retrieve",
		CallTime:          callTimePtr(NewCallTime(s.now(), s.timezone)),
		Conversations:     conversations,
		UIPlugin: &UIPlugin{
			VmCallButtonAccessibility:   boolPtr(false),
			VmRecordButtonAccessibility: boolPtr(true),
		},
		PlaceCallRetry: 1,
	}
	s.createTask(attrs, info, true)
}

func (s *Service) createTask(attrs Attributes, info *TaskInfo, dropAbandoned bool) {
	encoded, err := attrs.Encode()
	if err != nil {
		logger.Base().Error("createTask failed to encode attributes",
			zap.String("type", attrs.Type), zap.Error(err))
		return
	}
	encoded, err = s.carryConversations(encoded, info, dropAbandoned)
	if err != nil {
		logger.Base().Error("createTask failed to merge conversations",
			zap.String("type", attrs.Type), zap.Error(err))
		return
	}

	params := &taskrouter.CreateTaskParams{}
	params.SetAttributes(encoded)
	params.SetTaskChannel("voice")
	params.SetWorkflowSid(info.WorkflowSid)
	if _, err := s.taskrouter.CreateTask(info.WorkspaceSid, params); err != nil {
		logger.Base().Error("createTask failed",
			zap.String("type", attrs.Type),
			zap.String("conversation_id", attrs.Conversations.ConversationID),
			zap.Error(err))
	}
}

// carryConversations folds the originating item's full conversations map into
// the new task's attributes, with the typed values on top, so reporting keys
// this service does not model follow the work item. Only conversations carry
// forward; the new item's top-level attributes are built fresh.
func (s *Service) carryConversations(encoded string, info *TaskInfo, dropAbandoned bool) (string, error) {
	bag, err := DecodeBag(encoded)
	if err != nil {
		return "", err
	}
	prior, err := DecodeBag(info.RawAttributes)
	if err != nil {
		return "", err
	}
	if priorConv, ok := prior["conversations"].(map[string]interface{}); ok {
		typedConv, _ := bag["conversations"].(map[string]interface{})
		if typedConv == nil {
			typedConv = map[string]interface{}{}
		}
		bag["conversations"] = MergeBags(priorConv, typedConv)
	}
	if conv, ok := bag["conversations"].(map[string]interface{}); ok && dropAbandoned {
		delete(conv, "abandoned")
	}
	data, err := json.Marshal(bag)
	if err != nil {
		return "", fmt.Errorf("failed to encode task attributes: %w", err)
	}
	return string(data), nil
}

// RedirectCall points the live call leg at a new webhook URL, out of band
// from any task update. Best-effort and independent of task writes: a failed
// redirect must not block a cancel, and vice versa.
func (s *Service) RedirectCall(callSid, targetURL string) {
	params := &api.UpdateCallParams{}
	params.SetMethod("POST")
	params.SetUrl(targetURL)
	if _, err := s.calls.UpdateCall(callSid, params); err != nil {
		logger.Base().Error("updateCall failed",
			zap.String("call_sid", callSid), zap.String("url", targetURL), zap.Error(err))
	}
}

func callTimePtr(ct CallTime) *CallTime { return &ct }

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
