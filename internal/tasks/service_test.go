package tasks

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	taskrouter "github.com/twilio/twilio-go/rest/taskrouter/v1"
)

type fakeTaskRouter struct {
	tasks       map[string]*taskrouter.TaskrouterV1Task
	updates     []string // sids updated
	lastUpdate  *taskrouter.UpdateTaskParams
	lastCreate  *taskrouter.CreateTaskParams
	createErr   error
	updateErr   error
	nextTaskSid int
}

func newFakeTaskRouter() *fakeTaskRouter {
	return &fakeTaskRouter{tasks: map[string]*taskrouter.TaskrouterV1Task{}}
}

func (f *fakeTaskRouter) seed(sid, attributes string) {
	workspace := "WS0000"
	queue := "WQ0000"
	queueName := "Everyone"
	workflow := "WW0000"
	taskSid := sid
	f.tasks[sid] = &taskrouter.TaskrouterV1Task{
		Sid:                   &taskSid,
		Attributes:            &attributes,
		TaskQueueSid:          &queue,
		TaskQueueFriendlyName: &queueName,
		WorkflowSid:           &workflow,
		WorkspaceSid:          &workspace,
	}
}

func (f *fakeTaskRouter) FetchTask(workspaceSid, sid string) (*taskrouter.TaskrouterV1Task, error) {
	task, ok := f.tasks[sid]
	if !ok {
		return nil, errors.New("20404 not found")
	}
	return task, nil
}

func (f *fakeTaskRouter) ListTask(workspaceSid string, params *taskrouter.ListTaskParams) ([]taskrouter.TaskrouterV1Task, error) {
	var out []taskrouter.TaskrouterV1Task
	for _, task := range f.tasks {
		if params.EvaluateTaskAttributes != nil && task.Attributes != nil {
			attrs, _ := ParseAttributes(*task.Attributes)
			if fmt.Sprintf("call_sid= '%s'", attrs.CallSid) == *params.EvaluateTaskAttributes {
				out = append(out, *task)
			}
		}
	}
	return out, nil
}

func (f *fakeTaskRouter) UpdateTask(workspaceSid, sid string, params *taskrouter.UpdateTaskParams) (*taskrouter.TaskrouterV1Task, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, sid)
	f.lastUpdate = params
	task, ok := f.tasks[sid]
	if !ok {
		return nil, errors.New("20404 not found")
	}
	if params.Attributes != nil {
		task.Attributes = params.Attributes
	}
	if params.AssignmentStatus != nil {
		task.AssignmentStatus = params.AssignmentStatus
	}
	return task, nil
}

func (f *fakeTaskRouter) CreateTask(workspaceSid string, params *taskrouter.CreateTaskParams) (*taskrouter.TaskrouterV1Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.lastCreate = params
	f.nextTaskSid++
	sid := fmt.Sprintf("WT9%03d", f.nextTaskSid)
	attributes := ""
	if params.Attributes != nil {
		attributes = *params.Attributes
	}
	f.seed(sid, attributes)
	return f.tasks[sid], nil
}

type fakeCalls struct {
	updated []string
	lastURL string
	err     error
}

func (f *fakeCalls) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updated = append(f.updated, sid)
	if params.Url != nil {
		f.lastURL = *params.Url
	}
	return &api.ApiV2010Call{Sid: &sid}, nil
}

func newTestService(tr *fakeTaskRouter, calls *fakeCalls) *Service {
	svc := NewServiceWithClients(tr, calls, "WS0000", "America/Los_Angeles")
	svc.now = func() time.Time { return time.Date(2021, 7, 5, 10, 30, 0, 0, time.UTC) }
	return svc
}

const queuedAttrs = `{"caller":"+15551234567","called":"+15550001111","call_sid":"CA1234",` +
	`"conversations":{"conversation_id":"","communication_channel":""}}`

func TestGetTaskByTaskSid(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", queuedAttrs)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	assert.Equal(t, "WT1111", info.TaskSid)
	assert.Equal(t, "WW0000", info.WorkflowSid)
	assert.Equal(t, "Everyone", info.TaskQueueName)
	assert.Equal(t, "+15551234567", info.Attributes.Caller)
}

func TestGetTaskByCallSid(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", queuedAttrs)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("CA1234")
	require.NoError(t, err)
	assert.Equal(t, "WT1111", info.TaskSid)
}

func TestGetTaskErrors(t *testing.T) {
	tr := newFakeTaskRouter()
	svc := newTestService(tr, &fakeCalls{})

	_, err := svc.GetTask("WT404")
	assert.Error(t, err)

	_, err = svc.GetTask("CA404")
	assert.Error(t, err)
}

func TestCancelTaskMarksNotAbandoned(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", queuedAttrs)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	svc.CancelTask(info.TaskSid, "Callback Requested", info.RawAttributes)

	require.NotNil(t, tr.lastUpdate)
	assert.Equal(t, "canceled", *tr.lastUpdate.AssignmentStatus)
	assert.Equal(t, "Callback Requested", *tr.lastUpdate.Reason)
	attrs, err := ParseAttributes(*tr.lastUpdate.Attributes)
	require.NoError(t, err)
	assert.Equal(t, "No", attrs.Conversations.Abandoned)
	assert.Equal(t, "+15551234567", attrs.Caller)
}

func TestCancelTaskPreservesUnmodeledAttributes(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", `{"caller":"+15551234567","called":"+15550001111",`+
		`"channelType":"web","flow_sid":"FW1234",`+
		`"conversations":{"conversation_attribute_2":"Sales"}}`)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	svc.CancelTask(info.TaskSid, "Callback Requested", info.RawAttributes)

	require.NotNil(t, tr.lastUpdate)
	bag, err := DecodeBag(*tr.lastUpdate.Attributes)
	require.NoError(t, err)
	assert.Equal(t, "web", bag["channelType"])
	assert.Equal(t, "FW1234", bag["flow_sid"])
	conv, ok := bag["conversations"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Sales", conv["conversation_attribute_2"])
	assert.Equal(t, "No", conv["abandoned"])
}

func TestCancelTaskSwallowsUpdateFailure(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.updateErr = errors.New("boom")
	svc := newTestService(tr, &fakeCalls{})

	// Must not panic or surface the failure; the call flow proceeds.
	svc.CancelTask("WT1111", "Voicemail Requested", "")
	assert.Empty(t, tr.updates)
}

func TestCreateCallbackTaskRoundTrip(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", queuedAttrs)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	svc.CreateCallbackTask("+61400111222", info, "https://example.twil.io/assets/alertTone.mp3")

	require.NotNil(t, tr.lastCreate)
	assert.Equal(t, "voice", *tr.lastCreate.TaskChannel)
	assert.Equal(t, "WW0000", *tr.lastCreate.WorkflowSid)

	created, err := svc.GetTask("WT9001")
	require.NoError(t, err)
	attrs := created.Attributes
	assert.Equal(t, TypeCallback, attrs.Type)
	assert.Equal(t, "inbound", attrs.Direction)
	assert.Equal(t, "+61400111222", attrs.To)
	assert.Equal(t, "+15550001111", attrs.From)
	assert.Equal(t, "Callback: +61400111222", attrs.Name)
	assert.Equal(t, 1, attrs.PlaceCallRetry)
	assert.Equal(t, "WT1111", attrs.Conversations.ConversationID)
	assert.Equal(t, ChannelCallback, attrs.Conversations.CommunicationChannel)
	require.NotNil(t, attrs.CallTime)
	assert.Equal(t, "America/Los_Angeles", attrs.CallTime.ServerTZ)
}

func TestCreateCallbackTaskDefaultsToCallerID(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", queuedAttrs)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	svc.CreateCallbackTask("", info, "https://example.twil.io/assets/alertTone.mp3")

	created, err := svc.GetTask("WT9001")
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", created.Attributes.To)
}

func TestCreateCallbackTaskCarriesConversationKeys(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", `{"caller":"+15551234567","called":"+15550001111",`+
		`"channelType":"web",`+
		`"conversations":{"conversation_attribute_2":"Sales","abandoned":"Yes"}}`)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	svc.CreateCallbackTask("+61400111222", info, "https://example.twil.io/assets/alertTone.mp3")

	require.NotNil(t, tr.lastCreate)
	bag, err := DecodeBag(*tr.lastCreate.Attributes)
	require.NoError(t, err)
	conv, ok := bag["conversations"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Sales", conv["conversation_attribute_2"])
	assert.Equal(t, "WT1111", conv["conversation_id"])
	assert.Equal(t, ChannelCallback, conv["communication_channel"])
	assert.Equal(t, "Yes", conv["abandoned"])
	// Only conversations carry over; the new item's top level is built fresh.
	assert.NotContains(t, bag, "channelType")
}

func TestCreateVoicemailTaskCarriesConversationKeys(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", `{"caller":"+15551234567","called":"+15550001111",`+
		`"conversations":{"conversation_attribute_2":"Sales","abandoned":"Yes"}}`)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	svc.CreateVoicemailTask(VoicemailEvent{
		Caller:       "+15551234567",
		Called:       "+15550001111",
		RecordingSid: "RE1",
	}, info, "https://example.twil.io/assets/alertTone.mp3")

	require.NotNil(t, tr.lastCreate)
	bag, err := DecodeBag(*tr.lastCreate.Attributes)
	require.NoError(t, err)
	conv, ok := bag["conversations"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Sales", conv["conversation_attribute_2"])
	assert.Equal(t, ChannelVoicemail, conv["communication_channel"])
	assert.NotContains(t, conv, "abandoned")
}

func TestCreateVoicemailTaskDropsAbandonedMarker(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", `{"caller":"+15551234567","called":"+15550001111",`+
		`"conversations":{"abandoned":"Yes"}}`)
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	svc.CreateVoicemailTask(VoicemailEvent{
		Caller:           "+15551234567",
		Called:           "+15550001111",
		RecordingURL:     "https://api.example.com/recordings/RE1",
		RecordingSid:     "RE1",
		TranscriptionSid: "TR1",
	}, info, "https://example.twil.io/assets/alertTone.mp3")

	created, err := svc.GetTask("WT9001")
	require.NoError(t, err)
	attrs := created.Attributes
	assert.Equal(t, TypeVoicemail, attrs.Type)
	assert.Equal(t, "RE1", attrs.RecordingSid)
	assert.Equal(t, "TR1", attrs.TranscriptionSid)
	assert.Equal(t, ChannelVoicemail, attrs.Conversations.CommunicationChannel)
	assert.Empty(t, attrs.Conversations.Abandoned)
	require.NotNil(t, attrs.UIPlugin)
	require.NotNil(t, attrs.UIPlugin.VmRecordButtonAccessibility)
	assert.True(t, *attrs.UIPlugin.VmRecordButtonAccessibility)
}

func TestCreateTaskSwallowsFailure(t *testing.T) {
	tr := newFakeTaskRouter()
	tr.seed("WT1111", queuedAttrs)
	tr.createErr = errors.New("boom")
	svc := newTestService(tr, &fakeCalls{})

	info, err := svc.GetTask("WT1111")
	require.NoError(t, err)
	svc.CreateCallbackTask("+61400111222", info, "ringback")
	// Nothing created, nothing surfaced.
	_, err = svc.GetTask("WT9001")
	assert.Error(t, err)
}

func TestRedirectCall(t *testing.T) {
	calls := &fakeCalls{}
	svc := newTestService(newFakeTaskRouter(), calls)

	svc.RedirectCall("CA1234", "https://example.twil.io/voicemail-menu?mode=main")
	require.Len(t, calls.updated, 1)
	assert.Equal(t, "CA1234", calls.updated[0])
	assert.Equal(t, "https://example.twil.io/voicemail-menu?mode=main", calls.lastURL)

	// Redirect failures are logged, not surfaced.
	calls.err = errors.New("boom")
	svc.RedirectCall("CA1234", "https://example.twil.io/voicemail-menu?mode=main")
}

func TestNewCallTimeFormatsTimezone(t *testing.T) {
	at := time.Date(2021, 7, 5, 17, 30, 0, 0, time.UTC)
	ct := NewCallTime(at, "America/Los_Angeles")
	assert.Equal(t, "America/Los_Angeles", ct.ServerTZ)
	assert.Equal(t, "Jul 5 2021, 10:30:00 am PDT", ct.ServerTimeLong)
	assert.Equal(t, "07-5-2021, 10:30:00 am PDT", ct.ServerTimeShort)

	// Unknown timezone falls back to UTC rather than failing capture.
	ct = NewCallTime(at, "Not/AZone")
	assert.Equal(t, "Jul 5 2021, 5:30:00 pm UTC", ct.ServerTimeLong)
}
