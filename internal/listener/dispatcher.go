package listener

import (
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	taskrouter "github.com/twilio/twilio-go/rest/taskrouter/v1"
	"go.uber.org/zap"

	"github.com/apanagidis/callback/pkg/logger"
)

// CallCreator places outbound calls. *api.ApiService satisfies it.
type CallCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

// TaskWriter covers the task mutations the dispatcher needs. The full
// tasks.TaskRouterClient satisfies it.
type TaskWriter interface {
	UpdateTask(WorkspaceSid string, Sid string, params *taskrouter.UpdateTaskParams) (*taskrouter.TaskrouterV1Task, error)
	CreateTask(WorkspaceSid string, params *taskrouter.CreateTaskParams) (*taskrouter.TaskrouterV1Task, error)
}

// TwilioDispatcher executes synchronizer actions against Twilio. The
// outbound leg is a real call plus an outbound-call work item carrying the
// reservation pointer back to the deferred item it was accepted from.
type TwilioDispatcher struct {
	calls        CallCreator
	taskrouter   TaskWriter
	workspaceSid string
	workflowSid  string
	answerURL    string
}

// NewTwilioDispatcher wires the dispatcher to a shared REST client.
func NewTwilioDispatcher(client *twilio.RestClient, workspaceSid, workflowSid, answerURL string) *TwilioDispatcher {
	return &TwilioDispatcher{
		calls:        client.Api,
		taskrouter:   client.TaskrouterV1,
		workspaceSid: workspaceSid,
		workflowSid:  workflowSid,
		answerURL:    answerURL,
	}
}

// NewTwilioDispatcherWithClients is the injection point for tests.
func NewTwilioDispatcherWithClients(calls CallCreator, tr TaskWriter, workspaceSid, workflowSid, answerURL string) *TwilioDispatcher {
	return &TwilioDispatcher{calls: calls, taskrouter: tr, workspaceSid: workspaceSid, workflowSid: workflowSid, answerURL: answerURL}
}

// StartOutboundCall places the return call and creates the outbound-call
// item that tracks it.
func (d *TwilioDispatcher) StartOutboundCall(p OutboundCallParams) error {
	callParams := &api.CreateCallParams{}
	callParams.SetTo(p.Destination)
	callParams.SetFrom(p.CallerID)
	callParams.SetUrl(d.answerURL)

	call, err := d.calls.CreateCall(callParams)
	if err != nil {
		return err
	}

	attrs := p.Attributes
	attrs.Direction = "outbound"
	attrs.To = p.Destination
	attrs.From = p.CallerID
	attrs.TargetQueueSid = p.QueueSid
	if call.Sid != nil {
		attrs.CallSid = *call.Sid
	}
	encoded, err := attrs.Encode()
	if err != nil {
		return err
	}

	taskParams := &taskrouter.CreateTaskParams{}
	taskParams.SetWorkflowSid(d.workflowSid)
	taskParams.SetTaskChannel("voice")
	taskParams.SetAttributes(encoded)
	if _, err := d.taskrouter.CreateTask(d.workspaceSid, taskParams); err != nil {
		return err
	}
	logger.Base().Info("outbound call started",
		zap.String("to", p.Destination), zap.String("queue_sid", p.QueueSid))
	return nil
}

// WrapupTask moves a task to wrapping.
func (d *TwilioDispatcher) WrapupTask(taskSid string) error {
	params := &taskrouter.UpdateTaskParams{}
	params.SetAssignmentStatus("wrapping")
	_, err := d.taskrouter.UpdateTask(d.workspaceSid, taskSid, params)
	return err
}

// CompleteTask moves a task to completed.
func (d *TwilioDispatcher) CompleteTask(taskSid string) error {
	params := &taskrouter.UpdateTaskParams{}
	params.SetAssignmentStatus("completed")
	_, err := d.taskrouter.UpdateTask(d.workspaceSid, taskSid, params)
	return err
}
