package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/apanagidis/callback/internal/ivr"
	"github.com/apanagidis/callback/internal/tasks"
	"github.com/apanagidis/callback/pkg/logger"
)

// TaskService is the slice of the task lifecycle manager the menus drive.
// *tasks.Service satisfies it.
type TaskService interface {
	GetTask(idOrCallSid string) (*tasks.TaskInfo, error)
	CancelTask(taskSid, reason, rawAttributes string)
	CreateCallbackTask(phoneNumber string, info *tasks.TaskInfo, ringbackURL string)
	CreateVoicemailTask(event tasks.VoicemailEvent, info *tasks.TaskInfo, ringbackURL string)
	RedirectCall(callSid, targetURL string)
}

// MenuHandler serves the three webhook-driven voice menus. All menu state
// rides in the request itself, so the handler holds only configuration and
// service wiring.
type MenuHandler struct {
	options            *ivr.Options
	tasks              TaskService
	callbackAlertTone  string
	voicemailAlertTone string
}

// NewMenuHandler builds the menu handler.
func NewMenuHandler(options *ivr.Options, taskService TaskService, callbackAlertTone, voicemailAlertTone string) *MenuHandler {
	return &MenuHandler{
		options:            options,
		tasks:              taskService,
		callbackAlertTone:  callbackAlertTone,
		voicemailAlertTone: voicemailAlertTone,
	}
}

func parseState(r *http.Request) ivr.CallState {
	return ivr.CallState{
		TaskSid:            r.FormValue("taskSid"),
		IsCallbackEnabled:  r.FormValue("isCallbackEnabled") == "true",
		IsVoicemailEnabled: r.FormValue("isVoicemailEnabled") == "true",
		SkipGreeting:       r.FormValue("skipGreeting") == "true",
		CallbackNumber:     r.FormValue("cbphone"),
	}
}

func parseInput(r *http.Request) ivr.Input {
	return ivr.Input{
		Digits:  r.FormValue("Digits"),
		From:    r.FormValue("From"),
		Called:  r.FormValue("Called"),
		CallSid: r.FormValue("CallSid"),
	}
}

// HandleQueueMenu serves /queue-menu.
func (h *MenuHandler) HandleQueueMenu(w http.ResponseWriter, r *http.Request) {
	mode := ivr.Mode(r.FormValue("mode"))
	resp, err := h.options.QueueMenu(mode, parseState(r), parseInput(r))
	if err != nil {
		writeMenuError(w, r, err)
		return
	}
	writeTwiML(w, resp)
}

// HandleCallbackMenu serves /callback-menu. The submit mode is terminal: it
// cancels the originating item, creates the callback item, and confirms.
func (h *MenuHandler) HandleCallbackMenu(w http.ResponseWriter, r *http.Request) {
	mode := ivr.Mode(r.FormValue("mode"))
	state := parseState(r)
	input := parseInput(r)

	if mode == ivr.ModeSubmitCallback {
		h.submitCallback(w, r, state, input)
		return
	}

	resp, err := h.options.CallbackMenu(mode, state, input)
	if err != nil {
		writeMenuError(w, r, err)
		return
	}
	writeTwiML(w, resp)
}

func (h *MenuHandler) submitCallback(w http.ResponseWriter, r *http.Request, state ivr.CallState, input ivr.Input) {
	info, err := h.tasks.GetTask(coalesce(state.TaskSid, input.CallSid))
	if err != nil {
		logger.Base().Error("submitCallback could not resolve task",
			zap.String("call_sid", input.CallSid), zap.Error(err))
		http.Error(w, "task not found", http.StatusInternalServerError)
		return
	}

	h.tasks.CancelTask(info.TaskSid, "Callback Requested", info.RawAttributes)

	ringback := ivr.ResolveAssetURL(h.options.Domain, h.callbackAlertTone)
	h.tasks.CreateCallbackTask(state.CallbackNumber, info, ringback)

	writeTwiML(w, h.options.CallbackConfirmation())
}

// HandleVoicemailMenu serves /voicemail-menu. The pre-process and submit
// modes are terminal orchestration; the rest render prompts.
func (h *MenuHandler) HandleVoicemailMenu(w http.ResponseWriter, r *http.Request) {
	mode := ivr.Mode(r.FormValue("mode"))
	state := parseState(r)
	input := parseInput(r)

	switch mode {
	case ivr.ModePreProcess:
		h.voicemailPreProcess(w, r, state, input)
	case ivr.ModeSubmitVoicemail:
		h.submitVoicemail(w, r, state, input)
	default:
		resp, err := h.options.VoicemailMenu(mode, state, input)
		if err != nil {
			writeMenuError(w, r, err)
			return
		}
		writeTwiML(w, resp)
	}
}

// voicemailPreProcess cancels the queued item and points the live call at
// the recording menu. The redirect goes out of band through the REST API, so
// the webhook response itself is empty.
func (h *MenuHandler) voicemailPreProcess(w http.ResponseWriter, r *http.Request, state ivr.CallState, input ivr.Input) {
	info, err := h.tasks.GetTask(coalesce(state.TaskSid, input.CallSid))
	if err != nil {
		logger.Base().Error("voicemail pre-process could not resolve task",
			zap.String("call_sid", input.CallSid), zap.Error(err))
		http.Error(w, "task not found", http.StatusInternalServerError)
		return
	}

	h.tasks.CancelTask(info.TaskSid, "Voicemail Requested", info.RawAttributes)

	redirectURL := h.options.VoicemailMenuURL(ivr.CallState{TaskSid: info.TaskSid}, ivr.ModeMain)
	h.tasks.RedirectCall(input.CallSid, redirectURL)

	w.WriteHeader(http.StatusOK)
}

func (h *MenuHandler) submitVoicemail(w http.ResponseWriter, r *http.Request, state ivr.CallState, input ivr.Input) {
	info, err := h.tasks.GetTask(coalesce(state.TaskSid, input.CallSid))
	if err != nil {
		logger.Base().Error("submitVoicemail could not resolve task",
			zap.String("call_sid", input.CallSid), zap.Error(err))
		http.Error(w, "task not found", http.StatusInternalServerError)
		return
	}

	event := tasks.VoicemailEvent{
		Caller:           r.FormValue("Caller"),
		Called:           r.FormValue("Called"),
		RecordingURL:     r.FormValue("RecordingUrl"),
		RecordingSid:     r.FormValue("RecordingSid"),
		TranscriptionSid: r.FormValue("TranscriptionSid"),
	}

	ringback := ivr.ResolveAssetURL(h.options.Domain, h.voicemailAlertTone)
	h.tasks.CreateVoicemailTask(event, info, ringback)

	w.WriteHeader(http.StatusOK)
}

// HandleOutboundAnswer serves /outbound-answer, the TwiML the return call
// fetches when the customer picks up. The customer hears hold music until
// the paired outbound-call item reaches an agent.
func (h *MenuHandler) HandleOutboundAnswer(w http.ResponseWriter, r *http.Request) {
	resp, err := h.options.OutboundAnswer()
	if err != nil {
		writeMenuError(w, r, err)
		return
	}
	writeTwiML(w, resp)
}

func writeMenuError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ivr.ErrUnknownMode) {
		logger.Base().Warn("mode not specified",
			zap.String("path", r.URL.Path),
			zap.String("mode", r.FormValue("mode")))
		http.Error(w, "Mode not specified", http.StatusInternalServerError)
		return
	}
	logger.Base().Error("menu rendering failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeTwiML(w http.ResponseWriter, resp interface{ Render() (string, error) }) {
	body, err := resp.Render()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(body))
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
