package handler

import (
	"encoding/json"
	"net/http"

	"github.com/apanagidis/callback/internal/recordings"
)

// RecordingHandler serves voicemail artifact retrieval for the review panel.
type RecordingHandler struct {
	recordings *recordings.Service
}

// NewRecordingHandler builds the handler.
func NewRecordingHandler(svc *recordings.Service) *RecordingHandler {
	return &RecordingHandler{recordings: svc}
}

// HandleFetchRecordingTranscription serves /fetch-recording-transcription.
// The response status mirrors the retrieval outcome so the panel can
// distinguish a still-processing transcription from a missing one.
func (h *RecordingHandler) HandleFetchRecordingTranscription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var result recordings.Result
	switch {
	case r.FormValue("transcriptionSid") != "":
		result = h.recordings.GetTranscription(r.Context(), r.FormValue("transcriptionSid"))
	case r.FormValue("recordingSid") != "":
		result = h.recordings.GetMediaURL(r.Context(), r.FormValue("recordingSid"))
	default:
		result = recordings.Result{Success: false, Status: http.StatusBadRequest, Message: "transcriptionSid or recordingSid is required"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	_ = json.NewEncoder(w).Encode(result)
}
