package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/twilio/twilio-go"

	"github.com/apanagidis/callback/internal/config"
	"github.com/apanagidis/callback/internal/event"
	"github.com/apanagidis/callback/internal/ivr"
	"github.com/apanagidis/callback/internal/recordings"
	"github.com/apanagidis/callback/internal/tasks"
	"github.com/apanagidis/callback/pkg/fetch"
	"github.com/apanagidis/callback/pkg/logger"
	"github.com/apanagidis/callback/pkg/redis"
)

// HandlerManager wires configuration, services, and handlers together.
type HandlerManager struct {
	cfg     config.Config
	menuCfg config.MenuConfig

	menuHandler      *MenuHandler
	taskEventHandler *TaskEventsHandler
	recordingHandler *RecordingHandler
}

// NewHandlerManager creates and initializes all handlers and services. The
// cache is optional; a nil redis service means artifact retrieval always
// goes to the API.
func NewHandlerManager(cfg config.Config, menuCfg config.MenuConfig, client *twilio.RestClient, cache redis.RedisServiceInterface, bus *event.Bus) *HandlerManager {
	options := &ivr.Options{
		Domain:               cfg.Domain,
		Voice:                menuCfg.Voice,
		HoldMusicURL:         menuCfg.HoldMusicURL,
		EWTEnabled:           menuCfg.GetEwt,
		QueuePositionEnabled: menuCfg.GetQueuePosition,
		Wait:                 ivr.UnresolvedWait{},
		Position:             ivr.UnresolvedPosition{},
	}

	taskService := tasks.NewService(client, cfg.WorkspaceSid, menuCfg.TimeZone)

	recordingService := recordings.NewService(client.Api, cache, nil, recordings.Config{
		AccountSid: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		Policy: fetch.Policy{
			MaxAttempts: cfg.RetryLimit,
			MinBackoff:  cfg.RetryMinBackoff,
			MaxBackoff:  cfg.RetryMaxBackoff,
			Step:        fetch.DefaultPolicy.Step,
		},
		CacheTTL: cfg.CacheTTL,
	})

	return &HandlerManager{
		cfg:              cfg,
		menuCfg:          menuCfg,
		menuHandler:      NewMenuHandler(options, taskService, menuCfg.CallbackAlertTone, menuCfg.VoicemailAlertTone),
		taskEventHandler: NewTaskEventsHandler(bus),
		recordingHandler: NewRecordingHandler(recordingService),
	}
}

// SetupAllRoutes sets up all routes with middleware.
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(LoggingMiddleware)

	router.HandleFunc("/queue-menu", hm.menuHandler.HandleQueueMenu).Methods("GET", "POST")
	router.HandleFunc("/callback-menu", hm.menuHandler.HandleCallbackMenu).Methods("GET", "POST")
	router.HandleFunc("/voicemail-menu", hm.menuHandler.HandleVoicemailMenu).Methods("GET", "POST")

	router.HandleFunc("/outbound-answer", hm.menuHandler.HandleOutboundAnswer).Methods("GET", "POST")

	router.HandleFunc("/task-events", hm.taskEventHandler.HandleTaskEvents).Methods("POST")

	fetchRecording := JWTMiddleware(hm.cfg.JWTSecret)(http.HandlerFunc(hm.recordingHandler.HandleFetchRecordingTranscription))
	router.Handle("/fetch-recording-transcription", CORSMiddleware(fetchRecording)).Methods("POST", "OPTIONS")

	router.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", http.FileServer(http.Dir("assets"))))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	logger.Base().Info("all application routes registered")
}
