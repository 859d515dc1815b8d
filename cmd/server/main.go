package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/twilio/twilio-go"
	"go.uber.org/zap"

	"github.com/apanagidis/callback/internal/config"
	"github.com/apanagidis/callback/internal/event"
	"github.com/apanagidis/callback/internal/handler"
	"github.com/apanagidis/callback/internal/listener"
	"github.com/apanagidis/callback/internal/tasks"
	"github.com/apanagidis/callback/pkg/logger"
	"github.com/apanagidis/callback/pkg/redis"
)

// Server is the callback and voicemail webhook service
type Server struct {
	config         config.Config
	router         *mux.Router
	handlerManager *handler.HandlerManager
	bus            *event.Bus
}

// NewServer wires the service together: config, Twilio client, optional
// redis cache, the task event bus, and the lifecycle synchronizer
func NewServer(cfg config.Config, menuCfg config.MenuConfig) *Server {
	// Initialize zap logger and redirect stdlib log to it
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("Failed to initialize zap logger, falling back to std log")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	// Redis is optional: without it artifact retrieval skips caching
	var cache redis.RedisServiceInterface
	redisService, err := redis.NewRedisService(&redis.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Base().Warn("failed to initialize redis service, running without artifact cache", zap.Error(err))
	} else {
		cache = redisService
	}

	bus := event.NewBus()

	// The synchronizer subscribes for the process lifetime
	taskService := tasks.NewService(client, cfg.WorkspaceSid, menuCfg.TimeZone)
	dispatcher := listener.NewTwilioDispatcher(client, cfg.WorkspaceSid, cfg.WorkflowSid, outboundAnswerURL(cfg.Domain))
	listener.New(dispatcher, taskService).Register(bus)

	router := mux.NewRouter()
	handlerManager := handler.NewHandlerManager(cfg, menuCfg, client, cache, bus)
	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
		bus:            bus,
	}
}

// Start runs the HTTP server until it fails
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Base().Info("Starting server", zap.String("addr", addr))
	return server.ListenAndServe()
}

// outboundAnswerURL is the webhook the outbound return call fetches TwiML
// from when the customer answers
func outboundAnswerURL(domain string) string {
	return fmt.Sprintf("https://%s/outbound-answer", domain)
}

func main() {
	// Load .env file for local development if it exists.
	// This will not override environment variables set by Helm/Docker
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	config.LoadConfig()
	cfg := config.GetConfig()
	menuCfg := config.LoadMenuConfig()

	server := NewServer(cfg, menuCfg)
	logger.Base().Info("Server initialized successfully", zap.String("port", cfg.Port))
	defer logger.Sync()
	defer server.bus.Close()

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
