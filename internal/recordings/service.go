// Package recordings retrieves voicemail artifacts (recording media and
// transcription text) on behalf of the review panel. Retrieval goes through
// the rate-limit-aware fetch policy and results are cached per sid for the
// span of a viewing session; a missing or failing cache degrades to a direct
// fetch.
package recordings

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	twilioclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/apanagidis/callback/pkg/fetch"
	"github.com/apanagidis/callback/pkg/logger"
	"github.com/apanagidis/callback/pkg/redis"
)

const defaultAPIBase = "https://api.twilio.com/2010-04-01"

// Result is the payload returned to the review panel.
type Result struct {
	Success       bool   `json:"success"`
	Status        int    `json:"status"`
	Transcription string `json:"transcription,omitempty"`
	MediaURL      string `json:"mediaUrl,omitempty"`
	Message       string `json:"message,omitempty"`
}

// TranscriptionFetcher is the slice of the Twilio REST client the service
// needs. *api.ApiService satisfies it.
type TranscriptionFetcher interface {
	FetchTranscription(Sid string, params *api.FetchTranscriptionParams) (*api.ApiV2010Transcription, error)
}

// Config carries the credentials and retrieval tuning for the service.
type Config struct {
	AccountSid string
	AuthToken  string
	// Policy bounds the transcription retries. Zero value falls back to
	// three attempts with the default backoff window.
	Policy   fetch.Policy
	CacheTTL time.Duration
	// APIBase overrides the REST origin, for tests.
	APIBase string
}

// Service resolves recording artifacts. A nil cache is valid and means every
// call goes to the API.
type Service struct {
	transcriptions TranscriptionFetcher
	fetcher        *fetch.Client
	cache          redis.RedisServiceInterface
	accountSid     string
	authToken      string
	policy         fetch.Policy
	ttl            time.Duration
	apiBase        string
}

// NewService builds the service. httpClient may be nil.
func NewService(transcriptions TranscriptionFetcher, cache redis.RedisServiceInterface, httpClient *http.Client, cfg Config) *Service {
	policy := cfg.Policy
	if policy.MaxAttempts < 1 {
		policy = fetch.Policy{
			MaxAttempts: 3,
			MinBackoff:  fetch.DefaultPolicy.MinBackoff,
			MaxBackoff:  fetch.DefaultPolicy.MaxBackoff,
			Step:        fetch.DefaultPolicy.Step,
		}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Service{
		transcriptions: transcriptions,
		fetcher:        fetch.NewClient(httpClient, fetch.DefaultPolicy),
		cache:          cache,
		accountSid:     cfg.AccountSid,
		authToken:      cfg.AuthToken,
		policy:         policy,
		ttl:            ttl,
		apiBase:        apiBase,
	}
}

// GetTranscription fetches transcription text by sid, retrying only while
// the API is shedding load.
func (s *Service) GetTranscription(ctx context.Context, transcriptionSid string) Result {
	if cached, ok := s.cacheGet(ctx, redis.TRANSCRIPTION, transcriptionSid); ok {
		return Result{Success: true, Status: http.StatusOK, Transcription: cached}
	}

	var text string
	err := s.policy.Do(func() error {
		transcription, err := s.transcriptions.FetchTranscription(transcriptionSid, &api.FetchTranscriptionParams{})
		if err != nil {
			return err
		}
		if transcription.TranscriptionText != nil {
			text = *transcription.TranscriptionText
		}
		return nil
	}, isTwilioRateLimited)
	if err != nil {
		return failure(err)
	}

	s.cacheSet(ctx, redis.TRANSCRIPTION, transcriptionSid, text)
	return Result{Success: true, Status: http.StatusOK, Transcription: text}
}

// GetMediaURL resolves the playable media URL for a recording sid.
func (s *Service) GetMediaURL(ctx context.Context, recordingSid string) Result {
	if cached, ok := s.cacheGet(ctx, redis.RECORDING_MEDIA, recordingSid); ok {
		return Result{Success: true, Status: http.StatusOK, MediaURL: cached}
	}

	var meta struct {
		URI string `json:"uri"`
	}
	req := fetch.Request{
		Method: http.MethodGet,
		URL:    s.apiBase + "/Accounts/" + s.accountSid + "/Recordings/" + recordingSid + ".json",
		Header: http.Header{"Authorization": []string{basicAuth(s.accountSid, s.authToken)}},
	}
	if err := s.fetcher.JSON(req, &meta); err != nil {
		return failure(err)
	}

	mediaURL := strings.TrimSuffix(meta.URI, ".json") + ".mp3"
	if !strings.HasPrefix(mediaURL, "http") {
		mediaURL = "https://api.twilio.com" + mediaURL
	}

	s.cacheSet(ctx, redis.RECORDING_MEDIA, recordingSid, mediaURL)
	return Result{Success: true, Status: http.StatusOK, MediaURL: mediaURL}
}

func (s *Service) cacheGet(ctx context.Context, keyType redis.KeyType, sid string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, err := s.cache.GetValue(ctx, s.cache.GenerateKey(keyType, sid))
	if err != nil {
		if !errors.Is(err, redis.ErrKeyNotExist) {
			logger.Base().Warn("artifact cache read failed", zap.String("sid", sid), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

func (s *Service) cacheSet(ctx context.Context, keyType redis.KeyType, sid, value string) {
	if s.cache == nil || value == "" {
		return
	}
	if err := s.cache.SetValue(ctx, s.cache.GenerateKey(keyType, sid), value, s.ttl); err != nil {
		logger.Base().Warn("artifact cache write failed", zap.String("sid", sid), zap.Error(err))
	}
}

func failure(err error) Result {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		return Result{Success: false, Status: restErr.Status, Message: restErr.Message}
	}
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return Result{Success: false, Status: statusErr.Status, Message: statusErr.Message}
	}
	return Result{Success: false, Status: http.StatusInternalServerError, Message: err.Error()}
}

func isTwilioRateLimited(err error) bool {
	var restErr *twilioclient.TwilioRestError
	return errors.As(err, &restErr) && restErr.Status == http.StatusTooManyRequests
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
