package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/apanagidis/callback/internal/recordings"
)

type stubTranscriptions struct {
	text string
}

func (s *stubTranscriptions) FetchTranscription(sid string, params *api.FetchTranscriptionParams) (*api.ApiV2010Transcription, error) {
	text := s.text
	return &api.ApiV2010Transcription{TranscriptionText: &text}, nil
}

func newRecordingHandler(text string) *RecordingHandler {
	svc := recordings.NewService(&stubTranscriptions{text: text}, nil, nil, recordings.Config{
		AccountSid: "AC1",
		AuthToken:  "token",
	})
	return NewRecordingHandler(svc)
}

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestFetchTranscriptionReturnsResult(t *testing.T) {
	h := newRecordingHandler("call me back please")

	rec := postForm(http.HandlerFunc(h.HandleFetchRecordingTranscription), "/fetch-recording-transcription", url.Values{
		"transcriptionSid": {"TR1"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result recordings.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "call me back please", result.Transcription)
}

func TestFetchTranscriptionRequiresSid(t *testing.T) {
	h := newRecordingHandler("ignored")

	rec := postForm(http.HandlerFunc(h.HandleFetchRecordingTranscription), "/fetch-recording-transcription", url.Values{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchTranscriptionRejectsMissingToken(t *testing.T) {
	h := newRecordingHandler("ignored")
	guarded := JWTMiddleware("secret")(http.HandlerFunc(h.HandleFetchRecordingTranscription))

	rec := postForm(guarded, "/fetch-recording-transcription", url.Values{
		"transcriptionSid": {"TR1"},
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFetchTranscriptionAcceptsBearerToken(t *testing.T) {
	h := newRecordingHandler("call me back please")
	guarded := JWTMiddleware("secret")(http.HandlerFunc(h.HandleFetchRecordingTranscription))

	rec := postForm(withAuth(guarded, "Bearer "+signedToken(t, "secret")), "/fetch-recording-transcription", url.Values{
		"transcriptionSid": {"TR1"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFetchTranscriptionRejectsForgedToken(t *testing.T) {
	h := newRecordingHandler("ignored")
	guarded := JWTMiddleware("secret")(http.HandlerFunc(h.HandleFetchRecordingTranscription))

	rec := postForm(withAuth(guarded, "Bearer "+signedToken(t, "wrong-secret")), "/fetch-recording-transcription", url.Values{
		"transcriptionSid": {"TR1"},
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// withAuth injects an Authorization header in front of the wrapped handler.
func withAuth(next http.Handler, value string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set("Authorization", value)
		next.ServeHTTP(w, r)
	})
}
