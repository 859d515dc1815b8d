// Package fetch provides a retrying HTTP/JSON client with capped, jittered
// backoff. Rate-limited responses are retried up to a bounded attempt count;
// every other failure surfaces immediately as a structured error.
package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// Policy bounds the retry behavior. The delay before attempt n (zero-based)
// is a random duration in [MinBackoff, MaxBackoff] plus n*Step.
type Policy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Step        time.Duration
}

// DefaultPolicy matches the client-side media/transcript fetch bounds.
var DefaultPolicy = Policy{
	MaxAttempts: 10,
	MinBackoff:  100 * time.Millisecond,
	MaxBackoff:  750 * time.Millisecond,
	Step:        100 * time.Millisecond,
}

// Delay returns the jittered backoff duration for the given attempt.
func (p Policy) Delay(attempt int) time.Duration {
	min := p.MinBackoff
	max := p.MaxBackoff
	if max < min {
		max = min
	}
	jitter := time.Duration(0)
	if span := max - min; span > 0 {
		jitter = time.Duration(rand.Int63n(int64(span) + 1))
	}
	return min + jitter + time.Duration(attempt)*p.Step
}

// Do runs fn up to MaxAttempts times, sleeping the jittered delay between
// attempts while retryable reports the error as transient. The sleep suspends
// only the calling goroutine; concurrent Do calls proceed independently.
func (p Policy) Do(fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 || !retryable(err) {
			return err
		}
		time.Sleep(p.Delay(attempt))
	}
	return err
}

// StatusError is a non-2xx response, carrying the parsed error body when the
// upstream returned one.
type StatusError struct {
	Status  int
	Message string
	Body    json.RawMessage
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream returned %d", e.Status)
}

// IsRateLimited reports whether err is a 429 StatusError.
func IsRateLimited(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Status == http.StatusTooManyRequests
}

// Request describes one JSON fetch. The body, if any, is kept as bytes so the
// request can be rebuilt on every retry attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Client fetches JSON documents with the configured retry policy. The zero
// value is not usable; construct with NewClient.
type Client struct {
	httpClient *http.Client
	policy     Policy
}

// NewClient creates a fetch client. A nil httpClient falls back to a client
// with a 30 second timeout; that timeout is also the only cancellation
// mechanism for an individual attempt.
func NewClient(httpClient *http.Client, policy Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if policy.MaxAttempts < 1 {
		policy = DefaultPolicy
	}
	return &Client{httpClient: httpClient, policy: policy}
}

// JSON performs the request, retrying on rate limiting, and decodes the
// successful response body into out. On terminal non-2xx responses it returns
// a StatusError carrying the parsed error body; if the body cannot be parsed
// the raw status is all the error carries.
func (c *Client) JSON(reqCfg Request, out interface{}) error {
	return c.policy.Do(func() error {
		return c.once(reqCfg, out)
	}, IsRateLimited)
}

func (c *Client) once(reqCfg Request, out interface{}) error {
	method := reqCfg.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(reqCfg.Body) > 0 {
		body = bytes.NewReader(reqCfg.Body)
	}
	req, err := http.NewRequest(method, reqCfg.URL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range reqCfg.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Status: resp.StatusCode}
		var parsed struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(bodyBytes, &parsed) == nil {
			se.Message = parsed.Message
			se.Body = json.RawMessage(bodyBytes)
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
