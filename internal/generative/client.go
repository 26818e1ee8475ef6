package generative

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"golang.org/x/time/rate"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/httpclient"
	"github.com/ecoledger/carbon-engine/internal/logger"
)

const (
	// DefaultTimeout bounds one model call.
	DefaultTimeout = 60 * time.Second

	defaultRequestsPerSec = 1.0
	defaultBurst          = 2
	maxErrorDetail        = 200
)

// Kinds of provider failure carried in the error context.
const (
	KindAuth      = "auth"
	KindQuota     = "quota"
	KindTransport = "transport"
)

// Config configures the chat-completions client.
type Config struct {
	// Endpoint is the API base URL; "/chat/completions" is appended.
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration

	RequestsPerSecond float64
	Burst             int

	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper
}

// Client implements Calculator over a chat-completions API with a
// JSON-object response format.
type Client struct {
	cfg     Config
	url     string
	http    *httpclient.Client
	limiter *rate.Limiter
	log     logger.Logger
}

// NewClient creates a generative client.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Model == "" {
		return nil, errors.Newf("generative endpoint and model are required").
			Component("generative").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}

	return &Client{
		cfg: cfg,
		url: strings.TrimRight(cfg.Endpoint, "/") + "/chat/completions",
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: cfg.Timeout,
			BearerToken:    cfg.APIKey,
			Transport:      cfg.Transport,
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:     logger.Or(log, "generative"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

// Estimate asks the model for an estimate. Waiting for a rate limit slot does
// not count against the per-call timeout, but a slot that cannot be had before
// the caller's deadline is a timeout.
func (c *Client) Estimate(ctx context.Context, req Request) (*Estimate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait refuses early when the next slot lies past the deadline.
		if _, ok := ctx.Deadline(); ok && !errors.Is(ctx.Err(), context.Canceled) {
			c.log.Warn("no rate limit slot before deadline", logger.Error(err))
			return nil, errors.Newf("%w: no rate limit slot before deadline: %v", ErrTimeout, err).
				Component("generative").
				Category(errors.CategoryTimeout).
				Build()
		}
		return nil, c.unavailable(KindTransport, fmt.Sprintf("rate limiter wait: %v", err), 0)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.PostJSON(callCtx, c.url, chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(&req)},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			c.log.Warn("generative call timed out", logger.Duration("timeout", c.cfg.Timeout))
			return nil, errors.Newf("%w after %s", ErrTimeout, c.cfg.Timeout).
				Component("generative").
				Category(errors.CategoryTimeout).
				Timing("generative_estimate", elapsed).
				Build()
		}
		return nil, c.unavailable(KindTransport, err.Error(), 0)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, c.unavailable(KindAuth, statusDetail(resp), resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusPaymentRequired:
		return nil, c.unavailable(KindQuota, statusDetail(resp), resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, c.unavailable(KindTransport, statusDetail(resp), resp.StatusCode)
	}

	content, err := messageContent(resp.Body)
	if err != nil {
		return nil, err
	}

	est, err := ParseEstimate([]byte(content))
	if err != nil {
		c.log.Warn("generative response rejected", logger.Error(err), logger.Duration("elapsed", elapsed))
		return nil, err
	}

	c.log.Debug("generative estimate accepted",
		logger.Float64("confidence", est.Confidence),
		logger.Int("warnings", len(est.Warnings)),
		logger.Duration("elapsed", elapsed))
	return est, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

func (c *Client) unavailable(kind, detail string, status int) error {
	b := errors.Newf("%w (%s): %s", ErrUnavailable, kind, detail).
		Component("generative").
		Category(errors.CategoryGenerative).
		Context("kind", kind)
	if status > 0 {
		b = b.Context("status_code", status)
	}
	return b.Build()
}

// messageContent extracts choices[0].message.content from a completion.
func messageContent(body []byte) (string, error) {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return "", malformed("completion is not a JSON object: %v", err)
	}
	choices, err := obj.GetObjectArray("choices")
	if err != nil || len(choices) == 0 {
		return "", malformed("completion has no choices")
	}
	content, err := choices[0].GetString("message", "content")
	if err != nil {
		return "", malformed("completion has no message content")
	}
	return content, nil
}

func statusDetail(resp *httpclient.Response) string {
	detail := "provider returned HTTP " + strconv.Itoa(resp.StatusCode)
	if obj, err := jason.NewObjectFromBytes(resp.Body); err == nil {
		if msg, err := obj.GetString("error", "message"); err == nil && msg != "" {
			msg = errors.ScrubMessage(msg)
			if len(msg) > maxErrorDetail {
				msg = msg[:maxErrorDetail] + "..."
			}
			detail += ": " + msg
		}
	}
	return detail
}
