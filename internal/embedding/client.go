package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/httpclient"
	"github.com/ecoledger/carbon-engine/internal/logger"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultRequestsPerSec  = 5.0
	defaultBurst           = 5
	defaultCacheTTL        = 24 * time.Hour
	cacheCleanupInterval   = 30 * time.Minute
	maxProviderMessageSize = 200
)

// Config configures the HTTP embedding client.
type Config struct {
	// Endpoint is the API base URL; "/embeddings" is appended.
	Endpoint   string
	Model      string
	APIKey     string
	Dimensions int
	Timeout    time.Duration

	RequestsPerSecond float64
	Burst             int

	// CacheTTL of 0 uses the default; negative disables caching.
	CacheTTL time.Duration

	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper
}

// CacheObserver receives cache hit and miss events.
type CacheObserver interface {
	RecordEmbeddingCache(hit bool)
}

// Client calls an embeddings endpoint that accepts {"model","input"} and
// returns {"data":[{"embedding":[...]}]}.
type Client struct {
	cfg      Config
	url      string
	http     *httpclient.Client
	limiter  *rate.Limiter
	cache    *cache.Cache
	log      logger.Logger
	observer CacheObserver
}

// Option customizes a Client.
type Option func(*Client)

// WithCacheObserver reports cache hits and misses to o.
func WithCacheObserver(o CacheObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates an embedding client.
func NewClient(cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.Newf("embedding endpoint is required").
			Component("embedding").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Model == "" {
		return nil, errors.Newf("embedding model is required").
			Component("embedding").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	c := &Client{
		cfg: cfg,
		url: strings.TrimRight(cfg.Endpoint, "/") + "/embeddings",
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: cfg.Timeout,
			BearerToken:    cfg.APIKey,
			Transport:      cfg.Transport,
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:     logger.Or(log, "embedding"),
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, cacheCleanupInterval)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed returns the vector for text. Identical texts (after case folding and
// whitespace collapsing) are served from the cache. Returned slices are shared
// and must not be modified.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if key == "" {
		return nil, errors.Newf("cannot embed empty text").
			Component("embedding").
			Category(errors.CategoryValidation).
			Build()
	}

	if c.cache != nil {
		if v, found := c.cache.Get(key); found {
			if vec, ok := v.([]float32); ok {
				c.observe(true)
				return vec, nil
			}
		}
		c.observe(false)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, Unavailable(KindTransport, fmt.Sprintf("rate limiter wait: %v", err))
	}

	start := time.Now()
	resp, err := c.http.PostJSON(ctx, c.url, embeddingRequest{
		Model:      c.cfg.Model,
		Input:      text,
		Dimensions: c.cfg.Dimensions,
	})
	if err != nil {
		c.log.Warn("embedding request failed", logger.Error(err), logger.Duration("elapsed", time.Since(start)))
		return nil, Unavailable(KindTransport, err.Error())
	}

	if kind, ok := classifyStatus(resp.StatusCode); !ok {
		detail := fmt.Sprintf("provider returned HTTP %d%s", resp.StatusCode, providerMessage(resp.Body))
		c.log.Warn("embedding provider rejected request",
			logger.Int("status", resp.StatusCode),
			logger.String("kind", string(kind)))
		return nil, Unavailable(kind, detail)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, Unavailable(KindTransport, fmt.Sprintf("undecodable response: %v", err))
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, Unavailable(KindTransport, "response carried no embedding")
	}
	vec := parsed.Data[0].Embedding
	if c.cfg.Dimensions > 0 && len(vec) != c.cfg.Dimensions {
		return nil, Unavailable(KindTransport,
			fmt.Sprintf("embedding has %d dimensions, want %d", len(vec), c.cfg.Dimensions))
	}

	c.log.Debug("embedding generated",
		logger.Int("dimensions", len(vec)),
		logger.Duration("elapsed", time.Since(start)))

	if c.cache != nil {
		c.cache.SetDefault(key, vec)
	}
	return vec, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

func (c *Client) cacheKey(text string) string {
	folded := strings.Join(strings.Fields(cases.Fold().String(text)), " ")
	if folded == "" {
		return ""
	}
	return c.cfg.Model + "\x00" + folded
}

func (c *Client) observe(hit bool) {
	if c.observer != nil {
		c.observer.RecordEmbeddingCache(hit)
	}
}

// classifyStatus maps an HTTP status to an error kind; ok is true for 2xx.
func classifyStatus(status int) (kind ErrorKind, ok bool) {
	switch {
	case status >= 200 && status < 300:
		return KindNone, true
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth, false
	case status == http.StatusTooManyRequests, status == http.StatusPaymentRequired:
		return KindQuota, false
	default:
		return KindTransport, false
	}
}

func providerMessage(body []byte) string {
	var pe providerError
	if err := json.Unmarshal(body, &pe); err != nil || pe.Error.Message == "" {
		return ""
	}
	msg := errors.ScrubMessage(pe.Error.Message)
	if len(msg) > maxProviderMessageSize {
		msg = msg[:maxProviderMessageSize] + "..."
	}
	return ": " + msg
}
