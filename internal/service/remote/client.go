package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"photoreviver/internal/config"
	"photoreviver/internal/logger"
	"photoreviver/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// maxDownloadBytes caps the size of a model output we are willing to fetch.
const maxDownloadBytes = 64 << 20

// Prediction statuses reported by the hosted API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Prediction is the hosted API's view of one model run.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// Terminal reports whether the prediction will not change any more.
func (p *Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// OutputURL returns the URL of the produced image. Output may be a single
// string or a list; the last element of a list is the final image.
func (p *Prediction) OutputURL() (string, error) {
	if len(p.Output) == 0 || string(p.Output) == "null" {
		return "", fmt.Errorf("%w: prediction %s has no output", ErrPredictionFailed, p.ID)
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil && single != "" {
		return single, nil
	}
	var list []string
	if err := json.Unmarshal(p.Output, &list); err == nil && len(list) > 0 {
		return list[len(list)-1], nil
	}
	return "", fmt.Errorf("%w: unexpected output %s", ErrPredictionFailed, string(p.Output))
}

type createRequest struct {
	Version string                 `json:"version,omitempty"`
	Input   map[string]interface{} `json:"input"`
}

// Client talks to a predictions style model API. Calls are rate limited,
// retried with exponential backoff and guarded by a circuit breaker.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker[[]byte]
	pollInterval time.Duration
	timeout      time.Duration
	maxRetries   uint64
	logger       *logger.Logger
}

// NewClient builds a Client from the remote configuration.
func NewClient(cfg config.RemoteConfig, log *logger.Logger) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		logger:       log,
	}

	threshold := cfg.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "remote-models",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Only infrastructure failures should open the breaker.
			return err == nil ||
				errors.Is(err, ErrPredictionFailed) ||
				errors.Is(err, ErrRejected) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RemoteBreakerState.Set(float64(to))
			log.Warning("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return c
}

// Configured reports whether an API token is present.
func (c *Client) Configured() bool {
	return c.token != "" && c.baseURL != ""
}

// Run sends image to model and returns the bytes of the produced image.
func (c *Client) Run(ctx context.Context, model config.ModelConfig, image []byte) ([]byte, error) {
	if !c.Configured() || model.Model == "" || model.InputKey == "" {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.breaker.Execute(func() ([]byte, error) {
		return c.run(ctx, model, image)
	})

	switch {
	case err == nil:
		metrics.RecordRemoteCall(model.Model, "success")
		return out, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordRemoteCall(model.Model, "rejected")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordRemoteCall(model.Model, "timeout")
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, model.Model, c.timeout)
	default:
		metrics.RecordRemoteCall(model.Model, "error")
		return nil, err
	}
}

func (c *Client) run(ctx context.Context, model config.ModelConfig, image []byte) ([]byte, error) {
	pred, err := c.create(ctx, model, image)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Prediction %s created for %s", pred.ID, model.Model)

	pred, err = c.wait(ctx, pred)
	if err != nil {
		return nil, err
	}
	if pred.Status != StatusSucceeded {
		return nil, fmt.Errorf("%w: %s %s: %s", ErrPredictionFailed, model.Model, pred.Status, string(pred.Error))
	}

	url, err := pred.OutputURL()
	if err != nil {
		return nil, err
	}
	return c.download(ctx, url)
}

func (c *Client) create(ctx context.Context, model config.ModelConfig, image []byte) (*Prediction, error) {
	body := createRequest{
		Input: map[string]interface{}{model.InputKey: DataURI(image)},
	}
	endpoint := c.baseURL + "/models/" + model.Model + "/predictions"
	if _, version, ok := strings.Cut(model.Model, ":"); ok {
		// pinned versions go through the generic endpoint
		body.Version = version
		endpoint = c.baseURL + "/predictions"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	var pred Prediction
	if err := c.doJSON(ctx, http.MethodPost, endpoint, payload, &pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

func (c *Client) wait(ctx context.Context, pred *Prediction) (*Prediction, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for !pred.Terminal() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		url := pred.URLs.Get
		if url == "" {
			url = c.baseURL + "/predictions/" + pred.ID
		}
		var next Prediction
		if err := c.doJSON(ctx, http.MethodGet, url, nil, &next); err != nil {
			return nil, err
		}
		pred = &next
	}
	return pred, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
		if err != nil {
			return fmt.Errorf("%w: reading output: %v", ErrTransient, err)
		}
		return nil
	})
	return data, err
}

// doJSON performs a request with retries and decodes the JSON answer into out.
func (c *Client) doJSON(ctx context.Context, method, url string, payload []byte, out interface{}) error {
	return c.retry(ctx, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response from %s: %w", url, err))
		}
		return nil
	})
}

// send waits for the rate limiter, executes req and classifies the outcome.
// Non-2xx answers are closed here.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrTransient, req.Method, req.URL.Path, resp.StatusCode)
	}
	return nil, backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(detail))))
}

func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.logger.Warning("Remote call failed, retrying in %s: %v", wait, err)
	})
}

// DataURI encodes image as a base64 data URI with a sniffed content type.
func DataURI(image []byte) string {
	mime := http.DetectContentType(image)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}
