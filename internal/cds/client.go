package cds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/epigeo/geofeatures/internal/infrastructure/config"
	"github.com/epigeo/geofeatures/internal/infrastructure/logging"
	"github.com/epigeo/geofeatures/internal/infrastructure/monitoring"
	"github.com/epigeo/geofeatures/internal/infrastructure/resilience"
)

var (
	ErrMissingKey    = errors.New("CDS API key not configured")
	ErrRequestFailed = errors.New("CDS request failed")
)

// Query is the request body submitted for a dataset.
type Query map[string]interface{}

// Fetcher retrieves one dataset request into a local file. Client is the
// production implementation; tests substitute their own.
type Fetcher interface {
	Retrieve(ctx context.Context, dataset string, query Query, outName string) error
}

// Client talks to the CDS API: submit, poll, download.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *logging.Logger
	metrics *monitoring.Metrics

	baseURL  string
	pollWait time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger attaches a logger.
func WithLogger(log *logging.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a CDS client from configuration.
func NewClient(cfg config.CDSConfig, opts ...Option) (*Client, error) {
	if cfg.Key == "" {
		return nil, ErrMissingKey
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = nil

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetHeader("User-Agent", "geofeatures/1.0")

	// Legacy keys are "<uid>:<key>" pairs using basic auth; newer personal
	// access tokens go in a header.
	if uid, key, ok := strings.Cut(cfg.Key, ":"); ok {
		restyClient.SetBasicAuth(uid, key)
	} else {
		restyClient.SetHeader("PRIVATE-TOKEN", cfg.Key)
	}

	rps := cfg.Rate
	if rps <= 0 {
		rps = 1
	}

	breaker := resilience.New("cds-api", resilience.Settings{
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// The store queues requests for a long time and fails in
			// bursts during maintenance windows, so be lenient.
			return counts.ConsecutiveFailures >= 10
		},
	})

	c := &Client{
		resty:    restyClient,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		breaker:  breaker,
		log:      logging.NewNop(),
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		pollWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// taskStatus mirrors the store's task document.
type taskStatus struct {
	State     string `json:"state"`
	RequestID string `json:"request_id"`
	Location  string `json:"location"`
	Message   string `json:"error,omitempty"`
}

// Retrieve submits a query for a dataset and downloads the result to
// outName. An existing output file is kept as-is with a warning, matching
// the behavior resumable batch jobs rely on.
func (c *Client) Retrieve(ctx context.Context, dataset string, query Query, outName string) error {
	if _, err := os.Stat(outName); err == nil {
		c.log.Warn("output file exists, keeping existing file",
			zap.String("file", outName))
		if c.metrics != nil {
			c.metrics.DownloadsSkipped.Inc()
		}
		return nil
	}

	start := time.Now()
	jobID := uuid.NewString()
	log := c.log.With(
		zap.String("dataset", dataset),
		zap.String("job", jobID),
		zap.String("file", outName),
	)

	err := c.breaker.Execute(func() error {
		return c.retrieve(ctx, log, dataset, query, outName)
	})

	if c.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.ObserveRequest(dataset, status, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("retrieve %s: %w", dataset, err)
	}

	log.Info("request complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *Client) retrieve(ctx context.Context, log *logging.Logger, dataset string, query Query, outName string) error {
	task, err := c.submit(ctx, dataset, query)
	if err != nil {
		return err
	}
	log.Debug("request submitted", zap.String("request_id", task.RequestID), zap.String("state", task.State))

	task, err = c.await(ctx, task)
	if err != nil {
		return err
	}

	return c.download(ctx, task.Location, outName)
}

func (c *Client) submit(ctx context.Context, dataset string, query Query) (*taskStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var task taskStatus
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(query).
		SetResult(&task).
		Post("/resources/" + dataset)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: submit returned HTTP %d: %s", ErrRequestFailed, resp.StatusCode(), resp.String())
	}
	return &task, nil
}

// await polls the task until it completes or fails.
func (c *Client) await(ctx context.Context, task *taskStatus) (*taskStatus, error) {
	for {
		switch task.State {
		case "completed":
			return task, nil
		case "failed":
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, task.Message)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollWait):
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var updated taskStatus
		resp, err := c.resty.R().
			SetContext(ctx).
			SetResult(&updated).
			Get("/tasks/" + task.RequestID)
		if err != nil {
			return nil, fmt.Errorf("poll: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: poll returned HTTP %d", ErrRequestFailed, resp.StatusCode())
		}
		updated.RequestID = task.RequestID
		task = &updated
	}
}

func (c *Client) download(ctx context.Context, location, outName string) error {
	if location == "" {
		return fmt.Errorf("%w: completed task has no result location", ErrRequestFailed)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if dir := filepath.Dir(outName); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	if c.metrics != nil {
		c.metrics.DownloadsActive.Inc()
		defer c.metrics.DownloadsActive.Dec()
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetOutput(outName).
		Get(location)
	if err != nil {
		os.Remove(outName)
		return fmt.Errorf("download: %w", err)
	}
	if resp.IsError() {
		os.Remove(outName)
		return fmt.Errorf("%w: download returned HTTP %d", ErrRequestFailed, resp.StatusCode())
	}

	if c.metrics != nil {
		if stat, err := os.Stat(outName); err == nil {
			c.metrics.BytesDownloaded.Add(float64(stat.Size()))
		}
	}
	return nil
}

// SetPollInterval overrides how often task state is polled.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollWait = d
	}
}
