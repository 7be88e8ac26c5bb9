// Package strategos implements a narrow HTTP client to the external worker
// dispatch backend (agent-running substrate): spawning workers, polling
// status, reading captured output, and releasing resources. It wraps every
// call in a retry policy and a per-backend circuit breaker so a flaky or
// dead backend degrades the pipeline gracefully instead of hammering it.
package strategos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/antigravity-dev/noetic/internal/noeticerr"
)

// WorkerState is the lifecycle state of a dispatched worker.
type WorkerState string

const (
	WorkerRunning   WorkerState = "running"
	WorkerCompleted WorkerState = "completed"
	WorkerFailed    WorkerState = "failed"
	WorkerUnknown   WorkerState = "unknown"
)

// SpawnRequest describes a worker to dispatch.
type SpawnRequest struct {
	Pathway string            `json:"pathway"`
	Prompt  string            `json:"prompt"`
	Model   string            `json:"model,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// Worker identifies a dispatched worker and its last known status.
type Worker struct {
	ID       string      `json:"id"`
	State    WorkerState `json:"state"`
	ExitCode int         `json:"exitCode"`
}

// Client is a narrow HTTP client over the worker dispatch backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Options configures a new Client.
type Options struct {
	BaseURL             string
	Timeout             time.Duration
	MaxRetries          int
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	CircuitFailureRatio float64
	CircuitMinRequests  uint32
}

// New constructs a Client. Defaults are applied for zero-valued fields.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 2 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.CircuitFailureRatio <= 0 {
		opts.CircuitFailureRatio = 0.6
	}
	if opts.CircuitMinRequests == 0 {
		opts.CircuitMinRequests = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "strategos",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.CircuitMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= opts.CircuitFailureRatio
		},
	})

	return &Client{
		baseURL:        opts.BaseURL,
		httpClient:     &http.Client{Timeout: opts.Timeout},
		breaker:        breaker,
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
	}
}

// Spawn dispatches a new worker and returns its id.
func (c *Client) Spawn(ctx context.Context, req SpawnRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/workers", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// WaitForDone polls a worker's status until it leaves WorkerRunning or the
// context is cancelled, returning the final Worker.
func (c *Client) WaitForDone(ctx context.Context, id string, pollInterval time.Duration) (Worker, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		w, err := c.Status(ctx, id)
		if err != nil {
			return Worker{}, err
		}
		if w.State != WorkerRunning {
			return w, nil
		}
		select {
		case <-ctx.Done():
			return Worker{}, &noeticerr.WorkerTimeoutError{WorkerID: id, Timeout: ctx.Err().Error()}
		case <-ticker.C:
		}
	}
}

// Status fetches a worker's current lifecycle state.
func (c *Client) Status(ctx context.Context, id string) (Worker, error) {
	var w Worker
	if err := c.doJSON(ctx, http.MethodGet, "/workers/"+id, nil, &w); err != nil {
		return Worker{}, err
	}
	return w, nil
}

// ReadOutput retrieves a completed worker's captured stdout.
func (c *Client) ReadOutput(ctx context.Context, id string) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/workers/"+id+"/output", nil, &out); err != nil {
		return "", err
	}
	return out.Output, nil
}

// Delete releases any backend resources held for a worker.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/workers/"+id, nil, nil)
}

// ListWorkers returns every worker the backend currently knows about.
func (c *Client) ListWorkers(ctx context.Context) ([]Worker, error) {
	var out []Worker
	if err := c.doJSON(ctx, http.MethodGet, "/workers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// doJSON performs a single logical request, retrying transient failures
// under an exponential backoff and short-circuiting via the circuit breaker
// once the backend looks unhealthy.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &noeticerr.InvalidInputError{Field: "body", Message: err.Error()}
		}
		bodyBytes = b
	}

	op := func() (any, error) {
		resp, err := c.breaker.Execute(func() (any, error) {
			return c.doOnce(ctx, method, path, bodyBytes, out)
		})
		return resp, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = c.maxBackoff
	bo.MaxElapsedTime = 0

	var retryable backoff.BackOff = backoff.WithMaxRetries(bo, uint64(c.maxRetries))
	retryable = backoff.WithContext(retryable, ctx)

	_, err := backoff.RetryWithData(func() (any, error) {
		v, err := op()
		if err != nil {
			var perm *noeticerr.PermanentBackendFailure
			if errors.As(err, &perm) {
				return nil, backoff.Permanent(err)
			}
			var notFound *noeticerr.NotFoundError
			if errors.As(err, &notFound) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return v, nil
	}, retryable)
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) (any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &noeticerr.PermanentBackendFailure{Op: method + " " + path, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &noeticerr.TransientBackendFailure{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &noeticerr.TransientBackendFailure{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &noeticerr.NotFoundError{Kind: "worker", ID: path}
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return nil, &noeticerr.TransientBackendFailure{Op: method + " " + path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, data)}
	case resp.StatusCode >= 400:
		return nil, &noeticerr.PermanentBackendFailure{Op: method + " " + path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, data)}
	}

	if out == nil || len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, &noeticerr.PermanentBackendFailure{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, nil
}
