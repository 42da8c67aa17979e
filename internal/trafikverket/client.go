// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package trafikverket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
)

var (
	// ErrMissingAPIKey is returned when no api_key setting is configured.
	ErrMissingAPIKey = errors.New("trafikverket api key is not configured")

	// ErrNoStreamURL is returned when a stream query response carries no
	// SSEURL.
	ErrNoStreamURL = errors.New("query response contained no stream url")
)

const (
	breakerName = "trafikverket"

	// maxBatchBytes bounds one stream line and one one-shot response body.
	// Nationwide camera batches run to a few megabytes.
	maxBatchBytes = 16 << 20
)

// KeyFunc supplies the current API key. It is called per request so that
// key changes through the settings endpoint take effect without a restart.
type KeyFunc func(ctx context.Context) (string, error)

// RawBatch is one undecoded payload received from a push stream.
type RawBatch struct {
	ObjectType string
	Data       []byte
}

// Status is the upstream connection state reported on /api/status.
type Status struct {
	Connected bool   `json:"connected"`
	LastError string `json:"last_error,omitempty"`
}

// Client consumes Trafikverket push streams and performs one-shot fetches.
// All streams started through one Client share its status and breaker.
type Client struct {
	cfg     *config.TrafikverketConfig
	key     KeyFunc
	query   *http.Client
	stream  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]

	mu        sync.Mutex
	cancels   []context.CancelFunc
	connected map[string]bool
	lastError string
}

// New creates a client. The key func is consulted on every query.
func New(cfg *config.TrafikverketConfig, key KeyFunc) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("component", "trafikverket").
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})

	return &Client{
		cfg:   cfg,
		key:   key,
		query: &http.Client{Timeout: cfg.RequestTimeout},
		// The stream GET intentionally has no read timeout; quiet periods
		// between events can last hours.
		stream:    &http.Client{},
		breaker:   breaker,
		connected: make(map[string]bool),
	}
}

// Start launches the consumer loop for one object type and returns the
// channel its batches arrive on. The channel is closed when ctx is
// cancelled or Stop is called.
func (c *Client) Start(ctx context.Context, objectType string, counties []int) (<-chan RawBatch, error) {
	if _, ok := objectSpecs[objectType]; !ok {
		return nil, fmt.Errorf("unknown object type %q", objectType)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()

	out := make(chan RawBatch, 16)
	go c.run(ctx, objectType, counties, out)
	return out, nil
}

// Stop cancels every consumer started through this client.
func (c *Client) Stop() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Status reports the aggregate stream state: connected iff at least one
// stream is running and none is down.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	connected := len(c.connected) > 0
	for _, up := range c.connected {
		if !up {
			connected = false
			break
		}
	}
	return Status{Connected: connected, LastError: c.lastError}
}

// FetchCameras fetches all camera metadata nationwide.
func (c *Client) FetchCameras(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, ObjectCamera, nil)
}

// FetchWeatherStations fetches weather measure points for the given counties.
func (c *Client) FetchWeatherStations(ctx context.Context, counties []int) ([]byte, error) {
	return c.fetch(ctx, ObjectWeatherMeasurepoint, counties)
}

// FetchIcons fetches the icon dictionary with base64 PNG payloads.
func (c *Client) FetchIcons(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, ObjectIcon, nil)
}

// run is the forever loop for one stream: resolve a stream URL, consume it
// until it drops, back off, repeat. Exits only on ctx cancellation.
func (c *Client) run(ctx context.Context, objectType string, counties []int, out chan<- RawBatch) {
	defer close(out)
	defer c.setConnected(objectType, false)

	for {
		if ctx.Err() != nil {
			return
		}

		streamURL, err := c.resolveStreamURL(ctx, objectType, counties)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.recordError(objectType, err)
			logging.Warn().
				Str("component", "trafikverket").
				Str("object_type", objectType).
				Err(err).
				Msg("Stream URL query failed, retrying")
			if !sleepCtx(ctx, c.cfg.QueryRetryDelay) {
				return
			}
			continue
		}

		err = c.consumeStream(ctx, objectType, streamURL, out)
		c.setConnected(objectType, false)
		if ctx.Err() != nil {
			return
		}

		reason := "eof"
		if err != nil {
			reason = "stream_error"
			c.recordError(objectType, err)
			logging.Warn().
				Str("component", "trafikverket").
				Str("object_type", objectType).
				Err(err).
				Msg("Stream dropped, reconnecting")
		}
		metrics.RecordStreamReconnect(objectType, reason)
		if !sleepCtx(ctx, c.cfg.StreamReconnectDelay) {
			return
		}
	}
}

// resolveStreamURL posts the sseurl query and extracts the stream URL.
func (c *Client) resolveStreamURL(ctx context.Context, objectType string, counties []int) (string, error) {
	apiKey, err := c.key(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read api key: %w", err)
	}
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}

	query, err := buildQuery(apiKey, objectType, counties, true)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(query))
	if err != nil {
		return "", fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.query.Do(req)
	if err != nil {
		return "", fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBatchBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("query returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Response struct {
			Result []struct {
				Info struct {
					SSEURL string `json:"SSEURL"`
				} `json:"INFO"`
			} `json:"RESULT"`
		} `json:"RESPONSE"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode query response: %w", err)
	}
	if len(envelope.Response.Result) == 0 || envelope.Response.Result[0].Info.SSEURL == "" {
		return "", ErrNoStreamURL
	}
	return envelope.Response.Result[0].Info.SSEURL, nil
}

// consumeStream reads data: lines off one stream connection until it ends.
func (c *Client) consumeStream(ctx context.Context, objectType, streamURL string, out chan<- RawBatch) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	c.setConnected(objectType, true)
	logging.Info().
		Str("component", "trafikverket").
		Str("object_type", objectType).
		Msg("Stream connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), maxBatchBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(line[len("data:"):])
		if payload == "" {
			continue
		}

		metrics.RecordStreamEvent(objectType)
		select {
		case out <- RawBatch{ObjectType: objectType, Data: []byte(payload)}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

// fetch runs one one-shot query through the circuit breaker.
func (c *Client) fetch(ctx context.Context, objectType string, counties []int) ([]byte, error) {
	start := time.Now()
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetchOnce(ctx, objectType, counties)
	})
	metrics.RecordUpstreamRequest(objectType, time.Since(start), err)

	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = "failure"
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()

	if err != nil {
		return nil, fmt.Errorf("%s fetch failed: %w", strings.ToLower(objectType), err)
	}
	return data, nil
}

func (c *Client) fetchOnce(ctx context.Context, objectType string, counties []int) ([]byte, error) {
	apiKey, err := c.key(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read api key: %w", err)
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	query, err := buildQuery(apiKey, objectType, counties, false)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.query.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBatchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query returned status %d", resp.StatusCode)
	}
	return body, nil
}

func (c *Client) setConnected(objectType string, up bool) {
	c.mu.Lock()
	c.connected[objectType] = up
	if up {
		c.lastError = ""
	}
	c.mu.Unlock()
	metrics.SetStreamConnected(objectType, up)
}

func (c *Client) recordError(objectType string, err error) {
	c.mu.Lock()
	c.lastError = fmt.Sprintf("%s: %v", objectType, err)
	c.mu.Unlock()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
