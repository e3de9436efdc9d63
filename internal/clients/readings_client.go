package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sensorhub/internal/models"
)

// ErrRejected is returned when the API refuses a reading with a 4xx status. Retrying will not help.
var ErrRejected = errors.New("reading rejected by API")

type ReadingsClient interface {
	// Submit posts a single-channel reading and returns the id the API assigned.
	Submit(ctx context.Context, ch models.Channel, value float64) (uint, error)
}

type readingsClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

func NewReadingsClient(baseURL string) ReadingsClient {
	return &readingsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

type submitResponse struct {
	Message string `json:"message"`
	ID      uint   `json:"id"`
}

func (c *readingsClient) Submit(ctx context.Context, ch models.Channel, value float64) (uint, error) {
	if !ch.Valid() {
		return 0, fmt.Errorf("%w: %d", models.ErrInvalidChannel, ch)
	}
	body, err := json.Marshal(map[string]float64{ch.Key(): value})
	if err != nil {
		return 0, fmt.Errorf("failed to encode reading: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		id, err := c.post(ctx, body)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, ErrRejected) || ctx.Err() != nil {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *readingsClient) post(ctx context.Context, body []byte) (uint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/data", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sensorhub-bridge/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return 0, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, string(msg))
		}
		return 0, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(msg))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return out.ID, nil
}
