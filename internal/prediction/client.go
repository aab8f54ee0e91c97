// Package prediction calls the external crime-risk model service. The model
// is opaque: this client only shapes the request and relays the answer.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnavailable is returned when the model service cannot be reached or
// answers with a non-2xx status.
var ErrUnavailable = errors.New("prediction service unavailable")

// Request carries the features the model scores.
type Request struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hour      int     `json:"hour"`
	Weekday   int     `json:"weekday"`
	Month     int     `json:"month"`
	CrimeType string  `json:"crime_type"`
}

// Response is the model's answer.
type Response struct {
	RiskLevel string `json:"risk_level"`
}

// Client posts feature vectors to the model service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the model service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Predict scores one feature vector. Transport failures and non-2xx answers
// are ErrUnavailable; a malformed body is a plain error.
func (c *Client) Predict(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("prediction: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("prediction: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("prediction: decode response: %w", err)
	}
	return &out, nil
}
