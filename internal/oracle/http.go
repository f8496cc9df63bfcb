package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mvasconcelos/plantpulse/internal/model"
)

// HTTPClient calls an external model service over HTTP. Each call POSTs
// {"machine_id": N} to the configured URL and decodes the JSON response into
// the oracle's signal type.
type HTTPClient struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPClient creates a client for one oracle endpoint.
func NewHTTPClient(name, url string) *HTTPClient {
	return &HTTPClient{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Name() string { return c.name }

// DetectAnomaly implements AnomalyOracle.
func (c *HTTPClient) DetectAnomaly(ctx context.Context, machineID int) (model.AnomalySignal, error) {
	var sig model.AnomalySignal
	if err := c.call(ctx, machineID, &sig); err != nil {
		return model.AnomalySignal{}, err
	}
	return sig, nil
}

// PredictFailure implements FailureOracle.
func (c *HTTPClient) PredictFailure(ctx context.Context, machineID int) (model.FailureSignal, error) {
	var sig model.FailureSignal
	if err := c.call(ctx, machineID, &sig); err != nil {
		return model.FailureSignal{}, err
	}
	return sig, nil
}

// AnalyzeOptimization implements OptimizationOracle.
func (c *HTTPClient) AnalyzeOptimization(ctx context.Context, machineID int) (model.OptimizationSignal, error) {
	var sig model.OptimizationSignal
	if err := c.call(ctx, machineID, &sig); err != nil {
		return model.OptimizationSignal{}, err
	}
	return sig, nil
}

func (c *HTTPClient) call(ctx context.Context, machineID int, out any) error {
	body, err := json.Marshal(map[string]int{"machine_id": machineID})
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: call: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", c.name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}
