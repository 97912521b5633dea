package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"fleettemp/pipeline"
)

// HTTPClient calls an external forecasting service:
// POST {url} with a Request body, answered by {"predictions": [...]}.
type HTTPClient struct {
	url          string
	modelVersion string
	client       *http.Client
}

func NewHTTPClient(url, modelVersion string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url:          url,
		modelVersion: modelVersion,
		client:       &http.Client{Timeout: timeout},
	}
}

type httpRequest struct {
	Request
	ModelVersion string `json:"model_version,omitempty"`
}

type httpResponse struct {
	Predictions []pipeline.PredictionRecord `json:"predictions"`
}

func (c *HTTPClient) Predict(ctx context.Context, req Request) ([]pipeline.PredictionRecord, error) {
	body, err := json.Marshal(httpRequest{Request: req, ModelVersion: c.modelVersion})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("encode request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("forecast service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var out httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	for i, p := range out.Predictions {
		if p.VehiclePlate == "" {
			return nil, backoff.Permanent(errors.New("prediction without vehicle_plate"))
		}
		out.Predictions[i].Timestamp = p.Timestamp.UTC()
	}
	return out.Predictions, nil
}
