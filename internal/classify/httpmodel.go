package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/verdict/internal/feature"
)

const scoringTimeout = 30 * time.Second

// HTTPModel talks to an out-of-process scoring service that holds the trained
// classifier artifact. The service exposes a JSON predict endpoint returning
// discrete labels and per-class probabilities, one row per input row.
type HTTPModel struct {
	baseURL string
	client  *http.Client
}

// NewHTTPModel creates a scoring client for the given base URL.
func NewHTTPModel(baseURL string) *HTTPModel {
	return &HTTPModel{
		baseURL: baseURL,
		client:  &http.Client{Timeout: scoringTimeout},
	}
}

type predictRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type predictResponse struct {
	Labels        []string    `json:"labels"`
	Probabilities [][]float64 `json:"probabilities"`
}

// Predict returns one discrete label per input vector.
func (m *HTTPModel) Predict(ctx context.Context, vectors []feature.Vector) ([]string, error) {
	resp, err := m.predict(ctx, vectors)
	if err != nil {
		return nil, err
	}
	return resp.Labels, nil
}

// PredictProba returns per-class probabilities per input vector.
func (m *HTTPModel) PredictProba(ctx context.Context, vectors []feature.Vector) ([][]float64, error) {
	resp, err := m.predict(ctx, vectors)
	if err != nil {
		return nil, err
	}
	return resp.Probabilities, nil
}

func (m *HTTPModel) predict(ctx context.Context, vectors []feature.Vector) (*predictResponse, error) {
	if len(vectors) == 0 {
		return &predictResponse{}, nil
	}

	req := predictRequest{
		Columns: vectors[0].Schema.Columns,
		Rows:    make([][]float64, len(vectors)),
	}
	for i, v := range vectors {
		req.Rows[i] = v.Values
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create predict request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scoring service: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("scoring service returned %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp predictResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	return &resp, nil
}
