package attribution

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

const explainTimeout = 30 * time.Second

// HTTPAttributor queries the scoring service's explain endpoint for
// per-feature contribution scores. The service decides the attribution
// method; this client only carries its output shape.
type HTTPAttributor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAttributor creates an attribution client for the given base URL.
func NewHTTPAttributor(baseURL string) *HTTPAttributor {
	return &HTTPAttributor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: explainTimeout},
	}
}

type explainRequest struct {
	Columns []string  `json:"columns"`
	Row     []float64 `json:"row"`
}

type explainResponse struct {
	// Scores is either one array (single-output methods) or one per class.
	Scores     [][]float64 `json:"scores"`
	BaseValues []float64   `json:"base_values"`
}

// Contributions fetches raw signed contribution scores for one vector.
func (a *HTTPAttributor) Contributions(ctx context.Context, v feature.Vector) (*RawScores, error) {
	body, err := json.Marshal(explainRequest{Columns: v.Schema.Columns, Row: v.Values})
	if err != nil {
		return nil, fmt.Errorf("marshal explain request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/explain", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create explain request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scoring service: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("scoring service returned %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp explainResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode explain response: %w", err)
	}

	return &RawScores{PerClass: resp.Scores, BaseValues: resp.BaseValues}, nil
}
