package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	predictPath    = "/predict/avg"
	defaultTimeout = 60 * time.Second

	// Band scores live on a 0-9 scale in half-point steps.
	minBand = 0
	maxBand = 9
)

// Averages holds the four raw dimension averages returned by the
// scoring service for a batch of essays.
type Averages struct {
	TaskAchievement   float64 `json:"task_achievement"`
	CoherenceCohesion float64 `json:"coherence_and_cohesion"`
	LexicalResource   float64 `json:"lexical_resource"`
	GrammaticalRange  float64 `json:"grammatical_range"`
}

// Client calls the external essay-scoring service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client for the given service base URL.
// A non-positive timeout falls back to the default.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("scoring base url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type predictRequest struct {
	Texts []string `json:"texts"`
}

type predictResponse struct {
	Average Averages `json:"average"`
}

// ScoreBatch submits the essays as a single batched request and returns
// the four dimension averages. A single attempt; no retries.
func (c *Client) ScoreBatch(ctx context.Context, texts []string) (Averages, error) {
	body, err := json.Marshal(predictRequest{Texts: texts})
	if err != nil {
		return Averages{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		return Averages{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Averages{}, fmt.Errorf("scoring service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Averages{}, fmt.Errorf("scoring service error: %s", resp.Status)
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Averages{}, fmt.Errorf("scoring service returned invalid response: %w", err)
	}
	return parsed.Average, nil
}

// Band rounds a raw average to the nearest half point and clamps it
// to the 0-9 band scale.
func Band(x float64) float64 {
	banded := math.Round(x*2) / 2
	if banded < minBand {
		return minBand
	}
	if banded > maxBand {
		return maxBand
	}
	return banded
}
