// Package rerank provides cross-encoder implementations: a client for a
// TEI-compatible /rerank endpoint and an in-process lexical scorer.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain"
)

// Client calls a text-embeddings-inference compatible /rerank endpoint.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the cross-encoder endpoint settings.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a cross-encoder client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rerankHit struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score implements domain.CrossEncoder. Scores outside [0, 1] are squashed with a
// sigmoid so they blend with normalized fusion scores.
func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Texts: passages, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %v: %w", err, domain.ErrRerankUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(msg)), domain.ErrRerankUnavailable)
	}

	var hits []rerankHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decode rerank response: %v: %w", err, domain.ErrRerankUnavailable)
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(passages) {
			return nil, fmt.Errorf("rerank index %d out of range: %w", h.Index, domain.ErrRerankUnavailable)
		}
		scores[h.Index] = squash(h.Score)
		seen[h.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing passage %d: %w", i, domain.ErrRerankUnavailable)
		}
	}

	c.logger.Debug("Rerank completed",
		zap.Int("passages", len(passages)),
		zap.Duration("duration", time.Since(start)),
	)
	return scores, nil
}

// HealthCheck reports whether the endpoint answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rerank health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rerank health status %d", resp.StatusCode)
	}
	return nil
}

func squash(s float64) float64 {
	if s >= 0 && s <= 1 {
		return s
	}
	return 1 / (1 + math.Exp(-s))
}
