package agent

import "sync"

// TokenStats is the cumulative usage snapshot.
type TokenStats struct {
	TotalRequests       int64   `json:"total_requests"`
	TotalInputTokens    int64   `json:"total_input_tokens"`
	TotalOutputTokens   int64   `json:"total_output_tokens"`
	TotalTokens         int64   `json:"total_tokens"`
	AvgTokensPerRequest float64 `json:"avg_tokens_per_request"`
}

// TokenCounter tracks estimated token usage across all requests. The
// estimate is the usual rough heuristic of four characters per token,
// matched when the provider reports no exact usage.
type TokenCounter struct {
	mu           sync.Mutex
	requests     int64
	inputTokens  int64
	outputTokens int64
}

// NewTokenCounter returns a zeroed counter.
func NewTokenCounter() *TokenCounter { return &TokenCounter{} }

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int { return len(text) / 4 }

// Add records one request's usage and returns the per-request estimate.
func (c *TokenCounter) Add(input, output string) (inputTokens, outputTokens int) {
	inputTokens = EstimateTokens(input)
	outputTokens = EstimateTokens(output)
	c.mu.Lock()
	c.requests++
	c.inputTokens += int64(inputTokens)
	c.outputTokens += int64(outputTokens)
	c.mu.Unlock()
	return inputTokens, outputTokens
}

// Stats returns the cumulative usage.
func (c *TokenCounter) Stats() TokenStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := TokenStats{
		TotalRequests:     c.requests,
		TotalInputTokens:  c.inputTokens,
		TotalOutputTokens: c.outputTokens,
		TotalTokens:       c.inputTokens + c.outputTokens,
	}
	if s.TotalRequests > 0 {
		s.AvgTokensPerRequest = float64(s.TotalTokens) / float64(s.TotalRequests)
	}
	return s
}
