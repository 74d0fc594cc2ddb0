package llm

import "context"

// Message is one turn of conversation history.
type Message struct {
	Role    string
	Content string
}

// Request carries one recognized utterance plus its conversation context.
type Request struct {
	Text      string
	SessionID string
	Context   map[string]any
	History   []Message
}

// Usage is the token accounting for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the generated reply plus provider metadata.
type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
	Provider     string
	LatencyMS    float64
	CacheHit     bool
}

// Responder defines the contract for any text-generation backend. The
// pipeline treats it as an opaque stage: transcript in, reply text out.
type Responder interface {
	Name() string
	Respond(ctx context.Context, req Request) (Response, error)
}
