package semanticdef

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBody bounds how much of an OpenAI embeddings response we'll read.
const maxResponseBody = 10 * 1024 * 1024

// OpenAIEmbedder implements Embedder against OpenAI's embeddings endpoint.
// Grounded on the teacher's internal/service/embedding.OpenAIProvider, trimmed
// to the single-claim Embed call EmbeddingProvider actually needs.
type OpenAIEmbedder struct {
	APIKey     string
	Model      string
	Dimensions int
	HTTPClient *http.Client
}

// NewOpenAIEmbedder constructs an embedder. dimensions<=0 falls back to 1536,
// the text-embedding-3-small default.
func NewOpenAIEmbedder(apiKey, model string, dimensions int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("semanticdef: OpenAI API key is required")
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &OpenAIEmbedder{
		APIKey:     apiKey,
		Model:      model,
		Dimensions: dimensions,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type openAIEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed implements Embedder.
func (p *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(openAIEmbedRequest{Input: []string{text}, Model: p.Model, Dimensions: p.Dimensions})
	if err != nil {
		return nil, fmt.Errorf("semanticdef: marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("semanticdef: create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("semanticdef: send embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("semanticdef: read embed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openAIEmbedResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			return nil, fmt.Errorf("semanticdef: openai error (HTTP %d): %s: %s", resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
		}
		return nil, fmt.Errorf("semanticdef: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result openAIEmbedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("semanticdef: unmarshal embed response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("semanticdef: openai error: %s: %s", result.Error.Type, result.Error.Message)
	}
	if len(result.Data) != 1 {
		return nil, fmt.Errorf("semanticdef: expected 1 embedding but got %d", len(result.Data))
	}
	return result.Data[0].Embedding, nil
}
