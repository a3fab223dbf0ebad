// Package providers implements the embedding and summarization ports against
// external services, with local fallbacks for development and tests.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	apperrors "engram-backend/pkg/errors"
)

// HTTPEmbeddingProvider calls an OpenAI-compatible embeddings endpoint
type HTTPEmbeddingProvider struct {
	endpoint  string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
	logger    *zap.Logger
}

// NewHTTPEmbeddingProvider creates an embedding provider for the given
// endpoint and model
func NewHTTPEmbeddingProvider(endpoint, apiKey, model string, dimension int, logger *zap.Logger) *HTTPEmbeddingProvider {
	return &HTTPEmbeddingProvider{
		endpoint:  endpoint,
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

var _ ports.EmbeddingProvider = (*HTTPEmbeddingProvider)(nil)

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests a vector for the given text
func (p *HTTPEmbeddingProvider) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.NewTransient("embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Warn("embedding endpoint returned error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload))
		return nil, apperrors.NewTransient(
			fmt.Sprintf("embedding endpoint returned status %d", resp.StatusCode), nil)
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewTransient("failed to decode embedding response", err)
	}
	if len(decoded.Data) == 0 {
		return nil, apperrors.NewTransient("embedding response contained no data", nil)
	}

	embedding, err := valueobjects.NewEmbedding(decoded.Data[0].Embedding, p.dimension)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("embedding computed",
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)))
	return embedding, nil
}
