package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
)

// LocalEmbeddingProvider produces deterministic vectors from a content hash.
// Identical texts embed identically, so similarity behavior is stable across
// runs. Used in development and in tests when no endpoint is configured.
type LocalEmbeddingProvider struct {
	dimension int
}

// NewLocalEmbeddingProvider creates a deterministic in-process provider
func NewLocalEmbeddingProvider(dimension int) *LocalEmbeddingProvider {
	return &LocalEmbeddingProvider{dimension: dimension}
}

var _ ports.EmbeddingProvider = (*LocalEmbeddingProvider)(nil)

// Embed derives a unit vector from the SHA-256 of the text
func (p *LocalEmbeddingProvider) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	seed := sha256.Sum256([]byte(text))
	values := make([]float32, p.dimension)

	// Stretch the digest over the full dimension by re-hashing with a counter
	var norm float64
	block := seed
	for i := 0; i < p.dimension; i++ {
		if i%8 == 0 && i > 0 {
			counter := make([]byte, len(block)+1)
			copy(counter, block[:])
			counter[len(block)] = byte(i / 8)
			block = sha256.Sum256(counter)
		}
		bits := binary.BigEndian.Uint32(block[(i%8)*4 : (i%8)*4+4])
		v := float64(bits)/float64(math.MaxUint32)*2 - 1
		values[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range values {
			values[i] *= scale
		}
	}
	return valueobjects.NewEmbedding(values, p.dimension)
}

// ExtractiveSummarizer condenses a bundle of texts by keeping the leading
// sentences of each member up to a size cap. It stands in for an LLM-backed
// summarizer.
type ExtractiveSummarizer struct {
	maxLength int
}

// NewExtractiveSummarizer creates a summarizer that truncates at maxLength
// runes, 2000 when zero
func NewExtractiveSummarizer(maxLength int) *ExtractiveSummarizer {
	if maxLength <= 0 {
		maxLength = 2000
	}
	return &ExtractiveSummarizer{maxLength: maxLength}
}

var _ ports.Summarizer = (*ExtractiveSummarizer)(nil)

// Summarize joins the first sentence of each content, then fills with the
// remainder of the longest one until the cap
func (s *ExtractiveSummarizer) Summarize(ctx context.Context, contents []string) (string, error) {
	if len(contents) == 0 {
		return "", nil
	}
	if len(contents) == 1 {
		return truncateRunes(contents[0], s.maxLength), nil
	}

	parts := make([]string, 0, len(contents))
	for _, content := range contents {
		parts = append(parts, firstSentence(content))
	}
	return truncateRunes(strings.Join(parts, " "), s.maxLength), nil
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return text[:i+1]
		}
	}
	return text
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
