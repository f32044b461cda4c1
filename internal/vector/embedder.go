// Package vector provides text embedders and a brute-force cosine
// nearest-neighbour index over embeddings held in the note store.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"regexp"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Embedder converts text into a vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultHashDim is the HashEmbedder dimension when none is configured.
const DefaultHashDim = 256

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// HashEmbedder is a deterministic, offline embedder based on signed feature
// hashing of lower-cased tokens. Output vectors are L2-normalised, so the dot
// product of two embeddings is their cosine similarity.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder returns a HashEmbedder with dim buckets.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &HashEmbedder{Dim: dim}
}

// Embed never fails; empty text yields the zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float64, e.Dim)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := 1.0
		if sum&0x80000000 != 0 {
			sign = -1
		}
		v[int(sum%uint32(e.Dim))] += sign
	}
	if norm := floats.Norm(v, 2); norm > 0 {
		floats.Scale(1/norm, v)
	}
	return toFloat32(v), nil
}

// OllamaEmbedder calls an Ollama server's /api/embeddings endpoint.
type OllamaEmbedder struct {
	URL    string
	Model  string
	Client *http.Client
}

// NewOllamaEmbedder returns an embedder for the given endpoint and model.
func NewOllamaEmbedder(url, model string, timeout time.Duration) *OllamaEmbedder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		URL:    url,
		Model:  model,
		Client: &http.Client{Timeout: timeout},
	}
}

// Embed requests an embedding for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model":  e.Model,
		"prompt": text,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("vector: build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector: ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector: ollama returned %s", resp.Status)
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("vector: decode ollama response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("vector: ollama returned an empty embedding")
	}
	return out.Embedding, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
