// Package ai wraps the Gemini API for embedding generation and
// cross-source question verification.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/stevenchzhen/prythia/internal/config"
	"github.com/stevenchzhen/prythia/internal/domain"
)

// Client implements domain.Embedder and domain.Verifier on top of the
// Gemini API. Both halves share one underlying genai client and the
// per-minute rate limits that come with the API key.
type Client struct {
	genai       *genai.Client
	embedModel  string
	verifyModel string
	embedDim    int32
	logger      *slog.Logger
}

// NewClient builds a Gemini-backed client from config. The API key is
// required; model names and embedding dimensionality come from config
// defaults unless overridden.
func NewClient(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: gemini api key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: create gemini client: %w", err)
	}
	return &Client{
		genai:       gc,
		embedModel:  cfg.EmbedModel,
		verifyModel: cfg.VerifyModel,
		embedDim:    int32(cfg.EmbedDim),
		logger:      logger,
	}, nil
}

// Embed returns one embedding per input text, in order. The mode selects
// the retrieval task type so that stored questions and incoming contracts
// land in compatible regions of the embedding space.
func (c *Client) Embed(ctx context.Context, texts []string, mode domain.EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	taskType := "RETRIEVAL_DOCUMENT"
	if mode == domain.EmbedModeQuery {
		taskType = "RETRIEVAL_QUERY"
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	resp, err := c.genai.Models.EmbedContent(ctx, c.embedModel, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: genai.Ptr(c.embedDim),
	})
	if err != nil {
		return nil, fmt.Errorf("ai: embed %d texts: %w", len(texts), mapAPIError(err))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ai: embed returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

const verifyPrompt = `You are comparing two prediction market questions.

Question A: %q
Question B: %q

Do these two questions resolve on the same underlying real-world outcome,
with the same polarity? Consider timeframes, thresholds, and subjects.
Answer with exactly one word: YES or NO.`

// VerifySameQuestion asks the model whether two market questions resolve on
// the same outcome. Any answer other than a clear YES is treated as no.
func (c *Client) VerifySameQuestion(ctx context.Context, contractTitle, eventTitle string) (bool, error) {
	prompt := fmt.Sprintf(verifyPrompt, contractTitle, eventTitle)

	resp, err := c.genai.Models.GenerateContent(ctx, c.verifyModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0)),
		MaxOutputTokens: 8,
	})
	if err != nil {
		return false, fmt.Errorf("ai: verify question pair: %w", mapAPIError(err))
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Text()))
	c.logger.DebugContext(ctx, "verification answer",
		slog.String("contract", contractTitle),
		slog.String("event", eventTitle),
		slog.String("answer", answer),
	)
	return strings.HasPrefix(answer, "YES"), nil
}

// mapAPIError translates Gemini transport errors into domain sentinels so
// callers can back off on quota exhaustion without importing genai.
func mapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.Code == 503) {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Message)
	}
	return err
}
