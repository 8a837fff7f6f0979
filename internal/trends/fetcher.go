package trends

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/phuslu/log"

	"FundLetter/internal/model"
)

// ChatModel is the part of an eino chat model the fetcher needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// NewChatModel connects to an OpenAI-compatible chat endpoint (Perplexity by default).
func NewChatModel(ctx context.Context, apiKey, baseURL, modelName string) (ChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("trend model api key is empty")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
		Timeout: 2 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return cm, nil
}

// Fetcher asks the chat model for the latest trends of the fund's theme.
type Fetcher struct {
	Model  ChatModel
	Theme  string
	Logger *log.Logger
}

// NewFetcher creates a Fetcher. A nil model makes every fetch return the fallback.
func NewFetcher(cm ChatModel, theme string, logger *log.Logger) *Fetcher {
	return &Fetcher{Model: cm, Theme: theme, Logger: logger}
}

// Fetch returns the trends summary. It never fails: any problem with the
// model or its response yields the static fallback.
func (f *Fetcher) Fetch(ctx context.Context) model.TrendsSummary {
	if f.Model == nil {
		f.Logger.Warn().Msg("trend model not configured, using fallback trends")
		return Fallback()
	}

	resp, err := f.Model.Generate(ctx, f.messages())
	if err != nil {
		f.Logger.Warn().Err(err).Msg("error fetching trends, using fallback")
		return Fallback()
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		f.Logger.Warn().Msg("empty trends response, using fallback")
		return Fallback()
	}

	parsed, err := Parse(resp.Content)
	if err != nil {
		f.Logger.Warn().Err(err).Int("length", len(resp.Content)).Msg("unparseable trends response, using fallback")
		return Fallback()
	}
	if parsed.DefaultHighlights {
		f.Logger.Warn().Msg("trends response has no highlights, using default highlights")
	}
	f.Logger.Info().
		Str("parser", parsed.Attempt).
		Int("highlights", len(parsed.Trends.Highlights)).
		Msg("trends fetched")
	return parsed.Trends
}

func (f *Fetcher) messages() []*schema.Message {
	theme := f.Theme
	if theme == "" {
		theme = "American reindustrialization"
	}
	system := fmt.Sprintf(`You are a specialized analyst focused on %s. Provide a concise, factual summary of the latest trends, news, and future developments.

Respond with JSON only, no other text, in exactly this shape:
{
  "summary": "two to three short paragraphs",
  "highlights": ["highlight 1", "highlight 2", "highlight 3", "highlight 4", "highlight 5"]
}`, theme)
	user := fmt.Sprintf("What are the latest trends, news, and upcoming developments in %s? "+
		"Focus on key initiatives, investments, and policy changes within the last month.", theme)
	return []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
}
