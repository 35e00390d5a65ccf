// Package openai implements llm.VisionProvider and llm.TextProvider on the
// chat completions API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	oai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/unkn0wn-root/analysiscache/llm"
)

const DefaultModel = "gpt-4o"

var errEmpty = errors.New("empty completion")

type Config struct {
	APIKey    string
	Model     string // default DefaultModel
	BaseURL   string
	MaxTokens int64         // 0 => provider default
	Timeout   time.Duration // per request; 0 => none
}

type Client struct {
	c     oai.Client
	model string
	max   int64
}

var (
	_ llm.VisionProvider = (*Client)(nil)
	_ llm.TextProvider   = (*Client)(nil)
)

func New(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{c: oai.NewClient(opts...), model: model, max: cfg.MaxTokens}
}

func (c *Client) Describe(ctx context.Context, instruction, asset string) (string, error) {
	a, err := llm.LoadAsset(asset)
	if err != nil {
		return "", &llm.ProviderError{Provider: "openai", Op: "describe", Err: err}
	}
	msgs := []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(instruction),
		oai.UserMessage([]oai.ChatCompletionContentPartUnionParam{
			oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: a.DataURL()}),
		}),
	}
	return c.complete(ctx, "describe", msgs)
}

func (c *Client) Complete(ctx context.Context, instruction, input string) (string, error) {
	msgs := []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(instruction),
		oai.UserMessage(input),
	}
	return c.complete(ctx, "complete", msgs)
}

func (c *Client) complete(ctx context.Context, op string, msgs []oai.ChatCompletionMessageParamUnion) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(c.model),
		Messages: msgs,
	}
	if c.max > 0 {
		params.MaxCompletionTokens = oai.Int(c.max)
	}
	resp, err := c.c.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &llm.ProviderError{Provider: "openai", Op: op, Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &llm.ProviderError{Provider: "openai", Op: op, Err: errEmpty}
	}
	return resp.Choices[0].Message.Content, nil
}
