// Package anthropic implements llm.VisionProvider and llm.TextProvider on the
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/unkn0wn-root/analysiscache/llm"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 2048
)

var errEmpty = errors.New("no text in response")

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int64
}

type Client struct {
	c     sdk.Client
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
	c := &Client{c: sdk.NewClient(opts...), model: cfg.Model, max: cfg.MaxTokens}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.max <= 0 {
		c.max = DefaultMaxTokens
	}
	return c
}

func (c *Client) Describe(ctx context.Context, instruction, asset string) (string, error) {
	a, err := llm.LoadAsset(asset)
	if err != nil {
		return "", &llm.ProviderError{Provider: "anthropic", Op: "describe", Err: err}
	}
	var img sdk.ContentBlockParamUnion
	if a.Remote() {
		img = sdk.NewImageBlock(sdk.URLImageSourceParam{URL: a.URL})
	} else {
		img = sdk.NewImageBlockBase64(a.MediaType, a.Base64())
	}
	return c.send(ctx, "describe", instruction, sdk.NewUserMessage(img))
}

func (c *Client) Complete(ctx context.Context, instruction, input string) (string, error) {
	return c.send(ctx, "complete", instruction, sdk.NewUserMessage(sdk.NewTextBlock(input)))
}

func (c *Client) send(ctx context.Context, op, instruction string, msg sdk.MessageParam) (string, error) {
	resp, err := c.c.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.max,
		System:    []sdk.TextBlockParam{{Text: instruction}},
		Messages:  []sdk.MessageParam{msg},
	})
	if err != nil {
		return "", &llm.ProviderError{Provider: "anthropic", Op: op, Err: err}
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", &llm.ProviderError{Provider: "anthropic", Op: op, Err: errEmpty}
	}
	return b.String(), nil
}
