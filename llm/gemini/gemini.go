// Package gemini implements llm.VisionProvider and llm.TextProvider on the
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/unkn0wn-root/analysiscache/llm"
)

const DefaultModel = "gemini-2.5-flash"

var errEmpty = errors.New("no text in response")

type Config struct {
	APIKey string
	Model  string
}

type Client struct {
	c     *genai.Client
	model string
}

var (
	_ llm.VisionProvider = (*Client)(nil)
	_ llm.TextProvider   = (*Client)(nil)
)

func New(ctx context.Context, cfg Config) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{c: c, model: model}, nil
}

func (c *Client) Describe(ctx context.Context, instruction, asset string) (string, error) {
	a, err := llm.LoadAsset(asset)
	if err != nil {
		return "", &llm.ProviderError{Provider: "gemini", Op: "describe", Err: err}
	}
	var part *genai.Part
	if a.Remote() {
		part = genai.NewPartFromURI(a.URL, a.MediaType)
	} else {
		part = genai.NewPartFromBytes(a.Data, a.MediaType)
	}
	return c.generate(ctx, "describe", instruction, part)
}

func (c *Client) Complete(ctx context.Context, instruction, input string) (string, error) {
	return c.generate(ctx, "complete", instruction, genai.NewPartFromText(input))
}

func (c *Client) generate(ctx context.Context, op, instruction string, part *genai.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	resp, err := c.c.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", &llm.ProviderError{Provider: "gemini", Op: op, Err: err}
	}
	text := resp.Text()
	if text == "" {
		return "", &llm.ProviderError{Provider: "gemini", Op: op, Err: errEmpty}
	}
	return text, nil
}
