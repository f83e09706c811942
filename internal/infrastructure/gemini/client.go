package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/option"

	"github.com/oksasatya/perfume-storefront/pkg/breaker"
)

var (
	ErrUnavailable = errors.New("gemini unavailable")
	ErrEmpty       = errors.New("gemini returned no text")
)

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client asks a Gemini model for JSON answers.
type Client struct {
	client *genai.Client
	model  generator
	cb     *gobreaker.CircuitBreaker[string]
}

func NewClient(ctx context.Context, apiKey, modelName string, logger *logrus.Logger) (*Client, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	m := c.GenerativeModel(modelName)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.4)
	return &Client{client: c, model: m, cb: breaker.New[string]("gemini", logger)}, nil
}

// GenerateJSON sends prompt and returns the concatenated text parts of the first candidate.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	out, err := c.cb.Execute(func() (string, error) {
		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		return firstText(resp)
	})
	if breaker.IsOpen(err) {
		return "", ErrUnavailable
	}
	return out, err
}

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmpty
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s, nil
		}
	}
	return "", ErrEmpty
}
