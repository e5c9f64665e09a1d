package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"midas/pkg/errors"
	"midas/pkg/logger"
)

const chatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// Schema describes a JSON schema handed to the model as a structured output
// contract. Raw holds the schema body as a JSON object.
type Schema struct {
	Name string
	Raw  json.RawMessage
}

// Client talks to the OpenAI chat completions API and parses structured
// JSON-schema responses into caller-supplied types.
type Client struct {
	apiKey      string
	model       string
	temperature float64
	httpc       *http.Client
	limiter     *rate.Limiter
	log         *logger.Logger
}

// NewClient creates an OpenAI client with a per-second request cap.
func NewClient(apiKey, model string, temperature float64, timeout time.Duration) *Client {
	return &Client{
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpc:       &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		log:         logger.Get().With("component", "ai_client"),
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type jsonSchemaFormat struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Parse sends a system/user prompt pair with a structured output schema and
// unmarshals the model's reply into out. Schema violations and refusals are
// reported as ErrAgentResponse so callers can retry.
func (c *Client) Parse(ctx context.Context, system, user string, schema Schema, out interface{}) error {
	if c.apiKey == "" {
		return errors.Wrap(errors.ErrInvalidInput, "openai API key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "openai rate limit wait")
	}

	req := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   schema.Name,
				Strict: true,
				Schema: schema.Raw,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal openai request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, chatCompletionsURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create openai request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return errors.Wrap(errors.ErrExternal, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read openai response")
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return errors.Wrapf(err, "decode openai response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return errors.Wrapf(errors.ErrExternal, "openai returned %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return errors.Wrap(errors.ErrAgentResponse, "openai returned no choices")
	}

	choice := parsed.Choices[0]
	if choice.Message.Refusal != "" {
		return errors.Wrapf(errors.ErrAgentResponse, "model refused: %s", choice.Message.Refusal)
	}
	if choice.FinishReason == "length" {
		return errors.Wrap(errors.ErrAgentResponse, "response truncated")
	}

	if err := json.Unmarshal([]byte(choice.Message.Content), out); err != nil {
		c.log.Warnw("Structured output parse failed", "schema", schema.Name, "error", err)
		return errors.Wrapf(errors.ErrAgentResponse, "parse %s output: %v", schema.Name, err)
	}
	return nil
}
