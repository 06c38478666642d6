package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Schema names a JSON Schema document the model's answer must conform to.
type Schema struct {
	Name       string
	Definition json.RawMessage
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	// CompleteJSON asks for a single JSON document matching schema and returns
	// it without surrounding markdown. Conformance is not guaranteed; callers
	// validate the result.
	CompleteJSON(ctx context.Context, messages []Message, schema Schema) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

// StripFences removes a surrounding ```json code fence, which some providers
// add even when asked for bare JSON.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// withSchemaInstruction appends the schema to the last user message for
// providers without a native schema parameter.
func withSchemaInstruction(messages []Message, schema Schema) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)

	instruction := fmt.Sprintf("\n\nRespond with only a JSON object that conforms to this JSON Schema (%s). Do not wrap it in markdown.\n%s", schema.Name, string(schema.Definition))
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == RoleUser {
			out[i].Content += instruction
			return out
		}
	}
	return append(out, Message{Role: RoleUser, Content: strings.TrimSpace(instruction)})
}
