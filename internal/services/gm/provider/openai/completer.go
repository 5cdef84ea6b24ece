// Package openai adapts OpenAI-compatible chat completion endpoints to the
// core.Completer interface, including the tool-call loop.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"github.com/integerman/jaimes/internal/platform/timeouts"
	"github.com/integerman/jaimes/internal/services/gm/capability"
	"github.com/integerman/jaimes/internal/services/gm/core"
	"github.com/integerman/jaimes/internal/services/gm/transcript"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	// DefaultModel is used when neither the request nor the config names one.
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxToolRounds bounds model/tool round trips per request.
	DefaultMaxToolRounds = 8
)

// Config configures the completer.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxToolRounds bounds tool round trips; zero uses DefaultMaxToolRounds.
	MaxToolRounds int
	MaxRetries    int
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Completer calls the Chat Completions API.
type Completer struct {
	client        openaisdk.Client
	model         string
	maxToolRounds int
}

// New builds a completer from cfg.
func New(cfg Config) (*Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.ModelRequest
	}
	opts = append(opts, option.WithRequestTimeout(timeout))

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	rounds := cfg.MaxToolRounds
	if rounds <= 0 {
		rounds = DefaultMaxToolRounds
	}
	return &Completer{
		client:        openaisdk.NewClient(opts...),
		model:         model,
		maxToolRounds: rounds,
	}, nil
}

// Complete sends req and resolves tool calls until the model answers with
// content only. Content from every round is returned as fragments.
func (c *Completer) Complete(ctx context.Context, req core.Request) (core.Response, error) {
	messages, err := ConvertMessages(req.Messages)
	if err != nil {
		return core.Response{}, err
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	tools := make(map[string]capability.Capability, len(req.Tools))
	if len(req.Tools) > 0 && req.ToolChoice != core.ToolChoiceNone {
		for _, tool := range req.Tools {
			tools[tool.Name()] = tool
			params.Tools = append(params.Tools, ToolParam(tool))
		}
		params.ToolChoice = openaisdk.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openaisdk.String(string(openaisdk.ChatCompletionToolChoiceOptionAutoAuto)),
		}
	}

	var resp core.Response
	for round := 0; round < c.maxToolRounds; round++ {
		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return core.Response{}, fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return core.Response{}, fmt.Errorf("chat completion returned no choices")
		}
		message := completion.Choices[0].Message
		if message.Content != "" {
			resp.Fragments = append(resp.Fragments, message.Content)
		}
		if len(message.ToolCalls) == 0 {
			return resp, nil
		}

		params.Messages = append(params.Messages, message.ToParam())
		for _, call := range message.ToolCalls {
			result := invokeTool(ctx, tools, call.Function.Name, call.Function.Arguments)
			params.Messages = append(params.Messages, openaisdk.ToolMessage(result, call.ID))
		}
	}
	return core.Response{}, apperrors.WithMetadata(apperrors.CodeToolRoundsExceeded,
		fmt.Sprintf("model kept calling tools after %d rounds", c.maxToolRounds),
		map[string]string{"stage": req.Stage})
}

// invokeTool runs one tool call. Failures are reported back to the model as
// text so it can recover.
func invokeTool(ctx context.Context, tools map[string]capability.Capability, name, rawArgs string) string {
	tool, ok := tools[name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", name)
	}
	args, err := DecodeArgs(rawArgs)
	if err != nil {
		return "error: " + err.Error()
	}
	result, err := tool.Invoke(ctx, args)
	if err != nil {
		return "error: " + err.Error()
	}
	return result
}

// DecodeArgs converts a JSON object of tool arguments into string arguments.
// Non-string values keep their JSON text.
func DecodeArgs(raw string) (capability.Args, error) {
	if strings.TrimSpace(raw) == "" {
		return capability.Args{}, nil
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	args := make(capability.Args, len(values))
	for key, value := range values {
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			args[key] = text
			continue
		}
		args[key] = string(value)
	}
	return args, nil
}

// ToolParam describes a capability as a function tool.
func ToolParam(c capability.Capability) openaisdk.ChatCompletionToolParam {
	properties := make(map[string]any)
	required := []string{}
	for _, param := range c.Parameters() {
		properties[param.Name] = map[string]any{
			"type":        "string",
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}
	return openaisdk.ChatCompletionToolParam{
		Function: shared.FunctionDefinitionParam{
			Name:        c.Name(),
			Description: openaisdk.String(c.Description()),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// ConvertMessages maps transcript turns to chat messages. Tool turns carry
// their call id in Author. Any other role fails the conversion.
func ConvertMessages(turns []transcript.Turn) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case transcript.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(turn.Text))
		case transcript.RoleUser:
			messages = append(messages, openaisdk.UserMessage(turn.Text))
		case transcript.RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(turn.Text))
		case transcript.RoleTool:
			messages = append(messages, openaisdk.ToolMessage(turn.Text, turn.Author))
		default:
			return nil, apperrors.WithMetadata(apperrors.CodeUnknownRole,
				fmt.Sprintf("unknown chat role %q", turn.Role),
				map[string]string{"role": string(turn.Role)})
		}
	}
	return messages, nil
}
