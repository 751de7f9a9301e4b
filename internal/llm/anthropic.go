package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient Anthropic Messages API客户端实现
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewAnthropicClient 创建Anthropic客户端
func NewAnthropicClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = ModelClaudeSonnet
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(reqOpts...),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name 返回模型名称
func (c *AnthropicClient) Name() string {
	return c.model
}

// Complete 调用Messages API
// Messages API没有JSON模式，JSONOutput由提示词约束
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	system, messages := splitSystem(req)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(pickMaxTokens(req.MaxTokens, c.maxTokens)),
		Messages:  make([]anthropic.MessageParam, 0, len(messages)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if temp := pickTemperature(req.Temperature, c.temperature); temp != nil {
		params.Temperature = anthropic.Float(float64(*temp))
	}
	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(ctx, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	return &Response{
		Text:         sb.String(),
		TokenCount:   int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		ModelName:    string(msg.Model),
		FinishReason: string(msg.StopReason),
		FinishTime:   time.Now(),
	}, nil
}

func mapAnthropicError(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return NewLLMError(CodeFromStatus(apiErr.StatusCode),
			fmt.Sprintf("anthropic API error (status %d): %s", apiErr.StatusCode, apiErr.Error()))
	}
	if ctx.Err() != nil {
		return NewLLMError(ErrCodeTimeout, ctx.Err().Error())
	}
	return NewLLMError(ErrCodeNetworkError, err.Error())
}

// pickMaxTokens 请求级别的设置优先
func pickMaxTokens(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultConfig().MaxTokens
}

func pickTemperature(requested *float32, fallback float32) *float32 {
	if requested != nil {
		return requested
	}
	if fallback > 0 {
		return &fallback
	}
	return nil
}

func init() {
	RegisterClient("anthropic", NewAnthropicClient)
}
