package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIClient OpenAI兼容的Chat Completions客户端实现
type OpenAIClient struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIClient 创建OpenAI客户端，BaseURL可指向任意兼容服务
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = ModelGPT4oMini
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:      openai.NewClient(reqOpts...),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Complete 调用Chat Completions API
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	system, messages := splitSystem(req)
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		MaxCompletionTokens: openai.Int(int64(pickMaxTokens(req.MaxTokens, c.maxTokens))),
		Messages:            make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1),
	}
	if system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(system))
	}
	for _, msg := range messages {
		if msg.Role == RoleAssistant {
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		} else {
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}
	if temp := pickTemperature(req.Temperature, c.temperature); temp != nil {
		params.Temperature = openai.Float(float64(*temp))
	}
	if req.JSONOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(ctx, err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	choice := completion.Choices[0]
	return &Response{
		Text:         choice.Message.Content,
		TokenCount:   int(completion.Usage.TotalTokens),
		ModelName:    completion.Model,
		FinishReason: choice.FinishReason,
		FinishTime:   time.Now(),
	}, nil
}

func mapOpenAIError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return NewLLMError(CodeFromStatus(apiErr.StatusCode),
			fmt.Sprintf("openai API error (status %d): %s", apiErr.StatusCode, msg))
	}
	if ctx.Err() != nil {
		return NewLLMError(ErrCodeTimeout, ctx.Err().Error())
	}
	return NewLLMError(ErrCodeNetworkError, err.Error())
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
