package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// 通义千问API端点
	defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
)

// TongyiClient 通义千问大模型客户端实现
type TongyiClient struct {
	apiKey      string       // API密钥
	baseURL     string       // API端点
	model       string       // 模型名称
	httpClient  *http.Client // HTTP客户端
	maxRetries  int          // 最大重试次数
	maxTokens   int          // 最大生成Token数
	temperature float32      // 温度参数
}

// NewTongyiClient 创建新的通义千问大模型客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTongyiEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = ModelQwenPlus
	}

	return &TongyiClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Complete 调用DashScope文本生成接口
func (c *TongyiClient) Complete(ctx context.Context, req *CompletionRequest) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	system, messages := splitSystem(req)
	input := make([]Message, 0, len(messages)+1)
	if system != "" {
		input = append(input, Message{Role: RoleSystem, Content: system})
	}
	input = append(input, messages...)

	maxTokens := pickMaxTokens(req.MaxTokens, c.maxTokens)
	params := &TongyiParameters{
		ResultFormat: "message",
		MaxTokens:    &maxTokens,
		Temperature:  pickTemperature(req.Temperature, c.temperature),
	}
	if req.JSONOutput {
		params.ResponseFormat = &TongyiResponseFormat{Type: "json_object"}
	}

	resp, err := c.sendRequest(ctx, &TongyiRequest{
		Model:      c.model,
		Input:      &TongyiRequestInput{Messages: input},
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}

	return c.processResponse(resp)
}

// sendRequest 发送API请求并解析响应，5xx和网络错误按指数退避重试
func (c *TongyiClient) sendRequest(ctx context.Context, req *TongyiRequest) (*TongyiResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonData))
		if err != nil {
			return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(httpReq)
		if err == nil && resp.StatusCode < 500 {
			lastErr = nil
			break
		}
		if err != nil {
			lastErr = NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
			resp = nil
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = NewLLMError(CodeFromStatus(resp.StatusCode),
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
		resp = nil
	}

	if resp == nil {
		return nil, lastErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Message != "" {
			return nil, NewLLMError(CodeFromStatus(resp.StatusCode),
				fmt.Sprintf("API error: %s (%s)", errResp.Message, errResp.Code))
		}
		return nil, NewLLMError(CodeFromStatus(resp.StatusCode),
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var tongyiResp TongyiResponse
	if err := json.Unmarshal(body, &tongyiResp); err != nil {
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("failed to parse response: %v", err))
	}
	if tongyiResp.Code != "" {
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error: %s (%s)", tongyiResp.Message, tongyiResp.Code))
	}

	return &tongyiResp, nil
}

// processResponse 处理通义千问的响应
func (c *TongyiClient) processResponse(resp *TongyiResponse) (*Response, error) {
	result := &Response{
		ModelName:  c.model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}

	if resp.Output.Text != nil {
		result.Text = *resp.Output.Text
	} else if len(resp.Output.Choices) > 0 {
		choice := resp.Output.Choices[0]
		result.Text = choice.Message.Content
		result.FinishReason = choice.FinishReason
	}
	if strings.TrimSpace(result.Text) == "" {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	return result, nil
}

// 在包初始化时注册通义千问客户端
func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
