package llm

import (
	"context"
	"time"
)

// Client 大模型客户端接口
// 负责与生成式文本服务交互，一次调用对应一次补全请求
type Client interface {
	// Complete 发送系统提示词和消息，返回模型的完整回复
	Complete(ctx context.Context, req *CompletionRequest) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Config 大模型客户端配置
type Config struct {
	APIKey      string        // API密钥
	BaseURL     string        // API基础URL，为空时使用各提供方的默认地址
	Model       string        // 模型名称，为空时使用各提供方的默认模型
	Timeout     time.Duration // 请求超时时间
	MaxRetries  int           // SDK层面的最大重试次数
	MaxTokens   int           // 最大生成Token数
	Temperature float32       // 采样温度(0.0-2.0)
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:     180 * time.Second,
		MaxRetries:  0,
		MaxTokens:   8192,
		Temperature: 0.3,
	}
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL 设置API基础URL
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithMaxTokens 设置最大生成Token数
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature 设置采样温度
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Factory 大模型客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的大模型客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册大模型客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建大模型客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}

// validateRequest 校验补全请求
func validateRequest(req *CompletionRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}
	for _, msg := range req.Messages {
		if msg.Content != "" {
			return nil
		}
	}
	return NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
}

// splitSystem 将消息中的system角色合并进系统提示词
func splitSystem(req *CompletionRequest) (string, []Message) {
	system := req.System
	messages := make([]Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		messages = append(messages, msg)
	}
	return system, messages
}
