package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`    // 角色
	Content string      `json:"content"` // 内容
}

// CompletionRequest 补全请求
type CompletionRequest struct {
	System      string    // 系统提示词
	Messages    []Message // 对话消息
	MaxTokens   int       // 覆盖客户端的最大生成Token数，0表示使用默认值
	Temperature *float32  // 覆盖客户端的采样温度
	JSONOutput  bool      // 要求模型只输出JSON对象（提供方支持时生效）
}

// Response 统一的响应结构
type Response struct {
	Text         string    // 生成的文本
	TokenCount   int       // 使用的token数
	ModelName    string    // 使用的模型名称
	FinishReason string    // 结束原因
	FinishTime   time.Time // 完成时间
}

// TongyiRequest 通义千问请求结构
type TongyiRequest struct {
	Model      string              `json:"model"`                // 模型名称
	Input      *TongyiRequestInput `json:"input"`                // 输入内容
	Parameters *TongyiParameters   `json:"parameters,omitempty"` // 可选参数
}

// TongyiRequestInput 请求输入内容
type TongyiRequestInput struct {
	Messages []Message `json:"messages"` // 消息列表
}

// TongyiParameters 请求参数
type TongyiParameters struct {
	Temperature    *float32              `json:"temperature,omitempty"`     // 采样温度
	MaxTokens      *int                  `json:"max_tokens,omitempty"`      // 最大生成Token数
	ResultFormat   string                `json:"result_format,omitempty"`   // 返回格式，message或text
	ResponseFormat *TongyiResponseFormat `json:"response_format,omitempty"` // 结构化输出格式
}

// TongyiResponseFormat 结构化输出格式
type TongyiResponseFormat struct {
	Type string `json:"type"` // text或json_object
}

// TongyiResponse 通义千问响应结构
type TongyiResponse struct {
	RequestID string       `json:"request_id"` // 请求ID
	Code      string       `json:"code"`       // 错误码(如果有)
	Message   string       `json:"message"`    // 错误消息(如果有)
	Output    TongyiOutput `json:"output"`     // 输出结果
	Usage     TongyiUsage  `json:"usage"`      // 资源使用情况
}

// TongyiOutput 输出结构
type TongyiOutput struct {
	Text    *string        `json:"text"`    // 文本输出(当result_format为text时)
	Choices []TongyiChoice `json:"choices"` // 选择列表(当result_format为message时)
}

// TongyiChoice 输出选择
type TongyiChoice struct {
	FinishReason string  `json:"finish_reason"` // 结束原因
	Message      Message `json:"message"`       // 消息内容
}

// TongyiUsage 资源使用情况
type TongyiUsage struct {
	InputTokens  int `json:"input_tokens"`  // 输入token数
	OutputTokens int `json:"output_tokens"` // 输出token数
	TotalTokens  int `json:"total_tokens"`  // 总token数
}

// Model 常用模型名称
const (
	ModelClaudeSonnet = "claude-sonnet-4-5" // Anthropic默认模型
	ModelGPT4oMini    = "gpt-4o-mini"       // OpenAI默认模型
	ModelQwenPlus     = "qwen-plus"         // 通义千问-Plus模型
	ModelQwenMax      = "qwen-max"          // 通义千问-Max模型
)
