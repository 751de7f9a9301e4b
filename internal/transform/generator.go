package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"
	"github.com/zzappa/gradient-reading/internal/cache"
	"github.com/zzappa/gradient-reading/internal/llm"
)

// ErrEmptyReply 模型回复为空
var ErrEmptyReply = errors.New("empty reply from generation service")

// TransformRequest 一次生成调用
type TransformRequest struct {
	SystemPrompt string // 系统提示词
	Text         string // 待转换的源文本
	Level        int    // 目标级别
}

// Generator 生成服务适配器
// 返回的结果已经规整为GenerationResult，失败表示重试预算已耗尽
type Generator interface {
	Transform(ctx context.Context, req TransformRequest) (*GenerationResult, error)
}

// resultSchema 期望的输出结构，只用于记录偏差
const resultSchema = `{
  "type": "object",
  "required": ["paragraphs", "new_terms"],
  "properties": {
    "paragraphs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "footnote_refs"],
        "properties": {
          "text": {"type": "string"},
          "footnote_refs": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "new_terms": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["term", "translation"],
        "properties": {
          "term": {"type": "string"},
          "translation": {"type": "string"},
          "explanation": {"type": "string"},
          "category": {"type": "string"},
          "grammar_note": {"type": "string"},
          "pronunciation": {"type": "string"},
          "native_script": {"type": "string"}
        }
      }
    }
  }
}`

// LLMGenerator 基于llm.Client的生成适配器
type LLMGenerator struct {
	client    llm.Client
	logger    *logrus.Logger
	schema    *jsonschema.Schema
	attempts  uint
	delay     time.Duration
	maxTokens int
}

// GeneratorOption 生成适配器选项
type GeneratorOption func(*LLMGenerator)

// WithAttempts 设置总尝试次数（包含首次调用）
func WithAttempts(attempts uint) GeneratorOption {
	return func(g *LLMGenerator) {
		if attempts > 0 {
			g.attempts = attempts
		}
	}
}

// WithRetryDelay 设置重试间隔
func WithRetryDelay(delay time.Duration) GeneratorOption {
	return func(g *LLMGenerator) {
		g.delay = delay
	}
}

// WithMaxTokens 设置单次调用的最大输出Token数
func WithMaxTokens(tokens int) GeneratorOption {
	return func(g *LLMGenerator) {
		g.maxTokens = tokens
	}
}

// NewLLMGenerator 创建生成适配器，默认失败后重试一次
func NewLLMGenerator(client llm.Client, logger *logrus.Logger, opts ...GeneratorOption) (*LLMGenerator, error) {
	if client == nil {
		return nil, errors.New("llm client cannot be nil")
	}
	if logger == nil {
		logger = logrus.New()
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("transform.json", bytes.NewReader([]byte(resultSchema))); err != nil {
		return nil, fmt.Errorf("failed to load result schema: %w", err)
	}
	schema, err := compiler.Compile("transform.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile result schema: %w", err)
	}

	g := &LLMGenerator{
		client:   client,
		logger:   logger,
		schema:   schema,
		attempts: 2,
		delay:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Transform 调用模型并规整结果
func (g *LLMGenerator) Transform(ctx context.Context, req TransformRequest) (*GenerationResult, error) {
	var result *GenerationResult

	err := retry.Do(
		func() error {
			resp, err := g.client.Complete(ctx, &llm.CompletionRequest{
				System: req.SystemPrompt,
				Messages: []llm.Message{
					{Role: llm.RoleUser, Content: UserMessage(req.Level, req.Text)},
				},
				MaxTokens:  g.maxTokens,
				JSONOutput: true,
			})
			if err != nil {
				if !llm.IsRetryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}

			raw, err := ParseReply(resp.Text)
			if err != nil {
				return err
			}
			if err := g.schema.Validate(raw); err != nil {
				g.logger.WithFields(logrus.Fields{
					"level": req.Level,
					"model": resp.ModelName,
				}).Warnf("Generation reply does not match schema, coercing: %v", err)
			}

			result = CoerceResult(raw)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(g.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.logger.WithFields(logrus.Fields{
				"level":   req.Level,
				"attempt": n + 1,
			}).Warnf("Generation call failed, retrying: %v", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	return result, nil
}

// ParseReply 解析模型回复
// 依次尝试原文、去掉代码围栏后的内容和首尾括号之间的内容，都不是JSON时按纯文本返回
func ParseReply(content string) (any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyReply
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, nil
		}
	}
	return content, nil
}

func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	objectStart := strings.Index(content, "{")
	arrayStart := strings.Index(content, "[")

	start, closeChar := objectStart, "}"
	if objectStart < 0 || (arrayStart >= 0 && arrayStart < objectStart) {
		start, closeChar = arrayStart, "]"
	}
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(content, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

// CachingGenerator 按提示词和源文本缓存生成结果
// 缓存读写失败只记录日志，不影响生成
type CachingGenerator struct {
	next   Generator
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachingGenerator 创建带缓存的生成适配器
func NewCachingGenerator(next Generator, c cache.Cache, ttl time.Duration, logger *logrus.Logger) *CachingGenerator {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachingGenerator{next: next, cache: c, ttl: ttl, logger: logger}
}

// Transform 命中缓存时直接返回，否则调用下游并写入缓存
func (g *CachingGenerator) Transform(ctx context.Context, req TransformRequest) (*GenerationResult, error) {
	key := cache.HashKey("generation", strconv.Itoa(req.Level), req.SystemPrompt, req.Text)

	if cached, found, err := g.cache.Get(ctx, key); err != nil {
		g.logger.WithError(err).Warn("Failed to read generation cache")
	} else if found {
		var result GenerationResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			g.logger.WithField("level", req.Level).Debug("Generation cache hit")
			return &result, nil
		}
	}

	result, err := g.next.Transform(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := g.cache.Set(ctx, key, string(data), g.ttl); err != nil {
			g.logger.WithError(err).Warn("Failed to write generation cache")
		}
	}
	return result, nil
}
