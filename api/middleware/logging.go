package middleware

import (
	"bytes"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxLoggedBody 调试日志中记录的请求/响应体最大字节数
// 项目原文和快照可能很长，超出部分截断
const maxLoggedBody = 2048

// TraceIDKey 上下文和响应头中的追踪ID键
const (
	TraceIDKey    = "TraceID"
	TraceIDHeader = "X-Trace-ID"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	log.SetLevel(logrus.InfoLevel)
}

// Logger 访问日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"status_code": c.Writer.Status(),
			"latency":     time.Since(start).String(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
			"route":       c.FullPath(),
			"trace_id":    c.GetString(TraceIDKey),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("HTTP request failed")
			return
		}
		entry.Info("HTTP request")
	}
}

// RequestLogger 在debug级别记录请求体
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if log.IsLevelEnabled(logrus.DebugLevel) && c.Request.Body != nil {
			body, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))

			if len(body) > 0 {
				log.WithFields(logrus.Fields{
					"method":   c.Request.Method,
					"path":     c.Request.URL.Path,
					"size":     len(body),
					"body":     truncateBody(body),
					"trace_id": c.GetString(TraceIDKey),
				}).Debug("Request body")
			}
		}

		c.Next()
	}
}

// ResponseLogger 在debug级别记录响应体
func ResponseLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !log.IsLevelEnabled(logrus.DebugLevel) {
			c.Next()
			return
		}

		writer := &responseBodyWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		c.Next()

		log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"size":        writer.size,
			"response":    truncateBody(writer.body.Bytes()),
			"trace_id":    c.GetString(TraceIDKey),
		}).Debug("Response body")
	}
}

// responseBodyWriter 只缓存响应体的前maxLoggedBody字节
type responseBodyWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
	size int
}

func (r *responseBodyWriter) Write(b []byte) (int, error) {
	r.size += len(b)
	if room := maxLoggedBody + 1 - r.body.Len(); room > 0 {
		if room > len(b) {
			room = len(b)
		}
		r.body.Write(b[:room])
	}
	return r.ResponseWriter.Write(b)
}

// truncateBody 截断过长的内容，不切断UTF-8字符
func truncateBody(body []byte) string {
	if len(body) <= maxLoggedBody {
		return string(body)
	}
	cut := maxLoggedBody
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + "...(truncated)"
}

// SetTraceID 将追踪ID设置到上下文和响应头中
// 请求未携带时生成新的UUID
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetLogger 返回HTTP层共用的日志记录器
// cmd在启动时设置它的级别和输出
func GetLogger() *logrus.Logger {
	return log
}
