package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Lock      LockConfig      `mapstructure:"lock"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Transform TransformConfig `mapstructure:"transform"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`                                     // 服务器主机
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`          // 服务器端口
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"` // gin运行模式
	EnableCORS      bool          `mapstructure:"enable_cors"`                              // 是否允许跨域
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`        // 优雅退出等待时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"` // 日志级别
	Format     string `mapstructure:"format" validate:"oneof=json text"`            // 日志格式
	File       string `mapstructure:"file"`                                         // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`                 // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`                 // 保留的旧日志文件数
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`                // 旧日志保留天数
	Compress   bool   `mapstructure:"compress"`                                     // 是否压缩旧日志
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type         string `mapstructure:"type" validate:"oneof=sqlite"` // 数据库类型
	DSN          string `mapstructure:"dsn" validate:"required"`      // 数据源名称
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"min=0"`
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=anthropic openai tongyi"` // 提供商
	Model       string        `mapstructure:"model"`                                             // 模型名称
	APIKey      string        `mapstructure:"api_key"`                                           // API密钥
	Endpoint    string        `mapstructure:"endpoint"`                                          // API端点
	MaxTokens   int           `mapstructure:"max_tokens" validate:"min=0"`                       // 最大生成token数量
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`                // 采样温度
	Timeout     time.Duration `mapstructure:"timeout"`                                           // 请求超时时间
}

// CacheConfig 生成结果缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`                             // 是否启用缓存
	Type     string `mapstructure:"type" validate:"oneof=memory redis"` // 缓存类型
	Address  string `mapstructure:"address"`                            // Redis地址
	Password string `mapstructure:"password"`                           // Redis密码
	DB       int    `mapstructure:"db"`                                 // Redis数据库
	TTL      int    `mapstructure:"ttl" validate:"min=0"`               // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool          `mapstructure:"enable"`                       // 是否通过任务队列调度转换
	RedisAddr     string        `mapstructure:"redis_addr"`                   // Redis地址
	RedisPassword string        `mapstructure:"redis_password"`               // Redis密码
	RedisDB       int           `mapstructure:"redis_db"`                     // Redis数据库编号
	Concurrency   int           `mapstructure:"concurrency" validate:"min=1"` // 任务处理并发数
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`                 // 单个任务最长执行时间
	Worker        bool          `mapstructure:"worker"`                       // 本进程是否同时处理队列任务
}

// LockConfig 文档锁配置
type LockConfig struct {
	Backend          string        `mapstructure:"backend" validate:"oneof=gorm redis postgres"` // 锁后端
	TTL              time.Duration `mapstructure:"ttl"`                                          // 租约有效期
	PollInterval     time.Duration `mapstructure:"poll_interval"`                                // 获取锁的轮询间隔
	AcquireTimeout   time.Duration `mapstructure:"acquire_timeout"`                              // 获取锁的最长等待时间
	RedisAddr        string        `mapstructure:"redis_addr"`                                   // Redis地址
	RedisPassword    string        `mapstructure:"redis_password"`                               // Redis密码
	RedisDB          int           `mapstructure:"redis_db"`                                     // Redis数据库编号
	PostgresDSN      string        `mapstructure:"postgres_dsn"`                                 // Postgres连接串
	PostgresMaxConns int32         `mapstructure:"postgres_max_conns"`                           // Postgres连接池大小
}

// StorageConfig 快照存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型
	Path      string `mapstructure:"path"`                              // 本地存储路径
	Bucket    string `mapstructure:"bucket"`                            // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"`                          // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// TransformConfig 转换流程配置
type TransformConfig struct {
	ChunkWords int           `mapstructure:"chunk_words" validate:"min=1"`                 // 每次调用的目标词数
	CallWords  int           `mapstructure:"call_words" validate:"gtefield=ChunkWords"`    // 单次调用词数上限
	TailWords  int           `mapstructure:"tail_words" validate:"min=1"`                  // 连续性窗口词数
	Weights    []float64     `mapstructure:"weights" validate:"omitempty,len=7,dive,gt=0"` // 7个级别的权重
	Attempts   uint          `mapstructure:"attempts" validate:"min=1"`                    // 每次调用的总尝试次数
	RetryDelay time.Duration `mapstructure:"retry_delay"`                                  // 重试间隔
}

// Load 从.env、配置文件和环境变量加载配置
// 配置文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	var config Config

	// .env中的变量只在进程环境中不存在时生效
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %v", err)
	}

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logrus.Warnf("Config file not found at %s, using defaults", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		logrus.Infof("Using config file: %s", v.ConfigFileUsed())
	}

	// 支持环境变量覆盖，例如 LLM_API_KEY 覆盖 llm.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	processEnvironmentVariables(&config)

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate 校验配置
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// processEnvironmentVariables 展开 ${VAR} 形式的密钥
func processEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.LLM.APIKey,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
		&cfg.Lock.RedisPassword,
		&cfg.Lock.PostgresDSN,
	} {
		*field = expandEnv(*field)
	}
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.enable_cors", false)
	v.SetDefault("server.shutdown_timeout", "30s")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/gradient.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)

	// LLM默认配置
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "${LLM_API_KEY}")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "180s")

	// 缓存默认配置
	v.SetDefault("cache.enable", false)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.ttl", 7*24*3600) // 7天

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.task_timeout", "6h")
	v.SetDefault("queue.worker", true)

	// 文档锁默认配置
	v.SetDefault("lock.backend", "gorm")
	v.SetDefault("lock.ttl", "2m")
	v.SetDefault("lock.poll_interval", "200ms")
	v.SetDefault("lock.acquire_timeout", "10m")
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.postgres_max_conns", 4)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./data/objects")
	v.SetDefault("storage.bucket", "gradient")
	v.SetDefault("storage.use_ssl", false)

	// 转换流程默认配置
	v.SetDefault("transform.chunk_words", 250)
	v.SetDefault("transform.call_words", 900)
	v.SetDefault("transform.tail_words", 140)
	v.SetDefault("transform.weights", []float64{0.7, 0.8, 1.25, 1.3, 1.25, 0.95, 0.75})
	v.SetDefault("transform.attempts", 2)
	v.SetDefault("transform.retry_delay", "2s")
}
