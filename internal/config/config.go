package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 描述了 swiftyd 在启动阶段需要加载的核心配置。
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Transcript TranscriptConfig `yaml:"transcript"`
	LLM        LLMConfig        `yaml:"llm"`
	Data       DataConfig       `yaml:"data"`
	Alerting   AlertingConfig   `yaml:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
// MetricsAddress 非空时指标在独立端口上额外暴露一份。
type ServerConfig struct {
	Address        string `yaml:"address"`
	MetricsAddress string `yaml:"metrics_address"`
}

// LoggingConfig 控制结构化日志与审计日志输出。
type LoggingConfig struct {
	Level       string   `yaml:"level"`
	Format      string   `yaml:"format"`
	OutputPaths []string `yaml:"output_paths"`
	Audit       struct {
		Enabled    bool   `yaml:"enabled"`
		Path       string `yaml:"path"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"audit"`
}

// StorageConfig 统一描述会话存储与缓存的连接信息。
type StorageConfig struct {
	Sessions SessionStoreConfig `yaml:"sessions"`
	Cache    CacheConfig        `yaml:"cache"`
}

// SessionStoreConfig 支持内存实现与 MySQL 实现。
type SessionStoreConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `yaml:"conn_max_lifetime_seconds"`
}

// CacheConfig 描述会话读缓存使用的 Redis 连接。
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// TranscriptConfig 描述聊天记录事件的外发通道。
type TranscriptConfig struct {
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// LLMConfig 用于配置推理服务的调用方式。
type LLMConfig struct {
	URL            string `yaml:"url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	BackoffMillis  int    `yaml:"backoff_millis"`
}

// Timeout 返回单次推理调用的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff 返回重试前的固定等待时间。
func (c LLMConfig) Backoff() time.Duration {
	if c.BackoffMillis <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.BackoffMillis) * time.Millisecond
}

// DataConfig 指向征信与客户档案的只读数据文件。
type DataConfig struct {
	BureauPath  string `yaml:"bureau_path"`
	ProfilePath string `yaml:"profile_path"`
}

// AlertingConfig 描述推理降级等事件的告警通道。
type AlertingConfig struct {
	Slack struct {
		WebhookURL string `yaml:"webhook_url"`
		Channel    string `yaml:"channel"`
	} `yaml:"slack"`
	Email struct {
		SMTPAddr string   `yaml:"smtp_addr"`
		From     string   `yaml:"from"`
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		To       []string `yaml:"to"`
	} `yaml:"email"`
}

// ErrUnsupportedDriver 表示配置里指定了未知的存储或通道驱动。
var ErrUnsupportedDriver = errors.New("暂不支持的驱动类型")

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Storage.Sessions.Driver == "" {
		c.Storage.Sessions.Driver = "memory"
	}
	if c.Storage.Cache.TTLSeconds <= 0 {
		c.Storage.Cache.TTLSeconds = 1800
	}

	if c.Transcript.Driver == "" {
		c.Transcript.Driver = "none"
	}
	if c.Transcript.Queue == "" {
		c.Transcript.Queue = "swifty.transcripts"
	}

	if c.LLM.URL == "" {
		c.LLM.URL = "http://127.0.0.1:11434/api/chat"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.2:3b"
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 2
	}

	if c.Data.BureauPath == "" {
		c.Data.BureauPath = filepath.Join(baseDir, "..", "data", "bureau.json")
	}
	if c.Data.ProfilePath == "" {
		c.Data.ProfilePath = filepath.Join(baseDir, "..", "data", "profiles.json")
	}
}
