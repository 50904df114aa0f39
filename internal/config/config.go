// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，由 Init 在进程启动时写入一次，此后只读。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Confidence  ConfidenceConfig  `mapstructure:"confidence"`
	ManualInput ManualInputConfig `mapstructure:"manual_input"`
	Session     SessionConfig     `mapstructure:"session"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。DSN 为空时不记录分析历史。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储分析事件投递相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// LLMConfig 存储大语言模型相关的配置，用于生成分析解读。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置解读时使用的系统提示。
type LLMPromptConfig struct {
	Rules string `mapstructure:"rules"`
}

// Enabled 表示是否配置了可用的 LLM。
func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && c.BaseURL != ""
}

// ConfidenceConfig 定义置信度分级阈值：
// score < Reject 拒绝，< Degraded 降级，< Acceptable 可接受，其余为高置信度。
type ConfidenceConfig struct {
	Reject     float64 `mapstructure:"reject"`
	Degraded   float64 `mapstructure:"degraded"`
	Acceptable float64 `mapstructure:"acceptable"`
}

// ManualInputConfig 定义手动输入通过校验后使用的固定置信度。
type ManualInputConfig struct {
	BaziConfidence     float64 `mapstructure:"bazi_confidence"`
	FengshuiConfidence float64 `mapstructure:"fengshui_confidence"`
	CompassConfidence  float64 `mapstructure:"compass_confidence"`
}

// SessionConfig 存储会话上下文存储相关的配置。
type SessionConfig struct {
	Store              string `mapstructure:"store"` // "redis" 或 "memory"
	TTLHours           int    `mapstructure:"ttl_hours"`
	MaxMessages        int    `mapstructure:"max_messages"`
	IdleTimeoutMinutes int    `mapstructure:"idle_timeout_minutes"`
}

// TTL 返回会话在 Redis 中的过期时间。
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// IdleTimeout 返回会话被视为空闲的时长。
func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// AnalysisConfig 存储外部分析器相关的配置。
type AnalysisConfig struct {
	TimeoutSeconds int                       `mapstructure:"timeout_seconds"`
	Analyzers      map[string]AnalyzerConfig `mapstructure:"analyzers"` // key: bazi / fengshui
}

// Timeout 返回单次分析调用的超时时间。
func (c AnalysisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AnalyzerConfig 描述一个外部分析服务。
type AnalyzerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ConfigurationError 表示启动阶段发现的配置缺失或非法。
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %s", e.Key, e.Reason)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("confidence.reject", 0.4)
	v.SetDefault("confidence.degraded", 0.6)
	v.SetDefault("confidence.acceptable", 0.8)
	v.SetDefault("manual_input.bazi_confidence", 0.85)
	v.SetDefault("manual_input.fengshui_confidence", 0.90)
	v.SetDefault("manual_input.compass_confidence", 0.90)
	v.SetDefault("session.store", "redis")
	v.SetDefault("session.ttl_hours", 168)
	v.SetDefault("session.max_messages", 50)
	v.SetDefault("session.idle_timeout_minutes", 30)
	v.SetDefault("analysis.timeout_seconds", 15)
	v.SetDefault("kafka.topic", "xuanji-analysis-events")
}

// Load 从指定路径读取 YAML 配置，叠加环境变量（前缀 XUANJI_）并校验。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("XUANJI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init 加载配置并写入全局 Conf，失败时直接 panic（启动阶段快速失败）。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Validate 检查启动所必需的配置项。
func (c *Config) Validate() error {
	t := c.Confidence
	if !(t.Reject > 0 && t.Reject < t.Degraded && t.Degraded < t.Acceptable && t.Acceptable <= 1) {
		return &ConfigurationError{
			Key:    "confidence",
			Reason: fmt.Sprintf("阈值必须满足 0 < reject < degraded < acceptable <= 1，当前为 %.2f/%.2f/%.2f", t.Reject, t.Degraded, t.Acceptable),
		}
	}

	for key, v := range map[string]float64{
		"manual_input.bazi_confidence":     c.ManualInput.BaziConfidence,
		"manual_input.fengshui_confidence": c.ManualInput.FengshuiConfidence,
		"manual_input.compass_confidence":  c.ManualInput.CompassConfidence,
	} {
		if v <= 0 || v > 1 {
			return &ConfigurationError{Key: key, Reason: "必须位于 (0,1] 区间"}
		}
	}

	switch c.Session.Store {
	case "redis":
		if c.Database.Redis.Addr == "" {
			return &ConfigurationError{Key: "database.redis.addr", Reason: "使用 redis 会话存储时必须配置地址"}
		}
	case "memory":
	default:
		return &ConfigurationError{Key: "session.store", Reason: fmt.Sprintf("不支持的会话存储类型 %q", c.Session.Store)}
	}
	if c.Session.MaxMessages <= 0 {
		return &ConfigurationError{Key: "session.max_messages", Reason: "必须大于 0"}
	}

	if c.Kafka.Enabled && (c.Kafka.Brokers == "" || c.Kafka.Topic == "") {
		return &ConfigurationError{Key: "kafka", Reason: "启用 kafka 时必须配置 brokers 与 topic"}
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		return &ConfigurationError{Key: "analysis.timeout_seconds", Reason: "必须大于 0"}
	}
	return nil
}
