package config

import "os"

// 环境变量名
const (
	// EnvHTTPPort HTTP 端口环境变量名
	EnvHTTPPort = "MEETFLOW_HTTP_PORT"
	// EnvLLMAPIKey LLM API Key 环境变量名
	EnvLLMAPIKey = "MEETFLOW_LLM_API_KEY"
	// EnvLLMBaseURL LLM API 地址环境变量名
	EnvLLMBaseURL = "MEETFLOW_LLM_BASE_URL"
	// EnvLLMModel LLM 模型环境变量名
	EnvLLMModel = "MEETFLOW_LLM_MODEL"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	LLM       LLMConfig       `yaml:"llm"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTPPort 固定端口，用于单例锁
	HTTPPort string `yaml:"http_port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Path 数据库文件路径，留空使用 <datadir>/meetflow.db
	Path string `yaml:"path"`
}

// EngineConfig 上下文引擎配置
type EngineConfig struct {
	// L0Size 原始话语滚动窗口容量
	L0Size int `yaml:"l0_size"`
	// ChunkSize 触发后台固化的开放话题缓冲阈值
	ChunkSize int `yaml:"chunk_size"`
	// RegistryCapacity 注册表最大会议运行时数量
	RegistryCapacity int `yaml:"registry_capacity"`
	// RuntimeTTLSeconds 运行时空闲驱逐时间（秒）
	RuntimeTTLSeconds int `yaml:"runtime_ttl_seconds"`
	// TopicKeywords 话题切换关键词（QuickCheck 预筛）
	TopicKeywords []string `yaml:"topic_keywords"`
	// PlanningTokenBudget 规划摘要的 token 预算上限
	PlanningTokenBudget int `yaml:"planning_token_budget"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	// Language 提示词语言：zh-CN / en-US
	Language string `yaml:"language"`
}

// WebSocketConfig WebSocket 配置
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
}

// NewConfig 创建配置
// 默认值 → 配置文件覆盖 → 环境变量覆盖，依次生效
func NewConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort: ":19970",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Engine: EngineConfig{
			L0Size:              25,
			ChunkSize:           25,
			RegistryCapacity:    10,
			RuntimeTTLSeconds:   3600,
			TopicKeywords:       DefaultTopicKeywords(),
			PlanningTokenBudget: 1500,
		},
		LLM: LLMConfig{
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Language: "zh-CN",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	// 配置文件可选
	_ = cfg.loadFile(ConfigFilePath())

	cfg.applyEnv()
	return cfg
}

// applyEnv 应用环境变量覆盖
func (c *Config) applyEnv() {
	if port := os.Getenv(EnvHTTPPort); port != "" {
		c.Server.HTTPPort = port
	}
	if key := os.Getenv(EnvLLMAPIKey); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv(EnvLLMBaseURL); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv(EnvLLMModel); model != "" {
		c.LLM.Model = model
	}
}

// DefaultTopicKeywords 默认话题切换关键词
func DefaultTopicKeywords() []string {
	return []string{
		"接下来", "下一个议题", "下面我们", "换个话题", "回到刚才",
		"说完了", "这个议题", "另外一件事",
		"next topic", "moving on", "let's move", "switch gears",
		"next item", "another thing", "back to",
	}
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewEngineConfig 创建引擎配置
func NewEngineConfig(cfg *Config) *EngineConfig {
	return &cfg.Engine
}

// NewLLMConfig 创建 LLM 配置
func NewLLMConfig(cfg *Config) *LLMConfig {
	return &cfg.LLM
}

// NewWebSocketConfig 创建 WebSocket 配置
func NewWebSocketConfig(cfg *Config) *WebSocketConfig {
	return &cfg.WebSocket
}
