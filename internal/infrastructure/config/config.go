package config

import "os"

const (
	// EnvHTTPPort HTTP 端口环境变量名
	EnvHTTPPort = "KNOWBASE_HTTP_PORT"
	// EnvKnowledgeDir 知识库目录环境变量名
	EnvKnowledgeDir = "KNOWBASE_KNOWLEDGE_DIR"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Knowledge KnowledgeConfig
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string // 固定端口，用于单例锁
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string // 留空表示使用数据目录下的默认路径
}

// KnowledgeConfig 知识库目录配置
type KnowledgeConfig struct {
	// Dir Markdown 知识库根目录，留空表示 ~/.knowbase/knowledge
	Dir string

	// Watch 是否监听目录变化并增量重建索引
	Watch bool
}

// NewConfig 创建配置（默认值，可被环境变量覆盖）
func NewConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort: ":19870",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Knowledge: KnowledgeConfig{
			Dir:   "",
			Watch: true,
		},
	}

	if port := os.Getenv(EnvHTTPPort); port != "" {
		cfg.Server.HTTPPort = port
	}
	if dir := os.Getenv(EnvKnowledgeDir); dir != "" {
		cfg.Knowledge.Dir = dir
	}

	return cfg
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewKnowledgeConfig 创建知识库目录配置
func NewKnowledgeConfig(cfg *Config) *KnowledgeConfig {
	return &cfg.Knowledge
}
