package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Store        StoreConfig        `mapstructure:"store"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	MCPServers   []MCPServerConfig  `mapstructure:"mcp_servers"`
	LogLevel     string             `mapstructure:"log_level"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LLMConfig holds the text-generation backend configuration.
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// StoreConfig selects the durable turn store backend. Driver is
// "sqlite", "postgres" or "memory"; DSN is the database file path for
// sqlite or the connection URL for postgres.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ConversationConfig bounds the context window and session lifetime.
type ConversationConfig struct {
	ContextWindow   int           `mapstructure:"context_window"`
	InactivityLimit time.Duration `mapstructure:"inactivity_limit"`
}

// MCP client transport types.
const (
	ClientTypeSSE            = "sse"
	ClientTypeStreamableHTTP = "streamable_http"
	ClientTypeStdio          = "stdio"
)

// MCPServerConfig describes one MCP server providing tools to the agent.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    string            `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// Load reads configuration from config.yaml in the working directory,
// or from the file named by the CONFIG_PATH environment variable. Every
// key can also be overridden through the environment, e.g.
// SAHAYAK_SERVER_PORT or SAHAYAK_LLM_API_KEY. A missing config file is
// not an error; defaults and the environment still apply.
func Load() (*Config, error) {
	v := viper.New()
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SAHAYAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "sahayak.db")
	v.SetDefault("conversation.context_window", 6)
	v.SetDefault("conversation.inactivity_limit", 30*time.Minute)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
