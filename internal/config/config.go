package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the server configuration, read from the environment and an
// optional .env file.
type Config struct {
	AppPort             int           `mapstructure:"APP_PORT"`
	DatabasePath        string        `mapstructure:"DATABASE_PATH"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	LLMProvider         string        `mapstructure:"LLM_PROVIDER"`
	OllamaURL           string        `mapstructure:"OLLAMA_URL"`
	GeminiAPIKey        string        `mapstructure:"GEMINI_API_KEY"`
	OpenAIBaseURL       string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIAPIKey        string        `mapstructure:"OPENAI_API_KEY"`
	DefaultModel        string        `mapstructure:"DEFAULT_MODEL"`
	InitialSystemPrompt string        `mapstructure:"INITIAL_SYSTEM_PROMPT"`
	CORSOrigins         string        `mapstructure:"CORS_ORIGINS"`
	StreamKeepAlive     time.Duration `mapstructure:"STREAM_KEEPALIVE"`

	// ConfigFile is the .env file that was read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// ClientConfig configures the docdash terminal client.
type ClientConfig struct {
	ServerURL         string        `mapstructure:"DOCDASH_SERVER_URL"`
	StreamIdleTimeout time.Duration `mapstructure:"STREAM_IDLE_TIMEOUT"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
}

// AllowedOrigins splits CORSOrigins on commas, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func LoadConfig() (*Config, error) {
	v := newViper()
	v.SetDefault("APP_PORT", 8000)
	v.SetDefault("DATABASE_PATH", "./data/docdash.db")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LLM_PROVIDER", "echo")
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("DEFAULT_MODEL", "")
	v.SetDefault("INITIAL_SYSTEM_PROMPT", "You are a helpful assistant for working with documents.")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("STREAM_KEEPALIVE", "15s")

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	return &cfg, nil
}

func LoadClientConfig() (*ClientConfig, error) {
	v := newViper()
	v.SetDefault("DOCDASH_SERVER_URL", "http://localhost:8000")
	v.SetDefault("STREAM_IDLE_TIMEOUT", "0s")
	v.SetDefault("LOG_LEVEL", "WARN")

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}
