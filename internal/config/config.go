package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config 进程配置，main 中构造一次后通过参数传递
type Config struct {
	// Server
	Host        string `env:"HOST"        envDefault:"0.0.0.0"`
	ServerPort  string `env:"PORT"        envDefault:"8000"`
	Debug       bool   `env:"DEBUG"       envDefault:"false"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Database (Supabase Postgres)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Telegram
	TelegramBotToken    string        `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	TelegramPollTimeout time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"60s"`

	// Smartcar
	SmartcarClientID     string `env:"SMARTCAR_CLIENT_ID,required,notEmpty"`
	SmartcarClientSecret string `env:"SMARTCAR_CLIENT_SECRET,required,notEmpty"`
	SmartcarRedirectURI  string `env:"SMARTCAR_REDIRECT_URI,required,notEmpty"`
	SmartcarMode         string `env:"SMARTCAR_MODE"     envDefault:"simulated"`
	SmartcarAuthURL      string `env:"SMARTCAR_AUTH_URL" envDefault:"https://connect.smartcar.com/oauth/authorize"`
	SmartcarTokenURL     string `env:"SMARTCAR_TOKEN_URL" envDefault:"https://auth.smartcar.com/oauth/token"`
	SmartcarAPIHost      string `env:"SMARTCAR_API_HOST" envDefault:"https://api.smartcar.com/v2.0"`

	// WebSocket 订阅令牌，密钥为空时进程启动随机生成
	WSTokenSecret string        `env:"WS_TOKEN_SECRET"`
	WSTokenTTL    time.Duration `env:"WS_TOKEN_TTL" envDefault:"24h"`

	// Telemetry 读取项，逗号分隔
	TelemetryReads []string `env:"TELEMETRY_READS" envSeparator:"," envDefault:"odometer,fuel,battery,location,tire_pressure"`

	// LLM
	LLMProvider     string `env:"DEFAULT_LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIModel     string `env:"OPENAI_MODEL"     envDefault:"gpt-4-turbo-preview"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL"  envDefault:"claude-3-5-sonnet-20241022"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL"     envDefault:"gemini-1.5-flash"`
}

// 合法的 LLM 提供方
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// 合法的遥测读取项
var knownReads = map[string]bool{
	"odometer":      true,
	"fuel":          true,
	"battery":       true,
	"location":      true,
	"tire_pressure": true,
}

// Load 从环境变量加载配置，.env 文件可选
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch c.SmartcarMode {
	case "live", "simulated":
	default:
		return fmt.Errorf("invalid SMARTCAR_MODE %q: want live or simulated", c.SmartcarMode)
	}

	switch c.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("invalid ENVIRONMENT %q: want development or production", c.Environment)
	}

	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("invalid DEFAULT_LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.WSTokenTTL <= 0 {
		return fmt.Errorf("WS_TOKEN_TTL must be positive")
	}

	reads := c.TelemetryReads[:0]
	for _, r := range c.TelemetryReads {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !knownReads[r] {
			return fmt.Errorf("invalid TELEMETRY_READS entry %q", r)
		}
		reads = append(reads, r)
	}
	if len(reads) == 0 {
		return fmt.Errorf("TELEMETRY_READS must not be empty")
	}
	c.TelemetryReads = reads

	return nil
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr HTTP 监听地址
func (c *Config) Addr() string {
	return c.Host + ":" + c.ServerPort
}
