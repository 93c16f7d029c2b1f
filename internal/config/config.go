package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Quotes     QuoteConfig      `mapstructure:"quotes"`
	Advisor    AdvisorConfig    `mapstructure:"advisor"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Agent      AgentConfig      `mapstructure:"agent"`
	API        APIConfig        `mapstructure:"api"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
	Enabled  bool   `mapstructure:"enabled"`
}

// RedisConfig contains Redis settings for the price mirror
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// NATSConfig contains NATS event bus settings
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// QuoteConfig contains quote/price aggregator API settings
type QuoteConfig struct {
	BaseURL         string       `mapstructure:"base_url"`
	PriceURL        string       `mapstructure:"price_url"`
	FetchIntervalMS int          `mapstructure:"fetch_interval_ms"`
	RequestTimeout  int          `mapstructure:"request_timeout_ms"`
	SlippageBps     uint16       `mapstructure:"slippage_bps"`
	Pairs           []PairConfig `mapstructure:"pairs"`
}

// PairConfig describes a single trading pair the fetcher polls
type PairConfig struct {
	InputMint  string `mapstructure:"input_mint"`
	OutputMint string `mapstructure:"output_mint"`
	Amount     uint64 `mapstructure:"amount"` // base units of the input mint
}

// AdvisorConfig contains AI advisor settings
type AdvisorConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Endpoint          string  `mapstructure:"endpoint"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Timeout           int     `mapstructure:"timeout_ms"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

// ChainConfig contains vault engine settings
type ChainConfig struct {
	Mode      string `mapstructure:"mode"` // "paper" or "live"
	EngineURL string `mapstructure:"engine_url"`
	Timeout   int    `mapstructure:"timeout_ms"`
}

// AgentConfig contains pipeline settings
type AgentConfig struct {
	PortfolioID             string `mapstructure:"portfolio_id"`
	BucketAddress           string `mapstructure:"bucket_address"`
	EvaluationIntervalMS    int    `mapstructure:"evaluation_interval_ms"`
	MonitoringIntervalMS    int    `mapstructure:"monitoring_interval_ms"`
	MaxConcurrentExecutions int    `mapstructure:"max_concurrent_executions"`
	LearningEnabled         bool   `mapstructure:"learning_enabled"`
	StrategiesFile          string `mapstructure:"strategies_file"`
}

// APIConfig contains status API settings
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// TelegramConfig contains notifier settings
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("VAULTFUNK")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "VaultFunk")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "vaultfunk")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.enabled", false)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)

	// Quote API defaults
	v.SetDefault("quotes.base_url", "https://quote-api.jup.ag/v6")
	v.SetDefault("quotes.price_url", "https://price.jup.ag/v4")
	v.SetDefault("quotes.fetch_interval_ms", 1000)
	v.SetDefault("quotes.request_timeout_ms", 10000)
	v.SetDefault("quotes.slippage_bps", 50)

	// Advisor defaults
	v.SetDefault("advisor.enabled", false)
	v.SetDefault("advisor.endpoint", "http://localhost:8080/v1/chat/completions")
	v.SetDefault("advisor.model", "gpt-4-turbo")
	v.SetDefault("advisor.temperature", 0.3)
	v.SetDefault("advisor.max_tokens", 2000)
	v.SetDefault("advisor.timeout_ms", 30000)
	v.SetDefault("advisor.requests_per_minute", 20)

	// Chain defaults
	v.SetDefault("chain.mode", "paper")
	v.SetDefault("chain.engine_url", "http://localhost:8899")
	v.SetDefault("chain.timeout_ms", 30000)

	// Agent defaults
	v.SetDefault("agent.evaluation_interval_ms", 5000)
	v.SetDefault("agent.monitoring_interval_ms", 60000)
	v.SetDefault("agent.max_concurrent_executions", 3)
	v.SetDefault("agent.learning_enabled", true)
	v.SetDefault("agent.strategies_file", "./configs/strategies.yaml")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
}

// Validate checks cross-field constraints that viper cannot express
func (c *Config) Validate() error {
	if c.Quotes.FetchIntervalMS < 100 {
		return fmt.Errorf("quotes.fetch_interval_ms must be >= 100, got %d", c.Quotes.FetchIntervalMS)
	}
	if c.Quotes.SlippageBps > 10000 {
		return fmt.Errorf("quotes.slippage_bps must be <= 10000, got %d", c.Quotes.SlippageBps)
	}
	if c.Agent.MaxConcurrentExecutions < 1 {
		return fmt.Errorf("agent.max_concurrent_executions must be >= 1, got %d", c.Agent.MaxConcurrentExecutions)
	}
	if c.Agent.EvaluationIntervalMS < 100 {
		return fmt.Errorf("agent.evaluation_interval_ms must be >= 100, got %d", c.Agent.EvaluationIntervalMS)
	}
	switch c.Chain.Mode {
	case "paper", "live":
	default:
		return fmt.Errorf("chain.mode must be \"paper\" or \"live\", got %q", c.Chain.Mode)
	}
	if c.Chain.Mode == "live" && c.Chain.EngineURL == "" {
		return fmt.Errorf("chain.engine_url is required in live mode")
	}
	for i, p := range c.Quotes.Pairs {
		if p.InputMint == "" || p.OutputMint == "" {
			return fmt.Errorf("quotes.pairs[%d]: input_mint and output_mint are required", i)
		}
		if p.InputMint == p.OutputMint {
			return fmt.Errorf("quotes.pairs[%d]: input and output mint must differ", i)
		}
		if p.Amount == 0 {
			return fmt.Errorf("quotes.pairs[%d]: amount must be > 0", i)
		}
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram.enabled")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the status API listen address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FetchInterval returns the quote polling interval as a Duration
func (c *QuoteConfig) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalMS) * time.Millisecond
}

// GetRequestTimeout returns the quote API request timeout as a Duration
func (c *QuoteConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Millisecond
}

// GetTimeout returns the advisor request timeout as a Duration
func (c *AdvisorConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetTimeout returns the per-transaction timeout as a Duration
func (c *ChainConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// EvaluationInterval returns the planner tick interval as a Duration
func (c *AgentConfig) EvaluationInterval() time.Duration {
	return time.Duration(c.EvaluationIntervalMS) * time.Millisecond
}

// MonitoringInterval returns the observer monitoring interval as a Duration
func (c *AgentConfig) MonitoringInterval() time.Duration {
	return time.Duration(c.MonitoringIntervalMS) * time.Millisecond
}
