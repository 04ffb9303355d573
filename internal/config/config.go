package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Session  SessionConfig  `mapstructure:"session"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WhatsAppConfig covers the Graph API transport
type WhatsAppConfig struct {
	VerifyToken   string        `mapstructure:"verify_token"`
	AccessToken   string        `mapstructure:"access_token"`
	PhoneNumberID string        `mapstructure:"phone_number_id"`
	GraphBaseURL  string        `mapstructure:"graph_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// AgentConfig covers the workflow-agent backend
type AgentConfig struct {
	StartEndpoint  string        `mapstructure:"start_endpoint"`
	EditEndpoint   string        `mapstructure:"edit_endpoint"`
	UploadEndpoint string        `mapstructure:"upload_endpoint"`
	AuthorizeToken string        `mapstructure:"authorize_token"`
	Subdomain      string        `mapstructure:"subdomain"`
	UserType       string        `mapstructure:"user_type"`
	CDNBase        string        `mapstructure:"cdn_base"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// GatewayConfig points at the routing gateway notified on expiry
type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig sets the inactivity windows and dedup retention
type SessionConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	EditTimeout time.Duration `mapstructure:"edit_timeout"`
	DedupTTL    time.Duration `mapstructure:"dedup_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	// Override with environment variables
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "designer")
	v.SetDefault("database.database", "designer")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// WhatsApp
	v.SetDefault("whatsapp.graph_base_url", "https://graph.facebook.com/v21.0")
	v.SetDefault("whatsapp.timeout", "30s")

	// Agent
	v.SetDefault("agent.start_endpoint", "https://api.gettaskagent.com/api/user/agent/start/691029772222bd196b5c8f41")
	v.SetDefault("agent.edit_endpoint", "https://api.gettaskagent.com/api/user/agent/start/690f135b40eebb79503aa541")
	v.SetDefault("agent.upload_endpoint", "https://api.gettaskagent.com/api/file/upload")
	v.SetDefault("agent.subdomain", "construex")
	v.SetDefault("agent.user_type", "customer")
	v.SetDefault("agent.timeout", "120s")

	// Gateway
	v.SetDefault("gateway.timeout", "10s")

	// Session
	v.SetDefault("session.timeout", "2m")
	v.SetDefault("session.edit_timeout", "2m")
	v.SetDefault("session.dedup_ttl", "10m")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// WhatsApp
	v.BindEnv("whatsapp.verify_token", "VERIFY_TOKEN")
	v.BindEnv("whatsapp.access_token", "ACCESS_TOKEN")
	v.BindEnv("whatsapp.phone_number_id", "PHONE_NUMBER_ID")

	// Agent
	v.BindEnv("agent.authorize_token", "AUTHORIZE_TOKEN")
	v.BindEnv("agent.start_endpoint", "AGENT_START_ENDPOINT")
	v.BindEnv("agent.edit_endpoint", "EDIT_AGENT_START_ENDPOINT")
	v.BindEnv("agent.upload_endpoint", "FILE_UPLOAD_ENDPOINT")
	v.BindEnv("agent.subdomain", "AGENT_SUBDOMAIN")
	v.BindEnv("agent.user_type", "AGENT_USER_TYPE")

	// Gateway
	v.BindEnv("gateway.base_url", "GATEWAY_BASE_URL")
}
