package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Tasks         TaskConfig          `mapstructure:"tasks"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres mysql sqlite"`
	Source          string        `mapstructure:"source" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
}

type SecurityConfig struct {
	// JWTPublicKey verifies host-issued access tokens. Base64 encoded PEM.
	JWTPublicKey string `mapstructure:"jwt_public_key" validate:"required"`
	// JWTPrivateKey is only needed to mint development tokens.
	JWTPrivateKey       string        `mapstructure:"jwt_private_key"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=24h"`
	CookieName          string        `mapstructure:"cookie_name"`
}

// GatewayConfig holds process-wide settings for talking to Chargebee.
// Site credentials are per payment account and never live here.
type GatewayConfig struct {
	APIBaseURL  string        `mapstructure:"api_base_url" validate:"required"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"required,min=1s"`
	ReturnPath  string        `mapstructure:"return_path" validate:"required,startswith=/"`
	VoidComment string        `mapstructure:"void_comment"`
}

type TaskConfig struct {
	Backend      string        `mapstructure:"backend" validate:"required,oneof=database redis"`
	Workers      int           `mapstructure:"workers" validate:"required,min=1"`
	BatchSize    int           `mapstructure:"batch_size" validate:"required,min=1"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required,min=100ms"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"required,min=1s"`
	// MaxAttempts of 0 retries forever.
	MaxAttempts int         `mapstructure:"max_attempts" validate:"min=0"`
	Redis       RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration from plain environment variables,
// used for container deployments where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Source:          getEnv("DB_SOURCE", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Security: SecurityConfig{
			JWTPublicKey:        getEnv("JWT_PUBLIC_KEY", ""),
			JWTPrivateKey:       getEnv("JWT_PRIVATE_KEY", ""),
			AccessTokenDuration: getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
			CookieName:          getEnv("AUTH_COOKIE_NAME", "access_token"),
		},
		Gateway: GatewayConfig{
			APIBaseURL:  getEnv("CHARGEBEE_API_BASE_URL", "https://%s.chargebee.com/api/v2"),
			HTTPTimeout: getEnvAsDuration("CHARGEBEE_HTTP_TIMEOUT", 20*time.Second),
			ReturnPath:  getEnv("CHARGEBEE_RETURN_PATH", "/api/v1/checkout/return"),
			VoidComment: getEnv("CHARGEBEE_VOID_COMMENT", "Unpaid checkout abandoned"),
		},
		Tasks: TaskConfig{
			Backend:      getEnv("TASK_BACKEND", "database"),
			Workers:      getEnvAsInt("TASK_WORKERS", 4),
			BatchSize:    getEnvAsInt("TASK_BATCH_SIZE", 20),
			PollInterval: getEnvAsDuration("TASK_POLL_INTERVAL", 10*time.Second),
			InitialDelay: getEnvAsDuration("TASK_INITIAL_DELAY", 30*time.Minute),
			RetryBackoff: getEnvAsDuration("TASK_RETRY_BACKOFF", time.Minute),
			MaxAttempts:  getEnvAsInt("TASK_MAX_ATTEMPTS", 0),
			Redis: RedisConfig{
				Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var validate = validator.New()

func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.Tasks.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("tasks config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if _, err := c.GetPublicKey(); err != nil {
		return fmt.Errorf("invalid JWT public key: %w", err)
	}
	if c.JWTPrivateKey != "" {
		if _, err := c.GetPrivateKey(); err != nil {
			return fmt.Errorf("invalid JWT private key: %w", err)
		}
	}
	return nil
}

func (c *SecurityConfig) GetPrivateKey() (*rsa.PrivateKey, error) {
	if c.JWTPrivateKey == "" {
		return nil, errors.New("private key not configured")
	}
	block, err := decodePEM(c.JWTPrivateKey)
	if err != nil {
		return nil, err
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func (c *SecurityConfig) GetPublicKey() (*rsa.PublicKey, error) {
	block, err := decodePEM(c.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}

func decodePEM(encoded string) (*pem.Block, error) {
	keyData, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}
	return block, nil
}

func (c *GatewayConfig) Validate() error {
	if strings.Count(c.APIBaseURL, "%s") > 1 {
		return errors.New("api_base_url may contain at most one %s site placeholder")
	}
	return nil
}

func (c *TaskConfig) Validate() error {
	if c.Backend == "redis" && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when backend is redis")
	}
	return nil
}
