package config

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	AuthMode       string   `mapstructure:"AUTH_MODE"`
	StoreDriver    string   `mapstructure:"STORE_DRIVER"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string   `mapstructure:"MIGRATIONS_DIR"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled     bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`

	LowStockThreshold int `mapstructure:"LOW_STOCK_THRESHOLD"`

	LedgerDriver           string        `mapstructure:"LEDGER_DRIVER"`
	LedgerTimeout          time.Duration `mapstructure:"LEDGER_TIMEOUT"`
	FabricPeerEndpoint     string        `mapstructure:"FABRIC_PEER_ENDPOINT"`
	FabricPeerHostOverride string        `mapstructure:"FABRIC_PEER_HOST_OVERRIDE"`
	FabricTLSCertPath      string        `mapstructure:"FABRIC_TLS_CERT_PATH"`
	FabricCertPath         string        `mapstructure:"FABRIC_CERT_PATH"`
	FabricKeyPath          string        `mapstructure:"FABRIC_KEY_PATH"`
	FabricMSPID            string        `mapstructure:"FABRIC_MSP_ID"`
	FabricChannel          string        `mapstructure:"FABRIC_CHANNEL"`
	FabricChaincode        string        `mapstructure:"FABRIC_CHAINCODE"`
	FabricContract         string        `mapstructure:"FABRIC_CONTRACT"`

	EventBroker  string   `mapstructure:"EVENT_BROKER"`
	AMQPURL      string   `mapstructure:"AMQP_URL"`
	AMQPExchange string   `mapstructure:"AMQP_EXCHANGE"`
	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_ENDPOINT"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MIGRATIONS_DIR", "REDIS_URL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"LOW_STOCK_THRESHOLD",
	"LEDGER_DRIVER", "LEDGER_TIMEOUT", "FABRIC_PEER_ENDPOINT", "FABRIC_PEER_HOST_OVERRIDE",
	"FABRIC_TLS_CERT_PATH", "FABRIC_CERT_PATH", "FABRIC_KEY_PATH", "FABRIC_MSP_ID",
	"FABRIC_CHANNEL", "FABRIC_CHAINCODE", "FABRIC_CONTRACT",
	"EVENT_BROKER", "AMQP_URL", "AMQP_EXCHANGE", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"OTEL_EXPORTER_ENDPOINT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("LOW_STOCK_THRESHOLD", 10)
	v.SetDefault("LEDGER_DRIVER", "") // "" -> inferred from ENV
	v.SetDefault("LEDGER_TIMEOUT", "30s")
	v.SetDefault("FABRIC_CHANNEL", "mychannel")
	v.SetDefault("FABRIC_CHAINCODE", "medicine")
	v.SetDefault("EVENT_BROKER", "none")
	v.SetDefault("AMQP_EXCHANGE", "rxchain.events")
	v.SetDefault("KAFKA_TOPIC", "rxchain.events")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}
	if cfg.KafkaBrokers == nil {
		cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: requests without a bearer token are treated as the dev admin caller.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. An explicit AUTH_MODE
// wins; otherwise development environments use "development" and all others
// use "jwt".
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// ResolvedLedgerDriver returns the effective ledger driver. Development
// defaults to the in-memory ledger.
func (c *Config) ResolvedLedgerDriver() string {
	if c.LedgerDriver != "" {
		return c.LedgerDriver
	}
	if c.IsDev() {
		return "memory"
	}
	return "fabric"
}

// Validate checks that the configuration is complete for the selected
// drivers and modes.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is \"postgres\"")
		}
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be \"postgres\" or \"memory\", got %q", c.StoreDriver)
	}

	switch mode := c.ResolvedAuthMode(); mode {
	case "development":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=development is not allowed in production")
		}
	case "jwt":
		if c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_MODE \"jwt\" requires AUTH_SIGNING_KEY or AUTH_JWKS_URL")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}

	switch driver := c.ResolvedLedgerDriver(); driver {
	case "memory":
	case "fabric":
		missing := []string{}
		for name, val := range map[string]string{
			"FABRIC_PEER_ENDPOINT": c.FabricPeerEndpoint,
			"FABRIC_TLS_CERT_PATH": c.FabricTLSCertPath,
			"FABRIC_CERT_PATH":     c.FabricCertPath,
			"FABRIC_KEY_PATH":      c.FabricKeyPath,
			"FABRIC_MSP_ID":        c.FabricMSPID,
			"FABRIC_CHANNEL":       c.FabricChannel,
			"FABRIC_CHAINCODE":     c.FabricChaincode,
		} {
			if val == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("LEDGER_DRIVER \"fabric\" requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("LEDGER_DRIVER must be \"fabric\" or \"memory\", got %q", driver)
	}
	if c.LedgerTimeout <= 0 {
		return fmt.Errorf("LEDGER_TIMEOUT must be positive")
	}

	switch c.EventBroker {
	case "", "none":
	case "amqp":
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when EVENT_BROKER is \"amqp\"")
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BROKER is \"kafka\"")
		}
	default:
		return fmt.Errorf("EVENT_BROKER must be \"none\", \"amqp\", or \"kafka\", got %q", c.EventBroker)
	}

	if c.LowStockThreshold <= 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must be positive, got %d", c.LowStockThreshold)
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
