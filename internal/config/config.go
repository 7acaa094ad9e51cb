package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// DevelopmentSecret signs tokens when JWT_SECRET is unset outside
	// production.
	DevelopmentSecret = "authgate-development-secret-do-not-use-in-production"

	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL"  envDefault:"15m"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"7d"`
	Issuer     string        `env:"JWT_ISSUER"      envDefault:"authgate"`
}

type LogConfig struct {
	Format string `env:"LOG_FORMAT" envDefault:"pretty"`
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
}

type TelemetryConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED"                envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO"           envDefault:"1"`
}

type GatewayConfig struct {
	AppEnv                  string        `env:"APP_ENV"                    envDefault:"development"`
	ServerPort              string        `env:"SERVER_PORT"                envDefault:"8080"`
	ServerReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ServerWriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT"       envDefault:"30s"`
	ServerIdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT"        envDefault:"120s"`
	RequestTimeout          time.Duration `env:"REQUEST_TIMEOUT"            envDefault:"30s"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT"           envDefault:"10s"`
	MaxBodyBytes            int64         `env:"MAX_BODY_BYTES"             envDefault:"1048576"`

	AuthRPCAddr        string        `env:"AUTH_RPC_ADDR"         envDefault:"localhost:50051"`
	AuthRPCTimeout     time.Duration `env:"AUTH_RPC_TIMEOUT"      envDefault:"5s"`
	AuthRPCWaitTimeout time.Duration `env:"AUTH_RPC_WAIT_TIMEOUT" envDefault:"30s"`

	CORSOrigins         []string `env:"CORS_ORIGINS"           envDefault:"*" envSeparator:","`
	RateLimitRPM        int      `env:"RATE_LIMIT_RPM"         envDefault:"100"`
	AuthRateLimitRPM    int      `env:"AUTH_RATE_LIMIT_RPM"    envDefault:"5"`
	RefreshRateLimitRPM int      `env:"REFRESH_RATE_LIMIT_RPM" envDefault:"10"`

	JWT       JWTConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type AuthServiceConfig struct {
	AppEnv          string        `env:"APP_ENV"          envDefault:"development"`
	RPCAddr         string        `env:"AUTH_RPC_ADDR"    envDefault:":50051"`
	MetricsAddr     string        `env:"METRICS_ADDR"     envDefault:":9091"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMigrate   bool   `env:"DB_MIGRATE"   envDefault:"true"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"./data/authgate.db"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	JWT       JWTConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

func (c *GatewayConfig) IsProduction() bool     { return isProduction(c.AppEnv) }
func (c *AuthServiceConfig) IsProduction() bool { return isProduction(c.AppEnv) }

// LoadGateway reads .env (when present) and the environment.
func LoadGateway() (*GatewayConfig, error) {
	cfg := &GatewayConfig{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.JWT.resolveSecret(cfg.AppEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAuthService reads .env (when present) and the environment.
func LoadAuthService() (*AuthServiceConfig, error) {
	cfg := &AuthServiceConfig{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.JWT.resolveSecret(cfg.AppEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(target any) error {
	_ = godotenv.Load()

	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (any, error) {
				return ParseDuration(v)
			},
		},
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *GatewayConfig) Validate() error {
	if strings.TrimSpace(c.ServerPort) == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.AuthRPCAddr) == "" {
		return fmt.Errorf("AUTH_RPC_ADDR cannot be empty")
	}

	if c.AuthRPCTimeout <= 0 {
		return fmt.Errorf("AUTH_RPC_TIMEOUT must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}

	if c.AuthRateLimitRPM < 0 || c.RefreshRateLimitRPM < 0 {
		return fmt.Errorf("auth rate limits cannot be negative")
	}

	return validateShared(c.JWT, c.Log)
}

func (c *AuthServiceConfig) Validate() error {
	if strings.TrimSpace(c.RPCAddr) == "" {
		return fmt.Errorf("AUTH_RPC_ADDR cannot be empty")
	}

	switch c.StoreDriver {
	case StoreMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for STORE_DRIVER=sqlite")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS are inconsistent")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return validateShared(c.JWT, c.Log)
}

func validateShared(jwt JWTConfig, log LogConfig) error {
	if jwt.AccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be positive")
	}

	if jwt.RefreshTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TTL must be positive")
	}

	if jwt.RefreshTTL < jwt.AccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL must not be shorter than JWT_ACCESS_TTL")
	}

	if len(jwt.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}

	switch strings.ToLower(log.Format) {
	case "pretty", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be pretty or json")
	}

	return nil
}

// resolveSecret fails in production when no secret is configured and
// otherwise falls back to DevelopmentSecret.
func (j *JWTConfig) resolveSecret(appEnv string) error {
	j.Secret = strings.TrimSpace(j.Secret)
	if j.Secret != "" {
		return nil
	}

	if isProduction(appEnv) {
		return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", EnvProduction)
	}

	j.Secret = DevelopmentSecret
	return nil
}

// UsesDevelopmentSecret reports whether the built-in fallback secret is in
// effect. Callers warn about it once logging is configured.
func (j JWTConfig) UsesDevelopmentSecret() bool {
	return j.Secret == DevelopmentSecret
}

func isProduction(appEnv string) bool {
	return strings.EqualFold(strings.TrimSpace(appEnv), EnvProduction)
}

// ParseDuration accepts Go durations plus a whole or fractional day suffix,
// e.g. "7d" or "1.5d".
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	return d, nil
}
