package config // package config loads application configuration from environment variables

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration values.  Each nested struct maps a
// group of environment variables; see the envconfig tags for names and
// defaults.  Secrets (JWT signing key, SMTP password) have no defaults and
// must be injected by the environment.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Auth      AuthConfig
	Ledger    LedgerConfig
	Upload    UploadConfig
	Mail      MailConfig
	AMQP      AMQPConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Jobs      JobsConfig
}

// AppConfig describes the HTTP process itself.
type AppConfig struct {
	Env         string `envconfig:"APP_ENV" default:"dev"`
	Port        string `envconfig:"APP_PORT" default:"5001"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:3000"` // SPA origin used in email links
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
}

// IsProd reports whether the process runs in production.
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, "prod") }

// Origins splits CORSOrigins into a list.
func (a AppConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(a.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DBConfig holds MySQL connection settings.  MaxOpenConns defaults to 10,
// the pool size the reporting app has always run with.
type DBConfig struct {
	User            string        `envconfig:"DB_USER" default:"root"`
	Pass            string        `envconfig:"DB_PASS"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            string        `envconfig:"DB_PORT" default:"3306"`
	Name            string        `envconfig:"DB_NAME" default:"garbage_collector"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

// AuthConfig controls password hashing and token lifetimes.
type AuthConfig struct {
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"8h"`
	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"1h"`
	BcryptCost    int           `envconfig:"BCRYPT_COST" default:"10"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"false"`
	CookieDomain  string        `envconfig:"COOKIE_DOMAIN"`
}

// LedgerConfig holds point economy constants.
type LedgerConfig struct {
	CardClosePoints int64 `envconfig:"CARD_CLOSE_REWARD_POINTS" default:"150"`
}

// UploadConfig bounds multipart uploads.
type UploadConfig struct {
	MaxImageBytes int64 `envconfig:"MAX_IMAGE_BYTES" default:"5242880"`
}

// MailConfig configures outbound SMTP.  When Host is empty the server logs
// messages instead of sending them, which is what local development wants.
type MailConfig struct {
	Host       string `envconfig:"SMTP_HOST"`
	Port       int    `envconfig:"SMTP_PORT" default:"587"`
	Username   string `envconfig:"SMTP_USER"`
	Password   string `envconfig:"SMTP_PASS"`
	FromName   string `envconfig:"EMAIL_FROM_NAME" default:"Garbage Collector"`
	FromAddr   string `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@garbage-collector.local"`
	AdminEmail string `envconfig:"ADMIN_EMAIL" default:"admin@garbage-collector.local"`
	UseTLS     bool   `envconfig:"SMTP_TLS" default:"true"`
}

// AMQPConfig configures the mail outbox queue.  An empty URL disables the
// queue and mail is sent inline.
type AMQPConfig struct {
	URL       string `envconfig:"RABBITMQ_URL"`
	MailQueue string `envconfig:"MAIL_QUEUE" default:"mail.outbox"`
	Prefetch  int    `envconfig:"MAIL_QUEUE_PREFETCH" default:"20"`
}

// JobsConfig schedules the maintenance jobs.  Schedules use the
// robfig/cron syntax, descriptors like "@every 15m" included.
type JobsConfig struct {
	Enabled            bool          `envconfig:"JOBS_ENABLED" default:"true"`
	ResetPurgeSchedule string        `envconfig:"RESET_PURGE_SCHEDULE" default:"@every 15m"`
	TokenPruneSchedule string        `envconfig:"TOKEN_PRUNE_SCHEDULE" default:"@daily"`
	ConsumedRetention  time.Duration `envconfig:"CONSUMED_TOKEN_RETENTION" default:"720h"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.RateLimit.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MigrateConfig is the subset of Config the migration command needs.
type MigrateConfig struct {
	App AppConfig
	DB  DBConfig
}

// LoadMigrate reads only the process and database groups, so schema
// migrations run without the session secret or mail settings.
func LoadMigrate() (MigrateConfig, error) {
	_ = godotenv.Load()

	var cfg MigrateConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return MigrateConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.MaxOpenConns <= 0 {
		return MigrateConfig{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}
	return cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.ResetTokenTTL <= 0 {
		return fmt.Errorf("SESSION_TTL and RESET_TOKEN_TTL must be positive")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.Auth.BcryptCost)
	}
	if c.Ledger.CardClosePoints <= 0 {
		return fmt.Errorf("CARD_CLOSE_REWARD_POINTS must be positive")
	}
	if c.DB.MaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive")
	}
	return nil
}
