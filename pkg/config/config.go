package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Identity     IdentityConfig
	Registries   RegistriesConfig
	Sendgrid     SendgridConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Verification VerificationConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GREIA_APP_ENV" required:"true"`
	Port         string `envconfig:"GREIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GREIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GREIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GREIA_DB_DSN"`
	Driver string `envconfig:"GREIA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"GREIA_DB_HOST"`
	Port     int    `envconfig:"GREIA_DB_PORT" default:"5432"`
	User     string `envconfig:"GREIA_DB_USER"`
	Password string `envconfig:"GREIA_DB_PASSWORD"`
	Name     string `envconfig:"GREIA_DB_NAME"`
	SSLMode  string `envconfig:"GREIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GREIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GREIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GREIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GREIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GREIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GREIA_REDIS_ADDR"`
	Password     string        `envconfig:"GREIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"GREIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GREIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GREIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GREIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GREIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GREIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GREIA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GREIA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GREIA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GREIA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GREIA_AUTO_MIGRATE" default:"false"`
}

// IdentityConfig points at the hosted identity-verification provider used for
// biometric/document capture sessions.
type IdentityConfig struct {
	BaseURL string        `envconfig:"GREIA_IDENTITY_BASE_URL" required:"true"`
	APIKey  string        `envconfig:"GREIA_IDENTITY_API_KEY" required:"true"`
	Timeout time.Duration `envconfig:"GREIA_IDENTITY_TIMEOUT" default:"10s"`
}

// RegistriesConfig groups the license, insurance, and company registry endpoints.
type RegistriesConfig struct {
	LicenseBaseURL   string `envconfig:"GREIA_LICENSE_REGISTRY_BASE_URL"`
	LicenseAPIKey    string `envconfig:"GREIA_LICENSE_REGISTRY_API_KEY"`
	InsuranceBaseURL string `envconfig:"GREIA_INSURANCE_REGISTRY_BASE_URL"`
	InsuranceAPIKey  string `envconfig:"GREIA_INSURANCE_REGISTRY_API_KEY"`
	CompanyBaseURL   string `envconfig:"GREIA_COMPANY_REGISTRY_BASE_URL"`
	CompanyAPIKey    string `envconfig:"GREIA_COMPANY_REGISTRY_API_KEY"`

	Timeout    time.Duration `envconfig:"GREIA_REGISTRY_TIMEOUT" default:"15s"`
	RetryCount int           `envconfig:"GREIA_REGISTRY_RETRY_COUNT" default:"2"`
	RetryWait  time.Duration `envconfig:"GREIA_REGISTRY_RETRY_WAIT" default:"500ms"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"GREIA_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"GREIA_SENDGRID_FROM_EMAIL" default:"verify@greia.app"`
	FromName    string `envconfig:"GREIA_SENDGRID_FROM_NAME" default:"GREIA Verification"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GREIA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GREIA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GREIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"GREIA_GCS_BUCKET_NAME"`
	UploadURLExpiry   time.Duration `envconfig:"GREIA_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"GREIA_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

// VerificationConfig tunes workflow-level windows and retention.
type VerificationConfig struct {
	ReminderAfter         time.Duration `envconfig:"GREIA_VERIFICATION_REMINDER_AFTER" default:"72h"`
	NotificationRetention time.Duration `envconfig:"GREIA_NOTIFICATION_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"GREIA_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"GREIA_CRON_LOCK_TTL" default:"25h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
