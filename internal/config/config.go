package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig leaves Addr empty to fall back to the in-process token ledger.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BucketAvatars string
	PublicBaseURL string
	UseSSL        bool
	Region        string
	MaxAvatarSize int64
}

type SecurityConfig struct {
	AccessSecret     string
	RefreshSecret    string
	ActivationSecret string
	ResetSecret      string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ActivationTTL    time.Duration
	ResetTTL         time.Duration
	CodeLength       int
	MaxCodeAttempts  int
	ResetURL         string
}

type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite string
}

type EdgeConfig struct {
	AdminPrefixes []string
	LandingPath   string
	UpstreamURL   string
}

type IdentityConfig struct {
	GoogleClientID string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

type MailConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxDeliveries int64
	MaxLen        int64
	SendTimeout   time.Duration
	SMTP          SMTPConfig
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Cookies          CookieConfig
	Edge             EdgeConfig
	Identity         IdentityConfig
	Mail             MailConfig
	AllowCORSOrigins []string
}

const minSecretLength = 32

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("COURSEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate refuses to start with secrets or lifetimes that would make every
// issued token trivially forgeable or instantly dead.
func (c *AppConfig) Validate() error {
	var errs []error

	secrets := map[string]string{
		"security.accesssecret":     c.Security.AccessSecret,
		"security.refreshsecret":    c.Security.RefreshSecret,
		"security.activationsecret": c.Security.ActivationSecret,
		"security.resetsecret":      c.Security.ResetSecret,
	}
	for key, secret := range secrets {
		if len(secret) < minSecretLength {
			errs = append(errs, fmt.Errorf("%s must be at least %d characters", key, minSecretLength))
		}
	}
	if c.Security.AccessSecret != "" && c.Security.AccessSecret == c.Security.RefreshSecret {
		errs = append(errs, errors.New("security.accesssecret and security.refreshsecret must differ"))
	}

	ttls := map[string]time.Duration{
		"security.accessttl":     c.Security.AccessTTL,
		"security.refreshttl":    c.Security.RefreshTTL,
		"security.activationttl": c.Security.ActivationTTL,
		"security.resetttl":      c.Security.ResetTTL,
	}
	for key, ttl := range ttls {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.Security.RefreshTTL <= c.Security.AccessTTL {
		errs = append(errs, errors.New("security.refreshttl must exceed security.accessttl"))
	}
	if c.Security.CodeLength < 4 || c.Security.CodeLength > 10 {
		errs = append(errs, errors.New("security.codelength must be between 4 and 10"))
	}
	if c.Security.MaxCodeAttempts < 1 {
		errs = append(errs, errors.New("security.maxcodeattempts must be at least 1"))
	}
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}

	return errors.Join(errs...)
}

// ValidateWorker checks what the mail worker needs; it holds no signing secrets.
func (c *AppConfig) ValidateWorker() error {
	var errs []error
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required by the mail worker"))
	}
	if c.Mail.Stream == "" || c.Mail.Group == "" || c.Mail.Consumer == "" {
		errs = append(errs, errors.New("mail.stream, mail.group and mail.consumer are required"))
	}
	if c.Mail.SMTP.Host == "" {
		errs = append(errs, errors.New("mail.smtp.host is required"))
	}
	if c.Mail.SMTP.From == "" {
		errs = append(errs, errors.New("mail.smtp.from is required"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyprefix", "coursehub:")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketavatars", "coursehub-avatars")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxavatarsize", 2<<20)

	v.SetDefault("security.accesssecret", "")
	v.SetDefault("security.refreshsecret", "")
	v.SetDefault("security.activationsecret", "")
	v.SetDefault("security.resetsecret", "")
	v.SetDefault("security.accessttl", "15m")
	v.SetDefault("security.refreshttl", "72h")
	v.SetDefault("security.activationttl", "5m")
	v.SetDefault("security.resetttl", "30m")
	v.SetDefault("security.codelength", 6)
	v.SetDefault("security.maxcodeattempts", 5)
	v.SetDefault("security.reseturl", "/reset-password")

	v.SetDefault("cookies.domain", "")
	v.SetDefault("cookies.secure", true)
	v.SetDefault("cookies.samesite", "lax")

	v.SetDefault("edge.adminprefixes", []string{"/admin"})
	v.SetDefault("edge.landingpath", "/")
	v.SetDefault("edge.upstreamurl", "")

	v.SetDefault("identity.googleclientid", "")

	v.SetDefault("mail.stream", "mail:outbound")
	v.SetDefault("mail.group", "mailers")
	v.SetDefault("mail.consumer", "mailer-1")
	v.SetDefault("mail.claiminterval", "1m")
	v.SetDefault("mail.maxdeliveries", 5)
	v.SetDefault("mail.maxlen", 10000)
	v.SetDefault("mail.sendtimeout", "5s")
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.from", "no-reply@coursehub.local")
	v.SetDefault("mail.smtp.fromname", "CourseHub")
	v.SetDefault("mail.smtp.timeout", "10s")

	v.SetDefault("allowcorsorigins", []string{})
}
