// Package config handles configuration for the enrollment binaries,
// including defaults, a YAML overlay and environment overrides.
package config

import (
	"time"
)

// Config holds runtime settings for the server and the mailer.
type Config struct {
	Debug bool

	ServerAddr string

	DatabaseDialect string
	DatabaseDSN     string

	AdminUsername     string
	AdminPassword     string
	SigningKey        string
	TokenExpiration   int // hours
	Issuer            string
	SessionCookie     string
	TokenCookie       string
	SessionTTL        time.Duration
	OTPTTL            time.Duration
	MinPasswordLength int
	SecureCookies     bool
	PhoneRegion       string

	StorageDriver  string
	CloudinaryURL  string
	UploadFolder   string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	DiskDir        string
	DiskBaseURL    string
	MaxUploadBytes int64

	MailDriver        string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	MailFrom          string
	MailFromName      string
	MailRatePerMinute int

	KafkaBrokers       []string
	KafkaUsername      string
	KafkaPassword      string
	KafkaTLS           bool
	KafkaMailTopic     string
	KafkaActivityTopic string
	KafkaGroupID       string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the signing key and admin password must be overridden in production.
func (c *Config) LoadDefaults() {
	c.ServerAddr = ":3000"

	c.DatabaseDialect = "sqlite"
	c.DatabaseDSN = "file:enrollment.db?cache=shared"

	c.AdminUsername = "admin"
	c.AdminPassword = ""
	c.SigningKey = "enrollment-dev-secret"
	c.TokenExpiration = 24
	c.Issuer = "go-enrollment"
	c.SessionCookie = "enrollment_session"
	c.TokenCookie = "enrollment_token"
	c.SessionTTL = 24 * time.Hour
	c.OTPTTL = 10 * time.Minute
	c.MinPasswordLength = 8
	c.SecureCookies = false
	c.PhoneRegion = "IN"

	c.StorageDriver = "disk"
	c.UploadFolder = "enrollment"
	c.S3Region = "us-east-1"
	c.DiskDir = "./uploads"
	c.DiskBaseURL = "/uploads"
	c.MaxUploadBytes = 5 * 1024 * 1024

	c.MailDriver = "log"
	c.SMTPHost = "smtp.gmail.com"
	c.SMTPPort = 587
	c.MailFromName = "Enrollment"
	c.MailRatePerMinute = 30

	c.KafkaMailTopic = "enrollment.mail"
	c.KafkaActivityTopic = "enrollment.activity"
	c.KafkaGroupID = "enrollment-mailer"
}

// Load builds a Config from defaults, then the YAML file at path when it is
// not empty, then the environment (.env files included).
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	return cfg, nil
}

func (c *Config) GetAdminUsername() string     { return c.AdminUsername }
func (c *Config) GetSigningKey() string        { return c.SigningKey }
func (c *Config) GetTokenExpiration() int      { return c.TokenExpiration }
func (c *Config) GetIssuer() string            { return c.Issuer }
func (c *Config) GetSessionCookie() string     { return c.SessionCookie }
func (c *Config) GetSessionTTL() time.Duration { return c.SessionTTL }
func (c *Config) GetTokenCookie() string       { return c.TokenCookie }
func (c *Config) GetOTPTTL() time.Duration     { return c.OTPTTL }
func (c *Config) GetMinPasswordLength() int    { return c.MinPasswordLength }
func (c *Config) GetSecureCookies() bool       { return c.SecureCookies }
func (c *Config) GetPhoneRegion() string       { return c.PhoneRegion }
