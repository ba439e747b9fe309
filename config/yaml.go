package config

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"
	goerrors "github.com/goliatone/go-errors"
)

// fileConfig is the YAML shape. Durations are strings such as "10m".
// Zero values leave the current setting untouched.
type fileConfig struct {
	Debug  *bool `yaml:"debug"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Dialect string `yaml:"dialect"`
		DSN     string `yaml:"dsn"`
	} `yaml:"database"`
	Auth struct {
		AdminUsername     string `yaml:"admin_username"`
		AdminPassword     string `yaml:"admin_password"`
		SigningKey        string `yaml:"signing_key"`
		TokenExpiration   int    `yaml:"token_expiration"`
		Issuer            string `yaml:"issuer"`
		SessionCookie     string `yaml:"session_cookie"`
		TokenCookie       string `yaml:"token_cookie"`
		SessionTTL        string `yaml:"session_ttl"`
		OTPTTL            string `yaml:"otp_ttl"`
		MinPasswordLength int    `yaml:"min_password_length"`
		SecureCookies     *bool  `yaml:"secure_cookies"`
		PhoneRegion       string `yaml:"phone_region"`
	} `yaml:"auth"`
	Storage struct {
		Driver         string `yaml:"driver"`
		CloudinaryURL  string `yaml:"cloudinary_url"`
		Folder         string `yaml:"folder"`
		S3AccessKey    string `yaml:"s3_access_key"`
		S3SecretKey    string `yaml:"s3_secret_key"`
		S3Bucket       string `yaml:"s3_bucket"`
		S3Region       string `yaml:"s3_region"`
		S3BaseEndpoint string `yaml:"s3_base_endpoint"`
		DiskDir        string `yaml:"disk_dir"`
		DiskBaseURL    string `yaml:"disk_base_url"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"storage"`
	Mail struct {
		Driver        string `yaml:"driver"`
		SMTPHost      string `yaml:"smtp_host"`
		SMTPPort      int    `yaml:"smtp_port"`
		SMTPUsername  string `yaml:"smtp_username"`
		SMTPPassword  string `yaml:"smtp_password"`
		From          string `yaml:"from"`
		FromName      string `yaml:"from_name"`
		RatePerMinute int    `yaml:"rate_per_minute"`
	} `yaml:"mail"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		Username      string   `yaml:"username"`
		Password      string   `yaml:"password"`
		TLS           *bool    `yaml:"tls"`
		MailTopic     string   `yaml:"mail_topic"`
		ActivityTopic string   `yaml:"activity_topic"`
		GroupID       string   `yaml:"group_id"`
	} `yaml:"kafka"`
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file").
			WithMetadata(map[string]any{"path": path})
	}
	return c.applyYAML(raw)
}

func (c *Config) applyYAML(raw []byte) error {
	fc := fileConfig{}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse config file")
	}

	setBool(&c.Debug, fc.Debug)
	setString(&c.ServerAddr, fc.Server.Addr)
	setString(&c.DatabaseDialect, fc.Database.Dialect)
	setString(&c.DatabaseDSN, fc.Database.DSN)

	setString(&c.AdminUsername, fc.Auth.AdminUsername)
	setString(&c.AdminPassword, fc.Auth.AdminPassword)
	setString(&c.SigningKey, fc.Auth.SigningKey)
	setInt(&c.TokenExpiration, fc.Auth.TokenExpiration)
	setString(&c.Issuer, fc.Auth.Issuer)
	setString(&c.SessionCookie, fc.Auth.SessionCookie)
	setString(&c.TokenCookie, fc.Auth.TokenCookie)
	if err := setDuration(&c.SessionTTL, fc.Auth.SessionTTL, "auth.session_ttl"); err != nil {
		return err
	}
	if err := setDuration(&c.OTPTTL, fc.Auth.OTPTTL, "auth.otp_ttl"); err != nil {
		return err
	}
	setInt(&c.MinPasswordLength, fc.Auth.MinPasswordLength)
	setBool(&c.SecureCookies, fc.Auth.SecureCookies)
	setString(&c.PhoneRegion, fc.Auth.PhoneRegion)

	setString(&c.StorageDriver, fc.Storage.Driver)
	setString(&c.CloudinaryURL, fc.Storage.CloudinaryURL)
	setString(&c.UploadFolder, fc.Storage.Folder)
	setString(&c.S3AccessKey, fc.Storage.S3AccessKey)
	setString(&c.S3SecretKey, fc.Storage.S3SecretKey)
	setString(&c.S3Bucket, fc.Storage.S3Bucket)
	setString(&c.S3Region, fc.Storage.S3Region)
	setString(&c.S3BaseEndpoint, fc.Storage.S3BaseEndpoint)
	setString(&c.DiskDir, fc.Storage.DiskDir)
	setString(&c.DiskBaseURL, fc.Storage.DiskBaseURL)
	if fc.Storage.MaxUploadBytes > 0 {
		c.MaxUploadBytes = fc.Storage.MaxUploadBytes
	}

	setString(&c.MailDriver, fc.Mail.Driver)
	setString(&c.SMTPHost, fc.Mail.SMTPHost)
	setInt(&c.SMTPPort, fc.Mail.SMTPPort)
	setString(&c.SMTPUsername, fc.Mail.SMTPUsername)
	setString(&c.SMTPPassword, fc.Mail.SMTPPassword)
	setString(&c.MailFrom, fc.Mail.From)
	setString(&c.MailFromName, fc.Mail.FromName)
	setInt(&c.MailRatePerMinute, fc.Mail.RatePerMinute)

	if len(fc.Kafka.Brokers) > 0 {
		c.KafkaBrokers = fc.Kafka.Brokers
	}
	setString(&c.KafkaUsername, fc.Kafka.Username)
	setString(&c.KafkaPassword, fc.Kafka.Password)
	setBool(&c.KafkaTLS, fc.Kafka.TLS)
	setString(&c.KafkaMailTopic, fc.Kafka.MailTopic)
	setString(&c.KafkaActivityTopic, fc.Kafka.ActivityTopic)
	setString(&c.KafkaGroupID, fc.Kafka.GroupID)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v, key string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid duration").
			WithMetadata(map[string]any{"key": key, "value": v})
	}
	*dst = d
	return nil
}
