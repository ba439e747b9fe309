package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order when present; existing variables win.
var envFiles = []string{".env.local", ".env"}

func (c *Config) loadEnv() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	envBool(&c.Debug, "ENROLLMENT_DEBUG")
	envString(&c.ServerAddr, "ENROLLMENT_ADDR")
	if port := os.Getenv("PORT"); port != "" {
		c.ServerAddr = ":" + port
	}

	envString(&c.DatabaseDialect, "DATABASE_DIALECT")
	envString(&c.DatabaseDSN, "DATABASE_URL")

	envString(&c.AdminUsername, "ADMIN_USERNAME")
	envString(&c.AdminPassword, "ADMIN_PASSWORD")
	envString(&c.SigningKey, "JWT_SECRET")
	envInt(&c.TokenExpiration, "JWT_EXPIRATION_HOURS")
	envString(&c.Issuer, "JWT_ISSUER")
	envString(&c.SessionCookie, "SESSION_COOKIE")
	envString(&c.TokenCookie, "TOKEN_COOKIE")
	envDuration(&c.SessionTTL, "SESSION_TTL")
	envDuration(&c.OTPTTL, "OTP_TTL")
	envInt(&c.MinPasswordLength, "MIN_PASSWORD_LENGTH")
	envBool(&c.SecureCookies, "SECURE_COOKIES")
	envString(&c.PhoneRegion, "PHONE_REGION")

	envString(&c.StorageDriver, "STORAGE_DRIVER")
	envString(&c.CloudinaryURL, "CLOUDINARY_URL")
	envString(&c.UploadFolder, "UPLOAD_FOLDER")
	envString(&c.S3AccessKey, "S3_ACCESS_KEY")
	envString(&c.S3SecretKey, "S3_SECRET_KEY")
	envString(&c.S3Bucket, "S3_BUCKET")
	envString(&c.S3Region, "S3_REGION")
	envString(&c.S3BaseEndpoint, "S3_ENDPOINT")
	envString(&c.DiskDir, "UPLOAD_DIR")
	envString(&c.DiskBaseURL, "UPLOAD_BASE_URL")

	envString(&c.MailDriver, "MAIL_DRIVER")
	envString(&c.SMTPHost, "SMTP_HOST")
	envInt(&c.SMTPPort, "SMTP_PORT")
	envString(&c.SMTPUsername, "SMTP_USERNAME")
	envString(&c.SMTPPassword, "SMTP_PASSWORD")
	envString(&c.MailFrom, "MAIL_FROM")
	envString(&c.MailFromName, "MAIL_FROM_NAME")
	envInt(&c.MailRatePerMinute, "MAIL_RATE_PER_MINUTE")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.KafkaBrokers = splitList(brokers)
	}
	envString(&c.KafkaUsername, "KAFKA_USERNAME")
	envString(&c.KafkaPassword, "KAFKA_PASSWORD")
	envBool(&c.KafkaTLS, "KAFKA_TLS")
	envString(&c.KafkaMailTopic, "KAFKA_MAIL_TOPIC")
	envString(&c.KafkaActivityTopic, "KAFKA_ACTIVITY_TOPIC")
	envString(&c.KafkaGroupID, "KAFKA_GROUP_ID")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
