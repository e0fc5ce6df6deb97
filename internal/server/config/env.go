package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded before reading variables; a missing file is fine.
var envFile = ".env"

// parseEnv overlays non-empty environment variables onto config. Variables
// already present in the process environment take precedence over .env.
//
// Durations use Go syntax ("15m", "240h"); TRUSTED_ORIGINS is comma separated.
func parseEnv(config *Config) {
	_ = godotenv.Load(envFile)

	setString(&config.HTTPAddr, "HTTP_ADDR")
	setString(&config.Environment, "APP_ENV")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.AccessTokenSecret, "ACCESS_TOKEN_SECRET")
	setString(&config.RefreshTokenSecret, "REFRESH_TOKEN_SECRET")
	setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_EXPIRY")
	setDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_EXPIRY")
	setString(&config.S3RootUser, "S3_ROOT_USER")
	setString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&config.S3PublicURL, "S3_PUBLIC_URL")
	setDuration(&config.UploadTimeout, "UPLOAD_TIMEOUT")
	setDuration(&config.StoreTimeout, "STORE_TIMEOUT")
	setString(&config.UploadDir, "UPLOAD_DIR")
	setString(&config.LogBackend, "LOG_BACKEND")
	setString(&config.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("TRUSTED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			config.TrustedOrigins = origins
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setDuration keeps the current value when the variable is malformed.
func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
