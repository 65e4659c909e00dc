package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AppName     string
	DeviceModel string
	OSVersion   string

	KeyDir   string
	KeyAlias string

	GalleryDir string

	PolicyBundlePath       string
	PolicyBundleID         string
	RequireTrustedHardware bool

	NonceTTLSeconds int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		AppName:                envDefault("APP_NAME", "Attested Photo"),
		DeviceModel:            envDefault("DEVICE_MODEL", "unknown"),
		OSVersion:              envDefault("OS_VERSION", "unknown"),
		KeyDir:                 envDefault("KEY_DIR", "keys"),
		KeyAlias:               envDefault("KEY_ALIAS", "attested_photo_key"),
		GalleryDir:             envDefault("GALLERY_DIR", "gallery"),
		PolicyBundlePath:       os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:         envDefault("POLICY_BUNDLE_ID", "capture_v0"),
		RequireTrustedHardware: envBoolDefault("REQUIRE_TRUSTED_HARDWARE", false),
		NonceTTLSeconds:        envIntDefault("NONCE_TTL_SECONDS", 300),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) NonceTTL() time.Duration {
	if c.NonceTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.NonceTTLSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
