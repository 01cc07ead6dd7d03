package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port        string
	DatabaseURL string
	DBMaxConns  int

	Redis   RedisConfig
	Storage StorageConfig
	JWT     JWTConfig

	LogLevel  string
	LogFormat string
	CacheTTL  time.Duration
}

// RedisConfig is optional; an empty Addr disables the artifact cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig selects where floor artifacts and venue media live.
type StorageConfig struct {
	Backend      string // "local" or "s3"
	ArtifactRoot string
	MediaRoot    string

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getint("DB_MAX_CONNS", 10),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),
		CacheTTL:    getduration("CACHE_TTL", 10*time.Minute),
	}
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.Storage = StorageConfig{
		Backend:      getenv("STORAGE_BACKEND", "local"),
		ArtifactRoot: getenv("ARTIFACT_ROOT", "data/geojson"),
		MediaRoot:    getenv("MEDIA_ROOT", "uploads"),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3Bucket:     os.Getenv("S3_BUCKET"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:     getbool("S3_USE_SSL", true),
	}
	cfg.JWT = JWTConfig{
		Secret: getenv("JWT_SECRET", "change-me"),
		TTL:    getduration("JWT_TTL", 24*time.Hour),
	}
	return cfg
}

// LoadFromEnv fills the Redis settings from <prefix>_ADDR, _PASSWORD and _DB.
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		fmt.Sscanf(db, "%d", &c.DB)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
