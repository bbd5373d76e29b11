package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	RequestTimeout time.Duration
	MetricsAddr    string
	MySQLDSN       string
	RedisAddr      string
	RedisDB        int
	RedisPass      string

	PMSBaseURL  string
	PMSAPIKey   string
	PMSUser     string
	PMSPassword string
	PMSTimeout  time.Duration

	ChannelBaseURL  string
	ChannelUser     string
	ChannelPassword string
	ChannelTimeout  time.Duration

	UpstreamRPS int
	Workers     int
	SyncDays    int
	CacheTTL    time.Duration
	// ChannelOnlySources lists booking sources that exist only on the channel manager.
	ChannelOnlySources []string

	AuditBucket  string
	AuditPrefix  string
	AWSRegion    string
	AWSEndpoint  string
	AWSPathStyle bool
}

// Load reads configuration from the environment. A .env file in the working
// directory (or ENV_FILE) is applied first without overriding set variables.
func Load() Config {
	file := env("ENV_FILE", ".env")
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("file", file).Msg("could not read env file")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		RequestTimeout: time.Duration(atoi("HTTP_REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		MetricsAddr:    env("METRICS_ADDR", ":9100"),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hotel_sync?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisDB:        atoi("REDIS_DB", 0),
		RedisPass:      env("REDIS_PASSWORD", ""),

		PMSBaseURL:  env("PMS_BASE_URL", "http://localhost/minical/api"),
		PMSAPIKey:   env("PMS_API_KEY", ""),
		PMSUser:     env("PMS_USERNAME", ""),
		PMSPassword: env("PMS_PASSWORD", ""),
		PMSTimeout:  time.Duration(atoi("PMS_TIMEOUT_SECONDS", 10)) * time.Second,

		ChannelBaseURL:  env("CHANNEL_BASE_URL", "https://api.yieldplanet.com/v1"),
		ChannelUser:     env("CHANNEL_USERNAME", ""),
		ChannelPassword: env("CHANNEL_PASSWORD", ""),
		ChannelTimeout:  time.Duration(atoi("CHANNEL_TIMEOUT_SECONDS", 30)) * time.Second,

		UpstreamRPS:        atoi("UPSTREAM_RPS", 5),
		Workers:            atoi("SYNC_WORKERS", 4),
		SyncDays:           atoi("SYNC_DAYS", 30),
		CacheTTL:           time.Duration(atoi("MAPPING_CACHE_TTL_SECONDS", 300)) * time.Second,
		ChannelOnlySources: splitList(env("CHANNEL_ONLY_SOURCES", "ai_agent")),

		AuditBucket:  env("AUDIT_BUCKET", ""),
		AuditPrefix:  env("AUDIT_PREFIX", "audit"),
		AWSRegion:    env("AWS_REGION", "us-east-1"),
		AWSEndpoint:  env("AWS_ENDPOINT_URL", ""),
		AWSPathStyle: strings.EqualFold(env("AWS_S3_PATH_STYLE", "false"), "true"),
	}
	if c.PMSAPIKey == "" && c.PMSUser == "" {
		log.Warn().Msg("PMS_API_KEY and PMS_USERNAME are empty")
	}
	if c.ChannelUser == "" {
		log.Warn().Msg("CHANNEL_USERNAME is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
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
