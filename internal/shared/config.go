package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	DocStore  string // mongo|mysql
	MongoURI  string
	MongoDB   string
	MySQLDSN  string
	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	ImageStore          string // cloudinary|gcs
	CloudinaryCloud     string
	CloudinaryKey       string
	CloudinarySecret    string
	CloudinaryRPS       int
	GCSBucket           string
	GCSCDNDomain        string
	ImageFolder         string
	ImageMaxDimension   int
	MaxUploadFiles      int
	MaxUploadBytes      int64
	ImageMatchMode      string
	PruneDetachedImages bool

	JWTSecret    string
	CORSOrigins  []string
	SeedWorkers  int
	RequestLimit time.Duration
}

// Load reads configuration from the environment. Values in .env.local and
// .env are loaded first without overriding variables already set.
func Load() Config {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":5000"),
		MetricsAddr: env("METRICS_ADDR", ""),

		DocStore:  strings.ToLower(env("DOC_STORE", "mongo")),
		MongoURI:  env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   env("MONGO_DB", "realty"),
		MySQLDSN:  env("MYSQL_DSN", "root:root@tcp(localhost:3306)/realty?parseTime=true&charset=utf8mb4&loc=UTC&multiStatements=true"),
		RedisAddr: env("REDIS_ADDR", ""),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		ImageStore:          strings.ToLower(env("IMAGE_STORE", "cloudinary")),
		CloudinaryCloud:     env("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryKey:       env("CLOUDINARY_API_KEY", ""),
		CloudinarySecret:    env("CLOUDINARY_API_SECRET", ""),
		CloudinaryRPS:       atoi("CLOUDINARY_RPS", 5),
		GCSBucket:           env("GCS_BUCKET", ""),
		GCSCDNDomain:        env("GCS_CDN_DOMAIN", ""),
		ImageFolder:         env("IMAGE_FOLDER", "property_images"),
		ImageMaxDimension:   atoi("IMAGE_MAX_DIMENSION", 1000),
		MaxUploadFiles:      atoi("MAX_UPLOAD_FILES", 10),
		MaxUploadBytes:      int64(atoi("MAX_UPLOAD_MB", 50)) << 20,
		ImageMatchMode:      env("IMAGE_MATCH_MODE", "legacy-suffix"),
		PruneDetachedImages: envBool("PRUNE_DETACHED_IMAGES", true),

		JWTSecret:    env("JWT_SECRET", ""),
		CORSOrigins:  splitList(env("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		SeedWorkers:  atoi("SEED_WORKERS", 4),
		RequestLimit: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 90)) * time.Second,
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	return c
}

func (c Config) IsDev() bool { return c.AppEnv == "dev" || c.AppEnv == "development" }

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
