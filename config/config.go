package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	LastSeenDocument = "document"
	LastSeenMySQL    = "mysql"
	LastSeenRedis    = "redis"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	LastSeen  LastSeenConfig
	Presence  PresenceConfig
	Calendar  CalendarConfig
	Firebase  FirebaseConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

type StoreConfig struct {
	Backend        string
	MongoURI       string
	Database       string
	ConnectTimeout time.Duration
}

// LastSeenConfig selects where per-user last-seen timestamps are kept.
// The document backend shares the primary store.
type LastSeenConfig struct {
	Backend    string
	Collection string
	MySQLDSN   string
	RedisURL   string
	RedisKey   string
}

type PresenceConfig struct {
	SweepInterval time.Duration
	StaleAfter    time.Duration
}

type CalendarConfig struct {
	CalendarID         string
	ServiceAccountPath string
	ClientID           string
	ClientSecret       string
	RedirectURL        string
}

type FirebaseConfig struct {
	ServiceAccountPath string
	EventsTopic        string
}

type LogConfig struct {
	Level    string
	Encoding string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// serviceAccountFallbacks are probed in order when GOOGLE_SERVICE_ACCOUNT_PATH is unset.
var serviceAccountFallbacks = []string{
	"/etc/secrets/service_account.json",
	"./config/service_account.json",
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "4000"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			CORSOrigins:  getList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(getEnv("STORE_BACKEND", StoreMongo)),
			MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DATABASE", "crm"),
			ConnectTimeout: getDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		LastSeen: LastSeenConfig{
			Backend:    strings.ToLower(getEnv("LAST_SEEN_BACKEND", LastSeenDocument)),
			Collection: getEnv("LAST_SEEN_COLLECTION", "users_status"),
			MySQLDSN:   getEnv("MYSQL_DSN", ""),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
			RedisKey:   getEnv("REDIS_LAST_SEEN_KEY", "crm:last_seen"),
		},
		Presence: PresenceConfig{
			SweepInterval: getDuration("PRESENCE_SWEEP_INTERVAL", 4*time.Second),
			StaleAfter:    getDuration("PRESENCE_STALE_AFTER", 12*time.Second),
		},
		Calendar: CalendarConfig{
			CalendarID:         getEnv("GOOGLE_CALENDAR_ID", "primary"),
			ServiceAccountPath: serviceAccountPath(os.Getenv("GOOGLE_SERVICE_ACCOUNT_PATH")),
			ClientID:           getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret:       getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:        getEnv("GOOGLE_REDIRECT_URL", "http://localhost:4000/calendar/redirect"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
			EventsTopic:        getEnv("FIREBASE_EVENTS_TOPIC", "crm-events"),
		},
		Log: LogConfig{
			Level:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Encoding: strings.ToLower(getEnv("LOG_ENCODING", "json")),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("RATE_LIMIT_REQUESTS", 300),
			Window:   getDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		},
	}
}

// Validate rejects backend names and timings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.Store.Backend)
	}
	switch c.LastSeen.Backend {
	case LastSeenDocument, LastSeenRedis:
	case LastSeenMySQL:
		if c.LastSeen.MySQLDSN == "" {
			return fmt.Errorf("config: MYSQL_DSN is required for LAST_SEEN_BACKEND=mysql")
		}
	default:
		return fmt.Errorf("config: unknown LAST_SEEN_BACKEND %q", c.LastSeen.Backend)
	}
	if c.Presence.SweepInterval <= 0 {
		return fmt.Errorf("config: PRESENCE_SWEEP_INTERVAL must be positive")
	}
	if c.Presence.StaleAfter <= c.Presence.SweepInterval {
		return fmt.Errorf("config: PRESENCE_STALE_AFTER (%s) must exceed PRESENCE_SWEEP_INTERVAL (%s)",
			c.Presence.StaleAfter, c.Presence.SweepInterval)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("config: LOG_ENCODING must be json or console")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: rate limit requests and window must be positive")
	}
	return nil
}

func serviceAccountPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, p := range serviceAccountFallbacks {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

// getDuration accepts Go duration strings ("4s") or plain seconds ("4").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
