package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvFiles are read, in order, by LoadEnvFiles. Earlier files win.
var EnvFiles = []string{".env", "config.env"}

type Config struct {
	App struct {
		Port         string
		Debug        bool
		AllowOrigins []string
	}
	DB struct {
		Driver      string
		URL         string
		Host        string
		Port        string
		User        string
		Password    string
		DBName      string
		SSLMode     string
		AutoMigrate bool
	}
	Redis struct {
		Enabled  bool
		Host     string
		Port     string
		Password string
		DB       int
	}
	Cache struct {
		TTL time.Duration
	}
	RateLimit struct {
		RequestsPerSecond float64
		Burst             int
		PerIP             bool
	}
	Log struct {
		Level        string
		Format       string
		EnableCaller bool
	}
	MQTT struct {
		Server        string
		ClientID      string
		Username      string
		Password      string
		Topic         string
		ChannelOffset int
		ValueField    string
	}
	Bridge struct {
		APIURL        string
		StatsInterval time.Duration
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8000")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.AllowOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8501"})

	// DB
	cfg.DB.Driver = strings.ToLower(getEnv("DB_DRIVER", "postgres"))
	cfg.DB.URL = getEnv("DATABASE_URL", "")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", defaultDBPort(cfg.DB.Driver))
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "sensors")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", true)

	// Redis
	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", false)
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	cfg.Cache.TTL = getEnvAsDuration("CACHE_TTL", 30*time.Second)

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsFloat("RATE_LIMIT_RPS", 20)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 40)
	cfg.RateLimit.PerIP = getEnvAsBool("RATE_LIMIT_PER_IP", false)

	// Logging
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "console")
	cfg.Log.EnableCaller = getEnvAsBool("LOG_CALLER", false)

	// MQTT bridge
	cfg.MQTT.Server = getEnv("MQTT_SERVER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "sensorhub-bridge")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "ads1115/channel/+")
	cfg.MQTT.ChannelOffset = getEnvAsInt("MQTT_CHANNEL_OFFSET", 1)
	cfg.MQTT.ValueField = getEnv("MQTT_VALUE_FIELD", "voltage")

	cfg.Bridge.APIURL = getEnv("BRIDGE_API_URL", "http://localhost:8000")
	cfg.Bridge.StatsInterval = getEnvAsDuration("BRIDGE_STATS_INTERVAL", time.Minute)

	return cfg
}

// LoadEnvFiles loads each existing file into the process environment without
// overriding variables already set. It returns the files it loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	var loaded []string
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

func defaultDBPort(driver string) string {
	if driver == "mysql" {
		return "3306"
	}
	return "5432"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
