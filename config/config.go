package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the client configuration.
type Config struct {
	APIBaseURL string // Base URL of the Spit.box REST backend, e.g. http://127.0.0.1:5000/api
	FFmpegPath string

	// Capture settings. The device is always opened mono at SampleRate with
	// echo cancellation and noise suppression; see core/capture.Constraints.
	SampleRate    int
	ChunkInterval time.Duration // how often the capture device emits a chunk
	MaxRecordSecs int           // hard stop for a runaway recording, 0 = unlimited

	TakesDir  string // directory watched by `spitbox watch` for finished takes
	TokenPath string // file holding the bearer token between runs

	// Waveform rendering.
	PeakBuckets int // amplitude buckets computed per loaded source

	// Redis peaks cache. Empty host disables redis and falls back to the
	// in-process cache.
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	PeaksCacheTTL time.Duration

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as a duration or returns a default.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".spitbox")

	return &Config{
		APIBaseURL:    getEnv("SPITBOX_API_URL", "http://127.0.0.1:5000/api"),
		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		SampleRate:    getEnvInt("CAPTURE_SAMPLE_RATE", 44100),
		ChunkInterval: getEnvDuration("CAPTURE_CHUNK_INTERVAL", 200*time.Millisecond),
		MaxRecordSecs: getEnvInt("CAPTURE_MAX_SECONDS", 0),
		TakesDir:      getEnv("TAKES_DIR", filepath.Join(stateDir, "takes")),
		TokenPath:     getEnv("TOKEN_PATH", filepath.Join(stateDir, "token")),
		PeakBuckets:   getEnvInt("WAVEFORM_PEAK_BUCKETS", 200),
		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		PeaksCacheTTL: getEnvDuration("PEAKS_CACHE_TTL", 30*time.Minute),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPath:       getEnv("LOG_PATH", filepath.Join(stateDir, "logs", "spitbox.log")),
	}
}
