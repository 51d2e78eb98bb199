package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr     string
	DBPath         string
	PhotoPath      string
	CacheDir       string
	JWTSecret      string
	RemoveBGAPIKey string
	RemoveBGURL    string
	VisionBackend  string
	OllamaHost     string
	OllamaModel    string
	ClaudeAPIKey   string
	ClaudeModel    string
	LogLevel       string
	LogFormat      string
	LogFile        string
	FlowTTL        time.Duration
	// ShuffleSeed fixes the shuffle RNG when set.
	ShuffleSeed *uint64
	TestMode    bool
}

// Load reads the configuration from the environment. Variables in a .env
// file in the working directory are applied first without overriding ones
// already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		DBPath:         getEnv("DB_PATH", "/data/wardrobe.db"),
		PhotoPath:      getEnv("PHOTO_LOCAL_PATH", "/data/photos"),
		CacheDir:       getEnv("CACHE_DIR", "/data/cache"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		RemoveBGAPIKey: getEnv("REMOVEBG_API_KEY", ""),
		RemoveBGURL:    getEnv("REMOVEBG_URL", "https://api.remove.bg/v1.0/removebg"),
		VisionBackend:  getEnv("VISION_BACKEND", "none"),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llava"),
		ClaudeAPIKey:   getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:    getEnv("CLAUDE_MODEL", "claude-3-5-haiku-latest"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		LogFile:        getEnv("LOG_FILE", ""),
		TestMode:       os.Getenv("WARDROBE_TEST_MODE") == "1",
	}

	ttl, err := time.ParseDuration(getEnv("FLOW_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid FLOW_TTL: %w", err)
	}
	cfg.FlowTTL = ttl

	if raw := getEnv("SHUFFLE_SEED", ""); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUFFLE_SEED: %w", err)
		}
		cfg.ShuffleSeed = &seed
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" && !c.TestMode {
		return errors.New("JWT_SECRET is required")
	}
	switch c.VisionBackend {
	case "none", "ollama":
	case "claude":
		if c.ClaudeAPIKey == "" {
			return errors.New("CLAUDE_API_KEY is required when VISION_BACKEND=claude")
		}
	default:
		return fmt.Errorf("unknown VISION_BACKEND %q", c.VisionBackend)
	}
	if c.FlowTTL <= 0 {
		return errors.New("FLOW_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
