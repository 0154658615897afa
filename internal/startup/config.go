package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tubeplayer/internal/logging"
)

// DatabaseFile is the catalog file name inside DATABASE_DIR.
const DatabaseFile = "tubeplayer.db"

// Config holds all application configuration
type Config struct {
	DatabaseDir    string
	CacheDir       string
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	Quality             string
	Repeat              bool
	AutoStop            time.Duration
	PlayerRetry         int
	NetworkRetry        int
	CachingTriggerPoint int
	DefaultVolume       int
	RecoveryDelay       time.Duration
	OfflineRetryDelay   time.Duration

	FFPlayPath       string
	FFProbePath      string
	NetworkProbeAddr string
	WakeLock         string
	ResolverRate     float64

	// Derived paths
	DatabasePath  string
	VideoCacheDir string
}

// setting is one line of the configuration banner.
type setting struct {
	key   string
	value any
}

func (c *Config) settings() []setting {
	return []setting{
		{"DATABASE_DIR", c.DatabaseDir},
		{"CACHE_DIR", c.CacheDir},
		{"PORT", c.Port},
		{"METRICS_PORT", c.MetricsPort},
		{"METRICS_ENABLED", c.MetricsEnabled},
		{"QUALITY", c.Quality},
		{"REPEAT", c.Repeat},
		{"AUTO_STOP", c.AutoStop},
		{"PLAYER_RETRY", c.PlayerRetry},
		{"NETWORK_RETRY", c.NetworkRetry},
		{"CACHING_TRIGGER_POINT", c.CachingTriggerPoint},
		{"DEFAULT_VOLUME", c.DefaultVolume},
		{"RECOVERY_DELAY", c.RecoveryDelay},
		{"OFFLINE_RETRY_DELAY", c.OfflineRetryDelay},
		{"FFPLAY_PATH", c.FFPlayPath},
		{"FFPROBE_PATH", c.FFProbePath},
		{"NETWORK_PROBE_ADDR", c.NetworkProbeAddr},
		{"WAKE_LOCK", c.WakeLock},
		{"RESOLVER_RATE", fmt.Sprintf("%.1f/s", c.ResolverRate)},
		{"LOG_LEVEL", logging.GetLevel()},
	}
}

// configFromEnv parses the environment without touching the filesystem.
func configFromEnv() (*Config, error) {
	databaseDir, err := filepath.Abs(getEnv("DATABASE_DIR", "/data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cacheDir, err := filepath.Abs(getEnv("CACHE_DIR", "/cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}

	return &Config{
		DatabaseDir:         databaseDir,
		CacheDir:            cacheDir,
		Port:                getEnv("PORT", "59923"),
		MetricsPort:         getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
		Quality:             getEnvChoice("QUALITY", "normal", "low", "normal"),
		Repeat:              getEnvBool("REPEAT", false),
		AutoStop:            getEnvDuration("AUTO_STOP", 0),
		PlayerRetry:         getEnvIntRange("PLAYER_RETRY", 3, 0, -1),
		NetworkRetry:        getEnvIntRange("NETWORK_RETRY", 3, 0, -1),
		CachingTriggerPoint: getEnvIntRange("CACHING_TRIGGER_POINT", 100, 0, 100),
		DefaultVolume:       getEnvIntRange("DEFAULT_VOLUME", 50, 0, 100),
		RecoveryDelay:       getEnvDuration("RECOVERY_DELAY", 500*time.Millisecond),
		OfflineRetryDelay:   getEnvDuration("OFFLINE_RETRY_DELAY", time.Second),
		FFPlayPath:          getEnv("FFPLAY_PATH", "ffplay"),
		FFProbePath:         getEnv("FFPROBE_PATH", "ffprobe"),
		NetworkProbeAddr:    getEnv("NETWORK_PROBE_ADDR", "www.youtube.com:443"),
		WakeLock:            getEnvChoice("WAKE_LOCK", "none", "none", "systemd"),
		ResolverRate:        getEnvRate("RESOLVER_RATE", 2),
		DatabasePath:        filepath.Join(databaseDir, DatabaseFile),
		VideoCacheDir:       filepath.Join(cacheDir, "videos"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvIntRange reads an integer in [lo, hi]. A negative hi means no upper
// bound.
func getEnvIntRange(key string, defaultValue, lo, hi int) int {
	v := getEnvInt(key, defaultValue)
	if v < lo || (hi >= 0 && v > hi) {
		logging.Warn("%s out of range: %d, using default: %d", key, v, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvChoice reads a case-insensitive value that must be one of choices.
func getEnvChoice(key, defaultValue string, choices ...string) string {
	value := strings.ToLower(getEnv(key, defaultValue))
	for _, c := range choices {
		if value == c {
			return value
		}
	}
	logging.Warn("Invalid %s %q, using default: %s", key, value, defaultValue)
	return defaultValue
}

// getEnvRate reads a positive rate per second.
func getEnvRate(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid %s %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
