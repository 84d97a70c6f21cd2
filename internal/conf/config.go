// Package conf loads reviewcore settings from config.yaml, environment and flags.
package conf

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"

	"github.com/gigshield/reviewcore/internal/logger"
)

//go:embed config.yaml
var defaultConfigYAML string

// EnvPrefix is the prefix for environment overrides, e.g. REVIEWCORE_QUEUE_MAXCONCURRENCY.
const EnvPrefix = "REVIEWCORE"

// Settings contains all configuration options for reviewcore.
type Settings struct {
	Debug bool

	Logging      logger.LoggingConfig
	Database     DatabaseSettings
	Queue        QueueSettings
	Engine       EngineSettings
	Gates        GateSettings
	Verifier     VerifierSettings
	Recheck      RecheckSettings
	API          APISettings
	Metrics      MetricsSettings
	MQTT         MQTTSettings
	Notification NotificationSettings
	Sentry       SentrySettings
}

// DatabaseSettings selects and configures the persistence store.
type DatabaseSettings struct {
	Driver             string        // sqlite or mysql
	SlowQueryThreshold time.Duration // queries slower than this are logged at warn
	MaxOpenConns       int
	SQLite             struct {
		Path string // database file, ":memory:" for an in-memory store
	}
	MySQL struct {
		Host     string
		Port     string
		Username string
		Password string
		Database string
	}
}

// QueueSettings configures the review queue manager.
type QueueSettings struct {
	MaxConcurrency   int           // concurrent verification workers
	WorkerTimeout    time.Duration // hard limit for one task attempt
	DispatchInterval time.Duration // scheduling tick, also re-checks the breaker
	Breaker          struct {
		Threshold int           // consecutive critical failures before halting
		Cooldown  time.Duration // halt duration
	}
}

// EngineSettings configures the verification and decision engine.
type EngineSettings struct {
	ConfidenceThreshold float64 // minimum confidence for a pass
	KeywordThreshold    float64 // minimum weighted keyword score
	KeywordFile         string  // optional YAML overriding the built-in keyword list
	MismatchThreshold   float64 // similarity below this fails the task
	BoostThreshold      float64 // similarity at or above this on both fields boosts confidence
	FirstAttemptDelay   time.Duration
	SecondAttemptDelay  time.Duration
}

// GateSettings configures the anti-fraud gates.
type GateSettings struct {
	NicknameWindow      time.Duration
	DeviceCooldown      time.Duration
	MaxApprovedComments int
}

// VerifierSettings configures the HTTP content verifier client.
type VerifierSettings struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration // per call
	RateLimit float64       // requests per second
	Burst     int
	UserAgent string
}

// RecheckSettings configures the continuous check scheduler.
type RecheckSettings struct {
	Enabled     bool
	Interval    time.Duration
	CallTimeout time.Duration // bound for one existence check
	Parallelism int
	BatchSize   int
}

// APISettings configures the intake HTTP API.
type APISettings struct {
	Enabled bool
	Listen  string
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
	Path    string
}

// MQTTSettings configures decision event publishing.
type MQTTSettings struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Retain      bool
}

// NotificationSettings configures operator alerts.
type NotificationSettings struct {
	Enabled bool
	URLs    []string // shoutrrr service URLs
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file (explicit path or the default search
// paths), applies environment overrides, validates and stores the result.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range DefaultConfigPaths() {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Defaults are complete; running without a file is supported.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// DefaultConfigPaths returns the directories searched for config.yaml.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reviewcore"))
	}
	return append(paths, "/etc/reviewcore")
}

// DefaultConfig returns the annotated default configuration file.
func DefaultConfig() string {
	return defaultConfigYAML
}

// Setting returns the loaded settings, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// MySQLDSN builds the go-sql-driver DSN from the MySQL settings, with
// credentials escaped and times read as UTC.
func (d *DatabaseSettings) MySQLDSN() string {
	cfg := mysql.NewConfig()
	cfg.User = d.MySQL.Username
	cfg.Passwd = d.MySQL.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.MySQL.Host, d.MySQL.Port)
	cfg.DBName = d.MySQL.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}
