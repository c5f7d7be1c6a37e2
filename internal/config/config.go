package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Features FeaturesConfig `yaml:"features" mapstructure:"features"`
	Training TrainingConfig `yaml:"training" mapstructure:"training"`
	Geo      GeoConfig      `yaml:"geo" mapstructure:"geo"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Temporal TemporalConfig `yaml:"temporal" mapstructure:"temporal"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig fixes the on-disk layout shared by the pipeline stages.
type DataConfig struct {
	RawDir          string `yaml:"raw_dir" mapstructure:"raw_dir"`
	PreprocessedDir string `yaml:"preprocessed_dir" mapstructure:"preprocessed_dir"`
	ModelPath       string `yaml:"model_path" mapstructure:"model_path"`
	ArchiveDir      string `yaml:"archive_dir" mapstructure:"archive_dir"`
	ExampleFeatures string `yaml:"example_features" mapstructure:"example_features"`
}

// IngestConfig configures raw data download.
type IngestConfig struct {
	// BaseURL is the object store prefix the source files are fetched from.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Files are the fixed source file names appended to BaseURL. Entries may
	// also be absolute http(s):// or ftp:// URLs.
	Files       []string `yaml:"files" mapstructure:"files"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int      `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string   `yaml:"user_agent" mapstructure:"user_agent"`
}

// FeaturesConfig configures feature building.
type FeaturesConfig struct {
	// SchemaPath optionally overrides the built-in feature schema with a YAML file.
	SchemaPath string `yaml:"schema_path" mapstructure:"schema_path"`
}

// TrainingConfig configures model fitting and the retrain decision.
type TrainingConfig struct {
	Trees             int     `yaml:"trees" mapstructure:"trees"`
	Seed              int64   `yaml:"seed" mapstructure:"seed"`
	TestFraction      float64 `yaml:"test_fraction" mapstructure:"test_fraction"`
	AccuracyThreshold float64 `yaml:"accuracy_threshold" mapstructure:"accuracy_threshold"`
}

// GeoConfig configures optional admin-zone enrichment from a boundaries shapefile.
type GeoConfig struct {
	ZonesShapefile string `yaml:"zones_shapefile" mapstructure:"zones_shapefile"`
	ZoneField      string `yaml:"zone_field" mapstructure:"zone_field"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// TemporalConfig configures the retrain workflow worker and schedule.
type TemporalConfig struct {
	HostPort   string `yaml:"host_port" mapstructure:"host_port"`
	Namespace  string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue  string `yaml:"task_queue" mapstructure:"task_queue"`
	ScheduleID string `yaml:"schedule_id" mapstructure:"schedule_id"`
	Cron       string `yaml:"cron" mapstructure:"cron"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// AuthConfig holds the operator credential and token signing settings.
type AuthConfig struct {
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`
	Secret        string `yaml:"secret" mapstructure:"secret"`
	TokenTTLMins  int    `yaml:"token_ttl_mins" mapstructure:"token_ttl_mins"`
	AllowedOrigin string `yaml:"allowed_origin" mapstructure:"allowed_origin"`
}

// NotifyConfig configures retrain outcome notifications.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.preprocessed_dir", "data/preprocessed")
	v.SetDefault("data.model_path", "models/trained_model.gob")
	v.SetDefault("data.archive_dir", "models/archives")
	v.SetDefault("data.example_features", "models/test_features.json")
	v.SetDefault("ingest.base_url", "https://road-accidents-db.s3.eu-west-1.amazonaws.com/accidents")
	v.SetDefault("ingest.files", []string{
		"caracteristiques-2021.csv",
		"lieux-2021.csv",
		"usagers-2021.csv",
		"vehicules-2021.csv",
	})
	v.SetDefault("ingest.timeout_secs", 60)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.user_agent", "crash-cli/1.0")
	v.SetDefault("training.trees", 100)
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.test_fraction", 0.3)
	v.SetDefault("training.accuracy_threshold", 0.85)
	v.SetDefault("geo.zone_field", "INSEE_DEP")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "crash-cli.db")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "model-maintenance")
	v.SetDefault("temporal.schedule_id", "crash-model-retrain")
	v.SetDefault("temporal.cron", "0 3 * * *")
	v.SetDefault("server.port", 8000)
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.token_ttl_mins", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
