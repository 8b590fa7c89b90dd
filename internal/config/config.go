package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Ingest   IngestConfig
	Match    MatchConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	AdminSecret string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	URL        string
	AlertQueue string
}

type IngestConfig struct {
	RegistryPath    string
	ImportSchedule  string
	CleanupSchedule string
	BackfillLimit   int
	DryRunCleanup   bool
}

type MatchConfig struct {
	Schedule string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/tenderwatch")

	viper.SetEnvPrefix("TENDERWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required (TENDERWATCH_DATABASE_URL)")
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	viper.SetDefault("redis.alertQueue", "tenderwatch:alerts")

	viper.SetDefault("ingest.importSchedule", "0 */2 * * *")
	viper.SetDefault("ingest.cleanupSchedule", "30 3 * * *")
	viper.SetDefault("ingest.backfillLimit", 500)
	viper.SetDefault("ingest.dryRunCleanup", false)

	viper.SetDefault("match.schedule", "15 */2 * * *")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
