package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Cache   CacheConfig
	Sidra   SidraConfig
	Trends  TrendsConfig
	News    NewsConfig
	ETL     ETLConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type CacheConfig struct {
	Dir      string
	TTLHours int
}

type SidraConfig struct {
	BaseURL     string
	TimeoutSec  int
	MaxAttempts int
}

type TrendsConfig struct {
	BaseURL      string
	TimeoutSec   int
	MaxKeywords  int
	MinDelayMs   int
	MaxDelayMs   int
	RetryMinSec  int
	RetryMaxSec  int
	MaxAttempts  int
	FailureLimit int
	CooldownSec  int
}

type NewsConfig struct {
	Sources     []string
	MaxArticles int
	TimeoutSec  int
	MinDelayMs  int
}

type ETLConfig struct {
	Workers    int
	TimeoutSec int
	MarketSize float64
	GrowthRate float64
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/marketlens")

	viper.SetEnvPrefix("MARKETLENS")
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

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 180)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/marketlens.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 24)

	viper.SetDefault("cache.dir", "./data/cache/sidra")
	viper.SetDefault("cache.ttlHours", 168)

	viper.SetDefault("sidra.baseURL", "https://apisidra.ibge.gov.br")
	viper.SetDefault("sidra.timeoutSec", 30)
	viper.SetDefault("sidra.maxAttempts", 3)

	viper.SetDefault("trends.baseURL", "https://trends.google.com")
	viper.SetDefault("trends.timeoutSec", 30)
	viper.SetDefault("trends.maxKeywords", 5)
	viper.SetDefault("trends.minDelayMs", 1000)
	viper.SetDefault("trends.maxDelayMs", 3000)
	viper.SetDefault("trends.retryMinSec", 4)
	viper.SetDefault("trends.retryMaxSec", 10)
	viper.SetDefault("trends.maxAttempts", 3)
	viper.SetDefault("trends.failureLimit", 3)
	viper.SetDefault("trends.cooldownSec", 60)

	viper.SetDefault("news.sources", []string{
		"https://agenciabrasil.ebc.com.br",
		"https://www.ibge.gov.br",
		"https://www.gov.br",
		"https://www12.senado.leg.br",
		"https://www.camara.leg.br",
	})
	viper.SetDefault("news.maxArticles", 20)
	viper.SetDefault("news.timeoutSec", 15)
	viper.SetDefault("news.minDelayMs", 500)

	viper.SetDefault("etl.workers", 3)
	viper.SetDefault("etl.timeoutSec", 120)
	viper.SetDefault("etl.marketSize", 150000)
	viper.SetDefault("etl.growthRate", 0.07)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
