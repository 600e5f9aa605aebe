package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/sienaconfecciones/storefront/internal/log"
)

type Application struct {
	Env  string `mapstructure:"env"  json:"env"`
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type Cache struct {
	Host     string `mapstructure:"host"     json:"host"`
	Password string `mapstructure:"password" json:"-"`
	Database int    `mapstructure:"database" json:"database"`
	Port     uint16 `mapstructure:"port"     json:"port"`
}

type Otel struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type OrderStore struct {
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"  json:"timeout"`
}

type Notification struct {
	MaxAttempts      uint64        `mapstructure:"max_attempts"       json:"max_attempts"`
	InitialInterval  time.Duration `mapstructure:"initial_interval"   json:"initial_interval"`
	MaxInterval      time.Duration `mapstructure:"max_interval"       json:"max_interval"`
	RelayInterval    time.Duration `mapstructure:"relay_interval"     json:"relay_interval"`
	RelayBatchSize   int           `mapstructure:"relay_batch_size"   json:"relay_batch_size"`
	MaxRelayAttempts int           `mapstructure:"max_relay_attempts" json:"max_relay_attempts"`
}

type Dashboard struct {
	ResetStatusOnEdit bool `mapstructure:"reset_status_on_edit" json:"reset_status_on_edit"`
}

type Cart struct {
	TTL time.Duration `mapstructure:"ttl" json:"ttl"`
}

type Config struct {
	Application  `mapstructure:"application"  json:"application"`
	Cache        `mapstructure:"cache"        json:"cache"`
	Otel         `mapstructure:"otel"         json:"otel"`
	OrderStore   `mapstructure:"order_store"  json:"order_store"`
	Notification `mapstructure:"notification" json:"notification"`
	Dashboard    `mapstructure:"dashboard"    json:"dashboard"`
	Cart         `mapstructure:"cart"         json:"cart"`
}

var (
	once   sync.Once
	config *Config
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("application.env", "production")
	v.SetDefault("application.host", "0.0.0.0")
	v.SetDefault("application.port", 8080)
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.database", 0)
	v.SetDefault("otel.host", "otel-collector")
	v.SetDefault("otel.port", 4317)
	v.SetDefault("order_store.base_url", "http://localhost:5000")
	v.SetDefault("order_store.timeout", 30*time.Second)
	v.SetDefault("notification.max_attempts", 3)
	v.SetDefault("notification.initial_interval", 200*time.Millisecond)
	v.SetDefault("notification.max_interval", 2*time.Second)
	v.SetDefault("notification.relay_interval", 5*time.Second)
	v.SetDefault("notification.relay_batch_size", 20)
	v.SetDefault("notification.max_relay_attempts", 10)
	v.SetDefault("dashboard.reset_status_on_edit", false)
	v.SetDefault("cart.ttl", 72*time.Hour)
}

// Get reads ./env/<filename>.yaml once, layering an optional .env file and environment
// variables (ORDER_STORE_BASE_URL, CACHE_HOST, ...) on top of it.
func Get(c context.Context, filename string) *Config {
	once.Do(func() {
		logger := zerolog.Ctx(c).
			With().
			Str(log.KeyTag, "config Get").
			Str("filename", filename).
			Logger()

		logger = logger.With().Str(log.KeyProcess, "loading dotenv").Logger()
		logger.Info().Msg("loading dotenv")
		if err := godotenv.Load(); err != nil {
			logger.Info().Err(err).Msg("no .env file loaded")
		} else {
			logger.Info().Msg("loaded dotenv")
		}

		v := viper.New()
		v.SetConfigName(filename)
		v.AddConfigPath("./env")
		v.SetConfigType("yaml")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
		setDefaults(v)

		logger = logger.With().Str(log.KeyProcess, "reading config").Logger()
		logger.Info().Msg("reading config")
		err := v.ReadInConfig()
		if err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				err = fmt.Errorf("failed reading config with error=%w", err)
				logger.Fatal().Err(err).Msg(err.Error())
			}
			logger.Warn().Err(err).Msg("config file not found, using defaults and env")
		} else {
			logger.Info().Msg("read config")
		}

		logger = logger.With().Str(log.KeyProcess, "unmarshaling config").Logger()
		logger.Info().Msg("unmarshaling config")
		cfg := Config{}
		err = v.Unmarshal(&cfg)
		if err != nil {
			err = fmt.Errorf("failed unmarshaling config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		config = &cfg
		logger.Info().Any(log.KeyConfig, cfg).Msg("unmarshaled config")
	})
	return config
}
