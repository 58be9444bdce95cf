package config

import (
	"errors"
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jaam8/polls/pkg/database"
	"github.com/jaam8/polls/pkg/logger"
	"github.com/jaam8/polls/pkg/tarantool"
	"github.com/joho/godotenv"
	"io/fs"
	"time"
)

const (
	StorageSQL       = "sql"
	StorageTarantool = "tarantool"
)

type Config struct {
	HTTPAddr          string        `yaml:"HTTP_ADDR"           env:"HTTP_ADDR"           env-default:":8080"`
	ShutdownTimeout   time.Duration `yaml:"SHUTDOWN_TIMEOUT"    env:"SHUTDOWN_TIMEOUT"    env-default:"10s"`
	ReadHeaderTimeout time.Duration `yaml:"READ_HEADER_TIMEOUT" env:"READ_HEADER_TIMEOUT" env-default:"5s"`
	Storage           string        `yaml:"STORAGE"             env:"STORAGE"             env-default:"sql"`
	IndexLimit        int           `yaml:"INDEX_LIMIT"         env:"INDEX_LIMIT"         env-default:"5"`
	AdminKey          string        `yaml:"ADMIN_KEY"           env:"ADMIN_KEY"`
	Log               logger.Config
	Database          database.Config
	Tarantool         tarantool.Config
	Mattermost        Mattermost
}

type Mattermost struct {
	BotToken  string `yaml:"BOT_TOKEN"  env:"BOT_TOKEN"`
	URL       string `yaml:"MM_URL"     env:"MM_URL"`
	WsURL     string `yaml:"MM_WS_URL"  env:"MM_WS_URL"`
	ChannelID string `yaml:"CHANNEL_ID" env:"CHANNEL_ID"`
}

// Enabled reports whether every setting the bot needs is present.
func (m Mattermost) Enabled() bool {
	return m.BotToken != "" && m.URL != "" && m.WsURL != "" && m.ChannelID != ""
}

// New reads the environment, loading .env first when it exists.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageSQL, StorageTarantool:
	default:
		return fmt.Errorf("config: unknown STORAGE %q", c.Storage)
	}
	if c.IndexLimit < 1 {
		return fmt.Errorf("config: INDEX_LIMIT must be positive, got %d", c.IndexLimit)
	}
	return nil
}
