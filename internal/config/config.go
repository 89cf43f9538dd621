package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" envconfig:"SERVER_PORT"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" envconfig:"LOG_LEVEL"`
		JSON  bool   `yaml:"json" envconfig:"LOG_JSON"`
	} `yaml:"log"`
	Store struct {
		// Driver is one of memory, redis, postgres. Empty picks redis when configured, else memory.
		Driver string `yaml:"driver" envconfig:"STORE_DRIVER"`
	} `yaml:"store"`
	Redis struct {
		Addr      string `yaml:"addr" envconfig:"REDIS_ADDR"`
		Password  string `yaml:"password" envconfig:"REDIS_PASSWORD"`
		DB        int    `yaml:"db" envconfig:"REDIS_DB"`
		KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" envconfig:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Ledger struct {
		WelcomeBonus int `yaml:"welcome_bonus" envconfig:"LEDGER_WELCOME_BONUS"`
	} `yaml:"ledger"`
	Vouchers struct {
		Validity        string `yaml:"validity" envconfig:"VOUCHER_VALIDITY"`
		ProcessingDelay string `yaml:"processing_delay" envconfig:"VOUCHER_PROCESSING_DELAY"`
	} `yaml:"vouchers"`
	Quiz struct {
		TTL              string `yaml:"ttl" envconfig:"QUIZ_TTL"`
		BaseAttempts     int    `yaml:"base_attempts" envconfig:"QUIZ_BASE_ATTEMPTS"`
		BonusAttempts    int    `yaml:"bonus_attempts" envconfig:"QUIZ_BONUS_ATTEMPTS"`
		LockDuration     string `yaml:"lock_duration" envconfig:"QUIZ_LOCK_DURATION"`
		QuestionTime     string `yaml:"question_time" envconfig:"QUIZ_QUESTION_TIME"`
		CompletionDelay  string `yaml:"completion_delay" envconfig:"QUIZ_COMPLETION_DELAY"`
		PointsPerCorrect int    `yaml:"points_per_correct" envconfig:"QUIZ_POINTS_PER_CORRECT"`
	} `yaml:"quiz"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Ledger.WelcomeBonus = 1000
	cfg.Vouchers.Validity = "720h"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.BaseAttempts = 2
	cfg.Quiz.BonusAttempts = 10
	cfg.Quiz.LockDuration = "12h"
	cfg.Quiz.QuestionTime = "20s"
	cfg.Quiz.CompletionDelay = "1500ms"
	cfg.Quiz.PointsPerCorrect = 10
	return cfg
}

// Load reads YAML config from path on top of Default, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
