package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeDebug   Mode = "debug"
	ModeRelease Mode = "release"
)

type Config struct {
	Mode     Mode   `mapstructure:"mode"`
	HTTPAddr string `mapstructure:"http_addr"`

	DBDriver string `mapstructure:"db_driver"` // sqlite|postgres
	DBDSN    string `mapstructure:"db_dsn"`

	LogFile string `mapstructure:"log_file"`

	// Vector-indexing service; empty URL disables indexing.
	IndexerURL     string        `mapstructure:"indexer_url"`
	IndexerToken   string        `mapstructure:"indexer_token"`
	IndexerTimeout time.Duration `mapstructure:"indexer_timeout"`

	ScoringWorkers int      `mapstructure:"scoring_workers"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// Load reads config.yaml from path when present; environment variables
// override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}

	v.SetDefault("mode", string(ModeRelease))
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("log_file", "logs/grading.log")
	v.SetDefault("indexer_url", "")
	v.SetDefault("indexer_token", "")
	v.SetDefault("indexer_timeout", "10s")
	v.SetDefault("scoring_workers", 4)
	v.SetDefault("cors_origins", "http://localhost:3000")

	for _, k := range []string{
		"mode", "http_addr", "db_driver", "db_dsn", "log_file",
		"indexer_url", "indexer_token", "indexer_timeout",
		"scoring_workers", "cors_origins",
	} {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.CORSOrigins = splitCSV(cfg.CORSOrigins)
	if cfg.ScoringWorkers < 1 {
		cfg.ScoringWorkers = 1
	}
	return cfg, nil
}

// splitCSV accepts both a YAML list and a comma separated env value.
func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
