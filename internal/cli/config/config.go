package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/opensemanticworld/oswgen/internal/archive"
)

// Config represents the oswgen configuration
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Site      SiteConfig      `mapstructure:"site"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Build     BuildConfig     `mapstructure:"build"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Cache     CacheConfig     `mapstructure:"cache"`
	History   HistoryConfig   `mapstructure:"history"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Packages  []string        `mapstructure:"packages"`
}

// SourceConfig locates the package repositories
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// SiteConfig describes the wiki site used by the generator
type SiteConfig struct {
	IRI             string `mapstructure:"iri" validate:"required"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// GeneratorConfig configures the external code generator command
type GeneratorConfig struct {
	Command []string      `mapstructure:"command" validate:"required,min=1,dive,required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// BuildConfig represents build configuration
type BuildConfig struct {
	Root      string `mapstructure:"root" validate:"required"`
	RunNumber int    `mapstructure:"run_number" validate:"gte=0,lte=999"`
	Strict    bool   `mapstructure:"strict"`
}

// HTTPConfig configures archive downloads
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// CacheConfig selects the archive cache. With an empty RedisAddr only the
// scheduler keeps an in-process cache; a single build runs uncached.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// HistoryConfig selects the build history database. An empty DSN disables
// history.
type HistoryConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite3 postgres pgx"`
	DSN    string `mapstructure:"dsn"`
}

// ScheduleConfig configures the schedule command
type ScheduleConfig struct {
	Cron   string `mapstructure:"cron"`
	Listen string `mapstructure:"listen"`
}

// Options controls where Load looks for configuration
type Options struct {
	// File is an explicit config file; when empty oswgen.yml/oswgen.yaml
	// is searched in Dir
	File string
	// Dir is the search directory, default "."
	Dir string
}

// SetDefaults registers all defaults on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", archive.DefaultBaseURL)
	v.SetDefault("site.iri", "wiki-dev.open-semantic-lab.org")
	v.SetDefault("site.credentials_file", "accounts.pwd.yaml")
	v.SetDefault("generator.command", []string{"osw-fetch-schema"})
	v.SetDefault("generator.timeout", 10*time.Minute)
	v.SetDefault("build.root", "python_packages")
	v.SetDefault("build.run_number", 0)
	v.SetDefault("build.strict", false)
	v.SetDefault("http.timeout", 5*time.Minute)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("history.driver", "sqlite3")
	v.SetDefault("history.dsn", ".oswgen/history.db")
	v.SetDefault("schedule.cron", "@daily")
	v.SetDefault("schedule.listen", "")
	v.SetDefault("packages", []string{})
}

// Load loads the configuration from oswgen.yml or oswgen.yaml. Every key
// can be overridden by an OSWGEN_ prefixed environment variable, e.g.
// OSWGEN_BUILD_ROOT.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName("oswgen")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("OSWGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
