package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port          int           `mapstructure:"port" validate:"min=1,max=65535"`
	GinMode       string        `mapstructure:"gin_mode" validate:"oneof=debug release test"`
	LogLevel      string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	DatabasePath  string        `mapstructure:"database_path" validate:"required"`
	TemplatesGlob string        `mapstructure:"templates_glob" validate:"required"`
	StaticDir     string        `mapstructure:"static_dir" validate:"required"`
	ImagesDir     string        `mapstructure:"images_dir" validate:"required"`
	EmbedTTL      time.Duration `mapstructure:"embed_ttl" validate:"min=1s"`
	MaxEmbeds     int           `mapstructure:"max_embeds" validate:"min=0"`
	AdminUsername string        `mapstructure:"admin_username"`
	AdminPassword string        `mapstructure:"admin_password"`
}

// Debug reports whether the server runs in gin debug mode.
func (c *Config) Debug() bool { return c.GinMode == "debug" }

func defaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_path", "portfolio.db")
	v.SetDefault("templates_glob", "templates/*")
	v.SetDefault("static_dir", "./static")
	v.SetDefault("images_dir", "./images")
	v.SetDefault("embed_ttl", 10*time.Minute)
	v.SetDefault("max_embeds", 1000)
	v.SetDefault("admin_username", "")
	v.SetDefault("admin_password", "")
}

// Load reads .env (if present), the environment and command-line flags, in
// increasing order of precedence.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := pflag.NewFlagSet("portfolio", pflag.ContinueOnError)
	flags.Int("port", v.GetInt("port"), "HTTP listen port")
	flags.String("gin-mode", v.GetString("gin_mode"), "gin mode: debug, release or test")
	flags.String("log-level", v.GetString("log_level"), "log level")
	flags.String("database-path", v.GetString("database_path"), "sqlite database file")
	flags.String("templates-glob", v.GetString("templates_glob"), "HTML template glob")
	flags.Duration("embed-ttl", v.GetDuration("embed_ttl"), "idle time before an embed instance is released")
	flags.Int("max-embeds", v.GetInt("max_embeds"), "live embed instances kept before the idlest is evicted, 0 for no cap")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
		}
	})

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
