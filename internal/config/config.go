// Package config loads the favorites command configuration from a YAML
// file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"github.com/Sternrassler/ordering-favorites/pkg/favorites"
	"github.com/Sternrassler/ordering-favorites/pkg/logging"
	"github.com/Sternrassler/ordering-favorites/pkg/ordering"
	"github.com/Sternrassler/ordering-favorites/pkg/pagination"
	"github.com/Sternrassler/ordering-favorites/pkg/session"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config is the complete command configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Socket  SocketConfig  `yaml:"socket"`
	Redis   RedisConfig   `yaml:"redis"`
	List    ListConfig    `yaml:"list"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// APIConfig addresses one ordering API project.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	AppID      string        `yaml:"app_id"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// SessionConfig holds the signed-in user. UserID may be left zero when the
// token carries it.
type SessionConfig struct {
	Token  string `yaml:"token"`
	UserID int64  `yaml:"user_id"`
}

// SocketConfig points at the live channel. Empty disables it.
type SocketConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig enables the lookup cache and shared rate limit state. Empty
// disables both.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ListConfig describes the favorites list.
type ListConfig struct {
	FavoriteURL          string               `yaml:"favorite_url"`
	OriginalURL          string               `yaml:"original_url"`
	Kind                 favorites.EntityKind `yaml:"kind"`
	Scope                favorites.Scope      `yaml:"scope"`
	Pagination           pagination.Settings  `yaml:"pagination"`
	OrderType            string               `yaml:"order_type"`
	EnableLoadingAtStart bool                 `yaml:"enable_loading_at_start"`
	Concurrency          int                  `yaml:"concurrency"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// Default returns the configuration used before the file and environment
// are applied.
func Default() Config {
	return Config{
		API: APIConfig{
			Timeout:    20 * time.Second,
			MaxRetries: 2,
		},
		List: ListConfig{
			FavoriteURL: "favorite_businesses",
			OriginalURL: "business",
			Kind:        favorites.KindGeneric,
			Pagination:  pagination.DefaultSettings(),
			OrderType:   ordering.Delivery.String(),
			Concurrency: pagination.DefaultConfig().MaxConcurrency,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
		Server: ServerConfig{
			Port: "8080",
		},
	}
}

// Load reads path (when not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int64) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("FAVORITES_API_URL", &c.API.BaseURL)
	str("FAVORITES_APP_ID", &c.API.AppID)
	str("API_TOKEN", &c.Session.Token)
	integer("FAVORITES_USER_ID", &c.Session.UserID)
	str("FAVORITES_SOCKET_URL", &c.Socket.URL)
	str("REDIS_URL", &c.Redis.URL)
	str("FAVORITES_FAVORITE_URL", &c.List.FavoriteURL)
	str("FAVORITES_ORIGINAL_URL", &c.List.OriginalURL)
	integer("FAVORITES_FRANCHISE_ID", &c.List.Scope.FranchiseID)
	str("FAVORITES_LOCATION", &c.List.Scope.Location)
	str("FAVORITES_PARAMS", &c.List.Scope.Params)
	integer("FAVORITES_BUSINESS_ID", &c.List.Scope.BusinessID)
	str("FAVORITES_ORDER_TYPE", &c.List.OrderType)
	str("LOG_LEVEL", &c.Log.Level)
	str("PORT", &c.Server.Port)

	if v, ok := lookup("FAVORITES_KIND"); ok && v != "" {
		kind, err := favorites.ParseEntityKind(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FAVORITES_KIND: %w", err))
		} else {
			c.List.Kind = kind
		}
	}

	var pageSize int64
	integer("FAVORITES_PAGE_SIZE", &pageSize)
	if pageSize > 0 {
		c.List.Pagination.PageSize = int(pageSize)
	}

	if v, ok := lookup("LOG_PRETTY"); ok && v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_PRETTY: %w", err))
		} else {
			c.Log.Pretty = pretty
		}
	}

	return errors.Join(errs...)
}

// Validate checks the fields every command needs.
func (c Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.AppID == "" {
		errs = append(errs, errors.New("api.app_id is required"))
	}
	if c.API.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("api.max_retries must be >= 0 (got %d)", c.API.MaxRetries))
	}
	if strings.Trim(c.List.FavoriteURL, "/") == "" {
		errs = append(errs, errors.New("list.favorite_url is required"))
	}
	if strings.Trim(c.List.OriginalURL, "/") == "" {
		errs = append(errs, errors.New("list.original_url is required"))
	}
	if !c.List.Kind.Valid() {
		errs = append(errs, fmt.Errorf("list.kind: %w", favorites.ErrUnknownKind))
	}
	if _, err := ordering.ParseOrderType(c.List.OrderType); err != nil {
		errs = append(errs, fmt.Errorf("list.order_type: %w", err))
	}
	switch c.List.Pagination.ControlType {
	case "", pagination.ControlInfinity, pagination.ControlPages:
	default:
		errs = append(errs, fmt.Errorf("list.pagination.control_type %q is not infinity or pages", c.List.Pagination.ControlType))
	}
	return errors.Join(errs...)
}

// ClientConfig maps the API section onto client.Config. Redis is attached
// by the caller.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.API.BaseURL, c.API.AppID)
	if c.API.Timeout > 0 {
		cfg.Timeout = c.API.Timeout
	}
	if c.API.CacheTTL > 0 {
		cfg.CacheTTL = c.API.CacheTTL
	}
	cfg.MaxRetries = c.API.MaxRetries
	return cfg
}

// RedisOptions parses the Redis URL. It returns nil when Redis is
// disabled. A bare host:port is accepted.
func (c Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL == "" {
		return nil, nil
	}
	if !strings.Contains(c.Redis.URL, "://") {
		return &redis.Options{Addr: c.Redis.URL}, nil
	}
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

// SessionFromConfig returns the configured session, reading the user id
// from the token when none is set.
func (c Config) SessionFromConfig() (session.Session, error) {
	if c.Session.Token == "" {
		return session.Session{}, errors.New("session token is required (session.token or API_TOKEN)")
	}
	if c.Session.UserID > 0 {
		return session.New(c.Session.Token, c.Session.UserID), nil
	}
	s, err := session.FromToken(c.Session.Token)
	if err != nil {
		return session.Session{}, fmt.Errorf("derive user id from token: %w", err)
	}
	return s, nil
}

// ControllerConfig maps the list section onto favorites.Config.
func (c Config) ControllerConfig() favorites.Config {
	return favorites.Config{
		FavoriteURL:          c.List.FavoriteURL,
		OriginalURL:          c.List.OriginalURL,
		Kind:                 c.List.Kind,
		Scope:                c.List.Scope,
		Pagination:           c.List.Pagination,
		EnableLoadingAtStart: c.List.EnableLoadingAtStart,
		Batch: pagination.Config{
			MaxConcurrency: c.List.Concurrency,
			Timeout:        c.API.Timeout,
		},
	}
}

// OrderType returns the parsed order type. Validate has already checked it.
func (c Config) OrderType() ordering.OrderType {
	t, err := ordering.ParseOrderType(c.List.OrderType)
	if err != nil {
		return ordering.Delivery
	}
	return t
}

// LoggingConfig maps the log section onto logging.Config.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
