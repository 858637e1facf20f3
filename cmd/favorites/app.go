package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/ordering-favorites/internal/config"
	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"github.com/Sternrassler/ordering-favorites/pkg/favorites"
	"github.com/Sternrassler/ordering-favorites/pkg/ordering"
	"github.com/Sternrassler/ordering-favorites/pkg/session"
	"github.com/Sternrassler/ordering-favorites/pkg/socket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app is one wired favorites controller and everything it owns.
type app struct {
	api     *client.Client
	redis   *redis.Client
	channel *socket.Channel
	session session.Session
	service *ordering.Service
	ctrl    *favorites.Controller
	cfg     config.Config
	logger  zerolog.Logger
}

// newApp connects Redis and the live channel when configured and builds
// the controller. A channel that cannot be opened is logged and skipped.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: log.With().Str("component", "app").Logger(),
	}

	sess, err := cfg.SessionFromConfig()
	if err != nil {
		return nil, err
	}
	a.session = sess

	clientCfg := cfg.ClientConfig()

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	if redisOpts != nil {
		a.redis = redis.NewClient(redisOpts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
		}
		a.logger.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
		clientCfg.Redis = a.redis
	}

	a.api, err = client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create api client: %w", err)
	}

	opts := []favorites.Option{favorites.WithOrderType(cfg.OrderType())}

	var provider client.SocketIDProvider
	if cfg.Socket.URL != "" {
		ch, err := socket.Dial(ctx, cfg.Socket.URL, sess.Token, socket.DefaultConfig())
		if err != nil {
			a.logger.Warn().Err(err).Msg("Live channel unavailable, continuing without it")
		} else {
			a.channel = ch
			provider = ch
			opts = append(opts, favorites.WithSocket(ch))
		}
	}

	a.service = ordering.NewService(a.api, sess, provider)
	opts = append(opts,
		favorites.WithReorderer(a.service),
		favorites.WithBusinessLookup(a.service),
		favorites.WithRemover(a.service),
	)

	a.ctrl, err = favorites.NewController(a.api, sess, cfg.ControllerConfig(), opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the controller, the live channel, the HTTP client and
// Redis in that order.
func (a *app) Close() error {
	var errs []error
	if a.ctrl != nil {
		errs = append(errs, a.ctrl.Close())
	}
	if a.channel != nil {
		errs = append(errs, a.channel.Close())
	}
	if a.api != nil {
		errs = append(errs, a.api.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
