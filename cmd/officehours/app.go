package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jrsteele09/go-officehours-client/api"
	"github.com/jrsteele09/go-officehours-client/httpclient"
	"github.com/jrsteele09/go-officehours-client/internal/config"
	"github.com/jrsteele09/go-officehours-client/session"
	"github.com/jrsteele09/go-officehours-client/tokens"
	"github.com/jrsteele09/go-officehours-client/tokens/filestore"
	"github.com/jrsteele09/go-officehours-client/tokens/redisstore"
	tokenrepofake "github.com/jrsteele09/go-officehours-client/tokens/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app is the wired client: one API client whose transport is driven by one
// session
type app struct {
	config  config.Config
	api     *api.Client
	session *session.Manager
	closers []func() error
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{config: c}
	store, err := a.newStore(ctx)
	if err != nil {
		return nil, err
	}

	httpClient := httpclient.New(c.GetAPIBaseURL(),
		httpclient.WithTimeout(c.GetAPITimeout()),
		httpclient.WithLogger(log.Logger.With().Str("component", "http").Logger()),
	)
	a.api = api.New(httpClient)
	a.session = session.New(a.api, store, session.WithLogger(log.Logger.With().Str("component", "session").Logger()))
	httpClient.UseSession(a.session, a.session)

	a.session.Bootstrap(ctx)
	return a, nil
}

func (a *app) newStore(ctx context.Context) (tokens.Store, error) {
	switch a.config.GetStoreBackend() {
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.config.GetRedisAddr(),
			Password: a.config.GetRedisPassword(),
			DB:       a.config.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", a.config.GetRedisAddr(), err)
		}
		a.closers = append(a.closers, client.Close)
		return redisstore.New(client, a.config.GetRedisPrefix()), nil
	case config.StoreBackendMemory:
		log.Warn().Msg("using the in-memory store, the session ends with this process")
		return tokenrepofake.NewFakeStore(), nil
	default:
		store := filestore.New(filepath.Join(a.config.GetDataFolder(), a.config.GetStoreFile()))
		log.Debug().Str("path", store.Path()).Msg("using file store")
		return store, nil
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Err(err).Msg("close")
		}
	}
}
