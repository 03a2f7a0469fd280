package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jrsteele09/go-officehours-client/internal/browser"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/internal/middleware"
	"github.com/jrsteele09/go-officehours-client/platform"
	"github.com/jrsteele09/go-officehours-client/push"
	"github.com/jrsteele09/go-officehours-client/worker"
	"github.com/rs/zerolog/log"
)

// pushStack is a running worker plus the platform and manager around it
type pushStack struct {
	manager  *push.Manager
	platform *platform.Local
	worker   *worker.Worker
	terminal *terminal
	stop     context.CancelFunc
}

func (a *app) startPush(ctx context.Context) (*pushStack, error) {
	if !a.session.State().Authenticated() {
		return nil, clienterrors.ErrNotAuthenticated
	}

	opts := []worker.Option{
		worker.WithLogger(log.Logger.With().Str("component", "worker").Logger()),
		worker.WithOpener(browser.Opener{}),
		worker.WithDefaults(worker.Defaults{
			Title: a.config.GetAppName(),
			Body:  worker.DefaultBody,
			Icon:  worker.DefaultIcon,
			URL:   worker.DefaultURL,
		}),
	}
	if origin, err := url.Parse(a.config.GetAPIBaseURL()); err == nil {
		opts = append(opts, worker.WithOrigin(origin))
	}
	term := newTerminal(os.Stdin, os.Stdout, worker.LogNotifier{Logger: log.Logger})
	w := worker.New(term, opts...)

	local, err := platform.NewLocal(a.config.GetPushPublicURL(), w, term,
		platform.WithLogger(log.Logger.With().Str("component", "platform").Logger()))
	if err != nil {
		return nil, err
	}

	workerCtx, stop := context.WithCancel(context.Background())
	go func() {
		if err := w.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Err(err).Msg("worker stopped")
		}
	}()
	if err := w.Post(ctx, worker.SkipWaiting{}); err != nil {
		stop()
		return nil, err
	}

	manager := push.New(local, a.api, a.config.GetVAPIDPublicKey(),
		push.WithLogger(log.Logger.With().Str("component", "push").Logger()))
	manager.Mount(ctx)
	return &pushStack{manager: manager, platform: local, worker: w, terminal: term, stop: stop}, nil
}

func (a *app) pushStatus(ctx context.Context) error {
	p, err := a.startPush(ctx)
	if err != nil {
		return err
	}
	defer p.stop()

	state := p.manager.State()
	switch {
	case !state.Supported:
		fmt.Println("Notifications are not supported, check PUSH_PUBLIC_URL")
	case state.Subscribed:
		fmt.Println("Notifications are on")
	default:
		fmt.Println("Notifications are off")
	}
	return nil
}

func (a *app) pushOff(ctx context.Context) error {
	p, err := a.startPush(ctx)
	if err != nil {
		return err
	}
	defer p.stop()

	if res := p.manager.Unsubscribe(ctx); !res.Success {
		return errors.New(res.Error)
	}
	fmt.Println("Notifications are off")
	return nil
}

// listen serves the push endpoint until ctx ends. Subscriptions live only as
// long as this process, so each run registers a fresh one and removes it on exit.
func (a *app) listen(ctx context.Context) error {
	p, err := a.startPush(ctx)
	if err != nil {
		return err
	}
	defer p.stop()

	logger := log.Logger.With().Str("component", "push-endpoint").Logger()
	srv := &http.Server{
		Addr:              a.config.GetPushListenAddr(),
		Handler:           middleware.Chain(p.platform, middleware.Recover(logger), middleware.Logging(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("push endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("server.ListenAndServe: %w", err)
		}
	}()

	// an earlier run's endpoint can no longer be decrypted
	if p.manager.State().Subscribed {
		if res := p.manager.Unsubscribe(ctx); !res.Success {
			log.Warn().Str("error", res.Error).Msg("stale subscription not removed")
		}
	}
	if res := p.manager.Subscribe(ctx); !res.Success {
		_ = shutdown(srv)
		return errors.New(res.Error)
	}
	fmt.Println("Notifications are on, press Ctrl+C to stop")
	go p.terminal.clicks(ctx, p.worker)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if res := p.manager.Unsubscribe(cleanupCtx); !res.Success {
		log.Warn().Str("error", res.Error).Msg("subscription not removed")
	}
	if err := shutdown(srv); runErr == nil {
		runErr = err
	}
	return runErr
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
