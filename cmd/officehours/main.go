package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-officehours-client/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: officehours <command>

commands:
  login         sign in through the configured OpenID provider
  logout        end the session on this machine and the server
  whoami        show the signed-in user
  push          subscribe to notifications and receive them until stopped
  push status   show whether notifications are enabled
  push off      disable notifications`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		fmt.Println(usage)
		return nil
	}

	// .env is optional
	_ = godotenv.Load()
	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer app.close()

	switch args[0] {
	case "login":
		displayAppname(c.GetAppName())
		return app.login(ctx)
	case "logout":
		return app.logout(ctx)
	case "whoami":
		return app.whoami(ctx)
	case "push":
		sub := ""
		if len(args) > 1 {
			sub = args[1]
		}
		switch sub {
		case "":
			displayAppname(c.GetAppName())
			return app.listen(ctx)
		case "status":
			return app.pushStatus(ctx)
		case "off":
			return app.pushOff(ctx)
		}
		return fmt.Errorf("unknown push command %q", sub)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	}
	return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
