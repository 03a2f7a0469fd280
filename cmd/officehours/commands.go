package main

import (
	"context"
	"fmt"
	"time"

	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/login"
	"github.com/rs/zerolog/log"
)

const loginTimeout = 5 * time.Minute

func (a *app) login(ctx context.Context) error {
	flow, err := login.NewOIDCFlow(ctx, a.config, login.WithLogger(log.Logger.With().Str("component", "login").Logger()))
	if err != nil {
		return err
	}

	loginCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	credential, err := flow.Run(loginCtx)
	if err != nil {
		return err
	}
	if err := a.session.LoginWithProvider(ctx, a.config.GetOIDCProvider(), credential); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", a.session.State().User.DisplayName())
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if !a.session.State().Authenticated() {
		fmt.Println("Not signed in")
		return nil
	}
	a.session.Logout(ctx)
	fmt.Println("Signed out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if !a.session.State().Authenticated() {
		return clienterrors.ErrNotAuthenticated
	}
	user, err := a.api.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("whoami: %w", err)
	}
	fmt.Printf("%s <%s> (%s)\n", user.DisplayName(), user.Email, user.Type)
	return nil
}
