package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sportmatch/internal/client/client"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for email, name and password, creates the account and
// starts a session with it. The password byte slice is wiped before
// returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	first, err := getSimpleText(a.reader, "Enter first name", a.out)
	if err != nil {
		return err
	}
	last, err := getSimpleText(a.reader, "Enter last name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.authService.Register(ctx, models.RegisterRequest{Email: email, FirstName: first, LastName: last}, password)
	if err != nil {
		a.printf("Registration failed: %s\n", describe(err))
		return err
	}

	a.printf("Welcome, %s!\n", user.DisplayName())
	a.goOnline(ctx)
	return nil
}

// Login prompts for credentials and starts a session. On success the
// realtime connection is opened.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.authService.Login(ctx, email, password)
	if err != nil {
		a.printf("Login unsuccessful: %s\n", describe(err))
		return err
	}

	a.printf("Logged in as %s\n", user.DisplayName())
	a.goOnline(ctx)
	return nil
}

// Logout ends the session; the transport and notifications follow it
// through the session change.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.println("Logged out.")
	return nil
}

// Validate asks the server whether the session is still good.
func (a *App) Validate(ctx context.Context) error {
	valid, err := a.authService.Validate(ctx)
	if err != nil {
		return err
	}
	if valid {
		a.println("Session is valid.")
	} else {
		a.println("Not logged in.")
	}
	return nil
}

// describe turns API errors into short user-facing text.
func describe(err error) string {
	var verr *client.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, client.ErrUnauthorized):
		return "wrong email or password"
	case errors.Is(err, client.ErrNetwork):
		return "server unreachable"
	case errors.Is(err, client.ErrServer):
		return "server error, try again later"
	default:
		return err.Error()
	}
}
