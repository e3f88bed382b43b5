package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sportmatch/internal/client/session"
)

// Status prints who is logged in, the realtime state and when the access
// token expires.
func (a *App) Status(ctx context.Context) error {
	u, ok := a.currentUser()
	if !ok {
		a.println("Not logged in.")
		return nil
	}
	a.printf("User:     %s (id %d)\n", u.DisplayName(), u.ID)
	a.printf("Realtime: %s\n", a.rt.State())

	if cred, ok := a.store.Current(); ok {
		if exp, ok := session.ExpiresAt(cred.AccessToken); ok {
			a.printf("Token:    expires %s (in %s)\n", exp.Format(time.RFC3339), time.Until(exp).Round(time.Second))
		}
	}
	return nil
}

func (a *App) Connect(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.println("Log in first.")
		return nil
	}
	a.goOnline(ctx)
	a.printf("Realtime: %s\n", a.rt.State())
	return nil
}

func (a *App) Disconnect(ctx context.Context) error {
	if err := a.notifier.Stop(); err != nil {
		a.log.Warn(ctx, "unsubscribe notifications", "error", err)
	}
	if err := a.rt.Disconnect(ctx); err != nil {
		return err
	}
	a.println("Realtime disconnected.")
	return nil
}
