package pages

import (
	"context"
	"fmt"
	"strings"

	"tbreport/logger"
)

// Login drives the login modal.
type Login struct {
	Env
}

// NewLogin returns the login page.
func NewLogin(env Env) *Login { return &Login{Env: env} }

// Open navigates to the configured base URL.
func (p *Login) Open(ctx context.Context) error {
	return p.Page.Goto(ctx, p.Config.BaseURL)
}

// Login submits the credentials through the login modal.
func (p *Login) Login(ctx context.Context, email, password string) error {
	t := p.Config.Timeouts

	if err := p.click(ctx, LoginLink); err != nil {
		return fmt.Errorf("open login modal: %w", err)
	}
	if err := p.waitVisible(ctx, loginModal, t.Short); err != nil {
		return fmt.Errorf("login modal: %w", err)
	}

	for _, in := range []struct{ field, value string }{{LoginEmail, email}, {LoginPassword, password}} {
		el, err := p.resolve(ctx, in.field)
		if err != nil {
			return err
		}
		if err := el.Fill(ctx, in.value); err != nil {
			return fmt.Errorf("fill %s: %w", in.field, err)
		}
	}

	if err := p.click(ctx, LoginSubmit); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := p.waitHidden(ctx, loginModal, t.Navigation); err != nil {
		return fmt.Errorf("login modal did not close: %w", err)
	}
	p.Log.Info("login submitted", logger.String("email", email))
	return nil
}

// IsLoggedIn waits for the user menu and checks that it shows email.
func (p *Login) IsLoggedIn(ctx context.Context, email string) (bool, error) {
	d, err := p.field(UserMenu)
	if err != nil {
		return false, err
	}
	if err := p.waitVisible(ctx, d.Strategies[0], p.Config.Timeouts.Medium); err != nil {
		return false, err
	}
	menu, err := p.resolve(ctx, UserMenu)
	if err != nil {
		return false, err
	}
	text, err := menu.Text(ctx)
	if err != nil {
		return false, err
	}
	ok := strings.Contains(text, email)
	p.Log.Info("login verification", logger.Bool("logged_in", ok))
	return ok, nil
}
