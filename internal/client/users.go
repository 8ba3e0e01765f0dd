package client

import (
	"context"

	"github.com/divviup/divviup-console/internal/models"
)

// CurrentUser returns the session's user, fetching /api/users/me at most
// once per client. A 403 means there is no session; callers detect it with
// errors.IsForbidden and send the user to LoginURL.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	return c.user.get(ctx)
}

func (c *Client) fetchCurrentUser(ctx context.Context) (*models.User, error) {
	user, err := fetch[models.User](ctx, c, "/api/users/me", nil)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IsLoggedIn reports whether a current user has been fetched. It never
// issues a request.
func (c *Client) IsLoggedIn() bool {
	_, ok := c.user.peek()
	return ok
}

// ForgetCurrentUser drops the cached user so the next CurrentUser refetches.
func (c *Client) ForgetCurrentUser() {
	c.user.reset()
}

// LoginURL is where a browser is sent to start a session.
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	return c.apiURL(ctx, "login")
}

// LogoutURL is where a browser is sent to end its session.
func (c *Client) LogoutURL(ctx context.Context) (string, error) {
	return c.apiURL(ctx, "logout")
}

// BaseURL returns the discovered API base URL.
func (c *Client) BaseURL(ctx context.Context) (string, error) {
	t, err := c.api.get(ctx)
	if err != nil {
		return "", err
	}
	return t.base.String(), nil
}

func (c *Client) apiURL(ctx context.Context, path string) (string, error) {
	t, err := c.api.get(ctx)
	if err != nil {
		return "", err
	}
	return t.base.JoinPath(path).String(), nil
}
