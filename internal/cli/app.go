package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/client"
	apierrors "github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/store"
)

// client returns the API client for this invocation, creating it on first
// use.
func (a *app) client() (*client.Client, error) {
	if a.api != nil {
		return a.api, nil
	}

	opts := []client.Option{
		client.WithUserAgent(a.cfg.API.UserAgent + "/" + Version),
		client.WithTimeout(a.cfg.API.Timeout),
		client.WithLogger(a.logger),
	}
	if a.metrics != nil {
		opts = append(opts, client.WithMetrics(a.metrics))
	}
	if a.cfg.API.Token != "" {
		opts = append(opts, client.WithToken(a.cfg.API.Token))
	}
	if a.cfg.API.URL != "" {
		base, err := url.Parse(a.cfg.API.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid api url %q: %w", a.cfg.API.URL, err)
		}
		opts = append(opts, client.WithBaseURL(base))
	}

	c, err := client.New(a.cfg.API.Origin, opts...)
	if err != nil {
		return nil, err
	}
	a.api = c
	return c, nil
}

// keystore opens the local collector key store on first use. It is closed
// after the command runs.
func (a *app) keystore() (store.Store, error) {
	if a.keys != nil {
		return a.keys, nil
	}
	keys, err := a.newKeystore(a.cfg.Keystore.Path)
	if err != nil {
		return nil, err
	}
	a.keys = keys
	return keys, nil
}

// accountID determines the account to operate on: the configured one,
// then the one chosen with "account use", then the only account the
// credentials can see.
func (a *app) accountID(ctx context.Context) (uuid.UUID, error) {
	if a.cfg.AccountID != "" {
		return uuid.Parse(a.cfg.AccountID)
	}

	if keys, err := a.keystore(); err == nil {
		if raw, ok := keys.Settings().Get(store.SettingDefaultAccountID); ok && raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				return id, nil
			}
			a.logger.Warn("ignoring invalid default account id", "value", raw)
		}
	} else {
		a.logger.Debug("keystore unavailable", "error", err.Error())
	}

	c, err := a.client()
	if err != nil {
		return uuid.Nil, err
	}
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if len(accounts) != 1 {
		return uuid.Nil, &apierrors.ErrAccountUndetermined{Count: len(accounts)}
	}
	a.logger.Debug("using only visible account", "account_id", accounts[0].ID.String())
	return accounts[0].ID, nil
}

// accountOrArg is the id given as the only argument, or the current
// account.
func (a *app) accountOrArg(cmd *cobra.Command, args []string, kind string) (uuid.UUID, error) {
	if len(args) == 1 {
		return parseID(kind, args[0])
	}
	return a.accountID(cmd.Context())
}

// unwrap turns a validation failure into a *errors.ValidationFailed,
// which Execute prints field by field.
func unwrap[T any](result client.Result[T], err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return result.Unwrap()
}

// parseID parses a uuid argument, naming it in the error.
func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s id %q is not a uuid", kind, raw)
	}
	return id, nil
}

func done(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format+"\n", args...)
	return err
}
