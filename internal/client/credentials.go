package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/models"
)

func (c *Client) ApiTokens(ctx context.Context, accountID uuid.UUID) ([]models.ApiToken, error) {
	return fetch[[]models.ApiToken](ctx, c, "/api/accounts/"+segment(accountID)+"/api_tokens", nil)
}

// CreateApiToken mints a token. The secret is only present in the returned
// value.
func (c *Client) CreateApiToken(ctx context.Context, accountID uuid.UUID) (Result[models.ApiToken], error) {
	return mutate[models.ApiToken](ctx, c, http.MethodPost, "/api/accounts/"+segment(accountID)+"/api_tokens", nil,
		http.StatusCreated)
}

func (c *Client) UpdateApiToken(ctx context.Context, id uuid.UUID, update models.UpdateApiToken) (Result[models.ApiToken], error) {
	return mutate[models.ApiToken](ctx, c, http.MethodPatch, "/api/api_tokens/"+segment(id), update, http.StatusOK)
}

func (c *Client) DeleteApiToken(ctx context.Context, id uuid.UUID) error {
	return c.remove(ctx, "/api/api_tokens/"+segment(id), nil)
}

func (c *Client) CollectorCredentials(ctx context.Context, accountID uuid.UUID) ([]models.CollectorCredential, error) {
	return fetch[[]models.CollectorCredential](ctx, c, "/api/accounts/"+segment(accountID)+"/collector_credentials", nil)
}

func (c *Client) CollectorCredential(ctx context.Context, id uuid.UUID) (*models.CollectorCredential, error) {
	cred, err := fetch[models.CollectorCredential](ctx, c, "/api/collector_credentials/"+segment(id), nil)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// CreateCollectorCredential uploads an HPKE config. The collector token is
// only present in the returned value.
func (c *Client) CreateCollectorCredential(ctx context.Context, accountID uuid.UUID, cred models.NewCollectorCredential) (Result[models.CollectorCredential], error) {
	return mutate[models.CollectorCredential](ctx, c, http.MethodPost, "/api/accounts/"+segment(accountID)+"/collector_credentials", cred,
		http.StatusCreated)
}

func (c *Client) UpdateCollectorCredential(ctx context.Context, id uuid.UUID, update models.UpdateCollectorCredential) (Result[models.CollectorCredential], error) {
	return mutate[models.CollectorCredential](ctx, c, http.MethodPatch, "/api/collector_credentials/"+segment(id), update,
		http.StatusOK)
}

func (c *Client) DeleteCollectorCredential(ctx context.Context, id uuid.UUID) error {
	return c.remove(ctx, "/api/collector_credentials/"+segment(id), nil)
}
