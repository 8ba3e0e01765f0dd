package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/models"
)

func (c *Client) Accounts(ctx context.Context) ([]models.Account, error) {
	return fetch[[]models.Account](ctx, c, "/api/accounts", nil)
}

func (c *Client) Account(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := fetch[models.Account](ctx, c, "/api/accounts/"+segment(id), nil)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAccount accepts 202 as well as 201; the server answers account
// creation with 202 Accepted.
func (c *Client) CreateAccount(ctx context.Context, account models.NewAccount) (Result[models.Account], error) {
	return mutate[models.Account](ctx, c, http.MethodPost, "/api/accounts", account,
		http.StatusCreated, http.StatusAccepted)
}

func (c *Client) UpdateAccount(ctx context.Context, id uuid.UUID, update models.UpdateAccount) (Result[models.Account], error) {
	return mutate[models.Account](ctx, c, http.MethodPatch, "/api/accounts/"+segment(id), update,
		http.StatusOK, http.StatusAccepted)
}

func (c *Client) RenameAccount(ctx context.Context, id uuid.UUID, name string) (Result[models.Account], error) {
	return c.UpdateAccount(ctx, id, models.UpdateAccount{Name: &name})
}

func (c *Client) Memberships(ctx context.Context, accountID uuid.UUID) ([]models.Membership, error) {
	return fetch[[]models.Membership](ctx, c, "/api/accounts/"+segment(accountID)+"/memberships", nil)
}

func (c *Client) CreateMembership(ctx context.Context, accountID uuid.UUID, membership models.NewMembership) (Result[models.Membership], error) {
	return mutate[models.Membership](ctx, c, http.MethodPost, "/api/accounts/"+segment(accountID)+"/memberships", membership,
		http.StatusCreated)
}

func (c *Client) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	return c.remove(ctx, "/api/memberships/"+segment(id), nil)
}
