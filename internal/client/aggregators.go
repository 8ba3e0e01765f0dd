package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/models"
)

// Aggregators lists the aggregators usable by an account, shared ones
// included.
func (c *Client) Aggregators(ctx context.Context, accountID uuid.UUID) ([]models.Aggregator, error) {
	return fetch[[]models.Aggregator](ctx, c, "/api/accounts/"+segment(accountID)+"/aggregators", nil)
}

func (c *Client) SharedAggregators(ctx context.Context) ([]models.Aggregator, error) {
	return fetch[[]models.Aggregator](ctx, c, "/api/aggregators", nil)
}

func (c *Client) Aggregator(ctx context.Context, id uuid.UUID) (*models.Aggregator, error) {
	agg, err := fetch[models.Aggregator](ctx, c, "/api/aggregators/"+segment(id), nil)
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (c *Client) CreateAggregator(ctx context.Context, accountID uuid.UUID, agg models.NewAggregator) (Result[models.Aggregator], error) {
	return mutate[models.Aggregator](ctx, c, http.MethodPost, "/api/accounts/"+segment(accountID)+"/aggregators", agg,
		http.StatusCreated)
}

// CreateSharedAggregator requires an admin session.
func (c *Client) CreateSharedAggregator(ctx context.Context, agg models.NewSharedAggregator) (Result[models.Aggregator], error) {
	return mutate[models.Aggregator](ctx, c, http.MethodPost, "/api/aggregators", agg, http.StatusCreated)
}

func (c *Client) UpdateAggregator(ctx context.Context, id uuid.UUID, update models.UpdateAggregator) (Result[models.Aggregator], error) {
	return mutate[models.Aggregator](ctx, c, http.MethodPatch, "/api/aggregators/"+segment(id), update, http.StatusOK)
}

func (c *Client) RenameAggregator(ctx context.Context, id uuid.UUID, name string) (Result[models.Aggregator], error) {
	return c.UpdateAggregator(ctx, id, models.UpdateAggregator{Name: &name})
}

func (c *Client) RotateAggregatorBearerToken(ctx context.Context, id uuid.UUID, token string) (Result[models.Aggregator], error) {
	return c.UpdateAggregator(ctx, id, models.UpdateAggregator{BearerToken: &token})
}

func (c *Client) DeleteAggregator(ctx context.Context, id uuid.UUID) error {
	return c.remove(ctx, "/api/aggregators/"+segment(id), nil)
}
