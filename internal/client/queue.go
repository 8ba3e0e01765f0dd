package client

import (
	"context"
	"net/url"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/models"
)

// QueueJobs lists background jobs, most recently updated first. Admin only.
func (c *Client) QueueJobs(ctx context.Context, query models.QueueQuery) ([]models.QueueJob, error) {
	values, err := url.ParseQuery(query.Encode())
	if err != nil {
		return nil, err
	}
	return fetch[[]models.QueueJob](ctx, c, "/api/admin/queue", values)
}

func (c *Client) QueueJob(ctx context.Context, id uuid.UUID) (*models.QueueJob, error) {
	job, err := fetch[models.QueueJob](ctx, c, "/api/admin/queue/"+segment(id), nil)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) DeleteQueueJob(ctx context.Context, id uuid.UUID) error {
	return c.remove(ctx, "/api/admin/queue/"+segment(id), nil)
}
