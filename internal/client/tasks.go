package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/models"
)

// taskPath escapes id as one path segment. Empty and dot-segment ids are
// rejected because URL resolution would drop them from the path.
func taskPath(id string) (string, error) {
	switch id {
	case "", ".", "..":
		return "", fmt.Errorf("invalid task id %q", id)
	}
	return "/api/tasks/" + url.PathEscape(id), nil
}

func (c *Client) Tasks(ctx context.Context, accountID uuid.UUID) ([]models.Task, error) {
	return fetch[[]models.Task](ctx, c, "/api/accounts/"+segment(accountID)+"/tasks", nil)
}

func (c *Client) Task(ctx context.Context, id string) (*models.Task, error) {
	p, err := taskPath(id)
	if err != nil {
		return nil, err
	}
	task, err := fetch[models.Task](ctx, c, p, nil)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CreateTask(ctx context.Context, accountID uuid.UUID, task models.NewTask) (Result[models.Task], error) {
	return mutate[models.Task](ctx, c, http.MethodPost, "/api/accounts/"+segment(accountID)+"/tasks", task,
		http.StatusCreated)
}

func (c *Client) UpdateTask(ctx context.Context, id string, update models.UpdateTask) (Result[models.Task], error) {
	p, err := taskPath(id)
	if err != nil {
		return Result[models.Task]{}, err
	}
	return mutate[models.Task](ctx, c, http.MethodPatch, p, update,
		http.StatusOK, http.StatusCreated)
}

func (c *Client) RenameTask(ctx context.Context, id, name string) (Result[models.Task], error) {
	return c.UpdateTask(ctx, id, models.UpdateTask{Name: &name})
}

// SetTaskExpiration expires the task at the given time, disabling it if the
// time is not in the future. A nil time re-enables the task indefinitely.
func (c *Client) SetTaskExpiration(ctx context.Context, id string, at *time.Time) (Result[models.Task], error) {
	expiration := models.NeverExpire()
	if at != nil {
		expiration = models.ExpireAt(*at)
	}
	return c.UpdateTask(ctx, id, models.UpdateTask{Expiration: expiration})
}

// DeleteTask deletes a task. With force the server ignores aggregators that
// fail to acknowledge the task's expiration.
func (c *Client) DeleteTask(ctx context.Context, id string, force bool) error {
	p, err := taskPath(id)
	if err != nil {
		return err
	}
	var query url.Values
	if force {
		query = url.Values{"force": {"true"}}
	}
	return c.remove(ctx, p, query)
}

func (c *Client) CollectorAuthTokens(ctx context.Context, taskID string) ([]models.CollectorAuthToken, error) {
	p, err := taskPath(taskID)
	if err != nil {
		return nil, err
	}
	return fetch[[]models.CollectorAuthToken](ctx, c, p+"/collector_auth_tokens", nil)
}
