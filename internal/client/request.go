package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apierrors "github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/validation"
)

type response struct {
	method string
	url    string
	status int
	body   []byte
}

func (r *response) statusError() error {
	return &apierrors.StatusError{Method: r.method, URL: r.url, Status: r.status, Body: string(r.body)}
}

func (r *response) operation() string {
	return r.method + " " + r.url
}

func (r *response) decode(v any) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return &apierrors.ErrDecode{Operation: r.operation(), Err: err}
	}
	return nil
}

// do sends one API request. 2xx and 400 responses are returned for the
// caller to interpret; every other status is a *errors.StatusError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*response, error) {
	t, err := c.api.get(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := t.base.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: request failed: %w", method, endpoint.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response: %w", method, endpoint.Path, err)
	}

	c.logger.DebugWithContext(ctx, "api request",
		"method", method,
		"path", endpoint.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	r := &response{method: method, url: endpoint.String(), status: resp.StatusCode, body: data}
	if resp.StatusCode == http.StatusBadRequest || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return r, nil
	}
	return nil, r.statusError()
}

// fetch GETs path and decodes a 200 response into T.
func fetch[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return out, err
	}
	if resp.status != http.StatusOK {
		return out, resp.statusError()
	}
	err = resp.decode(&out)
	return out, err
}

// mutate sends body and decodes a response whose status is one of
// expected into T. A 400 becomes an invalid Result.
func mutate[T any](ctx context.Context, c *Client, method, path string, body any, expected ...int) (Result[T], error) {
	resp, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return Result[T]{}, err
	}

	if resp.status == http.StatusBadRequest {
		errs, err := validation.Parse(resp.body)
		if err != nil {
			return Result[T]{}, &apierrors.ErrDecode{Operation: resp.operation(), Err: err}
		}
		return Invalid[T](errs), nil
	}

	for _, status := range expected {
		if resp.status != status {
			continue
		}
		var out T
		if err := resp.decode(&out); err != nil {
			return Result[T]{}, err
		}
		return Ok(out), nil
	}
	return Result[T]{}, resp.statusError()
}

// remove sends a DELETE and accepts any 2xx.
func (c *Client) remove(ctx context.Context, path string, query url.Values) error {
	resp, err := c.do(ctx, http.MethodDelete, path, query, nil)
	if err != nil {
		return err
	}
	if resp.status == http.StatusBadRequest {
		return resp.statusError()
	}
	return nil
}

func segment(id fmt.Stringer) string {
	return url.PathEscape(id.String())
}
