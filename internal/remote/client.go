package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/amirphl/marketboard/internal/resolver"
	"github.com/amirphl/marketboard/internal/utils"
)

const DefaultTimeout = 10 * time.Second

// Client executes operations against a remote /graphql endpoint.
type Client struct {
	endpoint string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{endpoint: endpoint, timeout: timeout, logger: utils.GetLogger()}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Execute(ctx context.Context, op resolver.Operation, params resolver.Params) (resolver.Result, error) {
	if err := ctx.Err(); err != nil {
		return resolver.Result{}, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	agent := fiber.Post(c.endpoint).
		JSON(Request{Operation: op.String(), Variables: params}).
		Timeout(timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		if err := ctx.Err(); err != nil {
			return resolver.Result{}, err
		}
		c.logger.Warn("Remote | request failed", zap.Stringer("operation", op), zap.Errors("errors", errs))
		return resolver.Result{}, fmt.Errorf("remote %s: %w", op, errors.Join(errs...))
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return resolver.Result{}, fmt.Errorf("remote %s: decoding response (status %d): %w", op, code, err)
	}
	if len(resp.Errors) > 0 {
		return resolver.Result{}, resp.Errors[0].Err()
	}
	if resp.Data == nil {
		return resolver.Result{}, fmt.Errorf("%w: status %d", ErrMalformedResponse, code)
	}
	return *resp.Data, nil
}
