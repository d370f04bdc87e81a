package client

import (
	"context"

	"github.com/sorengranfeldt/mre/internal/api"
	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/host/memory"
	"github.com/sorengranfeldt/mre/internal/service"
)

// About returns build information and the status of the loaded rules.
func (c *Client) About(ctx context.Context) (*api.AboutResponse, string, error) {
	var info api.AboutResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	if err != nil {
		return nil, correlation, err
	}
	return &info, correlation, nil
}

// Rules lists the rules the server has loaded.
func (c *Client) Rules(ctx context.Context) ([]core.Rule, string, error) {
	var rules []core.Rule
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListRulesRoute).
		build(), &rules)
	return rules, correlation, err
}

// Explain runs a dry pass for fixture on the server.
func (c *Client) Explain(ctx context.Context, fixture *memory.Fixture) (*service.SimulationResult, string, error) {
	var result service.SimulationResult
	correlation, err := c.post(ctx, c.url().
		setPath(api.ExplainRoute).
		build(), fixture, &result)
	if err != nil {
		return nil, correlation, err
	}
	return &result, correlation, nil
}
