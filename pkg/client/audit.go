package client

import (
	"context"

	"github.com/sorengranfeldt/mre/internal/api"
	"github.com/sorengranfeldt/mre/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	SubjectID string
	Rule      string
	Action    string
}

// ListAudits retrieves the latest audit entries from the server, limited to the specified number.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.SubjectID != "" {
		ub = ub.addQueryParam("subject", opts.SubjectID)
	}
	if opts.Rule != "" {
		ub = ub.addQueryParam("rule", opts.Rule)
	}
	if opts.Action != "" {
		ub = ub.addQueryParam("action", opts.Action)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
