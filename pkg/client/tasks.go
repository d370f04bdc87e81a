package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sorengranfeldt/mre/internal/api"
	"github.com/sorengranfeldt/mre/internal/logging"
	"github.com/sorengranfeldt/mre/internal/tasks"
)

func taskPath(route, name string) string {
	return strings.Replace(route, "{name}", url.PathEscape(name), 1)
}

func (c *Client) ListTasks(ctx context.Context) ([]tasks.TaskStatus, string, error) {
	var res []tasks.TaskStatus
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListTasksRoute).
		build(), &res)
	return res, correlation, err
}

func (c *Client) TriggerTask(ctx context.Context, name string) (string, error) {
	var res api.TriggerTaskResponse
	correlation, err := c.post(ctx, c.url().
		setPath(taskPath(api.TriggerTaskRoute, name)).
		build(), nil, &res)
	if err != nil {
		return correlation, err
	}
	if res.Status != "triggered" {
		return correlation, fmt.Errorf("unexpected response status: %s", res.Status)
	}
	return correlation, nil
}

func (c *Client) GetTaskLogs(ctx context.Context, name string) ([]logging.Entry, string, error) {
	var res []logging.Entry
	correlation, err := c.get(ctx, c.url().
		setPath(taskPath(api.LogsForTaskRoute, name)).
		build(), &res)
	return res, correlation, err
}
