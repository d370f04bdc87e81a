package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"

	ListRulesRoute = "/v1/rules"
	ExplainRoute   = "/v1/explain"

	ListAuditsRoute = "/v1/audit/entries"

	TaskParent       = "/v1/tasks"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "/{name}/trigger"
	LogsForTaskRoute = TaskParent + "/{name}/logs"
)
