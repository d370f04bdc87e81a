package api

import (
	"net/http"

	"github.com/sorengranfeldt/mre/internal/api/middleware"
	"github.com/sorengranfeldt/mre/internal/service"
	"github.com/sorengranfeldt/mre/internal/tasks"
)

type Server struct {
	svc         *service.ProvisioningService
	taskManager *tasks.Manager
}

// NewServer creates the debug server. taskManager may be nil, the task
// routes then answer 501.
func NewServer(svc *service.ProvisioningService, taskManager *tasks.Manager) *Server {
	return &Server{svc: svc, taskManager: taskManager}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	mux.HandleFunc("GET "+ListRulesRoute, s.handleListRules)
	mux.HandleFunc("POST "+ExplainRoute, s.handleExplain)
	mux.HandleFunc("GET "+ListAuditsRoute, s.handleListAudits)

	mux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	mux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	mux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
