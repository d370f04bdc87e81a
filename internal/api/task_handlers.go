package api

import (
	"errors"
	"net/http"

	"github.com/sorengranfeldt/mre/internal/api/presenter"
	"github.com/sorengranfeldt/mre/internal/logging"
	"github.com/sorengranfeldt/mre/internal/tasks"
)

type TriggerTaskResponse struct {
	Status string `json:"status"`
}

func (s *Server) tasksAvailable(w http.ResponseWriter, r *http.Request) bool {
	if s.taskManager == nil {
		presenter.Error(w, r, "background tasks are not enabled", http.StatusNotImplemented)
		return false
	}
	return true
}

func taskError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound tasks.TaskNotFoundError
	if errors.As(err, &notFound) {
		presenter.Error(w, r, err.Error(), http.StatusNotFound)
		return
	}
	presenter.Error(w, r, err.Error(), http.StatusInternalServerError)
}

// handleListTasks responds with the list of tasks and their statuses.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if !s.tasksAvailable(w, r) {
		return
	}
	presenter.JSON(w, r, s.taskManager.ListStatus(), http.StatusOK)
}

// handleTriggerTask starts a run of a task in the background.
func (s *Server) handleTriggerTask(w http.ResponseWriter, r *http.Request) {
	if !s.tasksAvailable(w, r) {
		return
	}
	if err := s.taskManager.Trigger(r.PathValue("name")); err != nil {
		taskError(w, r, err)
		return
	}
	presenter.JSON(w, r, TriggerTaskResponse{
		Status: "triggered",
	}, http.StatusAccepted)
}

// handleLogsForTask returns the output of the latest run of a task.
func (s *Server) handleLogsForTask(w http.ResponseWriter, r *http.Request) {
	if !s.tasksAvailable(w, r) {
		return
	}
	logs, err := s.taskManager.GetLogs(r.PathValue("name"))
	if err != nil {
		taskError(w, r, err)
		return
	}
	if logs == nil {
		logs = []logging.Entry{}
	}
	presenter.JSON(w, r, logs, http.StatusOK)
}
