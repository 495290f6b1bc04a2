package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskify/internal/services"
)

type TaskHandler struct {
	tasks services.TaskService
}

func NewTaskHandler(tasks services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var in services.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadBody(c, err)
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	q, ok := parseListQuery(c)
	if !ok {
		return
	}

	if q.Count {
		n, err := h.tasks.CountTasks(c.Request.Context(), q)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
		return
	}

	tasks, err := h.tasks.ListTasks(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	task, err := h.tasks.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ReplaceTask(c *gin.Context) {
	var in services.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadBody(c, err)
		return
	}

	task, err := h.tasks.ReplaceTask(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.tasks.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
