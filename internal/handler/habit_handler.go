package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusd/internal/middleware"
	"focusd/internal/service"
)

type HabitHandler struct {
	habitService *service.HabitService
}

type createHabitRequest struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

func NewHabitHandler(habitService *service.HabitService) *HabitHandler {
	return &HabitHandler{habitService: habitService}
}

func (h *HabitHandler) List(c *gin.Context) {
	habits, apiErr := h.habitService.List(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

func (h *HabitHandler) Create(c *gin.Context) {
	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_json", "message": "invalid request body"},
		})
		return
	}

	habit, apiErr := h.habitService.Create(c.Request.Context(), middleware.UserID(c), req.Title, req.Color)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"habit": habit})
}

func (h *HabitHandler) Delete(c *gin.Context) {
	if apiErr := h.habitService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HabitHandler) Toggle(c *gin.Context) {
	habit, apiErr := h.habitService.ToggleToday(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": habit})
}
