package handlers

import (
	"net/http"

	"taskelio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AIHandler runs content generation tasks on behalf of the frontend.
type AIHandler struct {
	generator *services.ContentGenerator
	logger    *logrus.Logger
}

func NewAIHandler(generator *services.ContentGenerator, logger *logrus.Logger) *AIHandler {
	return &AIHandler{generator: generator, logger: orDefault(logger)}
}

// Generate posts the JSON body as context to the task named in the path.
// Degraded results are still 200; the variant field tells them apart.
func (h *AIHandler) Generate(c *gin.Context) {
	task := c.Param("task")
	if !services.IsValidAITask(task) {
		fail(c, http.StatusBadRequest, "Invalid request", "unknown task: "+task)
		return
	}
	input := map[string]interface{}{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			fail(c, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
	}
	res, err := h.generator.Generate(c.Request.Context(), task, input)
	if err != nil {
		respondError(c, h.logger, "generate content", err)
		return
	}
	ok(c, http.StatusOK, res)
}

// Tasks lists the generation tasks.
func (h *AIHandler) Tasks(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"tasks": services.AITasks(), "configured": h.generator.Configured()})
}

func RegisterAIRoutes(r *gin.RouterGroup, h *AIHandler) {
	ai := r.Group("/ai")
	{
		ai.GET("/tasks", h.Tasks)
		ai.POST("/:task", h.Generate)
	}
}
