package results

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civiq-care/backend/pkg/response"
)

// Handler exposes stored survey results for administrators.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a results handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /results (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list results", zap.Error(err))
		response.Internal(c, "failed to list results")
		return
	}
	response.OK(c, list)
}

// GetByUser handles GET /results/:userId (admin only).
func (h *Handler) GetByUser(c *gin.Context) {
	res, err := h.repo.GetByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.NotFound(c, "no stored result for user")
		return
	}
	response.OK(c, res)
}
