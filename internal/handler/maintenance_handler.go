package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studycenter-api/internal/dto"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/jobs"
	"github.com/noah-isme/studycenter-api/pkg/response"
)

type maintenanceService interface {
	RecomputeAll(ctx context.Context, req dto.RecomputeAllRequest) (*dto.RecomputeAllResponse, error)
	Stats() jobs.Stats
}

// MaintenanceHandler exposes bulk maintenance endpoints.
type MaintenanceHandler struct {
	maintenance maintenanceService
}

// NewMaintenanceHandler constructs the handler.
func NewMaintenanceHandler(maintenance maintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// RecomputeAll godoc
// @Summary Queue grade recomputation for offerings
// @Description An empty body or empty offering_ids queues every offering.
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body dto.RecomputeAllRequest false "Offerings to recompute"
// @Success 202 {object} response.Envelope
// @Router /maintenance/recompute [post]
func (h *MaintenanceHandler) RecomputeAll(c *gin.Context) {
	var req dto.RecomputeAllRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	resp, err := h.maintenance.RecomputeAll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// Stats godoc
// @Summary Maintenance queue counters
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /maintenance/queue [get]
func (h *MaintenanceHandler) Stats(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.maintenance.Stats(), nil)
}
