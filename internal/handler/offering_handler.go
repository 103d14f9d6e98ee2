package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studycenter-api/internal/dto"
	internalmiddleware "github.com/noah-isme/studycenter-api/internal/middleware"
	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/response"
)

type offeringService interface {
	List(ctx context.Context, filter models.OfferingFilter) ([]models.CourseOffering, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.CourseOffering, error)
	Create(ctx context.Context, req dto.CreateOfferingRequest) (*models.CourseOffering, error)
	Reschedule(ctx context.Context, id string, req dto.RescheduleOfferingRequest) (*models.CourseOffering, error)
	CheckSchedule(ctx context.Context, req dto.CheckScheduleRequest) (*models.ScheduleDiagnosis, error)
	Delete(ctx context.Context, id string) error
	Finalize(ctx context.Context, id string) (*models.CourseOffering, error)
}

type sessionCalendar interface {
	Sessions(ctx context.Context, offeringID string) (*models.SessionCalendar, bool, error)
}

type offeringRecomputer interface {
	RecomputeCourse(ctx context.Context, offeringID string) (*models.RecomputeSummary, error)
}

// OfferingHandler exposes scheduling and lifecycle endpoints for course offerings.
type OfferingHandler struct {
	offerings  offeringService
	calendar   sessionCalendar
	recomputer offeringRecomputer
}

// NewOfferingHandler constructs the handler.
func NewOfferingHandler(offerings offeringService, calendar sessionCalendar, recomputer offeringRecomputer) *OfferingHandler {
	return &OfferingHandler{offerings: offerings, calendar: calendar, recomputer: recomputer}
}

// List godoc
// @Summary List course offerings
// @Tags Offerings
// @Produce json
// @Param subject_id query string false "Filter by subject"
// @Param room_id query string false "Filter by room"
// @Param instructor_id query string false "Filter by instructor"
// @Param completed query bool false "Filter by completion"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /offerings [get]
func (h *OfferingHandler) List(c *gin.Context) {
	var query dto.OfferingListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	offerings, pagination, err := h.offerings.List(c.Request.Context(), query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offerings, pagination)
}

// Get godoc
// @Summary Get course offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /offerings/{id} [get]
func (h *OfferingHandler) Get(c *gin.Context) {
	offering, err := h.offerings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// Create godoc
// @Summary Schedule a new course offering
// @Description Rejected without writing when the room or instructor is already booked, capacity is exceeded, the department does not match or the load ceiling is reached.
// @Tags Offerings
// @Accept json
// @Produce json
// @Param payload body dto.CreateOfferingRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /offerings [post]
func (h *OfferingHandler) Create(c *gin.Context) {
	var req dto.CreateOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	offering, err := h.offerings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offering)
}

// Check godoc
// @Summary Dry-run a schedule proposal
// @Description Reports every room and instructor conflict plus capacity, department and load problems. Nothing is written.
// @Tags Offerings
// @Accept json
// @Produce json
// @Param payload body dto.CheckScheduleRequest true "Proposal"
// @Success 200 {object} response.Envelope
// @Router /offerings/check [post]
func (h *OfferingHandler) Check(c *gin.Context) {
	var req dto.CheckScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	diagnosis, err := h.offerings.CheckSchedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diagnosis, nil)
}

// Reschedule godoc
// @Summary Reschedule or reassign an offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body dto.RescheduleOfferingRequest true "New placement"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /offerings/{id}/schedule [put]
func (h *OfferingHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleOfferingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	offering, err := h.offerings.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// Delete godoc
// @Summary Delete an offering without active enrollments
// @Tags Offerings
// @Param id path string true "Offering ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /offerings/{id} [delete]
func (h *OfferingHandler) Delete(c *gin.Context) {
	if err := h.offerings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Finalize godoc
// @Summary Mark an ended offering as completed
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /offerings/{id}/finalize [post]
func (h *OfferingHandler) Finalize(c *gin.Context) {
	offering, err := h.offerings.Finalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offering, nil)
}

// Recompute godoc
// @Summary Recompute total mark and standings of an offering
// @Tags Grading
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/recompute [post]
func (h *OfferingHandler) Recompute(c *gin.Context) {
	summary, err := h.recomputer.RecomputeCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Sessions godoc
// @Summary List every session of an offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/sessions [get]
func (h *OfferingHandler) Sessions(c *gin.Context) {
	calendar, hit, err := h.calendar.Sessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	internalmiddleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, calendar, nil, internalmiddleware.ExtractMeta(c))
}
