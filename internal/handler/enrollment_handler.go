package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studycenter-api/internal/dto"
	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/response"
)

type enrollmentService interface {
	ListByOffering(ctx context.Context, offeringID string) ([]models.Enrollment, error)
	Enroll(ctx context.Context, offeringID string, req dto.EnrollRequest) (*models.Enrollment, error)
	Drop(ctx context.Context, id string) (*models.Enrollment, error)
	Standing(ctx context.Context, offeringID, learnerID string) (*models.Standing, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments of an offering
// @Tags Enrollments
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	enrollments, err := h.enrollments.ListByOffering(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Create godoc
// @Summary Enroll a learner
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /offerings/{id}/enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Drop godoc
// @Summary Drop an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	enrollment, err := h.enrollments.Drop(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Standing godoc
// @Summary Learner standing in an offering
// @Tags Enrollments
// @Produce json
// @Param id path string true "Offering ID"
// @Param learnerId path string true "Learner ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/learners/{learnerId}/standing [get]
func (h *EnrollmentHandler) Standing(c *gin.Context) {
	standing, err := h.enrollments.Standing(c.Request.Context(), c.Param("id"), c.Param("learnerId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}
