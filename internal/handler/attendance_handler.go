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

type attendanceService interface {
	RecordSession(ctx context.Context, offeringID string, req dto.RecordAttendanceRequest) (*models.SessionAttendance, error)
	Sessions(ctx context.Context, offeringID string) ([]models.SessionAttendance, error)
	AbsenceRates(ctx context.Context, offeringID string) ([]models.AbsenceRate, error)
	LearnerAbsences(ctx context.Context, offeringID, learnerID string) (*models.LearnerAbsences, error)
}

// AttendanceHandler exposes session attendance endpoints.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Record godoc
// @Summary Record attendance for one session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body dto.RecordAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /offerings/{id}/attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	var req dto.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.attendance.RecordSession(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary Attendance per session date
// @Tags Attendance
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	sessions, err := h.attendance.Sessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// AbsenceRates godoc
// @Summary Absence rate of every current learner
// @Tags Attendance
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/absence-rates [get]
func (h *AttendanceHandler) AbsenceRates(c *gin.Context) {
	rates, err := h.attendance.AbsenceRates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rates, nil)
}

// LearnerAbsences godoc
// @Summary Absence rate and missed dates of one learner
// @Tags Attendance
// @Produce json
// @Param id path string true "Offering ID"
// @Param learnerId path string true "Learner ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /offerings/{id}/learners/{learnerId}/absences [get]
func (h *AttendanceHandler) LearnerAbsences(c *gin.Context) {
	absences, err := h.attendance.LearnerAbsences(c.Request.Context(), c.Param("id"), c.Param("learnerId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absences, nil)
}
