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

type gradedItemService interface {
	List(ctx context.Context, offeringID string) ([]models.GradedItem, error)
	Create(ctx context.Context, offeringID string, req dto.CreateGradedItemRequest) (*models.GradedItem, error)
	Update(ctx context.Context, id string, req dto.UpdateGradedItemRequest) (*models.GradedItem, error)
	Delete(ctx context.Context, id string) error
}

type achievementService interface {
	Record(ctx context.Context, itemID string, req dto.RecordAchievementRequest) (*models.Achievement, error)
	SubmitQuiz(ctx context.Context, itemID string, req dto.QuizSubmissionRequest) (*models.Achievement, error)
}

// GradingHandler exposes graded work and grade entry endpoints.
type GradingHandler struct {
	items        gradedItemService
	achievements achievementService
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(items gradedItemService, achievements achievementService) *GradingHandler {
	return &GradingHandler{items: items, achievements: achievements}
}

// ListItems godoc
// @Summary List graded items of an offering
// @Tags Grading
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/graded-items [get]
func (h *GradingHandler) ListItems(c *gin.Context) {
	items, err := h.items.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CreateItem godoc
// @Summary Add an assignment or quiz
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body dto.CreateGradedItemRequest true "Graded item"
// @Success 201 {object} response.Envelope
// @Router /offerings/{id}/graded-items [post]
func (h *GradingHandler) CreateItem(c *gin.Context) {
	var req dto.CreateGradedItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.items.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateItem godoc
// @Summary Update title and full mark of a graded item
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Graded item ID"
// @Param payload body dto.UpdateGradedItemRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /graded-items/{id} [put]
func (h *GradingHandler) UpdateItem(c *gin.Context) {
	var req dto.UpdateGradedItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.items.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteItem godoc
// @Summary Delete a graded item and its achievements
// @Tags Grading
// @Param id path string true "Graded item ID"
// @Success 204
// @Router /graded-items/{id} [delete]
func (h *GradingHandler) DeleteItem(c *gin.Context) {
	if err := h.items.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RecordAchievement godoc
// @Summary Enter or replace a learner's mark
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Graded item ID"
// @Param payload body dto.RecordAchievementRequest true "Mark"
// @Success 200 {object} response.Envelope
// @Router /graded-items/{id}/achievements [put]
func (h *GradingHandler) RecordAchievement(c *gin.Context) {
	var req dto.RecordAchievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	achievement, err := h.achievements.Record(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, achievement, nil)
}

// SubmitQuiz godoc
// @Summary Score a quiz attempt
// @Description The mark is round(correct/total * full mark).
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body dto.QuizSubmissionRequest true "Answer counts"
// @Success 201 {object} response.Envelope
// @Router /graded-items/{id}/submissions [post]
func (h *GradingHandler) SubmitQuiz(c *gin.Context) {
	var req dto.QuizSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	achievement, err := h.achievements.SubmitQuiz(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, achievement)
}
