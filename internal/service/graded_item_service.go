package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/studycenter-api/internal/dto"
	"github.com/noah-isme/studycenter-api/internal/models"
	appErrors "github.com/noah-isme/studycenter-api/pkg/errors"
	"github.com/noah-isme/studycenter-api/pkg/logger"
)

type gradedItemStore interface {
	FindByID(ctx context.Context, id string) (*models.GradedItem, error)
	ListByOffering(ctx context.Context, exec sqlx.ExtContext, offeringID string) ([]models.GradedItem, error)
	Create(ctx context.Context, exec sqlx.ExtContext, item *models.GradedItem) error
	Update(ctx context.Context, exec sqlx.ExtContext, item *models.GradedItem) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type offeringMutator interface {
	Mutate(ctx context.Context, offeringID string, fn MutateFunc) (*models.RecomputeSummary, error)
}

// GradedItemService manages assignments and quizzes. Every change recomputes the owning offering.
type GradedItemService struct {
	items     gradedItemStore
	offerings offeringReader
	mutator   offeringMutator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradedItemService constructs the service.
func NewGradedItemService(items gradedItemStore, offerings offeringReader, mutator offeringMutator, validate *validator.Validate, logger *zap.Logger) *GradedItemService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradedItemService{items: items, offerings: offerings, mutator: mutator, validator: validate, logger: logger}
}

// List returns the offering's graded items.
func (s *GradedItemService) List(ctx context.Context, offeringID string) ([]models.GradedItem, error) {
	if _, err := findOffering(ctx, s.offerings, nil, offeringID); err != nil {
		return nil, err
	}
	items, err := s.items.ListByOffering(ctx, nil, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list graded items")
	}
	return items, nil
}

// Create adds a graded item to an offering.
func (s *GradedItemService) Create(ctx context.Context, offeringID string, req dto.CreateGradedItemRequest) (*models.GradedItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid graded item payload")
	}
	item := &models.GradedItem{
		OfferingID: offeringID,
		Kind:       models.GradedItemKind(strings.ToUpper(req.Kind)),
		Title:      strings.TrimSpace(req.Title),
		FullMark:   req.FullMark,
	}
	_, err := s.mutator.Mutate(ctx, offeringID, func(ctx context.Context, tx *sqlx.Tx, offering *models.CourseOffering) error {
		if err := ensureOpen(offering); err != nil {
			return err
		}
		if err := s.items.Create(ctx, tx, item); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create graded item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx, s.logger).Info("graded item created", zap.String("offering_id", offeringID), zap.String("item_id", item.ID), zap.String("kind", string(item.Kind)))
	return item, nil
}

// Update changes an item's title and full mark.
func (s *GradedItemService) Update(ctx context.Context, id string, req dto.UpdateGradedItemRequest) (*models.GradedItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid graded item payload")
	}
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Title = strings.TrimSpace(req.Title)
	item.FullMark = req.FullMark
	_, err = s.mutator.Mutate(ctx, item.OfferingID, func(ctx context.Context, tx *sqlx.Tx, offering *models.CourseOffering) error {
		if err := ensureOpen(offering); err != nil {
			return err
		}
		if err := s.items.Update(ctx, tx, item); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update graded item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes an item together with its achievements.
func (s *GradedItemService) Delete(ctx context.Context, id string) error {
	item, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.mutator.Mutate(ctx, item.OfferingID, func(ctx context.Context, tx *sqlx.Tx, offering *models.CourseOffering) error {
		if err := ensureOpen(offering); err != nil {
			return err
		}
		if err := s.items.Delete(ctx, tx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete graded item")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.WithContext(ctx, s.logger).Info("graded item deleted", zap.String("offering_id", item.OfferingID), zap.String("item_id", id))
	return nil
}

func (s *GradedItemService) find(ctx context.Context, id string) (*models.GradedItem, error) {
	return findGradedItem(ctx, s.items, id)
}

type gradedItemReader interface {
	FindByID(ctx context.Context, id string) (*models.GradedItem, error)
}

func findGradedItem(ctx context.Context, items gradedItemReader, id string) (*models.GradedItem, error) {
	item, err := items.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "graded item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded item")
	}
	return item, nil
}

func ensureOpen(offering *models.CourseOffering) error {
	if offering.Completed {
		return appErrors.Clone(appErrors.ErrFinalized, "offering is completed")
	}
	return nil
}
