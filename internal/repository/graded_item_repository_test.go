package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studycenter-api/internal/models"
)

func TestGradedItemRepositoryListByOffering(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradedItemRepository(db)

	rows := sqlmock.NewRows([]string{"id", "offering_id", "kind", "title", "full_mark", "created_at", "updated_at"}).
		AddRow("gi-1", "off-1", models.GradedItemAssignment, "Essay", 40, time.Now(), time.Now()).
		AddRow("gi-2", "off-1", models.GradedItemQuiz, "Quiz 1", 60, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM graded_items WHERE offering_id = $1 ORDER BY created_at ASC")).
		WithArgs("off-1").
		WillReturnRows(rows)

	items, err := repo.ListByOffering(context.Background(), nil, "off-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.GradedItemQuiz, items[1].Kind)
	assert.Equal(t, 60, items[1].FullMark)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradedItemRepositoryCreateAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradedItemRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO graded_items")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM graded_items WHERE id = $1")).
		WithArgs("gi-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	item := &models.GradedItem{OfferingID: "off-1", Kind: models.GradedItemQuiz, Title: "Quiz", FullMark: 10}
	require.NoError(t, repo.Create(context.Background(), nil, item))
	assert.NotEmpty(t, item.ID)
	require.NoError(t, repo.Delete(context.Background(), nil, "gi-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAchievementRepositoryListByOffering(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAchievementRepository(db)

	rows := sqlmock.NewRows([]string{"id", "graded_item_id", "learner_id", "achieved_mark", "feedback", "created_at", "updated_at"}).
		AddRow("ach-1", "gi-1", "learner-1", 35, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("JOIN graded_items g ON g.id = a.graded_item_id WHERE g.offering_id = $1")).
		WithArgs("off-1").
		WillReturnRows(rows)

	achievements, err := repo.ListByOffering(context.Background(), nil, "off-1")
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	assert.Equal(t, 35, achievements[0].AchievedMark)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAchievementRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAchievementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (graded_item_id, learner_id) DO UPDATE")).WillReturnResult(sqlmock.NewResult(1, 1))

	achievement := &models.Achievement{GradedItemID: "gi-1", LearnerID: "learner-1", AchievedMark: 12}
	require.NoError(t, repo.Upsert(context.Background(), nil, achievement))
	assert.NotEmpty(t, achievement.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
