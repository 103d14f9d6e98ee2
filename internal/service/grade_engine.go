package service

import (
	"github.com/samber/lo"

	"github.com/noah-isme/studycenter-api/internal/models"
)

// GradeEngine derives total marks and learner scores from flat collections. It performs no I/O.
//
// Every item contributes (achieved/fullMark)*(fullMark/totalMark), which reduces to
// achieved/totalMark, so scores are computed from integer sums and rounded once.
type GradeEngine struct {
	passMark int
}

// NewGradeEngine builds an engine using the given pass mark.
func NewGradeEngine(passMark int) *GradeEngine {
	if passMark < 0 || passMark > 100 {
		passMark = models.DefaultPassMark
	}
	return &GradeEngine{passMark: passMark}
}

// PassMark returns the configured pass mark.
func (e *GradeEngine) PassMark() int {
	return e.passMark
}

// TotalMark sums the full marks of all items.
func (e *GradeEngine) TotalMark(items []models.GradedItem) int {
	return lo.SumBy(items, func(item models.GradedItem) int { return item.FullMark })
}

// Score computes one learner's scores. Items without an achievement contribute zero.
func (e *GradeEngine) Score(items []models.GradedItem, achieved map[string]int, totalMark int) models.Scores {
	if totalMark <= 0 {
		return models.Scores{}
	}
	var assignments, quizzes int
	for _, item := range items {
		mark, ok := achieved[item.ID]
		if !ok {
			continue
		}
		switch item.Kind {
		case models.GradedItemAssignment:
			assignments += mark
		case models.GradedItemQuiz:
			quizzes += mark
		}
	}
	scores := models.Scores{
		Assignments: roundRatio(100*assignments, totalMark),
		Quizzes:     roundRatio(100*quizzes, totalMark),
	}
	scores.Overall = scores.Assignments + scores.Quizzes
	return scores
}

// Apply recomputes every enrollment in place and returns the updated copies. When totalMark is zero
// the enrollments are returned unchanged and applied is false.
func (e *GradeEngine) Apply(items []models.GradedItem, enrollments []models.Enrollment, achievements []models.Achievement, totalMark int) (updated []models.Enrollment, applied bool) {
	if totalMark <= 0 {
		return enrollments, false
	}
	itemIDs := lo.SliceToMap(items, func(item models.GradedItem) (string, struct{}) { return item.ID, struct{}{} })
	byLearner := make(map[string]map[string]int, len(enrollments))
	for _, a := range achievements {
		if _, ok := itemIDs[a.GradedItemID]; !ok {
			continue
		}
		marks, ok := byLearner[a.LearnerID]
		if !ok {
			marks = make(map[string]int)
			byLearner[a.LearnerID] = marks
		}
		marks[a.GradedItemID] = a.AchievedMark
	}

	updated = lo.Map(enrollments, func(enrollment models.Enrollment, _ int) models.Enrollment {
		enrollment.Scores = e.Score(items, byLearner[enrollment.LearnerID], totalMark)
		enrollment.Status = models.NextStatus(enrollment.Status, enrollment.Overall, e.passMark)
		return enrollment
	})
	return updated, true
}

// Breakdown lists a learner's result per item plus achieved percentages within each kind.
func (e *GradeEngine) Breakdown(items []models.GradedItem, achievements []models.Achievement) (lines []models.StandingItem, assignmentsPercent, quizzesPercent int) {
	marks := lo.SliceToMap(achievements, func(a models.Achievement) (string, int) { return a.GradedItemID, a.AchievedMark })
	var achievedA, possibleA, achievedQ, possibleQ int
	lines = make([]models.StandingItem, 0, len(items))
	for _, item := range items {
		mark, submitted := marks[item.ID]
		lines = append(lines, models.StandingItem{
			GradedItemID: item.ID,
			Title:        item.Title,
			Kind:         item.Kind,
			FullMark:     item.FullMark,
			AchievedMark: mark,
			Submitted:    submitted,
		})
		if item.Kind == models.GradedItemQuiz {
			achievedQ += mark
			possibleQ += item.FullMark
		} else {
			achievedA += mark
			possibleA += item.FullMark
		}
	}
	return lines, roundRatio(100*achievedA, possibleA), roundRatio(100*achievedQ, possibleQ)
}

// roundRatio returns num/den rounded half away from zero; zero when den is not positive.
func roundRatio(num, den int) int {
	if den <= 0 {
		return 0
	}
	if num < 0 {
		return -((-2*num + den) / (2 * den))
	}
	return (2*num + den) / (2 * den)
}
