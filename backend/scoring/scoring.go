// Package scoring implements the per-question-type grading rules shared by
// quizzes and final exams.
package scoring

import (
	"errors"
	"fmt"

	"github.com/quantumdemo/sna/backend/models"
)

// Response is the typed student answer to one question. Exactly one field
// group is meaningful, determined by the question type.
type Response struct {
	SelectedChoiceID  *uint
	SelectedChoiceIDs []uint
	TrueFalse         *bool
	Text              string
	FilePath          string
}

// Validate rejects responses whose shape does not match the question type.
func Validate(q models.Question, r Response) error {
	switch q.QuestionType {
	case models.QuestionMultipleChoiceSingle:
		if r.SelectedChoiceID == nil {
			return nil // unanswered is allowed, scored as zero
		}
		if !choiceBelongs(q, *r.SelectedChoiceID) {
			return fmt.Errorf("choice %d does not belong to question %d", *r.SelectedChoiceID, q.ID)
		}
	case models.QuestionMultipleChoiceMultiple:
		for _, id := range r.SelectedChoiceIDs {
			if !choiceBelongs(q, id) {
				return fmt.Errorf("choice %d does not belong to question %d", id, q.ID)
			}
		}
	case models.QuestionTrueFalse, models.QuestionShortAnswer,
		models.QuestionEssay, models.QuestionFileUpload:
		// No structural constraints beyond the typed columns.
	default:
		return errors.New("unknown question type")
	}
	return nil
}

// AutoScore awards the question's full marks or zero. Manually graded types
// always score zero here; the instructor sets marks_awarded later.
func AutoScore(q models.Question, r Response) float64 {
	switch q.QuestionType {
	case models.QuestionMultipleChoiceSingle:
		if r.SelectedChoiceID == nil {
			return 0
		}
		for _, c := range q.Choices {
			if c.ID == *r.SelectedChoiceID && c.IsCorrect {
				return q.Marks
			}
		}
		return 0

	case models.QuestionMultipleChoiceMultiple:
		// Exact set match only; subsets and supersets earn nothing.
		// Selections dedupe first so repeated IDs cannot pad the count.
		correct := make(map[uint]struct{})
		for _, c := range q.Choices {
			if c.IsCorrect {
				correct[c.ID] = struct{}{}
			}
		}
		selected := make(map[uint]struct{}, len(r.SelectedChoiceIDs))
		for _, id := range r.SelectedChoiceIDs {
			selected[id] = struct{}{}
		}
		if len(selected) != len(correct) || len(correct) == 0 {
			return 0
		}
		for id := range selected {
			if _, ok := correct[id]; !ok {
				return 0
			}
		}
		return q.Marks

	case models.QuestionTrueFalse:
		if r.TrueFalse == nil || q.TrueFalseAnswer == nil {
			return 0
		}
		if *r.TrueFalse == *q.TrueFalseAnswer {
			return q.Marks
		}
		return 0
	}

	return 0
}

func TotalMarks(questions []models.Question) float64 {
	var total float64
	for _, q := range questions {
		total += q.Marks
	}
	return total
}

// Percentage converts awarded marks to a 0-100 score, full precision.
// Zero total marks scores zero rather than dividing by zero.
func Percentage(awarded, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return awarded / total * 100
}

func choiceBelongs(q models.Question, choiceID uint) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}
