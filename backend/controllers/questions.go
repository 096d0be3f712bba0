package controllers

import (
	"errors"

	"github.com/quantumdemo/sna/backend/models"
)

// validateQuestionShape enforces the authoring rules shared by quizzes and
// final exams: single-choice questions need exactly one correct choice,
// multi-choice at least one, true/false a stated answer.
func validateQuestionShape(qt models.QuestionType, numChoices, numCorrect int, trueFalse *bool) error {
	switch qt {
	case models.QuestionMultipleChoiceSingle:
		if numChoices < 2 {
			return errors.New("Single-choice questions need at least two choices")
		}
		if numCorrect != 1 {
			return errors.New("Single-choice questions need exactly one correct choice")
		}
	case models.QuestionMultipleChoiceMultiple:
		if numChoices < 2 {
			return errors.New("Multi-select questions need at least two choices")
		}
		if numCorrect < 1 {
			return errors.New("Multi-select questions need at least one correct choice")
		}
	case models.QuestionTrueFalse:
		if trueFalse == nil {
			return errors.New("True/false questions need a correct answer")
		}
		if numChoices != 0 {
			return errors.New("True/false questions do not take choices")
		}
	case models.QuestionShortAnswer, models.QuestionEssay, models.QuestionFileUpload:
		if numChoices != 0 {
			return errors.New("This question type does not take choices")
		}
	default:
		return errors.New("Invalid question type")
	}
	return nil
}
