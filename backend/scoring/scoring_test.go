package scoring

import (
	"testing"

	"github.com/quantumdemo/sna/backend/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func choice(id uint, correct bool) models.Choice {
	return models.Choice{Model: gorm.Model{ID: id}, IsCorrect: correct}
}

func uintPtr(v uint) *uint { return &v }
func boolPtr(v bool) *bool { return &v }

func singleChoiceQuestion(marks float64) models.Question {
	return models.Question{
		Model:        gorm.Model{ID: 1},
		QuestionType: models.QuestionMultipleChoiceSingle,
		Marks:        marks,
		Choices:      []models.Choice{choice(10, false), choice(11, true), choice(12, false)},
	}
}

func TestAutoScoreSingleChoice(t *testing.T) {
	q := singleChoiceQuestion(2.5)

	// The designated correct choice always earns full marks; every other
	// choice earns zero.
	assert.Equal(t, 2.5, AutoScore(q, Response{SelectedChoiceID: uintPtr(11)}))
	assert.Equal(t, 0.0, AutoScore(q, Response{SelectedChoiceID: uintPtr(10)}))
	assert.Equal(t, 0.0, AutoScore(q, Response{SelectedChoiceID: uintPtr(12)}))
	assert.Equal(t, 0.0, AutoScore(q, Response{}))
}

func TestAutoScoreMultiSelectNoPartialCredit(t *testing.T) {
	q := models.Question{
		Model:        gorm.Model{ID: 2},
		QuestionType: models.QuestionMultipleChoiceMultiple,
		Marks:        4,
		Choices: []models.Choice{
			choice(20, true), choice(21, true), choice(22, false), choice(23, false),
		},
	}

	assert.Equal(t, 4.0, AutoScore(q, Response{SelectedChoiceIDs: []uint{20, 21}}))
	assert.Equal(t, 4.0, AutoScore(q, Response{SelectedChoiceIDs: []uint{21, 20}}))

	// Strict subset.
	assert.Equal(t, 0.0, AutoScore(q, Response{SelectedChoiceIDs: []uint{20}}))
	// Strict superset.
	assert.Equal(t, 0.0, AutoScore(q, Response{SelectedChoiceIDs: []uint{20, 21, 22}}))
	// Disjoint.
	assert.Equal(t, 0.0, AutoScore(q, Response{SelectedChoiceIDs: []uint{22, 23}}))
	// Unanswered.
	assert.Equal(t, 0.0, AutoScore(q, Response{}))

	// Repeating an ID is still a strict subset, not an exact match.
	assert.Equal(t, 0.0, AutoScore(q, Response{SelectedChoiceIDs: []uint{20, 20}}))
	assert.Equal(t, 4.0, AutoScore(q, Response{SelectedChoiceIDs: []uint{20, 21, 21}}))
}

func TestAutoScoreTrueFalse(t *testing.T) {
	q := models.Question{
		Model:           gorm.Model{ID: 3},
		QuestionType:    models.QuestionTrueFalse,
		Marks:           1,
		TrueFalseAnswer: boolPtr(true),
	}

	assert.Equal(t, 1.0, AutoScore(q, Response{TrueFalse: boolPtr(true)}))
	assert.Equal(t, 0.0, AutoScore(q, Response{TrueFalse: boolPtr(false)}))
	assert.Equal(t, 0.0, AutoScore(q, Response{}))
}

func TestAutoScoreManualTypes(t *testing.T) {
	for _, qt := range []models.QuestionType{
		models.QuestionShortAnswer, models.QuestionEssay, models.QuestionFileUpload,
	} {
		q := models.Question{QuestionType: qt, Marks: 5}
		assert.Equal(t, 0.0, AutoScore(q, Response{Text: "an essay"}), string(qt))
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 100.0, Percentage(3, 3))
	assert.Equal(t, 50.0, Percentage(1.5, 3))
	assert.Equal(t, 0.0, Percentage(0, 3))

	// Zero total marks must not divide by zero.
	assert.Equal(t, 0.0, Percentage(0, 0))
}

func TestValidateRejectsForeignChoices(t *testing.T) {
	q := singleChoiceQuestion(1)

	assert.NoError(t, Validate(q, Response{SelectedChoiceID: uintPtr(11)}))
	assert.NoError(t, Validate(q, Response{}))
	assert.Error(t, Validate(q, Response{SelectedChoiceID: uintPtr(99)}))

	multi := models.Question{
		Model:        gorm.Model{ID: 2},
		QuestionType: models.QuestionMultipleChoiceMultiple,
		Choices:      []models.Choice{choice(20, true), choice(21, false)},
	}
	assert.NoError(t, Validate(multi, Response{SelectedChoiceIDs: []uint{20, 21}}))
	assert.Error(t, Validate(multi, Response{SelectedChoiceIDs: []uint{20, 99}}))
}
