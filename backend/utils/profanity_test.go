package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterProfanity(t *testing.T) {
	banned := []string{"badword", "censorthis"}

	assert.Equal(t, "hello *** world", FilterProfanity("hello badword world", banned))
	assert.Equal(t, "*** ***", FilterProfanity("BadWord CENSORTHIS", banned))
	assert.Equal(t, "clean message", FilterProfanity("clean message", banned))
	assert.Equal(t, "", FilterProfanity("", banned))
}

func TestFilterProfanityMaskIsFixedLength(t *testing.T) {
	masked := FilterProfanity("censorthis", []string{"censorthis"})
	assert.Equal(t, "***", masked)
}
