package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuizRunStatusTerminal(t *testing.T) {
	assert.False(t, QuizRunStarted.Terminal())
	assert.True(t, QuizRunCompleted.Terminal())
	assert.True(t, QuizRunExited.Terminal())
}
