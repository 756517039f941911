package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMemoryExhausted(t *testing.T) {
	assert.False(t, isMemoryExhausted(nil))
	assert.False(t, isMemoryExhausted(errors.New("boom")))
	assert.True(t, isMemoryExhausted(errors.New("isolate exceeded its memory limit")))
}
