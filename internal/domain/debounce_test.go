package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncingSettings_Enabled(t *testing.T) {
	assert.False(t, DebouncingSettings{}.Enabled())
	assert.False(t, DebouncingSettings{DebounceDelayS: 0}.Enabled())
	assert.False(t, DebouncingSettings{DebounceDelayS: -1}.Enabled())
	assert.True(t, DebouncingSettings{DebounceDelayS: 5}.Enabled())
}

func TestDebouncingSettings_ContentHash_Stable(t *testing.T) {
	s1 := DebouncingSettings{DebounceDelayS: 5, DebounceKey: "k"}
	s2 := DebouncingSettings{DebounceDelayS: 5, DebounceKey: "k"}
	s3 := DebouncingSettings{DebounceDelayS: 6, DebounceKey: "k"}

	h1, err := s1.ContentHash()
	assert.NoError(t, err)
	h2, err := s2.ContentHash()
	assert.NoError(t, err)
	h3, err := s3.ContentHash()
	assert.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestDebouncingSettings_LimitsExceeded_MaxCount(t *testing.T) {
	max := int64(2)
	s := DebouncingSettings{MaxTotalDebouncesAmount: &max}
	now := time.Now()

	assert.False(t, s.LimitsExceeded(0, now, now))
	assert.False(t, s.LimitsExceeded(2, now, now))
	assert.True(t, s.LimitsExceeded(3, now, now))
}

func TestDebouncingSettings_LimitsExceeded_MaxAge(t *testing.T) {
	maxAge := int64(60)
	s := DebouncingSettings{MaxTotalDebouncingTimeS: &maxAge}
	firstStarted := time.Now().Add(-2 * time.Minute)

	assert.True(t, s.LimitsExceeded(0, firstStarted, time.Now()))
	assert.False(t, s.LimitsExceeded(0, time.Now(), time.Now()))
}
