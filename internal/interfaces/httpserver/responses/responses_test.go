package responses

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		reset time.Time
		want  string
	}{
		{name: "whole seconds", reset: now.Add(60 * time.Second), want: "60"},
		{name: "rounds up", reset: now.Add(1500 * time.Millisecond), want: "2"},
		{name: "already elapsed", reset: now.Add(-time.Minute), want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryAfter(tt.reset, now))
		})
	}
}
