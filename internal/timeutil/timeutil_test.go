package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"  ", time.Minute},
		{"2m", 2 * time.Minute},
		{"soon", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDurationOrDefault(tt.value, time.Minute), tt.value)
	}
}

func TestOrDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3*time.Second, OrDefault(3*time.Second, time.Minute))
	assert.Equal(t, time.Minute, OrDefault(0, time.Minute))
	assert.Equal(t, time.Minute, OrDefault(-time.Second, time.Minute))
}
