package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewForecastWorkerClampsConfig(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		perMinute   int
	}{
		{"zero values", 0, 0},
		{"negative values", -3, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewForecastWorker(nil, nil, nil, tt.concurrency, tt.perMinute)
			require.NotNil(t, w.limiter)
			assert.Equal(t, 1, w.concurrency)
			assert.Equal(t, rate.Every(time.Minute), w.limiter.Limit())
		})
	}
}

func TestNewForecastWorkerKeepsValidConfig(t *testing.T) {
	w := NewForecastWorker(nil, nil, nil, 4, 30)
	assert.Equal(t, 4, w.concurrency)
	assert.Equal(t, rate.Every(time.Minute/30), w.limiter.Limit())
}
