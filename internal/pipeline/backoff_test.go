package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitBackoff_DoublesAndStopsOnCancel(t *testing.T) {
	ctx := context.Background()

	backoff := time.Millisecond
	assert.True(t, waitBackoff(ctx, &backoff))
	assert.Equal(t, 2*time.Millisecond, backoff)

	backoff = maxBackoff - time.Millisecond
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, waitBackoff(ctx, &backoff), "cancelled context stops the wait")
	assert.Equal(t, maxBackoff-time.Millisecond, backoff, "delay unchanged when the wait is cut short")
}
