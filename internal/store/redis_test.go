package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthyNilReceiver(t *testing.T) {
	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
	assert.False(t, (&Redis{}).Healthy(context.Background()))
}

func TestHealthyUnreachable(t *testing.T) {
	r := NewRedis("127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.False(t, r.Healthy(ctx))
}
