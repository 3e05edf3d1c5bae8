package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllow(t *testing.T) {
	bucket := NewTokenBucket(3, 0.001)

	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow(), "bucket should be exhausted")
}

func TestTokenBucketAllowN(t *testing.T) {
	bucket := NewTokenBucket(10, 0.001)

	assert.True(t, bucket.AllowN(7))
	assert.False(t, bucket.AllowN(5))
	assert.True(t, bucket.AllowN(3))
}

func TestTokenBucketRefill(t *testing.T) {
	// 100 tokens/sec refills a drained 1-token bucket almost immediately
	bucket := NewTokenBucket(1, 100)

	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, bucket.Allow())
}

func TestTokenBucketReset(t *testing.T) {
	bucket := NewTokenBucket(2, 0.001)

	assert.True(t, bucket.AllowN(2))
	assert.False(t, bucket.Allow())

	bucket.Reset()
	assert.True(t, bucket.AllowN(2))
}

func TestTokenBucketAccessors(t *testing.T) {
	bucket := NewTokenBucket(10, 2.5)

	assert.Equal(t, 10.0, bucket.MaxTokens())
	assert.Equal(t, 2.5, bucket.RefillRate())
	assert.InDelta(t, 10.0, bucket.Available(), 0.1)
}
