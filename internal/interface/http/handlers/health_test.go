package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("test").Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "test", status.Version)
}

func TestCompositeHealthChecker_AllPass(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("store", NewPingCheck(pingerFunc(func(context.Context) error { return nil })))
	c.AddOptionalCheck("redis", func(context.Context) error { return nil })

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.False(t, status.Degraded)
	assert.Equal(t, "All checks passed", status.Message)
	require.Len(t, status.Checks, 2)
	assert.True(t, status.Checks["store"].Critical)
	assert.False(t, status.Checks["redis"].Critical)
}

func TestCompositeHealthChecker_CriticalFailure(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("store", func(context.Context) error { return errors.New("connection refused") })
	c.AddOptionalCheck("redis", func(context.Context) error { return nil })

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: store", status.Message)
	assert.Equal(t, "connection refused", status.Checks["store"].Message)
}

func TestCompositeHealthChecker_OptionalFailureDegrades(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("store", func(context.Context) error { return nil })
	c.AddOptionalCheck("redis", func(context.Context) error { return errors.New("timeout") })

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.True(t, status.Degraded)
	assert.Equal(t, "Degraded: redis", status.Message)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline exceeded")
}

func TestCompositeHealthChecker_RemoveCheck(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("store", func(context.Context) error { return errors.New("down") })
	c.RemoveCheck("store")

	assert.True(t, c.Check(context.Background()).Healthy)
}
