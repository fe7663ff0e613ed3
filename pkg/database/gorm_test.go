package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolFromConfig(t *testing.T) {
	t.Run("Unset fields use defaults", func(t *testing.T) {
		assert.Equal(t, DefaultPoolConfig(), PoolFromConfig(0, 0, 0, 0))
	})

	t.Run("Set fields win", func(t *testing.T) {
		pool := PoolFromConfig(2, 8, time.Minute, time.Second)
		assert.Equal(t, PoolConfig{MaxIdleConns: 2, MaxOpenConns: 8, ConnMaxLifetime: time.Minute, SlowQuery: time.Second}, pool)
	})
}
