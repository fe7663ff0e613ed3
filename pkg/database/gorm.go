package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig sizes the connection pool and the slow query log.
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: time.Hour,
		SlowQuery:       500 * time.Millisecond,
	}
}

// Agent turns issue many small reads; only slow statements and failures are logged.
func newLogger(slow time.Duration) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
}

// NewGormDBFromDSN opens the postgres store. TranslateError maps driver
// errors to gorm sentinels such as gorm.ErrDuplicatedKey.
func NewGormDBFromDSN(dsn string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newLogger(pool.SlowQuery),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return db, nil
}

// PoolFromConfig fills unset fields from DefaultPoolConfig.
func PoolFromConfig(maxIdle, maxOpen int, lifetime, slow time.Duration) PoolConfig {
	pool := DefaultPoolConfig()
	if maxIdle > 0 {
		pool.MaxIdleConns = maxIdle
	}
	if maxOpen > 0 {
		pool.MaxOpenConns = maxOpen
	}
	if lifetime > 0 {
		pool.ConnMaxLifetime = lifetime
	}
	if slow > 0 {
		pool.SlowQuery = slow
	}
	return pool
}
