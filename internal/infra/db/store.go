package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"meshwatch/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the gorm handle. DB is nil in no-db mode: the server still
// serves /healthz and the crypto tooling works, but the packet and node
// endpoints refuse.
type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode.")
		return &Store{}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql db: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}
