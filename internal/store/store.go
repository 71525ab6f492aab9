package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/realweather/forecast-service/internal/models"
	"github.com/realweather/forecast-service/internal/observability"
)

// ReadingStore is the warehouse contract: append-only writes from the pusher,
// recent-rows reads for the trainer and the data endpoint.
type ReadingStore interface {
	Append(ctx context.Context, r models.Reading) error
	Recent(ctx context.Context, limit int) ([]models.Reading, error)
}

// WarehouseStore implements ReadingStore on a gorm-managed SQLite database.
// The table name is configurable so one database can hold multiple streams.
type WarehouseStore struct {
	db    *gorm.DB
	table string
}

// Open connects to the warehouse and migrates the readings table.
func Open(dsn, table string) (*WarehouseStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("warehouse dsn is required")
	}
	if table == "" {
		table = "readings"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open warehouse %s: %w", dsn, err)
	}

	if err := db.Table(table).AutoMigrate(&models.Reading{}); err != nil {
		return nil, fmt.Errorf("migrate table %s: %w", table, err)
	}

	return &WarehouseStore{db: db, table: table}, nil
}

// Append inserts one reading. The table is never updated or deleted from.
func (s *WarehouseStore) Append(ctx context.Context, r models.Reading) error {
	start := time.Now()
	err := s.db.WithContext(ctx).Table(s.table).Create(&r).Error
	observability.WarehouseQueryDuration.WithLabelValues("append").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.WarehouseQueriesTotal.WithLabelValues("append", "error").Inc()
		return fmt.Errorf("append reading: %w", err)
	}
	observability.WarehouseQueriesTotal.WithLabelValues("append", "success").Inc()
	return nil
}

// Recent returns the most recent limit readings ordered by ascending timestamp,
// the order the feature engineering expects.
func (s *WarehouseStore) Recent(ctx context.Context, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	start := time.Now()
	var rows []models.Reading
	err := s.db.WithContext(ctx).Table(s.table).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	observability.WarehouseQueryDuration.WithLabelValues("recent").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.WarehouseQueriesTotal.WithLabelValues("recent", "error").Inc()
		return nil, fmt.Errorf("load recent readings: %w", err)
	}
	observability.WarehouseQueriesTotal.WithLabelValues("recent", "success").Inc()

	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	return rows, nil
}

// Ping checks warehouse reachability. Used by the health endpoint.
func (s *WarehouseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("warehouse handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying database connections. Call during shutdown.
func (s *WarehouseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("warehouse handle: %w", err)
	}
	return sqlDB.Close()
}
