package audit

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Config holds audit cleaner configuration
type Config struct {
	CleanInterval time.Duration
	KeepDuration  time.Duration
}

// Cleaner periodically deletes old audit entries
type Cleaner struct {
	db     *gorm.DB
	config Config
	logger *slog.Logger
}

// NewCleaner creates a new audit cleaner
func NewCleaner(db *gorm.DB, config Config, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Start begins the periodic cleanup process
func (c *Cleaner) Start(ctx context.Context) error {
	c.logger.Info("starting audit cleaner",
		"clean_interval", c.config.CleanInterval,
		"keep_duration", c.config.KeepDuration,
	)

	// Perform initial cleanup
	if err := c.clean(ctx); err != nil {
		c.logger.Error("initial audit cleanup failed", "error", err)
	}

	ticker := time.NewTicker(c.config.CleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping audit cleaner")
			return ctx.Err()
		case <-ticker.C:
			if err := c.clean(ctx); err != nil {
				c.logger.Error("audit cleanup failed", "error", err)
			}
		}
	}
}

// clean removes entries older than KeepDuration
func (c *Cleaner) clean(ctx context.Context) error {
	c.logger.Debug("running audit cleanup")

	cutoff := time.Now().Add(-c.config.KeepDuration)

	result := c.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&Entry{})

	if result.Error != nil {
		return result.Error
	}

	c.logger.Info("audit cleanup completed",
		"deleted", result.RowsAffected,
		"cutoff", cutoff,
	)

	return nil
}

// CleanOnce performs a single cleanup operation
func (c *Cleaner) CleanOnce(ctx context.Context) error {
	return c.clean(ctx)
}
