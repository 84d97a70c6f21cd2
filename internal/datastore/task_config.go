package datastore

import (
	"context"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/model"
)

// GetTaskConfig returns the pricing for a content type. Rows are cached for
// a few minutes since pricing is owned and changed elsewhere.
func (ds *DataStore) GetTaskConfig(ctx context.Context, contentType model.ContentType) (*model.TaskConfig, error) {
	key := string(contentType)
	if cached, ok := ds.configCache.Get(key); ok {
		cfg := cached.(model.TaskConfig)
		return &cfg, nil
	}

	var cfg model.TaskConfig
	if err := ds.db(ctx).First(&cfg, "content_type = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("task_config", key)
		}
		return nil, dbError(err, "get_task_config", "", "content_type", key)
	}

	ds.configCache.Set(key, cfg, cache.DefaultExpiration)
	return &cfg, nil
}

// PutTaskConfig inserts or replaces the pricing for a content type.
func (ds *DataStore) PutTaskConfig(ctx context.Context, cfg *model.TaskConfig) error {
	if !cfg.ContentType.Valid() {
		return validationError("unknown content type", "content_type", cfg.ContentType)
	}
	err := ds.db(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_type"}},
		UpdateAll: true,
	}).Create(cfg).Error
	if err != nil {
		return dbError(err, "put_task_config", "", "content_type", cfg.ContentType)
	}
	ds.configCache.Delete(string(cfg.ContentType))
	return nil
}
