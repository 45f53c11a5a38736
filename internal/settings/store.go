package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"seller-portal/internal/models"
)

type Store struct {
	Bun *bun.DB
}

// Get returns the stored value for key. A missing row and a cleared value
// both yield nil.
func (s *Store) Get(ctx context.Context, key string) (*string, error) {
	var setting models.AdminSetting
	err := s.Bun.NewSelect().
		Model(&setting).
		Where("? = ?", bun.Ident("key"), key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return setting.Value, nil
}

// Put upserts key with an audit trail of who changed it and when.
func (s *Store) Put(ctx context.Context, key string, value *string, updatedBy string, at time.Time) error {
	setting := &models.AdminSetting{
		Key:       key,
		Value:     value,
		UpdatedBy: updatedBy,
		UpdatedAt: at.UTC(),
	}
	_, err := s.Bun.NewInsert().
		Model(setting).
		On("CONFLICT (?) DO UPDATE", bun.Ident("key")).
		Set("value = EXCLUDED.value").
		Set("updated_by = EXCLUDED.updated_by").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}
