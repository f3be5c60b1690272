package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Parthmh361/pure-harvest/internal/models"
)

// GormUserStore reads users from a relational database.
type GormUserStore struct {
	db *gorm.DB
}

// NewGormUserStore constructs a GormUserStore.
func NewGormUserStore(db *gorm.DB) (*GormUserStore, error) {
	if db == nil {
		return nil, errors.New("user store: db is required")
	}
	return &GormUserStore{db: db}, nil
}

func (s *GormUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ensureContext(ctx)).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user store: find by id: %w", err)
	}
	return &user, nil
}

func (s *GormUserStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.User{}).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("user store: list active: %w", err)
	}
	return ids, nil
}
