package repository

import (
	"context"
	"errors"

	"github.com/venturegate/auth-service/internal/domain"
	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	FindByAccountID(ctx context.Context, accountID uint) (*domain.Profile, error)
	DeleteByAccountID(ctx context.Context, accountID uint) error
}

type GormProfileRepository struct{ db *gorm.DB }

func NewProfileRepository(db *gorm.DB) ProfileRepository { return &GormProfileRepository{db: db} }

func (r *GormProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *GormProfileRepository) FindByAccountID(ctx context.Context, accountID uint) (*domain.Profile, error) {
	var p domain.Profile
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormProfileRepository) DeleteByAccountID(ctx context.Context, accountID uint) error {
	return r.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&domain.Profile{}).Error
}
