package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ApollonSMK/MEXperience-sub003/internal/domain"
)

type CatalogRepo struct{ db *gorm.DB }

func NewCatalogRepo(db *gorm.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) ServiceByID(ctx context.Context, id string) (*domain.Service, error) {
	var s domain.Service
	if err := r.db.WithContext(ctx).First(&s, "id = ? OR slug = ?", id, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *CatalogRepo) ListServices(ctx context.Context) ([]domain.Service, error) {
	var out []domain.Service
	err := r.db.WithContext(ctx).Where("maintenance = ?", false).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *CatalogRepo) PlanByID(ctx context.Context, id string) (*domain.Plan, error) {
	var p domain.Plan
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepo) MinutePackByID(ctx context.Context, id string) (*domain.MinutePack, error) {
	var p domain.MinutePack
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
