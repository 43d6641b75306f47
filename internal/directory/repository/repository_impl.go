package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/directory/domain"
	"github.com/smallbiznis/homeaccess/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) FindResidenceByID(ctx context.Context, id snowflake.ID) (*domain.Residence, error) {
	var residence domain.Residence
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&residence).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &residence, nil
}

func (r *repository) FindResidencesByPrefix(ctx context.Context, prefix string, limit int) ([]domain.Residence, error) {
	var residences []domain.Residence
	tx := r.db.WithContext(ctx)
	err := tx.
		Where(db.TextCast(tx, "id")+" LIKE ?", prefix+"%").
		Order("id ASC").
		Limit(limit).
		Find(&residences).Error
	if err != nil {
		return nil, err
	}
	return residences, nil
}

func (r *repository) FindBuildingByID(ctx context.Context, id snowflake.ID, residenceID *snowflake.ID) (*domain.Building, error) {
	var building domain.Building
	stmt := r.db.WithContext(ctx).Where("id = ?", id)
	if residenceID != nil {
		stmt = stmt.Where("residence_id = ?", *residenceID)
	}
	err := stmt.Take(&building).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &building, nil
}

func (r *repository) FindBuildingsByPrefix(ctx context.Context, prefix string, residenceID *snowflake.ID, limit int) ([]domain.Building, error) {
	var buildings []domain.Building
	tx := r.db.WithContext(ctx)
	stmt := tx.Where(db.TextCast(tx, "id")+" LIKE ?", prefix+"%")
	if residenceID != nil {
		stmt = stmt.Where("residence_id = ?", *residenceID)
	}
	if err := stmt.Order("id ASC").Limit(limit).Find(&buildings).Error; err != nil {
		return nil, err
	}
	return buildings, nil
}

func (r *repository) ListUnits(ctx context.Context, residenceID snowflake.ID, buildingID *snowflake.ID) ([]domain.Unit, error) {
	var units []domain.Unit
	stmt := r.db.WithContext(ctx).Where("residence_id = ?", residenceID)
	if buildingID != nil {
		stmt = stmt.Where("building_id = ?", *buildingID)
	}
	if err := stmt.Order("floor ASC").Order("door_label ASC").Order("id ASC").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repository) GetUnit(ctx context.Context, id snowflake.ID) (*domain.Unit, error) {
	var unit domain.Unit
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Residence{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateResidence(ctx context.Context, residence domain.Residence) error {
	return r.db.WithContext(ctx).Create(&residence).Error
}

func (r *repository) CreateBuilding(ctx context.Context, building domain.Building) error {
	return r.db.WithContext(ctx).Create(&building).Error
}

func (r *repository) CreateUnit(ctx context.Context, unit domain.Unit) error {
	return r.db.WithContext(ctx).Create(&unit).Error
}
