package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/membership/domain"
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

func (r *repository) HasMembership(ctx context.Context, userID, residenceID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("residence_id = ? AND user_id = ?", residenceID, userID).
		Where("role IN ?", []string{domain.RoleResident, domain.RoleManager}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) RoleFor(ctx context.Context, residenceID, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := r.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM residence_members
		 WHERE residence_id = ? AND user_id = ?
		 LIMIT 1`,
		residenceID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}
	return strings.TrimSpace(row.Role), nil
}

func (r *repository) RecordMembership(ctx context.Context, membership domain.Membership) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO residence_members (id, residence_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		membership.ID,
		membership.ResidenceID,
		membership.UserID,
		membership.Role,
		membership.CreatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateMembership
	}
	return err
}

func (r *repository) RecordOccupancy(ctx context.Context, occupancy domain.Occupancy) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO unit_occupancies (id, user_id, unit_id, residence_id, kind, active, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		occupancy.ID,
		occupancy.UserID,
		occupancy.UnitID,
		occupancy.ResidenceID,
		string(occupancy.Kind),
		true,
		occupancy.StartedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateOccupancy
	}
	return err
}

func (r *repository) SetPrimaryOccupant(ctx context.Context, unitID, userID snowflake.ID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE units
		 SET primary_occupant_id = ?, last_joined_at = ?, updated_at = ?
		 WHERE id = ? AND primary_occupant_id IS NULL`,
		userID,
		at,
		at,
		unitID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListMemberships(ctx context.Context, userID snowflake.ID) ([]domain.MembershipView, error) {
	var items []domain.MembershipView
	err := r.db.WithContext(ctx).Raw(
		`SELECT r.id AS residence_id, r.name AS residence_name, r.slug AS residence_slug, m.role, m.created_at
		 FROM residence_members m
		 JOIN residences r ON r.id = m.residence_id
		 WHERE m.user_id = ?
		 ORDER BY m.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListOccupancies(ctx context.Context, userID snowflake.ID) ([]domain.OccupancyView, error) {
	var items []domain.OccupancyView
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.unit_id, o.residence_id, u.door_label, u.floor, o.kind, o.started_at
		 FROM unit_occupancies o
		 JOIN units u ON u.id = o.unit_id
		 WHERE o.user_id = ? AND o.active = ?
		 ORDER BY o.started_at ASC`,
		userID,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
