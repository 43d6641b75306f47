package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/accesscode/domain"
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

func (r *repository) FindInvitationByCode(ctx context.Context, code string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).Where("code = ?", code).Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) FindInvitationByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) ListInvitations(ctx context.Context, residenceID snowflake.ID) ([]domain.Invitation, error) {
	var items []domain.Invitation
	err := r.db.WithContext(ctx).
		Where("residence_id = ?", residenceID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreateInvitation(ctx context.Context, inv domain.Invitation) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO invitation_codes (id, residence_id, code, active, expires_at, max_uses, uses, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		inv.ID,
		inv.ResidenceID,
		inv.Code,
		true,
		inv.ExpiresAt,
		inv.MaxUses,
		inv.CreatedBy,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateCode
	}
	return err
}

func (r *repository) DeactivateInvitation(ctx context.Context, id snowflake.ID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invitation_codes SET active = ?, updated_at = ? WHERE id = ?`,
		false,
		at,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementInvitationUse(ctx context.Context, id snowflake.ID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invitation_codes
		 SET uses = uses + 1, updated_at = ?
		 WHERE id = ?
		   AND active = ?
		   AND (expires_at IS NULL OR expires_at >= ?)
		   AND (max_uses IS NULL OR uses < max_uses)`,
		at,
		id,
		true,
		at,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetUnitJoinCode(ctx context.Context, unitID snowflake.ID, code string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE units SET join_code = ?, updated_at = ? WHERE id = ?`,
		code,
		at,
		unitID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MatchUnitJoinCode(ctx context.Context, unitID snowflake.ID, code string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE units
		 SET last_joined_at = ?
		 WHERE id = ?
		   AND primary_occupant_id IS NOT NULL
		   AND join_code = ?`,
		at,
		unitID,
		code,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
