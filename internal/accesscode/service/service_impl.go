package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/accesscode/domain"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/config"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
	"github.com/smallbiznis/homeaccess/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxGenerateAttempts = 5

type Params struct {
	fx.In

	Repo      domain.Repository
	GenID     *snowflake.Node
	Clock     clock.Clock
	Policy    *config.ClaimPolicyHolder
	Generator domain.CodeGenerator
	Log       *zap.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

type service struct {
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	policy    *config.ClaimPolicyHolder
	generator domain.CodeGenerator
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		generator: p.Generator,
		log:       p.Log.Named("accesscode.service"),
		metrics:   p.Metrics,
	}
}

func (s *service) CheckUnitJoinCode(unit directorydomain.Unit, supplied string) bool {
	if !unit.HasJoinCode() {
		return false
	}
	supplied = domain.NormalizeCode(supplied)
	if supplied == "" {
		return false
	}
	stored := domain.NormalizeCode(*unit.JoinCode)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

func (s *service) RotateUnitJoinCode(ctx context.Context, unitID snowflake.ID) (string, error) {
	policy := s.policy.Get()
	code, err := s.generator.Generate(policy.JoinCodeAlphabet, policy.JoinCodeLength)
	if err != nil {
		return "", err
	}
	code = domain.NormalizeCode(code)

	ok, err := s.repo.SetUnitJoinCode(ctx, unitID, code, s.clock.Now())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrUnitNotFound
	}

	s.metrics.RecordJoinCodeRotation(ctx)
	s.log.Info("unit join code rotated", zap.String("unit_id", unitID.String()))
	return code, nil
}

func (s *service) ConsumeUnitJoinCode(ctx context.Context, tx *gorm.DB, unitID snowflake.ID, supplied string) (bool, error) {
	code := domain.NormalizeCode(supplied)
	if code == "" {
		return false, nil
	}
	return s.repo.WithTx(tx).MatchUnitJoinCode(ctx, unitID, code, s.clock.Now())
}

func (s *service) LookupInvitation(ctx context.Context, code string) (*domain.Invitation, domain.Rejection, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, domain.RejectNotFound, nil
	}
	inv, err := s.repo.FindInvitationByCode(ctx, code)
	if err != nil {
		return nil, domain.RejectNone, err
	}
	if inv == nil {
		return nil, domain.RejectNotFound, nil
	}
	return inv, domain.Evaluate(inv, s.clock.Now()), nil
}

func (s *service) RedeemInvitation(ctx context.Context, tx *gorm.DB, invitationID snowflake.ID) (domain.Rejection, error) {
	repo := s.repo.WithTx(tx)
	now := s.clock.Now()

	ok, err := repo.IncrementInvitationUse(ctx, invitationID, now)
	if err != nil {
		return domain.RejectNone, err
	}
	if ok {
		return domain.RejectNone, nil
	}

	// Nothing was written; find out which guard refused.
	current, err := repo.FindInvitationByID(ctx, invitationID)
	if err != nil {
		return domain.RejectNone, err
	}
	reason := domain.Evaluate(current, now)
	if reason == domain.RejectNone {
		// The row became usable again between the update and the read.
		reason = domain.RejectExhausted
	}
	return reason, nil
}

func (s *service) CreateInvitation(ctx context.Context, userID, residenceID snowflake.ID, req domain.CreateInvitationRequest) (*domain.Invitation, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if req.MaxUses != nil && *req.MaxUses <= 0 {
		return nil, domain.ErrInvalidMaxUses
	}
	now := s.clock.Now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, domain.ErrInvalidExpiry
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		utc := req.ExpiresAt.UTC()
		expiresAt = &utc
	}

	supplied := domain.NormalizeCode(req.Code)
	if supplied != "" && !validInvitationCode(supplied) {
		return nil, domain.ErrInvalidCode
	}

	attempts := 1
	if supplied == "" {
		attempts = maxGenerateAttempts
	}

	for i := 0; i < attempts; i++ {
		code := supplied
		if code == "" {
			policy := s.policy.Get()
			generated, err := s.generator.Generate(policy.JoinCodeAlphabet, policy.InvitationCodeLength)
			if err != nil {
				return nil, err
			}
			code = domain.NormalizeCode(generated)
		}

		inv := domain.Invitation{
			ID:          s.genID.Generate(),
			ResidenceID: residenceID,
			Code:        code,
			Active:      true,
			ExpiresAt:   expiresAt,
			MaxUses:     req.MaxUses,
			CreatedBy:   userID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err := s.repo.CreateInvitation(ctx, inv)
		if errors.Is(err, domain.ErrDuplicateCode) && supplied == "" {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &inv, nil
	}
	return nil, domain.ErrDuplicateCode
}

func (s *service) GetInvitation(ctx context.Context, invitationID snowflake.ID) (*domain.Invitation, error) {
	inv, err := s.repo.FindInvitationByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrInvitationNotFound
	}
	return inv, nil
}

func (s *service) DeactivateInvitation(ctx context.Context, invitationID snowflake.ID) (*domain.Invitation, error) {
	ok, err := s.repo.DeactivateInvitation(ctx, invitationID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	return s.GetInvitation(ctx, invitationID)
}

func (s *service) ListInvitations(ctx context.Context, residenceID snowflake.ID) ([]domain.Invitation, error) {
	return s.repo.ListInvitations(ctx, residenceID)
}

func validInvitationCode(code string) bool {
	if len(code) < 6 || len(code) > 64 {
		return false
	}
	for _, r := range code {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
