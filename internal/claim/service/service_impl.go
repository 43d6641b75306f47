package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accesscodedomain "github.com/smallbiznis/homeaccess/internal/accesscode/domain"
	"github.com/smallbiznis/homeaccess/internal/claim/domain"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/config"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
	notificationdomain "github.com/smallbiznis/homeaccess/internal/notification/domain"
	"github.com/smallbiznis/homeaccess/internal/observability/metrics"
	"github.com/smallbiznis/homeaccess/internal/observability/tracing"
	"github.com/smallbiznis/homeaccess/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "github.com/smallbiznis/homeaccess/internal/claim"

var (
	errPrimaryTaken = errors.New("primary occupant already set")
	errCodeChanged  = errors.New("join code changed before commit")
)

// invitationRefused carries a redemption refusal out of the grant transaction.
type invitationRefused struct {
	reason accesscodedomain.Rejection
}

func (e invitationRefused) Error() string { return string(e.reason) }

type Params struct {
	fx.In

	DB          *gorm.DB
	Directory   directorydomain.Service
	Memberships membershipdomain.Repository
	Codes       accesscodedomain.Service
	GenID       *snowflake.Node
	Clock       clock.Clock
	Policy      *config.ClaimPolicyHolder
	Config      config.Config
	Log         *zap.Logger

	Limiter   domain.AttemptLimiter        `optional:"true"`
	Publisher notificationdomain.Publisher `optional:"true"`
	Metrics   *metrics.Metrics             `optional:"true"`
}

type service struct {
	db          *gorm.DB
	directory   directorydomain.Service
	memberships membershipdomain.Repository
	codes       accesscodedomain.Service
	genID       *snowflake.Node
	clock       clock.Clock
	log         *zap.Logger
	limiter     domain.AttemptLimiter
	publisher   notificationdomain.Publisher
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	tokens      *continuationSigner
}

func NewService(p Params) domain.Service {
	return &service{
		db:          p.DB,
		directory:   p.Directory,
		memberships: p.Memberships,
		codes:       p.Codes,
		genID:       p.GenID,
		clock:       p.Clock,
		log:         p.Log.Named("claim.service"),
		limiter:     p.Limiter,
		publisher:   p.Publisher,
		metrics:     p.Metrics,
		tracer:      otel.Tracer(tracerName),
		tokens:      newContinuationSigner(p.Config.ContinuationSecret, p.Config.AppName, p.Clock, p.Policy),
	}
}

func (s *service) ClaimUnit(ctx context.Context, req domain.ClaimUnitRequest) (*domain.Outcome, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	ctx, span := s.tracer.Start(ctx, "claim.unit", trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("residence_id", req.ResidenceID.String()),
		attribute.String("unit_id", req.UnitID.String()),
	)...))
	defer span.End()

	var gate attemptGate
	outcome, err := s.claimUnit(ctx, req, &gate)
	if err != nil && db.IsTransientErr(err) {
		s.metrics.RecordGrantRetry(ctx, string(domain.FlowUnit))
		s.log.Warn("unit claim failed transiently, retrying",
			zap.String("unit_id", req.UnitID.String()),
			zap.Error(err),
		)
		outcome, err = s.claimUnit(ctx, req, &gate)
	}
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "claim failed")
		return nil, err
	}

	s.finish(ctx, span, req.UserID, outcome)
	return outcome, nil
}

// attemptGate spends at most one limiter token per submission, however many
// times the attempt is re-run.
type attemptGate struct {
	checked bool
}

// claimUnit runs one attempt of the unit flow. Each attempt starts from the membership
// check, so re-running it after a committed grant reports already_member.
func (s *service) claimUnit(ctx context.Context, req domain.ClaimUnitRequest, gate *attemptGate) (*domain.Outcome, error) {
	member, err := s.hasMembership(ctx, req.UserID, req.ResidenceID)
	if err != nil {
		return nil, err
	}
	if member {
		return domain.AlreadyMember(domain.FlowUnit, req.ResidenceID), nil
	}

	unit, err := s.directory.GetUnit(ctx, req.UnitID)
	if errors.Is(err, directorydomain.ErrNotFound) {
		return domain.Rejected(domain.FlowUnit, domain.ReasonNotFound), nil
	}
	if err != nil {
		return nil, err
	}
	if unit.ResidenceID != req.ResidenceID {
		return domain.Rejected(domain.FlowUnit, domain.ReasonNotFound), nil
	}

	if unit.Vacant() {
		return s.grantPrimary(ctx, req.UserID, *unit)
	}
	if *unit.PrimaryOccupantID == req.UserID {
		return domain.AlreadyMember(domain.FlowUnit, unit.ResidenceID), nil
	}

	if req.Code == "" {
		return domain.CodeRequired(unit.ResidenceID, unit.ID), nil
	}

	if s.limiter != nil && !gate.checked {
		gate.checked = true
		allowed, retryAfter := s.limiter.AllowJoinAttempt(ctx, req.UserID, unit.ID)
		if !allowed {
			outcome := domain.Rejected(domain.FlowUnit, domain.ReasonTooManyAttempts)
			outcome.RetryAfter = retryAfter
			return outcome, nil
		}
	}

	if !s.codes.CheckUnitJoinCode(*unit, req.Code) {
		return domain.Rejected(domain.FlowUnit, domain.ReasonInvalidCode), nil
	}
	return s.grantOccupant(ctx, req.UserID, *unit, req.Code)
}

func (s *service) grantPrimary(ctx context.Context, userID snowflake.ID, unit directorydomain.Unit) (*domain.Outcome, error) {
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.memberships.WithTx(tx)
		won, err := ledger.SetPrimaryOccupant(ctx, unit.ID, userID, now)
		if err != nil {
			return err
		}
		if !won {
			return errPrimaryTaken
		}
		return s.recordGrant(ctx, ledger, userID, unit, membershipdomain.KindPrimary, now)
	})

	switch {
	case err == nil:
		return domain.Granted(domain.FlowUnit, unit.ResidenceID, &unit.ID, membershipdomain.KindPrimary), nil
	case errors.Is(err, errPrimaryTaken):
		// A double submit by the same identity loses the set to its own first request.
		member, mErr := s.hasMembership(ctx, userID, unit.ResidenceID)
		if mErr != nil {
			return nil, mErr
		}
		if member {
			return domain.AlreadyMember(domain.FlowUnit, unit.ResidenceID), nil
		}
		return domain.Rejected(domain.FlowUnit, domain.ReasonUnitNoLongerVacant), nil
	case isDuplicateGrant(err):
		return domain.AlreadyMember(domain.FlowUnit, unit.ResidenceID), nil
	default:
		return nil, err
	}
}

func (s *service) grantOccupant(ctx context.Context, userID snowflake.ID, unit directorydomain.Unit, code string) (*domain.Outcome, error) {
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matched, err := s.codes.ConsumeUnitJoinCode(ctx, tx, unit.ID, code)
		if err != nil {
			return err
		}
		if !matched {
			return errCodeChanged
		}
		return s.recordGrant(ctx, s.memberships.WithTx(tx), userID, unit, membershipdomain.KindOccupant, now)
	})

	switch {
	case err == nil:
		return domain.Granted(domain.FlowUnit, unit.ResidenceID, &unit.ID, membershipdomain.KindOccupant), nil
	case errors.Is(err, errCodeChanged):
		s.log.Info("join code rotated before commit", zap.String("unit_id", unit.ID.String()))
		return domain.Rejected(domain.FlowUnit, domain.ReasonInvalidCode), nil
	case isDuplicateGrant(err):
		return domain.AlreadyMember(domain.FlowUnit, unit.ResidenceID), nil
	default:
		return nil, err
	}
}

func (s *service) recordGrant(ctx context.Context, ledger membershipdomain.Repository, userID snowflake.ID, unit directorydomain.Unit, kind membershipdomain.OccupancyKind, at time.Time) error {
	if err := ledger.RecordMembership(ctx, membershipdomain.Membership{
		ID:          s.genID.Generate(),
		ResidenceID: unit.ResidenceID,
		UserID:      userID,
		Role:        membershipdomain.RoleResident,
		CreatedAt:   at,
	}); err != nil {
		return err
	}
	return ledger.RecordOccupancy(ctx, membershipdomain.Occupancy{
		ID:          s.genID.Generate(),
		UserID:      userID,
		UnitID:      unit.ID,
		ResidenceID: unit.ResidenceID,
		Kind:        kind,
		Active:      true,
		StartedAt:   at,
	})
}

func (s *service) RedeemInvitation(ctx context.Context, req domain.RedeemInvitationRequest) (*domain.Outcome, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	ctx, span := s.tracer.Start(ctx, "claim.invitation")
	defer span.End()

	outcome, err := s.redeemInvitation(ctx, req)
	if err != nil && db.IsTransientErr(err) {
		s.metrics.RecordGrantRetry(ctx, string(domain.FlowInvitation))
		s.log.Warn("invitation redemption failed transiently, retrying", zap.Error(err))
		outcome, err = s.redeemInvitation(ctx, req)
	}
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "redemption failed")
		return nil, err
	}

	s.finish(ctx, span, req.UserID, outcome)
	return outcome, nil
}

type invitationLookup struct {
	invitation *accesscodedomain.Invitation
	rejection  accesscodedomain.Rejection
}

func (s *service) redeemInvitation(ctx context.Context, req domain.RedeemInvitationRequest) (*domain.Outcome, error) {
	found, err := db.RetryRead(ctx, func() (invitationLookup, error) {
		inv, rejection, err := s.codes.LookupInvitation(ctx, req.Code)
		return invitationLookup{invitation: inv, rejection: rejection}, err
	})
	if err != nil {
		return nil, err
	}
	if found.rejection != accesscodedomain.RejectNone {
		return domain.Rejected(domain.FlowInvitation, domain.Reason(found.rejection)), nil
	}
	inv := found.invitation

	member, err := s.hasMembership(ctx, req.UserID, inv.ResidenceID)
	if err != nil {
		return nil, err
	}
	if member {
		return domain.AlreadyMember(domain.FlowInvitation, inv.ResidenceID), nil
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rejection, err := s.codes.RedeemInvitation(ctx, tx, inv.ID)
		if err != nil {
			return err
		}
		if rejection != accesscodedomain.RejectNone {
			return invitationRefused{reason: rejection}
		}
		return s.memberships.WithTx(tx).RecordMembership(ctx, membershipdomain.Membership{
			ID:          s.genID.Generate(),
			ResidenceID: inv.ResidenceID,
			UserID:      req.UserID,
			Role:        membershipdomain.RoleResident,
			CreatedAt:   now,
		})
	})

	var refused invitationRefused
	switch {
	case err == nil:
		return domain.Granted(domain.FlowInvitation, inv.ResidenceID, nil, ""), nil
	case errors.As(err, &refused):
		return domain.Rejected(domain.FlowInvitation, domain.Reason(refused.reason)), nil
	case isDuplicateGrant(err):
		// The rollback also returned the use taken above.
		return domain.AlreadyMember(domain.FlowInvitation, inv.ResidenceID), nil
	default:
		return nil, err
	}
}

func (s *service) hasMembership(ctx context.Context, userID, residenceID snowflake.ID) (bool, error) {
	return db.RetryRead(ctx, func() (bool, error) {
		return s.memberships.HasMembership(ctx, userID, residenceID)
	})
}

// finish records the outcome and, for grants, queues the access notification.
// Notification failures never change the outcome.
func (s *service) finish(ctx context.Context, span trace.Span, userID snowflake.ID, outcome *domain.Outcome) {
	span.SetAttributes(
		attribute.String("claim.status", string(outcome.Status)),
		attribute.String("claim.reason", string(outcome.Reason)),
	)
	s.metrics.RecordClaimOutcome(ctx, string(outcome.Flow), string(outcome.Status), string(outcome.Reason))

	fields := []zap.Field{
		zap.String("flow", string(outcome.Flow)),
		zap.String("status", string(outcome.Status)),
		zap.String("user_id", userID.String()),
	}
	if outcome.ResidenceID != 0 {
		fields = append(fields, zap.String("residence_id", outcome.ResidenceID.String()))
	}
	if outcome.Reason != domain.ReasonNone {
		fields = append(fields, zap.String("reason", string(outcome.Reason)))
	}

	if outcome.Status != domain.StatusGranted {
		s.log.Debug("claim attempt finished", fields...)
		return
	}
	s.log.Info("access granted", fields...)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAccessGranted(ctx, notificationdomain.AccessGranted{
		ResidenceID: outcome.ResidenceID,
		UserID:      userID,
		UnitID:      outcome.UnitID,
		Flow:        string(outcome.Flow),
		Role:        outcome.Role,
		Kind:        string(outcome.Kind),
		GrantedAt:   s.clock.Now(),
	}); err != nil {
		s.log.Warn("failed to queue access notification", append(fields, zap.Error(err))...)
	}
}

func isDuplicateGrant(err error) bool {
	return errors.Is(err, membershipdomain.ErrDuplicateMembership) ||
		errors.Is(err, membershipdomain.ErrDuplicateOccupancy)
}
