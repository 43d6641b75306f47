package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	accesscodedomain "github.com/smallbiznis/homeaccess/internal/accesscode/domain"
	accesscoderepo "github.com/smallbiznis/homeaccess/internal/accesscode/repository"
	accesscodeservice "github.com/smallbiznis/homeaccess/internal/accesscode/service"
	"github.com/smallbiznis/homeaccess/internal/claim/domain"
	"github.com/smallbiznis/homeaccess/internal/claim/mocks"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/config"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/homeaccess/internal/directory/repository"
	directoryservice "github.com/smallbiznis/homeaccess/internal/directory/service"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
	membershiprepo "github.com/smallbiznis/homeaccess/internal/membership/repository"
	notificationdomain "github.com/smallbiznis/homeaccess/internal/notification/domain"
	"github.com/smallbiznis/homeaccess/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixedGenerator struct{ code string }

func (g fixedGenerator) Generate(string, int) (string, error) { return g.code, nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []notificationdomain.AccessGranted
	err    error
}

func (p *recordingPublisher) PublishAccessGranted(_ context.Context, evt notificationdomain.AccessGranted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

// staleDirectory serves a unit snapshot taken before a concurrent write.
type staleDirectory struct {
	directorydomain.Service
	unit directorydomain.Unit
}

func (d staleDirectory) GetUnit(context.Context, snowflake.ID) (*directorydomain.Unit, error) {
	unit := d.unit
	return &unit, nil
}

// flakyLedger fails selected ledger writes to exercise rollback and retry.
type flakyLedger struct {
	membershipdomain.Repository
	membershipFailures *int32
	occupancyErr       error
}

func (l flakyLedger) WithTx(tx *gorm.DB) membershipdomain.Repository {
	return flakyLedger{
		Repository:         l.Repository.WithTx(tx),
		membershipFailures: l.membershipFailures,
		occupancyErr:       l.occupancyErr,
	}
}

func (l flakyLedger) RecordMembership(ctx context.Context, m membershipdomain.Membership) error {
	if l.membershipFailures != nil && atomic.AddInt32(l.membershipFailures, -1) >= 0 {
		return fmt.Errorf("insert membership: %w", driver.ErrBadConn)
	}
	return l.Repository.RecordMembership(ctx, m)
}

func (l flakyLedger) RecordOccupancy(ctx context.Context, o membershipdomain.Occupancy) error {
	if l.occupancyErr != nil {
		return l.occupancyErr
	}
	return l.Repository.RecordOccupancy(ctx, o)
}

type harness struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	directory directorydomain.Service
	ledger    membershipdomain.Repository
	codes     accesscodedomain.Service
	publisher *recordingPublisher
	params    Params
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := storetest.Open(t)
	node := storetest.Node(t)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	policy := config.NewStaticClaimPolicyHolder(config.DefaultClaimPolicy())
	ledger := membershiprepo.NewRepository(conn)

	directory := directoryservice.NewService(directoryservice.Params{
		DB:          conn,
		Repo:        directoryrepo.NewRepository(conn),
		Memberships: ledger,
		GenID:       node,
		Clock:       fake,
		Log:         zap.NewNop(),
	})
	codes := accesscodeservice.NewService(accesscodeservice.Params{
		Repo:      accesscoderepo.NewRepository(conn),
		GenID:     node,
		Clock:     fake,
		Policy:    policy,
		Generator: fixedGenerator{code: "XJ92KQ"},
		Log:       zap.NewNop(),
	})
	publisher := &recordingPublisher{}

	h := &harness{
		db:        conn,
		node:      node,
		clock:     fake,
		directory: directory,
		ledger:    ledger,
		codes:     codes,
		publisher: publisher,
	}
	h.params = Params{
		DB:          conn,
		Directory:   directory,
		Memberships: ledger,
		Codes:       codes,
		GenID:       node,
		Clock:       fake,
		Policy:      policy,
		Config:      config.Config{AppName: "homeaccess", ContinuationSecret: "continuation-test-secret"},
		Log:         zap.NewNop(),
		Publisher:   publisher,
	}
	return h
}

func (h *harness) service() domain.Service {
	return NewService(h.params)
}

func (h *harness) residence(t *testing.T, name string) snowflake.ID {
	t.Helper()
	res, err := h.directory.CreateResidence(context.Background(), h.node.Generate(), directorydomain.CreateResidenceRequest{Name: name})
	require.NoError(t, err)
	return res.ID
}

func (h *harness) unit(t *testing.T, residenceID snowflake.ID, label string) directorydomain.Unit {
	t.Helper()
	unit, err := h.directory.CreateUnit(context.Background(), residenceID, directorydomain.CreateUnitRequest{DoorLabel: label, Floor: 1})
	require.NoError(t, err)
	return *unit
}

func (h *harness) invitation(t *testing.T, residenceID snowflake.ID, code string, maxUses *int) accesscodedomain.Invitation {
	t.Helper()
	inv, err := h.codes.CreateInvitation(context.Background(), 1, residenceID, accesscodedomain.CreateInvitationRequest{Code: code, MaxUses: maxUses})
	require.NoError(t, err)
	return *inv
}

func (h *harness) loadUnit(t *testing.T, id snowflake.ID) directorydomain.Unit {
	t.Helper()
	unit, err := h.directory.GetUnit(context.Background(), id)
	require.NoError(t, err)
	return *unit
}

func (h *harness) memberships(t *testing.T, userID, residenceID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&membershipdomain.Membership{}).
		Where("user_id = ? AND residence_id = ?", userID, residenceID).
		Count(&count).Error)
	return count
}

func (h *harness) occupancies(t *testing.T, unitID snowflake.ID, kind membershipdomain.OccupancyKind) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&membershipdomain.Occupancy{}).
		Where("unit_id = ? AND kind = ? AND active = ?", unitID, kind, true).
		Count(&count).Error)
	return count
}

func (h *harness) uses(t *testing.T, invitationID snowflake.ID) int {
	t.Helper()
	inv, err := h.codes.GetInvitation(context.Background(), invitationID)
	require.NoError(t, err)
	return inv.Uses
}

func TestUnitClaimScenario(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	r1 := h.residence(t, "R1")
	u1 := h.unit(t, r1, "U1")
	a, b := snowflake.ID(1001), snowflake.ID(1002)

	outcome, err := svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: a, ResidenceID: r1, UnitID: u1.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGranted, outcome.Status)
	assert.Equal(t, membershipdomain.KindPrimary, outcome.Kind)
	assert.Equal(t, membershipdomain.RoleResident, outcome.Role)
	require.NotNil(t, h.loadUnit(t, u1.ID).PrimaryOccupantID)
	assert.Equal(t, a, *h.loadUnit(t, u1.ID).PrimaryOccupantID)

	outcome, err = svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: b, ResidenceID: r1, UnitID: u1.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCodeRequired, outcome.Status)
	require.NotNil(t, outcome.UnitID)
	assert.Equal(t, u1.ID, *outcome.UnitID)

	outcome, err = svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: b, ResidenceID: r1, UnitID: u1.ID, Code: "WRONG1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, outcome.Status)
	assert.Equal(t, domain.ReasonInvalidCode, outcome.Reason)
	assert.Zero(t, h.memberships(t, b, r1))

	code, err := h.codes.RotateUnitJoinCode(ctx, u1.ID)
	require.NoError(t, err)
	require.Equal(t, "XJ92KQ", code)

	outcome, err = svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: b, ResidenceID: r1, UnitID: u1.ID, Code: "xj92kq"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGranted, outcome.Status)
	assert.Equal(t, membershipdomain.KindOccupant, outcome.Kind)

	assert.Equal(t, int64(1), h.occupancies(t, u1.ID, membershipdomain.KindPrimary))
	assert.Equal(t, int64(1), h.occupancies(t, u1.ID, membershipdomain.KindOccupant))
	assert.Equal(t, a, *h.loadUnit(t, u1.ID).PrimaryOccupantID)

	require.Len(t, h.publisher.events, 2)
	assert.Equal(t, a, h.publisher.events[0].UserID)
	assert.Equal(t, "primary", h.publisher.events[0].Kind)
	assert.Equal(t, b, h.publisher.events[1].UserID)
	assert.Equal(t, "occupant", h.publisher.events[1].Kind)
}

func TestClaimUnitIsIdempotent(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	r := h.residence(t, "Idem")
	u := h.unit(t, r, "1A")
	user := snowflake.ID(2001)
	req := domain.ClaimUnitRequest{UserID: user, ResidenceID: r, UnitID: u.ID}

	first, err := svc.ClaimUnit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGranted, first.Status)

	for i := 0; i < 2; i++ {
		again, err := svc.ClaimUnit(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAlreadyMember, again.Status)
		assert.True(t, again.Success())
	}

	assert.Equal(t, int64(1), h.memberships(t, user, r))
	assert.Equal(t, int64(1), h.occupancies(t, u.ID, membershipdomain.KindPrimary))
	assert.Len(t, h.publisher.events, 1)
}

func TestExistingMemberShortCircuitsBeforeUnitLookup(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	r := h.residence(t, "Member")
	u := h.unit(t, r, "1A")
	manager := snowflake.ID(3001)
	require.NoError(t, h.ledger.RecordMembership(ctx, membershipdomain.Membership{
		ID: h.node.Generate(), ResidenceID: r, UserID: manager, Role: membershipdomain.RoleManager, CreatedAt: h.clock.Now(),
	}))

	outcome, err := svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: manager, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAlreadyMember, outcome.Status)
	assert.True(t, h.loadUnit(t, u.ID).Vacant())
}

func TestClaimUnitNotFound(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	r1 := h.residence(t, "One")
	r2 := h.residence(t, "Two")
	foreign := h.unit(t, r2, "9Z")

	outcome, err := svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: 1, ResidenceID: r1, UnitID: foreign.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, outcome.Status)
	assert.Equal(t, domain.ReasonNotFound, outcome.Reason)
	assert.True(t, h.loadUnit(t, foreign.ID).Vacant())

	outcome, err = svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: 1, ResidenceID: r1, UnitID: 404})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNotFound, outcome.Reason)

	_, err = svc.ClaimUnit(ctx, domain.ClaimUnitRequest{ResidenceID: r1, UnitID: foreign.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestLostPrimaryRaceIsRejectedNotDowngraded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.residence(t, "Race")
	u := h.unit(t, r, "2B")
	snapshot := h.loadUnit(t, u.ID)

	winner, loser := snowflake.ID(4001), snowflake.ID(4002)
	outcome, err := h.service().ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: winner, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	require.Equal(t, domain.StatusGranted, outcome.Status)
	_, err = h.codes.RotateUnitJoinCode(ctx, u.ID)
	require.NoError(t, err)

	// The loser still sees the unit as vacant, even supplying the valid code.
	h.params.Directory = staleDirectory{Service: h.directory, unit: snapshot}
	outcome, err = h.service().ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: loser, ResidenceID: r, UnitID: u.ID, Code: "XJ92KQ"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, outcome.Status)
	assert.Equal(t, domain.ReasonUnitNoLongerVacant, outcome.Reason)

	assert.Zero(t, h.memberships(t, loser, r))
	assert.Equal(t, winner, *h.loadUnit(t, u.ID).PrimaryOccupantID)

	// The winner's own stale double submit is already a member.
	outcome, err = h.service().ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: winner, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAlreadyMember, outcome.Status)
}

func TestConcurrentPrimaryClaimsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	r := h.residence(t, "Rush")
	u := h.unit(t, r, "3C")

	const claimants = 8
	outcomes := make([]*domain.Outcome, claimants)
	errs := make([]error, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.ClaimUnit(context.Background(), domain.ClaimUnitRequest{
				UserID:      snowflake.ID(5000 + i),
				ResidenceID: r,
				UnitID:      u.ID,
			})
		}(i)
	}
	wg.Wait()

	granted := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		switch outcomes[i].Status {
		case domain.StatusGranted:
			granted++
		case domain.StatusRejected:
			assert.Equal(t, domain.ReasonUnitNoLongerVacant, outcomes[i].Reason)
		default:
			// Claimants that read the unit after the winner committed are asked for a code.
			assert.Equal(t, domain.StatusCodeRequired, outcomes[i].Status)
		}
	}
	assert.Equal(t, 1, granted)
	assert.Equal(t, int64(1), h.occupancies(t, u.ID, membershipdomain.KindPrimary))

	var members int64
	require.NoError(t, h.db.Model(&membershipdomain.Membership{}).Where("residence_id = ? AND role = ?", r, membershipdomain.RoleResident).Count(&members).Error)
	assert.Equal(t, int64(1), members)
}

func TestConcurrentDoubleSubmitCreatesOneMembership(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	r := h.residence(t, "Double")
	u := h.unit(t, r, "4D")
	user := snowflake.ID(6001)

	const attempts = 6
	statuses := make([]domain.Status, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := svc.ClaimUnit(context.Background(), domain.ClaimUnitRequest{UserID: user, ResidenceID: r, UnitID: u.ID})
			if assert.NoError(t, err) {
				statuses[i] = outcome.Status
			}
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, status := range statuses {
		if status == domain.StatusGranted {
			granted++
			continue
		}
		assert.Equal(t, domain.StatusAlreadyMember, status)
	}
	assert.Equal(t, 1, granted)
	assert.Equal(t, int64(1), h.memberships(t, user, r))
	assert.Equal(t, int64(1), h.occupancies(t, u.ID, membershipdomain.KindPrimary))
}

func TestJoinCodeRotatedBeforeCommitIsInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.residence(t, "Rotate")
	u := h.unit(t, r, "5E")
	_, err := h.service().ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: 7001, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	_, err = h.codes.RotateUnitJoinCode(ctx, u.ID)
	require.NoError(t, err)
	snapshot := h.loadUnit(t, u.ID)

	// Manager rotates again after the dependent's code was checked.
	require.NoError(t, h.db.Model(&directorydomain.Unit{}).Where("id = ?", u.ID).Update("join_code", "NEWCODE9").Error)

	h.params.Directory = staleDirectory{Service: h.directory, unit: snapshot}
	outcome, err := h.service().ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: 7002, ResidenceID: r, UnitID: u.ID, Code: "XJ92KQ"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, outcome.Status)
	assert.Equal(t, domain.ReasonInvalidCode, outcome.Reason)
	assert.Zero(t, h.memberships(t, 7002, r))
	assert.Zero(t, h.occupancies(t, u.ID, membershipdomain.KindOccupant))
}

func TestAttemptLimiterGuardsJoinCodes(t *testing.T) {
	h := newHarness(t)
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockAttemptLimiter(ctrl)
	h.params.Limiter = limiter
	svc := h.service()
	ctx := context.Background()

	r := h.residence(t, "Limited")
	u := h.unit(t, r, "6F")
	owner, guesser := snowflake.ID(8001), snowflake.ID(8002)

	// Vacant claims and code prompts never consult the limiter.
	_, err := svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: owner, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	_, err = h.codes.RotateUnitJoinCode(ctx, u.ID)
	require.NoError(t, err)
	outcome, err := svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: guesser, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCodeRequired, outcome.Status)

	gomock.InOrder(
		limiter.EXPECT().AllowJoinAttempt(gomock.Any(), guesser, u.ID).Return(false, 30*time.Second),
		limiter.EXPECT().AllowJoinAttempt(gomock.Any(), guesser, u.ID).Return(true, time.Duration(0)),
	)

	outcome, err = svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: guesser, ResidenceID: r, UnitID: u.ID, Code: "XJ92KQ"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonTooManyAttempts, outcome.Reason)
	assert.Equal(t, 30*time.Second, outcome.RetryAfter)
	assert.Zero(t, h.memberships(t, guesser, r))

	outcome, err = svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: guesser, ResidenceID: r, UnitID: u.ID, Code: "XJ92KQ"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGranted, outcome.Status)
}

func TestGrantRollsBackWhenOccupancyFails(t *testing.T) {
	h := newHarness(t)
	h.params.Memberships = flakyLedger{Repository: h.ledger, occupancyErr: errors.New("occupancy insert failed")}
	ctx := context.Background()

	r := h.residence(t, "Rollback")
	u := h.unit(t, r, "7G")

	_, err := h.service().ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: 9001, ResidenceID: r, UnitID: u.ID})
	require.Error(t, err)

	assert.Zero(t, h.memberships(t, 9001, r))
	assert.True(t, h.loadUnit(t, u.ID).Vacant())
	assert.Empty(t, h.publisher.events)
}

func TestTransientGrantFailureIsRetriedOnce(t *testing.T) {
	h := newHarness(t)
	failures := int32(1)
	h.params.Memberships = flakyLedger{Repository: h.ledger, membershipFailures: &failures}
	ctx := context.Background()

	r := h.residence(t, "Retry")
	u := h.unit(t, r, "8H")

	outcome, err := h.service().ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: 9101, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGranted, outcome.Status)
	assert.Equal(t, int64(1), h.memberships(t, 9101, r))

	failures = 2
	other := h.unit(t, r, "8J")
	_, err = h.service().ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: 9102, ResidenceID: r, UnitID: other.ID})
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.True(t, h.loadUnit(t, other.ID).Vacant())
}

func TestRetriedJoinSpendsOneAttempt(t *testing.T) {
	h := newHarness(t)
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockAttemptLimiter(ctrl)
	failures := int32(0)
	h.params.Limiter = limiter
	h.params.Memberships = flakyLedger{Repository: h.ledger, membershipFailures: &failures}
	svc := h.service()
	ctx := context.Background()

	r := h.residence(t, "Retry Code")
	u := h.unit(t, r, "8K")
	owner, joiner := snowflake.ID(9201), snowflake.ID(9202)

	_, err := svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: owner, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	code, err := h.codes.RotateUnitJoinCode(ctx, u.ID)
	require.NoError(t, err)

	limiter.EXPECT().AllowJoinAttempt(gomock.Any(), joiner, u.ID).Return(true, time.Duration(0)).Times(1)
	atomic.StoreInt32(&failures, 1)

	outcome, err := svc.ClaimUnit(ctx, domain.ClaimUnitRequest{UserID: joiner, ResidenceID: r, UnitID: u.ID, Code: code})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGranted, outcome.Status)
	assert.Equal(t, membershipdomain.KindOccupant, outcome.Kind)
	assert.Equal(t, int64(1), h.memberships(t, joiner, r))
}

func TestPublisherFailureDoesNotChangeOutcome(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("outbox unavailable")
	r := h.residence(t, "Quiet")
	u := h.unit(t, r, "9K")

	outcome, err := h.service().ClaimUnit(context.Background(), domain.ClaimUnitRequest{UserID: 9201, ResidenceID: r, UnitID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGranted, outcome.Status)
}

func TestInvitationScenario(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	r2 := h.residence(t, "R2")
	one := 1
	inv := h.invitation(t, r2, "WELCOME1", &one)
	c, d := snowflake.ID(10001), snowflake.ID(10002)

	outcomes := make(map[snowflake.ID]*domain.Outcome)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, user := range []snowflake.ID{c, d} {
		wg.Add(1)
		go func(user snowflake.ID) {
			defer wg.Done()
			outcome, err := svc.RedeemInvitation(context.Background(), domain.RedeemInvitationRequest{UserID: user, Code: "welcome1"})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			outcomes[user] = outcome
			mu.Unlock()
		}(user)
	}
	wg.Wait()

	require.Len(t, outcomes, 2)
	statuses := []domain.Status{outcomes[c].Status, outcomes[d].Status}
	assert.ElementsMatch(t, []domain.Status{domain.StatusGranted, domain.StatusRejected}, statuses)
	for _, outcome := range outcomes {
		if outcome.Status == domain.StatusRejected {
			assert.Equal(t, domain.ReasonInvitationExhausted, outcome.Reason)
		} else {
			assert.Equal(t, r2, outcome.ResidenceID)
			assert.Nil(t, outcome.UnitID)
		}
	}
	assert.Equal(t, 1, h.uses(t, inv.ID))
	assert.Equal(t, int64(1), h.memberships(t, c, r2)+h.memberships(t, d, r2))
}

func TestInvitationBudgetIsConserved(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	r := h.residence(t, "Budget")
	three := 3
	inv := h.invitation(t, r, "BUDGET-3", &three)

	const redeemers = 10
	var granted, exhausted int32
	var wg sync.WaitGroup
	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := svc.RedeemInvitation(context.Background(), domain.RedeemInvitationRequest{UserID: snowflake.ID(11000 + i), Code: "BUDGET-3"})
			if !assert.NoError(t, err) {
				return
			}
			switch {
			case outcome.Status == domain.StatusGranted:
				atomic.AddInt32(&granted, 1)
			case outcome.Reason == domain.ReasonInvitationExhausted:
				atomic.AddInt32(&exhausted, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(3), granted)
	assert.Equal(t, int32(redeemers-3), exhausted)
	assert.Equal(t, 3, h.uses(t, inv.ID))
}

func TestInvitationDoubleSubmitSpendsOneUse(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	r := h.residence(t, "Twice")
	inv := h.invitation(t, r, "OPEN-DOOR", nil)
	user := snowflake.ID(12001)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.RedeemInvitation(context.Background(), domain.RedeemInvitationRequest{UserID: user, Code: "OPEN-DOOR"})
			if assert.NoError(t, err) {
				assert.True(t, outcome.Success())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), h.memberships(t, user, r))
	assert.Equal(t, 1, h.uses(t, inv.ID))
}

func TestAlreadyMemberRedemptionDoesNotSpendUse(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()
	r := h.residence(t, "NoOp")
	two := 2
	inv := h.invitation(t, r, "NO-OP-CODE", &two)
	user := snowflake.ID(13001)

	outcome, err := svc.RedeemInvitation(ctx, domain.RedeemInvitationRequest{UserID: user, Code: "NO-OP-CODE"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusGranted, outcome.Status)

	for i := 0; i < 3; i++ {
		outcome, err = svc.RedeemInvitation(ctx, domain.RedeemInvitationRequest{UserID: user, Code: "no-op-code"})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAlreadyMember, outcome.Status)
	}
	assert.Equal(t, 1, h.uses(t, inv.ID))
	assert.Len(t, h.publisher.events, 1)
	assert.Equal(t, "invitation", h.publisher.events[0].Flow)
}

func TestInvitationRejectionsAreDistinct(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()
	r := h.residence(t, "Reasons")

	inactive := h.invitation(t, r, "INACTIVE-1", nil)
	_, err := h.codes.DeactivateInvitation(ctx, inactive.ID)
	require.NoError(t, err)

	expires := h.clock.Now().Add(time.Hour)
	_, err = h.codes.CreateInvitation(ctx, 1, r, accesscodedomain.CreateInvitationRequest{Code: "EXPIRES-1", ExpiresAt: &expires})
	require.NoError(t, err)

	one := 1
	h.invitation(t, r, "SINGLE-1", &one)
	_, err = svc.RedeemInvitation(ctx, domain.RedeemInvitationRequest{UserID: 14000, Code: "SINGLE-1"})
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)

	cases := map[string]domain.Reason{
		"UNKNOWN-1":  domain.ReasonInvitationNotFound,
		"":           domain.ReasonInvitationNotFound,
		"INACTIVE-1": domain.ReasonInvitationInactive,
		"EXPIRES-1":  domain.ReasonInvitationExpired,
		"SINGLE-1":   domain.ReasonInvitationExhausted,
	}
	for code, reason := range cases {
		outcome, err := svc.RedeemInvitation(ctx, domain.RedeemInvitationRequest{UserID: 14001, Code: code})
		require.NoError(t, err, code)
		assert.Equal(t, domain.StatusRejected, outcome.Status, code)
		assert.Equal(t, reason, outcome.Reason, code)
	}
	assert.Zero(t, h.memberships(t, 14001, r))
}
