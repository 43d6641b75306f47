package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/directory/domain"
	"github.com/smallbiznis/homeaccess/internal/directory/repository"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
	membershiprepo "github.com/smallbiznis/homeaccess/internal/membership/repository"
	"github.com/smallbiznis/homeaccess/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db          *gorm.DB
	repo        domain.Repository
	memberships membershipdomain.Repository
	svc         domain.Service
	clock       *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := storetest.Open(t)
	repo := repository.NewRepository(conn)
	memberships := membershiprepo.NewRepository(conn)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:          conn,
		Repo:        repo,
		Memberships: memberships,
		GenID:       storetest.Node(t),
		Clock:       fake,
		Log:         zap.NewNop(),
	})
	return fixture{db: conn, repo: repo, memberships: memberships, svc: svc, clock: fake}
}

func seedResidence(t *testing.T, f fixture, id int64, name string) domain.Residence {
	t.Helper()
	now := f.clock.Now()
	residence := domain.Residence{
		ID:        snowflake.ID(id),
		Name:      name,
		Slug:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.repo.CreateResidence(context.Background(), residence))
	return residence
}

func TestResolveResidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seedResidence(t, f, 1234567001, "maple-court")
	seedResidence(t, f, 1234568002, "birch-house")
	seedResidence(t, f, 42, "tiny")

	t.Run("exact id", func(t *testing.T) {
		got, err := f.svc.ResolveResidence(ctx, "1234567001")
		require.NoError(t, err)
		assert.Equal(t, "maple-court", got.Name)
	})

	t.Run("exact id shorter than prefix minimum", func(t *testing.T) {
		got, err := f.svc.ResolveResidence(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "tiny", got.Name)
	})

	t.Run("unique prefix", func(t *testing.T) {
		got, err := f.svc.ResolveResidence(ctx, "1234568")
		require.NoError(t, err)
		assert.Equal(t, "birch-house", got.Name)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := f.svc.ResolveResidence(ctx, "123456")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, err, domain.ErrAmbiguousReference)
	})

	t.Run("short prefix is not searched", func(t *testing.T) {
		_, err := f.svc.ResolveResidence(ctx, "12345")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.False(t, errors.Is(err, domain.ErrAmbiguousReference))
	})

	t.Run("non digit reference", func(t *testing.T) {
		for _, ref := range []string{"", "  ", "abc123", "1234567001; DROP", "12_45678"} {
			_, err := f.svc.ResolveResidence(ctx, ref)
			assert.ErrorIs(t, err, domain.ErrNotFound, ref)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := f.svc.ResolveResidence(ctx, "99999999")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestResolveBuildingScopedToResidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := seedResidence(t, f, 5550001, "a")
	b := seedResidence(t, f, 5550002, "b")
	now := f.clock.Now()
	require.NoError(t, f.repo.CreateBuilding(ctx, domain.Building{ID: 7770001, ResidenceID: a.ID, Name: "North", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, f.repo.CreateBuilding(ctx, domain.Building{ID: 7770002, ResidenceID: b.ID, Name: "South", CreatedAt: now, UpdatedAt: now}))

	got, err := f.svc.ResolveBuilding(ctx, "7770001", &a.ID)
	require.NoError(t, err)
	assert.Equal(t, "North", got.Name)

	_, err = f.svc.ResolveBuilding(ctx, "7770002", &a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err = f.svc.ResolveBuilding(ctx, "777000", &b.ID)
	require.NoError(t, err)
	assert.Equal(t, "South", got.Name)

	_, err = f.svc.ResolveBuilding(ctx, "777000", nil)
	assert.ErrorIs(t, err, domain.ErrAmbiguousReference)
}

func TestListUnitsOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	residence, err := f.svc.CreateResidence(ctx, 900, domain.CreateResidenceRequest{Name: "Elm Park"})
	require.NoError(t, err)
	building, err := f.svc.CreateBuilding(ctx, residence.ID, domain.CreateBuildingRequest{Name: "Tower"})
	require.NoError(t, err)

	for _, req := range []domain.CreateUnitRequest{
		{DoorLabel: "3B", Floor: 3},
		{DoorLabel: "1B", Floor: 1, BuildingID: &building.ID},
		{DoorLabel: "1A", Floor: 1},
		{DoorLabel: "G", Floor: 0},
	} {
		_, err := f.svc.CreateUnit(ctx, residence.ID, req)
		require.NoError(t, err)
	}

	units, err := f.svc.ListUnits(ctx, residence.ID, nil)
	require.NoError(t, err)
	labels := make([]string, 0, len(units))
	for _, u := range units {
		labels = append(labels, u.DoorLabel)
		assert.True(t, u.Vacant())
		assert.False(t, u.HasJoinCode())
	}
	assert.Equal(t, []string{"G", "1A", "1B", "3B"}, labels)

	units, err = f.svc.ListUnits(ctx, residence.ID, &building.ID)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "1B", units[0].DoorLabel)
}

func TestCreateResidenceMakesCreatorManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	residence, err := f.svc.CreateResidence(ctx, 77, domain.CreateResidenceRequest{
		Name:        "  Les Jardins  ",
		CountryCode: "fr",
		Metadata:    map[string]any{"gate": "north"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Les Jardins", residence.Name)
	assert.Equal(t, "les-jardins", residence.Slug)
	assert.Equal(t, "FR", residence.CountryCode)

	role, err := f.memberships.RoleFor(ctx, residence.ID, 77)
	require.NoError(t, err)
	assert.Equal(t, membershipdomain.RoleManager, role)

	second, err := f.svc.CreateResidence(ctx, 78, domain.CreateResidenceRequest{Name: "Les Jardins"})
	require.NoError(t, err)
	assert.Equal(t, "les-jardins-2", second.Slug)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateResidence(ctx, 0, domain.CreateResidenceRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
	_, err = f.svc.CreateResidence(ctx, 1, domain.CreateResidenceRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	_, err = f.svc.CreateResidence(ctx, 1, domain.CreateResidenceRequest{Name: "x", CountryCode: "FRA"})
	assert.ErrorIs(t, err, domain.ErrInvalidCountry)

	a, err := f.svc.CreateResidence(ctx, 1, domain.CreateResidenceRequest{Name: "A"})
	require.NoError(t, err)
	b, err := f.svc.CreateResidence(ctx, 1, domain.CreateResidenceRequest{Name: "B"})
	require.NoError(t, err)
	other, err := f.svc.CreateBuilding(ctx, b.ID, domain.CreateBuildingRequest{Name: "Other"})
	require.NoError(t, err)

	_, err = f.svc.CreateUnit(ctx, a.ID, domain.CreateUnitRequest{DoorLabel: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidDoorLabel)
	_, err = f.svc.CreateUnit(ctx, a.ID, domain.CreateUnitRequest{DoorLabel: "1", BuildingID: &other.ID})
	assert.ErrorIs(t, err, domain.ErrBuildingMismatch)
	_, err = f.svc.CreateUnit(ctx, 404, domain.CreateUnitRequest{DoorLabel: "1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.CreateBuilding(ctx, 404, domain.CreateBuildingRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	unit, err := f.svc.CreateUnit(ctx, a.ID, domain.CreateUnitRequest{DoorLabel: "2C", RoomCount: -3})
	require.NoError(t, err)
	assert.Equal(t, 0, unit.RoomCount)

	got, err := f.svc.GetUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, "2C", got.DoorLabel)

	_, err = f.svc.GetUnit(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
