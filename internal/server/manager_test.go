package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accesscoderepository "github.com/smallbiznis/homeaccess/internal/accesscode/repository"
	accesscodeservice "github.com/smallbiznis/homeaccess/internal/accesscode/service"
	"github.com/smallbiznis/homeaccess/internal/authorization"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/config"
	directoryrepository "github.com/smallbiznis/homeaccess/internal/directory/repository"
	directoryservice "github.com/smallbiznis/homeaccess/internal/directory/service"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
	membershiprepository "github.com/smallbiznis/homeaccess/internal/membership/repository"
	membershipservice "github.com/smallbiznis/homeaccess/internal/membership/service"
	"github.com/smallbiznis/homeaccess/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	managerID  = snowflake.ID(5100001)
	residentID = snowflake.ID(5100002)
	strangerID = snowflake.ID(5100003)
)

type managerFixture struct {
	server      *Server
	memberships membershipdomain.Repository
	genID       *snowflake.Node
	clock       *clock.FakeClock
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	db := storetest.Open(t)
	node := storetest.Node(t)
	clk := clock.NewFakeClock(testNow)
	log := zap.NewNop()

	membershipRepo := membershiprepository.NewRepository(db)
	memberships := membershipservice.NewService(membershipRepo)

	directory := directoryservice.NewService(directoryservice.Params{
		DB:          db,
		Repo:        directoryrepository.NewRepository(db),
		Memberships: membershipRepo,
		GenID:       node,
		Clock:       clk,
		Log:         log,
	})
	codes := accesscodeservice.NewService(accesscodeservice.Params{
		Repo:      accesscoderepository.NewRepository(db),
		GenID:     node,
		Clock:     clk,
		Policy:    config.NewStaticClaimPolicyHolder(config.DefaultClaimPolicy()),
		Generator: accesscodeservice.NewRandomGenerator(),
		Log:       log,
	})

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{
		Log:         log,
		Enforcer:    enforcer,
		Memberships: memberships,
		Config:      config.Config{PlatformAdminIDs: []string{managerID.String()}},
	})

	return &managerFixture{
		server: newTestServer(t, ServerParams{
			AuthzSvc:    authz,
			Directory:   directory,
			Memberships: memberships,
			Codes:       codes,
		}),
		memberships: membershipRepo,
		genID:       node,
		clock:       clk,
	}
}

func (f *managerFixture) auth(t *testing.T, userID snowflake.ID) string {
	return bearer(t, userID, testNow.Add(time.Hour))
}

func (f *managerFixture) addResident(t *testing.T, residenceID snowflake.ID, userID snowflake.ID) {
	t.Helper()
	require.NoError(t, f.memberships.RecordMembership(context.Background(), membershipdomain.Membership{
		ID:          f.genID.Generate(),
		ResidenceID: residenceID,
		UserID:      userID,
		Role:        membershipdomain.RoleResident,
		CreatedAt:   f.clock.Now(),
	}))
}

type residenceBody struct {
	ID   snowflake.ID `json:"id"`
	Slug string       `json:"slug"`
}

func (f *managerFixture) createResidence(t *testing.T, name string) residenceBody {
	t.Helper()
	rec := doRequest(t, f.server, http.MethodPost, "/v1/admin/residences", f.auth(t, managerID), map[string]any{
		"name":         name,
		"city":         "Lisbon",
		"country_code": "pt",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var residence residenceBody
	decodeData(t, rec, &residence)
	require.NotZero(t, residence.ID)
	return residence
}

func (f *managerFixture) createUnit(t *testing.T, residence residenceBody, door string) unitResponse {
	t.Helper()
	rec := doRequest(t, f.server, http.MethodPost, "/v1/admin/residences/"+residence.ID.String()+"/units", f.auth(t, managerID), map[string]any{
		"door_label": door,
		"floor":      2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var unit unitResponse
	decodeData(t, rec, &unit)
	return unit
}

func TestManagerRotatesJoinCode(t *testing.T) {
	f := newManagerFixture(t)
	residence := f.createResidence(t, "Harbour View")
	unit := f.createUnit(t, residence, "4C")
	assert.True(t, unit.Vacant)
	f.addResident(t, residence.ID, residentID)

	path := "/v1/units/" + unit.ID + "/join-code/rotate"

	rec := doRequest(t, f.server, http.MethodPost, path, f.auth(t, managerID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first struct {
		UnitID   string `json:"unit_id"`
		JoinCode string `json:"join_code"`
	}
	decodeData(t, rec, &first)
	assert.Equal(t, unit.ID, first.UnitID)
	assert.Len(t, first.JoinCode, config.DefaultClaimPolicy().JoinCodeLength)

	rec = doRequest(t, f.server, http.MethodPost, path, f.auth(t, residentID), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode(t, rec).Error.Type)

	rec = doRequest(t, f.server, http.MethodPost, path, f.auth(t, strangerID), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, f.server, http.MethodPost, "/v1/units/987654321/join-code/rotate", f.auth(t, managerID), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicDirectoryHidesSecrets(t *testing.T) {
	f := newManagerFixture(t)
	residence := f.createResidence(t, "Quinta Nova")
	unit := f.createUnit(t, residence, "1A")

	rec := doRequest(t, f.server, http.MethodPost, "/v1/units/"+unit.ID+"/join-code/rotate", f.auth(t, managerID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, f.server, http.MethodGet, "/v1/residences/"+residence.Slug, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, f.server, http.MethodGet, "/v1/residences/"+residence.ID.String()+"/units", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "join_code")
	assert.NotContains(t, rec.Body.String(), "occupant")

	var units []unitResponse
	decodeData(t, rec, &units)
	require.Len(t, units, 1)
	assert.Equal(t, "1A", units[0].DoorLabel)
	assert.True(t, units[0].Vacant)

	rec = doRequest(t, f.server, http.MethodGet, "/v1/residences/does-not-exist", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvitationAdministration(t *testing.T) {
	f := newManagerFixture(t)
	residence := f.createResidence(t, "Invite Court")
	f.addResident(t, residence.ID, residentID)
	base := "/v1/residences/" + residence.ID.String() + "/invitations"

	rec := doRequest(t, f.server, http.MethodPost, base, f.auth(t, managerID), map[string]any{
		"code":       "SPRING-2026",
		"max_uses":   3,
		"expires_at": testNow.Add(72 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created invitationResponse
	decodeData(t, rec, &created)
	assert.Equal(t, "SPRING-2026", created.Code)
	assert.True(t, created.Active)
	require.NotNil(t, created.Remaining)
	assert.Equal(t, 3, *created.Remaining)

	rec = doRequest(t, f.server, http.MethodPost, base, f.auth(t, managerID), map[string]any{"code": "spring-2026"})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = doRequest(t, f.server, http.MethodPost, base, f.auth(t, managerID), map[string]any{"max_uses": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = doRequest(t, f.server, http.MethodPost, base, f.auth(t, residentID), map[string]any{})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, f.server, http.MethodGet, base, f.auth(t, residentID), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, f.server, http.MethodGet, base, f.auth(t, managerID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []invitationResponse
	decodeData(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	deactivate := "/v1/invitations/" + created.ID + "/deactivate"
	rec = doRequest(t, f.server, http.MethodPost, deactivate, f.auth(t, strangerID), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, f.server, http.MethodPost, deactivate, f.auth(t, managerID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var deactivated invitationResponse
	decodeData(t, rec, &deactivated)
	assert.False(t, deactivated.Active)
}

func TestResidentCannotAdministerDirectory(t *testing.T) {
	f := newManagerFixture(t)
	residence := f.createResidence(t, "Closed Garden")
	f.addResident(t, residence.ID, residentID)

	rec := doRequest(t, f.server, http.MethodPost, "/v1/admin/residences/"+residence.ID.String()+"/buildings", f.auth(t, residentID), map[string]any{"name": "Tower B"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, f.server, http.MethodPost, "/v1/admin/residences/"+residence.ID.String()+"/buildings", f.auth(t, managerID), map[string]any{"name": "Tower B"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, f.server, http.MethodPost, "/v1/admin/residences", f.auth(t, managerID), map[string]any{"name": "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResidenceCreationRequiresPlatformAdmin(t *testing.T) {
	f := newManagerFixture(t)
	residence := f.createResidence(t, "Admin Only")

	// Managing one residence does not allow registering new ones.
	require.NoError(t, f.memberships.RecordMembership(context.Background(), membershipdomain.Membership{
		ID:          f.genID.Generate(),
		ResidenceID: residence.ID,
		UserID:      residentID,
		Role:        membershipdomain.RoleManager,
		CreatedAt:   f.clock.Now(),
	}))

	for _, userID := range []snowflake.ID{strangerID, residentID} {
		rec := doRequest(t, f.server, http.MethodPost, "/v1/admin/residences", f.auth(t, userID), map[string]any{"name": "Anyone Towers"})
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	}

	rec := doRequest(t, f.server, http.MethodGet, "/v1/me/memberships", f.auth(t, strangerID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), membershipdomain.RoleManager)

	rec = doRequest(t, f.server, http.MethodPost, "/v1/admin/residences", "", map[string]any{"name": "Anyone Towers"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListMyMemberships(t *testing.T) {
	f := newManagerFixture(t)
	residence := f.createResidence(t, "Members Row")

	rec := doRequest(t, f.server, http.MethodGet, "/v1/me/memberships", f.auth(t, managerID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), residence.ID.String())
	assert.Contains(t, rec.Body.String(), membershipdomain.RoleManager)

	rec = doRequest(t, f.server, http.MethodGet, "/v1/me/memberships", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

