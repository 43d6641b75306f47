package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/homeaccess/internal/config"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectResidence  = "residence"
	ObjectBuilding   = "building"
	ObjectUnit       = "unit"
	ObjectInvitation = "invitation"
)

// PlatformDomain scopes grants that sit above any single residence.
const (
	PlatformDomain = "platform"
	roleAdmin      = "role:admin"
)

const (
	ActionResidenceView   = "residence.view"
	ActionResidenceCreate = "residence.create"

	ActionBuildingCreate = "building.create"

	ActionUnitCreate         = "unit.create"
	ActionUnitRotateJoinCode = "unit.rotate_join_code"

	ActionInvitationView       = "invitation.view"
	ActionInvitationCreate     = "invitation.create"
	ActionInvitationDeactivate = "invitation.deactivate"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Enforcer    *casbin.SyncedEnforcer
	Memberships membershipdomain.Service
	Config      config.Config `optional:"true"`
}

type ServiceImpl struct {
	log         *zap.Logger
	enforcer    *casbin.SyncedEnforcer
	memberships membershipdomain.Service
	admins      map[snowflake.ID]struct{}
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	log := p.Log.Named("authorization.service")
	return &ServiceImpl{
		log:         log,
		enforcer:    p.Enforcer,
		memberships: p.Memberships,
		admins:      parseAdmins(log, p.Config.PlatformAdminIDs),
	}
}

func parseAdmins(log *zap.Logger, ids []string) map[snowflake.ID]struct{} {
	admins := make(map[snowflake.ID]struct{}, len(ids))
	for _, raw := range ids {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			log.Warn("ignoring invalid platform admin id", zap.String("value", raw))
			continue
		}
		admins[id] = struct{}{}
	}
	return admins
}

func (s *ServiceImpl) Authorize(ctx context.Context, userID, residenceID snowflake.ID, object string, action string) error {
	if userID <= 0 {
		return ErrInvalidActor
	}
	if residenceID <= 0 {
		return ErrInvalidResidence
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role, err := s.memberships.RoleFor(ctx, residenceID, userID)
	if err != nil {
		return err
	}
	if role == "" {
		s.logDenied(userID, residenceID, object, action)
		return ErrForbidden
	}

	subject := fmt.Sprintf("user:%s", userID.String())
	roleName := fmt.Sprintf("role:%s", strings.ToLower(role))
	domain := fmt.Sprintf("residence:%s", residenceID.String())
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.logDenied(userID, residenceID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) AuthorizePlatform(ctx context.Context, userID snowflake.ID, object string, action string) error {
	if userID <= 0 {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("user:%s", userID.String())
	if _, ok := s.admins[userID]; ok {
		if err := s.ensureGrouping(subject, roleAdmin, PlatformDomain); err != nil {
			return err
		}
	} else if err := s.revokeGrouping(subject, PlatformDomain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, PlatformDomain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("platform authorization denied",
			zap.String("user_id", userID.String()),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// revokeGrouping drops every role link the subject holds in domain.
func (s *ServiceImpl) revokeGrouping(subject string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}
	return nil
}

// ensureGrouping keeps the casbin role link in step with the ledger's role.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) logDenied(userID, residenceID snowflake.ID, object string, action string) {
	s.log.Info("authorization denied",
		zap.String("user_id", userID.String()),
		zap.String("residence_id", residenceID.String()),
		zap.String("object", object),
		zap.String("action", action),
	)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Resident permissions
		{"role:resident", ObjectResidence, ActionResidenceView},

		// Platform admin permissions
		{roleAdmin, ObjectResidence, ActionResidenceCreate},
		// Manager permissions
		{"role:manager", ObjectResidence, ActionResidenceView},
		{"role:manager", ObjectBuilding, ActionBuildingCreate},
		{"role:manager", ObjectUnit, ActionUnitCreate},
		{"role:manager", ObjectUnit, ActionUnitRotateJoinCode},
		{"role:manager", ObjectInvitation, ActionInvitationView},
		{"role:manager", ObjectInvitation, ActionInvitationCreate},
		{"role:manager", ObjectInvitation, ActionInvitationDeactivate},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
