package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/directory/domain"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
	"github.com/smallbiznis/homeaccess/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Repo        domain.Repository
	Memberships membershipdomain.Repository
	GenID       *snowflake.Node
	Clock       clock.Clock
	Log         *zap.Logger
}

type service struct {
	db          *gorm.DB
	repo        domain.Repository
	memberships membershipdomain.Repository
	genID       *snowflake.Node
	clock       clock.Clock
	log         *zap.Logger
}

func NewService(p Params) domain.Service {
	return &service{
		db:          p.DB,
		repo:        p.Repo,
		memberships: p.Memberships,
		genID:       p.GenID,
		clock:       p.Clock,
		log:         p.Log.Named("directory.service"),
	}
}

func (s *service) ResolveResidence(ctx context.Context, ref string) (*domain.Residence, error) {
	ref, id, err := parseReference(ref)
	if err != nil {
		return nil, err
	}

	if id != 0 {
		residence, err := db.RetryRead(ctx, func() (*domain.Residence, error) {
			return s.repo.FindResidenceByID(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		if residence != nil {
			return residence, nil
		}
	}

	if len(ref) < domain.MinPrefixLength {
		return nil, domain.ErrNotFound
	}

	matches, err := db.RetryRead(ctx, func() ([]domain.Residence, error) {
		return s.repo.FindResidencesByPrefix(ctx, ref, 2)
	})
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return &matches[0], nil
	default:
		s.log.Warn("ambiguous residence reference", zap.String("ref", ref))
		return nil, fmt.Errorf("%w: %w", domain.ErrNotFound, domain.ErrAmbiguousReference)
	}
}

func (s *service) ResolveBuilding(ctx context.Context, ref string, residenceID *snowflake.ID) (*domain.Building, error) {
	ref, id, err := parseReference(ref)
	if err != nil {
		return nil, err
	}

	if id != 0 {
		building, err := db.RetryRead(ctx, func() (*domain.Building, error) {
			return s.repo.FindBuildingByID(ctx, id, residenceID)
		})
		if err != nil {
			return nil, err
		}
		if building != nil {
			return building, nil
		}
	}

	if len(ref) < domain.MinPrefixLength {
		return nil, domain.ErrNotFound
	}

	matches, err := db.RetryRead(ctx, func() ([]domain.Building, error) {
		return s.repo.FindBuildingsByPrefix(ctx, ref, residenceID, 2)
	})
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return &matches[0], nil
	default:
		s.log.Warn("ambiguous building reference", zap.String("ref", ref))
		return nil, fmt.Errorf("%w: %w", domain.ErrNotFound, domain.ErrAmbiguousReference)
	}
}

func (s *service) ListUnits(ctx context.Context, residenceID snowflake.ID, buildingID *snowflake.ID) ([]domain.Unit, error) {
	return db.RetryRead(ctx, func() ([]domain.Unit, error) {
		return s.repo.ListUnits(ctx, residenceID, buildingID)
	})
}

func (s *service) GetUnit(ctx context.Context, unitID snowflake.ID) (*domain.Unit, error) {
	unit, err := db.RetryRead(ctx, func() (*domain.Unit, error) {
		return s.repo.GetUnit(ctx, unitID)
	})
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, domain.ErrNotFound
	}
	return unit, nil
}

func (s *service) CreateResidence(ctx context.Context, userID snowflake.ID, req domain.CreateResidenceRequest) (*domain.Residence, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	countryCode := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if countryCode != "" && len(countryCode) != 2 {
		return nil, domain.ErrInvalidCountry
	}

	residenceSlug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	residence := domain.Residence{
		ID:           s.genID.Generate(),
		Name:         name,
		Slug:         residenceSlug,
		AddressLine1: strings.TrimSpace(req.AddressLine1),
		AddressLine2: strings.TrimSpace(req.AddressLine2),
		City:         strings.TrimSpace(req.City),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		CountryCode:  countryCode,
		Metadata:     datatypes.JSONMap(req.Metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if residence.Metadata == nil {
		residence.Metadata = datatypes.JSONMap{}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateResidence(ctx, residence); err != nil {
			return err
		}
		return s.memberships.WithTx(tx).RecordMembership(ctx, membershipdomain.Membership{
			ID:          s.genID.Generate(),
			ResidenceID: residence.ID,
			UserID:      userID,
			Role:        membershipdomain.RoleManager,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("residence created",
		zap.String("residence_id", residence.ID.String()),
		zap.String("manager_id", userID.String()),
	)
	return &residence, nil
}

func (s *service) CreateBuilding(ctx context.Context, residenceID snowflake.ID, req domain.CreateBuildingRequest) (*domain.Building, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	residence, err := s.repo.FindResidenceByID(ctx, residenceID)
	if err != nil {
		return nil, err
	}
	if residence == nil {
		return nil, domain.ErrNotFound
	}

	now := s.clock.Now()
	building := domain.Building{
		ID:          s.genID.Generate(),
		ResidenceID: residenceID,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateBuilding(ctx, building); err != nil {
		return nil, err
	}
	return &building, nil
}

func (s *service) CreateUnit(ctx context.Context, residenceID snowflake.ID, req domain.CreateUnitRequest) (*domain.Unit, error) {
	doorLabel := strings.TrimSpace(req.DoorLabel)
	if doorLabel == "" {
		return nil, domain.ErrInvalidDoorLabel
	}
	residence, err := s.repo.FindResidenceByID(ctx, residenceID)
	if err != nil {
		return nil, err
	}
	if residence == nil {
		return nil, domain.ErrNotFound
	}
	if req.BuildingID != nil {
		building, err := s.repo.FindBuildingByID(ctx, *req.BuildingID, &residenceID)
		if err != nil {
			return nil, err
		}
		if building == nil {
			return nil, domain.ErrBuildingMismatch
		}
	}

	roomCount := req.RoomCount
	if roomCount < 0 {
		roomCount = 0
	}
	now := s.clock.Now()
	unit := domain.Unit{
		ID:          s.genID.Generate(),
		ResidenceID: residenceID,
		BuildingID:  req.BuildingID,
		DoorLabel:   doorLabel,
		Floor:       req.Floor,
		RoomCount:   roomCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateUnit(ctx, unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (s *service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "residence"
	}
	candidate := base
	for i := 2; ; i++ {
		exists, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// parseReference accepts decimal identifiers only. It returns the trimmed reference
// and, when it parses, its numeric value.
func parseReference(ref string) (string, snowflake.ID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", 0, domain.ErrNotFound
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return "", 0, domain.ErrNotFound
		}
	}
	id, err := snowflake.ParseString(ref)
	if err != nil {
		// Too long for an int64; cannot match anything.
		return "", 0, domain.ErrNotFound
	}
	return ref, id, nil
}
