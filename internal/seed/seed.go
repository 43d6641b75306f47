package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	demoResidenceName = "Demo Residence"
	demoResidenceSlug = "demo-residence"
	demoBuildingName  = "Tower A"
)

var demoUnits = []struct {
	door  string
	floor int
	rooms int
}{
	{"1A", 1, 2},
	{"1B", 1, 3},
	{"2A", 2, 2},
	{"2B", 2, 4},
}

// Demo identifies the seeded residence.
type Demo struct {
	ResidenceID snowflake.ID
	BuildingID  snowflake.ID
	UnitIDs     []snowflake.ID
}

// EnsureDemoResidence seeds a residence with one building and a handful of vacant units.
// It is idempotent on the residence slug. When managerID is set that user becomes the
// residence manager.
func EnsureDemoResidence(ctx context.Context, db *gorm.DB, node *snowflake.Node, managerID snowflake.ID, now time.Time) (*Demo, error) {
	if db == nil {
		return nil, errors.New("seed database handle is required")
	}
	if node == nil {
		return nil, errors.New("seed id generator is required")
	}
	now = now.UTC()

	demo := &Demo{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		residence, err := ensureResidenceTx(ctx, tx, node, now)
		if err != nil {
			return err
		}
		demo.ResidenceID = residence.ID

		building, err := ensureBuildingTx(ctx, tx, node, residence.ID, now)
		if err != nil {
			return err
		}
		demo.BuildingID = building.ID

		for _, du := range demoUnits {
			unit, err := ensureUnitTx(ctx, tx, node, residence.ID, building.ID, du.door, du.floor, du.rooms, now)
			if err != nil {
				return err
			}
			demo.UnitIDs = append(demo.UnitIDs, unit.ID)
		}

		if managerID != 0 {
			return ensureManagerTx(ctx, tx, node, residence.ID, managerID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return demo, nil
}

func ensureResidenceTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time) (*directorydomain.Residence, error) {
	var residence directorydomain.Residence
	err := tx.WithContext(ctx).Where("slug = ?", demoResidenceSlug).First(&residence).Error
	if err == nil {
		return &residence, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	residence = directorydomain.Residence{
		ID:           node.Generate(),
		Name:         demoResidenceName,
		Slug:         demoResidenceSlug,
		AddressLine1: "1 Example Street",
		City:         "Lisbon",
		PostalCode:   "1000-001",
		CountryCode:  "PT",
		Metadata:     datatypes.JSONMap{"seeded": true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&residence).Error; err != nil {
		return nil, fmt.Errorf("seed residence: %w", err)
	}
	return &residence, nil
}

func ensureBuildingTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, residenceID snowflake.ID, now time.Time) (*directorydomain.Building, error) {
	var building directorydomain.Building
	err := tx.WithContext(ctx).
		Where("residence_id = ? AND name = ?", residenceID, demoBuildingName).
		First(&building).Error
	if err == nil {
		return &building, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	building = directorydomain.Building{
		ID:          node.Generate(),
		ResidenceID: residenceID,
		Name:        demoBuildingName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&building).Error; err != nil {
		return nil, fmt.Errorf("seed building: %w", err)
	}
	return &building, nil
}

func ensureUnitTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, residenceID, buildingID snowflake.ID, door string, floor, rooms int, now time.Time) (*directorydomain.Unit, error) {
	var unit directorydomain.Unit
	err := tx.WithContext(ctx).
		Where("residence_id = ? AND building_id = ? AND door_label = ?", residenceID, buildingID, door).
		First(&unit).Error
	if err == nil {
		return &unit, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	unit = directorydomain.Unit{
		ID:          node.Generate(),
		ResidenceID: residenceID,
		BuildingID:  &buildingID,
		DoorLabel:   door,
		Floor:       floor,
		RoomCount:   rooms,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&unit).Error; err != nil {
		return nil, fmt.Errorf("seed unit %s: %w", door, err)
	}
	return &unit, nil
}

func ensureManagerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, residenceID, userID snowflake.ID, now time.Time) error {
	member := membershipdomain.Membership{
		ID:          node.Generate(),
		ResidenceID: residenceID,
		UserID:      userID,
		Role:        membershipdomain.RoleManager,
		CreatedAt:   now,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
}
