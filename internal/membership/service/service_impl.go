package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/membership/domain"
)

type service struct {
	repo domain.Repository
}

func NewService(repo domain.Repository) domain.Service {
	return &service{repo: repo}
}

func (s *service) ListForUser(ctx context.Context, userID snowflake.ID) (*domain.UserMemberships, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	memberships, err := s.repo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	occupancies, err := s.repo.ListOccupancies(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &domain.UserMemberships{
		Memberships: make([]domain.MembershipResponse, 0, len(memberships)),
		Occupancies: make([]domain.OccupancyResponse, 0, len(occupancies)),
	}
	for _, item := range memberships {
		resp.Memberships = append(resp.Memberships, domain.MembershipResponse{
			ResidenceID:   item.ResidenceID.String(),
			ResidenceName: item.ResidenceName,
			ResidenceSlug: item.ResidenceSlug,
			Role:          item.Role,
			CreatedAt:     item.CreatedAt,
		})
	}
	for _, item := range occupancies {
		resp.Occupancies = append(resp.Occupancies, domain.OccupancyResponse{
			UnitID:      item.UnitID.String(),
			ResidenceID: item.ResidenceID.String(),
			DoorLabel:   item.DoorLabel,
			Floor:       item.Floor,
			Kind:        string(item.Kind),
			StartedAt:   item.StartedAt,
		})
	}
	return resp, nil
}

func (s *service) RoleFor(ctx context.Context, residenceID, userID snowflake.ID) (string, error) {
	if userID == 0 {
		return "", domain.ErrInvalidUser
	}
	return s.repo.RoleFor(ctx, residenceID, userID)
}
