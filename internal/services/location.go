package services

import (
	"context"

	"github.com/nsmonitor/apiserver/types"
)

// LocationRepository reads the LGA and ward reference data.
type LocationRepository interface {
	ListLgas(ctx context.Context) ([]types.Lga, error)
	GetLga(ctx context.Context, id int) (types.Lga, error)
	ListWards(ctx context.Context, lgaID int) ([]types.Ward, error)
	GetWard(ctx context.Context, id int) (types.Ward, error)
}

type LocationService struct {
	repo LocationRepository
}

func NewLocationService(repo LocationRepository) *LocationService {
	return &LocationService{repo: repo}
}

func (s *LocationService) ListLgas(ctx context.Context) ([]types.Lga, error) {
	return s.repo.ListLgas(ctx)
}

func (s *LocationService) GetLga(ctx context.Context, id int) (types.Lga, error) {
	return s.repo.GetLga(ctx, id)
}

// WardsOf lists the wards of an existing LGA.
func (s *LocationService) WardsOf(ctx context.Context, lgaID int) ([]types.Ward, error) {
	if _, err := s.repo.GetLga(ctx, lgaID); err != nil {
		return nil, err
	}
	return s.repo.ListWards(ctx, lgaID)
}

// Wards lists wards, optionally narrowed to one LGA. Zero means all.
func (s *LocationService) Wards(ctx context.Context, lgaID int) ([]types.Ward, error) {
	return s.repo.ListWards(ctx, lgaID)
}

func (s *LocationService) GetWard(ctx context.Context, id int) (types.Ward, error) {
	return s.repo.GetWard(ctx, id)
}
