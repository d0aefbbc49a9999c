package services

import (
	"context"
	"errors"
	"strings"

	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
)

// PermissionRepository defines persistence operations for permissions.
type PermissionRepository interface {
	List(ctx context.Context, q types.ListQuery) ([]types.Permission, int, error)
	ListActive(ctx context.Context) ([]types.Permission, error)
	Categories(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id int) (types.Permission, error)
	ExistingIDs(ctx context.Context, ids []int) ([]int, error)
	Create(ctx context.Context, p types.Permission) (types.Permission, error)
	Update(ctx context.Context, p types.Permission) (types.Permission, error)
	SetActive(ctx context.Context, id int, active bool) error
	Delete(ctx context.Context, id int) error
}

type PermissionInput struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsActive    *bool  `json:"is_active"`
}

// PermissionGroup is a category with its active permissions.
type PermissionGroup struct {
	Category    string             `json:"category"`
	Permissions []types.Permission `json:"permissions"`
}

// PermissionService encapsulates permission administration.
type PermissionService struct {
	repo  PermissionRepository
	authz *Authorizer
}

func NewPermissionService(repo PermissionRepository, authz *Authorizer) *PermissionService {
	return &PermissionService{repo: repo, authz: authz}
}

func (s *PermissionService) List(ctx context.Context, q types.ListQuery) ([]types.Permission, int, error) {
	return s.repo.List(ctx, q)
}

func (s *PermissionService) Get(ctx context.Context, id int) (types.Permission, error) {
	return s.repo.Get(ctx, id)
}

func (s *PermissionService) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// Grouped returns active permissions grouped by category, categories in
// order.
func (s *PermissionService) Grouped(ctx context.Context) ([]PermissionGroup, error) {
	permissions, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	groups := []PermissionGroup{}
	for _, p := range permissions {
		if n := len(groups); n == 0 || groups[n-1].Category != p.Category {
			groups = append(groups, PermissionGroup{Category: p.Category})
		}
		last := &groups[len(groups)-1]
		last.Permissions = append(last.Permissions, p)
	}
	return groups, nil
}

func (s *PermissionService) Create(ctx context.Context, in PermissionInput) (types.Permission, error) {
	if err := validatePermission(in); err != nil {
		return types.Permission{}, err
	}
	p, err := s.repo.Create(ctx, types.Permission{
		Name:        strings.TrimSpace(in.Name),
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		IsActive:    in.IsActive == nil || *in.IsActive,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Permission{}, fieldError("name", "The name has already been taken.")
		}
		return types.Permission{}, err
	}
	return p, nil
}

func (s *PermissionService) Update(ctx context.Context, id int, in PermissionInput) (types.Permission, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Permission{}, err
	}
	if err := validatePermission(in); err != nil {
		return types.Permission{}, err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.DisplayName = strings.TrimSpace(in.DisplayName)
	p.Description = in.Description
	p.Category = strings.TrimSpace(in.Category)
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Permission{}, fieldError("name", "The name has already been taken.")
		}
		return types.Permission{}, err
	}
	s.authz.Purge()
	return updated, nil
}

func validatePermission(in PermissionInput) error {
	v := NewValidationError()
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "The name field is required.")
	} else if len(in.Name) > 255 {
		v.Add("name", "The name may not be greater than 255 characters.")
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		v.Add("display_name", "The display name field is required.")
	}
	if strings.TrimSpace(in.Category) == "" {
		v.Add("category", "The category field is required.")
	}
	return v.OrNil()
}

func (s *PermissionService) ToggleStatus(ctx context.Context, id int) (types.Permission, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Permission{}, err
	}
	if err := s.repo.SetActive(ctx, id, !p.IsActive); err != nil {
		return types.Permission{}, err
	}
	p.IsActive = !p.IsActive
	s.authz.Purge()
	return p, nil
}

func (s *PermissionService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			return ruleError(ErrPermissionInUse, "Cannot delete permission that is assigned to roles")
		}
		return err
	}
	s.authz.Purge()
	return nil
}
