package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context, q types.ListQuery) ([]types.User, int, error)
	ListActiveByRole(ctx context.Context, roleName string) ([]types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetActive(ctx context.Context, id int, active bool) error
	CountByRoleName(ctx context.Context, roleName string) (int, error)
	DeleteRetainingRole(ctx context.Context, id int, roleName string) error
}

// RoleGetter resolves a role by id.
type RoleGetter interface {
	Get(ctx context.Context, id int) (types.Role, error)
}

const minPasswordLength = 8

// UserInput is the writable shape of a user. An empty Password on update
// keeps the current one.
type UserInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	RoleID               *int   `json:"role_id"`
	Organization         string `json:"organization"`
	Position             string `json:"position"`
	Phone                string `json:"phone"`
	Address              string `json:"address"`
	IsActive             *bool  `json:"is_active"`
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo  UserRepository
	roles RoleGetter
}

func NewUserService(repo UserRepository, roles RoleGetter) *UserService {
	return &UserService{repo: repo, roles: roles}
}

func (s *UserService) List(ctx context.Context, q types.ListQuery) ([]types.User, int, error) {
	return s.repo.List(ctx, q)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// ProjectManagers lists active users eligible to manage projects.
func (s *UserService) ProjectManagers(ctx context.Context) ([]types.User, error) {
	return s.repo.ListActiveByRole(ctx, types.RoleProjectManager)
}

// Authenticate checks credentials. Unknown email and wrong password produce
// the same field error; a deactivated account is refused after the password
// matched.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	v := NewValidationError()
	email = strings.TrimSpace(email)
	if email == "" {
		v.Add("email", "The email field is required.")
	} else if !validEmail(email) {
		v.Add("email", "The email must be a valid email address.")
	}
	if password == "" {
		v.Add("password", "The password field is required.")
	}
	if err := v.OrNil(); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, fieldError("email", "The provided credentials are incorrect.")
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, fieldError("email", "The provided credentials are incorrect.")
	}
	if !user.IsActive {
		return types.User{}, fieldError("email", "Your account has been deactivated. Please contact an administrator.")
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, in UserInput) (types.User, error) {
	if err := s.validate(ctx, in, true); err != nil {
		return types.User{}, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hashed),
		RoleID:       in.RoleID,
		Organization: in.Organization,
		Position:     in.Position,
		Phone:        in.Phone,
		Address:      in.Address,
		IsActive:     in.IsActive == nil || *in.IsActive,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, fieldError("email", "The email has already been taken.")
		}
		return types.User{}, err
	}
	return s.repo.GetByID(ctx, user.ID)
}

func (s *UserService) Update(ctx context.Context, id int, in UserInput) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if err := s.validate(ctx, in, false); err != nil {
		return types.User{}, err
	}

	role, err := s.roles.Get(ctx, *in.RoleID)
	if err != nil {
		return types.User{}, err
	}
	stillActive := in.IsActive == nil || *in.IsActive
	if role.Name != types.RoleSuperAdmin || !stillActive {
		if err := s.keepLastSuperAdmin(ctx, user); err != nil {
			return types.User{}, err
		}
	}

	user.Name = strings.TrimSpace(in.Name)
	user.Email = strings.TrimSpace(in.Email)
	user.RoleID = in.RoleID
	user.Organization = in.Organization
	user.Position = in.Position
	user.Phone = in.Phone
	user.Address = in.Address
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = string(hashed)
	}

	if _, err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, fieldError("email", "The email has already been taken.")
		}
		return types.User{}, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) validate(ctx context.Context, in UserInput, creating bool) error {
	v := NewValidationError()
	if name := strings.TrimSpace(in.Name); name == "" {
		v.Add("name", "The name field is required.")
	} else if len(name) > 255 {
		v.Add("name", "The name may not be greater than 255 characters.")
	}
	if email := strings.TrimSpace(in.Email); email == "" {
		v.Add("email", "The email field is required.")
	} else if len(email) > 255 || !validEmail(email) {
		v.Add("email", "The email must be a valid email address.")
	}

	switch {
	case in.Password == "" && creating:
		v.Add("password", "The password field is required.")
	case in.Password != "" && len(in.Password) < minPasswordLength:
		v.Add("password", "The password must be at least 8 characters.")
	case in.Password != "" && in.Password != in.PasswordConfirmation:
		v.Add("password", "The password confirmation does not match.")
	}

	if in.RoleID == nil {
		v.Add("role_id", "The role id field is required.")
	} else if _, err := s.roles.Get(ctx, *in.RoleID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		v.Add("role_id", "The selected role id is invalid.")
	}

	if len(in.Organization) > 255 {
		v.Add("organization", "The organization may not be greater than 255 characters.")
	}
	if len(in.Position) > 255 {
		v.Add("position", "The position may not be greater than 255 characters.")
	}
	if len(in.Phone) > 20 {
		v.Add("phone", "The phone may not be greater than 20 characters.")
	}
	if len(in.Address) > 500 {
		v.Add("address", "The address may not be greater than 500 characters.")
	}
	return v.OrNil()
}

// Delete removes a user. The last super admin cannot be deleted.
func (s *UserService) Delete(ctx context.Context, id int) error {
	err := s.repo.DeleteRetainingRole(ctx, id, types.RoleSuperAdmin)
	switch {
	case errors.Is(err, store.ErrLastMember):
		return ruleError(ErrLastSuperAdmin, "Cannot delete the last super admin user")
	case errors.Is(err, store.ErrInUse):
		return ruleError(ErrUserReferenced, "Cannot delete user who is referenced by projects or updates")
	}
	return err
}

func (s *UserService) ToggleStatus(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if user.IsActive {
		if err := s.keepLastSuperAdmin(ctx, user); err != nil {
			return types.User{}, err
		}
	}
	if err := s.repo.SetActive(ctx, id, !user.IsActive); err != nil {
		return types.User{}, err
	}
	user.IsActive = !user.IsActive
	return user, nil
}

// keepLastSuperAdmin fails when user is the only super admin left and is
// about to lose the role or be deactivated.
func (s *UserService) keepLastSuperAdmin(ctx context.Context, user types.User) error {
	if user.RoleName != types.RoleSuperAdmin {
		return nil
	}
	count, err := s.repo.CountByRoleName(ctx, types.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ruleError(ErrLastSuperAdmin, "Cannot remove the last super admin user")
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
