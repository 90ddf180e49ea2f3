// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bookshelf/internal/auth"
	"github.com/carterperez-dev/bookshelf/internal/core"
)

var ErrEmailTaken = errors.New("email already registered")

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Create is the self-registration path used by auth; new accounts are
// always plain users.
func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.UserInfo, error) {
	user, err := s.create(ctx, email, passwordHash, name, core.RoleUser)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) create(
	ctx context.Context,
	email, passwordHash, name, role string,
) (*User, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         role,
	}

	if user.Name == "" {
		user.Name, _, _ = strings.Cut(user.Email, "@")
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// CreateUser lets an admin open an account on someone's behalf.
func (s *Service) CreateUser(
	ctx context.Context,
	viewer core.Viewer,
	req CreateUserRequest,
) (*User, error) {
	if !viewer.IsAdmin() {
		return nil, fmt.Errorf("create user: %w", core.ErrForbidden)
	}

	role := req.Role
	if role == "" {
		role = core.RoleUser
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.create(ctx, req.Email, hash, req.Name, role)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, fmt.Errorf("create user: %w", ErrEmailTaken)
		}
		return nil, err
	}

	return user, nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

// TouchSignIn stamps the profile's last sign-in time.
func (s *Service) TouchSignIn(ctx context.Context, userID string) error {
	return s.repo.TouchSignIn(ctx, userID, s.now())
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetProfile(ctx context.Context, id string) (*Profile, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := user.Profile()
	return &profile, nil
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	if role != core.RoleUser && role != core.RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.Role == role {
		return user, nil
	}
	user.Role = role

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	// tokens minted under the old role stop working
	if err := s.repo.IncrementTokenVersion(ctx, id); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	user.TokenVersion++

	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, viewer core.Viewer) (*User, error) {
	if viewer.IsAnonymous() {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, viewer.UserID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	viewer core.Viewer,
	req UpdateUserRequest,
) (*User, error) {
	if viewer.IsAnonymous() {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, viewer.UserID, req)
}

func (s *Service) DeleteMe(ctx context.Context, viewer core.Viewer) error {
	if viewer.IsAnonymous() {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}

	return s.repo.SoftDelete(ctx, viewer.UserID)
}

func (s *Service) EmailExists(
	ctx context.Context,
	email string,
) (bool, error) {
	return s.repo.ExistsByEmail(ctx, normalizeEmail(email))
}

// CanDeleteUser allows self-deletion and admin deletion of non-admins.
func (s *Service) CanDeleteUser(
	ctx context.Context,
	viewer core.Viewer,
	targetID string,
) error {
	if viewer.UserID == targetID {
		return nil
	}

	if !viewer.IsAdmin() {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin users: %w", core.ErrForbidden)
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		TokenVersion: u.TokenVersion,
		CreatedAt:    u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
