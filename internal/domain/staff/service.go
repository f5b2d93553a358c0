package staff

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

const minPasswordLen = 8

type Service struct {
	repo     Repository
	secret   string
	tokenTTL time.Duration
}

func NewService(repo Repository, secret string, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, secret: secret, tokenTTL: tokenTTL}
}

// CreateInput registers a new staff account.
type CreateInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Branch   string `json:"branch"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	if strings.TrimSpace(in.Username) == "" {
		return nil, apperr.Validation("username", "must not be empty")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Validation("password", "must be at least 8 characters")
	}
	if !ValidRole(in.Role) {
		return nil, apperr.Validation("role", "unknown role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         in.Role,
		Branch:       in.Branch,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the credentials and issues a signed token carrying the user's
// role and home branch. A wrong username and a wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", nil, apperr.Authorization("invalid credentials")
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, apperr.Authorization("invalid credentials")
	}

	token, err := auth.IssueToken(auth.Principal{
		Username: u.Username,
		Role:     u.Role,
		Branch:   u.Branch,
	}, s.secret, s.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update changes role and branch assignment.
func (s *Service) Update(ctx context.Context, id int64, role, branch string) (*User, error) {
	if !ValidRole(role) {
		return nil, apperr.Validation("role", "unknown role")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = role
	u.Branch = branch
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the stored hash after checking the old password.
func (s *Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return apperr.Validation("password", "must be at least 8 characters")
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return apperr.Authorization("invalid credentials")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// IsDoctor reports whether the user exists and holds the doctor role. The
// appointment service uses this when booking.
func (s *Service) IsDoctor(ctx context.Context, id int64) (bool, error) {
	u, err := s.repo.GetByID(ctx, id)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Role == RoleDoctor, nil
}
