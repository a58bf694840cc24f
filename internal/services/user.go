package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/hostel-tracker/apiserver/internal/policy"
	"github.com/hostel-tracker/apiserver/internal/store"
	"github.com/hostel-tracker/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ListByRole(ctx context.Context, role types.Role) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// NewAccount is the profile and password of an account to create.
type NewAccount struct {
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	Role       types.Role `json:"role"`
	Hostel     string     `json:"hostel"`
	Block      string     `json:"block"`
	RoomNumber string     `json:"roomNumber"`
	Phone      string     `json:"phone"`
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, "user not found", "failed to load user")
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return types.User{}, storeError(err, "user not found", "failed to load user")
	}
	return user, nil
}

// Register creates a self-service account. The role is always student.
func (s *UserService) Register(ctx context.Context, account NewAccount) (types.User, error) {
	account.Role = types.RoleStudent
	return s.Create(ctx, account)
}

// Create creates an account with the role given in account. It is used by
// operators to provision staff and management.
func (s *UserService) Create(ctx context.Context, account NewAccount) (types.User, error) {
	account.Name = strings.TrimSpace(account.Name)
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.Hostel = strings.TrimSpace(account.Hostel)
	account.Block = strings.TrimSpace(account.Block)
	account.RoomNumber = strings.TrimSpace(account.RoomNumber)
	account.Phone = strings.TrimSpace(account.Phone)

	if account.Name == "" || account.Email == "" || account.Hostel == "" || account.Block == "" || account.Phone == "" {
		return types.User{}, ErrValidation("name, email, phone, hostel and block are required")
	}
	if _, err := mail.ParseAddress(account.Email); err != nil {
		return types.User{}, ErrValidation("invalid email address")
	}
	if len(account.Password) < minPasswordLength {
		return types.User{}, ErrValidation("password must be at least 6 characters")
	}
	if !account.Role.Valid() {
		return types.User{}, ErrValidation("invalid role")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, ErrUpstream("failed to hash password", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         account.Name,
		Email:        account.Email,
		Role:         account.Role,
		Hostel:       account.Hostel,
		Block:        account.Block,
		RoomNumber:   account.RoomNumber,
		Phone:        account.Phone,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, ErrConflict(ReasonDuplicateEmail, "email already registered")
		}
		return types.User{}, ErrUpstream("failed to create user", err)
	}
	return user, nil
}

// Authenticate checks an email and password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return types.User{}, ErrValidation("missing credentials")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated("invalid credentials")
		}
		return types.User{}, ErrUpstream("failed to authenticate", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrUnauthenticated("invalid credentials")
	}
	return user, nil
}

// ListStaff returns staff accounts that issues can be assigned to.
func (s *UserService) ListStaff(ctx context.Context, actor policy.Actor) ([]types.User, error) {
	if decision := policy.CanAssignIssue(actor); !decision.Allowed {
		return nil, ErrForbidden(decision, "only management can list staff")
	}
	users, err := s.repo.ListByRole(ctx, types.RoleStaff)
	if err != nil {
		return nil, ErrUpstream("failed to list staff", err)
	}
	return users, nil
}
