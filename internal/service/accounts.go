package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/models"
	"github.com/pubshark/backend/internal/store"
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type UserPage struct {
	Users      []models.User    `json:"users"`
	Pagination store.Pagination `json:"pagination"`
}

type AccountService struct {
	deps     Deps
	validate *validator.Validate
	log      *zap.Logger
}

// Register always creates a plain reader; roles are granted by admins.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to hash password")
	}
	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hashed,
		Role:     models.RoleUser,
	}
	if err := s.deps.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("username or email already exists")
		}
		return nil, fromStore(s.log, err, "user")
	}
	return s.issue(user)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.deps.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Authentication("invalid credentials")
	}
	if err != nil {
		return nil, fromStore(s.log, err, "user")
	}
	if !auth.CheckPassword(user.Password, password) {
		return nil, apperr.Authentication("invalid credentials")
	}
	return s.issue(user)
}

func (s *AccountService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.deps.Tokens.Issue(*user)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to generate token")
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AccountService) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.deps.Users.FindByID(ctx, id)
	if err != nil {
		return nil, fromStore(s.log, err, "user")
	}
	return user, nil
}

func (s *AccountService) List(ctx context.Context, actor *models.User, page, pageSize int) (*UserPage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.deps.allowed(actor, auth.ObjUser, auth.ActManage) {
		return nil, apperr.Authorization("only admins can list users")
	}
	p := store.NewPage(page, pageSize)
	users, total, err := s.deps.Users.List(ctx, p)
	if err != nil {
		return nil, fromStore(s.log, err, "users")
	}
	if users == nil {
		users = []models.User{}
	}
	return &UserPage{Users: users, Pagination: store.NewPagination(p, len(users), total)}, nil
}

func (s *AccountService) SetRole(ctx context.Context, actor *models.User, id uuid.UUID, role string) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.deps.allowed(actor, auth.ObjUser, auth.ActManage) {
		return nil, apperr.Authorization("only admins can change roles")
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, apperr.Validation("role must be one of admin, writer, user")
	}
	if actor.ID == id && r != models.RoleAdmin {
		return nil, apperr.Validation("admins cannot demote themselves")
	}
	user, err := s.deps.Users.UpdateRole(ctx, id, r)
	if err != nil {
		return nil, fromStore(s.log, err, "user")
	}
	s.log.Info("role changed", zap.Stringer("user", id), zap.String("role", string(r)), zap.Stringer("by", actor.ID))
	return user, nil
}

// EnsureAdmin creates the bootstrap admin, or promotes the account that
// already owns the email.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.deps.Users.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.Role == models.RoleAdmin:
		return existing, nil
	case err == nil:
		return s.deps.Users.UpdateRole(ctx, existing.ID, models.RoleAdmin)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: username, Email: email, Password: hashed, Role: models.RoleAdmin}
	if err := s.deps.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("bootstrap admin created", zap.String("email", email))
	return user, nil
}
