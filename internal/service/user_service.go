package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"requisition/internal/model"
	"requisition/internal/repository"
	"requisition/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username     string       `json:"username" binding:"required"`
	Email        string       `json:"email" binding:"required,email"`
	FullName     string       `json:"full_name" binding:"required"`
	Level        int          `json:"level" binding:"gte=0"`
	DepartmentID uuid.UUID    `json:"department_id" binding:"required"`
	Roles        []model.Role `json:"roles"`
}

// UpdateAccessRequest replaces the user's roles and, when set, their level and department
type UpdateAccessRequest struct {
	Roles        []model.Role `json:"roles"`
	Level        *int         `json:"level" binding:"omitempty,gte=0"`
	DepartmentID *uuid.UUID   `json:"department_id"`
}

type CreateDepartmentRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// UserService is the user/role directory
type UserService interface {
	CreateUser(ctx context.Context, actorID uuid.UUID, req CreateUserRequest) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error)
	UpdateAccess(ctx context.Context, actorID, userID uuid.UUID, req UpdateAccessRequest) (*model.User, error)
	CreateDepartment(ctx context.Context, actorID uuid.UUID, req CreateDepartmentRequest) (*model.Department, error)
}

type userService struct {
	repo      repository.UserRepository
	audits    repository.AuditRepository
	txManager repository.TransactionManager
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, audits repository.AuditRepository, txManager repository.TransactionManager) UserService {
	return &userService{repo: repo, audits: audits, txManager: txManager}
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

func validateRoles(roles []model.Role) ([]model.Role, error) {
	seen := map[model.Role]bool{}
	out := make([]model.Role, 0, len(roles))
	for _, r := range roles {
		r = model.Role(strings.ToUpper(strings.TrimSpace(string(r))))
		if !r.IsValid() {
			return nil, workflow.Validation("unknown role %q", r)
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *userService) CreateUser(ctx context.Context, actorID uuid.UUID, req CreateUserRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(email) {
		return nil, workflow.Validation("invalid email format")
	}
	roles, err := validateRoles(req.Roles)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, workflow.Validation("email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	user := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Level:        req.Level,
		DepartmentID: req.DepartmentID,
	}
	for _, r := range roles {
		user.Roles = append(user.Roles, model.UserRole{Role: r})
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetDepartment(txCtx, req.DepartmentID); err != nil {
			return notFoundOr(err, "department", req.DepartmentID)
		}
		if err := s.repo.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.audit(txCtx, actorID, model.ActionCreateUser, user, req)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	return s.repo.List(ctx, page, limit)
}

// UpdateAccess changes what the user may approve; capability is recomputed on their next action
func (s *userService) UpdateAccess(ctx context.Context, actorID, userID uuid.UUID, req UpdateAccessRequest) (*model.User, error) {
	roles, err := validateRoles(req.Roles)
	if err != nil {
		return nil, err
	}

	var user *model.User
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err = s.repo.GetByID(txCtx, userID)
		if err != nil {
			return notFoundOr(err, "user", userID)
		}
		if req.Level != nil {
			user.Level = *req.Level
		}
		if req.DepartmentID != nil {
			if _, err := s.repo.GetDepartment(txCtx, *req.DepartmentID); err != nil {
				return notFoundOr(err, "department", *req.DepartmentID)
			}
			user.DepartmentID = *req.DepartmentID
			user.Department = nil
		}
		if err := s.repo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		if err := s.repo.ReplaceRoles(txCtx, userID, roles); err != nil {
			return fmt.Errorf("failed to replace roles: %w", err)
		}
		if err := s.audit(txCtx, actorID, model.ActionUpdateUserRoles, user, req); err != nil {
			return err
		}
		user, err = s.repo.GetByID(txCtx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) CreateDepartment(ctx context.Context, actorID uuid.UUID, req CreateDepartmentRequest) (*model.Department, error) {
	dept := &model.Department{Code: strings.ToUpper(strings.TrimSpace(req.Code)), Name: strings.TrimSpace(req.Name)}
	if err := s.repo.CreateDepartment(ctx, dept); err != nil {
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	return dept, nil
}

func (s *userService) audit(ctx context.Context, actorID uuid.UUID, action string, user *model.User, req interface{}) error {
	details, _ := json.Marshal(req)
	uid := actorID
	if err := s.audits.Log(ctx, &model.AuditLog{
		UserID:     &uid,
		Action:     action,
		EntityID:   user.ID.String(),
		EntityName: user.Username,
		Details:    datatypes.JSON(details),
	}); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
