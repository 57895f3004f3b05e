package repository

import (
	"context"

	"requisition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, page, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	ReplaceRoles(ctx context.Context, userID uuid.UUID, roles []model.Role) error
	// FindByRoles returns users holding any of roles
	FindByRoles(ctx context.Context, roles []model.Role) ([]model.User, error)
	// FindSupervisors returns the department's users with supervisor capacity
	FindSupervisors(ctx context.Context, departmentID uuid.UUID) ([]model.User, error)
	CreateDepartment(ctx context.Context, dept *model.Department) error
	GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Roles").Preload("Department").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Roles").First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Roles").Preload("Department").Order("full_name ASC").
		Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit("Roles", "Department").Save(user).Error
}

// ReplaceRoles swaps the user's whole role set; callers run it inside a transaction
func (r *userRepository) ReplaceRoles(ctx context.Context, userID uuid.UUID, roles []model.Role) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	rows := make([]model.UserRole, 0, len(roles))
	for _, role := range roles {
		rows = append(rows, model.UserRole{UserID: userID, Role: role})
	}
	return db.Create(&rows).Error
}

func (r *userRepository) FindByRoles(ctx context.Context, roles []model.Role) ([]model.User, error) {
	users := []model.User{}
	if len(roles) == 0 {
		return users, nil
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	sub := GetDB(ctx, r.db).Session(&gorm.Session{NewDB: true}).
		Model(&model.UserRole{}).Select("user_id").Where("role IN ?", names)
	err := GetDB(ctx, r.db).Preload("Roles").Where("id IN (?)", sub).Find(&users).Error
	return users, err
}

func (r *userRepository) FindSupervisors(ctx context.Context, departmentID uuid.UUID) ([]model.User, error) {
	users := []model.User{}
	sub := GetDB(ctx, r.db).Session(&gorm.Session{NewDB: true}).
		Model(&model.UserRole{}).Select("user_id").Where("role = ?", string(model.RoleSupervisor))
	err := GetDB(ctx, r.db).Preload("Roles").
		Where("department_id = ?", departmentID).
		Where(GetDB(ctx, r.db).Session(&gorm.Session{NewDB: true}).
			Where("level >= ?", model.SupervisorLevel).Or("id IN (?)", sub)).
		Find(&users).Error
	return users, err
}

func (r *userRepository) CreateDepartment(ctx context.Context, dept *model.Department) error {
	return GetDB(ctx, r.db).Create(dept).Error
}

func (r *userRepository) GetDepartment(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var dept model.Department
	if err := GetDB(ctx, r.db).First(&dept, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}
