package repository

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/demos-sh/demos/db"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/encryption"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	FindByID(id uuid.UUID) (*domain.Project, error)
	FindByDomain(domain string) (*domain.Project, error)
	Create(project *domain.Project) (*domain.Project, error)
	Update(project *domain.Project) error
	List() ([]*domain.Project, error)
	ListByOwner(ownerID uuid.UUID) ([]*domain.Project, error)
	ListByState(state domain.ConnectionState) ([]*domain.Project, error)
	CountByOwner(ownerID uuid.UUID) (int64, error)
	Delete(id uuid.UUID) error
}

type projectRepository struct {
	db     *gorm.DB
	mapper *ProjectMapper
}

func (r *projectRepository) toDomainList(models []db.ProjectModel) ([]*domain.Project, error) {
	projects := make([]*domain.Project, 0, len(models))
	for i := range models {
		p, err := r.mapper.ToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (r *projectRepository) List() ([]*domain.Project, error) {
	var models []db.ProjectModel
	if err := r.db.Preload("Owner").Order("domain").Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(models)
}

func (r *projectRepository) ListByOwner(ownerID uuid.UUID) ([]*domain.Project, error) {
	var models []db.ProjectModel
	if err := r.db.Preload("Owner").Where("owner_id = ?", ownerID).Order("domain").Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(models)
}

func (r *projectRepository) ListByState(state domain.ConnectionState) ([]*domain.Project, error) {
	var models []db.ProjectModel
	if err := r.db.Preload("Owner").Where("state = ?", state.String()).Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(models)
}

func (r *projectRepository) CountByOwner(ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&db.ProjectModel{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

func (r *projectRepository) FindByID(id uuid.UUID) (*domain.Project, error) {
	var m db.ProjectModel
	if err := r.db.Preload("Owner").Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
		}
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "find_project",
			"project_id", id,
			"error", err)
		return nil, err
	}
	return r.mapper.ToDomain(&m)
}

func (r *projectRepository) FindByDomain(name string) (*domain.Project, error) {
	var m db.ProjectModel
	if err := r.db.Preload("Owner").Where("domain = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, name)
		}
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "find_project_by_domain",
			"domain", name,
			"error", err)
		return nil, err
	}
	return r.mapper.ToDomain(&m)
}

func (r *projectRepository) Create(project *domain.Project) (*domain.Project, error) {
	m, err := r.mapper.ToModel(project)
	if err != nil {
		return nil, err
	}
	if err := r.db.Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDomainInUse, project.Domain)
		}
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, project.OwnerID)
		}
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "create_project",
			"project_id", project.ID,
			"domain", project.Domain,
			"error", err)
		return nil, err
	}
	created, err := r.mapper.ToDomain(m)
	if err != nil {
		return nil, err
	}
	created.Owner = project.Owner
	return created, nil
}

func (r *projectRepository) Update(project *domain.Project) error {
	m, err := r.mapper.ToModel(project)
	if err != nil {
		return err
	}

	// Select all columns so zero values (port 0, nil timestamps) are written too
	res := r.db.Model(&db.ProjectModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Omit("created_at", "Owner").
		Updates(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", domain.ErrDomainInUse, project.Domain)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, project.ID)
	}
	return nil
}

func (r *projectRepository) Delete(id uuid.UUID) error {
	err := r.db.Delete(&db.ProjectModel{}, "id = ?", id).Error
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "delete_project",
			"project_id", id,
			"error", err)
	}
	return err
}

func NewProjectRepository(db *gorm.DB, encryptionSvc *encryption.EncryptionService) ProjectRepository {
	return &projectRepository{
		db:     db,
		mapper: NewProjectMapper(encryptionSvc),
	}
}

type UserRepository interface {
	FindByID(id uuid.UUID) (*domain.User, error)
	FindByUsername(username string) (*domain.User, error)
	Exists(username string) (bool, error)
	Create(user *domain.User) (*domain.User, error)
	Update(user *domain.User) error
	List() ([]*domain.User, error)
	Delete(id uuid.UUID) error
}

type userRepository struct {
	db     *gorm.DB
	mapper *UserMapper
}

func (r *userRepository) FindByID(id uuid.UUID) (*domain.User, error) {
	var m db.UserModel
	if err := r.db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
		}
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *userRepository) FindByUsername(username string) (*domain.User, error) {
	var m db.UserModel
	if err := r.db.Where("username = ?", username).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, username)
		}
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *userRepository) Exists(username string) (bool, error) {
	var count int64
	err := r.db.Model(&db.UserModel{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) Create(user *domain.User) (*domain.User, error) {
	m := r.mapper.ToModel(user)
	if err := r.db.Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUsernameInUse, user.Username)
		}
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "create_user",
			"username", user.Username,
			"error", err)
		return nil, err
	}
	return r.mapper.ToDomain(m), nil
}

func (r *userRepository) Update(user *domain.User) error {
	m := r.mapper.ToModel(user)
	return r.db.Model(&db.UserModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Omit("created_at", "username").
		Updates(m).
		Error
}

func (r *userRepository) List() ([]*domain.User, error) {
	var models []db.UserModel
	if err := r.db.Order("username").Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]*domain.User, len(models))
	for i := range models {
		users[i] = r.mapper.ToDomain(&models[i])
	}
	return users, nil
}

func (r *userRepository) Delete(id uuid.UUID) error {
	err := r.db.Delete(&db.UserModel{}, "id = ?", id).Error
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "delete_user",
			"user_id", id,
			"error", err)
	}
	return err
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db:     db,
		mapper: &UserMapper{},
	}
}
