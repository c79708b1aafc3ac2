package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"codetube/internal/model"
)

// UserRepository defines persistence operations for user records.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByIdentifier looks a user up by username or email.
	FindByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	// FindByUsernameOrEmail returns a user holding either identity.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*model.User, error)
	// UpdateByID applies the given column updates and returns the fresh row.
	UpdateByID(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByResetTokenHash(ctx context.Context, hash string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_token_hash <> ''", hash).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateByID(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.User, error) {
	tx := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}
