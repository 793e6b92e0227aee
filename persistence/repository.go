package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/getaido/aido/audit"
	"github.com/getaido/aido/provider"
	"github.com/getaido/aido/user"
)

// Repository implements domain.Storage on top of GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&user.User{},
		&gormAuditEvent{},
	)
}

func (r *Repository) FindByProviderAndExternalID(ctx context.Context, p provider.Provider, externalID string) (*user.User, error) {
	if externalID == "" {
		return nil, nil
	}
	var u user.User
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", p, externalID).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) Update(ctx context.Context, u *user.User) (*user.User, error) {
	if err := r.db.WithContext(ctx).Save(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := r.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Repository) GetUser(ctx context.Context, id uint) (*user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) SearchUsers(ctx context.Context, keyword string) ([]user.User, error) {
	var users []user.User
	pattern := "%" + keyword + "%"
	err := r.db.WithContext(ctx).
		Where("name LIKE ? OR email LIKE ?", pattern, pattern).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&user.User{}, "id = ?", id).Error
}

func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&user.User{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// gormAuditEvent is the storage shape of audit.Event.
type gormAuditEvent struct {
	ID         string `gorm:"primaryKey"`
	Type       string `gorm:"index"`
	Status     string `gorm:"index"`
	Email      string `gorm:"index"`
	Provider   string
	ExternalID string
	UserID     uint
	Message    string
	CreatedAt  time.Time `gorm:"index"`
}

func (gormAuditEvent) TableName() string { return "audit_events" }

func (r *Repository) SaveEvent(ctx context.Context, event *audit.Event) error {
	return r.db.WithContext(ctx).Create(&gormAuditEvent{
		ID:         event.ID,
		Type:       event.Type,
		Status:     event.Status,
		Email:      event.Email,
		Provider:   event.Provider.String(),
		ExternalID: event.ExternalID,
		UserID:     event.UserID,
		Message:    event.Message,
		CreatedAt:  event.CreatedAt,
	}).Error
}
